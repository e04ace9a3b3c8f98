package validation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kdimtricp/paintestimator/internal/models"
)

const (
	MaxImageSize     int64 = 10 * 1024 * 1024
	MaxVideoSize     int64 = 50 * 1024 * 1024
	MaxVideoDuration       = 30 * time.Second

	MaxRoomSpan   = 100.0
	MaxRoomHeight = 20.0
	MaxOpenings   = 20
	MaxRooms      = 20

	MinCeilingHeight = 7.0
	MaxCeilingHeight = 20.0
	MinCoats         = 1
	MaxCoats         = 5
)

var (
	PaintTypes = []string{"interior", "exterior"}
	RoomTypes  = []string{"bedroom", "hall", "kitchen", "bathroom", "other"}
)

type Outcome struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Err converts a failed outcome into an *Error.
func (o Outcome) Err() error {
	if o.OK {
		return nil
	}
	return &Error{Reason: o.Reason}
}

// Error is a user-correctable problem found before any network call.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

func pass() Outcome {
	return Outcome{OK: true}
}

func fail(format string, args ...interface{}) Outcome {
	return Outcome{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a selection against the rules for its mode. It has no side
// effects; surfacing Reason is left to the caller.
func Validate(sel models.Selection) Outcome {
	switch sel.Mode {
	case models.ModeManual:
		return validateManual(sel)
	case models.ModeManualRooms:
		return validateManualRooms(sel)
	case models.ModeSingleImage:
		return firstFailure(
			validateSingleFile(sel, isImage, "an image", MaxImageSize),
			validateCVFields(sel.Fields),
		)
	case models.ModeBlueprint:
		return firstFailure(
			validateSingleFile(sel, isBlueprint, "an image or PDF floor plan", MaxImageSize),
			validateBlueprintFields(sel.Fields),
		)
	case models.ModeVideo:
		return firstFailure(
			validateSingleFile(sel, isVideo, "a video", MaxVideoSize),
			validateKnownDuration(sel),
			validateCVFields(sel.Fields),
		)
	case models.ModeMultiImage:
		return firstFailure(
			validateMultiImage(sel),
			validateCVFields(sel.Fields),
		)
	}
	return fail("Unsupported estimation mode %q", sel.Mode)
}

// ValidateDuration is run once video metadata has loaded.
func ValidateDuration(d time.Duration) Outcome {
	if d <= 0 {
		return fail("Could not read the video duration")
	}
	if d > MaxVideoDuration {
		return fail("Video is %.0f seconds long; the limit is %.0f seconds", d.Seconds(), MaxVideoDuration.Seconds())
	}
	return pass()
}

func validateManual(sel models.Selection) Outcome {
	if len(sel.Files) != 0 {
		return fail("Manual estimates do not take files")
	}
	if out := validateRoom(sel.Fields.Room()); !out.OK {
		return out
	}
	return validatePaint(sel.Fields)
}

func validateManualRooms(sel models.Selection) Outcome {
	if len(sel.Files) != 0 {
		return fail("Manual estimates do not take files")
	}
	rooms := sel.Fields.Rooms
	if len(rooms) == 0 {
		return fail("Add at least one room")
	}
	if len(rooms) > MaxRooms {
		return fail("At most %d rooms can be estimated at once", MaxRooms)
	}
	for i, r := range rooms {
		if out := validateRoom(r); !out.OK {
			return fail("Room %d: %s", i+1, out.Reason)
		}
	}
	return validatePaint(sel.Fields)
}

func validateRoom(r models.RoomFields) Outcome {
	dims := []struct {
		name  string
		value *float64
		max   float64
	}{
		{"Length", r.Length, MaxRoomSpan},
		{"Width", r.Width, MaxRoomSpan},
		{"Height", r.Height, MaxRoomHeight},
	}
	for _, d := range dims {
		if d.value == nil {
			return fail("%s is required", d.name)
		}
		v := *d.value
		if !finite(v) || v <= 0 {
			return fail("%s must be a positive number", d.name)
		}
		if v > d.max {
			return fail("%s must be at most %g feet", d.name, d.max)
		}
	}

	if r.NumDoors < 0 || r.NumWindows < 0 {
		return fail("Door and window counts cannot be negative")
	}
	if r.NumDoors > MaxOpenings || r.NumWindows > MaxOpenings {
		return fail("Number of doors/windows seems unusually high (max %d)", MaxOpenings)
	}

	for name, v := range map[string]*float64{
		"Door height":   r.DoorHeight,
		"Door width":    r.DoorWidth,
		"Window height": r.WindowHeight,
		"Window width":  r.WindowWidth,
	} {
		if v != nil && (!finite(*v) || *v <= 0) {
			return fail("%s must be a positive number", name)
		}
	}
	return pass()
}

func validateSingleFile(sel models.Selection, accept func(string) bool, kind string, maxSize int64) Outcome {
	if len(sel.Files) == 0 {
		return fail("Please select %s to upload", kind)
	}
	if len(sel.Files) > 1 {
		return fail("Only one file can be uploaded in this mode")
	}
	return validateFile(sel.Files[0], accept, kind, maxSize)
}

func validateMultiImage(sel models.Selection) Outcome {
	min, max := sel.Mode.FileBounds()
	if n := len(sel.Files); n < min || n > max {
		return fail("Please select between %d and %d images (got %d)", min, max, n)
	}
	for _, file := range sel.Files {
		if out := validateFile(file, isImage, "an image", MaxImageSize); !out.OK {
			return out
		}
	}
	return pass()
}

func validateFile(file models.File, accept func(string) bool, kind string, maxSize int64) Outcome {
	if !accept(file.ContentType) {
		return fail("%s is not %s (type %s)", displayName(file), kind, file.ContentType)
	}
	if file.Size > maxSize {
		return fail("%s is %s; the limit is %s", displayName(file),
			humanize.IBytes(uint64(file.Size)), humanize.IBytes(uint64(maxSize)))
	}
	return pass()
}

func validateKnownDuration(sel models.Selection) Outcome {
	if len(sel.Files) == 0 || sel.Files[0].Duration == 0 {
		return pass()
	}
	return ValidateDuration(sel.Files[0].Duration)
}

func validateCVFields(f models.Fields) Outcome {
	if !oneOf(f.RoomType, RoomTypes) {
		return fail("Room type must be one of %s", strings.Join(RoomTypes, ", "))
	}
	for name, v := range map[string]*float64{"Length": f.Length, "Width": f.Width, "Height": f.Height} {
		if v == nil {
			continue
		}
		if !finite(*v) || *v <= 0 || *v > MaxRoomSpan {
			return fail("%s override must be between 0 and %g feet", name, MaxRoomSpan)
		}
	}
	return validatePaint(f)
}

func validateBlueprintFields(f models.Fields) Outcome {
	if !finite(f.CeilingHeight) || f.CeilingHeight < MinCeilingHeight || f.CeilingHeight > MaxCeilingHeight {
		return fail("Ceiling height must be between %g and %g feet", MinCeilingHeight, MaxCeilingHeight)
	}
	return validatePaint(f)
}

func validatePaint(f models.Fields) Outcome {
	if !oneOf(strings.ToLower(f.PaintType), PaintTypes) {
		return fail("Paint type must be 'interior' or 'exterior'")
	}
	if f.NumCoats < MinCoats || f.NumCoats > MaxCoats {
		return fail("Number of coats must be between %d and %d", MinCoats, MaxCoats)
	}
	return pass()
}

func firstFailure(outcomes ...Outcome) Outcome {
	for _, o := range outcomes {
		if !o.OK {
			return o
		}
	}
	return pass()
}

func isImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

func isVideo(contentType string) bool {
	return strings.HasPrefix(contentType, "video/")
}

func isBlueprint(contentType string) bool {
	return isImage(contentType) || contentType == "application/pdf"
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func displayName(f models.File) string {
	if f.Name == "" {
		return "File"
	}
	return f.Name
}
