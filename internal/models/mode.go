package models

import "fmt"

type Mode string

const (
	ModeManual      Mode = "manual"
	ModeManualRooms Mode = "manual-rooms"
	ModeSingleImage Mode = "single-image"
	ModeMultiImage  Mode = "multi-image"
	ModeVideo       Mode = "video"
	ModeBlueprint   Mode = "blueprint"
)

var modes = []Mode{ModeManual, ModeManualRooms, ModeSingleImage, ModeMultiImage, ModeVideo, ModeBlueprint}

func Modes() []Mode {
	out := make([]Mode, len(modes))
	copy(out, modes)
	return out
}

func ParseMode(s string) (Mode, error) {
	for _, m := range modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// FileBounds returns the inclusive number of files a selection in this mode
// must carry before it can be submitted.
func (m Mode) FileBounds() (min, max int) {
	switch m {
	case ModeSingleImage, ModeVideo, ModeBlueprint:
		return 1, 1
	case ModeMultiImage:
		return 2, 4
	default:
		return 0, 0
	}
}

func (m Mode) Endpoint() string {
	switch m {
	case ModeManual:
		return "/estimate/manual"
	case ModeManualRooms:
		return "/estimate/manual/multi-room"
	case ModeSingleImage:
		return "/estimate/cv/single-room"
	case ModeMultiImage:
		return "/estimate/cv/multi-room"
	case ModeVideo:
		return "/estimate/cv/video"
	case ModeBlueprint:
		return "/estimate/floorplan"
	}
	return ""
}

// FileField is the multipart field name the backend expects files under.
func (m Mode) FileField() string {
	switch m {
	case ModeSingleImage, ModeBlueprint:
		return "image"
	case ModeMultiImage:
		return "images"
	case ModeVideo:
		return "video"
	}
	return ""
}

func (m Mode) HasFiles() bool {
	_, max := m.FileBounds()
	return max > 0
}

func (m Mode) Label() string {
	switch m {
	case ModeManual:
		return "Manual"
	case ModeManualRooms:
		return "Multiple rooms"
	case ModeSingleImage:
		return "Single image"
	case ModeMultiImage:
		return "Multiple images"
	case ModeVideo:
		return "Video"
	case ModeBlueprint:
		return "Floor plan"
	}
	return string(m)
}
