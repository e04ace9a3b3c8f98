package models

import (
	"time"

	"github.com/google/uuid"
)

type File struct {
	Name        string        `json:"name"`
	ContentType string        `json:"content_type"`
	Size        int64         `json:"size"`
	Data        []byte        `json:"-"`
	Duration    time.Duration `json:"duration,omitempty"`
	// StoredAs is the staged file name when the bytes also live on disk.
	StoredAs string `json:"-"`
}

type Fields struct {
	Length         *float64 `json:"length,omitempty"`
	Width          *float64 `json:"width,omitempty"`
	Height         *float64 `json:"height,omitempty"`
	NumDoors       int      `json:"num_doors"`
	NumWindows     int      `json:"num_windows"`
	DoorHeight     *float64 `json:"door_height,omitempty"`
	DoorWidth      *float64 `json:"door_width,omitempty"`
	WindowHeight   *float64 `json:"window_height,omitempty"`
	WindowWidth    *float64 `json:"window_width,omitempty"`
	RoomType       string   `json:"room_type,omitempty"`
	PaintType      string   `json:"paint_type"`
	NumCoats       int      `json:"num_coats"`
	IncludeCeiling bool     `json:"include_ceiling"`
	CeilingHeight  float64  `json:"ceiling_height,omitempty"`

	// Rooms is only used by ModeManualRooms.
	Rooms []RoomFields `json:"rooms,omitempty"`
}

// RoomFields are the measurements of one room in a multi-room manual
// estimate. Paint type, coats and ceiling choice are shared via Fields.
type RoomFields struct {
	Length       *float64 `json:"length,omitempty"`
	Width        *float64 `json:"width,omitempty"`
	Height       *float64 `json:"height,omitempty"`
	NumDoors     int      `json:"num_doors"`
	NumWindows   int      `json:"num_windows"`
	DoorHeight   *float64 `json:"door_height,omitempty"`
	DoorWidth    *float64 `json:"door_width,omitempty"`
	WindowHeight *float64 `json:"window_height,omitempty"`
	WindowWidth  *float64 `json:"window_width,omitempty"`
}

// Room returns the single-room measurements carried directly on Fields.
func (f Fields) Room() RoomFields {
	return RoomFields{
		Length:       f.Length,
		Width:        f.Width,
		Height:       f.Height,
		NumDoors:     f.NumDoors,
		NumWindows:   f.NumWindows,
		DoorHeight:   f.DoorHeight,
		DoorWidth:    f.DoorWidth,
		WindowHeight: f.WindowHeight,
		WindowWidth:  f.WindowWidth,
	}
}

func DefaultFields(mode Mode) Fields {
	f := Fields{
		PaintType: "interior",
		NumCoats:  2,
	}
	switch mode {
	case ModeSingleImage, ModeMultiImage, ModeVideo:
		f.RoomType = "bedroom"
	case ModeBlueprint:
		f.CeilingHeight = 10
	}
	return f
}

// Selection is the pending input of one view. Methods never modify the
// receiver; they return the replacement value. Every user edit bumps
// Version; recording loaded metadata does not.
type Selection struct {
	ID        string    `json:"id"`
	Mode      Mode      `json:"mode"`
	Files     []File    `json:"files"`
	Fields    Fields    `json:"fields"`
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

func NewSelection(mode Mode) Selection {
	return Selection{
		ID:        uuid.New().String(),
		Mode:      mode,
		Files:     []File{},
		Fields:    DefaultFields(mode),
		CreatedAt: time.Now(),
	}
}

func (s Selection) WithFields(f Fields) Selection {
	next := s.clone()
	next.Fields = f
	next.Fields.Rooms = append([]RoomFields(nil), f.Rooms...)
	next.Version++
	return next
}

func (s Selection) AddFiles(files ...File) Selection {
	next := s.clone()
	next.Files = append(next.Files, files...)
	next.Version++
	return next
}

func (s Selection) ReplaceFiles(files ...File) Selection {
	next := s.clone()
	next.Files = append([]File{}, files...)
	next.Version++
	return next
}

func (s Selection) RemoveFile(index int) (Selection, bool) {
	if index < 0 || index >= len(s.Files) {
		return s, false
	}
	next := s.clone()
	next.Files = append(next.Files[:index:index], s.Files[index+1:]...)
	next.Version++
	return next, true
}

func (s Selection) ClearFiles() Selection {
	return s.ReplaceFiles()
}

// Reset discards files and fields but keeps the mode; the version keeps
// increasing so pending loads for the old selection are recognised as stale.
func (s Selection) Reset() Selection {
	next := NewSelection(s.Mode)
	next.Version = s.Version + 1
	return next
}

func (s Selection) clone() Selection {
	next := s
	next.Files = append([]File{}, s.Files...)
	next.Fields.Rooms = append([]RoomFields(nil), s.Fields.Rooms...)
	return next
}

// WithFileDuration records loaded video metadata for the file at index.
func (s Selection) WithFileDuration(index int, d time.Duration) (Selection, bool) {
	if index < 0 || index >= len(s.Files) {
		return s, false
	}
	next := s.clone()
	next.Files[index].Duration = d
	return next, true
}
