package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kdimtricp/paintestimator/internal/models"
)

type Kind int

const (
	KindJSON Kind = iota
	KindMultipart
)

type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Data        []byte
}

type FormValue struct {
	Key   string
	Value string
}

// Payload is the transport-ready form of a selection. Exactly one of JSON or
// Files/Form is populated, depending on Kind.
type Payload struct {
	Kind     Kind
	Endpoint string
	JSON     json.RawMessage
	Files    []FilePart
	Form     []FormValue
}

func (p Payload) FormValue(key string) (string, bool) {
	for _, v := range p.Form {
		if v.Key == key {
			return v.Value, true
		}
	}
	return "", false
}

// Fingerprint identifies the payload content; identical selections produce
// identical fingerprints.
func (p Payload) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|", p.Endpoint, p.Kind)
	h.Write(p.JSON)
	for _, f := range p.Files {
		sum := sha256.Sum256(f.Data)
		fmt.Fprintf(h, "|file:%s:%s:%s:%x", f.Field, f.FileName, f.ContentType, sum)
	}
	for _, v := range p.Form {
		fmt.Fprintf(h, "|form:%s=%s", v.Key, v.Value)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type manualRoom struct {
	Length       float64  `json:"length"`
	Width        float64  `json:"width"`
	Height       float64  `json:"height"`
	NumDoors     int      `json:"num_doors"`
	NumWindows   int      `json:"num_windows"`
	DoorHeight   *float64 `json:"door_height,omitempty"`
	DoorWidth    *float64 `json:"door_width,omitempty"`
	WindowHeight *float64 `json:"window_height,omitempty"`
	WindowWidth  *float64 `json:"window_width,omitempty"`
}

type manualRequest struct {
	Room           manualRoom `json:"room"`
	PaintType      string     `json:"paint_type"`
	NumCoats       int        `json:"num_coats"`
	IncludeCeiling bool       `json:"include_ceiling"`
}

type multiRoomRequest struct {
	Rooms           []manualRoom `json:"rooms"`
	PaintType       string       `json:"paint_type"`
	NumCoats        int          `json:"num_coats"`
	IncludeCeilings bool         `json:"include_ceilings"`
}

type roomDescriptor struct {
	RoomName       string `json:"room_name"`
	RoomType       string `json:"room_type"`
	PaintType      string `json:"paint_type"`
	NumCoats       int    `json:"num_coats"`
	IncludeCeiling bool   `json:"include_ceiling"`
}

// Build converts a selection into a payload. It performs no I/O.
func Build(sel models.Selection) (Payload, error) {
	p := Payload{Endpoint: sel.Mode.Endpoint()}

	switch sel.Mode {
	case models.ModeManual:
		body, err := buildManual(sel.Fields)
		if err != nil {
			return Payload{}, err
		}
		p.Kind = KindJSON
		p.JSON = body
		return p, nil

	case models.ModeManualRooms:
		body, err := buildManualRooms(sel.Fields)
		if err != nil {
			return Payload{}, err
		}
		p.Kind = KindJSON
		p.JSON = body
		return p, nil

	case models.ModeSingleImage, models.ModeVideo:
		p.Kind = KindMultipart
		p.Files = fileParts(sel)
		p.Form = cvForm(sel.Fields)
		return p, nil

	case models.ModeBlueprint:
		p.Kind = KindMultipart
		p.Files = fileParts(sel)
		p.Form = []FormValue{
			{"ceiling_height", formatFloat(sel.Fields.CeilingHeight)},
			{"paint_type", sel.Fields.PaintType},
			{"num_coats", strconv.Itoa(sel.Fields.NumCoats)},
			{"include_ceiling", strconv.FormatBool(sel.Fields.IncludeCeiling)},
		}
		return p, nil

	case models.ModeMultiImage:
		roomData, err := buildRoomData(sel)
		if err != nil {
			return Payload{}, err
		}
		p.Kind = KindMultipart
		p.Files = fileParts(sel)
		p.Form = []FormValue{{"room_data", string(roomData)}}
		return p, nil
	}

	return Payload{}, fmt.Errorf("no payload layout for mode %q", sel.Mode)
}

func buildManual(f models.Fields) (json.RawMessage, error) {
	req := manualRequest{
		Room:           roomOf(f.Room()),
		PaintType:      f.PaintType,
		NumCoats:       f.NumCoats,
		IncludeCeiling: f.IncludeCeiling,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding manual request: %w", err)
	}
	return body, nil
}

func buildManualRooms(f models.Fields) (json.RawMessage, error) {
	req := multiRoomRequest{
		Rooms:           make([]manualRoom, 0, len(f.Rooms)),
		PaintType:       f.PaintType,
		NumCoats:        f.NumCoats,
		IncludeCeilings: f.IncludeCeiling,
	}
	for _, r := range f.Rooms {
		req.Rooms = append(req.Rooms, roomOf(r))
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding multi-room request: %w", err)
	}
	return body, nil
}

func roomOf(r models.RoomFields) manualRoom {
	return manualRoom{
		Length:       deref(r.Length),
		Width:        deref(r.Width),
		Height:       deref(r.Height),
		NumDoors:     r.NumDoors,
		NumWindows:   r.NumWindows,
		DoorHeight:   r.DoorHeight,
		DoorWidth:    r.DoorWidth,
		WindowHeight: r.WindowHeight,
		WindowWidth:  r.WindowWidth,
	}
}

// buildRoomData describes each uploaded wall. The ceiling is counted once, on
// the first wall only.
func buildRoomData(sel models.Selection) (json.RawMessage, error) {
	descriptors := make([]roomDescriptor, 0, len(sel.Files))
	for i := range sel.Files {
		descriptors = append(descriptors, roomDescriptor{
			RoomName:       fmt.Sprintf("Wall %d", i+1),
			RoomType:       sel.Fields.RoomType,
			PaintType:      sel.Fields.PaintType,
			NumCoats:       sel.Fields.NumCoats,
			IncludeCeiling: sel.Fields.IncludeCeiling && i == 0,
		})
	}

	data, err := json.Marshal(descriptors)
	if err != nil {
		return nil, fmt.Errorf("encoding room data: %w", err)
	}
	return data, nil
}

func fileParts(sel models.Selection) []FilePart {
	field := sel.Mode.FileField()
	parts := make([]FilePart, 0, len(sel.Files))
	for _, f := range sel.Files {
		parts = append(parts, FilePart{
			Field:       field,
			FileName:    f.Name,
			ContentType: f.ContentType,
			Data:        f.Data,
		})
	}
	return parts
}

func cvForm(f models.Fields) []FormValue {
	form := []FormValue{
		{"room_type", f.RoomType},
		{"paint_type", f.PaintType},
		{"num_coats", strconv.Itoa(f.NumCoats)},
		{"include_ceiling", strconv.FormatBool(f.IncludeCeiling)},
	}
	if f.Length != nil {
		form = append(form, FormValue{"length", formatFloat(*f.Length)})
	}
	if f.Width != nil {
		form = append(form, FormValue{"width", formatFloat(*f.Width)})
	}
	if f.Height != nil {
		form = append(form, FormValue{"height", formatFloat(*f.Height)})
	}
	return form
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
