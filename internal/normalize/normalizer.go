package normalize

import (
	"fmt"
	"time"

	"github.com/kdimtricp/paintestimator/internal/models"
)

// rule resolves one numeric field: the first path holding a finite number
// wins, otherwise the default is used and the quantity is marked unknown.
type rule struct {
	paths []string
	def   float64
}

func (r rule) resolve(v interface{}) models.Quantity {
	if f, ok := firstNumber(v, r.paths); ok {
		return models.Known(f)
	}
	return models.Unknown(r.def)
}

var (
	paintableAreaRule = rule{paths: []string{
		"total_paintable_area",
		"area_calculation.paintable_area",
	}}
	paintRule = rule{paths: []string{
		"total_paint_required",
		"product_breakdown.paint.quantity",
		"total_paint_required_liters",
	}}
	costRule = rule{paths: []string{
		"total_cost",
		"cost_breakdown.total_cost",
	}}

	doorsRule = rule{paths: []string{
		"detection_results.detected_doors",
		"detections.doors",
	}}
	windowsRule = rule{paths: []string{
		"detection_results.detected_windows",
		"detections.windows",
	}}
)

// Per-room rules cover both the multi-room CV shape
// ({room_name, estimation{...}}) and the floor plan shape
// ({name, areas, paint, total_cost}).
var (
	roomNamePaths = []string{"room_name", "name"}

	roomFloorAreaRule = rule{paths: []string{
		"areas.floor_area",
		"floor_area",
		"estimation.area_calculation.floor_area",
	}}
	roomPaintableAreaRule = rule{paths: []string{
		"areas.paintable_area",
		"paintable_area",
		"estimation.area_calculation.paintable_area",
		"estimation.total_paintable_area",
	}}
	roomPaintRule = rule{paths: []string{
		"paint.liters",
		"paint_liters",
		"estimation.product_breakdown.paint.quantity",
		"estimation.total_paint_required",
	}}
	roomCostRule = rule{paths: []string{
		"total_cost",
		"paint.cost",
		"estimation.cost_breakdown.total_cost",
		"estimation.total_cost",
	}}
	roomDoorsRule = rule{paths: []string{
		"num_doors",
		"estimation.detection_results.detected_doors",
		"detection_results.detected_doors",
	}}
	roomWindowsRule = rule{paths: []string{
		"num_windows",
		"estimation.detection_results.detected_windows",
		"detection_results.detected_windows",
	}}
)

var (
	roomDimensionPaths = []string{
		"estimation.dimensions",
		"estimation",
		"dimensions",
	}
	topDimensionPaths = []string{
		"dimensions",
		"dimension_analysis.dimensions",
	}
	messagePaths     = []string{"message"}
	manualInputPaths = []string{"manual_input_request", "manual_input_required"}
)

// Normalize turns a decoded response body into a SubmissionResult. It is
// total: any JSON value, including nil, produces a fully defaulted record.
func Normalize(mode models.Mode, raw interface{}) models.SubmissionResult {
	body := unwrap(raw)
	rooms := listAt(body, "rooms")

	res := models.SubmissionResult{
		Mode:              mode,
		PaintableAreaSqFt: paintableAreaRule.resolve(body),
		PaintLiters:       paintRule.resolve(body),
		TotalCost:         costRule.resolve(body),
		ReceivedAt:        time.Now().UTC(),
	}

	for i, entry := range rooms {
		res.Rooms = append(res.Rooms, normalizeRoom(i, entry))
	}

	res.Dimensions = normalizeDimensions(body, rooms)
	if res.Dimensions.Length.Value == 0 && res.Dimensions.Width.Value == 0 {
		if approx, ok := ApproximateDimensionsFromArea(res.PaintableAreaSqFt.Value, len(rooms)); ok {
			res.Dimensions = approx
		}
	}

	res.Detections = normalizeDetections(body, res.Rooms)

	if mode == models.ModeVideo {
		res.Confidence = normalizeConfidence(body)
	}

	// The envelope message lives next to data, not inside it.
	if msg, ok := firstString(raw, messagePaths); ok {
		res.Message = msg
	} else if msg, ok := firstString(body, messagePaths); ok {
		res.Message = msg
	}
	res.ManualInputRequested = truthy(body, manualInputPaths)

	return res
}

func unwrap(raw interface{}) interface{} {
	if data, ok := objectAt(raw, "data"); ok {
		return data
	}
	return raw
}

func normalizeDimensions(body interface{}, rooms []interface{}) models.Dimensions {
	paths := topDimensionPaths
	var source interface{} = body
	if len(rooms) > 0 {
		paths = roomDimensionPaths
		source = rooms[0]
	}

	for _, p := range paths {
		obj, ok := objectAt(source, p)
		if !ok {
			continue
		}
		length, lok := number(obj["length"])
		width, wok := number(obj["width"])
		height, hok := number(obj["height"])
		if !lok && !wok && !hok {
			continue
		}
		return models.Dimensions{
			Length: quantity(length, lok),
			Width:  quantity(width, wok),
			Height: quantity(height, hok),
			Source: models.DimensionsFromResponse,
		}
	}

	return models.Dimensions{Source: models.DimensionsMissing}
}

func normalizeRoom(i int, entry interface{}) models.RoomResult {
	name, ok := firstString(entry, roomNamePaths)
	if !ok {
		name = fmt.Sprintf("Room %d", i+1)
	}
	return models.RoomResult{
		Name:              name,
		FloorAreaSqFt:     roomFloorAreaRule.resolve(entry),
		PaintableAreaSqFt: roomPaintableAreaRule.resolve(entry),
		PaintLiters:       roomPaintRule.resolve(entry),
		Cost:              roomCostRule.resolve(entry),
		Doors:             roomDoorsRule.resolve(entry),
		Windows:           roomWindowsRule.resolve(entry),
	}
}

// normalizeDetections prefers top-level detection counts and falls back to
// summing per-room counts. Nil means no counts were reported anywhere.
func normalizeDetections(body interface{}, rooms []models.RoomResult) *models.Detections {
	doors := doorsRule.resolve(body)
	windows := windowsRule.resolve(body)
	if doors.Known || windows.Known {
		return &models.Detections{Doors: int(doors.Value), Windows: int(windows.Value)}
	}

	var d models.Detections
	found := false
	for _, r := range rooms {
		if r.Doors.Known {
			d.Doors += int(r.Doors.Value)
			found = true
		}
		if r.Windows.Known {
			d.Windows += int(r.Windows.Value)
			found = true
		}
	}
	if !found {
		return nil
	}
	return &d
}

func quantity(v float64, ok bool) models.Quantity {
	if ok {
		return models.Known(v)
	}
	return models.Unknown(0)
}
