package models

import "time"

// Quantity is a normalized number. Known is false when the backend response
// did not carry the value and Value holds the documented default.
type Quantity struct {
	Value float64 `json:"value"`
	Known bool    `json:"known"`
}

func Known(v float64) Quantity {
	return Quantity{Value: v, Known: true}
}

func Unknown(def float64) Quantity {
	return Quantity{Value: def}
}

func (q Quantity) NonZero() bool {
	return q.Value != 0
}

type DimensionSource string

const (
	DimensionsFromResponse DimensionSource = "response"
	DimensionsFromArea     DimensionSource = "area-fallback"
	DimensionsMissing      DimensionSource = "missing"
)

type Dimensions struct {
	Length Quantity        `json:"length"`
	Width  Quantity        `json:"width"`
	Height Quantity        `json:"height"`
	Source DimensionSource `json:"source"`
}

type Detections struct {
	Doors   int `json:"doors"`
	Windows int `json:"windows"`
}

type ConfidenceBasis string

const (
	BasisScore    ConfidenceBasis = "score"
	BasisVariance ConfidenceBasis = "variance"
)

type Confidence struct {
	Percent       float64         `json:"percent"`
	Level         string          `json:"level"`
	Color         string          `json:"color"`
	ExpectedError string          `json:"expected_error"`
	Basis         ConfidenceBasis `json:"basis"`
	// Defaulted is set when the response had no usable score.
	Defaulted bool `json:"defaulted"`
}

type RoomResult struct {
	Name              string   `json:"name"`
	FloorAreaSqFt     Quantity `json:"floor_area_sqft"`
	PaintableAreaSqFt Quantity `json:"paintable_area_sqft"`
	PaintLiters       Quantity `json:"paint_liters"`
	Cost              Quantity `json:"cost"`
	Doors             Quantity `json:"doors"`
	Windows           Quantity `json:"windows"`
}

// SubmissionResult is built once per successful response and never mutated
// afterwards.
type SubmissionResult struct {
	Mode                 Mode         `json:"mode"`
	PaintableAreaSqFt    Quantity     `json:"paintable_area_sqft"`
	PaintLiters          Quantity     `json:"paint_liters"`
	TotalCost            Quantity     `json:"total_cost"`
	Dimensions           Dimensions   `json:"dimensions"`
	Detections           *Detections  `json:"detections,omitempty"`
	Confidence           *Confidence  `json:"confidence,omitempty"`
	Rooms                []RoomResult `json:"rooms,omitempty"`
	Message              string       `json:"message,omitempty"`
	ManualInputRequested bool         `json:"manual_input_requested,omitempty"`
	ReceivedAt           time.Time    `json:"received_at"`
}
