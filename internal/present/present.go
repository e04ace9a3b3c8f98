package present

import (
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/kdimtricp/paintestimator/internal/models"
)

// Placeholders shown instead of a number when the response did not carry the
// value. Dimensions are inferred by the backend, so a missing one reads as
// "Auto"; every other missing number reads as "N/A".
const (
	Auto          = "Auto"
	NotAvailable  = "N/A"
	ApproxLabel   = "(approx.)"
	currencySign  = "₹"
	areaFormat    = "#,###.#"
	decimalFormat = "#,###.##"
)

type ConfidenceView struct {
	Percent       string `json:"percent"`
	Level         string `json:"level"`
	Color         string `json:"color"`
	ExpectedError string `json:"expected_error"`
	Basis         string `json:"basis"`
	Defaulted     bool   `json:"defaulted"`
}

type RoomView struct {
	Name          string `json:"name"`
	FloorArea     string `json:"floor_area"`
	PaintableArea string `json:"paintable_area"`
	Paint         string `json:"paint"`
	Cost          string `json:"cost"`
	Doors         string `json:"doors"`
	Windows       string `json:"windows"`
}

// Summary is a SubmissionResult with every value already formatted for
// display.
type Summary struct {
	Mode          string          `json:"mode"`
	PaintableArea string          `json:"paintable_area"`
	Paint         string          `json:"paint"`
	Cost          string          `json:"cost"`
	Length        string          `json:"length"`
	Width         string          `json:"width"`
	Height        string          `json:"height"`
	Approximate   bool            `json:"approximate"`
	Doors         string          `json:"doors"`
	Windows       string          `json:"windows"`
	Confidence    *ConfidenceView `json:"confidence,omitempty"`
	Rooms         []RoomView      `json:"rooms,omitempty"`
	Message       string          `json:"message,omitempty"`
	ManualInput   bool            `json:"manual_input"`
}

func Summarize(res models.SubmissionResult) Summary {
	s := Summary{
		Mode:          res.Mode.Label(),
		PaintableArea: orNA(res.PaintableAreaSqFt, area),
		Paint:         orNA(res.PaintLiters, liters),
		Cost:          orNA(res.TotalCost, money),
		Length:        dimension(res.Dimensions.Length, res.Dimensions.Source),
		Width:         dimension(res.Dimensions.Width, res.Dimensions.Source),
		Height:        dimension(res.Dimensions.Height, res.Dimensions.Source),
		Approximate:   res.Dimensions.Source == models.DimensionsFromArea,
		Doors:         NotAvailable,
		Windows:       NotAvailable,
		Message:       res.Message,
		ManualInput:   res.ManualInputRequested,
	}

	if res.Detections != nil {
		s.Doors = humanize.Comma(int64(res.Detections.Doors))
		s.Windows = humanize.Comma(int64(res.Detections.Windows))
	}

	if c := res.Confidence; c != nil {
		s.Confidence = &ConfidenceView{
			Percent:       humanize.FtoaWithDigits(c.Percent, 1) + "%",
			Level:         c.Level,
			Color:         c.Color,
			ExpectedError: c.ExpectedError,
			Basis:         string(c.Basis),
			Defaulted:     c.Defaulted,
		}
	}

	for _, r := range res.Rooms {
		s.Rooms = append(s.Rooms, RoomView{
			Name:          r.Name,
			FloorArea:     orNA(r.FloorAreaSqFt, area),
			PaintableArea: orNA(r.PaintableAreaSqFt, area),
			Paint:         orNA(r.PaintLiters, liters),
			Cost:          orNA(r.Cost, money),
			Doors:         orNA(r.Doors, count),
			Windows:       orNA(r.Windows, count),
		})
	}

	return s
}

func orNA(q models.Quantity, format func(float64) string) string {
	if !q.Known {
		return NotAvailable
	}
	return format(q.Value)
}

func dimension(q models.Quantity, source models.DimensionSource) string {
	if !q.Known {
		return Auto
	}
	v := humanize.FormatFloat(decimalFormat, q.Value) + " ft"
	if source == models.DimensionsFromArea {
		v += " " + ApproxLabel
	}
	return v
}

func area(v float64) string {
	return humanize.FormatFloat(areaFormat, v) + " sq ft"
}

func liters(v float64) string {
	return humanize.FormatFloat(decimalFormat, v) + " L"
}

func money(v float64) string {
	return currencySign + humanize.FormatFloat(decimalFormat, v)
}

func count(v float64) string {
	return humanize.Comma(int64(v))
}

func (s Summary) String() string {
	var b strings.Builder
	Text(&b, s)
	return b.String()
}
