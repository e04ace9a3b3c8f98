package normalize

import "github.com/kdimtricp/paintestimator/internal/models"

// AssumedCeilingHeight is the wall height used by the area fallback.
const AssumedCeilingHeight = 10.0

// ApproximateDimensionsFromArea derives a square footprint from a paintable
// area when the response carried no usable length or width. The area is
// split evenly across rooms, treated as the wall area of one room with a
// 10 ft ceiling, and the resulting perimeter is halved into a side length.
// The arithmetic is a rough heuristic with no accuracy bound; callers must
// keep the result labelled as approximate.
func ApproximateDimensionsFromArea(paintableArea float64, roomCount int) (models.Dimensions, bool) {
	if paintableArea <= 0 {
		return models.Dimensions{}, false
	}
	if roomCount < 1 {
		roomCount = 1
	}

	perimeter := (paintableArea / float64(roomCount)) * 2 / AssumedCeilingHeight
	side := perimeter / 2

	return models.Dimensions{
		Length: models.Known(side),
		Width:  models.Known(side),
		Height: models.Known(AssumedCeilingHeight),
		Source: models.DimensionsFromArea,
	}, true
}
