package normalize

import (
	"fmt"
	"math"

	"github.com/kdimtricp/paintestimator/internal/models"
)

const (
	// Used when the response has no finite confidence score.
	DefaultVisionConfidence = 0.90
	DefaultConfidence       = 0.70
)

type band struct {
	min           float64
	level         string
	color         string
	expectedError string
}

// scoreBands is ordered from the highest threshold down; the first band whose
// minimum the percentage reaches wins.
var scoreBands = []band{
	{95, "Excellent", "#059669", "±5%"},
	{90, "Very High", "#10b981", "±10%"},
	{75, "High", "#84cc16", "±15%"},
	{60, "Medium", "#f59e0b", "±20%"},
	{40, "Low", "#f97316", "±30%"},
	{0, "Very Low", "#ef4444", ">±30%"},
}

type varianceBand struct {
	max   float64
	level string
	color string
}

var varianceBands = []varianceBand{
	{5, "Excellent", "#059669"},
	{8, "Good", "#10b981"},
	{15, "Medium", "#f59e0b"},
}

var varianceLow = varianceBand{level: "Low", color: "#ef4444"}

var (
	scorePaths = []string{
		"confidence.overall_confidence",
		"confidence",
	}
	variancePaths = []string{
		"variance_analysis.error_percent",
		"dimension_analysis.variance.error_percent",
		"variance.error_percent",
		"confidence.error_percent",
	}
	visionFlagPaths = []string{
		"vision_api_used",
		"video_analysis.vision_api_used",
		"dimension_analysis.vision_api_used",
	}
)

func normalizeConfidence(body interface{}) *models.Confidence {
	if errPct, ok := firstNumber(body, variancePaths); ok && errPct >= 0 {
		return varianceConfidence(errPct)
	}

	score, ok := firstNumber(body, scorePaths)
	defaulted := false
	if !ok {
		defaulted = true
		score = DefaultConfidence
		if truthy(body, visionFlagPaths) {
			score = DefaultVisionConfidence
		}
	}

	c := ScoreConfidence(score)
	c.Defaulted = defaulted
	return c
}

// ScoreConfidence bands a confidence score. Scores at or below 1 are
// fractions and are scaled to percent; larger values are taken as percent.
func ScoreConfidence(score float64) *models.Confidence {
	percent := score
	if percent <= 1 {
		percent *= 100
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	percent = math.Round(percent*100) / 100

	b := scoreBands[len(scoreBands)-1]
	for _, candidate := range scoreBands {
		if percent >= candidate.min {
			b = candidate
			break
		}
	}

	return &models.Confidence{
		Percent:       percent,
		Level:         b.level,
		Color:         b.color,
		ExpectedError: b.expectedError,
		Basis:         models.BasisScore,
	}
}

func varianceConfidence(errPct float64) *models.Confidence {
	b := varianceLow
	for _, candidate := range varianceBands {
		if errPct <= candidate.max {
			b = candidate
			break
		}
	}

	percent := 100 - errPct
	if percent < 0 {
		percent = 0
	}

	return &models.Confidence{
		Percent:       percent,
		Level:         b.level,
		Color:         b.color,
		ExpectedError: fmt.Sprintf("±%.1f%%", errPct),
		Basis:         models.BasisVariance,
	}
}
