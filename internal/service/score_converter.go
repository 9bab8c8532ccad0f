package service

import (
	"fmt"
	"math"

	"github.com/stemsi/toeic-session/internal/engine"
)

// Scaled score bounds of one TOEIC section.
const (
	MinSectionScore = 5
	MaxSectionScore = 495
	RawSectionMax   = 100
)

type anchor struct {
	raw    int
	scaled int
}

// Approximate conversion curves. Listening is the more generous section at
// the top end.
var (
	listeningCurve = []anchor{
		{0, 5}, {10, 45}, {20, 100}, {30, 150}, {40, 195}, {50, 245},
		{60, 300}, {70, 355}, {80, 410}, {90, 470}, {96, 495}, {100, 495},
	}
	readingCurve = []anchor{
		{0, 5}, {10, 30}, {20, 75}, {30, 125}, {40, 175}, {50, 225},
		{60, 280}, {70, 335}, {80, 385}, {90, 440}, {100, 495},
	}
)

// ScoreConverter maps raw section scores to the 5-495 scale.
type ScoreConverter struct {
	curves map[engine.Section][]anchor
}

// NewScoreConverter creates a converter with the standard curves.
func NewScoreConverter() *ScoreConverter {
	return &ScoreConverter{curves: map[engine.Section][]anchor{
		engine.SectionListening: listeningCurve,
		engine.SectionReading:   readingCurve,
	}}
}

// Convert maps a raw score (0-100 correct answers) for section to its scaled
// score, interpolating between anchors and rounding to the nearest 5.
func (c *ScoreConverter) Convert(section engine.Section, raw int) (int, error) {
	curve, ok := c.curves[section]
	if !ok {
		return 0, fmt.Errorf("unknown section %q", section)
	}
	if raw < 0 || raw > RawSectionMax {
		return 0, fmt.Errorf("raw score %d is out of range (0-%d)", raw, RawSectionMax)
	}

	scaled := float64(curve[len(curve)-1].scaled)
	for i := 1; i < len(curve); i++ {
		lo, hi := curve[i-1], curve[i]
		if raw <= hi.raw {
			frac := float64(raw-lo.raw) / float64(hi.raw-lo.raw)
			scaled = float64(lo.scaled) + frac*float64(hi.scaled-lo.scaled)
			break
		}
	}

	rounded := int(math.Round(scaled/5) * 5)
	if rounded < MinSectionScore {
		rounded = MinSectionScore
	}
	if rounded > MaxSectionScore {
		rounded = MaxSectionScore
	}
	return rounded, nil
}

// NormalizeRaw rescales correct answers out of total questions to the 0-100
// raw range, so shortened tests land on the same curve.
func NormalizeRaw(correct, total int) int {
	if total <= 0 {
		return 0
	}
	if total == RawSectionMax {
		return correct
	}
	return int(math.Round(float64(correct) * RawSectionMax / float64(total)))
}
