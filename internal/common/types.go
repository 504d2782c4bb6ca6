package common

import "strings"

// Level is the five-point scale used for content severity, confidence and
// alert volume.
type Level string

const (
	LevelVeryLow  Level = "Very Low"
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelVeryHigh Level = "Very High"
)

var levelsByKey = map[string]Level{
	"very low":  LevelVeryLow,
	"very_low":  LevelVeryLow,
	"low":       LevelLow,
	"medium":    LevelMedium,
	"high":      LevelHigh,
	"very high": LevelVeryHigh,
	"very_high": LevelVeryHigh,
}

// ParseLevel normalizes spelling variants such as "very_high" or "HIGH".
// Unrecognised values are returned unchanged.
func ParseLevel(s string) Level {
	if l, ok := levelsByKey[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return Level(s)
}

// Invert maps a confidence level onto the alert volume it implies: high
// confidence content produces few alerts. Only the four outer points of the
// scale are mapped; any other value passes through.
func (l Level) Invert() Level {
	switch l {
	case LevelVeryHigh:
		return LevelVeryLow
	case LevelVeryLow:
		return LevelVeryHigh
	case LevelHigh:
		return LevelLow
	case LevelLow:
		return LevelHigh
	default:
		return l
	}
}
