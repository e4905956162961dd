// Package category defines the closed taxonomy models are registered under.
package category

import (
	"errors"
	"fmt"
)

// Category is one of the fixed model categories. The zero value is invalid.
type Category uint8

// The taxonomy is closed: exactly these eight values exist.
const (
	NaturalLanguageProcessing Category = iota + 1
	ComputerVision
	RecommendationSystems
	ReinforcementLearning
	GenerativeModels
	SpeechRecognition
	TimeSeriesAnalysis
	Other
)

// Count is the number of categories in the taxonomy.
const Count = 8

// ErrUnknown is returned when a name is not part of the taxonomy.
var ErrUnknown = errors.New("unknown category")

var all = [Count]Category{
	NaturalLanguageProcessing,
	ComputerVision,
	RecommendationSystems,
	ReinforcementLearning,
	GenerativeModels,
	SpeechRecognition,
	TimeSeriesAnalysis,
	Other,
}

// All returns every category in declaration order.
func All() []Category {
	out := make([]Category, Count)
	copy(out, all[:])
	return out
}

// String returns the wire name of the category.
func (c Category) String() string {
	switch c {
	case NaturalLanguageProcessing:
		return "natural-language-processing"
	case ComputerVision:
		return "computer-vision"
	case RecommendationSystems:
		return "recommendation-systems"
	case ReinforcementLearning:
		return "reinforcement-learning"
	case GenerativeModels:
		return "generative-models"
	case SpeechRecognition:
		return "speech-recognition"
	case TimeSeriesAnalysis:
		return "time-series-analysis"
	case Other:
		return "other-category"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// Valid reports whether c is one of the eight taxonomy values.
func (c Category) Valid() bool {
	return c >= NaturalLanguageProcessing && c <= Other
}

// Parse resolves a wire name. Matching is exact; no case folding or trimming.
func Parse(name string) (Category, error) {
	for _, c := range all {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknown, name)
}

// IsValid reports whether name is part of the taxonomy.
func IsValid(name string) bool {
	_, err := Parse(name)
	return err == nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
