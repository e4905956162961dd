package ledger

import (
	"fmt"
	"unicode/utf8"

	"github.com/okian/modelrank/internal/domain/category"
	"github.com/okian/modelrank/internal/domain/scoring"
)

// Field bounds, counted in code points.
const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
	ContentHashLength    = 64
	MaxCommentLength     = 200
)

func checkLength(field, value string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(value)
	if n < minLen || n > maxLen {
		if minLen == maxLen {
			return fmt.Errorf("%w: %s must be exactly %d characters, got %d", ErrInvalidLength, field, minLen, n)
		}
		return fmt.Errorf("%w: %s must be %d-%d characters, got %d", ErrInvalidLength, field, minLen, maxLen, n)
	}
	return nil
}

func parseCategory(name string) (category.Category, error) {
	c, err := category.Parse(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, name)
	}
	return c, nil
}

func checkScore(score int) error {
	if score < scoring.MinScore || score > scoring.MaxScore {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, score)
	}
	return nil
}

// An absent comment always passes; a present one must be 1-200 code points.
func checkComment(comment *string) error {
	if comment == nil {
		return nil
	}
	if n := utf8.RuneCountInString(*comment); n < 1 || n > MaxCommentLength {
		return fmt.Errorf("%w: got %d", ErrInvalidCommentLength, n)
	}
	return nil
}
