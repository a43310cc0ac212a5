package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julianstephens/daybook/internal/constants"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid input")

// MaxTextLength bounds any single text field.
const MaxTextLength = 20000

// Problem describes one rejected field.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error lists every problem found in one input.
type Error struct {
	Problems []Problem
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = fmt.Sprintf("%s %s", p.Field, p.Message)
	}
	return strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error { return ErrInvalid }

// Validator accumulates problems.
type Validator struct {
	problems []Problem
}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// Add records a problem for field.
func (v *Validator) Add(field, message string) {
	v.problems = append(v.problems, Problem{Field: field, Message: message})
}

// Required rejects text that is empty after trimming or too long.
func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
		return
	}
	v.MaxLength(field, value, MaxTextLength)
}

// MaxLength rejects text longer than max runes.
func (v *Validator) MaxLength(field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		v.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// Err returns nil when nothing was recorded, otherwise an *Error.
func (v *Validator) Err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &Error{Problems: append([]Problem(nil), v.problems...)}
}

// RequireText checks that each named entry of fields is a non-blank string.
func RequireText(fields map[string]any, names ...string) error {
	v := New()
	for _, name := range names {
		s, _ := fields[name].(string)
		v.Required(name, s)
	}
	return v.Err()
}

// ParseDate parses a YYYY-MM-DD calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(constants.DateFormat, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, &Error{Problems: []Problem{{Field: "date", Message: "must be YYYY-MM-DD"}}}
	}
	return t, nil
}
