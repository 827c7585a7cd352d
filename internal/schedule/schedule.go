// Package schedule implements the calendar predicate that decides when a
// strategy's logic fires. A schedule is an ordered set of clauses combined
// with OR; within a clause every specified field must match (AND) and an
// unspecified field is a wildcard.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/tempo-trading/pkg/errors"
)

// Config is one clause mapping. Recognized keys are exactly
// {second, minute, hour, day_of_week}; each value is a literal, a range
// expression ("9-16"), a list ("0,15,30"), a wildcard ("*"), or, for
// day_of_week, a symbolic name or range such as "mon-fri".
type Config map[string]any

const (
	KeySecond    = "second"
	KeyMinute    = "minute"
	KeyHour      = "hour"
	KeyDayOfWeek = "day_of_week"
)

var dayNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// field is one constrained clause field. A nil value set is a wildcard.
type field struct {
	values map[int]bool
}

func (f field) matches(v int) bool {
	return f.values == nil || f.values[v]
}

// Clause constrains the (second, minute, hour, day-of-week) decomposition of
// a timestamp. All specified fields must match.
type Clause struct {
	second    field
	minute    field
	hour      field
	dayOfWeek field
}

func (c Clause) matches(t time.Time) bool {
	return c.second.matches(t.Second()) &&
		c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

// Schedule is an immutable calendar predicate. Replace it wholesale to change
// a strategy's firing times.
type Schedule struct {
	clauses []Clause
}

// New builds a schedule from clause configs. With no configs the schedule
// matches every timestamp (all fields wildcard). Construction fails with a
// configuration error on unrecognized keys or out-of-domain values.
func New(configs ...Config) (*Schedule, error) {
	if len(configs) == 0 {
		return &Schedule{clauses: []Clause{{}}}, nil
	}

	clauses := make([]Clause, 0, len(configs))

	for _, cfg := range configs {
		clause, err := parseClause(cfg)
		if err != nil {
			return nil, err
		}

		clauses = append(clauses, clause)
	}

	return &Schedule{clauses: clauses}, nil
}

// MustNew is New for statically known configs; it panics on error.
func MustNew(configs ...Config) *Schedule {
	s, err := New(configs...)
	if err != nil {
		panic(err)
	}

	return s
}

// Matches reports whether the timestamp satisfies at least one clause.
// It is a pure function of the clause set and the timestamp.
func (s *Schedule) Matches(t time.Time) bool {
	for _, clause := range s.clauses {
		if clause.matches(t) {
			return true
		}
	}

	return false
}

func parseClause(cfg Config) (Clause, error) {
	var clause Clause

	for key, raw := range cfg {
		var err error

		switch key {
		case KeySecond:
			clause.second, err = parseField(key, raw, 0, 59, false)
		case KeyMinute:
			clause.minute, err = parseField(key, raw, 0, 59, false)
		case KeyHour:
			clause.hour, err = parseField(key, raw, 0, 23, false)
		case KeyDayOfWeek:
			clause.dayOfWeek, err = parseField(key, raw, 0, 6, true)
		default:
			return Clause{}, errors.Newf(errors.ErrCodeInvalidScheduleField, "unrecognized schedule key: %q", key)
		}

		if err != nil {
			return Clause{}, err
		}
	}

	return clause, nil
}

func parseField(name string, raw any, min, max int, symbolic bool) (field, error) {
	if raw == nil {
		return field{}, nil
	}

	values := make(map[int]bool)

	if err := collectValues(name, raw, min, max, symbolic, values); err != nil {
		return field{}, err
	}

	if len(values) == 0 {
		return field{}, nil
	}

	return field{values: values}, nil
}

func collectValues(name string, raw any, min, max int, symbolic bool, out map[int]bool) error {
	switch v := raw.(type) {
	case int:
		return addLiteral(name, v, min, max, out)
	case int64:
		return addLiteral(name, int(v), min, max, out)
	case float64:
		if v != float64(int(v)) {
			return errors.Newf(errors.ErrCodeInvalidScheduleValue, "%s: non-integer value %v", name, v)
		}

		return addLiteral(name, int(v), min, max, out)
	case string:
		return collectString(name, v, min, max, symbolic, out)
	case []any:
		for _, item := range v {
			if err := collectValues(name, item, min, max, symbolic, out); err != nil {
				return err
			}
		}

		return nil
	default:
		return errors.Newf(errors.ErrCodeInvalidScheduleValue, "%s: unsupported value type %T", name, raw)
	}
}

func collectString(name, s string, min, max int, symbolic bool, out map[int]bool) error {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "*" {
		// wildcard: leave the value set empty
		return nil
	}

	if strings.Contains(s, ",") {
		for _, part := range strings.Split(s, ",") {
			if err := collectString(name, part, min, max, symbolic, out); err != nil {
				return err
			}
		}

		return nil
	}

	if lo, hi, ok := strings.Cut(s, "-"); ok {
		loVal, err := parseAtom(name, lo, min, max, symbolic)
		if err != nil {
			return err
		}

		hiVal, err := parseAtom(name, hi, min, max, symbolic)
		if err != nil {
			return err
		}

		return addRange(name, loVal, hiVal, min, max, symbolic, out)
	}

	v, err := parseAtom(name, s, min, max, symbolic)
	if err != nil {
		return err
	}

	out[v] = true

	return nil
}

func parseAtom(name, s string, min, max int, symbolic bool) (int, error) {
	s = strings.TrimSpace(s)

	if symbolic {
		if v, ok := dayNames[s]; ok {
			return v, nil
		}
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Newf(errors.ErrCodeInvalidScheduleValue, "%s: cannot parse %q", name, s)
	}

	if v < min || v > max {
		return 0, errors.Newf(errors.ErrCodeInvalidScheduleValue, "%s: value %d outside [%d, %d]", name, v, min, max)
	}

	return v, nil
}

func addLiteral(name string, v, min, max int, out map[int]bool) error {
	if v < min || v > max {
		return errors.Newf(errors.ErrCodeInvalidScheduleValue, "%s: value %d outside [%d, %d]", name, v, min, max)
	}

	out[v] = true

	return nil
}

// addRange expands lo-hi inclusive. Symbolic day-of-week ranges may wrap
// ("fri-mon" covers fri, sat, sun, mon); numeric ranges must be ascending.
func addRange(name string, lo, hi, min, max int, symbolic bool, out map[int]bool) error {
	if lo > hi {
		if !symbolic {
			return errors.Newf(errors.ErrCodeInvalidScheduleValue, "%s: descending range %d-%d", name, lo, hi)
		}

		span := max - min + 1
		for v := lo; ; v = (v-min+1)%span + min {
			out[v] = true

			if v == hi {
				break
			}
		}

		return nil
	}

	for v := lo; v <= hi; v++ {
		out[v] = true
	}

	return nil
}
