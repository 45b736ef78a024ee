package calendar

import (
	"fmt"

	"cloud.google.com/go/civil"
)

// Range is an inclusive span of days. A nil bound is open.
type Range struct {
	From *civil.Date
	To   *civil.Date
}

// All is the unbounded range.
func All() Range { return Range{} }

// Day is the range covering a single date.
func Day(d civil.Date) Range { return Between(d, d) }

// Between builds a closed range.
func Between(from, to civil.Date) Range {
	return Range{From: &from, To: &to}
}

// ParseRange builds a range from optional YYYY-MM-DD bounds; an empty string
// leaves that end open.
func ParseRange(from, to string) (Range, error) {
	var r Range
	if from != "" {
		d, err := Parse(from)
		if err != nil {
			return Range{}, err
		}
		r.From = &d
	}
	if to != "" {
		d, err := Parse(to)
		if err != nil {
			return Range{}, err
		}
		r.To = &d
	}
	return r, r.Validate()
}

func (r Range) Validate() error {
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidRange, r.From, r.To)
	}
	return nil
}

func (r Range) IsAll() bool { return r.From == nil && r.To == nil }

func (r Range) Contains(d civil.Date) bool {
	if r.From != nil && d.Before(*r.From) {
		return false
	}
	if r.To != nil && d.After(*r.To) {
		return false
	}
	return true
}

func (r Range) String() string {
	from, to := "*", "*"
	if r.From != nil {
		from = r.From.String()
	}
	if r.To != nil {
		to = r.To.String()
	}
	return from + ".." + to
}
