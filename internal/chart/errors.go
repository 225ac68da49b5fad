package chart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

var (
	ErrUnknownKind        = errors.New("unknown chart kind")
	ErrUnknownAggregation = errors.New("unknown aggregation")
	// ErrStaleRequest is returned by Prepare when the dataset no longer matches the request.
	ErrStaleRequest = errors.New("chart request does not match dataset")
)

// IncompatibleColumnError reports a column whose type does not fit its role.
type IncompatibleColumnError struct {
	Kind     Kind
	Role     Role
	Column   string
	Expected []dataset.Type
	Actual   dataset.Type
	// Integral is set when the numeric option only takes whole numbers.
	Integral bool
}

func (e *IncompatibleColumnError) Error() string {
	want := Slot{Accepts: e.Expected, Integral: e.Integral}.typeNames()
	actual := string(e.Actual)
	if e.Integral && e.Actual == dataset.Numeric {
		actual = "numeric with fractional values"
	}
	return fmt.Sprintf("%s chart: column %q (%s) is %s, expected %s",
		e.Kind, e.Column, e.Role, actual, strings.Join(want, " or "))
}

// UnknownColumnError reports a reference to a column the dataset lacks.
type UnknownColumnError struct {
	Kind   Kind
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("%s chart: no column named %q", e.Kind, e.Column)
}

// ArityError reports the wrong number of columns for a kind.
type ArityError struct {
	Kind Kind
	Want string
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s chart: needs %s column(s), got %d", e.Kind, e.Want, e.Got)
}

// OptionError reports an option the kind does not take or an invalid option value.
type OptionError struct {
	Kind   Kind
	Option string
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("%s chart: option %s %s", e.Kind, e.Option, e.Reason)
}
