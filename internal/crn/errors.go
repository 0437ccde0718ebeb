package crn

import (
	"errors"
	"fmt"
)

// Domain errors for specification parsing and model construction.
var (
	// ErrSpecificationType indicates a missing, unknown or unsupported "type" field.
	ErrSpecificationType = errors.New("crn: unsupported specification type")

	// ErrNotImplemented marks a recognised but unimplemented CRN type (stochastic).
	ErrNotImplemented = errors.New("crn: not implemented")

	// ErrParse indicates a malformed reaction term, reaction string or field value.
	ErrParse = errors.New("crn: parse error")

	// ErrInvalidInitialState indicates initial concentrations that are negative,
	// reference unknown species or do not sum to 1.
	ErrInvalidInitialState = errors.New("crn: invalid initial state")

	// ErrInvalidRate indicates a rate constant that is not a positive finite number.
	ErrInvalidRate = errors.New("crn: invalid rate constant")

	// ErrInternalConsistency indicates directional terms and rates that do not line up.
	// Reaching it means the reaction parser produced the wrong number of terms.
	ErrInternalConsistency = errors.New("crn: internal consistency violation")
)

// ParseError reports the offending reaction and token.
type ParseError struct {
	Expr   string
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	switch {
	case e.Expr != "" && e.Token != "":
		return fmt.Sprintf("crn: parse %q: %s (token %q)", e.Expr, e.Reason, e.Token)
	case e.Expr != "":
		return fmt.Sprintf("crn: parse %q: %s", e.Expr, e.Reason)
	case e.Token != "":
		return fmt.Sprintf("crn: parse: %s (token %q)", e.Reason, e.Token)
	}
	return "crn: parse: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

func parseErrorf(expr, token, format string, args ...any) error {
	return &ParseError{Expr: expr, Token: token, Reason: fmt.Sprintf(format, args...)}
}
