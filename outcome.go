package spar

import "fmt"

// OutcomeKind names the variant of an Outcome.
type OutcomeKind string

// Outcome kinds.
const (
	KindSuccess        OutcomeKind = "success"
	KindException      OutcomeKind = "exception"
	KindExpectation    OutcomeKind = "expectation"
	KindGeneral        OutcomeKind = "general"
	KindIgnored        OutcomeKind = "ignored"
	KindStandardNotMet OutcomeKind = "standard_not_met"
)

// Outcome is the result an engine reports for a finished test.
//
// The set of implementations is closed: Success, ExceptionFailure,
// ExpectationFailure, GeneralFailure, Ignored and StandardNotMet.
type Outcome interface {
	Kind() OutcomeKind
	String() string
	outcome()
}

// Failure is implemented by every Outcome except Success.
// Ignored is a failure kind on the wire; the model reclassifies it.
type Failure interface {
	Outcome
	failure()
}

// Success reports a passing test.
type Success struct{}

// ExceptionFailure reports a test that raised an error.
type ExceptionFailure struct {
	Description string
}

// ExpectationFailure reports an assertion mismatch.
type ExpectationFailure struct {
	Message string
}

// GeneralFailure reports a failure with no more specific kind.
type GeneralFailure struct {
	Message string
}

// Ignored reports a test the engine chose not to run.
type Ignored struct {
	Message string
}

// StandardNotMet reports a comparison standard that did not hold.
type StandardNotMet struct{}

func (Success) Kind() OutcomeKind            { return KindSuccess }
func (ExceptionFailure) Kind() OutcomeKind   { return KindException }
func (ExpectationFailure) Kind() OutcomeKind { return KindExpectation }
func (GeneralFailure) Kind() OutcomeKind     { return KindGeneral }
func (Ignored) Kind() OutcomeKind            { return KindIgnored }
func (StandardNotMet) Kind() OutcomeKind     { return KindStandardNotMet }

func (Success) String() string              { return "Success" }
func (o ExceptionFailure) String() string   { return fmt.Sprintf("Failure(ExceptionFailure(%q))", o.Description) }
func (o ExpectationFailure) String() string { return fmt.Sprintf("Failure(ExpectationFailure(%q))", o.Message) }
func (o GeneralFailure) String() string     { return fmt.Sprintf("Failure(GeneralFailure(%q))", o.Message) }
func (o Ignored) String() string            { return fmt.Sprintf("Failure(Ignored(%q))", o.Message) }
func (StandardNotMet) String() string       { return "Failure(StandardNotMet)" }

func (Success) outcome()            {}
func (ExceptionFailure) outcome()   {}
func (ExpectationFailure) outcome() {}
func (GeneralFailure) outcome()     {}
func (Ignored) outcome()            {}
func (StandardNotMet) outcome()     {}

func (ExceptionFailure) failure()   {}
func (ExpectationFailure) failure() {}
func (GeneralFailure) failure()     {}
func (Ignored) failure()            {}
func (StandardNotMet) failure()     {}

// IsFailure reports whether o is one of the failure kinds.
func IsFailure(o Outcome) bool {
	_, ok := o.(Failure)

	return ok
}

// Message returns the text payload carried by o, if any.
func Message(o Outcome) string {
	switch o := o.(type) {
	case ExceptionFailure:
		return o.Description
	case ExpectationFailure:
		return o.Message
	case GeneralFailure:
		return o.Message
	case Ignored:
		return o.Message
	default:
		return ""
	}
}

// OutcomeFromKind rebuilds an Outcome from its kind and message.
func OutcomeFromKind(kind OutcomeKind, message string) (Outcome, error) {
	switch kind {
	case KindSuccess:
		return Success{}, nil
	case KindException:
		return ExceptionFailure{Description: message}, nil
	case KindExpectation:
		return ExpectationFailure{Message: message}, nil
	case KindGeneral:
		return GeneralFailure{Message: message}, nil
	case KindIgnored:
		return Ignored{Message: message}, nil
	case KindStandardNotMet:
		return StandardNotMet{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutcome, kind)
	}
}
