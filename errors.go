package coarsehead

import "fmt"

// ConceptNotFoundError reports a taxonomy lookup by name or id that matched
// nothing. Taxonomy content is static, so the same lookup always fails the
// same way; callers should fix the name, not retry.
type ConceptNotFoundError struct {
	Name string
}

func (e *ConceptNotFoundError) Error() string {
	return fmt.Sprintf("taxonomy concept not found: %q", e.Name)
}

// InvalidParameterError reports a policy parameter outside its allowed range
// (neighborhood size, seed class index). Raised before any computation so a
// bad run never produces partial output.
type InvalidParameterError struct {
	Param  string
	Value  int
	Detail string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%d: %s", e.Param, e.Value, e.Detail)
}

// EmptyContributingSetError reports a coarse category that resolved to zero
// fine-grained classes. Averaging an empty set would yield NaN columns, so
// synthesis refuses it outright.
type EmptyContributingSetError struct {
	Category string
}

func (e *EmptyContributingSetError) Error() string {
	return fmt.Sprintf("coarse category %q has an empty contributing set", e.Category)
}

// DimensionMismatchError reports head parameters whose shapes disagree with
// each other or with the class count implied by the rest of the inputs.
type DimensionMismatchError struct {
	Detail string
}

func (e *DimensionMismatchError) Error() string {
	return "dimension mismatch: " + e.Detail
}
