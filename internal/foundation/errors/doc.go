// Package errors provides the classified error primitives used across the
// book build.
//
// A ClassifiedError carries a category, a severity, a retry strategy and a
// small context map. Errors are created through the fluent ErrorBuilder:
//
//	err := errors.WrapError(ErrUnknownStage, errors.CategoryStage, "unknown anchor stage").
//		WithContext("anchor", "liquid").
//		Build()
//
// ClassifiedError unwraps to its cause, so sentinel checks with the standard
// library's errors.Is keep working through the classification layer.
package errors
