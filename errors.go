package sdmx

import "github.com/sdmxkit/sdmx/model"

// The error model is defined next to the information model so that every
// layer can produce it; the root package re-exports it as the public
// surface.

// Issue is a single structural or semantic violation.
type Issue = model.Issue

// Issues is a collection of violations that implements error.
type Issues = model.Issues

const (
	CodeDuplicateIdentifier    = model.CodeDuplicateIdentifier
	CodeUnknownDimension       = model.CodeUnknownDimension
	CodeMissingDimension       = model.CodeMissingDimension
	CodeCyclicHierarchy        = model.CodeCyclicHierarchy
	CodeUnresolvedReference    = model.CodeUnresolvedReference
	CodeDanglingReference      = model.CodeDanglingReference
	CodeInvalidValue           = model.CodeInvalidValue
	CodeUnsupportedMessageType = model.CodeUnsupportedMessageType
	CodeAmbiguousMeasure       = model.CodeAmbiguousMeasure
	CodeParseError             = model.CodeParseError
)

// AsIssues extracts Issues from an error.
func AsIssues(err error) (Issues, bool) { return model.AsIssues(err) }

// HasCode reports whether err carries at least one Issue with the given
// code.
func HasCode(err error, code string) bool { return model.HasCode(err, code) }
