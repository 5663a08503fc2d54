package model

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeDuplicateIdentifier    = "duplicate_identifier"
	CodeUnknownDimension       = "unknown_dimension"
	CodeMissingDimension       = "missing_dimension"
	CodeCyclicHierarchy        = "cyclic_hierarchy"
	CodeUnresolvedReference    = "unresolved_reference"
	CodeDanglingReference      = "dangling_reference"
	CodeInvalidValue           = "invalid_value"
	CodeUnsupportedMessageType = "unsupported_message_type"
	CodeAmbiguousMeasure       = "ambiguous_measure"
	CodeParseError             = "parse_error"
)

// Issue represents a single structural or semantic violation.
type Issue struct {
	Code    string // One of the codes listed above.
	Path    string // Location within the message (for example: /DataSet/0/Series/2).
	Message string
	// Identity is the identity tuple of the artefact involved, when known.
	Identity string
	// Key is the observation or series key involved, when known.
	Key string
	// Raw is the offending raw wire text, when known.
	Raw   string
	Cause error // Optional: underlying error.
}

// Issues is a collection of violations that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		fmt.Fprintf(b, "%s", it.Code)
		if it.Identity != "" {
			fmt.Fprintf(b, " (%s)", it.Identity)
		}
		if it.Key != "" {
			fmt.Fprintf(b, " key=%s", it.Key)
		}
		if it.Message != "" {
			fmt.Fprintf(b, ": %s", it.Message)
		}
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// HasCode reports whether err carries at least one Issue with the given code.
func HasCode(err error, code string) bool {
	iss, ok := AsIssues(err)
	if !ok {
		return false
	}
	for _, it := range iss {
		if it.Code == code {
			return true
		}
	}
	return false
}

// issuef builds a single-issue error value.
func issuef(code string, format string, args ...any) Issues {
	return Issues{{Code: code, Message: fmt.Sprintf(format, args...)}}
}
