// Package formats provides parsers for the Wavefront OBJ and MTL text formats.
package formats

import (
	"errors"
	"fmt"
	"strings"
)

// Load failure classes. Every parse error unwraps to exactly one of these.
var (
	ErrMalformedMaterialFile = errors.New("malformed material file")
	ErrUnsupportedDirective  = errors.New("unsupported directive")
	ErrMalformedFace         = errors.New("malformed face")
	ErrDanglingReference     = errors.New("dangling reference")
	ErrMalformedDirective    = errors.New("malformed directive")
)

// DirectiveClass tells why a directive was rejected.
type DirectiveClass int

const (
	DirectiveSupported      DirectiveClass = iota
	DirectiveUnrecognized                  // Not part of the OBJ format
	DirectiveDeprecated                    // Dropped from the format after OBJ 2.11
	DirectiveNotImplemented                // Valid OBJ, not handled by this loader
)

// String returns a human-readable class name.
func (c DirectiveClass) String() string {
	switch c {
	case DirectiveSupported:
		return "supported"
	case DirectiveUnrecognized:
		return "unrecognized"
	case DirectiveDeprecated:
		return "deprecated"
	case DirectiveNotImplemented:
		return "not implemented"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ParseError reports where and why an OBJ or MTL file was rejected.
type ParseError struct {
	File      string
	Line      int // 1-based physical line, 0 when not tied to a line
	Directive string
	Class     DirectiveClass
	Reason    string
	Err       error // one of the Err* classes above
	Cause     error // underlying I/O or decode error, if any
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.File)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	if e.Directive != "" {
		fmt.Fprintf(&b, ": %s", e.Directive)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap exposes both the failure class and the underlying cause.
func (e *ParseError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Primitive is the draw primitive a face run is rendered with.
type Primitive uint8

const (
	PrimitiveTriangles Primitive = 3
	PrimitiveQuads     Primitive = 4
	PrimitivePolygon   Primitive = 5
)

// String returns the primitive name.
func (p Primitive) String() string {
	switch p {
	case PrimitiveTriangles:
		return "triangles"
	case PrimitiveQuads:
		return "quads"
	case PrimitivePolygon:
		return "polygon"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the three known primitives.
func (p Primitive) Valid() bool {
	return p >= PrimitiveTriangles && p <= PrimitivePolygon
}
