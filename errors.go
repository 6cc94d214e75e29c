package pdx

import "errors"

// Decode failure classes. Callers match with errors.Is; the codec never
// returns a partial document alongside any of these.
var (
	// ErrTruncatedData is returned when the buffer ends before an expected
	// field. Always fatal.
	ErrTruncatedData = errors.New("truncated data")

	// ErrMalformedChunk is returned for an unrecognized payload kind byte or
	// an internally inconsistent chunk length. Always fatal.
	ErrMalformedChunk = errors.New("malformed chunk")

	// ErrSchemaViolation is returned when chunks are structurally valid but a
	// required section is missing or a child is illegal at its nesting level.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrUnsupportedVersion is returned for a file header from an
	// incompatible format revision, so callers can report "update your tool"
	// instead of a generic corruption message.
	ErrUnsupportedVersion = errors.New("unsupported format version")

	// ErrInvalidHierarchy is raised by document mutation helpers when a joint
	// parent index does not precede the joint itself.
	ErrInvalidHierarchy = errors.New("invalid hierarchy")

	// ErrValidation is returned for decoded values that are fatally out of
	// range, such as face or skin indices outside their target arrays.
	ErrValidation = errors.New("validation failed")
)
