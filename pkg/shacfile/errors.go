package shacfile

import "fmt"

// Kind is the closed set of error kinds a parse or validation failure
// can report, with enough context attached to identify the offending
// entity.
type Kind int

const (
	InvalidMagic Kind = iota
	UnsupportedVersion
	InvalidOrder
	ChannelMismatch
	InvalidBitDepth
	InvalidSampleRate
	InvalidNormalization
	TruncatedData
	DuplicateLayerId
	InvalidLayerId
	MetadataTooLarge
	InvalidMetadata
	ShapeMismatch
	EmptyFile
)

func (k Kind) String() string {
	switch k {
	case InvalidMagic:
		return "InvalidMagic"
	case UnsupportedVersion:
		return "UnsupportedVersion"
	case InvalidOrder:
		return "InvalidOrder"
	case ChannelMismatch:
		return "ChannelMismatch"
	case InvalidBitDepth:
		return "InvalidBitDepth"
	case InvalidSampleRate:
		return "InvalidSampleRate"
	case InvalidNormalization:
		return "InvalidNormalization"
	case TruncatedData:
		return "TruncatedData"
	case DuplicateLayerId:
		return "DuplicateLayerId"
	case InvalidLayerId:
		return "InvalidLayerId"
	case MetadataTooLarge:
		return "MetadataTooLarge"
	case InvalidMetadata:
		return "InvalidMetadata"
	case ShapeMismatch:
		return "ShapeMismatch"
	case EmptyFile:
		return "EmptyFile"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error reports a single container violation. Offset is
// the byte offset of the offending field when known, or -1 when the
// violation is not tied to a specific byte (e.g. a duplicate id detected
// only after reading both occurrences). LayerID names the offending layer
// when the violation is layer-scoped.
type Error struct {
	Kind    Kind
	Offset  int64
	LayerID string
	Err     error // wrapped cause, e.g. an io or json error; may be nil
}

func (e *Error) Error() string {
	switch {
	case e.LayerID != "" && e.Err != nil:
		return fmt.Sprintf("shacfile: %s: layer %q: %v", e.Kind, e.LayerID, e.Err)
	case e.LayerID != "":
		return fmt.Sprintf("shacfile: %s: layer %q", e.Kind, e.LayerID)
	case e.Offset >= 0 && e.Err != nil:
		return fmt.Sprintf("shacfile: %s at offset %d: %v", e.Kind, e.Offset, e.Err)
	case e.Offset >= 0:
		return fmt.Sprintf("shacfile: %s at offset %d", e.Kind, e.Offset)
	case e.Err != nil:
		return fmt.Sprintf("shacfile: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("shacfile: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target names the same Kind as e, so callers can
// write errors.Is(err, shacfile.ErrKind(shacfile.InvalidMagic)).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// ErrKind builds a bare sentinel for use with errors.Is, matching any
// *Error of the same Kind regardless of offset or cause.
func ErrKind(k Kind) error {
	return &Error{Kind: k, Offset: -1}
}

func newErr(k Kind, offset int64, cause error) *Error {
	return &Error{Kind: k, Offset: offset, Err: cause}
}

func layerErr(k Kind, id string, cause error) *Error {
	return &Error{Kind: k, Offset: -1, LayerID: id, Err: cause}
}
