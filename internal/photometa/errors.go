package photometa

import "fmt"

// DecodeKind classifies a decode failure.
type DecodeKind int

const (
	// FileUnreadable means the file could not be read or its segment
	// structure could not be parsed.
	FileUnreadable DecodeKind = iota + 1
	// UnsupportedFormat means the file is not a JPEG.
	UnsupportedFormat
	// MalformedPayload means the description tag is not a structured
	// payload. Decode recovers from it with an empty record.
	MalformedPayload
)

func (k DecodeKind) String() string {
	switch k {
	case FileUnreadable:
		return "file unreadable"
	case UnsupportedFormat:
		return "unsupported format"
	case MalformedPayload:
		return "malformed payload"
	default:
		return "unknown"
	}
}

// DecodeError reports why a photo's metadata could not be decoded.
type DecodeError struct {
	Kind DecodeKind
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("photometa: decode %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("photometa: decode %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeKind classifies an encode failure.
type EncodeKind int

const (
	// ExifWriteFailed means the new metadata could not be written. The
	// original file is left untouched.
	ExifWriteFailed EncodeKind = iota + 1
)

func (k EncodeKind) String() string {
	if k == ExifWriteFailed {
		return "exif write failed"
	}
	return "unknown"
}

// EncodeError reports a failed metadata write.
type EncodeError struct {
	Kind EncodeKind
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("photometa: encode %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
