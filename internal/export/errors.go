package export

import "fmt"

// Kind classifies an export failure.
type Kind int

const (
	// DirCreateFailed means the destination could not be reset.
	DirCreateFailed Kind = iota + 1
	// CopyFailed means one source could not be copied.
	CopyFailed
)

func (k Kind) String() string {
	switch k {
	case DirCreateFailed:
		return "dir_create_failed"
	case CopyFailed:
		return "copy_failed"
	}
	return "unknown"
}

// ExportError reports which path an export stopped at.
type ExportError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export: %s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
