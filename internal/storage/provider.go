// Package storage defines the photo library file-system abstraction.
package storage

// Provider is the interface for photo library file operations.
type Provider interface {
	// Root returns the absolute library directory.
	Root() string
	// List returns the slash-separated paths (relative to root) of every
	// JPEG under dir, in directory-walk order.
	List(dir string) ([]string, error)
	// Abs resolves a root-relative path, rejecting escapes from root.
	Abs(path string) (string, error)
	// Rel converts an absolute path under root to its root-relative form.
	Rel(abs string) (string, error)
	// SkipDir reports whether directories with this base name are
	// excluded from the library.
	SkipDir(name string) bool
}
