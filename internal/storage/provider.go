// Package storage defines the project file-system gateway.
package storage

// Provider is the file access gateway consumed by the project core.
// All paths are relative to the project root.
type Provider interface {
	// ReadFile returns the raw bytes of the file at path.
	ReadFile(path string) ([]byte, error)
	// WriteFile atomically replaces the file at path.
	WriteFile(path string, content []byte) error
	// ListFiles returns the sorted names of regular files directly under dir.
	ListFiles(dir string) ([]string, error)
	// RenameFile moves oldPath to newPath.
	RenameFile(oldPath, newPath string) error
}
