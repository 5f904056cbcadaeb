// Package fileid identifies watched source files and detects whether they
// changed since they were last ingested.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const prefix = "src:"

// SourceID returns a stable identifier for the file at path.
// Relative paths are resolved against the working directory first.
func SourceID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	hash := sha256.Sum256([]byte(filepath.Clean(abs)))
	return prefix + hex.EncodeToString(hash[:16]), nil
}

// Fingerprint captures the identity and version of a source file.
type Fingerprint struct {
	SourceID string
	Path     string
	Mtime    int64
	Size     int64
}

// Stat builds a Fingerprint for the regular file at path.
func Stat(path string) (Fingerprint, error) {
	id, err := SourceID(path)
	if err != nil {
		return Fingerprint{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	if !info.Mode().IsRegular() {
		return Fingerprint{}, fmt.Errorf("%s is not a regular file", path)
	}
	abs, _ := filepath.Abs(path)
	return Fingerprint{
		SourceID: id,
		Path:     abs,
		Mtime:    info.ModTime().UnixNano(),
		Size:     info.Size(),
	}, nil
}

// Matches reports whether a previously recorded mtime and size describe the
// same version of the file.
func (f Fingerprint) Matches(mtime, size int64) bool {
	return f.Mtime == mtime && f.Size == size
}
