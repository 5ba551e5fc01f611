package recorder

import (
	"path/filepath"
	"strings"
)

// Layout resolves where the files of a named recording live. The raw
// payload and its container share a base name in Dir.
type Layout struct {
	Dir          string
	RawExt       string
	ContainerExt string
}

// DefaultLayout stores ".pcm" payloads and ".wav" containers in dir
func DefaultLayout(dir string) Layout {
	return Layout{Dir: dir, RawExt: ".pcm", ContainerExt: ".wav"}
}

// RawPath returns the raw payload path for name
func (l Layout) RawPath(name string) string {
	return filepath.Join(l.Dir, CleanFileName(name)+l.rawExt())
}

// ContainerPath returns the container path for name
func (l Layout) ContainerPath(name string) string {
	return filepath.Join(l.Dir, CleanFileName(name)+l.containerExt())
}

func (l Layout) rawExt() string {
	if l.RawExt == "" {
		return ".pcm"
	}
	return l.RawExt
}

func (l Layout) containerExt() string {
	if l.ContainerExt == "" {
		return ".wav"
	}
	return l.ContainerExt
}

// CleanFileName sanitizes a filename
// Allows: letters, numbers, spaces, hyphens, underscores
func CleanFileName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}
