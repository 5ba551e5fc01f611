package recorder

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"t1", "t1"},
		{"my take", "my_take"},
		{"  Jam Session #3!  ", "Jam_Session_3"},
		{"../../etc/passwd", "etcpasswd"},
		{"keep-dash_and_underscore", "keep-dash_and_underscore"},
		{"???", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanFileName(tt.in), tt.in)
	}
}

func TestLayoutPaths(t *testing.T) {
	l := DefaultLayout("/data/rec")
	assert.Equal(t, filepath.Join("/data/rec", "my_take.pcm"), l.RawPath("my take"))
	assert.Equal(t, filepath.Join("/data/rec", "my_take.wav"), l.ContainerPath("my take"))

	custom := Layout{Dir: "/x", RawExt: ".raw", ContainerExt: ".wave"}
	assert.Equal(t, "/x/a.raw", custom.RawPath("a"))
	assert.Equal(t, "/x/a.wave", custom.ContainerPath("a"))

	// Empty extensions fall back to the defaults.
	assert.Equal(t, "/x/a.pcm", Layout{Dir: "/x"}.RawPath("a"))
}
