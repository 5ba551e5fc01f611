package play

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/pcmcapture/internal/recorder"
)

func fakeLookPath(available ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, a := range available {
			if a == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", exec.ErrNotFound
	}
}

func TestFindAudioPlayerPreference(t *testing.T) {
	p := New(recorder.DefaultLayout(t.TempDir()))

	p.lookPath = fakeLookPath("aplay", "mpv")
	player, err := p.findAudioPlayer()
	require.NoError(t, err)
	assert.Equal(t, "mpv", player)

	p.lookPath = fakeLookPath()
	_, err = p.findAudioPlayer()
	assert.ErrorContains(t, err, "vlc, mpv, ffplay, aplay")
}

func TestPlayMissingFile(t *testing.T) {
	p := New(recorder.DefaultLayout(t.TempDir()))
	p.lookPath = func(string) (string, error) {
		return "", errors.New("lookup must not happen before the file check")
	}

	err := p.Play("no such take")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_take.wav")
}

func TestPlayRejectsEmptyName(t *testing.T) {
	p := New(recorder.DefaultLayout(t.TempDir()))
	assert.Error(t, p.Play("!!!"))
}

func TestPlayerCommand(t *testing.T) {
	assert.Equal(t, []string{"vlc", "--play-and-exit", "a.wav"}, playerCommand("vlc", "a.wav").Args)
	assert.Equal(t, []string{"aplay", "a.wav"}, playerCommand("aplay", "a.wav").Args)
}
