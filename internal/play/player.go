package play

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/pcmcapture/internal/recorder"
)

// players in order of preference
var players = []string{"vlc", "mpv", "ffplay", "aplay"}

type Player struct {
	layout   recorder.Layout
	lookPath func(string) (string, error)
}

func New(layout recorder.Layout) *Player {
	return &Player{layout: layout, lookPath: exec.LookPath}
}

// Play plays the container recorded under name
func (p *Player) Play(name string) error {
	cleanName := recorder.CleanFileName(name)
	if cleanName == "" {
		return fmt.Errorf("%q does not contain a usable file name", name)
	}
	audioFile := p.layout.ContainerPath(cleanName)

	if _, err := os.Stat(audioFile); err != nil {
		return fmt.Errorf("audio file not found: %s", audioFile)
	}

	player, err := p.findAudioPlayer()
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}
	slog.Info("Playing", "file", audioFile, "player", player)

	cmd := playerCommand(player, audioFile)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}
	return nil
}

func playerCommand(player, file string) *exec.Cmd {
	switch player {
	case "vlc":
		return exec.Command("vlc", "--play-and-exit", file)
	case "mpv":
		return exec.Command("mpv", "--no-video", file)
	case "ffplay":
		return exec.Command("ffplay", "-nodisp", "-autoexit", file)
	default:
		return exec.Command(player, file)
	}
}

func (p *Player) findAudioPlayer() (string, error) {
	for _, player := range players {
		if _, err := p.lookPath(player); err == nil {
			return player, nil
		}
	}
	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}
