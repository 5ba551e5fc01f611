package cmd

import (
	"github.com/audiolibrelab/pcmcapture/internal/play"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [name]",
	Short: "Play the WAV container of a recording",
	Long: `Play the container written for the named recording.
Uses the first of vlc, mpv, ffplay or aplay found on PATH.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return play.New(cfg.Layout()).Play(args[0])
	},
}
