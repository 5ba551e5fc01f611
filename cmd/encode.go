package cmd

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/pcmcapture/internal/audio"
	"github.com/audiolibrelab/pcmcapture/internal/wav"

	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode [raw-file] [destination]",
	Short: "Wrap an existing raw PCM file in a WAV container",
	Long: `Build a canonical WAV container from a raw 16-bit PCM file. The sample rate and
channel layout default to the recorder section of the active profile.
With --append the payload is merged into an existing container of the same format.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawPath, destPath := args[0], args[1]

		rate, _ := cmd.Flags().GetInt("rate")
		layoutName, _ := cmd.Flags().GetString("layout")
		appendMode, _ := cmd.Flags().GetBool("append")

		if rate == 0 {
			rate = cfg.Recorder.SampleRate
		}
		if layoutName == "" {
			layoutName = cfg.Recorder.ChannelLayout
		}
		layout, err := audio.ParseChannelLayout(layoutName)
		if err != nil {
			return err
		}
		if rate <= 0 {
			return fmt.Errorf("invalid sample rate: %d", rate)
		}

		format := wav.Format{
			SampleRate:    uint32(rate),
			Channels:      uint16(layout.Channels()),
			BitsPerSample: 16,
		}
		if err := wav.Encode(rawPath, destPath, format, appendMode); err != nil {
			return err
		}
		slog.Info("Container written", "raw", rawPath, "file", destPath, "append", appendMode)

		info, err := wav.Inspect(destPath)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d Hz, %d ch, %s\n", destPath, info.Header.SampleRate, info.Header.NumChannels, info.Duration)
		return nil
	},
}

func init() {
	encodeCmd.Flags().Int("rate", 0, "sample rate of the raw payload (default from config)")
	encodeCmd.Flags().String("layout", "", "channel layout of the raw payload: mono or stereo (default from config)")
	encodeCmd.Flags().Bool("append", false, "merge into an existing container instead of replacing it")
}
