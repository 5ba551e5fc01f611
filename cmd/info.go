package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/audiolibrelab/pcmcapture/internal/recorder"
	"github.com/audiolibrelab/pcmcapture/internal/wav"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [name | file.wav]",
	Short: "Show resolved configuration, file paths and container details for a recording",
	Long: `Display the file paths for the given recording name, the resolved configuration
with inheritance indicators, and the header of its WAV container when one exists.
Passing a path to a .wav file inspects that file directly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := args[0]

		if strings.HasSuffix(strings.ToLower(arg), ".wav") {
			if _, err := os.Stat(arg); err == nil {
				return printContainer(arg)
			}
		}

		layout := cfg.Layout()
		cleanName := recorder.CleanFileName(arg)
		if cleanName == "" {
			return fmt.Errorf("%q does not contain a usable file name", arg)
		}
		rawPath := layout.RawPath(cleanName)
		containerPath := layout.ContainerPath(cleanName)

		fmt.Printf("=== FILE PATHS ===\n")
		fmt.Printf("raw: %s%s\n", rawPath, existsMarker(rawPath))
		fmt.Printf("container: %s%s\n", containerPath, existsMarker(containerPath))
		fmt.Printf("clean_name: %s\n", cleanName)

		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")

		fmt.Printf("\n[Recorder]\n")
		printField("backend", cfg.Recorder.Backend, "recorder.backend")
		printField("source", cfg.Recorder.Source, "recorder.source")
		if cfg.Recorder.Target != "" {
			printField("target", cfg.Recorder.Target, "recorder.target")
		}
		printField("sample_rate", cfg.Recorder.SampleRate, "recorder.sample_rate")
		printField("channel_layout", cfg.Recorder.ChannelLayout, "recorder.channel_layout")
		printField("bit_depth", cfg.Recorder.BitDepth, "recorder.bit_depth")

		fmt.Printf("\n[Output]\n")
		printField("directory", cfg.Output.Directory, "output.directory")
		printField("raw_extension", cfg.Output.RawExtension, "output.raw_extension")
		printField("container_extension", cfg.Output.ContainerExtension, "output.container_extension")
		printField("append", cfg.AppendMode(), "output.append")

		if _, err := os.Stat(containerPath); err == nil {
			fmt.Println()
			return printContainer(containerPath)
		}
		return nil
	},
}

func printField(name string, value any, key string) {
	fmt.Printf("%s: %v %s\n", name, value, getInheritanceIndicator(cfg.Inheritance[key]))
}

func existsMarker(path string) string {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return " (missing)"
	}
	return ""
}

// printContainer shows the header fields and the scanned payload of a container
func printContainer(path string) error {
	info, err := wav.Inspect(path)
	if err != nil {
		return fmt.Errorf("failed to inspect container: %w", err)
	}
	h := info.Header

	fmt.Printf("=== CONTAINER ===\n")
	fmt.Printf("path: %s\n", info.Path)
	fmt.Printf("file_size: %d\n", info.FileSize)
	fmt.Printf("sample_rate: %d\n", h.SampleRate)
	fmt.Printf("channels: %d\n", h.NumChannels)
	fmt.Printf("bits_per_sample: %d\n", h.BitsPerSample)
	fmt.Printf("byte_rate: %d\n", h.ByteRate)
	fmt.Printf("block_align: %d\n", h.BlockAlign)
	fmt.Printf("data_size: %d\n", h.DataSize())
	fmt.Printf("samples: %d\n", info.Samples)
	fmt.Printf("duration: %s\n", info.Duration)
	fmt.Printf("peak: %.3f\n", info.Peak)
	return nil
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "built-in":
		return "[built-in]"
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	case "global":
		return "[global]"
	default:
		return "[unknown]"
	}
}
