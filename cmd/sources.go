package cmd

import (
	"fmt"
	"runtime"

	"github.com/audiolibrelab/pcmcapture/internal/audio"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available audio sources",
	Long: `List the capture endpoints of the configured backend. With --check, verify
that a PipeWire port exists exactly once before using it as recorder.target.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetString("check"); port != "" {
			if err := audio.NewPipeWire().ValidatePort(port); err != nil {
				return err
			}
			fmt.Printf("✅ %s is available\n", port)
			return nil
		}
		return listAvailableSources(cfg.Recorder.Backend)
	},
}

func listAvailableSources(backend string) error {
	fmt.Printf("🎵 Audio Sources (%s, backend %s)\n", runtime.GOOS, backend)
	fmt.Printf("═══════════════════════════════════════\n\n")

	sources, err := audio.ListSources(backend)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	fmt.Printf("📋 SOURCES (%d found):\n", len(sources))
	for i, source := range sources {
		fmt.Printf("  %d. %s\n", i+1, source)
	}

	fmt.Printf("\n💡 Available backends:")
	for _, b := range audio.GetAvailableBackends() {
		fmt.Printf(" %s", b)
	}
	fmt.Printf("\n  • Select with recorder.backend, pin a device with recorder.target\n\n")
	return nil
}

func init() {
	sourcesCmd.Flags().String("check", "", "validate a PipeWire port name")
}
