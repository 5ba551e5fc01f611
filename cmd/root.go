package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/audiolibrelab/pcmcapture/internal/config"
	"github.com/audiolibrelab/pcmcapture/internal/logging"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int
	logCloser    io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "pcmcapture [name]",
	Short: "Capture raw PCM audio and wrap it in WAV containers",
	Long: `pcmcapture records 16-bit PCM from a microphone or loopback source into a
raw file, then builds a canonical 44-byte-header WAV container next to it when
the session is released.

When a name is provided, it acts as 'pcmcapture record [name]'.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Writing a starter config must work before any config exists
		if cmd.Name() == "init" {
			return setupLogging(nil, verboseLevel)
		}

		var err error
		if cfgFile != "" {
			cfg, err = config.LoadWithProfile(cfgFile, profile)
		} else {
			cfg, err = config.LoadOrDefault(config.DefaultPath(), profile)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return setupLogging(cfg, verboseLevel)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// If a name is provided, delegate to record command
		if len(args) == 1 {
			return recordCmd.RunE(cmd, args)
		}
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/pcmcapture.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_profile from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=driver debug output")

	addRecordFlags(rootCmd)

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
}

// setupLogging configures slog from the verbose level and the logging
// section of the loaded config
func setupLogging(c *config.Config, level int) error {
	opts := logging.Config{Verbose: level}
	if c != nil {
		opts = c.LoggingOptions(level)
	}

	logger, closer, err := logging.Setup(opts, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)
	logCloser = closer

	// Driver tracing for the pipewire backend child process
	if level >= 2 {
		os.Setenv("PIPEWIRE_DEBUG", "3")
	}
	return nil
}
