package cmd

import (
	"fmt"

	"github.com/audiolibrelab/pcmcapture/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage pcmcapture configuration profiles.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(out))

		if withOrigins, _ := cmd.Flags().GetBool("inheritance"); withOrigins {
			fmt.Printf("\n# origins\n")
			for _, line := range cfg.InheritanceReport() {
				fmt.Printf("# %s\n", line)
			}
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := configPath()
		if err := config.WriteDefault(path, force); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use [profile]",
	Short: "Set the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UpdateActiveProfile(configPath(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Active profile: %s\n", args[0])
		return nil
	},
}

var configProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the profiles of the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := config.ProfileNames(configPath())
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

func init() {
	configShowCmd.Flags().Bool("inheritance", false, "print where each value came from")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configUseCmd)
	configCmd.AddCommand(configProfilesCmd)
}
