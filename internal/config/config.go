package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/pcmcapture/internal/audio"
	"github.com/audiolibrelab/pcmcapture/internal/logging"
	"github.com/audiolibrelab/pcmcapture/internal/recorder"
)

// EnvPrefix prefixes environment overrides, e.g. PCMCAPTURE_ACTIVE_PROFILE
const EnvPrefix = "PCMCAPTURE"

const (
	minSampleRate = 8000
	maxSampleRate = 192000
)

type GlobalsConfig struct {
	Output GlobalOutputConfig `mapstructure:"output" yaml:"output"`
}

type GlobalOutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type RootConfig struct {
	ActiveProfile string             `mapstructure:"active_profile" yaml:"active_profile"`
	Globals       *GlobalsConfig     `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Profiles      map[string]*Config `mapstructure:"profiles" yaml:"profiles"`
}

type Config struct {
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`

	// Internal field to track inheritance information for config show
	Inheritance map[string]string `mapstructure:"-" yaml:"-"`
}

type RecorderConfig struct {
	Backend       string `mapstructure:"backend" yaml:"backend"` // "auto", "malgo", "portaudio", "pipewire"
	Source        string `mapstructure:"source" yaml:"source"`   // "mic", "loopback"
	Target        string `mapstructure:"target" yaml:"target,omitempty"`
	SampleRate    int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	ChannelLayout string `mapstructure:"channel_layout" yaml:"channel_layout"` // "mono", "stereo"
	BitDepth      int    `mapstructure:"bit_depth" yaml:"bit_depth"`
}

type OutputConfig struct {
	Directory          string `mapstructure:"directory" yaml:"directory"`
	RawExtension       string `mapstructure:"raw_extension" yaml:"raw_extension"`
	ContainerExtension string `mapstructure:"container_extension" yaml:"container_extension"`
	Append             *bool  `mapstructure:"append,omitempty" yaml:"append,omitempty"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days,omitempty"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address" yaml:"address,omitempty"`
}

// Default returns the built-in preset: 44100 Hz mono 16-bit microphone
// capture into ~/Audio/pcmcapture.
func Default() *Config {
	appendMode := false
	return &Config{
		Recorder: RecorderConfig{
			Backend:       "auto",
			Source:        "mic",
			SampleRate:    44100,
			ChannelLayout: "mono",
			BitDepth:      16,
		},
		Output: OutputConfig{
			Directory:          expandPath("~/Audio/pcmcapture"),
			RawExtension:       ".pcm",
			ContainerExtension: ".wav",
			Append:             &appendMode,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// DefaultPath is ~/.config/pcmcapture.yaml
func DefaultPath() string {
	return os.ExpandEnv("$HOME/.config/pcmcapture.yaml")
}

// LoadOrDefault loads configFile, falling back to Default when the file
// does not exist. A requested profile without a file is an error.
func LoadOrDefault(configFile, profile string) (*Config, error) {
	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		if profile != "" && profile != "default" {
			return nil, fmt.Errorf("configuration profile '%s' requested but %s does not exist", profile, configFile)
		}
		return Default(), nil
	}
	return LoadWithProfile(configFile, profile)
}

// LoadWithProfile reads configFile and resolves the given profile, or the
// file's active_profile when profile is empty
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return Resolve(rootConfig, profile)
}

// Resolve selects a profile from rootConfig and applies inheritance:
// built-in defaults, then the default profile, then the selected profile,
// then globals.
func Resolve(rootConfig *RootConfig, profile string) (*Config, error) {
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveProfile
	}
	if configName == "" {
		configName = "default"
	}

	// viper lowercases map keys
	configName = strings.ToLower(configName)

	selectedProfile, exists := rootConfig.Profiles[configName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	var selectedConfig *Config
	if configName == "default" {
		selectedConfig = mergeConfigs(Default(), selectedProfile, "profile-specific")
	} else {
		selectedConfig = mergeConfigs(Default(), rootConfig.Profiles["default"], "inherited")
		selectedConfig = mergeConfigs(selectedConfig, selectedProfile, "profile-specific")
	}

	// Global output directory takes priority over profile-specific directory
	if rootConfig.Globals != nil && rootConfig.Globals.Output.Directory != "" {
		selectedConfig.Output.Directory = rootConfig.Globals.Output.Directory
		selectedConfig.Inheritance["output.directory"] = "global"
	}

	selectedConfig.Output.Directory = expandPath(selectedConfig.Output.Directory)
	selectedConfig.Logging.File = expandPath(selectedConfig.Logging.File)

	if err := selectedConfig.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed for profile '%s': %w", configName, err)
	}
	return selectedConfig, nil
}

// ValidateConfigurationFormat reads the configuration file and returns the
// parsed root. Environment variables prefixed with PCMCAPTURE override keys.
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	// Read through Get so PCMCAPTURE_ACTIVE_PROFILE applies even when the key
	// is absent from the file
	if active := v.GetString("active_profile"); active != "" {
		rootConfig.ActiveProfile = active
	}

	if len(rootConfig.Profiles) == 0 {
		return nil, fmt.Errorf("profiles section is required and cannot be empty")
	}
	for name, p := range rootConfig.Profiles {
		if p == nil {
			return nil, fmt.Errorf("profile '%s' is empty", name)
		}
		if err := validatePartial(p); err != nil {
			return nil, fmt.Errorf("invalid profile '%s': %w", name, err)
		}
	}
	return &rootConfig, nil
}

// mergeConfigs overlays every field the profile sets onto base and marks
// those fields with origin. Fields nobody set are "built-in".
func mergeConfigs(base, profile *Config, origin string) *Config {
	result := &Config{Inheritance: map[string]string{}}
	if base != nil {
		result.Recorder = base.Recorder
		result.Output = base.Output
		result.Logging = base.Logging
		result.Metrics = base.Metrics
		for k, v := range base.Inheritance {
			result.Inheritance[k] = v
		}
	}
	for _, k := range inheritanceKeys {
		if _, ok := result.Inheritance[k]; !ok {
			result.Inheritance[k] = "built-in"
		}
	}

	if profile == nil {
		return result
	}

	set := func(key string, apply bool, fn func()) {
		if apply {
			fn()
			result.Inheritance[key] = origin
		}
	}
	r, o, l := profile.Recorder, profile.Output, profile.Logging
	set("recorder.backend", r.Backend != "", func() { result.Recorder.Backend = r.Backend })
	set("recorder.source", r.Source != "", func() { result.Recorder.Source = r.Source })
	set("recorder.target", r.Target != "", func() { result.Recorder.Target = r.Target })
	set("recorder.sample_rate", r.SampleRate != 0, func() { result.Recorder.SampleRate = r.SampleRate })
	set("recorder.channel_layout", r.ChannelLayout != "", func() { result.Recorder.ChannelLayout = r.ChannelLayout })
	set("recorder.bit_depth", r.BitDepth != 0, func() { result.Recorder.BitDepth = r.BitDepth })
	set("output.directory", o.Directory != "", func() { result.Output.Directory = o.Directory })
	set("output.raw_extension", o.RawExtension != "", func() { result.Output.RawExtension = o.RawExtension })
	set("output.container_extension", o.ContainerExtension != "", func() { result.Output.ContainerExtension = o.ContainerExtension })
	set("output.append", o.Append != nil, func() {
		appendMode := *o.Append
		result.Output.Append = &appendMode
	})
	set("logging.level", l.Level != "", func() { result.Logging.Level = l.Level })
	set("logging.file", l.File != "", func() { result.Logging.File = l.File })
	set("logging.max_size_mb", l.MaxSizeMB != 0, func() { result.Logging.MaxSizeMB = l.MaxSizeMB })
	set("logging.max_backups", l.MaxBackups != 0, func() { result.Logging.MaxBackups = l.MaxBackups })
	set("logging.max_age_days", l.MaxAgeDays != 0, func() { result.Logging.MaxAgeDays = l.MaxAgeDays })
	set("metrics.address", profile.Metrics.Address != "", func() { result.Metrics.Address = profile.Metrics.Address })

	return result
}

var inheritanceKeys = []string{
	"recorder.backend", "recorder.source", "recorder.target", "recorder.sample_rate",
	"recorder.channel_layout", "recorder.bit_depth",
	"output.directory", "output.raw_extension", "output.container_extension", "output.append",
	"logging.level", "logging.file", "logging.max_size_mb", "logging.max_backups", "logging.max_age_days",
	"metrics.address",
}

// InheritanceReport lists "key: origin" lines in key order
func (c *Config) InheritanceReport() []string {
	keys := make([]string, 0, len(c.Inheritance))
	for k := range c.Inheritance {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%s: %s", k, c.Inheritance[k])
	}
	return lines
}

// Validate checks a fully resolved configuration
func (c *Config) Validate() error {
	if err := validatePartial(c); err != nil {
		return err
	}
	if c.Recorder.SampleRate == 0 {
		return fmt.Errorf("recorder.sample_rate is required")
	}
	if c.Output.Directory == "" {
		return fmt.Errorf("output.directory is required")
	}
	if c.Output.RawExtension == "" || c.Output.ContainerExtension == "" {
		return fmt.Errorf("output extensions are required")
	}
	if c.Output.RawExtension == c.Output.ContainerExtension {
		return fmt.Errorf("output.raw_extension and output.container_extension must differ, both are %q", c.Output.RawExtension)
	}
	return nil
}

// validatePartial checks only the fields that are set, so profiles that
// inherit most values still validate
func validatePartial(c *Config) error {
	r := c.Recorder
	switch strings.ToLower(r.Backend) {
	case "", "auto", "malgo", "miniaudio", "portaudio", "pipewire":
	default:
		return fmt.Errorf("recorder.backend must be one of auto, malgo, portaudio, pipewire, got: %s", r.Backend)
	}
	if r.Source != "" {
		if _, err := audio.ParseSource(r.Source); err != nil {
			return fmt.Errorf("recorder.source must be 'mic' or 'loopback', got: %s", r.Source)
		}
	}
	if r.SampleRate != 0 && (r.SampleRate < minSampleRate || r.SampleRate > maxSampleRate) {
		return fmt.Errorf("recorder.sample_rate must be between %d and %d, got: %d", minSampleRate, maxSampleRate, r.SampleRate)
	}
	if r.ChannelLayout != "" {
		if _, err := audio.ParseChannelLayout(r.ChannelLayout); err != nil {
			return fmt.Errorf("recorder.channel_layout must be 'mono' or 'stereo', got: %s", r.ChannelLayout)
		}
	}
	if r.BitDepth != 0 {
		if _, err := audio.ParseBitDepth(r.BitDepth); err != nil {
			return fmt.Errorf("recorder.bit_depth must be 16, got: %d", r.BitDepth)
		}
	}

	o := c.Output
	for key, ext := range map[string]string{
		"output.raw_extension":       o.RawExtension,
		"output.container_extension": o.ContainerExtension,
	} {
		if ext != "" && (!strings.HasPrefix(ext, ".") || len(ext) < 2 || strings.ContainsAny(ext, `/\`)) {
			return fmt.Errorf("%s must look like '.ext', got: %s", key, ext)
		}
	}

	if c.Logging.Level != "" {
		if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation limits must be >= 0")
	}
	return nil
}

// CaptureConfig converts the recorder section into controller parameters
func (c *Config) CaptureConfig() (recorder.Config, error) {
	source, err := audio.ParseSource(c.Recorder.Source)
	if err != nil {
		return recorder.Config{}, err
	}
	layout, err := audio.ParseChannelLayout(c.Recorder.ChannelLayout)
	if err != nil {
		return recorder.Config{}, err
	}
	depth, err := audio.ParseBitDepth(c.Recorder.BitDepth)
	if err != nil {
		return recorder.Config{}, err
	}
	if c.Recorder.SampleRate <= 0 {
		return recorder.Config{}, fmt.Errorf("invalid sample rate: %d", c.Recorder.SampleRate)
	}
	return recorder.Config{
		Source:     source,
		SampleRate: uint32(c.Recorder.SampleRate),
		Layout:     layout,
		Depth:      depth,
	}, nil
}

// Layout returns the file layout of the output section
func (c *Config) Layout() recorder.Layout {
	return recorder.Layout{
		Dir:          c.Output.Directory,
		RawExt:       c.Output.RawExtension,
		ContainerExt: c.Output.ContainerExtension,
	}
}

// AppendMode reports whether encodes merge into existing containers
func (c *Config) AppendMode() bool {
	return c.Output.Append != nil && *c.Output.Append
}

// LoggingOptions returns the logging section in logging package terms
func (c *Config) LoggingOptions(verbose int) logging.Config {
	return logging.Config{
		Verbose:    verbose,
		Level:      c.Logging.Level,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
}

// WriteDefault writes a starter configuration with a single default
// profile. An existing file is left alone unless force is set.
func WriteDefault(configFile string, force bool) error {
	if _, err := os.Stat(configFile); err == nil && !force {
		return fmt.Errorf("config file %s already exists", configFile)
	}

	root := RootConfig{
		ActiveProfile: "default",
		Profiles:      map[string]*Config{"default": Default()},
	}
	out, err := yaml.Marshal(root)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(configFile, out, 0644)
}

// UpdateActiveProfile updates the active_profile field in the config file
func UpdateActiveProfile(configFile, newActiveProfile string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return err
	}
	newActiveProfile = strings.ToLower(newActiveProfile)
	if _, ok := rootConfig.Profiles[newActiveProfile]; !ok {
		return fmt.Errorf("configuration profile '%s' not found", newActiveProfile)
	}

	// Create a new viper instance to avoid interfering with other readers
	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	v.Set("active_profile", newActiveProfile)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}
	return nil
}

// ProfileNames returns the profiles defined in configFile, sorted
func ProfileNames(configFile string) ([]string, error) {
	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rootConfig.Profiles))
	for name := range rootConfig.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
