package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/audiolibrelab/recbridge/internal/audio"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding file values
const EnvPrefix = "RECBRIDGE"

type RootConfig struct {
	ActiveConfig string                    `mapstructure:"active_config" yaml:"active_config"`
	Globals      *GlobalsConfig            `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Server       *ServerConfig             `mapstructure:"server,omitempty" yaml:"server,omitempty"`
	Configs      map[string]*ConfigProfile `mapstructure:"configs" yaml:"configs"`
}

type GlobalsConfig struct {
	Directories DirectoriesConfig `mapstructure:"directories" yaml:"directories"`
}

// DirectoriesConfig holds the well-known directories exposed as path constants
type DirectoriesConfig struct {
	Documents string `mapstructure:"documents" yaml:"documents"`
	Pictures  string `mapstructure:"pictures" yaml:"pictures"`
	Caches    string `mapstructure:"caches" yaml:"caches"`
	Music     string `mapstructure:"music" yaml:"music"`
	Downloads string `mapstructure:"downloads" yaml:"downloads"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// ConfigProfile is one entry under configs. Zero values inherit.
type ConfigProfile struct {
	Audio        AudioConfig        `mapstructure:"audio" yaml:"audio"`
	Recording    RecordingDefaults  `mapstructure:"recording" yaml:"recording"`
	Notification NotificationConfig `mapstructure:"notification" yaml:"notification"`
	Battery      BatteryConfig      `mapstructure:"battery" yaml:"battery"`
	Progress     ProgressConfig     `mapstructure:"progress" yaml:"progress"`
}

// Config is a fully resolved profile
type Config struct {
	Name         string             `mapstructure:"-" yaml:"name"`
	Audio        AudioConfig        `mapstructure:"audio" yaml:"audio"`
	Recording    RecordingDefaults  `mapstructure:"recording" yaml:"recording"`
	Notification NotificationConfig `mapstructure:"notification" yaml:"notification"`
	Battery      BatteryConfig      `mapstructure:"battery" yaml:"battery"`
	Progress     ProgressConfig     `mapstructure:"progress" yaml:"progress"`
	Directories  DirectoriesConfig  `mapstructure:"directories" yaml:"directories"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`

	// Where each overridable setting came from, for config show
	Inheritance map[string]string `mapstructure:"-" yaml:"-"`
}

type AudioConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // "malgo", "auto"
}

// RecordingDefaults are the settings used by the record command
type RecordingDefaults struct {
	AudioSource   int    `mapstructure:"audio_source" yaml:"audio_source"`
	OutputFormat  string `mapstructure:"output_format" yaml:"output_format"`
	AudioEncoding string `mapstructure:"audio_encoding" yaml:"audio_encoding"`
	SampleRate    int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels      int    `mapstructure:"channels" yaml:"channels"`
	BitRate       int    `mapstructure:"bit_rate" yaml:"bit_rate"`
	IncludeBase64 *bool  `mapstructure:"include_base64,omitempty" yaml:"include_base64,omitempty"`
}

type NotificationConfig struct {
	Title      string `mapstructure:"title" yaml:"title"`
	TextPrefix string `mapstructure:"text_prefix" yaml:"text_prefix"`
	ChannelID  string `mapstructure:"channel_id" yaml:"channel_id"`
}

type BatteryConfig struct {
	Enabled      *bool         `mapstructure:"enabled,omitempty" yaml:"enabled,omitempty"`
	LowLevel     int           `mapstructure:"low_level" yaml:"low_level"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

type ProgressConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// IsEnabled reports whether the battery watchdog should run. Unset means enabled.
func (b BatteryConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// Settings renders the defaults as a prepareRecordingAtPath settings map
func (r RecordingDefaults) Settings() map[string]interface{} {
	settings := map[string]interface{}{
		"AudioSource":          r.AudioSource,
		"OutputFormat":         r.OutputFormat,
		"AudioEncoding":        r.AudioEncoding,
		"SampleRate":           r.SampleRate,
		"Channels":             r.Channels,
		"AudioEncodingBitRate": r.BitRate,
	}
	if r.IncludeBase64 != nil {
		settings["IncludeBase64"] = *r.IncludeBase64
	}
	return settings
}

func boolPtr(b bool) *bool { return &b }

// Default returns the built-in configuration used when no file is given
func Default() *Config {
	home, _ := os.UserHomeDir()
	caches, err := os.UserCacheDir()
	if err != nil {
		caches = filepath.Join(home, ".cache")
	}

	return &Config{
		Name:  "default",
		Audio: AudioConfig{Backend: "auto"},
		Recording: RecordingDefaults{
			AudioSource:   0,
			OutputFormat:  "wav",
			AudioEncoding: "pcm_16bit",
			SampleRate:    44100,
			Channels:      1,
			BitRate:       128000,
			IncludeBase64: boolPtr(false),
		},
		Notification: NotificationConfig{
			Title:      "Recording",
			TextPrefix: "Elapsed - ",
			ChannelID:  "ForegroundServiceChannel",
		},
		Battery: BatteryConfig{
			Enabled:      boolPtr(true),
			LowLevel:     5,
			PollInterval: 30 * time.Second,
		},
		Progress: ProgressConfig{Interval: time.Second},
		Directories: DirectoriesConfig{
			Documents: filepath.Join(home, "Documents"),
			Pictures:  filepath.Join(home, "Pictures"),
			Caches:    filepath.Join(caches, "recbridge"),
			Music:     filepath.Join(home, "Music"),
			Downloads: filepath.Join(home, "Downloads"),
		},
		Server:      ServerConfig{Host: "localhost", Port: 8089},
		Inheritance: map[string]string{},
	}
}

// LoadWithProfile loads configFile and resolves profile, or active_config when
// profile is empty. The selected profile is merged over the default profile,
// which is itself merged over the built-in defaults.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = "default"
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	result := Default()
	if defaultProfile, exists := rootConfig.Configs["default"]; exists && configName != "default" {
		result = mergeProfile(result, defaultProfile, "default")
	}
	result = mergeProfile(result, selectedProfile, "profile-specific")
	result.Name = configName

	// Globals take precedence over anything set in profiles
	if rootConfig.Globals != nil {
		applyDirectories(&result.Directories, rootConfig.Globals.Directories)
	}
	if rootConfig.Server != nil {
		if rootConfig.Server.Host != "" {
			result.Server.Host = rootConfig.Server.Host
		}
		if rootConfig.Server.Port != 0 {
			result.Server.Port = rootConfig.Server.Port
		}
	}

	result.Directories = expandDirectories(result.Directories)

	if err := validateConfig(result); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return result, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	if _, exists := rootConfig.Configs[newActiveConfig]; !exists {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// mergeProfile overlays the non-zero fields of profile on base.
// source names the layer in the inheritance map.
func mergeProfile(base *Config, profile *ConfigProfile, source string) *Config {
	result := *base
	result.Inheritance = make(map[string]string, len(base.Inheritance))
	for k, v := range base.Inheritance {
		result.Inheritance[k] = v
	}

	if profile == nil {
		return &result
	}

	set := func(key string) { result.Inheritance[key] = source }

	if profile.Audio.Backend != "" {
		result.Audio.Backend = profile.Audio.Backend
		set("audio.backend")
	}

	rec := profile.Recording
	if rec.AudioSource != 0 {
		result.Recording.AudioSource = rec.AudioSource
		set("recording.audio_source")
	}
	if rec.OutputFormat != "" {
		result.Recording.OutputFormat = rec.OutputFormat
		set("recording.output_format")
	}
	if rec.AudioEncoding != "" {
		result.Recording.AudioEncoding = rec.AudioEncoding
		set("recording.audio_encoding")
	}
	if rec.SampleRate != 0 {
		result.Recording.SampleRate = rec.SampleRate
		set("recording.sample_rate")
	}
	if rec.Channels != 0 {
		result.Recording.Channels = rec.Channels
		set("recording.channels")
	}
	if rec.BitRate != 0 {
		result.Recording.BitRate = rec.BitRate
		set("recording.bit_rate")
	}
	if rec.IncludeBase64 != nil {
		result.Recording.IncludeBase64 = boolPtr(*rec.IncludeBase64)
		set("recording.include_base64")
	}

	if profile.Notification.Title != "" {
		result.Notification.Title = profile.Notification.Title
		set("notification.title")
	}
	if profile.Notification.TextPrefix != "" {
		result.Notification.TextPrefix = profile.Notification.TextPrefix
		set("notification.text_prefix")
	}
	if profile.Notification.ChannelID != "" {
		result.Notification.ChannelID = profile.Notification.ChannelID
		set("notification.channel_id")
	}

	if profile.Battery.Enabled != nil {
		result.Battery.Enabled = boolPtr(*profile.Battery.Enabled)
		set("battery.enabled")
	}
	if profile.Battery.LowLevel != 0 {
		result.Battery.LowLevel = profile.Battery.LowLevel
		set("battery.low_level")
	}
	if profile.Battery.PollInterval != 0 {
		result.Battery.PollInterval = profile.Battery.PollInterval
		set("battery.poll_interval")
	}

	if profile.Progress.Interval != 0 {
		result.Progress.Interval = profile.Progress.Interval
		set("progress.interval")
	}

	return &result
}

func applyDirectories(dst *DirectoriesConfig, src DirectoriesConfig) {
	if src.Documents != "" {
		dst.Documents = src.Documents
	}
	if src.Pictures != "" {
		dst.Pictures = src.Pictures
	}
	if src.Caches != "" {
		dst.Caches = src.Caches
	}
	if src.Music != "" {
		dst.Music = src.Music
	}
	if src.Downloads != "" {
		dst.Downloads = src.Downloads
	}
}

func expandDirectories(d DirectoriesConfig) DirectoriesConfig {
	return DirectoriesConfig{
		Documents: expandPath(d.Documents),
		Pictures:  expandPath(d.Pictures),
		Caches:    expandPath(d.Caches),
		Music:     expandPath(d.Music),
		Downloads: expandPath(d.Downloads),
	}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
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

	if len(rootConfig.Configs) == 0 {
		return nil, fmt.Errorf("configs section is required")
	}
	if rootConfig.ActiveConfig != "" {
		if _, exists := rootConfig.Configs[rootConfig.ActiveConfig]; !exists {
			return nil, fmt.Errorf("active_config '%s' does not name a profile", rootConfig.ActiveConfig)
		}
	}
	if rootConfig.Server != nil && (rootConfig.Server.Port < 0 || rootConfig.Server.Port > 65535) {
		return nil, fmt.Errorf("server.port must be between 0 and 65535, got %d", rootConfig.Server.Port)
	}

	for configName, profile := range rootConfig.Configs {
		if err := validateProfile(profile); err != nil {
			return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
		}
	}

	return &rootConfig, nil
}

// validateProfile checks the values a profile sets explicitly
func validateProfile(profile *ConfigProfile) error {
	if profile == nil {
		return nil
	}

	if !audio.IsKnownBackend(profile.Audio.Backend) {
		return fmt.Errorf("audio.backend '%s' is not supported (available: %v)",
			profile.Audio.Backend, audio.GetAvailableBackends())
	}
	if profile.Recording.AudioSource < 0 {
		return fmt.Errorf("recording.audio_source must be >= 0, got %d", profile.Recording.AudioSource)
	}
	if profile.Recording.SampleRate < 0 {
		return fmt.Errorf("recording.sample_rate must be > 0, got %d", profile.Recording.SampleRate)
	}
	if profile.Recording.Channels < 0 {
		return fmt.Errorf("recording.channels must be > 0, got %d", profile.Recording.Channels)
	}
	if profile.Recording.BitRate < 0 {
		return fmt.Errorf("recording.bit_rate must be > 0, got %d", profile.Recording.BitRate)
	}
	if profile.Battery.LowLevel < 0 || profile.Battery.LowLevel > 100 {
		return fmt.Errorf("battery.low_level must be between 0 and 100, got %d", profile.Battery.LowLevel)
	}
	if profile.Battery.PollInterval < 0 {
		return fmt.Errorf("battery.poll_interval must be > 0, got %s", profile.Battery.PollInterval)
	}
	if profile.Progress.Interval < 0 {
		return fmt.Errorf("progress.interval must be > 0, got %s", profile.Progress.Interval)
	}

	return nil
}

// validateConfig checks a resolved configuration
func validateConfig(cfg *Config) error {
	if cfg.Battery.PollInterval <= 0 {
		return fmt.Errorf("battery.poll_interval must be > 0")
	}
	if cfg.Progress.Interval <= 0 {
		return fmt.Errorf("progress.interval must be > 0")
	}
	if cfg.Battery.LowLevel < 0 || cfg.Battery.LowLevel > 100 {
		return fmt.Errorf("battery.low_level must be between 0 and 100, got %d", cfg.Battery.LowLevel)
	}
	if cfg.Notification.ChannelID == "" {
		return fmt.Errorf("notification.channel_id cannot be empty")
	}
	return nil
}
