package config

import (
	"os"
	"strings"
	"testing"
)

func TestValidateConfigurationFormat_ValidConfig(t *testing.T) {
	validConfig := `
active_config: test

server:
  host: 0.0.0.0
  port: 8089

configs:
  default:
    audio:
      backend: auto
  test:
    audio:
      backend: malgo
    recording:
      audio_source: 1
      output_format: wav
      audio_encoding: pcm_16bit
      sample_rate: 16000
      channels: 1
      bit_rate: 64000
    notification:
      title: Interview
      channel_id: interviews
    battery:
      enabled: false
      low_level: 20
      poll_interval: 1m
`

	configFile := createTempConfig(t, validConfig)

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if rootConfig.ActiveConfig != "test" {
		t.Errorf("Expected active config 'test', got %s", rootConfig.ActiveConfig)
	}
	if len(rootConfig.Configs) != 2 {
		t.Errorf("Expected 2 profiles, got %d", len(rootConfig.Configs))
	}

	test := rootConfig.Configs["test"]
	if test == nil {
		t.Fatal("Expected profile 'test'")
	}
	if test.Recording.AudioSource != 1 || test.Recording.SampleRate != 16000 {
		t.Errorf("Unexpected recording defaults: %+v", test.Recording)
	}
	if test.Battery.Enabled == nil || *test.Battery.Enabled {
		t.Error("Expected battery.enabled false")
	}
	if test.Notification.ChannelID != "interviews" {
		t.Errorf("Expected channel id 'interviews', got %s", test.Notification.ChannelID)
	}
}

func TestValidateConfigurationFormat_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		config   string
		contains string
	}{
		{
			name:     "no profiles",
			config:   "active_config: default\n",
			contains: "configs section is required",
		},
		{
			name: "dangling active config",
			config: `
active_config: ghost
configs:
  default:
    audio:
      backend: auto
`,
			contains: "does not name a profile",
		},
		{
			name: "unknown backend",
			config: `
configs:
  default:
    audio:
      backend: pulseaudio
`,
			contains: "audio.backend",
		},
		{
			name: "low level out of range",
			config: `
configs:
  default:
    battery:
      low_level: 150
`,
			contains: "battery.low_level",
		},
		{
			name: "negative poll interval",
			config: `
configs:
  default:
    battery:
      poll_interval: -5s
`,
			contains: "battery.poll_interval",
		},
		{
			name: "negative channels",
			config: `
configs:
  default:
    recording:
      channels: -1
`,
			contains: "recording.channels",
		},
		{
			name: "server port out of range",
			config: `
server:
  port: 70000
configs:
  default:
    audio:
      backend: auto
`,
			contains: "server.port",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			configFile := createTempConfig(t, test.config)

			_, err := ValidateConfigurationFormat(configFile)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), test.contains) {
				t.Errorf("Expected error containing %q, got: %v", test.contains, err)
			}
		})
	}
}

func TestValidateConfigurationFormat_EnvOverride(t *testing.T) {
	configFile := createTempConfig(t, `
active_config: default
configs:
  default:
    audio:
      backend: auto
  other:
    audio:
      backend: malgo
`)

	t.Setenv("RECBRIDGE_ACTIVE_CONFIG", "other")

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if rootConfig.ActiveConfig != "other" {
		t.Errorf("Expected env to select 'other', got %s", rootConfig.ActiveConfig)
	}
}

func TestValidateConfigurationFormat_MalformedYAML(t *testing.T) {
	configFile := createTempConfig(t, "configs: [unclosed\n")
	if _, err := ValidateConfigurationFormat(configFile); err == nil {
		t.Error("Expected error for malformed YAML")
	}
	os.Remove(configFile)
}

func TestValidateConfig_Resolved(t *testing.T) {
	cfg := Default()
	cfg.Progress.Interval = 0
	if err := validateConfig(cfg); err == nil {
		t.Error("Expected error for zero progress interval")
	}

	cfg = Default()
	cfg.Notification.ChannelID = ""
	if err := validateConfig(cfg); err == nil {
		t.Error("Expected error for empty channel id")
	}
}
