package recording

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/audiolibrelab/recbridge/internal/audio"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Config is the snapshot taken at prepare time. It is not modified until
// the session returns to idle.
type Config struct {
	Path          string
	Audio         audio.Settings
	IncludeBase64 bool
}

// settingsMap mirrors the keys accepted from the caller
type settingsMap struct {
	AudioSource          *int    `mapstructure:"AudioSource" validate:"required,min=0"`
	OutputFormat         *string `mapstructure:"OutputFormat" validate:"required"`
	AudioEncoding        *string `mapstructure:"AudioEncoding" validate:"required"`
	SampleRate           *int    `mapstructure:"SampleRate" validate:"required,gt=0"`
	Channels             *int    `mapstructure:"Channels" validate:"required,gt=0"`
	AudioEncodingBitRate *int    `mapstructure:"AudioEncodingBitRate" validate:"required,gt=0"`
	IncludeBase64        *bool   `mapstructure:"IncludeBase64"`
}

var validate = validator.New()

// integralNumbers rejects fractional numbers bound for integer fields.
// JSON decodes every number as float64 and mapstructure would truncate it.
func integralNumbers(from, to reflect.Type, data interface{}) (interface{}, error) {
	for to.Kind() == reflect.Ptr {
		to = to.Elem()
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
	default:
		return data, nil
	}

	switch from.Kind() {
	case reflect.Float32, reflect.Float64:
		f := reflect.ValueOf(data).Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("expected a whole number, got %v", data)
		}
	}
	return data, nil
}

func decodeSettings(settings map[string]interface{}, out *settingsMap) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: integralNumbers,
		Result:     out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(settings)
}

// ParseConfig builds a Config from a caller-supplied settings map.
// Unknown keys are ignored; unrecognized format and encoder names fall back
// to the platform default.
func ParseConfig(path string, settings map[string]interface{}) (Config, error) {
	const op = "prepare"

	path = strings.TrimSpace(path)
	if path == "" {
		return Config{}, newError(ErrInvalidConfig, op, "recording path is required")
	}
	if settings == nil {
		return Config{}, newError(ErrInvalidConfig, op, "recording settings are required")
	}

	var raw settingsMap
	if err := decodeSettings(settings, &raw); err != nil {
		return Config{}, wrapError(ErrInvalidConfig, op, err, "malformed recording settings")
	}
	if err := validate.Struct(raw); err != nil {
		return Config{}, wrapError(ErrInvalidConfig, op, err, "missing or out of range recording settings")
	}

	cfg := Config{
		Path: path,
		Audio: audio.Settings{
			Source:     *raw.AudioSource,
			Format:     audio.ParseOutputFormat(*raw.OutputFormat),
			Encoder:    audio.ParseEncoder(*raw.AudioEncoding),
			SampleRate: *raw.SampleRate,
			Channels:   *raw.Channels,
			BitRate:    *raw.AudioEncodingBitRate,
			OutputFile: path,
		},
	}
	if raw.IncludeBase64 != nil {
		cfg.IncludeBase64 = *raw.IncludeBase64
	}
	return cfg, nil
}
