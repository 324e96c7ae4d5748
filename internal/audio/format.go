package audio

import (
	"log/slog"
	"strings"
)

// OutputFormat is the container written by a recorder
type OutputFormat string

const (
	FormatDefault  OutputFormat = "default"
	FormatMPEG4    OutputFormat = "mpeg_4"
	FormatAACADTS  OutputFormat = "aac_adts"
	FormatAMRNB    OutputFormat = "amr_nb"
	FormatAMRWB    OutputFormat = "amr_wb"
	FormatThreeGPP OutputFormat = "three_gpp"
	FormatWebM     OutputFormat = "webm"
	FormatWAV      OutputFormat = "wav"
)

// Encoder is the audio codec used inside the container
type Encoder string

const (
	EncoderDefault  Encoder = "default"
	EncoderAAC      Encoder = "aac"
	EncoderAACELD   Encoder = "aac_eld"
	EncoderAMRNB    Encoder = "amr_nb"
	EncoderAMRWB    Encoder = "amr_wb"
	EncoderHEAAC    Encoder = "he_aac"
	EncoderVorbis   Encoder = "vorbis"
	EncoderPCM16Bit Encoder = "pcm_16bit"
)

var outputFormats = map[string]OutputFormat{
	"mpeg_4":    FormatMPEG4,
	"aac_adts":  FormatAACADTS,
	"amr_nb":    FormatAMRNB,
	"amr_wb":    FormatAMRWB,
	"three_gpp": FormatThreeGPP,
	"webm":      FormatWebM,
	"wav":       FormatWAV,
}

var encoders = map[string]Encoder{
	"aac":       EncoderAAC,
	"aac_eld":   EncoderAACELD,
	"amr_nb":    EncoderAMRNB,
	"amr_wb":    EncoderAMRWB,
	"he_aac":    EncoderHEAAC,
	"vorbis":    EncoderVorbis,
	"pcm_16bit": EncoderPCM16Bit,
}

// ParseOutputFormat maps a format name to an OutputFormat.
// Unrecognized names fall back to FormatDefault.
func ParseOutputFormat(name string) OutputFormat {
	if f, ok := outputFormats[strings.ToLower(strings.TrimSpace(name))]; ok {
		return f
	}
	slog.Debug("Unknown output format, using default", "format", name, "default", FormatDefault)
	return FormatDefault
}

// ParseEncoder maps an encoder name to an Encoder.
// Unrecognized names fall back to EncoderDefault.
func ParseEncoder(name string) Encoder {
	if e, ok := encoders[strings.ToLower(strings.TrimSpace(name))]; ok {
		return e
	}
	slog.Debug("Unknown audio encoder, using default", "encoder", name, "default", EncoderDefault)
	return EncoderDefault
}
