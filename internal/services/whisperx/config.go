package whisperx

import "time"

// Config captures runtime settings for the alignment service process.
type Config struct {
	// PythonBinary launches the service (e.g. "python3").
	PythonBinary string
	// Module is the Python module run with -m.
	Module string
	// Model is the Whisper model loaded at initialize (e.g. "large-v3").
	Model string
	// Language is the ISO 639-1 code of the alignment model.
	Language string
	// Device selects cpu, cuda or mps.
	Device string
	// ComputeType is passed through to the model loader.
	ComputeType string
	// HFToken is the Hugging Face token for gated alignment models.
	HFToken string
	// StartupTimeout bounds the wait for the ready notification.
	StartupTimeout time.Duration
}

// Service defaults.
const (
	DefaultPythonBinary   = "python3"
	DefaultModule         = "whisper_service.main"
	DefaultModel          = "large-v3"
	DefaultLanguage       = "de"
	DefaultDevice         = "cpu"
	DefaultComputeType    = "float32"
	DefaultStartupTimeout = 5 * time.Minute
	shutdownTimeout       = 10 * time.Second
)

// Command names for external tools.
const (
	FFmpegCommand = "ffmpeg"
)

func (c Config) withDefaults() Config {
	if c.PythonBinary == "" {
		c.PythonBinary = DefaultPythonBinary
	}
	if c.Module == "" {
		c.Module = DefaultModule
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	if c.ComputeType == "" {
		c.ComputeType = DefaultComputeType
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	return c
}
