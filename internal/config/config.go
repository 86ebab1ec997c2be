// Package config loads and validates the Signn configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvConfigPath   = "SIGNN_CONFIG"
	EnvCameraDevice = "SIGNN_CAMERA_DEVICE"
	EnvModelPath    = "SIGNN_MODEL_PATH"
	EnvServerAddr   = "SIGNN_SERVER_ADDR"
	EnvStorePath    = "SIGNN_STORE_PATH"
	EnvLogLevel     = "SIGNN_LOG_LEVEL"
	EnvCooldown     = "SIGNN_COOLDOWN"
	EnvTray         = "SIGNN_TRAY"
)

// Config is the complete application configuration.
type Config struct {
	Camera     CameraConfig     `yaml:"camera"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Console    ConsoleConfig    `yaml:"console"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Log        LogConfig        `yaml:"log"`
	Tray       TrayConfig       `yaml:"tray"`
}

// CameraConfig selects the capture device.
type CameraConfig struct {
	DeviceID int `yaml:"device_id" validate:"gte=0"`
	Width    int `yaml:"width" validate:"gt=0"`
	Height   int `yaml:"height" validate:"gt=0"`
	FPS      int `yaml:"fps" validate:"gt=0"`
}

// PipelineConfig sizes the frame channel and worker.
type PipelineConfig struct {
	FrameCapacity  int           `yaml:"frame_capacity" validate:"gte=1"`
	FrameSkip      int           `yaml:"frame_skip" validate:"gte=1"`
	DequeueTimeout time.Duration `yaml:"dequeue_timeout" validate:"gt=0"`
	TickInterval   time.Duration `yaml:"tick_interval" validate:"gt=0"`
}

// ConsoleConfig controls event coalescing.
type ConsoleConfig struct {
	Cooldown time.Duration `yaml:"cooldown" validate:"gte=0"`
}

// RecognizerConfig locates the gesture model and its service script.
type RecognizerConfig struct {
	ModelPath     string  `yaml:"model_path" validate:"required"`
	ScriptPath    string  `yaml:"script_path"`
	Python        string  `yaml:"python"`
	MaxHands      int     `yaml:"max_hands" validate:"gte=1,lte=4"`
	MinConfidence float64 `yaml:"min_confidence" validate:"gte=0,lte=1"`
}

// ServerConfig controls the HTTP presentation surface.
type ServerConfig struct {
	Addr      string `yaml:"addr" validate:"required"`
	StaticDir string `yaml:"static_dir"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
}

// TrayConfig toggles the system tray.
type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a Config with the reference pipeline behavior:
// capacity 10, no frame skipping, 1s dequeue timeout, 50ms tick and 2s cooldown.
func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Camera: CameraConfig{
			DeviceID: 0,
			Width:    640,
			Height:   480,
			FPS:      20,
		},
		Pipeline: PipelineConfig{
			FrameCapacity:  10,
			FrameSkip:      1,
			DequeueTimeout: time.Second,
			TickInterval:   50 * time.Millisecond,
		},
		Console: ConsoleConfig{
			Cooldown: 2 * time.Second,
		},
		Recognizer: RecognizerConfig{
			ModelPath:     filepath.Join(dataDir, "gesture_recognizer.task"),
			MaxHands:      2,
			MinConfidence: 0.5,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Store: StoreConfig{
			Path: filepath.Join(dataDir, "signn.db"),
		},
		Log: LogConfig{
			Level: "info",
		},
		Tray: TrayConfig{
			Enabled: true,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".signn"
	}
	return filepath.Join(home, ".signn")
}

// Load reads the YAML file at path on top of the defaults, applies .env and
// SIGNN_* overrides, and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Path returns the config path from SIGNN_CONFIG, or fallback when unset.
func Path(fallback string) string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return fallback
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvCameraDevice); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCameraDevice, err)
		}
		cfg.Camera.DeviceID = id
	}
	if v := os.Getenv(EnvModelPath); v != "" {
		cfg.Recognizer.ModelPath = v
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvCooldown); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCooldown, err)
		}
		cfg.Console.Cooldown = d
	}
	if v := os.Getenv(EnvTray); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTray, err)
		}
		cfg.Tray.Enabled = enabled
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints declared in struct tags.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	return validate.Struct(cfg)
}
