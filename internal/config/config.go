package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config defines the runtime configuration for the liveness camera client.
type Config struct {
	// Prediction service
	PredictURL      string        // http(s):// POST endpoint or ws(s):// stream endpoint
	PredictInterval time.Duration // wall-clock interval between prediction cycles
	RequestTimeout  time.Duration // per-request deadline for a prediction cycle
	AuthenticLabel  string        // label rendered in the authentic color

	// Camera
	Device    string // camera device ("/dev/video0", dshow name, or "test")
	Width     int    // capture width in pixels
	Height    int    // capture height in pixels
	TargetFPS int    // render loop rate

	// Output
	JPEGQuality int // quality for published MJPEG frames

	// Servers
	HTTPAddr    string
	MetricsAddr string

	// Behavior
	Autostart bool // start the capture session at boot

	// Logging
	LogLevel string
	LogColor bool
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		PredictURL:      "http://localhost:5000/predict",
		PredictInterval: 500 * time.Millisecond,
		RequestTimeout:  4 * time.Second,
		AuthenticLabel:  "Original",
		Device:          defaultDevice(),
		Width:           640,
		Height:          480,
		TargetFPS:       30,
		JPEGQuality:     80,
		HTTPAddr:        ":8080",
		MetricsAddr:     ":9090",
		Autostart:       false,
		LogLevel:        "info",
		LogColor:        true,
	}
}

// FromEnv returns the default configuration overridden by environment
// variables. A .env file in the working directory is loaded first if present.
func FromEnv() Config {
	_ = godotenv.Load()

	cfg := Default()
	envString(&cfg.PredictURL, "LIVENESSCAM_PREDICT_URL")
	envDuration(&cfg.PredictInterval, "LIVENESSCAM_PREDICT_INTERVAL")
	envDuration(&cfg.RequestTimeout, "LIVENESSCAM_REQUEST_TIMEOUT")
	envString(&cfg.AuthenticLabel, "LIVENESSCAM_AUTHENTIC_LABEL")
	envString(&cfg.Device, "LIVENESSCAM_DEVICE")
	envInt(&cfg.Width, "LIVENESSCAM_WIDTH")
	envInt(&cfg.Height, "LIVENESSCAM_HEIGHT")
	envInt(&cfg.TargetFPS, "LIVENESSCAM_FPS")
	envInt(&cfg.JPEGQuality, "LIVENESSCAM_JPEG_QUALITY")
	envString(&cfg.HTTPAddr, "LIVENESSCAM_HTTP_ADDR")
	envString(&cfg.MetricsAddr, "LIVENESSCAM_METRICS_ADDR")
	envBool(&cfg.Autostart, "LIVENESSCAM_AUTOSTART")
	envString(&cfg.LogLevel, "LIVENESSCAM_LOG_LEVEL")
	envBool(&cfg.LogColor, "LIVENESSCAM_LOG_COLOR")
	return cfg
}

// Validate checks configuration values that would break the pipeline.
func (c *Config) Validate() error {
	if c.PredictURL == "" {
		return fmt.Errorf("predict URL must not be empty")
	}
	if c.PredictInterval <= 0 {
		return fmt.Errorf("predict interval must be positive, got %s", c.PredictInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("capture size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.TargetFPS <= 0 {
		return fmt.Errorf("target fps must be positive, got %d", c.TargetFPS)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality must be in [1,100], got %d", c.JPEGQuality)
	}
	return nil
}

func defaultDevice() string {
	switch runtime.GOOS {
	case "linux":
		return "/dev/video0"
	default:
		return "0"
	}
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
