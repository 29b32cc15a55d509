package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig represents the optional tuning file loaded with -config. All
// fields are pointers so a partial file only overrides what it names; the
// Get* accessors supply defaults for everything else. Flags take precedence
// over the file for the values both expose.
type TuningConfig struct {
	// Loop params
	PollInterval *string  `json:"poll_interval,omitempty"` // duration string like "100ms"
	Epsilon      *float64 `json:"epsilon,omitempty"`       // degrees; 0 compares exactly

	// Serial bridge params
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`
	SerialDataBits *int    `json:"serial_data_bits,omitempty"`
	SerialStopBits *int    `json:"serial_stop_bits,omitempty"`
	SerialParity   *string `json:"serial_parity,omitempty"`
	StaleAfter     *string `json:"stale_after,omitempty"` // duration string like "2s"

	// Sim sensor params
	SimProfile  *string  `json:"sim_profile,omitempty"` // "sweep" or "static"
	SimMinAngle *float64 `json:"sim_min_angle,omitempty"`
	SimMaxAngle *float64 `json:"sim_max_angle,omitempty"`
	SimPeriod   *string  `json:"sim_period,omitempty"` // full sweep period
	SimAngle    *float64 `json:"sim_angle,omitempty"`  // static profile angle
	SimJitter   *float64 `json:"sim_jitter,omitempty"` // static profile jitter stddev
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil, which
// makes every accessor return its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file is
// validated to ensure it has a .json extension and is under the max file
// size. Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.PollInterval != nil && *c.PollInterval != "" {
		d, err := time.ParseDuration(*c.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll_interval %q: %w", *c.PollInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("poll_interval must be positive, got %s", d)
		}
	}

	if c.Epsilon != nil && *c.Epsilon < 0 {
		return fmt.Errorf("epsilon must be non-negative, got %f", *c.Epsilon)
	}

	if c.SerialBaudRate != nil && *c.SerialBaudRate <= 0 {
		return fmt.Errorf("serial_baud_rate must be positive, got %d", *c.SerialBaudRate)
	}

	if c.SerialDataBits != nil && (*c.SerialDataBits < 5 || *c.SerialDataBits > 8) {
		return fmt.Errorf("serial_data_bits must be between 5 and 8, got %d", *c.SerialDataBits)
	}

	if c.SerialStopBits != nil && *c.SerialStopBits != 1 && *c.SerialStopBits != 2 {
		return fmt.Errorf("serial_stop_bits must be 1 or 2, got %d", *c.SerialStopBits)
	}

	if c.StaleAfter != nil && *c.StaleAfter != "" {
		if _, err := time.ParseDuration(*c.StaleAfter); err != nil {
			return fmt.Errorf("invalid stale_after %q: %w", *c.StaleAfter, err)
		}
	}

	if c.SimProfile != nil {
		switch *c.SimProfile {
		case "sweep", "static":
		default:
			return fmt.Errorf("sim_profile must be sweep or static, got %q", *c.SimProfile)
		}
	}

	if c.SimPeriod != nil && *c.SimPeriod != "" {
		if _, err := time.ParseDuration(*c.SimPeriod); err != nil {
			return fmt.Errorf("invalid sim_period %q: %w", *c.SimPeriod, err)
		}
	}

	if c.SimMinAngle != nil && c.SimMaxAngle != nil && *c.SimMinAngle >= *c.SimMaxAngle {
		return fmt.Errorf("sim_min_angle %f must be below sim_max_angle %f", *c.SimMinAngle, *c.SimMaxAngle)
	}

	if c.SimJitter != nil && *c.SimJitter < 0 {
		return fmt.Errorf("sim_jitter must be non-negative, got %f", *c.SimJitter)
	}

	return nil
}

// GetPollInterval parses and returns the PollInterval as a time.Duration.
// The default is the loop's fixed sub-second polling period.
func (c *TuningConfig) GetPollInterval() time.Duration {
	if c.PollInterval == nil || *c.PollInterval == "" {
		return 100 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.PollInterval)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// GetEpsilon returns the epsilon value or the default. Zero keeps the exact
// equality comparison.
func (c *TuningConfig) GetEpsilon() float64 {
	if c.Epsilon == nil {
		return 0
	}
	return *c.Epsilon
}

// GetSerialBaudRate returns the serial_baud_rate value or the default.
func (c *TuningConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}

// GetSerialDataBits returns the serial_data_bits value or the default.
func (c *TuningConfig) GetSerialDataBits() int {
	if c.SerialDataBits == nil {
		return 8
	}
	return *c.SerialDataBits
}

// GetSerialStopBits returns the serial_stop_bits value or the default.
func (c *TuningConfig) GetSerialStopBits() int {
	if c.SerialStopBits == nil {
		return 1
	}
	return *c.SerialStopBits
}

// GetSerialParity returns the serial_parity value or the default.
func (c *TuningConfig) GetSerialParity() string {
	if c.SerialParity == nil || *c.SerialParity == "" {
		return "N"
	}
	return *c.SerialParity
}

// GetStaleAfter parses and returns the StaleAfter as a time.Duration.
func (c *TuningConfig) GetStaleAfter() time.Duration {
	if c.StaleAfter == nil || *c.StaleAfter == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.StaleAfter)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetSimProfile returns the sim_profile value or the default.
func (c *TuningConfig) GetSimProfile() string {
	if c.SimProfile == nil || *c.SimProfile == "" {
		return "sweep"
	}
	return *c.SimProfile
}

// GetSimMinAngle returns the sim_min_angle value or the default.
func (c *TuningConfig) GetSimMinAngle() float64 {
	if c.SimMinAngle == nil {
		return 0
	}
	return *c.SimMinAngle
}

// GetSimMaxAngle returns the sim_max_angle value or the default.
func (c *TuningConfig) GetSimMaxAngle() float64 {
	if c.SimMaxAngle == nil {
		return 135
	}
	return *c.SimMaxAngle
}

// GetSimPeriod parses and returns the SimPeriod as a time.Duration.
func (c *TuningConfig) GetSimPeriod() time.Duration {
	if c.SimPeriod == nil || *c.SimPeriod == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(*c.SimPeriod)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetSimAngle returns the sim_angle value or the default.
func (c *TuningConfig) GetSimAngle() float64 {
	if c.SimAngle == nil {
		return 90
	}
	return *c.SimAngle
}

// GetSimJitter returns the sim_jitter value or the default.
func (c *TuningConfig) GetSimJitter() float64 {
	if c.SimJitter == nil {
		return 0
	}
	return *c.SimJitter
}
