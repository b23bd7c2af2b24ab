package server

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaunagostinho/ld19-scope/internal/ld19"
	"github.com/shaunagostinho/ld19-scope/internal/scan"
	"github.com/shaunagostinho/ld19-scope/internal/view"
)

// Config holds all scope configuration. It is read once at startup.
type Config struct {
	Lidar  LidarConfig  `yaml:"lidar" json:"lidar"`
	Cloud  CloudConfig  `yaml:"cloud" json:"cloud"`
	Radar  RadarConfig  `yaml:"radar" json:"radar"`
	Server ServerConfig `yaml:"server" json:"server"`

	path string
}

type LidarConfig struct {
	Type          string `yaml:"type" json:"type"`          // "ld19" or "demo"
	PortPath      string `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyUSB0
	BaudRate      int    `yaml:"baud_rate" json:"baudRate"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms" json:"readTimeoutMs"`
}

// CloudConfig configures the point-cloud consumer (ring buffer).
type CloudConfig struct {
	Enabled  bool `yaml:"enabled" json:"enabled"`
	Capacity int  `yaml:"capacity" json:"capacity"` // max retained samples
}

// RadarConfig configures the radar consumer (drain-on-read buffer).
type RadarConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	MinIntensity int    `yaml:"min_intensity" json:"minIntensity"` // keep intensity > this
	RangeMaxMM   uint16 `yaml:"range_max_mm" json:"rangeMaxMm"`    // keep distance <= this
	Ceiling      int    `yaml:"ceiling" json:"ceiling"`            // hard size cap between drains
	TrimCount    int    `yaml:"trim_count" json:"trimCount"`       // dropped at once when at ceiling
	WindowSize   int    `yaml:"window_size" json:"windowSize"`     // px
}

type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr" json:"listenAddr"`
	BroadcastHz int    `yaml:"broadcast_hz" json:"broadcastHz"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Lidar: LidarConfig{
			Type:          "ld19",
			PortPath:      "/dev/ttyUSB0",
			BaudRate:      230400,
			ReadTimeoutMs: 100,
		},
		Cloud: CloudConfig{
			Enabled:  true,
			Capacity: 2000,
		},
		Radar: RadarConfig{
			Enabled:      true,
			MinIntensity: 220,
			RangeMaxMM:   200,
			Ceiling:      2000,
			TrimCount:    100,
			WindowSize:   800,
		},
		Server: ServerConfig{
			ListenAddr:  ":8080",
			BroadcastHz: 30,
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	// .env next to the config, then CWD
	for _, ep := range []string{filepath.Join(filepath.Dir(path), ".env"), ".env"} {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
// Variables already set in the real environment win.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: LIDAR_TYPE, LIDAR_PORT, LIDAR_BAUD, LIDAR_READ_TIMEOUT_MS,
// CLOUD_CAPACITY, RADAR_MIN_INTENSITY, RADAR_RANGE_MAX_MM, RADAR_CEILING,
// LISTEN_ADDR, BROADCAST_HZ
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LIDAR_TYPE"); v != "" {
		c.Lidar.Type = v
	}
	if v := os.Getenv("LIDAR_PORT"); v != "" {
		c.Lidar.PortPath = v
	}
	envInt("LIDAR_BAUD", &c.Lidar.BaudRate)
	envInt("LIDAR_READ_TIMEOUT_MS", &c.Lidar.ReadTimeoutMs)
	envInt("CLOUD_CAPACITY", &c.Cloud.Capacity)
	envInt("RADAR_MIN_INTENSITY", &c.Radar.MinIntensity)
	envInt("RADAR_CEILING", &c.Radar.Ceiling)
	if v := os.Getenv("RADAR_RANGE_MAX_MM"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			c.Radar.RangeMaxMM = uint16(n)
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	envInt("BROADCAST_HZ", &c.Server.BroadcastHz)
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate rejects settings the reader or buffers cannot run with.
func (c *Config) Validate() error {
	switch c.Lidar.Type {
	case "ld19", "demo":
	default:
		return fmt.Errorf("config: unknown lidar type %q", c.Lidar.Type)
	}
	if c.Lidar.BaudRate <= 0 {
		return fmt.Errorf("config: baud rate must be positive, got %d", c.Lidar.BaudRate)
	}
	if c.Cloud.Enabled && c.Cloud.Capacity <= 0 {
		return fmt.Errorf("config: cloud capacity must be positive, got %d", c.Cloud.Capacity)
	}
	if c.Radar.Enabled {
		if c.Radar.Ceiling <= 0 {
			return fmt.Errorf("config: radar ceiling must be positive, got %d", c.Radar.Ceiling)
		}
		if c.Radar.MinIntensity < 0 || c.Radar.MinIntensity > 255 {
			return fmt.Errorf("config: radar min intensity %d outside 0..255", c.Radar.MinIntensity)
		}
		// The range cutoff is also the radar radius.
		if c.Radar.RangeMaxMM == 0 {
			return fmt.Errorf("config: radar range_max_mm must be positive")
		}
	}
	if !c.Cloud.Enabled && !c.Radar.Enabled {
		return fmt.Errorf("config: both cloud and radar views are disabled")
	}
	return nil
}

// ReaderConfig returns the transport settings for the ld19 reader.
func (c *Config) ReaderConfig() ld19.Config {
	return ld19.Config{
		PortPath:    c.Lidar.PortPath,
		BaudRate:    c.Lidar.BaudRate,
		ReadTimeout: time.Duration(c.Lidar.ReadTimeoutMs) * time.Millisecond,
	}
}

// CloudBuffer returns the point-cloud buffer settings.
func (c *Config) CloudBuffer() scan.Config {
	return scan.Config{Policy: scan.PolicyRing, Capacity: c.Cloud.Capacity}
}

// RadarBuffer returns the radar buffer settings.
func (c *Config) RadarBuffer() scan.Config {
	return scan.Config{Policy: scan.PolicyDrain, Capacity: c.Radar.Ceiling, TrimCount: c.Radar.TrimCount}
}

// RadarFilter returns the intensity and range filter for the radar route.
func (c *Config) RadarFilter() ld19.Filter {
	return ld19.Filter{MinIntensity: c.Radar.MinIntensity, MaxRangeMM: c.Radar.RangeMaxMM}
}

// RadarView returns the screen geometry for radar frames.
func (c *Config) RadarView() view.RadarConfig {
	return view.RadarConfig{
		WindowSize: c.Radar.WindowSize,
		RangeCM:    float64(c.Radar.RangeMaxMM) / 10,
	}
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}
