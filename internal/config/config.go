package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Torrent   TorrentConfig   `yaml:"torrent"`
	Streaming StreamingConfig `yaml:"streaming"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the control API HTTP server. The WebDAV-framed
// stream endpoint is served by that same server on HTTPPort; streamd does
// not read WebDAVPort or WebDAVAuth.
type ServerConfig struct {
	HTTPPort   int              `yaml:"http_port"`
	WebDAVPort int              `yaml:"webdav_port"`
	WebDAVAuth WebDAVAuthConfig `yaml:"webdav_auth"`
}

// WebDAVAuthConfig holds Basic Auth settings for the WebDAV-framed HTTP
// stream. They are loaded (including env overrides) but not applied to any
// handler.
type WebDAVAuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TorrentConfig configures the engine adapter's anacrolix client.
type TorrentConfig struct {
	MetadataFolder       string `yaml:"metadata_folder"`
	GlobalCacheSize      int64  `yaml:"global_cache_size"`       // MB
	AddTimeout           int    `yaml:"add_timeout"`             // seconds
	ReadTimeout          int    `yaml:"read_timeout"`            // seconds
	DropDuplicatePeerIds bool   `yaml:"drop_duplicate_peer_ids"` // Prevent duplicate peer connections
	MaxUnverifiedMB      int64  `yaml:"max_unverified_mb"`       // Cap in-flight unverified data (MB, 0=unlimited)
	DHTItemsTTLHours     int    `yaml:"dht_items_ttl_hours"`
}

// StreamingConfig holds PieceWindow priority-band settings (spec §3),
// mirroring the teacher's streaming.Config/StreamingConfig naming. It is
// loaded but not passed to the streaming core: StreamProvider builds every
// PieceWindow with streaming.DefaultConfig().
type StreamingConfig struct {
	HighPriorityCount   int   `yaml:"high_priority_count"`   // Pieces in the Urgent band (default: 5)
	LookAheadCount      int   `yaml:"look_ahead_count"`      // Pieces in the Prefetch band (default: 15)
	HeaderPriorityBytes int64 `yaml:"header_priority_bytes"` // Bytes at start of file treated as critical
	FooterPriorityBytes int64 `yaml:"footer_priority_bytes"` // Bytes at end of file treated as critical
}

// MetricsConfig configures Prometheus metrics exposure.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:   4444,
			WebDAVPort: 36911,
			WebDAVAuth: WebDAVAuthConfig{
				Enabled: false,
			},
		},
		Torrent: TorrentConfig{
			MetadataFolder:       "./data/torrents",
			GlobalCacheSize:      4096,
			AddTimeout:           60,
			ReadTimeout:          120,
			DropDuplicatePeerIds: true,
			MaxUnverifiedMB:      16,
			DHTItemsTTLHours:     2,
		},
		Streaming: StreamingConfig{
			HighPriorityCount:   5,
			LookAheadCount:      15,
			HeaderPriorityBytes: 10 * 1024 * 1024,
			FooterPriorityBytes: 5 * 1024 * 1024,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults if
// path does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if envEnabled := os.Getenv("WEBDAV_AUTH_ENABLED"); envEnabled != "" {
		cfg.Server.WebDAVAuth.Enabled = strings.ToLower(envEnabled) == "true"
	}
	if envUser := os.Getenv("WEBDAV_USERNAME"); envUser != "" {
		cfg.Server.WebDAVAuth.Username = envUser
	}
	if envPass := os.Getenv("WEBDAV_PASSWORD"); envPass != "" {
		cfg.Server.WebDAVAuth.Password = envPass
	}

	if envEnabled := os.Getenv("METRICS_ENABLED"); envEnabled != "" {
		cfg.Metrics.Enabled = strings.ToLower(envEnabled) == "true"
	}
	if envPort := os.Getenv("METRICS_PORT"); envPort != "" {
		if port, err := strconv.Atoi(envPort); err == nil {
			cfg.Metrics.Port = port
		}
	}

	return cfg, nil
}

// EnsureDirectories creates directories required by the torrent engine.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Torrent.MetadataFolder}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// MetadataPath joins name under the torrent metadata folder, for the peer
// ID file and DHT item store.
func (c *Config) MetadataPath(name string) string {
	return filepath.Join(c.Torrent.MetadataFolder, name)
}
