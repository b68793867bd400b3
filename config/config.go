package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "daap-remote"
	// DataDirEnv overrides the resolved data directory.
	DataDirEnv = "DAAP_REMOTE_DATA_DIR"
	// DefaultServerName is advertised as the controller name.
	DefaultServerName = "NotUxPlay"
	// DefaultHTTPPort serves the DAAP endpoints.
	DefaultHTTPPort = 33689
	// DefaultArrowPort serves the trackpad stream.
	DefaultArrowPort = 34999
	// DefaultDACPFile holds the receiver identity written by UxPlay.
	DefaultDACPFile = "./.uxplay.dacp"
	// DefaultSubText seeds every trackpad key.
	DefaultSubText uint32 = 1471545639
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
)

// DeviceConfig contains persistent bridge settings.
type DeviceConfig struct {
	ServerName string `json:"server_name"`
	// Address pins the advertised and listening address. Empty means all interfaces.
	Address   string `json:"address"`
	HTTPPort  int    `json:"http_port"`
	ArrowPort int    `json:"arrow_port"`
	DACPFile  string `json:"dacp_file"`
	SubText   uint32 `json:"sub_text"`
	// DatabaseID and ServerID are 16 uppercase hex characters generated once.
	DatabaseID string `json:"database_id"`
	ServerID   string `json:"server_id"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If DAAP_REMOTE_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv(DataDirEnv); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// Load reads and unmarshals config.json from disk.
func Load(path string) (*DeviceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg DeviceConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *DeviceConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures dataDir and its config exist, then returns both.
// An empty dataDir is resolved with ResolveDataDir.
func LoadOrCreate(dataDir string) (*DeviceConfig, string, error) {
	if dataDir == "" {
		resolved, err := ResolveDataDir()
		if err != nil {
			return nil, "", err
		}
		dataDir = resolved
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create directory %q: %w", dataDir, err)
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = &DeviceConfig{}
		normalizeDefaults(cfg)
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}

		return cfg, cfgPath, nil
	}

	if normalizeDefaults(cfg) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	return cfg, cfgPath, nil
}

// Validate checks values that cannot be normalized.
func (c *DeviceConfig) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTPPort)
	}
	if c.ArrowPort <= 0 || c.ArrowPort > 65535 {
		return fmt.Errorf("arrow port %d out of range", c.ArrowPort)
	}
	if c.HTTPPort == c.ArrowPort {
		return errors.New("http and arrow ports must differ")
	}
	if !isHexID(c.DatabaseID) || !isHexID(c.ServerID) {
		return errors.New("database and server IDs must be 16 uppercase hex characters")
	}
	return nil
}

// NewHexID returns 16 uppercase hex characters drawn from a random UUID.
func NewHexID() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:16]
}

func isHexID(v string) bool {
	if len(v) != 16 {
		return false
	}
	for _, r := range v {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'F') {
			return false
		}
	}
	return true
}

func normalizeDefaults(cfg *DeviceConfig) bool {
	updated := false

	if strings.TrimSpace(cfg.ServerName) == "" {
		cfg.ServerName = DefaultServerName
		updated = true
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
		updated = true
	}
	if cfg.ArrowPort == 0 {
		cfg.ArrowPort = DefaultArrowPort
		updated = true
	}
	if cfg.DACPFile == "" {
		cfg.DACPFile = DefaultDACPFile
		updated = true
	}
	if cfg.SubText == 0 {
		cfg.SubText = DefaultSubText
		updated = true
	}
	if !isHexID(cfg.DatabaseID) {
		cfg.DatabaseID = NewHexID()
		updated = true
	}
	if !isHexID(cfg.ServerID) {
		cfg.ServerID = NewHexID()
		updated = true
	}

	return updated
}
