// Package webhost loads the hosting account record used by deploy tasks: the
// server address and one credential set per transfer mode.
package webhost

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRemoteDir is used when the record does not name a remote directory.
const DefaultRemoteDir = "/public_html/website/"

// Config is the persisted webhost record.
type Config struct {
	Address   string    `json:"address" yaml:"address"`
	RemoteDir string    `json:"remote_dir" yaml:"remote_dir"`
	SSH       SSHConfig `json:"ssh" yaml:"ssh"`
	FTP       FTPConfig `json:"ftp" yaml:"ftp"`
}

// SSHConfig holds the credentials for the sync deploy.
type SSHConfig struct {
	Username string `json:"username" yaml:"username"`
	Port     int    `json:"port" yaml:"port"`
	// KeyFile is a private key used when no ssh-agent is reachable.
	KeyFile    string `json:"key_file" yaml:"key_file"`
	KnownHosts string `json:"known_hosts" yaml:"known_hosts"`
	// InsecureIgnoreHostKey skips host key verification.
	InsecureIgnoreHostKey bool `json:"insecure_ignore_host_key" yaml:"insecure_ignore_host_key"`
}

// FTPConfig holds the credentials for the FTP deploy. The password is never
// stored; it is asked for at deploy time.
type FTPConfig struct {
	Username string `json:"username" yaml:"username"`
	Port     int    `json:"port" yaml:"port"`
	Parallel int    `json:"parallel" yaml:"parallel"`
}

// Load reads the record at path. Files ending in .yaml or .yml are decoded as
// YAML, anything else as JSON. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading webhost config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding webhost config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("webhost config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.RemoteDir == "" {
		c.RemoteDir = DefaultRemoteDir
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = 22
	}
	if c.FTP.Port == 0 {
		c.FTP.Port = 21
	}
	if c.FTP.Parallel == 0 {
		c.FTP.Parallel = 10
	}
}

// Validate checks that the record can drive at least one transfer mode.
func (c *Config) Validate() error {
	var errs []error
	if c.Address == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if c.SSH.Username == "" && c.FTP.Username == "" {
		errs = append(errs, errors.New("at least one of ssh.username or ftp.username is required"))
	}
	if c.SSH.Port < 0 || c.SSH.Port > 65535 {
		errs = append(errs, fmt.Errorf("ssh.port %d is out of range", c.SSH.Port))
	}
	if c.FTP.Port < 0 || c.FTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("ftp.port %d is out of range", c.FTP.Port))
	}
	if c.FTP.Parallel < 0 {
		errs = append(errs, fmt.Errorf("ftp.parallel must be positive, got %d", c.FTP.Parallel))
	}
	return errors.Join(errs...)
}
