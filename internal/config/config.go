package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"

	"github.com/nkruiper/ls-updater/internal/domain/release"
)

// Config holds everything one updater run needs. It is loaded and validated
// once, before any side effect, and never mutated afterwards.
type Config struct {
	// Branch is the release channel the installation follows: lts, unstable or dev.
	Branch string `yaml:"branch"`
	// DBCnfPath is the path to the MySQL defaults file holding dump credentials.
	DBCnfPath string `yaml:"db_cnf_path"`
	// DBName is the database to dump before upgrading.
	DBName string `yaml:"db_name"`
	// DBPort is the database server port.
	DBPort int `yaml:"db_port"`
	// DBServer is the database server host.
	DBServer string `yaml:"db_server"`
	// InstallOctalPermissions is the octal mode applied recursively after install.
	InstallOctalPermissions string `yaml:"install_octal_permissions"`
	// InstallOwner is the owner[:group] applied recursively after install.
	InstallOwner string `yaml:"install_owner"`
	// InstallPath is the root of the live installation tree.
	InstallPath string `yaml:"install_path"`
	// LogToFile enables the rotating file log sink.
	LogToFile bool `yaml:"log_to_file"`
	// LogToStdout enables the console log sink.
	LogToStdout bool `yaml:"log_to_stdout"`
	// LogToSyslog enables the local system log sink.
	LogToSyslog bool `yaml:"log_to_syslog"`
	// WebServerInitSystem selects the init-system command family used to stop
	// and start the web server service.
	WebServerInitSystem string `yaml:"web_server_init_system"`
	// WebServerService is the service name passed to the init-system commands.
	WebServerService string `yaml:"web_server_service"`
	// CompareMode selects how the installed version code is compared to the
	// catalog's: "exact" (default, opaque string equality) or "semver".
	// Semver mode deviates from the historical behavior: it upgrades only
	// when the catalog entry is strictly newer.
	CompareMode string `yaml:"compare_mode"`
	// CommandTimeout bounds each external command invocation when positive.
	// Zero keeps the historical behavior of waiting indefinitely.
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

const (
	// DefaultConfigFilename is the default filename for updater settings.
	DefaultConfigFilename = "ls-updater-settings.yaml"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// initSystems are the recognized init-system kinds, each an alias for one
// command family.
var initSystems = map[string]struct{}{
	"generic":   {},
	"service":   {},
	"systemd":   {},
	"systemctl": {},
	"init.d":    {},
	"openrc":    {},
	"rc.d":      {},
	"upstart":   {},
	"finit":     {},
	"initctl":   {},
	"epoch":     {},
}

var (
	// ErrInvalid is the base error for all configuration validation failures.
	ErrInvalid = errors.New("invalid configuration")

	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
)

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions: the file points at database credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields, enumerations and the installation path.
// It fails before the caller has performed any side effect.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	required := []struct {
		key   string
		value string
	}{
		{"branch", cfg.Branch},
		{"db_cnf_path", cfg.DBCnfPath},
		{"db_name", cfg.DBName},
		{"db_server", cfg.DBServer},
		{"install_octal_permissions", cfg.InstallOctalPermissions},
		{"install_owner", cfg.InstallOwner},
		{"install_path", cfg.InstallPath},
		{"web_server_init_system", cfg.WebServerInitSystem},
		{"web_server_service", cfg.WebServerService},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%w: empty %s", ErrInvalid, field.key)
		}
	}

	if _, ok := release.ParseChannel(cfg.Branch); !ok {
		return fmt.Errorf("%w: branch not one of 'lts', 'unstable', 'dev': %s",
			ErrInvalid, cfg.Branch)
	}

	if cfg.DBPort <= 0 || cfg.DBPort > 65535 {
		return fmt.Errorf("%w: db_port out of range: %d", ErrInvalid, cfg.DBPort)
	}

	if _, err := strconv.ParseUint(cfg.InstallOctalPermissions, 8, 32); err != nil {
		return fmt.Errorf("%w: install_octal_permissions is not an octal mode: %s",
			ErrInvalid, cfg.InstallOctalPermissions)
	}

	if _, ok := initSystems[cfg.WebServerInitSystem]; !ok {
		return fmt.Errorf("%w: web_server_init_system not one of 'generic' (or 'service'), "+
			"'systemd' (or 'systemctl'), 'init.d' (or 'openrc'), 'rc.d', "+
			"'upstart' (or 'finit', 'initctl'), or 'epoch': %s",
			ErrInvalid, cfg.WebServerInitSystem)
	}

	if _, ok := release.ParseCompareMode(cfg.CompareMode); !ok {
		return fmt.Errorf("%w: compare_mode not one of 'exact', 'semver': %s",
			ErrInvalid, cfg.CompareMode)
	}

	if cfg.CommandTimeout < 0 {
		return fmt.Errorf("%w: command_timeout must not be negative", ErrInvalid)
	}

	if _, err := os.Stat(cfg.InstallPath); err != nil {
		return fmt.Errorf("%w: install_path does not exist: %v", ErrInvalid, err)
	}

	if err := unix.Access(cfg.InstallPath, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%w: install_path does not allow write and execute: %s",
			ErrInvalid, cfg.InstallPath)
	}

	return nil
}

// Channel returns the validated release channel.
func (c *Config) Channel() release.Channel {
	channel, _ := release.ParseChannel(c.Branch)
	return channel
}

// ComparisonMode returns the validated comparison mode.
func (c *Config) ComparisonMode() release.CompareMode {
	mode, _ := release.ParseCompareMode(c.CompareMode)
	return mode
}
