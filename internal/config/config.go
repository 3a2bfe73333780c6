// Package config loads the approtate configuration file, validates it
// against an embedded JSON schema and applies environment overrides.
//
// Configuration is reloaded at the start of every run so edits take effect
// on the next scheduled rotation without a restart.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/approtate/internal/errors"
	"github.com/systmms/approtate/internal/graph"
	"github.com/systmms/approtate/internal/logging"
	"github.com/systmms/approtate/internal/vaults"
	"github.com/systmms/approtate/pkg/rotation"
)

const (
	// DefaultPath is where the CLI looks when --config is not given.
	DefaultPath = "approtate.yaml"

	// DefaultSchedule keeps the reference expression. A day-of-month step
	// larger than the month only matches day 1, so it fires at midnight on
	// the 1st of every month, well inside the 180 day credential validity.
	DefaultSchedule = "0 0 */175 * *"

	// DefaultMetricsListen is the metrics server address in serve mode.
	DefaultMetricsListen = ":9090"
)

// Config holds the runtime configuration
type Config struct {
	Path   string
	Logger *logging.Logger
	// Optional tolerates a missing file at Path, leaving the environment as
	// the only source.
	Optional bool
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)

	Definition *Definition
}

// Definition represents the approtate.yaml structure.
type Definition struct {
	Version int `yaml:"version,omitempty" json:"version,omitempty"`

	TenantID    string `yaml:"tenant_id" json:"tenant_id"`
	ClientID    string `yaml:"client_id" json:"client_id"`
	SecretName  string `yaml:"secret_name" json:"secret_name"`
	AppObjectID string `yaml:"app_object_id" json:"app_object_id"`

	DisplayName  string `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	ValidityDays int    `yaml:"validity_days,omitempty" json:"validity_days,omitempty"`
	PrunePolicy  string `yaml:"prune_policy,omitempty" json:"prune_policy,omitempty"`
	// Cloud selects the national cloud for the directory API.
	Cloud string `yaml:"cloud,omitempty" json:"cloud,omitempty"`

	Vault vaults.Config `yaml:"vault" json:"vault"`

	Schedule      string              `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	Log           LogConfig           `yaml:"log,omitempty" json:"log,omitempty"`
	Metrics       MetricsConfig       `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	History       HistoryConfig       `yaml:"history,omitempty" json:"history,omitempty"`
	Notifications *NotificationConfig `yaml:"notifications,omitempty" json:"notifications,omitempty"`
}

// LogConfig controls log output.
type LogConfig struct {
	// Format is "text" (default) or "json".
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Debug  bool   `yaml:"debug,omitempty" json:"debug,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint in serve mode.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Listen  string `yaml:"listen,omitempty" json:"listen,omitempty"`
}

// HistoryConfig controls the local run history.
type HistoryConfig struct {
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	// Dir overrides the data directory.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`
	// Keep is how many runs to retain. Zero keeps everything.
	Keep int `yaml:"keep,omitempty" json:"keep,omitempty"`
}

// Load reads, validates and overrides the configuration.
func (c *Config) Load() error {
	def := &Definition{}

	if c.Path != "" {
		data, err := os.ReadFile(c.Path)
		switch {
		case err == nil:
			if def, err = parse(data); err != nil {
				return err
			}
		case os.IsNotExist(err) && c.Optional:
			c.logger().Debug("No configuration file at %s, using environment only", c.Path)
		case os.IsNotExist(err):
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create the file or pass --config with the right path",
			}
		default:
			return dserrors.UserError{
				Message:    "Failed to read configuration file",
				Details:    err.Error(),
				Suggestion: "Check file permissions and path",
				Err:        err,
			}
		}
	}

	lookup := c.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(def, lookup); err != nil {
		return err
	}

	def.applyDefaults()
	c.Definition = def
	return nil
}

func (c *Config) logger() *logging.Logger {
	if c.Logger == nil {
		return logging.Discard()
	}
	return c.Logger
}

func parse(data []byte) (*Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &Definition{}, nil
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("invalid YAML syntax in configuration file: %v", err),
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("configuration does not match the expected types: %v", err),
			Suggestion: "Compare the file against the example in the README",
		}
	}

	if def.Version != 0 && def.Version != 1 {
		return nil, dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 1' at the top of the file",
		}
	}
	return &def, nil
}

func (d *Definition) applyDefaults() {
	if d.Version == 0 {
		d.Version = 1
	}
	if d.Vault.Type == "" {
		d.Vault.Type = vaults.TypeAzureKeyVault
	}
	if d.Schedule == "" {
		d.Schedule = DefaultSchedule
	}
	if d.Cloud == "" {
		d.Cloud = graph.CloudPublic
	}
	if d.Metrics.Listen == "" {
		d.Metrics.Listen = DefaultMetricsListen
	}
	if d.Log.Format == "" {
		d.Log.Format = "text"
	}
}

// Rotation returns the settings one rotation run needs. When no vault URL
// is configured the backend's endpoint is used, so non-URL backends still
// satisfy the required vault setting.
func (d *Definition) Rotation() rotation.Config {
	vaultURL := d.Vault.URL
	if vaultURL == "" {
		vaultURL = d.Vault.Endpoint()
	}
	return rotation.Config{
		TenantID:    d.TenantID,
		ClientID:    d.ClientID,
		SecretName:  d.SecretName,
		AppObjectID: d.AppObjectID,
		VaultURL:    vaultURL,
		DisplayName: d.DisplayName,
		Validity:    time.Duration(d.ValidityDays) * 24 * time.Hour,
		PrunePolicy: rotation.PrunePolicy(d.PrunePolicy),
	}
}

// Validate checks what Load cannot: that a run would start. It makes no
// network calls.
func (d *Definition) Validate() error {
	rc := d.Rotation()
	if err := rc.Validate(); err != nil {
		return dserrors.ConfigError{
			Message:    err.Error(),
			Suggestion: "Set them in the file or via TenantId, ClientId, ClientSecretName, AppObjectId and KeyVaultURI",
		}
	}
	if d.ValidityDays < 0 {
		return dserrors.ConfigError{Field: "validity_days", Value: d.ValidityDays, Message: "must not be negative"}
	}

	known := false
	for _, t := range vaults.Types() {
		if t == d.Vault.Type {
			known = true
			break
		}
	}
	if !known {
		return dserrors.ConfigError{
			Field:      "vault.type",
			Value:      d.Vault.Type,
			Message:    "unknown vault type",
			Suggestion: fmt.Sprintf("Use one of: %v", vaults.Types()),
		}
	}

	if d.Notifications != nil {
		if err := d.Notifications.Validate(); err != nil {
			return err
		}
	}
	return nil
}
