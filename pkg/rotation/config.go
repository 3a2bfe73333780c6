package rotation

import (
	"fmt"
	"strings"
	"time"
)

// DefaultValidity is how long a newly created credential stays valid.
const DefaultValidity = 180 * 24 * time.Hour

// PrunePolicy decides whether the credential list is written back when
// nothing expired.
type PrunePolicy string

const (
	// PruneSkipUnchanged skips the replace call when no credential expired.
	PruneSkipUnchanged PrunePolicy = "skip-unchanged"

	// PruneAlways writes the list back even when nothing was removed.
	PruneAlways PrunePolicy = "always"
)

// Valid reports whether p is a known policy. The empty policy is valid and
// means PruneSkipUnchanged.
func (p PrunePolicy) Valid() bool {
	switch p {
	case "", PruneSkipUnchanged, PruneAlways:
		return true
	}
	return false
}

// Config is everything one rotation run needs.
type Config struct {
	// TenantID is the directory tenant the application lives in.
	TenantID string
	// ClientID is the application (client) id used to authenticate.
	ClientID string
	// SecretName is the vault entry holding the client secret.
	SecretName string
	// AppObjectID is the object id of the application whose credentials
	// are rotated. It is not the client id.
	AppObjectID string
	// VaultURL is the vault endpoint.
	VaultURL string

	// DisplayName labels new credentials. Defaults to SecretName.
	DisplayName string
	// Validity defaults to DefaultValidity.
	Validity time.Duration
	// PrunePolicy defaults to PruneSkipUnchanged.
	PrunePolicy PrunePolicy
}

// Validate checks that every required field is set.
func (c Config) Validate() error {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"tenant_id", c.TenantID},
		{"client_id", c.ClientID},
		{"secret_name", c.SecretName},
		{"app_object_id", c.AppObjectID},
		{"vault_url", c.VaultURL},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	if c.Validity < 0 {
		return fmt.Errorf("validity must not be negative, got %s", c.Validity)
	}
	if !c.PrunePolicy.Valid() {
		return fmt.Errorf("unknown prune policy %q (expected %q or %q)", c.PrunePolicy, PruneSkipUnchanged, PruneAlways)
	}
	return nil
}

// WithDefaults fills in the optional fields.
func (c Config) WithDefaults() Config {
	if c.DisplayName == "" {
		c.DisplayName = c.SecretName
	}
	if c.Validity == 0 {
		c.Validity = DefaultValidity
	}
	if c.PrunePolicy == "" {
		c.PrunePolicy = PruneSkipUnchanged
	}
	return c
}
