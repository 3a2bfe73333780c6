package config

import (
	"strconv"

	dserrors "github.com/systmms/approtate/internal/errors"
)

// envOverride maps environment variables onto a field. Names are tried in
// order and the first one set wins. The unprefixed names are the app
// settings used by existing function-app deployments.
type envOverride struct {
	names []string
	apply func(d *Definition, value string) error
}

func setString(field func(*Definition) *string) func(*Definition, string) error {
	return func(d *Definition, value string) error {
		*field(d) = value
		return nil
	}
}

var envOverrides = []envOverride{
	{[]string{"APPROTATE_TENANT_ID", "TenantId"}, setString(func(d *Definition) *string { return &d.TenantID })},
	{[]string{"APPROTATE_CLIENT_ID", "ClientId"}, setString(func(d *Definition) *string { return &d.ClientID })},
	{[]string{"APPROTATE_SECRET_NAME", "ClientSecretName"}, setString(func(d *Definition) *string { return &d.SecretName })},
	{[]string{"APPROTATE_APP_OBJECT_ID", "AppObjectId"}, setString(func(d *Definition) *string { return &d.AppObjectID })},
	{[]string{"APPROTATE_VAULT_URL", "KeyVaultURI"}, setString(func(d *Definition) *string { return &d.Vault.URL })},
	{[]string{"APPROTATE_VAULT_TYPE"}, setString(func(d *Definition) *string { return &d.Vault.Type })},
	{[]string{"APPROTATE_DISPLAY_NAME"}, setString(func(d *Definition) *string { return &d.DisplayName })},
	{[]string{"APPROTATE_PRUNE_POLICY"}, setString(func(d *Definition) *string { return &d.PrunePolicy })},
	{[]string{"APPROTATE_SCHEDULE"}, setString(func(d *Definition) *string { return &d.Schedule })},
	{[]string{"APPROTATE_CLOUD"}, setString(func(d *Definition) *string { return &d.Cloud })},
	{[]string{"APPROTATE_VALIDITY_DAYS"}, func(d *Definition, value string) error {
		days, err := strconv.Atoi(value)
		if err != nil {
			return dserrors.ConfigError{
				Field:      "APPROTATE_VALIDITY_DAYS",
				Value:      value,
				Message:    "must be a whole number of days",
				Suggestion: "For example: APPROTATE_VALIDITY_DAYS=180",
			}
		}
		d.ValidityDays = days
		return nil
	}},
}

func applyEnv(d *Definition, lookup func(string) (string, bool)) error {
	for _, o := range envOverrides {
		for _, name := range o.names {
			value, ok := lookup(name)
			if !ok || value == "" {
				continue
			}
			if err := o.apply(d, value); err != nil {
				return err
			}
			break
		}
	}
	return nil
}
