package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the operator with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  " + e.Suggestion
	}

	return msg
}

// BackendError enhances vault and directory errors with context
func BackendError(backend string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s error during %s", backend, operation),
		Suggestion: getBackendSuggestion(backend, err),
		Err:        err,
	}
}

// getBackendSuggestion returns helpful suggestions based on backend and error
func getBackendSuggestion(backend string, err error) string {
	errStr := strings.ToLower(err.Error())

	switch backend {
	case "azure-keyvault":
		if strings.Contains(errStr, "forbidden") || strings.Contains(errStr, "403") {
			return "Grant the job identity 'Get' and 'Set' secret permissions (or the Key Vault Secrets Officer role)"
		}
		if strings.Contains(errStr, "secretnotfound") || strings.Contains(errStr, "404") {
			return "Seed the secret once by hand; rotation needs a working current secret to start from"
		}

	case "microsoft-graph":
		if strings.Contains(errStr, "authorization_requestdenied") || strings.Contains(errStr, "403") {
			return "The application needs Application.ReadWrite.OwnedBy (and must own itself) or Application.ReadWrite.All"
		}
		if strings.Contains(errStr, "invalid_client") || strings.Contains(errStr, "aadsts7000215") {
			return "The secret stored in the vault is not valid for this client id. Reconcile it manually"
		}
		if strings.Contains(errStr, "request_resourcenotfound") || strings.Contains(errStr, "404") {
			return "Check app_object_id: it is the application's object id, not its client (app) id"
		}

	case "aws-secretsmanager":
		if strings.Contains(errStr, "accessdenied") {
			return "Check IAM permissions for secretsmanager:GetSecretValue and secretsmanager:PutSecretValue"
		}
		if strings.Contains(errStr, "resourcenotfound") {
			return "Verify the secret name and region. List secrets with: 'aws secretsmanager list-secrets'"
		}

	case "gcp-secretmanager":
		if strings.Contains(errStr, "permissiondenied") {
			return "Check IAM permissions: secretmanager.versions.access and secretmanager.versions.add"
		}

	case "hashicorp-vault":
		if strings.Contains(errStr, "permission denied") {
			return "Check the Vault policy grants read and create/update on the KV v2 data path"
		}
	}

	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and endpoint configuration"
	}

	return ""
}

// SimplifyError simplifies complex error messages for operators
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	return err
}
