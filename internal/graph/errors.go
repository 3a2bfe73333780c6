package graph

import (
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"

	"github.com/systmms/approtate/pkg/directory"
)

// Graph error codes that carry a classification regardless of status.
var (
	authCodes = map[string]bool{
		"Authorization_RequestDenied": true,
		"InvalidAuthenticationToken":  true,
		"Authentication_Unauthorized": true,
	}
	notFoundCodes = map[string]bool{
		"Request_ResourceNotFound": true,
		"ResourceNotFound":         true,
	}
)

// classify wraps a Graph SDK error in a *directory.Error.
func classify(op, objectID string, err error) error {
	return &directory.Error{Op: op, ObjectID: objectID, Kind: kindOf(err), Err: err}
}

func kindOf(err error) error {
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return directory.ErrAuth
	}

	var odataErr *odataerrors.ODataError
	if !errors.As(err, &odataErr) {
		return nil
	}

	code := ""
	if main := odataErr.GetErrorEscaped(); main != nil && main.GetCode() != nil {
		code = *main.GetCode()
	}

	switch {
	case authCodes[code]:
		return directory.ErrAuth
	case notFoundCodes[code]:
		return directory.ErrNotFound
	}

	switch odataErr.ResponseStatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return directory.ErrAuth
	case http.StatusNotFound:
		return directory.ErrNotFound
	case http.StatusTooManyRequests:
		return directory.ErrRateLimited
	}
	return nil
}
