package graph

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/google/uuid"
	abstractions "github.com/microsoft/kiota-abstractions-go"
	kiotaauth "github.com/microsoft/kiota-authentication-azure-go"
	khttp "github.com/microsoft/kiota-http-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/applications"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	msgraphcore "github.com/microsoftgraph/msgraph-sdk-go-core"

	"github.com/systmms/approtate/internal/logging"
	"github.com/systmms/approtate/pkg/directory"
	"github.com/systmms/approtate/pkg/rotation"
)

// National clouds and their Graph endpoints.
const (
	CloudPublic     = "AzurePublic"
	CloudGovernment = "AzureGovernment"
	CloudChina      = "AzureChina"
)

type cloudEndpoints struct {
	config  cloud.Configuration
	baseURL string
}

var clouds = map[string]cloudEndpoints{
	CloudPublic:     {cloud.AzurePublic, "https://graph.microsoft.com"},
	CloudGovernment: {cloud.AzureGovernment, "https://graph.microsoft.us"},
	CloudChina:      {cloud.AzureChina, "https://microsoftgraph.chinacloudapi.cn"},
}

// Options configures clients built by NewWithSecret and Factory.
type Options struct {
	// Cloud is one of the Cloud* constants. Defaults to CloudPublic.
	Cloud string
	// HTTPClient overrides the middleware-equipped default.
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client implements directory.Client.
type Client struct {
	service *msgraphsdk.GraphServiceClient
	logger  *logging.Logger
}

var _ directory.Client = (*Client)(nil)

// New wraps an existing request adapter. Tests pass a mock adapter here.
func New(adapter abstractions.RequestAdapter, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		service: msgraphsdk.NewGraphServiceClient(adapter),
		logger:  logger,
	}
}

// NewWithCredential builds a client for any token credential.
func NewWithCredential(cred azcore.TokenCredential, opts Options) (*Client, error) {
	endpoints, err := resolveCloud(opts.Cloud)
	if err != nil {
		return nil, err
	}

	authProvider, err := kiotaauth.NewAzureIdentityAuthenticationProviderWithScopes(cred, []string{endpoints.baseURL + "/.default"})
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph auth provider: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}

	adapter, err := msgraphsdk.NewGraphRequestAdapterWithParseNodeFactoryAndSerializationWriterFactoryAndHttpClient(authProvider, nil, nil, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph request adapter: %w", err)
	}
	adapter.SetBaseUrl(endpoints.baseURL + "/v1.0")

	return New(adapter, opts.Logger), nil
}

// NewWithSecret authenticates as clientID with a client secret.
func NewWithSecret(tenantID, clientID, secret string, opts Options) (*Client, error) {
	endpoints, err := resolveCloud(opts.Cloud)
	if err != nil {
		return nil, err
	}

	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, secret, &azidentity.ClientSecretCredentialOptions{
		ClientOptions: azcore.ClientOptions{Cloud: endpoints.config},
	})
	if err != nil {
		return nil, &directory.Error{Op: "auth", Kind: directory.ErrAuth, Err: err}
	}
	return NewWithCredential(cred, opts)
}

// Factory returns a rotation.DirectoryFactory that authenticates with the
// secret the job read from the vault.
func Factory(opts Options) rotation.DirectoryFactory {
	return func(_ context.Context, cfg rotation.Config, secret string) (directory.Client, error) {
		return NewWithSecret(cfg.TenantID, cfg.ClientID, secret, opts)
	}
}

func resolveCloud(name string) (cloudEndpoints, error) {
	if name == "" {
		name = CloudPublic
	}
	endpoints, ok := clouds[name]
	if !ok {
		return cloudEndpoints{}, fmt.Errorf("unknown cloud %q", name)
	}
	return endpoints, nil
}

// defaultHTTPClient is the Graph middleware stack without the retry handler.
// Retries are the caller's decision; a throttled request surfaces as
// directory.ErrRateLimited.
func defaultHTTPClient() *http.Client {
	defaultClientOptions := msgraphsdk.GetDefaultClientOptions()
	defaultMiddleWare := msgraphcore.GetDefaultMiddlewaresWithOptions(&defaultClientOptions)

	middleware := make([]khttp.Middleware, 0, len(defaultMiddleWare))
	for _, m := range defaultMiddleWare {
		if _, ok := m.(*khttp.RetryHandler); ok {
			continue
		}
		middleware = append(middleware, m)
	}
	return khttp.GetDefaultClient(middleware...)
}

// AddCredential calls addPassword on the application.
func (c *Client) AddCredential(ctx context.Context, objectID, displayName string, expiry time.Time) (directory.Credential, error) {
	c.logger.Debug("Adding password credential %q to application %s", displayName, objectID)

	pc := models.NewPasswordCredential()
	pc.SetDisplayName(to.Ptr(displayName))
	pc.SetEndDateTime(to.Ptr(expiry))

	body := applications.NewItemAddPasswordPostRequestBody()
	body.SetPasswordCredential(pc)

	created, err := c.service.Applications().ByApplicationId(objectID).AddPassword().Post(ctx, body, nil)
	if err != nil {
		return directory.Credential{}, classify("add", objectID, err)
	}
	if created == nil {
		return directory.Credential{}, &directory.Error{Op: "add", ObjectID: objectID, Err: fmt.Errorf("empty addPassword response")}
	}

	return fromModel(created), nil
}

// GetCredentials reads the application's passwordCredentials.
func (c *Client) GetCredentials(ctx context.Context, objectID string) ([]directory.Credential, error) {
	c.logger.Debug("Reading password credentials of application %s", objectID)

	app, err := c.service.Applications().ByApplicationId(objectID).Get(ctx, &applications.ApplicationItemRequestBuilderGetRequestConfiguration{
		QueryParameters: &applications.ApplicationItemRequestBuilderGetQueryParameters{
			Select: []string{"id", "passwordCredentials"},
		},
	})
	if err != nil {
		return nil, classify("get", objectID, err)
	}
	if app == nil || app.GetPasswordCredentials() == nil {
		return nil, nil
	}

	list := app.GetPasswordCredentials()
	creds := make([]directory.Credential, 0, len(list))
	for _, m := range list {
		if m == nil {
			continue
		}
		creds = append(creds, fromModel(m))
	}
	return creds, nil
}

// ReplaceCredentials patches the application with creds as its complete
// passwordCredentials collection.
func (c *Client) ReplaceCredentials(ctx context.Context, objectID string, creds []directory.Credential) error {
	c.logger.Debug("Replacing password credentials of application %s with %d entries", objectID, len(creds))

	list := make([]models.PasswordCredentialable, 0, len(creds))
	for _, cred := range creds {
		m, err := toModel(cred)
		if err != nil {
			return &directory.Error{Op: "replace", ObjectID: objectID, Err: err}
		}
		list = append(list, m)
	}

	app := models.NewApplication()
	app.SetPasswordCredentials(list)

	if _, err := c.service.Applications().ByApplicationId(objectID).Patch(ctx, app, nil); err != nil {
		return classify("replace", objectID, err)
	}
	return nil
}

func fromModel(m models.PasswordCredentialable) directory.Credential {
	cred := directory.Credential{
		StartDateTime: m.GetStartDateTime(),
		EndDateTime:   m.GetEndDateTime(),
	}
	if id := m.GetKeyId(); id != nil {
		cred.KeyID = id.String()
	}
	if name := m.GetDisplayName(); name != nil {
		cred.DisplayName = *name
	}
	if hint := m.GetHint(); hint != nil {
		cred.Hint = *hint
	}
	if text := m.GetSecretText(); text != nil {
		cred.SecretText = *text
	}
	return cred
}

func toModel(cred directory.Credential) (models.PasswordCredentialable, error) {
	keyID, err := uuid.Parse(cred.KeyID)
	if err != nil {
		return nil, fmt.Errorf("credential key id %q: %w", cred.KeyID, err)
	}

	m := models.NewPasswordCredential()
	m.SetKeyId(&keyID)
	if cred.DisplayName != "" {
		m.SetDisplayName(to.Ptr(cred.DisplayName))
	}
	if cred.Hint != "" {
		m.SetHint(to.Ptr(cred.Hint))
	}
	m.SetStartDateTime(cred.StartDateTime)
	m.SetEndDateTime(cred.EndDateTime)
	return m, nil
}
