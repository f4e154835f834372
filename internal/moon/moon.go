package moon

import (
	"context"
	"net/url"

	"github.com/florianilch/moonctl/internal/httpclient"
	"github.com/florianilch/moonctl/internal/tokenstore"
)

// Requester is the subset of httpclient.Client the services depend on.
type Requester interface {
	Get(ctx context.Context, path string, opts ...httpclient.RequestOption) (*httpclient.Response, error)
	Post(ctx context.Context, path string, body any, opts ...httpclient.RequestOption) (*httpclient.Response, error)
	Store() tokenstore.TokenStore
}

// Compile-time check that the authenticated client can serve the services
var _ Requester = (*httpclient.Client)(nil)

// Authenticator exchanges username and password for credentials.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (tokenstore.Credentials, error)
}

// Client groups the Moon API services sharing one connection.
type Client struct {
	Auth        *AuthService
	Collections *CollectionService
	Records     *RecordService
	Users       *UserService
	APIKeys     *APIKeyService

	requester Requester
}

// New creates a Client. auth is used for password login only; every other
// call is sent through requester.
func New(requester Requester, auth Authenticator) *Client {
	return &Client{
		Auth:        &AuthService{requester: requester, authenticator: auth},
		Collections: &CollectionService{requester: requester},
		Records:     &RecordService{requester: requester},
		Users:       &UserService{requester: requester},
		APIKeys:     &APIKeyService{requester: requester},
		requester:   requester,
	}
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status  string `json:"status"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// Health checks server availability. It does not require a session.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	return httpclient.JSON[HealthStatus](c.requester.Get(ctx, "/health", httpclient.WithoutAuth()))
}

// idQuery builds the ?id= query used by the user and API key endpoints.
func idQuery(id string) httpclient.RequestOption {
	return httpclient.WithQuery(url.Values{"id": {id}})
}

// emptyBody is sent by the destroy endpoints, which expect a JSON object.
var emptyBody = struct{}{}
