package moon

import (
	"context"
	"net/url"
	"strconv"

	"github.com/florianilch/moonctl/internal/apierror"
	"github.com/florianilch/moonctl/internal/httpclient"
)

// APIKey describes an API key without its secret.
type APIKey struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role"`
	CanWrite    bool   `json:"can_write"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreatedAPIKey is returned once on creation and carries the secret.
type CreatedAPIKey struct {
	APIKey
	Key string `json:"key"`
}

// RotatedAPIKey is returned by Rotate and carries the new secret.
type RotatedAPIKey struct {
	Message string `json:"message"`
	Warning string `json:"warning"`
	APIKey  APIKey `json:"apikey"`
	Key     string `json:"key"`
}

// APIKeyList is one page of API keys.
type APIKeyList struct {
	APIKeys    []APIKey `json:"apikeys"`
	NextCursor *string  `json:"next_cursor,omitempty"`
	HasMore    *bool    `json:"has_more,omitempty"`
	Total      int      `json:"total,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// More reports whether another page exists.
func (l APIKeyList) More() bool {
	return l.HasMore != nil && *l.HasMore
}

// CreateAPIKeyInput is the body of /apikeys:create.
type CreateAPIKeyInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Role        string `json:"role" validate:"required,oneof=admin user"`
	CanWrite    bool   `json:"can_write"`
}

// UpdateAPIKeyInput changes the name or description of a key.
type UpdateAPIKeyInput struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// APIKeyService administers API keys.
type APIKeyService struct {
	requester Requester
}

// List returns a page of API keys. When the server omits has_more it is
// derived from next_cursor.
func (s *APIKeyService) List(ctx context.Context, limit int, after string) (APIKeyList, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if after != "" {
		query.Set("after", after)
	}

	list, err := httpclient.JSON[APIKeyList](s.requester.Get(ctx, "/apikeys:list", httpclient.WithQuery(query)))
	if err != nil {
		return APIKeyList{}, err
	}
	if list.APIKeys == nil {
		list.APIKeys = []APIKey{}
	}
	if list.HasMore == nil && list.NextCursor != nil {
		more := *list.NextCursor != ""
		list.HasMore = &more
	}
	return list, nil
}

// Get returns an API key by id.
func (s *APIKeyService) Get(ctx context.Context, id string) (APIKey, error) {
	if id == "" {
		return APIKey{}, invalidKeyID()
	}
	return httpclient.JSON[APIKey](s.requester.Get(ctx, "/apikeys:get", idQuery(id)))
}

// Create creates an API key. The secret is only ever returned here.
func (s *APIKeyService) Create(ctx context.Context, in CreateAPIKeyInput) (CreatedAPIKey, error) {
	if err := validateInput(in); err != nil {
		return CreatedAPIKey{}, err
	}
	return httpclient.JSON[CreatedAPIKey](s.requester.Post(ctx, "/apikeys:create", in))
}

// Update changes the name or description of a key.
func (s *APIKeyService) Update(ctx context.Context, id string, in UpdateAPIKeyInput) (APIKey, error) {
	if id == "" {
		return APIKey{}, invalidKeyID()
	}
	return httpclient.JSON[APIKey](s.requester.Post(ctx, "/apikeys:update", in, idQuery(id)))
}

// Rotate replaces the secret of a key. The old secret stops working immediately.
func (s *APIKeyService) Rotate(ctx context.Context, id string) (RotatedAPIKey, error) {
	if id == "" {
		return RotatedAPIKey{}, invalidKeyID()
	}
	return httpclient.JSON[RotatedAPIKey](s.requester.Post(ctx, "/apikeys:update",
		map[string]string{"action": "rotate"}, idQuery(id)))
}

// Destroy deletes an API key.
func (s *APIKeyService) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return invalidKeyID()
	}
	_, err := s.requester.Post(ctx, "/apikeys:destroy", emptyBody, idQuery(id))
	return err
}

func invalidKeyID() error {
	return apierror.Invalid("api key id is required")
}
