package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/florianilch/moonctl/internal/apierror"
	"github.com/florianilch/moonctl/internal/tokenstore"
)

// Request describes a call relative to the client's base URL.
type Request struct {
	Method string
	// Path is appended to the base URL and may carry a query string.
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// NoAuth sends the request without a bearer token and never refreshes on 401.
	NoAuth bool
}

// RequestOption adjusts a Request built by the method helpers.
type RequestOption func(*Request)

// WithQuery adds query parameters.
func WithQuery(query url.Values) RequestOption {
	return func(r *Request) {
		if r.Query == nil {
			r.Query = url.Values{}
		}
		for key, values := range query {
			for _, v := range values {
				r.Query.Add(key, v)
			}
		}
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Header == nil {
			r.Header = http.Header{}
		}
		r.Header.Set(key, value)
	}
}

// WithoutAuth sends the request unauthenticated.
func WithoutAuth() RequestOption {
	return func(r *Request) {
		r.NoAuth = true
	}
}

// Response is a successful (2xx) response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &apierror.Error{
			Code:    apierror.CodeUnknown,
			Message: fmt.Sprintf("decoding response: %v", err),
			Status:  r.StatusCode,
			Details: string(r.Body),
		}
	}
	return nil
}

// JSON decodes a response into T. It accepts the results of the client's
// method helpers directly:
//
//	info, err := httpclient.JSON[CollectionInfo](client.Get(ctx, path))
func JSON[T any](resp *Response, err error) (T, error) {
	var v T
	if err != nil {
		return v, err
	}
	if err := resp.Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}

// pendingRequest is a request captured before its first attempt. Every attempt,
// including the replay after a refresh, is built from the same method, URL and
// body bytes; only the Authorization header may differ.
type pendingRequest struct {
	method string
	url    string
	header http.Header
	body   []byte
	noAuth bool

	// authRetried is set before the request waits for a refresh cycle.
	authRetried bool
}

// build creates the http.Request for one attempt.
func (p *pendingRequest) build(ctx context.Context, accessToken string) (*http.Request, error) {
	var body io.Reader
	if p.body != nil {
		body = bytes.NewReader(p.body)
	}

	req, err := http.NewRequestWithContext(ctx, p.method, p.url, body)
	if err != nil {
		return nil, err
	}
	req.Header = p.header.Clone()

	if accessToken != "" && !p.noAuth {
		tokenstore.Credentials{AccessToken: accessToken}.Token().SetAuthHeader(req)
	}

	return req, nil
}

// encodeBody turns a helper's body argument into bytes.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, apierror.Invalid("encoding request body: %v", err)
		}
		return data, nil
	}
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}
