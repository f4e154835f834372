// Package httpclient is the authenticated HTTP client for a Moon connection.
//
// Every request goes through the same pipeline:
//   - the stored access token is attached as "Authorization: Bearer <token>"
//   - the request is sent, retrying network failures and 5xx responses with
//     exponential backoff (baseDelay, 2*baseDelay, 4*baseDelay, ...)
//   - a 401 triggers one token refresh, shared by all requests that are
//     rejected while it runs, after which the request is replayed once
//   - any failure is returned as *apierror.Error
//
// When the refresh itself fails the session-expired callback runs once for
// that refresh cycle and every waiting request receives the error.
//
//	client, err := httpclient.New(baseURL, store,
//		httpclient.WithSessionExpired(func() { log.Println("please log in again") }),
//	)
//	users, err := httpclient.JSON[[]User](client.Get(ctx, "/users:list"))
package httpclient
