// Package tokensource performs the token exchanges of the Moon auth API.
//
// Moon issues bearer access tokens together with a refresh token:
//   - POST {base}/auth:login with {"username","password"}
//   - POST {base}/auth:refresh with {"refresh_token"}
//
// Both answer with a JSON body carrying access_token, refresh_token and an
// expiry given either as expires_in (seconds from now) or expires_at (absolute).
// When the server sends no expiry, the exp claim of a JWT access token is used.
//
// # Custom Base Transport
//
// Configure a custom base transport for token requests (e.g., for proxies or tests):
//
//	src, err := tokensource.New(
//		"https://moon.example.com/api",
//		tokensource.WithTransport(customTransport),
//	)
package tokensource
