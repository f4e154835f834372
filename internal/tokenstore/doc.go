// Package tokenstore provides storage for the credentials of one Moon connection.
//
// A TokenStore holds an access token, a refresh token and the access token's
// expiry. The client reads the access token on every request and writes new
// credentials after a successful refresh. Several backends are available with
// different durability tradeoffs:
//   - Memory: volatile, lost when the process exits
//   - File: JSON file with atomic writes and 0600 permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Redis: shared sessions for several processes using the same connection
//   - Env: read-only static API key, no refresh possible
//
// Token refresh requires writable storage, so the env backend is limited to
// API-key authentication.
package tokenstore
