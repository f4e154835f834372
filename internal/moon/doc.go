// Package moon provides typed access to the Moon API on top of the
// authenticated HTTP client.
//
// Every service call goes through httpclient.Client, so bearer tokens,
// refresh on 401 and retries apply uniformly. Input that cannot form a valid
// request (an empty collection name, a missing record id) is rejected with an
// apierror.CodeInvalidRequest error before anything is sent.
package moon
