// Package httpx builds the HTTP clients used by the liveness checker, the
// stream-link resolver and the avatar cache.
//
// NewClient(auth, timeout) wraps the default transport in an
// authRoundTripper that injects API key, bearer or basic credentials from
// config.AuthConfig on every request. GetJSON and GetBytes perform a
// context-bound GET and reject non-2xx responses. Expand substitutes the
// {username} placeholder of an endpoint template.
package httpx
