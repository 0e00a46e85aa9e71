package authclient

import (
	"net/http"
)

// bearerRoundTripper is an HTTP RoundTripper that attaches a bearer access
// token to every outgoing request
type bearerRoundTripper struct {
	transport http.RoundTripper
	token     func() string
}

// newBearerRoundTripper creates a new RoundTripper that injects the access
// token returned by the given function. The token is read per request so a
// refreshed token takes effect without rebuilding the client.
func newBearerRoundTripper(token func() string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &bearerRoundTripper{
		transport: base,
		token:     token,
	}
}

// RoundTrip implements the http.RoundTripper interface
func (rt *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	clonedReq := req.Clone(req.Context())

	if token := rt.token(); token != "" {
		clonedReq.Header.Set("Authorization", "Bearer "+token)
	}

	return rt.transport.RoundTrip(clonedReq)
}
