package httpclient

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/docflowhq/docflow/pkg/version"
)

type userAgentTransport struct {
	agent string
	rt    http.RoundTripper
}

func (u *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r2 := req.Clone(req.Context())
	r2.Header.Set("User-Agent", u.agent)
	return u.rt.RoundTrip(r2)
}

// New returns an http.Client that stamps every request with the docflow
// User-Agent. Callers that need a per-call deadline should still pass a
// context; Timeout here is only a safety net for forgotten ones.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &userAgentTransport{
			agent: fmt.Sprintf("Docflow/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH),
			rt:    http.DefaultTransport,
		},
	}
}
