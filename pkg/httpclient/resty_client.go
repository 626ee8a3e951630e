package httpclient

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// NewRestyHTTPClient exposes a configured resty.Client for callers needing
// custom verbs outside the adapter.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
// resty.New installs a cookie jar, so cookies set by the backend are sent on
// later calls.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetRetryCount(0)
	return c
}

// newAdapterClient builds the client used by an Adapter. It has no timeout and
// never retries; callers bound calls through their context.
func newAdapterClient(rt http.RoundTripper, log Logger) *resty.Client {
	c := newRestyBaseClient(0)
	c.SetLogger(restyLogger{log: log})
	if rt != nil {
		c.SetTransport(rt)
	}
	return c
}
