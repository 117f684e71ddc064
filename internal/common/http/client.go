// Package http wraps the shared client used by the vision and chat
// provider adapters.
package http

import (
	"context"
	"net/http"
	"time"
)

// Client issues provider requests. A zero timeout leaves deadline control
// entirely to the caller's context, which is how the pipeline drives its
// per-call budgets.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// DoWithContext sends req bound to ctx, so cancellation and deadlines
// propagate into the transport.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}
