package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"frameworks/coursebook/pkg/clients"
)

const maxRetries = 3

var retryExecutor = clients.NewHTTPExecutor(clients.HTTPExecutorConfig{
	MaxRetries:  maxRetries,
	BaseDelay:   50 * time.Millisecond,
	MaxDelay:    2 * time.Second,
	ShouldRetry: clients.DefaultShouldRetry,
})

// doWithRetry issues the request built by newReq, rebuilding it for every
// attempt so the body reader is fresh. Retryable responses from intermediate
// attempts are drained and closed; the last response is returned as-is so the
// caller can report its status.
func doWithRetry(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) (*http.Response, error) {
	var last *http.Response
	resp, err := clients.ExecuteHTTP(ctx, retryExecutor, func() (*http.Response, error) {
		if last != nil {
			_, _ = io.Copy(io.Discard, last.Body)
			_ = last.Body.Close()
			last = nil
		}
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		last = resp
		return resp, nil
	})
	if err != nil {
		if last != nil {
			_ = last.Body.Close()
		}
		return nil, err
	}
	if resp != nil && clients.DefaultShouldRetry(resp, nil) {
		status := resp.Status
		_ = resp.Body.Close()
		return nil, fmt.Errorf("retries exhausted: last status %s", status)
	}
	return resp, nil
}
