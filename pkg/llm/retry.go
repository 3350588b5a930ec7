package llm

import (
	"context"
	"net/http"
	"time"
)

const (
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// doWithRetry retries transient transport failures and throttling responses.
// The request body must be rebuildable, hence the factory. Application-level
// failures (4xx other than 429) are returned to the caller on first sight.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			_ = resp.Body.Close()
			lastErr = &httpStatusError{status: resp.Status}
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

type httpStatusError struct {
	status string
}

func (e *httpStatusError) Error() string {
	return "retryable status: " + e.status
}
