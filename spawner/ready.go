package spawner

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// WaitReady polls url until the server answers with any HTTP response or ctx
// ends. running is consulted between attempts so a crashed process fails fast.
func WaitReady(ctx context.Context, client *http.Client, url string, running func() bool) error {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	// Only reachability matters, never follow redirects
	probe := *client
	probe.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if running != nil && !running() {
			return struct{}{}, backoff.Permanent(fmt.Errorf("server exited before becoming ready"))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		resp, err := probe.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		resp.Body.Close()
		return struct{}{}, nil
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(0))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}
