package discovery

import (
	"context"
	"io"
	"net/http"
	"time"
)

// ImagePrefetcher warms candidate photos with plain GETs so the first
// render never waits on the network. Non-authoritative: no retry, no
// surfaced errors.
type ImagePrefetcher struct {
	client *http.Client
}

func NewImagePrefetcher() *ImagePrefetcher {
	return &ImagePrefetcher{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Prefetch fetches each URL and discards the body. Abandons silently on
// context cancellation.
func (p *ImagePrefetcher) Prefetch(ctx context.Context, urls []string) {
	for _, u := range urls {
		if ctx.Err() != nil {
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			continue
		}
		resp, err := p.client.Do(req)
		if err != nil {
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}
