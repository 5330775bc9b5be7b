package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Fetcher loads uploaded document bytes, preferring the bucket and falling
// back to the public URL the upload service reported.
type Fetcher struct {
	store      *ObjectStore
	httpClient *http.Client
	maxBytes   int64
}

func NewFetcher(store *ObjectStore, maxBytes int64) *Fetcher {
	return &Fetcher{
		store:      store,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxBytes:   maxBytes,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, key, url string) ([]byte, error) {
	if f.store != nil && key != "" {
		data, err := f.store.Get(ctx, key, f.maxBytes)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrObjectNotFound) || url == "" {
			return nil, err
		}
	}
	if url == "" {
		return nil, fmt.Errorf("no url for %s: %w", key, ErrObjectNotFound)
	}
	return f.fetchURL(ctx, url)
}

func (f *Fetcher) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", url, ErrObjectNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}
	return readLimited(resp.Body, f.maxBytes)
}
