package narinfo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Fetcher probes binary caches for narinfo documents. Results, including
// not-found results, are cached per store hash so a crawl never asks the same
// cache about the same path twice.
type Fetcher struct {
	servers []string
	client  *http.Client
	cache   *lru.Cache[string, *NarInfo]
}

const fetchCacheSize = 4096

// NewFetcher creates a fetcher that tries the given substituters in order.
func NewFetcher(servers []string) (*Fetcher, error) {
	cache, err := lru.New[string, *NarInfo](fetchCacheSize)
	if err != nil {
		return nil, err
	}
	return &Fetcher{
		servers: servers,
		client:  &http.Client{Timeout: 30 * time.Second},
		cache:   cache,
	}, nil
}

// Fetch returns the narinfo for an output path, or nil when no configured
// cache has it. Server errors on one cache fall through to the next.
func (f *Fetcher) Fetch(ctx context.Context, outputPath string) (*NarInfo, error) {
	hash, err := StoreHash(outputPath)
	if err != nil {
		return nil, err
	}

	if info, ok := f.cache.Get(hash); ok {
		return info, nil
	}

	for _, server := range f.servers {
		url := narinfoURL(server, hash)
		info, err := f.fetchOne(ctx, url)
		if err != nil {
			slog.Warn("narinfo fetch failed", "url", url, "error", err)
			continue
		}
		if info == nil {
			continue
		}
		f.cache.Add(hash, info)
		return info, nil
	}

	f.cache.Add(hash, nil)
	return nil, nil
}

// narinfoURL accepts substituters both as bare host names and as the full
// URLs found in nix.conf.
func narinfoURL(server, hash string) string {
	if !strings.Contains(server, "://") {
		server = "https://" + server
	}
	return fmt.Sprintf("%s/%s.narinfo", strings.TrimRight(server, "/"), hash)
}

func (f *Fetcher) fetchOne(ctx context.Context, url string) (*NarInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cache responded with status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return Parse(string(body))
}
