package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/resilience"
)

// Source loads the catalog payload from some backing store.
type Source interface {
	Load(ctx context.Context) (Payload, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Payload, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) (Payload, error) { return f(ctx) }

// FileSource reads a JSON payload from disk.
type FileSource struct {
	Path string
}

// Load reads and validates the file.
func (s FileSource) Load(_ context.Context) (payload Payload, err error) {
	defer func() { observeLoad("file", err) }()
	if strings.TrimSpace(s.Path) == "" {
		return Payload{}, errors.New("catalog: file path not configured")
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return Payload{}, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()
	return decode(f)
}

// HTTPSource fetches the payload from a JSON endpoint. Failed fetches are
// retried, and a Breaker, when set, stops hammering an upstream that keeps
// failing.
type HTTPSource struct {
	URL    string
	Client *http.Client
	// Header is added to every request, e.g. an Authorization token.
	Header   http.Header
	Breaker  *resilience.Breaker
	Attempts int
	Backoff  time.Duration
}

// NewHTTPSource builds an HTTPSource with a traced client, the given timeout
// and a breaker named "catalog_http".
func NewHTTPSource(url string, timeout time.Duration) HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return HTTPSource{
		URL: url,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker:  resilience.NewBreaker("catalog_http", 3, 0.5, 30*time.Second),
		Attempts: 3,
		Backoff:  200 * time.Millisecond,
	}
}

// Load issues a GET request and decodes the response body.
func (s HTTPSource) Load(ctx context.Context) (payload Payload, err error) {
	defer func() { observeLoad("http", err) }()
	if strings.TrimSpace(s.URL) == "" {
		return Payload{}, errors.New("catalog: url not configured")
	}
	fetch := func(ctx context.Context) error {
		return resilience.Retry(ctx, s.Attempts, s.Backoff, func(ctx context.Context) error {
			var ferr error
			payload, ferr = s.fetch(ctx)
			return ferr
		})
	}
	if s.Breaker != nil {
		err = s.Breaker.Do(ctx, fetch)
	} else {
		err = fetch(ctx)
	}
	if err != nil {
		return Payload{}, err
	}
	return payload, nil
}

func (s HTTPSource) fetch(ctx context.Context) (Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return Payload{}, resilience.Permanent(fmt.Errorf("build catalog request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range s.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("fetch catalog: unexpected status %d", resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return Payload{}, resilience.Permanent(err)
		}
		return Payload{}, err
	}
	payload, err := decode(resp.Body)
	if err != nil {
		return Payload{}, resilience.Permanent(err)
	}
	return payload, nil
}

func decode(r io.Reader) (Payload, error) {
	var payload Payload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return Payload{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := Validate(payload); err != nil {
		return Payload{}, err
	}
	return payload, nil
}

func observeLoad(source string, err error) {
	if obs.CatalogLoadTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.CatalogLoadTotal.WithLabelValues(source, result).Inc()
}
