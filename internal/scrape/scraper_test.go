package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/vendorhub/internal/clock"
	"github.com/smallbiznis/vendorhub/internal/config"
	"github.com/smallbiznis/vendorhub/internal/retry"
)

const page = `<!doctype html>
<html>
<head>
  <title> Acme   Photography </title>
  <meta name="description" content="Listing photos for agents">
  <style>.x{color:red}</style>
  <script>var price = "$10";</script>
</head>
<body>
  <h1>Plans</h1>
  <p>Contact us   for a custom quote.</p>
  <div hidden>secret</div>
  <noscript>enable js</noscript>
</body>
</html>`

func TestParseExtractsVisibleText(t *testing.T) {
	got, err := Parse(strings.NewReader(page))
	require.NoError(t, err)

	assert.Equal(t, "Acme Photography", got.Title)
	assert.Equal(t, "Listing photos for agents", got.Description)
	assert.Equal(t, "Plans Contact us for a custom quote.", got.Content)
}

func TestParseFallsBackToOpenGraphDescription(t *testing.T) {
	got, err := Parse(strings.NewReader(`<html><head><meta property="og:description" content="OG text"></head><body></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "OG text", got.Description)
	assert.Empty(t, got.Content)
}

func newScraper(t *testing.T, client *http.Client) *Scraper {
	t.Helper()
	r := retry.New(retry.Policy{
		MaxAttempts:     3,
		AttemptTimeout:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}, zap.NewNop())
	return New(Params{
		Config:  config.Config{Dedup: config.DedupConfig{Window: 5 * time.Second}},
		Retryer: r,
		Clock:   clock.New(),
		Log:     zap.NewNop(),
		Client:  client,
	})
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	s := newScraper(t, srv.Client())
	got, err := s.Fetch(context.Background(), srv.URL+"/pricing#plans")
	require.NoError(t, err)
	assert.Equal(t, "Acme Photography", got.Title)
	assert.Equal(t, int32(3), hits.Load())

	again, err := s.Fetch(context.Background(), srv.URL+"/pricing")
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := newScraper(t, srv.Client())
	_, err := s.Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	s := newScraper(t, http.DefaultClient)
	for _, raw := range []string{"", "ftp://example.com", "not a url", "https://"} {
		_, err := s.Fetch(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}
