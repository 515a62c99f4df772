// Package scrape fetches vendor pages and turns them into classifier input.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/vendorhub/internal/cache"
	"github.com/smallbiznis/vendorhub/internal/clock"
	"github.com/smallbiznis/vendorhub/internal/config"
	"github.com/smallbiznis/vendorhub/internal/dedup"
	"github.com/smallbiznis/vendorhub/internal/observability/metrics"
	"github.com/smallbiznis/vendorhub/internal/pricingmode"
	"github.com/smallbiznis/vendorhub/internal/retry"
)

const (
	defaultMaxBodyBytes = 2 << 20
	defaultPageTTL      = 10 * time.Minute
	defaultPageCache    = 128
	userAgent           = "vendorhub-scraper/1.0"
)

var (
	ErrInvalidURL = errors.New("invalid_url")
	ErrUpstream   = errors.New("upstream_error")
)

var Module = fx.Module("scrape",
	fx.Provide(New),
)

// Scraper fetches pages with retries. Concurrent fetches of one URL share a
// single request, and parsed pages are cached briefly.
type Scraper struct {
	client   *http.Client
	retryer  *retry.Retryer
	group    *dedup.Group[pricingmode.ScrapedContent]
	pages    cache.Cache[string, pricingmode.ScrapedContent]
	metrics  *metrics.Metrics
	log      *zap.Logger
	maxBytes int64
}

type Params struct {
	fx.In

	Config      config.Config
	Retryer     *retry.Retryer
	Clock       clock.Clock
	Log         *zap.Logger
	Client      *http.Client         `optional:"true"`
	Metrics     *metrics.Metrics     `optional:"true"`
	CoreMetrics *metrics.CoreMetrics `optional:"true"`
}

func New(p Params) *Scraper {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Scraper{
		client:   client,
		retryer:  p.Retryer,
		group:    dedup.NewGroup[pricingmode.ScrapedContent](p.Config.Dedup.Window, dedup.WithClock(p.Clock), dedup.WithMetrics(p.CoreMetrics)),
		pages:    cache.NewLRU[string, pricingmode.ScrapedContent](defaultPageCache, defaultPageTTL),
		metrics:  p.Metrics,
		log:      log.Named("scrape"),
		maxBytes: defaultMaxBodyBytes,
	}
}

// Fetch downloads rawURL and parses it.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (pricingmode.ScrapedContent, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return pricingmode.ScrapedContent{}, err
	}

	if page, ok := s.pages.Get(target); ok {
		s.metrics.RecordScrapeFetch(ctx, "cached")
		return page, nil
	}

	call := s.group.Do(ctx, "scrape:"+target, func(ctx context.Context) (pricingmode.ScrapedContent, error) {
		page, err := retry.Do(ctx, s.retryer, func(ctx context.Context) (pricingmode.ScrapedContent, error) {
			return s.fetchOnce(ctx, target)
		})
		if err != nil {
			s.metrics.RecordScrapeFetch(ctx, "error")
			return pricingmode.ScrapedContent{}, err
		}
		s.metrics.RecordScrapeFetch(ctx, "ok")
		s.pages.Set(target, page)
		return page, nil
	})
	return call.Wait(ctx)
}

func (s *Scraper) fetchOnce(ctx context.Context, target string) (pricingmode.ScrapedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return pricingmode.ScrapedContent{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return pricingmode.ScrapedContent{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return pricingmode.ScrapedContent{}, retry.Transient(fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return pricingmode.ScrapedContent{}, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	page, err := Parse(io.LimitReader(resp.Body, s.maxBytes))
	if err != nil {
		return pricingmode.ScrapedContent{}, fmt.Errorf("parse %s: %w", target, err)
	}
	s.log.Debug("fetched page", zap.String("url", target), zap.Int("text_len", len(page.Content)))
	return page, nil
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}
