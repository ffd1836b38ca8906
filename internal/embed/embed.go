// Package embed resolves external media URLs into embeddable HTML using
// oEmbed providers, caching successful lookups.
package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"headless-cms/internal/config"
	"headless-cms/internal/logger"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrEmbedNotFound is returned when no provider can embed a URL.
var ErrEmbedNotFound = errors.New("embed not found")

// ErrUpstreamUnavailable is returned when a provider fails or times out.
var ErrUpstreamUnavailable = errors.New("embed provider unavailable")

// maxResponseBody caps provider responses (1 MiB).
const maxResponseBody int64 = 1 << 20

// Embed is the resolved representation of an external URL.
type Embed struct {
	URL          string `json:"url"`
	Type         string `json:"type"`
	HTML         string `json:"html"`
	Title        string `json:"title,omitempty"`
	ProviderName string `json:"provider_name,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

// Store persists resolved embeds between requests.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Resolver looks embeds up through oEmbed providers.
type Resolver struct {
	client    *http.Client
	providers []*Provider
	store     Store
	ttl       time.Duration
	timeout   time.Duration
	log       logger.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the HTTP client used to call providers.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.client = c }
}

// NewResolver creates a Resolver from configuration. store may be nil to
// disable caching.
func NewResolver(cfg config.EmbedConfig, store Store, log logger.Logger, opts ...Option) (*Resolver, error) {
	providers, err := Providers(cfg.Providers)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		client:    &http.Client{},
		providers: providers,
		store:     store,
		ttl:       cfg.CacheTTL,
		timeout:   cfg.Timeout,
		log:       log,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Resolve returns the embed for rawURL rendered at most maxWidth pixels wide.
func (r *Resolver) Resolve(ctx context.Context, rawURL string, maxWidth int) (*Embed, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("embed:%d:%s", maxWidth, rawURL)
	if cached := r.fromStore(ctx, key); cached != nil {
		return cached, nil
	}

	provider := r.providerFor(rawURL)
	if provider == nil {
		return nil, fmt.Errorf("no oembed provider for %s: %w", rawURL, ErrEmbedNotFound)
	}

	e, err := r.fetch(ctx, provider, rawURL, maxWidth)
	if err != nil {
		return nil, err
	}
	r.toStore(ctx, key, e)
	return e, nil
}

func (r *Resolver) providerFor(rawURL string) *Provider {
	for _, p := range r.providers {
		if p.Matches(rawURL) {
			return p
		}
	}
	return nil
}

// oembedResponse is the subset of the oEmbed response format we read.
type oembedResponse struct {
	Type         string    `json:"type"`
	HTML         string    `json:"html"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	ProviderName string    `json:"provider_name"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Width        dimension `json:"width"`
	Height       dimension `json:"height"`
}

// dimension accepts numbers, numeric strings and null; providers disagree.
type dimension int

func (d *dimension) UnmarshalJSON(raw []byte) error {
	s := strings.Trim(string(raw), `"`)
	if s == "null" || s == "" {
		*d = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*d = 0
		return nil
	}
	*d = dimension(n)
	return nil
}

func (r *Resolver) fetch(ctx context.Context, p *Provider, rawURL string, maxWidth int) (*Embed, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("url", rawURL)
	params.Set("format", "json")
	if maxWidth > 0 {
		params.Set("maxwidth", strconv.Itoa(maxWidth))
	}
	endpoint := p.Endpoint + "?" + params.Encode()
	if strings.Contains(p.Endpoint, "?") {
		endpoint = p.Endpoint + "&" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build oembed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", p.Name, ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s has no embed for %s: %w", p.Name, rawURL, ErrEmbedNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%s answered %d: %w", p.Name, resp.StatusCode, ErrUpstreamUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", p.Name, ErrUpstreamUnavailable, err)
	}
	if int64(len(body)) > maxResponseBody {
		return nil, fmt.Errorf("%s response exceeds %d bytes: %w", p.Name, maxResponseBody, ErrUpstreamUnavailable)
	}

	var o oembedResponse
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, fmt.Errorf("%s sent invalid oembed json: %w: %v", p.Name, ErrUpstreamUnavailable, err)
	}

	markup := o.HTML
	if o.Type == "photo" && o.URL != "" {
		markup = fmt.Sprintf(`<img src="%s" alt="%s">`, html.EscapeString(o.URL), html.EscapeString(o.Title))
	}
	if markup == "" {
		return nil, fmt.Errorf("%s returned no html for %s: %w", p.Name, rawURL, ErrEmbedNotFound)
	}

	providerName := o.ProviderName
	if providerName == "" {
		providerName = p.Name
	}
	return &Embed{
		URL:          rawURL,
		Type:         o.Type,
		HTML:         markup,
		Title:        o.Title,
		ProviderName: providerName,
		ThumbnailURL: o.ThumbnailURL,
		Width:        int(o.Width),
		Height:       int(o.Height),
	}, nil
}

func (r *Resolver) fromStore(ctx context.Context, key string) *Embed {
	if r.store == nil {
		return nil
	}
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.log.Error(err, "Failed to read embed cache")
		return nil
	}
	if !ok {
		return nil
	}
	var e Embed
	if err := json.Unmarshal(raw, &e); err != nil {
		r.log.Error(err, "Discarding undecodable embed cache entry")
		return nil
	}
	return &e
}

func (r *Resolver) toStore(ctx context.Context, key string, e *Embed) {
	if r.store == nil || r.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := r.store.Set(ctx, key, raw, r.ttl); err != nil {
		r.log.Error(err, "Failed to write embed cache")
	}
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid embed url %q: %w", rawURL, ErrEmbedNotFound)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return fmt.Errorf("embed url %q must be an absolute http(s) url: %w", rawURL, ErrEmbedNotFound)
	}
	return nil
}
