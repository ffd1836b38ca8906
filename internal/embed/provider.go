package embed

import (
	"fmt"
	"headless-cms/internal/config"
	"regexp"
	"strings"
)

// Provider is an oEmbed endpoint together with the URLs it serves.
type Provider struct {
	Name     string
	Endpoint string
	patterns []*regexp.Regexp
}

// NewProvider compiles the URL schemes of an oEmbed provider. Schemes use
// "*" as a wildcard, as in the oEmbed provider registry.
func NewProvider(name, endpoint string, schemes []string) (*Provider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("provider %q has no endpoint", name)
	}
	p := &Provider{Name: name, Endpoint: endpoint}
	for _, scheme := range schemes {
		re, err := regexp.Compile(schemePattern(scheme))
		if err != nil {
			return nil, fmt.Errorf("provider %q: bad url scheme %q: %w", name, scheme, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// schemePattern turns a URL scheme into an anchored regexp. A "*" in the
// host stays inside the host, one in the path or query matches anything.
func schemePattern(scheme string) string {
	authorityStart := 0
	if i := strings.Index(scheme, "://"); i >= 0 {
		authorityStart = i + len("://")
	}
	authorityEnd := len(scheme)
	if i := strings.IndexAny(scheme[authorityStart:], "/?#"); i >= 0 {
		authorityEnd = authorityStart + i
	}
	return "^" + globPattern(scheme[:authorityEnd], "[^/?#]*") + globPattern(scheme[authorityEnd:], ".*") + "$"
}

func globPattern(s, wildcard string) string {
	parts := strings.Split(s, "*")
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	return strings.Join(parts, wildcard)
}

// Matches reports whether the provider serves url.
func (p *Provider) Matches(url string) bool {
	for _, re := range p.patterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

var defaultProviders = []config.ProviderConfig{
	{
		Name:     "YouTube",
		Endpoint: "https://www.youtube.com/oembed",
		URLs: []string{
			"http://*youtube.com/watch*", "https://*youtube.com/watch*",
			"https://*youtube.com/shorts/*", "https://*youtube.com/playlist?list=*",
			"http://youtu.be/*", "https://youtu.be/*",
		},
	},
	{
		Name:     "Vimeo",
		Endpoint: "https://vimeo.com/api/oembed.json",
		URLs:     []string{"http://vimeo.com/*", "https://vimeo.com/*", "https://player.vimeo.com/video/*"},
	},
	{
		Name:     "Twitter",
		Endpoint: "https://publish.twitter.com/oembed",
		URLs: []string{
			"https://twitter.com/*/status/*", "https://*.twitter.com/*/status/*",
			"https://x.com/*/status/*",
		},
	},
	{
		Name:     "SoundCloud",
		Endpoint: "https://soundcloud.com/oembed",
		URLs:     []string{"http://soundcloud.com/*", "https://soundcloud.com/*"},
	},
	{
		Name:     "Spotify",
		Endpoint: "https://open.spotify.com/oembed",
		URLs:     []string{"https://open.spotify.com/*"},
	},
	{
		Name:     "Flickr",
		Endpoint: "https://www.flickr.com/services/oembed/",
		URLs:     []string{"http://*.flickr.com/photos/*", "https://*.flickr.com/photos/*", "https://flic.kr/p/*"},
	},
}

// Providers builds the provider list: configured providers first so they
// can take over URLs of a built-in one.
func Providers(extra []config.ProviderConfig) ([]*Provider, error) {
	all := append(append([]config.ProviderConfig{}, extra...), defaultProviders...)
	providers := make([]*Provider, 0, len(all))
	for _, pc := range all {
		p, err := NewProvider(pc.Name, pc.Endpoint, pc.URLs)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}
