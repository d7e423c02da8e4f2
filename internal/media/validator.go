// Package media validates user-supplied profile image URLs.
package media

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrURLTooLong       = errors.New("URL too long")
	ErrInvalidScheme    = errors.New("only HTTPS allowed")
	ErrCredentials      = errors.New("credentials in URL not allowed")
	ErrEmptyHost        = errors.New("URL must have a host")
	ErrLocalhostBlocked = errors.New("localhost not allowed")
	ErrInvalidPort      = errors.New("only port 443 allowed")
	ErrHostNotAllowed   = errors.New("image host not allowed")
	ErrPrivateIP        = errors.New("private IP addresses not allowed")
)

// MaxURLLength bounds a single image URL.
const MaxURLLength = 2048

const lookupTimeout = 2 * time.Second

// nonPublic lists ranges not covered by the netip.Addr predicates.
var nonPublic = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"), // carrier-grade NAT
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("64:ff9b::/96"), // NAT64 can reach private v4
}

// localSuffixes are names that only resolve inside a private network.
var localSuffixes = []string{".localhost", ".local", ".internal", ".home.arpa"}

// LookupFunc resolves a host name.
type LookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// Validator rejects image URLs that could make the CDN or the mobile apps
// fetch from internal addresses.
type Validator struct {
	exact    map[string]bool
	suffixes []string
	lookup   LookupFunc
}

// Option configures a Validator.
type Option func(*Validator)

// WithLookup replaces DNS resolution, mainly for tests.
func WithLookup(fn LookupFunc) Option {
	return func(v *Validator) { v.lookup = fn }
}

// NewValidator builds a Validator. With no allowedHosts any public host is
// accepted; an entry starting with "." admits every subdomain of it.
func NewValidator(allowedHosts []string, opts ...Option) *Validator {
	v := &Validator{
		exact: make(map[string]bool),
		lookup: func(ctx context.Context, host string) ([]netip.Addr, error) {
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		},
	}
	for _, h := range allowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case h == "":
		case strings.HasPrefix(h, "."):
			v.suffixes = append(v.suffixes, h)
		default:
			v.exact[h] = true
		}
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateImageURL checks one URL. Names that fail to resolve are accepted;
// clients will fail to load them, which is the uploader's problem.
func (v *Validator) ValidateImageURL(ctx context.Context, rawURL string) error {
	if len(rawURL) > MaxURLLength {
		return ErrURLTooLong
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}
	switch {
	case u.Scheme != "https":
		return ErrInvalidScheme
	case u.User != nil:
		return ErrCredentials
	case u.Hostname() == "":
		return ErrEmptyHost
	}

	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if isLocalName(host) {
		return ErrLocalhostBlocked
	}
	if p := u.Port(); p != "" && p != "443" {
		return ErrInvalidPort
	}
	if !v.allowed(host) {
		return ErrHostNotAllowed
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.Unmap().IsLoopback() {
			return ErrLocalhostBlocked
		}
		if !isPublic(addr) {
			return ErrPrivateIP
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	addrs, err := v.lookup(ctx, host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if !isPublic(a) {
			return ErrPrivateIP
		}
	}
	return nil
}

// ValidateImageURLs returns the index of the first bad URL, or -1.
func (v *Validator) ValidateImageURLs(ctx context.Context, urls []string) (int, error) {
	for i, u := range urls {
		if err := v.ValidateImageURL(ctx, u); err != nil {
			return i, err
		}
	}
	return -1, nil
}

func (v *Validator) allowed(host string) bool {
	if len(v.exact) == 0 && len(v.suffixes) == 0 {
		return true
	}
	if v.exact[host] {
		return true
	}
	for _, s := range v.suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

func isLocalName(host string) bool {
	if host == "localhost" {
		return true
	}
	for _, s := range localSuffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// isPublic reports whether addr is a globally routable unicast address.
func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() || !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return false
	}
	for _, p := range nonPublic {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}
