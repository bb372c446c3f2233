package validate

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrDisallowedDomain = errors.New("URL domain not allowed")
	ErrPrivateHost      = errors.New("URL points at a private host")
)

// URLConstraints describes what URL accepts.
type URLConstraints struct {
	AllowedSchemes []string
	// AllowedDomains, when set, restricts hosts to these domains and their
	// subdomains.
	AllowedDomains []string
	// BlockPrivate rejects localhost and literal loopback, private and
	// link-local addresses. Hostnames are not resolved.
	BlockPrivate bool
	MaxLength    int
}

// MediaURLConstraints accepts public http and https URLs up to 2048 bytes.
var MediaURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	BlockPrivate:   true,
	MaxLength:      2048,
}

// URL checks raw against c and returns it trimmed.
func URL(raw string, c URLConstraints) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmpty
	}
	if c.MaxLength > 0 && len(raw) > c.MaxLength {
		return "", fmt.Errorf("%w: URL exceeds %d characters", ErrStringTooLong, c.MaxLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if len(c.AllowedSchemes) > 0 && !slices.Contains(c.AllowedSchemes, strings.ToLower(u.Scheme)) {
		return "", fmt.Errorf("%w: %q", ErrDisallowedScheme, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if len(c.AllowedDomains) > 0 && !domainAllowed(host, c.AllowedDomains) {
		return "", fmt.Errorf("%w: %q", ErrDisallowedDomain, host)
	}
	if c.BlockPrivate && isPrivateHost(host) {
		return "", fmt.Errorf("%w: %s", ErrPrivateHost, host)
	}
	return raw, nil
}

// MediaURL checks a link to an avatar or cover image.
func MediaURL(raw string) (string, error) {
	return URL(raw, MediaURLConstraints)
}

func domainAllowed(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func isPrivateHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
