// Package allowlist implements the host allow-list matcher: the set of
// hosts sandboxed fetch is permitted to contact.
package allowlist

import (
	"fmt"
	"net/url"
	"strings"
)

// defaultPort maps a URL scheme to its default port, used to decide whether
// a non-default port must be retained in the host string.
var defaultPort = map[string]string{
	"http":  "80",
	"https": "443",
}

// AllowList is an immutable, exact-match set of host strings derived from
// upstream base URLs plus operator-supplied additions. No wildcards, no DNS
// resolution — the string form of the host is the identity.
type AllowList struct {
	hosts map[string]struct{}
}

// HostOf derives a host string (scheme stripped, port retained if
// non-default, case-folded) from a raw URL. Returns an error if the URL
// cannot be parsed or has no host component.
func HostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		return host, nil
	}
	if dp, ok := defaultPort[strings.ToLower(u.Scheme)]; ok && port == dp {
		return host, nil
	}
	return host + ":" + port, nil
}

// New builds an AllowList from a set of base URLs (typically upstream base
// URLs) plus any operator-supplied host strings added verbatim.
func New(baseURLs []string, extraHosts []string) (*AllowList, error) {
	hosts := make(map[string]struct{}, len(baseURLs)+len(extraHosts))
	for _, u := range baseURLs {
		h, err := HostOf(u)
		if err != nil {
			return nil, err
		}
		hosts[h] = struct{}{}
	}
	for _, h := range extraHosts {
		hosts[strings.ToLower(h)] = struct{}{}
	}
	return &AllowList{hosts: hosts}, nil
}

// Allows reports whether the host component of rawURL is a member of the
// allow-list. A malformed URL is never allowed.
func (a *AllowList) Allows(rawURL string) bool {
	if a == nil {
		return false
	}
	host, err := HostOf(rawURL)
	if err != nil {
		return false
	}
	_, ok := a.hosts[host]
	return ok
}

// Hosts returns the allow-listed host strings, for diagnostics/logging.
func (a *AllowList) Hosts() []string {
	out := make([]string, 0, len(a.hosts))
	for h := range a.hosts {
		out = append(out, h)
	}
	return out
}
