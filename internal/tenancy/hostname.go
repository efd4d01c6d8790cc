package tenancy

import (
	"net"
	"regexp"
	"strings"
)

var hostPattern = regexp.MustCompile(`^[a-z0-9_]([a-z0-9_-]*[a-z0-9_])?(\.[a-z0-9_]([a-z0-9_-]*[a-z0-9_])?)*$`)

// host is a normalized hostname. Root is true for the apex domain and its
// aliases; otherwise Label is the tenant or admin segment.
type host struct {
	Root  bool
	Label string
}

// StripPort removes a trailing ":port" and IPv6 brackets, lowercases, and
// drops a trailing FQDN dot.
func StripPort(raw string) string {
	h := strings.ToLower(strings.TrimSpace(raw))
	if h == "" {
		return ""
	}
	if hostname, _, err := net.SplitHostPort(h); err == nil {
		h = hostname
	} else {
		h = strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
	}
	return strings.TrimSuffix(h, ".")
}

func isLocalHost(h string) bool {
	return h == "localhost" || h == "127.0.0.1"
}

// normalizeHost resolves a raw Host header value. ok is false for missing or
// malformed hosts, which the router lets through untouched.
func (r *Router) normalizeHost(raw string, env Environment) (host, bool) {
	h := StripPort(raw)
	if h == "" || !hostPattern.MatchString(h) {
		return host{}, false
	}
	root := StripPort(env.RootDomain)

	var label string
	switch {
	case env.IsDevelopment && isLocalHost(h):
		return host{Root: true}, true
	case env.IsDevelopment && strings.HasSuffix(h, ".localhost"):
		label = strings.TrimSuffix(h, ".localhost")
	case root == "":
		return host{}, false
	case h == root:
		return host{Root: true}, true
	case strings.HasSuffix(h, "."+root):
		label = strings.TrimSuffix(h, "."+root)
	default:
		// Custom domain: the whole hostname keys the tenant.
		label = h
	}

	if label == "" || r.rootAliases[label] {
		return host{Root: true}, true
	}
	return host{Label: label}, true
}
