package tenancy

import "strings"

// Policy holds the static lists the router consults.
type Policy struct {
	// ReservedPrefixes are path prefixes never subject to tenant rewriting.
	ReservedPrefixes []string `yaml:"reserved_prefixes"`
	// StaticExtensions are file extensions (with dot) served untouched.
	StaticExtensions []string `yaml:"static_extensions"`
	// AdminLabels are subdomain labels routed into the admin console.
	AdminLabels []string `yaml:"admin_labels"`
	// RootAppPaths are root-domain paths that belong to the application
	// rather than the marketing site.
	RootAppPaths []string `yaml:"root_app_paths"`
	// RootAliases are labels treated as the root domain itself (e.g. "www").
	RootAliases []string `yaml:"root_aliases"`
	// AdminLandingPath is the rewrite target for "/" on admin hosts.
	AdminLandingPath string `yaml:"admin_landing_path"`
}

// DefaultPolicy returns the built-in routing lists.
func DefaultPolicy() Policy {
	return Policy{
		ReservedPrefixes: []string{"/_next", "/_static", "/_vercel", "/api", "/auth", "/admin"},
		StaticExtensions: []string{
			".avif", ".css", ".gif", ".ico", ".jpeg", ".jpg", ".js", ".json", ".map",
			".pdf", ".png", ".svg", ".txt", ".ttf", ".webmanifest", ".webp", ".woff", ".woff2", ".xml",
		},
		AdminLabels:      []string{"admin", "app"},
		RootAppPaths:     []string{"/dashboard", "/login"},
		RootAliases:      []string{"www"},
		AdminLandingPath: "/dashboard",
	}
}

// Normalize lowercases list entries and fills empty fields from DefaultPolicy.
func (p Policy) Normalize() Policy {
	def := DefaultPolicy()
	out := Policy{
		ReservedPrefixes: normalizePrefixes(p.ReservedPrefixes, def.ReservedPrefixes),
		StaticExtensions: normalizeExtensions(p.StaticExtensions, def.StaticExtensions),
		AdminLabels:      normalizeLabels(p.AdminLabels, def.AdminLabels),
		RootAppPaths:     normalizePrefixes(p.RootAppPaths, def.RootAppPaths),
		RootAliases:      normalizeLabels(p.RootAliases, def.RootAliases),
		AdminLandingPath: strings.TrimSpace(p.AdminLandingPath),
	}
	if out.AdminLandingPath == "" {
		out.AdminLandingPath = def.AdminLandingPath
	}
	return out
}

func normalizePrefixes(in, fallback []string) []string {
	if len(in) == 0 {
		return append([]string(nil), fallback...)
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		if len(p) > 1 {
			p = strings.TrimRight(p, "/")
		}
		out = append(out, p)
	}
	return out
}

func normalizeExtensions(in, fallback []string) []string {
	if len(in) == 0 {
		return append([]string(nil), fallback...)
	}
	out := make([]string, 0, len(in))
	for _, ext := range in {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func normalizeLabels(in, fallback []string) []string {
	if len(in) == 0 {
		return append([]string(nil), fallback...)
	}
	out := make([]string, 0, len(in))
	for _, l := range in {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
