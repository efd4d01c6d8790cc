package tenancy

import (
	"path"
	"strings"
)

// Router applies a Policy to routing contexts. It is immutable after
// construction and safe for concurrent use.
type Router struct {
	policy      Policy
	staticExt   map[string]bool
	adminLabels map[string]bool
	rootAliases map[string]bool
}

// NewRouter builds a router from the given policy; empty fields fall back to defaults.
func NewRouter(policy Policy) *Router {
	p := policy.Normalize()
	return &Router{
		policy:      p,
		staticExt:   toSet(p.StaticExtensions),
		adminLabels: toSet(p.AdminLabels),
		rootAliases: toSet(p.RootAliases),
	}
}

var defaultRouter = NewRouter(DefaultPolicy())

// Route decides using the default policy.
func Route(rc RoutingContext) Decision {
	return defaultRouter.Route(rc)
}

// IsRootHost reports whether hostname resolves to the apex domain or one of
// its aliases under env.
func (r *Router) IsRootHost(hostname string, env Environment) bool {
	h, ok := r.normalizeHost(hostname, env)
	return ok && h.Root
}

// Policy returns the normalized policy the router was built with.
func (r *Router) Policy() Policy {
	return r.policy
}

// Route maps a routing context to a decision. It never panics and never
// blocks; unclassifiable input passes through.
func (r *Router) Route(rc RoutingContext) Decision {
	p := rc.Path
	if p == "" {
		p = "/"
	}

	if r.isExcluded(p) {
		return PassThrough{Class: ClassExcluded}
	}

	h, ok := r.normalizeHost(rc.Hostname, rc.Environment)
	if !ok {
		return PassThrough{Class: ClassInvalidHost}
	}

	segment := h.Label
	if h.Root {
		segment = StripPort(rc.Environment.RootDomain)
	}
	// Raw prefix, not segment: "/acmeco" on acme is left alone too.
	if segment != "" && strings.HasPrefix(p, "/"+segment) {
		return PassThrough{Class: ClassLoopGuard}
	}

	switch {
	case h.Root:
		for _, appPath := range r.policy.RootAppPaths {
			if hasPathPrefix(p, appPath) {
				return PassThrough{Class: ClassRootApp}
			}
		}
		return PassThrough{Class: ClassMarketing}

	case r.adminLabels[h.Label]:
		target := p
		if p == "/" {
			target = r.policy.AdminLandingPath
		}
		return Rewrite{Class: ClassAdmin, TargetPath: target, Tenant: h.Label}

	default:
		target := "/" + h.Label + p
		if q := strings.TrimPrefix(rc.QueryString, "?"); q != "" {
			target += "?" + q
		}
		return Rewrite{Class: ClassTenant, TargetPath: target, Tenant: h.Label}
	}
}

func (r *Router) isExcluded(p string) bool {
	for _, prefix := range r.policy.ReservedPrefixes {
		if hasPathPrefix(p, prefix) {
			return true
		}
	}
	if ext := strings.ToLower(path.Ext(p)); ext != "" && r.staticExt[ext] {
		return true
	}
	return false
}

// hasPathPrefix reports whether p equals prefix or continues it with a new segment.
func hasPathPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
