// Package tenancy maps an inbound hostname and path to a routing decision.
//
// The decision is a pure function of its RoutingContext: no I/O, no shared
// state. Callers own the side effects (cookie propagation, the actual
// rewrite, metrics).
package tenancy

// Environment is the process-wide configuration the router depends on.
type Environment struct {
	RootDomain    string
	IsDevelopment bool
}

// RoutingContext is the per-request input to the router.
type RoutingContext struct {
	Hostname    string
	Path        string
	QueryString string
	Environment Environment
}

// Class identifies which branch of the router produced a decision.
type Class string

const (
	ClassExcluded    Class = "excluded"
	ClassInvalidHost Class = "invalid_host"
	ClassLoopGuard   Class = "loop_guard"
	ClassRootApp     Class = "root_app"
	ClassMarketing   Class = "marketing"
	ClassAdmin       Class = "admin"
	ClassTenant      Class = "tenant"
)

// Decision is either PassThrough or Rewrite.
type Decision interface {
	RouteClass() Class
	isDecision()
}

// PassThrough serves the request as-is.
type PassThrough struct {
	Class Class
}

// Rewrite serves TargetPath internally while the visible URL stays unchanged.
// TargetPath may carry a "?query" suffix.
type Rewrite struct {
	Class      Class
	TargetPath string
	// Tenant is the normalized hostname segment the rewrite is keyed on.
	Tenant string
}

func (p PassThrough) RouteClass() Class { return p.Class }
func (PassThrough) isDecision()         {}

func (r Rewrite) RouteClass() Class { return r.Class }
func (Rewrite) isDecision()         {}

// Kind returns "pass_through" or "rewrite".
func Kind(d Decision) string {
	switch d.(type) {
	case Rewrite:
		return "rewrite"
	default:
		return "pass_through"
	}
}
