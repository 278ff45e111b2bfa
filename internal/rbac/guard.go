package rbac

// Denial reasons reported in Decision.Reason.
const (
	ReasonPublic       = "public"
	ReasonGranted      = "granted"
	ReasonMissingPerm  = "missing permission"
	ReasonUnknownRoute = "unknown route"
	ReasonReadOnly     = "read-only role"
	ReasonNotSignedIn  = "not signed in"
)

// Decision is the outcome of an access check together with what a caller
// needs to explain a denial.
type Decision struct {
	Allowed  bool       `json:"allowed"`
	Path     string     `json:"path"`
	Role     string     `json:"role"`
	Required Permission `json:"required,omitempty"`
	Reason   string     `json:"reason"`
}

// Guard decides whether a session may view a destination.
type Guard struct {
	routes *RouteTable
}

// NewGuard builds a Guard over routes.
func NewGuard(routes *RouteTable) *Guard {
	return &Guard{routes: routes}
}

// Routes exposes the guarded route table.
func (g *Guard) Routes() *RouteTable {
	if g == nil {
		return nil
	}
	return g.routes
}

// Check evaluates path for state. A nil state is treated as anonymous and
// unknown paths are denied.
func (g *Guard) Check(state *SessionState, path string) Decision {
	d := Decision{
		Path: NormalizePath(path),
		Role: roleName(state),
	}
	var table *RouteTable
	if g != nil {
		table = g.routes
	}
	route, ok := table.Lookup(d.Path)
	if !ok {
		d.Reason = ReasonUnknownRoute
		return d
	}
	if route.Public() {
		d.Allowed = true
		d.Reason = ReasonPublic
		return d
	}
	d.Required = route.Required
	return Authorize(state, route.Required, d)
}

// CanAccess reports whether state may view path.
func (g *Guard) CanAccess(state *SessionState, path string) bool {
	return g.Check(state, path).Allowed
}

// Authorize fills d with the verdict of state holding perm.
func Authorize(state *SessionState, perm Permission, d Decision) Decision {
	d.Required = perm
	d.Role = roleName(state)
	if state.Permissions().Has(perm) {
		d.Allowed = true
		d.Reason = ReasonGranted
		return d
	}
	d.Allowed = false
	if !state.Authenticated() {
		d.Reason = ReasonNotSignedIn
	} else {
		d.Reason = ReasonMissingPerm
	}
	return d
}

func roleName(state *SessionState) string {
	id := state.CurrentIdentity()
	if id.IsAnonymous() {
		return "Unknown"
	}
	return id.Role.DisplayName()
}
