package rbac

import (
	"fmt"
	"strings"
)

// Route pairs a navigable destination with the permission it requires.
// An empty Required marks a public route.
type Route struct {
	Path     string     `json:"path"`
	Title    string     `json:"title"`
	Required Permission `json:"required,omitempty"`
}

// Public reports whether the route needs no permission.
func (r Route) Public() bool {
	return r.Required == ""
}

// DefaultRoutes returns the dashboard's navigation table.
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/", Title: "Sign in"},
		{Path: "/register", Title: "Register"},
		{Path: "/welcome", Title: "Welcome"},
		{Path: "/dashboard", Title: "Dashboard", Required: PermDashboard},
		{Path: "/daily-tracker", Title: "Daily Tracker", Required: PermDailyTracker},
		{Path: "/shift-handover", Title: "Shift Handover", Required: PermShiftHandover},
		{Path: "/all-users-data", Title: "All Users Data", Required: PermAllUsersData},
		{Path: "/others", Title: "Others", Required: PermOthers},
	}
}

// RouteTable is an immutable index of routes by normalized path.
type RouteTable struct {
	routes []Route
	byPath map[string]Route
}

// NewRouteTable indexes routes. Duplicate paths and unknown permissions are rejected.
func NewRouteTable(routes ...Route) (*RouteTable, error) {
	t := &RouteTable{
		routes: make([]Route, 0, len(routes)),
		byPath: make(map[string]Route, len(routes)),
	}
	for _, r := range routes {
		r.Path = NormalizePath(r.Path)
		if _, dup := t.byPath[r.Path]; dup {
			return nil, fmt.Errorf("rbac: duplicate route %q", r.Path)
		}
		if !r.Public() && !r.Required.Valid() {
			return nil, fmt.Errorf("rbac: route %q requires unknown permission %q", r.Path, r.Required)
		}
		t.routes = append(t.routes, r)
		t.byPath[r.Path] = r
	}
	return t, nil
}

// MustRouteTable is NewRouteTable for static tables.
func MustRouteTable(routes ...Route) *RouteTable {
	t, err := NewRouteTable(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

// Routes returns a copy of the table in declaration order.
func (t *RouteTable) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Lookup finds the route for path.
func (t *RouteTable) Lookup(path string) (Route, bool) {
	if t == nil {
		return Route{}, false
	}
	r, ok := t.byPath[NormalizePath(path)]
	return r, ok
}

// RequiredPermission returns the permission guarding path. The boolean is
// false for public routes and for paths missing from the table.
func (t *RouteTable) RequiredPermission(path string) (Permission, bool) {
	r, ok := t.Lookup(path)
	if !ok || r.Public() {
		return "", false
	}
	return r.Required, true
}

// NormalizePath lower-cases path, strips query and fragment, and trims the
// trailing slash.
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.ToLower(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
