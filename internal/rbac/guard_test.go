package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedIn(t *testing.T, role Role) *SessionState {
	t.Helper()
	state := NewSessionState(nil, "")
	require.NoError(t, state.SetIdentity(context.Background(), Identity{UserID: "7", Name: "Pat", Email: "pat@test.local", Role: role}))
	return state
}

func newGuard() *Guard {
	return NewGuard(MustRouteTable(DefaultRoutes()...))
}

func TestGuardRoleScenarios(t *testing.T) {
	g := newGuard()

	uat := signedIn(t, RoleUATSupport)
	d := g.Check(uat, "/shift-handover")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonMissingPerm, d.Reason)
	assert.Equal(t, PermShiftHandover, d.Required)
	assert.Equal(t, "UAT Support", d.Role)
	assert.True(t, g.CanAccess(uat, "/daily-tracker"))

	dev := signedIn(t, RoleDeveloper)
	assert.False(t, g.CanAccess(dev, "/all-users-data"))
	assert.True(t, g.CanAccess(dev, "/dashboard"))

	prod := signedIn(t, RoleProductionSupport)
	assert.True(t, g.CanAccess(prod, "/shift-handover"))
	assert.False(t, g.CanAccess(prod, "/others"))

	mgr := signedIn(t, RoleManager)
	assert.True(t, g.CanAccess(mgr, "/others"))
}

func TestGuardAdminReachesEveryRoute(t *testing.T) {
	g := newGuard()
	admin := signedIn(t, RoleAdmin)
	for _, route := range g.Routes().Routes() {
		d := g.Check(admin, route.Path)
		assert.True(t, d.Allowed, route.Path)
	}
}

func TestGuardPublicRoutesAlwaysAllowed(t *testing.T) {
	g := newGuard()
	states := []*SessionState{nil, NewSessionState(nil, ""), signedIn(t, Role("ghost")), signedIn(t, RoleDeveloper)}
	for _, state := range states {
		for _, path := range []string{"/", "/register", "/welcome/"} {
			d := g.Check(state, path)
			assert.True(t, d.Allowed, path)
			assert.Equal(t, ReasonPublic, d.Reason)
			assert.Empty(t, d.Required)
		}
	}
}

func TestGuardUnknownPathDenied(t *testing.T) {
	g := newGuard()
	d := g.Check(signedIn(t, RoleAdmin), "/data-migration")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnknownRoute, d.Reason)
	assert.Equal(t, "/data-migration", d.Path)
}

func TestGuardAnonymousIsNotSignedIn(t *testing.T) {
	g := newGuard()
	d := g.Check(nil, "/Dashboard?tab=1")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonNotSignedIn, d.Reason)
	assert.Equal(t, "Unknown", d.Role)
	assert.Equal(t, "/dashboard", d.Path)
}

func TestGuardUnknownRoleIsDeniedGatedRoutes(t *testing.T) {
	g := newGuard()
	ghost := signedIn(t, Role("ghost"))
	for _, path := range []string{"/dashboard", "/daily-tracker", "/shift-handover", "/all-users-data", "/others"} {
		d := g.Check(ghost, path)
		assert.False(t, d.Allowed, path)
		assert.Equal(t, ReasonMissingPerm, d.Reason)
		assert.Equal(t, "Unknown", d.Role)
	}
}

func TestNilGuardDeniesEverything(t *testing.T) {
	var g *Guard
	assert.Nil(t, g.Routes())
	assert.False(t, g.CanAccess(signedIn(t, RoleAdmin), "/"))
}
