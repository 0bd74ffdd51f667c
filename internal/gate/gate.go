// internal/gate/gate.go

// Package gate decides, per navigation, whether the current visitor may
// see a route. It is a pure function of the auth snapshot and the
// route's declared requirements; it keeps no state of its own.
package gate

import (
	"stocksense-service/internal/domain/auth"
)

// Route targets the gate redirects to.
const (
	LoginRoute      = "/login"
	InvestorLanding = "/dashboard"
	AdminLanding    = "/admin/users"
)

// LandingFor returns the role-appropriate landing route.
func LandingFor(isAdmin bool) string {
	if isAdmin {
		return AdminLanding
	}
	return InvestorLanding
}

// Requirements is what a route declares about itself. RequireAdmin is
// only meaningful when RequireAuth is true.
type Requirements struct {
	RequireAuth  bool
	RequireAdmin bool
}

// Snapshot is the read-only view of AuthState the gate decides on.
type Snapshot struct {
	Loading       bool
	Authenticated bool
	Admin         bool
}

// SnapshotOf derives a gate snapshot from a coordinator AuthState.
func SnapshotOf(state auth.AuthState) Snapshot {
	return Snapshot{
		Loading:       state.IsLoading,
		Authenticated: state.Authenticated(),
		Admin:         state.IsAdmin,
	}
}

// Outcome is what the caller should do with the navigation.
type Outcome int

const (
	// Render admits the visitor to the route.
	Render Outcome = iota
	// Pending means auth state is still resolving; show a neutral
	// placeholder and never redirect, so reloads don't flash through
	// the login screen.
	Pending
	// Redirect bounces the visitor to Decision.Target.
	Redirect
)

// Decision is the gate's verdict for one navigation.
type Decision struct {
	Outcome Outcome
	Target  string
}

func render() Decision            { return Decision{Outcome: Render} }
func pending() Decision           { return Decision{Outcome: Pending} }
func redirect(to string) Decision { return Decision{Outcome: Redirect, Target: to} }

// Decide evaluates the decision table for one snapshot/requirements pair.
//
// Policy it encodes, beyond the obvious:
//   - a public auth route (login/register) bounces an already
//     authenticated visitor to their landing page;
//   - admins may view investor routes, investors may not view admin
//     routes;
//   - while loading, nothing redirects.
func Decide(s Snapshot, req Requirements) Decision {
	if s.Loading {
		return pending()
	}

	if !s.Authenticated {
		if req.RequireAuth {
			return redirect(LoginRoute)
		}
		return render()
	}

	// Authenticated visitors never see the public auth screens.
	if !req.RequireAuth {
		return redirect(LandingFor(s.Admin))
	}

	if req.RequireAdmin && !s.Admin {
		return redirect(InvestorLanding)
	}

	return render()
}
