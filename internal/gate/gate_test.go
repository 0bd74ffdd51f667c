// internal/gate/gate_test.go
package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stocksense-service/internal/domain/auth"
)

var (
	statePending      = Snapshot{Loading: true}
	stateAnonymous    = Snapshot{}
	stateInvestor     = Snapshot{Authenticated: true}
	stateAdmin        = Snapshot{Authenticated: true, Admin: true}
	publicRoute       = Requirements{}
	authRoute         = Requirements{RequireAuth: true}
	adminRoute        = Requirements{RequireAuth: true, RequireAdmin: true}
)

// TestDecisionTable enumerates every snapshot/requirements combination.
func TestDecisionTable(t *testing.T) {
	tests := []struct {
		name string
		s    Snapshot
		req  Requirements
		want Decision
	}{
		{"pending/public", statePending, publicRoute, Decision{Outcome: Pending}},
		{"pending/auth", statePending, authRoute, Decision{Outcome: Pending}},
		{"pending/admin", statePending, adminRoute, Decision{Outcome: Pending}},

		{"anonymous/public", stateAnonymous, publicRoute, Decision{Outcome: Render}},
		{"anonymous/auth", stateAnonymous, authRoute, Decision{Outcome: Redirect, Target: LoginRoute}},
		{"anonymous/admin", stateAnonymous, adminRoute, Decision{Outcome: Redirect, Target: LoginRoute}},

		{"investor/public", stateInvestor, publicRoute, Decision{Outcome: Redirect, Target: InvestorLanding}},
		{"investor/auth", stateInvestor, authRoute, Decision{Outcome: Render}},
		{"investor/admin", stateInvestor, adminRoute, Decision{Outcome: Redirect, Target: InvestorLanding}},

		{"admin/public", stateAdmin, publicRoute, Decision{Outcome: Redirect, Target: AdminLanding}},
		{"admin/auth", stateAdmin, authRoute, Decision{Outcome: Render}},
		{"admin/admin", stateAdmin, adminRoute, Decision{Outcome: Render}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.s, tt.req))
		})
	}
}

// TestPendingNeverRedirects asserts the loading state cannot produce a
// navigation side effect for any requirements tuple.
func TestPendingNeverRedirects(t *testing.T) {
	for _, req := range []Requirements{
		{},
		{RequireAdmin: true},
		{RequireAuth: true},
		{RequireAuth: true, RequireAdmin: true},
	} {
		d := Decide(Snapshot{Loading: true, Authenticated: true, Admin: true}, req)
		assert.Equal(t, Pending, d.Outcome)
		assert.Empty(t, d.Target)

		d = Decide(Snapshot{Loading: true}, req)
		assert.Equal(t, Pending, d.Outcome)
		assert.Empty(t, d.Target)
	}
}

func TestSnapshotOf(t *testing.T) {
	adminProfile := &auth.Profile{Role: auth.RoleAdmin}

	s := SnapshotOf(auth.AuthState{
		Identity: &auth.Identity{ID: 1},
		Profile:  adminProfile,
		IsAdmin:  adminProfile.IsAdmin(),
	})
	assert.Equal(t, Snapshot{Authenticated: true, Admin: true}, s)

	s = SnapshotOf(auth.AuthState{IsLoading: true})
	assert.Equal(t, Snapshot{Loading: true}, s)

	// Degraded state: authenticated but no profile resolved.
	s = SnapshotOf(auth.AuthState{Identity: &auth.Identity{ID: 2}})
	assert.Equal(t, Snapshot{Authenticated: true}, s)
}

func TestLandingFor(t *testing.T) {
	assert.Equal(t, AdminLanding, LandingFor(true))
	assert.Equal(t, InvestorLanding, LandingFor(false))
}
