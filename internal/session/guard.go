package session

import "github.com/ambienthealth/companion/internal/model"

// Route names a navigable view.
type Route string

const (
	RouteLogin   Route = "/login"
	RouteDoctor  Route = "/doctor"
	RoutePatient Route = "/patient"
	RouteAdmin   Route = "/admin"
)

// GuardAction is what the router should do with a navigation attempt.
type GuardAction int

const (
	// Allow lets the navigation proceed.
	Allow GuardAction = iota
	// Wait means identity confirmation is still in flight; hold the
	// navigation rather than bouncing through login.
	Wait
	// RedirectLogin sends an unauthenticated user to the login view.
	RedirectLogin
	// RedirectHome sends an authenticated user whose role is not allowed
	// to their own role's home view (Decision.Target).
	RedirectHome
)

// Decision is the outcome of a guard check.
type Decision struct {
	Action GuardAction
	Target Route
}

// HomeRoute maps a role to its home view. The switch is exhaustive over
// known roles; an unknown role falls back to login.
func HomeRoute(role model.Role) Route {
	switch role {
	case model.RoleDoctor:
		return RouteDoctor
	case model.RolePatient:
		return RoutePatient
	case model.RoleAdmin:
		return RouteAdmin
	}
	return RouteLogin
}

// Resolve decides what to do with a navigation attempt. It is a pure
// function of (state, user, allow-list) and cannot loop: RedirectHome
// always targets a route on which the user's own role is allowed, and
// RedirectLogin only fires for non-authenticated states, for which login
// itself is always allowed.
func Resolve(state State, user *model.User, allowed []model.Role) Decision {
	switch state {
	case Loading:
		return Decision{Action: Wait}
	case Unauthenticated:
		return Decision{Action: RedirectLogin, Target: RouteLogin}
	}

	if user == nil {
		return Decision{Action: RedirectLogin, Target: RouteLogin}
	}
	for _, r := range allowed {
		if r == user.Role {
			return Decision{Action: Allow}
		}
	}
	return Decision{Action: RedirectHome, Target: HomeRoute(user.Role)}
}
