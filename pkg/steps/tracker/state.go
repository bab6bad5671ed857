package tracker

import "strings"

type State uint8

const (
	StateUninitialized State = iota
	StateRequestingPermission
	StateDenied
	StateUnavailable
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRequestingPermission:
		return "requesting-permission"
	case StateDenied:
		return "denied"
	case StateUnavailable:
		return "unavailable"
	case StateActive:
		return "active"
	}
	return "unknown"
}

// AppState is the foreground state reported by the surrounding application
type AppState string

const (
	AppStateActive     AppState = "active"
	AppStateBackground AppState = "background"
	AppStateInactive   AppState = "inactive"
)

// ParseAppState parses an application state, reporting false when it is not
// one of the known values
func ParseAppState(value string) (AppState, bool) {
	switch AppState(strings.ToLower(strings.TrimSpace(value))) {
	case AppStateActive:
		return AppStateActive, true
	case AppStateBackground:
		return AppStateBackground, true
	case AppStateInactive:
		return AppStateInactive, true
	}
	return "", false
}
