package session

import "slices"

// PublicData is the decoded authenticated identity: the subset of session
// state that is safe to expose to client-side code.
//
// PublicData is only ever produced by decoding a server-issued session
// token; client code never constructs it for an authenticated user.
type PublicData struct {
	// UserID identifies the authenticated user. Empty when no user is
	// authenticated.
	UserID string `json:"userId,omitempty"`

	// Role is the user's role when the server issues a single role.
	Role string `json:"role,omitempty"`

	// Roles is the user's role set when the server issues multiple roles.
	Roles []string `json:"roles,omitempty"`
}

// EmptyPublicData is the sentinel for "no authenticated user".
func EmptyPublicData() PublicData {
	return PublicData{}
}

// Authenticated reports whether a user is present.
func (pd PublicData) Authenticated() bool {
	return pd.UserID != ""
}

// HasRole reports whether the session's role equals, or its role set
// contains, the given role.
func (pd PublicData) HasRole(role string) bool {
	if pd.Role == role && role != "" {
		return true
	}
	return slices.Contains(pd.Roles, role)
}

// RoleList returns the effective roles, merging the single-role and
// role-set forms.
func (pd PublicData) RoleList() []string {
	if pd.Role == "" {
		return pd.Roles
	}
	if slices.Contains(pd.Roles, pd.Role) {
		return pd.Roles
	}
	out := make([]string, 0, len(pd.Roles)+1)
	out = append(out, pd.Role)
	return append(out, pd.Roles...)
}

// Equal reports whether two PublicData values are the same identity.
func (pd PublicData) Equal(other PublicData) bool {
	return pd.UserID == other.UserID &&
		pd.Role == other.Role &&
		slices.Equal(pd.Roles, other.Roles)
}

// ClientSession is PublicData plus the loading flag the render layer
// needs. IsLoading is true only during the initial, not-yet-resolved
// state before the first store read completes.
type ClientSession struct {
	PublicData

	IsLoading bool `json:"isLoading"`
}
