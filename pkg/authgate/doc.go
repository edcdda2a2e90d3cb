// Package authgate derives allow/deny/redirect decisions from a page's
// declarative rules and the current session.
//
// Rules are plain data attached to a Page. The gate is a pure function
// over (rules, session, current path); its outcomes are the control-flow
// faults from pkg/session, never side effects:
//
//	page := &authgate.Page{Rule: &authgate.Rule{
//	    Authenticate: &authgate.AuthenticateRule{Roles: []string{"admin"}},
//	}}
//	if err := authgate.Check(page, cur, "/admin", mounted); err != nil {
//	    // *session.AuthenticationError or *session.RedirectError
//	}
//
// A page that only returns a nested layout can omit rules; the gate
// walks the page's single-child chain and adopts the first element that
// declares any.
package authgate
