package authgate

import (
	"net/url"

	"github.com/blitz-go/blitz/pkg/session"
)

// RedirectTarget resolves to a concrete URL. Exactly one of URL and Func
// is set; a Func returning ok=false suppresses the redirect.
type RedirectTarget struct {
	URL  string
	Func func(session.ClientSession) (string, bool)
}

// To declares a fixed redirect target.
func To(url string) *RedirectTarget {
	return &RedirectTarget{URL: url}
}

// ToFunc declares a redirect target computed from the current session.
func ToFunc(fn func(session.ClientSession) (string, bool)) *RedirectTarget {
	return &RedirectTarget{Func: fn}
}

func (t *RedirectTarget) resolve(cur session.ClientSession) (string, bool) {
	if t.Func != nil {
		return t.Func(cur)
	}
	return t.URL, t.URL != ""
}

// AuthenticateRule requires an authenticated user, optionally holding
// one of Roles. With RedirectTo set, a mismatch redirects (carrying a
// `next` parameter back to the current path) instead of faulting.
type AuthenticateRule struct {
	Roles      []string
	RedirectTo *RedirectTarget
}

// Rule is the declarative auth surface of a page. The zero value (and
// nil) restrict nothing.
type Rule struct {
	// Authenticate, when non-nil, requires a logged-in user.
	Authenticate *AuthenticateRule

	// RedirectAuthenticatedTo sends logged-in users elsewhere, e.g. a
	// login page redirecting to the dashboard.
	RedirectAuthenticatedTo *RedirectTarget
}

// Page is one element of the layout-composition chain. Child links to
// the single nested element the page returns; nil marks the end of the
// chain.
type Page struct {
	Rule  *Rule
	Child *Page
}

// EffectiveRule returns the page's own rule, or the first rule found
// walking the single-child chain. Returns nil when no element declares
// one.
func (p *Page) EffectiveRule() *Rule {
	for cur := p; cur != nil; cur = cur.Child {
		if cur.Rule != nil && (cur.Rule.Authenticate != nil || cur.Rule.RedirectAuthenticatedTo != nil) {
			return cur.Rule
		}
	}
	return nil
}

// Check evaluates a page's effective rule. See Evaluate.
func Check(page *Page, cur session.ClientSession, currentPath string, mounted bool) error {
	if page == nil {
		return nil
	}
	return Evaluate(page.EffectiveRule(), cur, currentPath, mounted)
}

// Evaluate derives the gate decision for one rule.
//
// Outcomes: nil (render), *session.RedirectError (host issues a
// redirect), or *session.AuthenticationError. The denied fault is only
// raised once the component has completed its first mount; before that,
// server and client may still be reconciling and a missing user is not
// yet meaningful.
func Evaluate(rule *Rule, cur session.ClientSession, currentPath string, mounted bool) error {
	if rule == nil {
		return nil
	}

	if rule.RedirectAuthenticatedTo != nil && cur.Authenticated() {
		if target, ok := rule.RedirectAuthenticatedTo.resolve(cur); ok {
			return &session.RedirectError{URL: target}
		}
	}

	if auth := rule.Authenticate; auth != nil && !satisfies(auth, cur) {
		if auth.RedirectTo != nil {
			if target, ok := auth.RedirectTo.resolve(cur); ok {
				return &session.RedirectError{URL: appendNext(target, currentPath)}
			}
		}
		if mounted {
			return &session.AuthenticationError{}
		}
	}
	return nil
}

func satisfies(auth *AuthenticateRule, cur session.ClientSession) bool {
	if !cur.Authenticated() {
		return false
	}
	if len(auth.Roles) == 0 {
		return true
	}
	for _, role := range auth.Roles {
		if cur.HasRole(role) {
			return true
		}
	}
	return false
}

// appendNext adds a `next` query parameter pointing back at the current
// path so the login flow can return the user.
func appendNext(target, currentPath string) string {
	if currentPath == "" {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("next", currentPath)
	u.RawQuery = q.Encode()
	return u.String()
}
