package authgate

import (
	"errors"
	"testing"

	"github.com/blitz-go/blitz/pkg/session"
)

func loggedIn(userID, role string) session.ClientSession {
	return session.ClientSession{PublicData: session.PublicData{UserID: userID, Role: role}}
}

func loggedOut() session.ClientSession {
	return session.ClientSession{}
}

func TestEvaluateAuthenticate(t *testing.T) {
	tests := []struct {
		name    string
		rule    *Rule
		cur     session.ClientSession
		mounted bool
		want    string // "", "denied", "redirect:<url>"
	}{
		{"no rule", nil, loggedOut(), true, ""},
		{"zero rule restricts nothing", &Rule{}, loggedOut(), true, ""},
		{"require user, absent, mounted",
			&Rule{Authenticate: &AuthenticateRule{}}, loggedOut(), true, "denied"},
		{"require user, absent, not mounted",
			&Rule{Authenticate: &AuthenticateRule{}}, loggedOut(), false, ""},
		{"require user, present",
			&Rule{Authenticate: &AuthenticateRule{}}, loggedIn("u1", ""), true, ""},
		{"role mismatch",
			&Rule{Authenticate: &AuthenticateRule{Roles: []string{"admin"}}},
			loggedIn("u1", "user"), true, "denied"},
		{"role match",
			&Rule{Authenticate: &AuthenticateRule{Roles: []string{"admin"}}},
			loggedIn("u1", "admin"), true, ""},
		{"role set membership",
			&Rule{Authenticate: &AuthenticateRule{Roles: []string{"admin", "editor"}}},
			loggedIn("u1", "editor"), true, ""},
		{"mismatch with redirect target",
			&Rule{Authenticate: &AuthenticateRule{RedirectTo: To("/login")}},
			loggedOut(), true, "redirect:/login?next=%2Fprojects"},
		{"role mismatch with redirect target",
			&Rule{Authenticate: &AuthenticateRule{Roles: []string{"admin"}, RedirectTo: To("/login")}},
			loggedIn("u1", "user"), true, "redirect:/login?next=%2Fprojects"},
		{"redirect computed before mount too",
			&Rule{Authenticate: &AuthenticateRule{RedirectTo: To("/login")}},
			loggedOut(), false, "redirect:/login?next=%2Fprojects"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Evaluate(tt.rule, tt.cur, "/projects", tt.mounted)
			assertOutcome(t, err, tt.want)
		})
	}
}

func TestEvaluateRedirectAuthenticated(t *testing.T) {
	rule := &Rule{RedirectAuthenticatedTo: To("/dashboard")}

	if err := Evaluate(rule, loggedOut(), "/login", true); err != nil {
		t.Errorf("logged-out user should render the page, got %v", err)
	}

	err := Evaluate(rule, loggedIn("u1", ""), "/login", true)
	assertOutcome(t, err, "redirect:/dashboard")
}

func TestEvaluateRedirectAuthenticatedFunc(t *testing.T) {
	rule := &Rule{RedirectAuthenticatedTo: ToFunc(func(cs session.ClientSession) (string, bool) {
		if cs.HasRole("admin") {
			return "/admin", true
		}
		return "", false // rule resolves to false: no redirect
	})}

	err := Evaluate(rule, loggedIn("u1", "admin"), "/login", true)
	assertOutcome(t, err, "redirect:/admin")

	if err := Evaluate(rule, loggedIn("u2", "user"), "/login", true); err != nil {
		t.Errorf("suppressed redirect should render, got %v", err)
	}
}

func TestEvaluateRedirectFuncSeesSession(t *testing.T) {
	rule := &Rule{Authenticate: &AuthenticateRule{
		Roles: []string{"admin"},
		RedirectTo: ToFunc(func(cs session.ClientSession) (string, bool) {
			if cs.Authenticated() {
				return "/denied", true
			}
			return "/login", true
		}),
	}}

	err := Evaluate(rule, loggedIn("u1", "user"), "/admin", true)
	assertOutcome(t, err, "redirect:/denied?next=%2Fadmin")

	err = Evaluate(rule, loggedOut(), "/admin", true)
	assertOutcome(t, err, "redirect:/login?next=%2Fadmin")
}

func TestEffectiveRuleWalksChildChain(t *testing.T) {
	adminRule := &Rule{Authenticate: &AuthenticateRule{Roles: []string{"admin"}}}

	// Page without rules returns a layout which returns the guarded
	// element: the first rule down the chain wins.
	page := &Page{
		Child: &Page{
			Child: &Page{Rule: adminRule,
				Child: &Page{Rule: &Rule{Authenticate: &AuthenticateRule{}}},
			},
		},
	}
	if got := page.EffectiveRule(); got != adminRule {
		t.Fatalf("EffectiveRule = %+v, want the first declared rule", got)
	}

	err := Check(page, loggedIn("u1", "user"), "/admin", true)
	assertOutcome(t, err, "denied")
	if err := Check(page, loggedIn("u1", "admin"), "/admin", true); err != nil {
		t.Errorf("admin should pass, got %v", err)
	}
}

func TestEffectiveRuleChildlessChain(t *testing.T) {
	page := &Page{Child: &Page{}}
	if page.EffectiveRule() != nil {
		t.Error("chain without rules should restrict nothing")
	}
	if err := Check(page, loggedOut(), "/", true); err != nil {
		t.Errorf("Check = %v, want nil", err)
	}
	if err := Check(nil, loggedOut(), "/", true); err != nil {
		t.Errorf("Check(nil) = %v, want nil", err)
	}
}

func assertOutcome(t *testing.T, err error, want string) {
	t.Helper()
	switch {
	case want == "":
		if err != nil {
			t.Errorf("outcome = %v, want allow", err)
		}
	case want == "denied":
		var denied *session.AuthenticationError
		if !errors.As(err, &denied) {
			t.Errorf("outcome = %v, want AuthenticationError", err)
		}
	default: // redirect:<url>
		var redirect *session.RedirectError
		if !errors.As(err, &redirect) {
			t.Fatalf("outcome = %v, want RedirectError", err)
		}
		if got := "redirect:" + redirect.URL; got != want {
			t.Errorf("redirect URL = %q, want %q", redirect.URL, want)
		}
	}
}
