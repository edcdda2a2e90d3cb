package sessionserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/blitz-go/blitz/pkg/session"
)

// LoginFunc authenticates credentials and returns the session snapshot
// to issue. Return an error wrapping session.ErrUnauthorized to reject
// the attempt.
type LoginFunc func(ctx context.Context, email, password string) (session.PublicData, error)

// Resolver handles one RPC operation. params is the raw "params" field
// of the request envelope; the returned value is serialized into the
// "result" field.
type Resolver func(ctx context.Context, params json.RawMessage, sess *Session) (any, error)

// Session is the per-request view a resolver receives.
type Session struct {
	// PublicData is the verified session snapshot. Empty for
	// anonymous requests.
	PublicData session.PublicData

	// Credential is the raw private token, for resolvers that need to
	// revoke or rotate it.
	Credential string
}

// Authenticated reports whether the request carried a valid credential.
func (s *Session) Authenticated() bool {
	return s.PublicData.Authenticated()
}

// Option configures a Server.
type Option func(*Server)

// WithKeys overrides the cookie and header naming prefix.
func WithKeys(keys session.Keys) Option {
	return func(s *Server) {
		s.keys = keys
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCookiePolicy replaces the default cookie attributes.
func WithCookiePolicy(p CookiePolicy) Option {
	return func(s *Server) {
		if p.Path == "" {
			p.Path = "/"
		}
		if p.SameSite == 0 {
			p.SameSite = http.SameSiteLaxMode
		}
		s.cookies = p
	}
}

// Server issues session cookies and hosts RPC resolvers. It implements
// http.Handler; mount it at the site root so the /api routes line up
// with what the client bindings call.
type Server struct {
	keys    session.Keys
	issuer  Issuer
	login   LoginFunc
	cookies CookiePolicy
	logger  *slog.Logger
	router  chi.Router

	resolvers map[string]Resolver
}

// New creates a session server. issuer mints the private credential;
// login validates submitted credentials.
func New(issuer Issuer, login LoginFunc, opts ...Option) *Server {
	s := &Server{
		keys:      session.NewKeys(session.DefaultPrefix),
		issuer:    issuer,
		login:     login,
		cookies:   defaultCookiePolicy(),
		logger:    slog.Default(),
		resolvers: make(map[string]Resolver),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Post("/api/auth/login", s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.requireCSRF)
		r.Post("/api/auth/logout", s.handleLogout)
		r.Post("/api/rpc/{name}", s.handleRPC)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Resolve registers fn under name, servable at POST /api/rpc/{name}.
// Register before serving; later registrations replace earlier ones.
func (s *Server) Resolve(name string, fn Resolver) {
	s.resolvers[name] = fn
}

// privateCookieName is the HttpOnly credential cookie. The client
// bindings never read it; browsers and cookie jars replay it.
func (s *Server) privateCookieName() string {
	return s.keys.Prefix() + "sPrivateToken"
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "MalformedRequestError", "request body is not valid JSON")
		return
	}

	pd, err := s.login(r.Context(), body.Email, body.Password)
	if err != nil {
		if session.IsAuthError(err) {
			writeError(w, http.StatusUnauthorized, "AuthenticationError", "invalid credentials")
			return
		}
		s.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error", "login failed")
		return
	}

	credential, err := s.issuer.Issue(pd)
	if err != nil {
		s.logger.Error("credential issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error", "could not establish session")
		return
	}

	s.setSessionCookies(w, pd, credential, uuid.NewString())
	w.Header().Set(session.HeaderSessionCreated, "true")
	w.Header().Set(session.HeaderPublicDataChanged, "true")
	writeResult(w, pd)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(s.privateCookieName()); err == nil {
		if err := s.issuer.Revoke(c.Value); err != nil {
			s.logger.Warn("credential revoke failed", "error", err)
		}
	}

	http.SetCookie(w, s.cookies.expire(s.keys.SessionTokenCookie()))
	http.SetCookie(w, s.cookies.expire(s.keys.CSRFTokenCookie()))
	http.SetCookie(w, s.cookies.expire(s.privateCookieName()))
	w.Header().Set(session.HeaderPublicDataChanged, "true")
	writeResult(w, true)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	fn, ok := s.resolvers[name]
	if !ok {
		writeError(w, http.StatusNotFound, "ResolverNotFoundError", "no resolver named "+name)
		return
	}

	sess, err := s.sessionFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AuthenticationError", "session credential is not valid")
		return
	}

	var envelope struct {
		Params json.RawMessage `json:"params"`
	}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			writeError(w, http.StatusBadRequest, "MalformedRequestError", "request body is not valid JSON")
			return
		}
	}

	result, err := fn(r.Context(), envelope.Params, sess)
	if err != nil {
		s.writeResolverError(w, name, err)
		return
	}
	writeResult(w, result)
}

// sessionFromRequest verifies the private credential cookie. A missing
// cookie yields an anonymous session; a present but invalid one is an
// error so stale clients get told to clear their state.
func (s *Server) sessionFromRequest(r *http.Request) (*Session, error) {
	c, err := r.Cookie(s.privateCookieName())
	if err != nil {
		return &Session{}, nil
	}
	pd, err := s.issuer.Verify(c.Value)
	if err != nil {
		return nil, err
	}
	return &Session{PublicData: pd, Credential: c.Value}, nil
}

func (s *Server) writeResolverError(w http.ResponseWriter, name string, err error) {
	switch {
	case session.IsAuthError(err):
		writeError(w, http.StatusUnauthorized, "AuthenticationError", "authentication required")
	default:
		var re *ResolverError
		if errors.As(err, &re) {
			writeError(w, re.StatusCode, re.Name, re.Message)
			return
		}
		s.logger.Error("resolver failed", "resolver", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Error", "internal error")
	}
}

// requireCSRF enforces the double-submit check: the anti-csrf header
// must match the anti-CSRF cookie. Requests without a session's CSRF
// cookie are rejected too, since every issued session carries one.
func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.keys.CSRFTokenCookie())
		header := r.Header.Get(session.HeaderCSRF)
		if err != nil || header == "" || cookie.Value != header {
			w.Header().Set(session.HeaderCSRFError, "true")
			writeError(w, http.StatusUnauthorized, "CSRFTokenMismatchError", "anti-CSRF token mismatch")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setSessionCookies(w http.ResponseWriter, pd session.PublicData, credential, csrf string) {
	http.SetCookie(w, s.cookies.apply(s.keys.SessionTokenCookie(), session.Encode(pd), false))
	http.SetCookie(w, s.cookies.apply(s.keys.CSRFTokenCookie(), csrf, false))
	http.SetCookie(w, s.cookies.apply(s.privateCookieName(), credential, true))
}

// ResolverError lets resolvers control the error envelope sent to the
// client.
type ResolverError struct {
	Name       string
	Message    string
	StatusCode int
}

func (e *ResolverError) Error() string {
	return "sessionserver: " + e.Name + ": " + e.Message
}

type rpcError struct {
	Name       string `json:"name"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
}

type rpcResponse struct {
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rpcResponse{Result: result})
}

func writeError(w http.ResponseWriter, status int, name, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(rpcResponse{
		Error: &rpcError{Name: name, Message: message, StatusCode: status},
	})
}
