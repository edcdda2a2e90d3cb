package sessionserver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/blitz-go/blitz/pkg/session"
)

// ErrInvalidCredential is returned by Verify for unknown, expired, or
// tampered credentials.
var ErrInvalidCredential = errors.New("sessionserver: invalid credential")

// Issuer mints and verifies the private credential stored in the
// HttpOnly session cookie.
type Issuer interface {
	// Issue creates a credential bound to the given session snapshot.
	Issue(pd session.PublicData) (string, error)

	// Verify resolves a credential back to its session snapshot.
	// Returns ErrInvalidCredential when the credential is not live.
	Verify(credential string) (session.PublicData, error)

	// Revoke invalidates a credential. Stateless issuers may treat
	// this as a no-op.
	Revoke(credential string) error
}

// OpaqueIssuer issues random handles and keeps the session state
// server-side. Revocation is immediate.
type OpaqueIssuer struct {
	mu       sync.Mutex
	sessions map[string]opaqueSession
	ttl      time.Duration
	now      func() time.Time
}

type opaqueSession struct {
	pd        session.PublicData
	expiresAt time.Time
}

// OpaqueOption configures an OpaqueIssuer.
type OpaqueOption func(*OpaqueIssuer)

// WithOpaqueTTL sets the handle lifetime. Defaults to 30 days.
func WithOpaqueTTL(ttl time.Duration) OpaqueOption {
	return func(o *OpaqueIssuer) {
		o.ttl = ttl
	}
}

// NewOpaqueIssuer creates an issuer backed by in-process state.
func NewOpaqueIssuer(opts ...OpaqueOption) *OpaqueIssuer {
	o := &OpaqueIssuer{
		sessions: make(map[string]opaqueSession),
		ttl:      30 * 24 * time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Issue mints a new random handle for pd.
func (o *OpaqueIssuer) Issue(pd session.PublicData) (string, error) {
	handle := uuid.NewString()
	o.mu.Lock()
	o.sessions[handle] = opaqueSession{pd: pd, expiresAt: o.now().Add(o.ttl)}
	o.mu.Unlock()
	return handle, nil
}

// Verify looks the handle up and rejects expired ones.
func (o *OpaqueIssuer) Verify(credential string) (session.PublicData, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[credential]
	if !ok {
		return session.PublicData{}, ErrInvalidCredential
	}
	if o.now().After(s.expiresAt) {
		delete(o.sessions, credential)
		return session.PublicData{}, ErrInvalidCredential
	}
	return s.pd, nil
}

// Revoke removes the handle. Unknown handles are not an error.
func (o *OpaqueIssuer) Revoke(credential string) error {
	o.mu.Lock()
	delete(o.sessions, credential)
	o.mu.Unlock()
	return nil
}

// Len reports the number of live handles.
func (o *OpaqueIssuer) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

// JWTIssuer issues HS256-signed stateless tokens carrying the session
// snapshot in the claims. Revoke is a no-op; pair with short TTLs.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type sessionClaims struct {
	UserID string   `json:"userId,omitempty"`
	Role   string   `json:"role,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTOption configures a JWTIssuer.
type JWTOption func(*JWTIssuer)

// WithJWTTTL sets the token lifetime. Defaults to 24 hours.
func WithJWTTTL(ttl time.Duration) JWTOption {
	return func(j *JWTIssuer) {
		j.ttl = ttl
	}
}

// WithJWTIssuerName sets the iss claim.
func WithJWTIssuerName(name string) JWTOption {
	return func(j *JWTIssuer) {
		j.issuer = name
	}
}

// NewJWTIssuer creates a stateless issuer signing with secret.
func NewJWTIssuer(secret []byte, opts ...JWTOption) (*JWTIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("sessionserver: jwt secret must not be empty")
	}
	j := &JWTIssuer{
		secret: secret,
		ttl:    24 * time.Hour,
		issuer: "blitz-session",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Issue signs a token carrying pd.
func (j *JWTIssuer) Issue(pd session.PublicData) (string, error) {
	now := j.now()
	claims := sessionClaims{
		UserID: pd.UserID,
		Role:   pd.Role,
		Roles:  pd.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sessionserver: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates the token signature and expiry.
func (j *JWTIssuer) Verify(credential string) (session.PublicData, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(credential, &claims,
		func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return j.secret, nil
		},
		jwt.WithIssuer(j.issuer),
		jwt.WithTimeFunc(func() time.Time { return j.now() }),
	)
	if err != nil {
		return session.PublicData{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return session.PublicData{
		UserID: claims.UserID,
		Role:   claims.Role,
		Roles:  claims.Roles,
	}, nil
}

// Revoke is a no-op: signed tokens stay valid until they expire.
func (j *JWTIssuer) Revoke(string) error { return nil }
