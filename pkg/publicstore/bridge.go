package publicstore

import "context"

// ReadSessionToken returns the current session token. The cookie wins
// when present and is written through to durable storage; otherwise the
// durable-storage backup is read directly, with no write-back.
func (s *Store) ReadSessionToken(ctx context.Context) (string, bool) {
	return s.readToken(ctx, s.keys.SessionTokenCookie(), s.keys.SessionTokenStorage())
}

// ReadCSRFToken returns the current anti-CSRF token, following the same
// cookie-first, storage-backup policy as ReadSessionToken.
func (s *Store) ReadCSRFToken(ctx context.Context) (string, bool) {
	return s.readToken(ctx, s.keys.CSRFTokenCookie(), s.keys.CSRFTokenStorage())
}

// BackupCSRFToken copies the CSRF cookie's current value into durable
// storage. No-op when the cookie is absent. The response middleware
// calls this whenever the server flags a session-affecting response, so
// the backup survives cookie eviction.
func (s *Store) BackupCSRFToken(ctx context.Context) {
	v, ok := s.cookies.Cookie(s.keys.CSRFTokenCookie())
	if !ok {
		return
	}
	s.backupToStorage(ctx, s.keys.CSRFTokenStorage(), v)
}

// readToken implements the dual-storage read policy. Storage failures
// degrade to "absent" on read and are swallowed on write; they are
// logged, never surfaced.
func (s *Store) readToken(ctx context.Context, cookieName, storageKey string) (string, bool) {
	if v, ok := s.cookies.Cookie(cookieName); ok {
		s.backupToStorage(ctx, storageKey, v)
		return v, true
	}

	v, ok, err := s.storage.Get(ctx, storageKey)
	if err != nil {
		s.logger.Warn("blitz: durable storage unavailable, treating token as absent",
			"key", storageKey, "error", err)
		return "", false
	}
	return v, ok
}

func (s *Store) backupToStorage(ctx context.Context, storageKey, value string) {
	if err := s.storage.Set(ctx, storageKey, value); err != nil {
		s.logger.Warn("blitz: durable storage unavailable, skipping token backup",
			"key", storageKey, "error", err)
	}
}
