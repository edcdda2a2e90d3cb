package rpc

import (
	"log/slog"
	"net/http"

	"github.com/blitz-go/blitz/pkg/publicstore"
	"github.com/blitz-go/blitz/pkg/session"
)

// sessionTransport is the middleware hook point of the HTTP pipeline.
//
// Before the request: attach the anti-CSRF token header when one is
// known. After the response: react to the server's marker headers. The
// transport is where "an HTTP response arrived" turns into "the session
// store re-reads storage and notifies every context".
type sessionTransport struct {
	inner  http.RoundTripper
	store  *publicstore.Store
	client *Client
	logger *slog.Logger
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if token, ok := t.store.ReadCSRFToken(ctx); ok {
		// Clone before mutating: RoundTrippers must not modify the
		// caller's request.
		req = req.Clone(ctx)
		req.Header.Set(session.HeaderCSRF, token)
	}

	rt := t.inner
	if rt == nil {
		rt = http.DefaultTransport
	}
	res, err := rt.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	// http.Client only feeds Set-Cookie into the jar after RoundTrip
	// returns. Ingest them now so cookie-derived state below observes
	// this response's values; the client's own ingestion later is a
	// no-op rewrite of the same cookies.
	if jar := t.client.http.Jar; jar != nil {
		if cookies := res.Cookies(); len(cookies) > 0 {
			jar.SetCookies(req.URL, cookies)
		}
	}

	if res.Header.Get(session.HeaderPublicDataChanged) != "" ||
		res.Header.Get(session.HeaderSessionCreated) != "" ||
		res.Header.Get(session.HeaderCSRFError) != "" {
		t.store.BackupCSRFToken(ctx)
	}

	if res.Header.Get(session.HeaderPublicDataChanged) != "" {
		if uerr := t.store.UpdateState(ctx, nil); uerr != nil {
			t.logger.Error("blitz: failed to update session state from response",
				"url", req.URL.String(), "error", uerr)
		}
	}

	if res.Header.Get(session.HeaderSessionCreated) != "" {
		t.client.dispatchSessionCreated()
	}

	if res.Header.Get(session.HeaderCSRFError) != "" {
		res.Body.Close()
		return nil, &session.CSRFTokenMismatchError{}
	}

	return res, nil
}
