package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/blitz-go/blitz/pkg/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RPCPathPrefix is where resolvers are mounted on the server.
const RPCPathPrefix = "/api/rpc/"

// Error is a structured resolver failure as the server reported it.
type Error struct {
	Name       string `json:"name"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc: %s: %s", e.Name, e.Message)
}

// Unwrap classifies server-side authentication failures so errors.Is
// matching (and the logged-in store clearing) works on them.
func (e *Error) Unwrap() error {
	if e.isAuthError() {
		return session.ErrUnauthorized
	}
	return nil
}

func (e *Error) isAuthError() bool {
	return e.Name == "AuthenticationError" || e.StatusCode == http.StatusUnauthorized
}

type rpcRequest struct {
	Params json.RawMessage `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Invoke calls the named resolver with input and decodes its result.
//
// On any failure classified as an authentication error while a user is
// currently logged in, the session store is cleared, so every context
// learns the login is gone.
func Invoke[I, O any](ctx context.Context, c *Client, name string, input I) (O, error) {
	var zero O

	ctx, span := c.tracer.Start(ctx, "rpc."+name)
	defer span.End()
	span.SetAttributes(attribute.String("blitz.resolver", name))

	params, err := json.Marshal(input)
	if err != nil {
		return zero, fmt.Errorf("rpc: marshal params for %s: %w", name, err)
	}
	body, err := json.Marshal(rpcRequest{Params: params})
	if err != nil {
		return zero, fmt.Errorf("rpc: marshal request for %s: %w", name, err)
	}

	u := c.base.JoinPath(RPCPathPrefix, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		err = unwrapURLError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.clearIfAuthError(ctx, err)
		return zero, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return zero, fmt.Errorf("rpc: read response for %s: %w", name, err)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return zero, fmt.Errorf("rpc: %s returned malformed payload (status %d): %w", name, res.StatusCode, err)
	}

	if decoded.Error != nil {
		span.RecordError(decoded.Error)
		span.SetStatus(codes.Error, decoded.Error.Message)
		c.clearIfAuthError(ctx, decoded.Error)
		return zero, decoded.Error
	}

	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))
	if len(decoded.Result) > 0 {
		if err := json.Unmarshal(decoded.Result, &zero); err != nil {
			return zero, fmt.Errorf("rpc: decode result for %s: %w", name, err)
		}
	}
	return zero, nil
}

// clearIfAuthError clears the session store when an authentication
// failure arrives while a user is logged in. A logged-out context
// ignores it: there is nothing to revoke.
func (c *Client) clearIfAuthError(ctx context.Context, err error) {
	if !session.IsAuthError(err) {
		return
	}
	if !c.store.Current().Authenticated() {
		return
	}
	if cerr := c.store.Clear(ctx); cerr != nil {
		c.logger.Error("blitz: failed to clear session after auth error", "error", cerr)
	}
}

// unwrapURLError strips the url.Error wrapper http.Client adds, so
// transport-level faults (e.g. CSRFTokenMismatchError) keep their type.
func unwrapURLError(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		if inner := u.Unwrap(); inner != nil {
			return inner
		}
	}
	return err
}
