package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// DecodeError indicates a malformed session token. It is always surfaced
// to the caller: a token that fails to decode is NOT equivalent to "no
// session", since silently logging the user out would mask corruption or
// tampering.
type DecodeError struct {
	// Raw is the decoded text (or the original token when base64
	// decoding itself failed), kept to aid debugging.
	Raw string

	// Err is the underlying base64 or JSON error, nil for empty input.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: failed to parse public data token %q: %v", e.Raw, e.Err)
	}
	return "session: failed to parse empty public data token"
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses a base64-encoded session token into PublicData.
//
// The input must be a non-empty base64 string (standard or URL alphabet,
// padded or not) whose decoded bytes are JSON of the PublicData shape.
// Decode has no side effects.
func Decode(token string) (PublicData, error) {
	if token == "" {
		return PublicData{}, &DecodeError{}
	}

	raw, err := decodeBase64(token)
	if err != nil {
		return PublicData{}, &DecodeError{Raw: token, Err: err}
	}

	var pd PublicData
	if err := json.Unmarshal(raw, &pd); err != nil {
		return PublicData{}, &DecodeError{Raw: string(raw), Err: err}
	}
	return pd, nil
}

// Encode is the inverse of Decode. The reference server uses it to issue
// tokens; Decode(Encode(pd)) == pd for all pd.
func Encode(pd PublicData) string {
	raw, err := json.Marshal(pd)
	if err != nil {
		// PublicData contains only strings and string slices; Marshal
		// cannot fail on it.
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// decodeBase64 accepts the standard and URL alphabets, with or without
// padding, since tokens cross cookie, header and storage boundaries that
// disagree about encoding.
func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if raw, err := enc.DecodeString(s); err == nil {
			return raw, nil
		}
	}
	// Re-run the strictest decoder for its error value.
	_, err := base64.StdEncoding.DecodeString(s)
	return nil, err
}
