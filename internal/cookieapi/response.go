// Package cookieapi decodes CookieDB wire responses. The server reports
// failure through the response body rather than the HTTP status code: JSON
// endpoints reply with an {"error": ...} envelope, while ack endpoints reply
// either with the same envelope or with the literal text "success" (older
// protocol revision). Both shapes are handled here so the client packages
// never inspect raw bodies themselves.
package cookieapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SuccessSentinel is the plain-text body older servers send for acknowledged
// mutations.
const SuccessSentinel = "success"

// ServerError carries a server-reported failure message verbatim. The
// protocol has no machine-readable error codes, so the message text is all
// there is; callers must not expect any finer classification.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "cookiedb: server: " + e.Message
}

// MalformedResponseError indicates a body that could not be interpreted as
// either protocol shape. It is a transport-level failure, not a
// server-reported one.
type MalformedResponseError struct {
	Body []byte
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("cookiedb: malformed response body %q: %v", truncate(e.Body), e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// DecodeResult parses a JSON endpoint response. An {"error": ...} envelope
// becomes a *ServerError; any other valid JSON value is unmarshalled into
// out. A non-JSON body is malformed for these endpoints.
func DecodeResult(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &MalformedResponseError{Body: body, Err: fmt.Errorf("empty body")}
	}

	if err := serverError(trimmed); err != nil {
		return err
	}

	if !json.Valid(trimmed) {
		return &MalformedResponseError{Body: body, Err: fmt.Errorf("expected JSON")}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return &MalformedResponseError{Body: body, Err: err}
	}
	return nil
}

// DecodeAck parses an acknowledgement response. Accepted success shapes:
// the literal text "success", or any valid JSON value without an error
// field. An {"error": ...} envelope or any other text becomes a
// *ServerError; an empty body is malformed, since the server always sends
// either a sentinel or an envelope.
func DecodeAck(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &MalformedResponseError{Body: body, Err: fmt.Errorf("empty body")}
	}

	if json.Valid(trimmed) {
		return serverError(trimmed)
	}

	text := strings.TrimSpace(string(trimmed))
	if text == SuccessSentinel {
		return nil
	}
	return &ServerError{Message: text}
}

// serverError reports the error envelope if trimmed is a JSON object
// carrying a non-null error field.
func serverError(trimmed []byte) error {
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil
	}
	if envelope.Error == nil || bytes.Equal(envelope.Error, []byte("null")) {
		return nil
	}

	var message string
	if err := json.Unmarshal(envelope.Error, &message); err != nil {
		// Non-string error payloads are surfaced as compact JSON.
		message = string(bytes.TrimSpace(envelope.Error))
	}
	return &ServerError{Message: message}
}

func truncate(body []byte) string {
	const max = 256
	s := string(bytes.TrimSpace(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
