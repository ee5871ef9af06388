package kadi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 64 << 10

// Error is a non-2xx answer from the API. Response holds the decoded JSON
// body, or the raw text when the body is not JSON.
type Error struct {
	StatusCode int
	Message    string
	Response   any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("kadi: status %d", e.StatusCode)
	}
	return fmt.Sprintf("kadi: status %d: %s", e.StatusCode, e.Message)
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &Error{StatusCode: resp.StatusCode}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		e.Response = body
		for _, key := range []string{"description", "message"} {
			if s, ok := body[key].(string); ok && s != "" {
				e.Message = s
				break
			}
		}
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		e.Response = text
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
