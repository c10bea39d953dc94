package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxDetailRunes = 300

var (
	// ErrNetwork wraps failures where the request never produced a response.
	ErrNetwork = errors.New("backend unreachable")
	// ErrAPI matches every *APIError.
	ErrAPI = errors.New("backend error")
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	detail := e.Detail()
	if detail == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, detail)
}

// Is reports whether target is ErrAPI.
func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

// Detail extracts the human readable part of the response body. JSON bodies
// carrying a "detail" or "message" field are unwrapped.
func (e *APIError) Detail() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return ""
	}
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err == nil {
		if len(payload.Detail) > 0 {
			var text string
			if err := json.Unmarshal(payload.Detail, &text); err == nil {
				return text
			}
			return string(payload.Detail)
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if utf8.RuneCountInString(body) > maxDetailRunes {
		return string([]rune(body)[:maxDetailRunes]) + "..."
	}
	return body
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}
