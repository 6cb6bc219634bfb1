package dmapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the media API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dmapi %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("dmapi %d: %s", e.Status, e.Message)
}

// ErrInvalidKey is returned by VerifyKey when the media API rejects a key.
var ErrInvalidKey = errors.New("dmapi: api key rejected")

// IsRateLimited reports whether err is a 429 from the media API.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}

// IsUnauthorized reports whether err is a 401 from the media API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// IsForbidden reports whether err is a 403 from the media API.
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden
}

// IsNotFound reports a 404 from the media API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsDuplicate reports whether the media API rejected an upload because an
// equivalent object already exists.
func IsDuplicate(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status == http.StatusConflict {
		return true
	}
	code := strings.ToUpper(apiErr.Code)
	if strings.Contains(code, "DUPLICATE") || strings.Contains(code, "ALREADY_EXISTS") {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "already exists")
}

// decodeAPIError accepts both {"error":"msg","code":"X"} and
// {"error":{"code":"X","message":"msg"}} bodies.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Code    string          `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}

	apiErr.Code = envelope.Code
	apiErr.Message = envelope.Message
	if len(envelope.Error) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Error, &text); err == nil {
			if apiErr.Message == "" {
				apiErr.Message = text
			}
		} else {
			var nested struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(envelope.Error, &nested); err == nil {
				if apiErr.Code == "" {
					apiErr.Code = nested.Code
				}
				if apiErr.Message == "" {
					apiErr.Message = nested.Message
				}
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
