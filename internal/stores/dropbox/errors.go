package dropbox

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imroc/req/v3"
)

var (
	ErrNoToken      = errors.New("dropbox: access token or refresh token missing")
	ErrPathNotFound = errors.New("dropbox: path not found")
)

// APIError is the JSON body Dropbox returns with an error status, e.g.
// {"error_summary": "path/not_found/..", "error": {".tag": "path", ...}}
type APIError struct {
	Summary string         `json:"error_summary"`
	Detail  map[string]any `json:"error"`
	Status  int            `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dropbox api error: %d - %s", e.Status, e.Summary)
}

// Tag returns the top level tag of the error, e.g. "path".
func (e *APIError) Tag() string {
	if tag, ok := e.Detail[".tag"].(string); ok {
		return tag
	}
	if i := strings.IndexByte(e.Summary, '/'); i > 0 {
		return e.Summary[:i]
	}
	return e.Summary
}

// HasPrefix matches the error summary against a tag path such as "path/not_found".
func (e *APIError) HasPrefix(prefix string) bool {
	return strings.HasPrefix(e.Summary, prefix)
}

func (e *APIError) Is(target error) bool {
	return target == ErrPathNotFound && (e.HasPrefix("path/not_found") || e.HasPrefix("path_lookup/not_found"))
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr.Summary != "" {
			apiErr.Status = resp.GetStatusCode()
			return fmt.Errorf("%s: %w", operation, apiErr)
		}
		return fmt.Errorf("%s: %w", operation, &APIError{Summary: strings.TrimSpace(resp.String()), Status: resp.GetStatusCode()})
	}

	return nil
}
