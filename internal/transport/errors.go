package transport

import (
	"fmt"
	"net/http"
)

// HTTPError reports a response outside the 2xx range.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("estimator returned status %d: %s", e.Status, e.Message)
}

// NetworkError reports a request that never completed.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// messageFromBody pulls a human message out of an error body. The backend
// uses "message" for its own envelope and "detail" for framework errors,
// where detail may be a string or a list of {msg} objects.
func messageFromBody(status int, body interface{}) string {
	obj, ok := body.(map[string]interface{})
	if ok {
		if msg, ok := obj["message"].(string); ok && msg != "" {
			return msg
		}
		switch detail := obj["detail"].(type) {
		case string:
			if detail != "" {
				return detail
			}
		case []interface{}:
			for _, item := range detail {
				if entry, ok := item.(map[string]interface{}); ok {
					if msg, ok := entry["msg"].(string); ok && msg != "" {
						return msg
					}
				}
			}
		}
	}

	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("Request failed: %s", text)
	}
	return fmt.Sprintf("Request failed with status %d", status)
}
