// Package apiclient carries the request-shaping helpers shared by the Atlas
// and PayNow clients.
package apiclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	errs "github.com/atlasgg/storefront/errors"
)

// EncodeQuery builds a URL query string from params. Nil values are omitted;
// everything else is stringified and URL-encoded. An empty result means no
// "?" should be appended at all.
func EncodeQuery(params map[string]any) string {
	values := url.Values{}
	for key, value := range params {
		if value == nil {
			continue
		}
		values.Set(key, fmt.Sprint(value))
	}
	return values.Encode()
}

// DecodeResponse normalizes a response: any non-2xx status becomes a typed
// *errs.APIError carrying the status line and raw body, otherwise the body is
// unmarshalled into out (skipped when out is nil or the body is empty).
func DecodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errs.NewAPIError(resp.StatusCode, http.StatusText(resp.StatusCode), string(raw))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
