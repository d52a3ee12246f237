package oauth

import (
	"net/url"
	"strings"
)

// Authorization response parameter names.
const (
	ParamCode             = "code"
	ParamState            = "state"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
	ParamErrorURI         = "error_uri"
)

// ResponseParams lists the one-time parameters an authorization server
// appends to the redirect URI.
var ResponseParams = []string{
	ParamCode,
	ParamState,
	ParamError,
	ParamErrorDescription,
	ParamErrorURI,
}

// ParamsParser decodes authorization response parameters from a location.
// useFragment is the hint a generic redirect handler would pass for
// fragment-encoded responses.
type ParamsParser func(location *url.URL, useFragment bool) map[string]string

// ParseResponseParams decodes parameters from the query string of location.
// The useFragment hint is ignored: every request is sent with
// response_mode=query, so a fragment never carries the response.
// For repeated keys the first value wins.
func ParseResponseParams(location *url.URL, _ bool) map[string]string {
	params := make(map[string]string)
	if location == nil {
		return params
	}

	values, err := url.ParseQuery(location.RawQuery)
	if err != nil && len(values) == 0 {
		return params
	}
	for key, vals := range values {
		if len(vals) > 0 {
			params[key] = vals[0]
		}
	}
	return params
}

// StripResponseParams returns a copy of u without the authorization response
// parameters. The remaining query segments keep their order and encoding, and
// the fragment is preserved.
func StripResponseParams(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	stripped := *u
	if u.RawQuery == "" {
		return &stripped
	}

	var kept []string
	for _, segment := range strings.Split(u.RawQuery, "&") {
		if segment == "" || isResponseParam(segment) {
			continue
		}
		kept = append(kept, segment)
	}
	stripped.RawQuery = strings.Join(kept, "&")
	stripped.ForceQuery = false
	return &stripped
}

func isResponseParam(segment string) bool {
	key, _, _ := strings.Cut(segment, "=")
	if unescaped, err := url.QueryUnescape(key); err == nil {
		key = unescaped
	}
	for _, p := range ResponseParams {
		if key == p {
			return true
		}
	}
	return false
}

// HasResponseParams reports whether u carries any authorization response parameter.
func HasResponseParams(u *url.URL) bool {
	if u == nil || u.RawQuery == "" {
		return false
	}
	query := u.Query()
	for _, p := range ResponseParams {
		if query.Has(p) {
			return true
		}
	}
	return false
}
