package domain

import (
	"net/http"
	"strings"
)

// Headers is a case-insensitive view of response headers. A header may carry
// more than one value; lookups return the first one.
type Headers map[string][]string

// NewHeaders builds Headers from single-valued pairs.
func NewHeaders(pairs map[string]string) Headers {
	h := make(Headers, len(pairs))
	for k, v := range pairs {
		h.Add(k, v)
	}
	return h
}

// HeadersFromHTTP copies an http.Header.
func HeadersFromHTTP(src http.Header) Headers {
	h := make(Headers, len(src))
	for k, values := range src {
		for _, v := range values {
			h.Add(k, v)
		}
	}
	return h
}

// Add appends a value under the lower-cased name.
func (h Headers) Add(name, value string) {
	key := strings.ToLower(name)
	h[key] = append(h[key], value)
}

// Set replaces all values for name.
func (h Headers) Set(name string, values ...string) {
	h[strings.ToLower(name)] = values
}

// Get returns the first value for name and whether it was present.
func (h Headers) Get(name string) (string, bool) {
	if h == nil {
		return "", false
	}
	values, ok := h[strings.ToLower(name)]
	if !ok {
		// Headers built by hand may not be normalized.
		for k, v := range h {
			if strings.EqualFold(k, name) {
				values, ok = v, true
				break
			}
		}
	}
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
