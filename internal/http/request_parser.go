// Package http provides the JSON API server and its handlers.
//
// This file implements parsing and validation of request parameters and
// bodies shared by the handlers.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cobros/internal/core"
)

// maxBodyBytes bounds request bodies; payments are a handful of fields.
const maxBodyBytes = 64 << 10

const dateLayout = "2006-01-02"

var errBodyTooLarge = errors.New("request body too large")

// ReportParams selects a bucket of payments.
type ReportParams struct {
	// Bucket is the normalized bucket; it may be unknown, which lists
	// every payment.
	Bucket core.Bucket
	// Raw is the bucket exactly as sent, echoed back to the caller.
	Raw  string
	Date time.Time
}

// ParseReportParams reads bucket and date (YYYY-MM-DD, on the calendar of
// loc). A missing bucket means daily; a missing date means today in loc.
func ParseReportParams(query url.Values, loc *time.Location, now time.Time) (ReportParams, error) {
	raw := strings.TrimSpace(query.Get("bucket"))
	params := ReportParams{Bucket: core.BucketDaily, Raw: raw, Date: now.In(loc)}
	if raw != "" {
		params.Bucket = core.ParseBucket(raw)
	} else {
		params.Raw = string(core.BucketDaily)
	}

	if v := strings.TrimSpace(query.Get("date")); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return ReportParams{}, fmt.Errorf("fecha inválida %q: use AAAA-MM-DD", v)
		}
		params.Date = d
	}
	return params, nil
}

// RequestBodyParser handles JSON and form-encoded bodies.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to maxBodyBytes.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		dec := json.NewDecoder(bytes.NewReader(p.body))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a trimmed, sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was sent with a non-null value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return ok && v != nil
	}
	return p.formData != nil && p.formData.Has(key)
}

// GetOptionalInt returns nil when key is absent or blank.
func (p *RequestBodyParser) GetOptionalInt(key string) (*int, error) {
	if !p.Has(key) {
		return nil, nil
	}
	s := p.Get(key)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%s debe ser un número entero", key)
	}
	return &n, nil
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue renders JSON scalars as text; numbers keep their literal
// form so amounts are not rounded through float64.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims and drops control characters except tab, newline and
// carriage return.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// RequireMethod returns a 405 response unless r uses one of methods.
func RequireMethod(r *http.Request, methods ...string) *ResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequireGET also accepts HEAD.
func RequireGET(r *http.Request) *ResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}
