// Package models defines the normalized scrape result model shared by all
// provider adapters and the HTTP surface.
package models

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// ScrapeImage is one media artifact: the canonical upstream URL plus the
// proxied (camo) equivalent.
type ScrapeImage struct {
	URL     string `json:"url"`
	CamoURL string `json:"camo_url"`
}

// ScrapeResultData is a normalized hit produced by an adapter.
// Images is never empty; adapters that find no media return a nil result
// instead. AdditionalTags, when present, is non-empty and sorted ascending.
// Description, when present, is non-empty after trimming.
type ScrapeResultData struct {
	SourceURL      *string       `json:"source_url"`
	AuthorName     *string       `json:"author_name"`
	AdditionalTags []string      `json:"additional_tags"`
	Description    *string       `json:"description"`
	Images         []ScrapeImage `json:"images"`
}

// ScrapeResultError carries the human-readable error messages returned to
// the caller. Errors is never empty.
type ScrapeResultError struct {
	Errors []string `json:"errors"`
}

// ScrapeResult is a tagged union serialized untagged: the JSON shape alone
// distinguishes the variants. {"errors": [...]} is the error variant, an
// object with an "images" array is the data variant, and JSON null is the
// none variant (both fields nil).
type ScrapeResult struct {
	Data *ScrapeResultData
	Err  *ScrapeResultError
}

// Ok builds a data result.
func Ok(data ScrapeResultData) *ScrapeResult {
	return &ScrapeResult{Data: &data}
}

// Errors builds an error result from messages.
func Errors(messages ...string) *ScrapeResult {
	return &ScrapeResult{Err: &ScrapeResultError{Errors: messages}}
}

// IsNone reports whether the result is the none variant.
func (r *ScrapeResult) IsNone() bool {
	return r == nil || (r.Data == nil && r.Err == nil)
}

func (r ScrapeResult) MarshalJSON() ([]byte, error) {
	switch {
	case r.Err != nil:
		return json.Marshal(r.Err)
	case r.Data != nil:
		return json.Marshal(r.Data)
	default:
		return []byte("null"), nil
	}
}

func (r *ScrapeResult) UnmarshalJSON(b []byte) error {
	r.Data, r.Err = nil, nil

	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" {
		return nil
	}

	// Err variant requires an "errors" array; try it before the Ok shape.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return err
	}
	if _, ok := probe["errors"]; ok {
		var e ScrapeResultError
		if err := json.Unmarshal(b, &e); err != nil {
			return err
		}
		r.Err = &e
		return nil
	}
	if _, ok := probe["images"]; ok {
		var d ScrapeResultData
		if err := json.Unmarshal(b, &d); err != nil {
			return err
		}
		r.Data = &d
		return nil
	}
	return nil
}

// ResultFromError flattens a wrapped error chain into the public error
// variant: one message per chained cause. HTTP transport errors
// (*url.Error) are noise for callers and are filtered out of the public
// list; telemetry sees the full chain at the capture site.
func ResultFromError(err error) *ScrapeResult {
	var messages []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		if _, transport := e.(*url.Error); transport {
			continue
		}
		messages = append(messages, causeMessage(e))
	}
	if len(messages) == 0 {
		messages = []string{err.Error()}
	}
	return &ScrapeResult{Err: &ScrapeResultError{Errors: messages}}
}

// causeMessage strips the rendered suffix of the wrapped cause so each
// chain link contributes its own message rather than the whole chain.
func causeMessage(e error) string {
	msg := e.Error()
	if next := errors.Unwrap(e); next != nil {
		msg = strings.TrimSuffix(msg, next.Error())
		msg = strings.TrimSuffix(msg, ": ")
	}
	return msg
}

// StringPtr returns a pointer to s, or nil if s is empty after trimming.
// Used for the nullable description/source fields.
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
