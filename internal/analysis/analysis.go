// Package analysis validates and normalizes structured extraction output
// returned by the language model.
//
// ParseExtraction either returns a complete Extraction or an error; it never
// fills in a missing field with a default.
package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

// RequiredFields are the keys every extraction response must carry.
var RequiredFields = []string{"sentiment", "priority", "customer_request", "contact_info"}

// ParseError reports a response that is not a JSON object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse extraction: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// MissingFieldError reports a required key absent from the response.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("extraction missing required field %q", e.Field)
}

// InvalidValueError reports a required key whose value is outside its domain.
type InvalidValueError struct {
	Field string
	Value string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("extraction field %q has invalid value %s", e.Field, e.Value)
}

// StripFences removes Markdown code-fence markers wrapped around a model
// response, e.g. "```json{...}```" or "```\n{...}\n```".
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string (language tag) directly after the opening fence.
	i := 0
	for i < len(s) && isTagByte(s[i]) {
		i++
	}
	s = s[i:]
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isTagByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}

// ParseExtraction strips fences from raw, decodes it and checks the four
// required keys.
func ParseExtraction(raw string) (types.Extraction, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(StripFences(raw)), &fields); err != nil {
		return types.Extraction{}, &ParseError{Err: err}
	}
	if fields == nil {
		return types.Extraction{}, &ParseError{Err: fmt.Errorf("response is null")}
	}
	for _, f := range RequiredFields {
		if _, ok := fields[f]; !ok {
			return types.Extraction{}, &MissingFieldError{Field: f}
		}
	}

	var out types.Extraction

	sentiment, err := stringField(fields, "sentiment")
	if err != nil {
		return types.Extraction{}, err
	}
	s, ok := types.ParseSentiment(sentiment)
	if !ok {
		return types.Extraction{}, &InvalidValueError{Field: "sentiment", Value: string(fields["sentiment"])}
	}
	out.Sentiment = s

	priority, err := stringField(fields, "priority")
	if err != nil {
		return types.Extraction{}, err
	}
	p, ok := types.ParsePriority(priority)
	if !ok {
		return types.Extraction{}, &InvalidValueError{Field: "priority", Value: string(fields["priority"])}
	}
	out.Priority = p

	request, err := stringField(fields, "customer_request")
	if err != nil {
		return types.Extraction{}, err
	}
	out.CustomerRequest = strings.TrimSpace(request)

	contact, err := contactField(fields["contact_info"])
	if err != nil {
		return types.Extraction{}, err
	}
	out.ContactInfo = contact

	return out, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw := fields[name]
	var s string
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) || json.Unmarshal(raw, &s) != nil {
		return "", &InvalidValueError{Field: name, Value: string(raw)}
	}
	return s, nil
}

// contactField flattens the contact_info object into string values. Lists
// of strings are joined with ", "; other non-string values keep their JSON
// text; null entries are dropped. A JSON null object counts as empty.
func contactField(raw json.RawMessage) (map[string]string, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return map[string]string{}, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &InvalidValueError{Field: "contact_info", Value: string(raw)}
	}

	out := make(map[string]string, len(obj))
	for k, v := range obj {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			out[k] = strings.Join(list, ", ")
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, v); err != nil {
			return nil, &InvalidValueError{Field: "contact_info", Value: string(raw)}
		}
		out[k] = compact.String()
	}
	return out, nil
}

// FormatContactInfo renders contact info as "k: v, k: v" in key order, or
// "None" when empty.
func FormatContactInfo(info map[string]string) string {
	if len(info) == 0 {
		return "None"
	}
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + info[k]
	}
	return strings.Join(parts, ", ")
}
