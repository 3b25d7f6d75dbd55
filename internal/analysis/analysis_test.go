package analysis

import (
	"errors"
	"reflect"
	"testing"

	"github.com/yashmulik1278/email-assistant-LLM/internal/types"
)

const validJSON = `{"sentiment":"Negative","priority":"Urgent","customer_request":"Cannot log in","contact_info":{}}`

func TestStripFences(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", validJSON, validJSON},
		{"json tag inline", "```json" + validJSON + "```", validJSON},
		{"json tag newline", "```json\n" + validJSON + "\n```", validJSON},
		{"bare fence", "```\n" + validJSON + "\n```\n", validJSON},
		{"surrounding space", "  \n```JSON\n" + validJSON + "```  ", validJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseExtraction_FencedEqualsUnfenced(t *testing.T) {
	plain, err := ParseExtraction(validJSON)
	if err != nil {
		t.Fatalf("plain: %v", err)
	}
	fenced, err := ParseExtraction("```json" + validJSON + "```")
	if err != nil {
		t.Fatalf("fenced: %v", err)
	}
	if !reflect.DeepEqual(plain, fenced) {
		t.Errorf("fenced = %+v, plain = %+v", fenced, plain)
	}
	if plain.Sentiment != types.SentimentNegative || plain.Priority != types.PriorityUrgent {
		t.Errorf("unexpected values: %+v", plain)
	}
	if plain.CustomerRequest != "Cannot log in" {
		t.Errorf("customer_request = %q", plain.CustomerRequest)
	}
	if plain.ContactInfo == nil || len(plain.ContactInfo) != 0 {
		t.Errorf("contact_info = %#v, want empty map", plain.ContactInfo)
	}
}

func TestParseExtraction_MissingField(t *testing.T) {
	for _, field := range RequiredFields {
		raw := map[string]string{
			"sentiment":        `"sentiment":"Neutral"`,
			"priority":         `"priority":"Urgent"`,
			"customer_request": `"customer_request":"x"`,
			"contact_info":     `"contact_info":{}`,
		}
		delete(raw, field)
		body := "{"
		first := true
		for _, f := range RequiredFields {
			if part, ok := raw[f]; ok {
				if !first {
					body += ","
				}
				body += part
				first = false
			}
		}
		body += "}"

		_, err := ParseExtraction(body)
		var mf *MissingFieldError
		if !errors.As(err, &mf) {
			t.Errorf("missing %s: err = %v, want MissingFieldError", field, err)
			continue
		}
		if mf.Field != field {
			t.Errorf("MissingFieldError.Field = %q, want %q", mf.Field, field)
		}
	}
}

func TestParseExtraction_ParseErrors(t *testing.T) {
	for _, in := range []string{"", "not json", "```json\n{\"sentiment\":```", "[1,2]", "null"} {
		_, err := ParseExtraction(in)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("ParseExtraction(%q) err = %v, want ParseError", in, err)
		}
	}
}

func TestParseExtraction_InvalidValues(t *testing.T) {
	tests := []string{
		`{"sentiment":"Furious","priority":"Urgent","customer_request":"x","contact_info":{}}`,
		`{"sentiment":"Neutral","priority":"P1","customer_request":"x","contact_info":{}}`,
		`{"sentiment":"Neutral","priority":"Urgent","customer_request":42,"contact_info":{}}`,
		`{"sentiment":"Neutral","priority":"Urgent","customer_request":null,"contact_info":{}}`,
		`{"sentiment":null,"priority":"Urgent","customer_request":"x","contact_info":{}}`,
		`{"sentiment":"Neutral","priority":"Urgent","customer_request":"x","contact_info":"555-0100"}`,
	}
	for _, in := range tests {
		_, err := ParseExtraction(in)
		var iv *InvalidValueError
		if !errors.As(err, &iv) {
			t.Errorf("ParseExtraction(%s) err = %v, want InvalidValueError", in, err)
		}
	}
}

func TestParseExtraction_NormalizesValues(t *testing.T) {
	in := `{"sentiment":"positive","priority":"not urgent","customer_request":"  Upgrade plan ",
		"contact_info":{"phone":"555-0100","emails":["a@x.com","b@x.com"],"ext":12,"extra":null}}`
	got, err := ParseExtraction(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := types.Extraction{
		Sentiment:       types.SentimentPositive,
		Priority:        types.PriorityNotUrgent,
		CustomerRequest: "Upgrade plan",
		ContactInfo: map[string]string{
			"phone":  "555-0100",
			"emails": "a@x.com, b@x.com",
			"ext":    "12",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}

func TestParseExtraction_NullContactInfo(t *testing.T) {
	got, err := ParseExtraction(`{"sentiment":"Neutral","priority":"Urgent","customer_request":"x","contact_info":null}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ContactInfo == nil || len(got.ContactInfo) != 0 {
		t.Errorf("contact_info = %#v, want empty map", got.ContactInfo)
	}
}

func TestFormatContactInfo(t *testing.T) {
	if got := FormatContactInfo(nil); got != "None" {
		t.Errorf("empty = %q", got)
	}
	got := FormatContactInfo(map[string]string{"phone": "1", "email": "a@b"})
	if got != "email: a@b, phone: 1" {
		t.Errorf("got %q", got)
	}
}
