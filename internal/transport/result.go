package transport

import (
	"encoding/json"
	"fmt"
)

// Kind tells which field of a Result carries the body.
type Kind int

const (
	KindEmpty Kind = iota // 201 acknowledgement, no body
	KindJSON
	KindText
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindJSON:
		return "json"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is a classified successful response.
type Result struct {
	Kind        Kind
	StatusCode  int
	ContentType string
	JSON        json.RawMessage
	Text        string
	Bytes       []byte
}

// Decode unmarshals a JSON result into v.
func (r *Result) Decode(v any) error {
	if r.Kind != KindJSON {
		return fmt.Errorf("expected a JSON response, got %s (%q)", r.Kind, r.ContentType)
	}
	return json.Unmarshal(r.JSON, v)
}

// Body returns the payload as bytes whatever its kind.
func (r *Result) Body() []byte {
	switch r.Kind {
	case KindJSON:
		return []byte(r.JSON)
	case KindText:
		return []byte(r.Text)
	case KindBytes:
		return r.Bytes
	default:
		return nil
	}
}
