package products

import (
	"bytes"
	"encoding/json"
	"strings"

	"affimporter/internal/sanitize"

	"github.com/shopspring/decimal"
)

// FlexString accepts any JSON scalar and keeps its text form. Null leaves it
// unset; arrays and objects read as an empty, set value.
type FlexString struct {
	Value string
	Set   bool
}

func NewFlexString(s string) FlexString {
	return FlexString{Value: s, Set: true}
}

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = FlexString{}

	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = NewFlexString(s)
	case bytes.Equal(data, []byte("true")):
		*f = NewFlexString("1")
	case bytes.Equal(data, []byte("false")):
		*f = NewFlexString("")
	case data[0] == '[' || data[0] == '{':
		*f = NewFlexString("")
	default:
		*f = NewFlexString(string(data))
	}
	return nil
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Candidate is one caller supplied product description awaiting import.
type Candidate struct {
	ASIN         FlexString `json:"asin"`
	PostTitle    FlexString `json:"post_title"`
	PostName     FlexString `json:"post_name"`
	PostContent  FlexString `json:"post_content"`
	ImagePrimary FlexString `json:"image_primary"`
	RegularPrice FlexString `json:"regular_price"`
	SalePrice    FlexString `json:"sale_price"`
	ProductURL   FlexString `json:"product_url"`
}

// Candidates tolerates a non-array payload, which reads as no candidates.
// Elements that are not objects become empty candidates and are skipped
// during import.
type Candidates []Candidate

func (c *Candidates) UnmarshalJSON(data []byte) error {
	*c = Candidates{}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	for _, item := range raw {
		var cand Candidate
		if err := json.Unmarshal(item, &cand); err != nil {
			cand = Candidate{}
		}
		*c = append(*c, cand)
	}
	return nil
}

// Categories holds integer coerced category term ids. Anything but a JSON
// array reads as empty.
type Categories []int

func (c *Categories) UnmarshalJSON(data []byte) error {
	*c = Categories{}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	for _, item := range raw {
		*c = append(*c, intval(item))
	}
	return nil
}

// ParseCategories reads a comma separated list of ids, as sent by forms.
func ParseCategories(s string) Categories {
	out := Categories{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, sanitize.Int(part))
		}
	}
	return out
}

func intval(item json.RawMessage) int {
	item = bytes.TrimSpace(item)
	if len(item) == 0 {
		return 0
	}

	switch item[0] {
	case '"':
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return 0
		}
		return sanitize.Int(s)
	case 't':
		return 1
	case 'f', 'n', '{', '[':
		return 0
	}

	d, err := decimal.NewFromString(string(item))
	if err != nil {
		return 0
	}
	return int(d.IntPart())
}

// ImportRequest is the bulk import payload.
type ImportRequest struct {
	Products   Candidates `json:"products"`
	Categories Categories `json:"categories"`
}
