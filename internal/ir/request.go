package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// IdentifyRequest is the request body of POST /identify.
type IdentifyRequest struct {
	Email       *string      `json:"email"`
	PhoneNumber *PhoneNumber `json:"phoneNumber"`
}

// Query normalizes the request. Blank values count as absent.
func (r IdentifyRequest) Query() Query {
	var q Query
	if r.Email != nil {
		q.Email = NormalizeField(*r.Email)
	}
	if r.PhoneNumber != nil {
		q.PhoneNumber = NormalizeField(string(*r.PhoneNumber))
	}
	return q
}

// PhoneNumber accepts either a JSON string or a JSON number.
// Numbers are kept as the shortest decimal form of their value.
type PhoneNumber string

// UnmarshalJSON implements json.Unmarshaler.
func (p *PhoneNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("phoneNumber: %w", err)
		}
		*p = PhoneNumber(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("phoneNumber must be a string or a number")
	}
	if i, err := n.Int64(); err == nil {
		*p = PhoneNumber(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("phoneNumber: %w", err)
	}
	*p = PhoneNumber(formatNumber(f))
	return nil
}

// formatNumber renders f in its shortest decimal form, so 123, 123.0 and
// 1.23e2 all become "123". Integral values below 1e21 never use an exponent.
func formatNumber(f float64) string {
	if f == 0 {
		f = 0 // drop the sign of -0
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// NormalizeField trims surrounding whitespace and applies Unicode NFC so
// that visually identical inputs match the same stored value.
// Returns nil when nothing is left.
func NormalizeField(s string) *string {
	v := norm.NFC.String(strings.TrimSpace(s))
	if v == "" {
		return nil
	}
	return &v
}
