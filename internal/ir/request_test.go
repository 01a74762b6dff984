package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyRequest_PhoneNumberForms(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantPhone *string
	}{
		{"string", `{"phoneNumber":"123456"}`, Ptr("123456")},
		{"number", `{"phoneNumber":123456}`, Ptr("123456")},
		{"large number", `{"phoneNumber":919876543210}`, Ptr("919876543210")},
		{"integral float", `{"phoneNumber":123.0}`, Ptr("123")},
		{"exponent", `{"phoneNumber":1e3}`, Ptr("1000")},
		{"exponent with fraction", `{"phoneNumber":1.23e2}`, Ptr("123")},
		{"negative zero", `{"phoneNumber":-0.0}`, Ptr("0")},
		{"fraction", `{"phoneNumber":12.50}`, Ptr("12.5")},
		{"beyond int64", `{"phoneNumber":1e19}`, Ptr("10000000000000000000")},
		{"null", `{"phoneNumber":null}`, nil},
		{"missing", `{}`, nil},
		{"blank string", `{"phoneNumber":"   "}`, nil},
		{"padded string", `{"phoneNumber":" 42 "}`, Ptr("42")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req IdentifyRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.wantPhone, req.Query().PhoneNumber)
		})
	}
}

func TestIdentifyRequest_RejectsWrongTypes(t *testing.T) {
	bodies := []string{
		`{"phoneNumber":true}`,
		`{"phoneNumber":{"n":1}}`,
		`{"phoneNumber":[1]}`,
		`{"email":42}`,
		`{"phoneNumber":1e400}`,
	}

	for _, body := range bodies {
		var req IdentifyRequest
		assert.Error(t, json.Unmarshal([]byte(body), &req), body)
	}
}

func TestIdentifyRequest_Query(t *testing.T) {
	var req IdentifyRequest
	require.NoError(t, json.Unmarshal([]byte(`{"email":" a@x.com ","phoneNumber":null}`), &req))

	q := req.Query()
	require.NotNil(t, q.Email)
	assert.Equal(t, "a@x.com", *q.Email)
	assert.Nil(t, q.PhoneNumber)
	assert.False(t, q.Empty())
}

func TestIdentifyRequest_EmptyQuery(t *testing.T) {
	var req IdentifyRequest
	require.NoError(t, json.Unmarshal([]byte(`{"email":"","phoneNumber":null}`), &req))
	assert.True(t, req.Query().Empty())
}

func TestNormalizeField_NFC(t *testing.T) {
	// "é" as e + combining acute accent composes to U+00E9.
	decomposed := "cafe\u0301@x.com"
	got := NormalizeField(decomposed)
	require.NotNil(t, got)
	assert.Equal(t, "caf\u00e9@x.com", *got)
}
