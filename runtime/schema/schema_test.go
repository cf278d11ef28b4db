package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestSchema(t *testing.T) {
	_, err := NewRequestSchema()
	require.NoError(t, err)
}

func TestNewResponseSchema(t *testing.T) {
	_, err := NewResponseSchema()
	require.NoError(t, err)
}

func TestRequestSchema_Validate(t *testing.T) {
	s, err := NewRequestSchema()
	require.NoError(t, err)

	tests := []struct {
		name  string
		data  string
		valid bool
	}{
		{"command", `{"command":"tap"}`, true},
		{"missing command", `{}`, false},
		{"empty command", `{"command":""}`, false},
		{"non-string command", `{"command":1}`, false},
		{"unknown field", `{"command":"tap","extra":1}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Validate([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid())
		})
	}
}

func TestRequestSchema_Validate_InvalidJSON(t *testing.T) {
	s, err := NewRequestSchema()
	require.NoError(t, err)

	_, err = s.Validate([]byte(`{"command":`))
	assert.Error(t, err)
}

func TestResponseSchema_Validate(t *testing.T) {
	s, err := NewResponseSchema()
	require.NoError(t, err)

	res, err := s.Validate([]byte(`{"command":"tap","result":false}`))
	require.NoError(t, err)
	assert.True(t, res.Valid())

	res, err = s.Validate([]byte(`{"command":"tap"}`))
	require.NoError(t, err)
	assert.False(t, res.Valid())
}
