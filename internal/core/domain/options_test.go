package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionsInt(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  int
		ok    bool
	}{
		{"int", 16, 16, true},
		{"int64", int64(24), 24, true},
		{"integral float", float64(32), 32, true},
		{"numeric string", "120", 120, true},
		{"fractional float", 16.7, 0, false},
		{"non-numeric string", "fast", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Options{"n": tt.value}.Int("n")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := Options(nil).Int("n")
	assert.False(t, ok)
}
