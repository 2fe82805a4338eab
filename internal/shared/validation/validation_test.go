package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID     int64  `json:"id" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required,notblank"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name      string
		in        sample
		wantField string
	}{
		{"valid", sample{ID: 1, Reason: "ok"}, ""},
		{"missing id", sample{Reason: "ok"}, "id"},
		{"empty reason", sample{ID: 1}, "reason"},
		{"whitespace reason", sample{ID: 1, Reason: "  \t "}, "reason"},
		{"bad email", sample{ID: 1, Reason: "ok", Email: "nope"}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := Struct(tt.in)
			if tt.wantField == "" {
				assert.Nil(t, fe)
				return
			}
			require.NotNil(t, fe)
			assert.Equal(t, tt.wantField, fe.Field)
			assert.NotEmpty(t, fe.Message)
		})
	}
}
