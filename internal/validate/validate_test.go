package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required,max=10"`
	Email string `json:"email" validate:"omitempty,email"`
	Count int    `json:"count" validate:"gte=0"`
}

func TestFirstPasses(t *testing.T) {
	_, _, failed := First(sample{Name: "ok", Email: "a@example.test"})
	require.False(t, failed)
}

func TestFirstReportsJSONFieldName(t *testing.T) {
	field, message, failed := First(sample{})
	require.True(t, failed)
	require.Equal(t, "name", field)
	require.Equal(t, "required", message)
}

func TestFirstEmail(t *testing.T) {
	field, message, failed := First(sample{Name: "ok", Email: "not-an-email"})
	require.True(t, failed)
	require.Equal(t, "email", field)
	require.Equal(t, "invalid email address", message)
}

func TestFirstRange(t *testing.T) {
	field, _, failed := First(sample{Name: "ok", Count: -1})
	require.True(t, failed)
	require.Equal(t, "count", field)
}

func TestFirstMax(t *testing.T) {
	field, message, failed := First(sample{Name: "much too long for the tag"})
	require.True(t, failed)
	require.Equal(t, "name", field)
	require.Equal(t, "must be at most 10 characters", message)
}
