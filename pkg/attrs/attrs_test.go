package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	args := []any{"entity", "permit", "count", 3, "detail", "issued"}

	assert.Equal(t, "issued", String(args, "detail"))
	assert.Equal(t, "permit", String(args, "entity"))

	t.Run("missing key", func(t *testing.T) {
		assert.Equal(t, "", String(args, "actor"))
	})

	t.Run("non-string value", func(t *testing.T) {
		assert.Equal(t, "", String(args, "count"))
	})

	t.Run("dangling key", func(t *testing.T) {
		assert.Equal(t, "", String([]any{"detail"}, "detail"))
	})

	t.Run("non-string key is skipped", func(t *testing.T) {
		assert.Equal(t, "ok", String([]any{1, 2, "detail", "ok"}, "detail"))
	})
}
