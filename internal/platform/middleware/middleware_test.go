package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentTypeJSON(t *testing.T) {
	var reached bool
	handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("rejection carries the JSON error envelope", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodPost, "/letters", strings.NewReader("letter=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.False(t, reached)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "bad_request", body.Error)
		assert.Contains(t, body.ErrorDescription, "application/json")
	})

	t.Run("json requests pass through", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodPost, "/letters", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.True(t, reached)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("reads are not gated", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodGet, "/letters", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.True(t, reached)
	})
}
