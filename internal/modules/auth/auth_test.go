package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newLoginRouter(t *testing.T, password string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash := ""
	if password != "" {
		raw, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		hash = string(raw)
	}

	r := gin.New()
	NewHandler(hash).RegisterRoutes(r.Group("/api"))
	return r
}

func login(r *gin.Engine, password string) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(gin.H{"password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	t.Run("correct password yields a token", func(t *testing.T) {
		r := newLoginRouter(t, "hunter2")
		w := login(r, "hunter2")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Token     string `json:"token"`
			ExpiresIn int    `json:"expires_in"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.NotEmpty(t, body.Token)
		assert.Equal(t, int(tokenTTL.Seconds()), body.ExpiresIn)
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		r := newLoginRouter(t, "hunter2")
		assert.Equal(t, http.StatusUnauthorized, login(r, "hunter3").Code)
	})

	t.Run("empty password is a bad request", func(t *testing.T) {
		r := newLoginRouter(t, "hunter2")
		assert.Equal(t, http.StatusBadRequest, login(r, "").Code)
	})

	t.Run("login disabled without a configured hash", func(t *testing.T) {
		r := newLoginRouter(t, "")
		assert.Equal(t, http.StatusUnauthorized, login(r, "anything").Code)
	})
}
