package resourcelist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/jerkytreats/cdnhealth/internal/config"
	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logging.UseTestMode()
	os.Exit(m.Run())
}

type captured struct {
	path string
	auth string
}

func serve(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	seen := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.path = r.URL.Path
		seen.auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, seen
}

func TestListURLs_BareArray(t *testing.T) {
	server, seen := serve(t, http.StatusOK, `[
		{"id": 1, "publicUrl": "https://cdn.example.com/a.png", "storagePath": "images/a.png"},
		{"id": 2, "publicUrl": "https://cdn.example.com/b.png"}
	]`)

	urls, err := NewClient(server.URL, "").ListURLs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"}, urls)
	assert.Equal(t, "/api/resources", seen.path)
	assert.Empty(t, seen.auth)
}

func TestListURLs_Envelope(t *testing.T) {
	server, _ := serve(t, http.StatusOK, `{"data": [{"id": 7, "publicUrl": "https://origin.example.com/x.jpg"}]}`)

	urls, err := NewClient(server.URL+"/", "").ListURLs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://origin.example.com/x.jpg"}, urls)
}

func TestListURLs_CDNBase(t *testing.T) {
	server, _ := serve(t, http.StatusOK, `{"data": [
		{"id": 1, "publicUrl": "https://origin.example.com/images/a.png", "storagePath": "images/a.png"},
		{"id": 2, "publicUrl": "https://origin.example.com/b.png"},
		{"id": 3}
	]}`)

	urls, err := NewClient(server.URL, "https://cdn.example.com/").ListURLs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://cdn.example.com/images/a.png",
		"https://origin.example.com/b.png",
	}, urls)
}

func TestListURLs_Token(t *testing.T) {
	server, seen := serve(t, http.StatusOK, `[]`)

	urls, err := NewClient(server.URL, "", WithToken("secret")).ListURLs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, urls)
	assert.Equal(t, "Bearer secret", seen.auth)
}

func TestListURLs_Failures(t *testing.T) {
	t.Run("non-200", func(t *testing.T) {
		server, _ := serve(t, http.StatusInternalServerError, `{"error": "boom"}`)
		_, err := NewClient(server.URL, "").ListURLs(context.Background())
		assert.ErrorContains(t, err, "status 500")
	})

	t.Run("malformed body", func(t *testing.T) {
		server, _ := serve(t, http.StatusOK, `{"data": "nope"}`)
		_, err := NewClient(server.URL, "").ListURLs(context.Background())
		assert.ErrorContains(t, err, "failed to decode response")
	})

	t.Run("empty body", func(t *testing.T) {
		server, _ := serve(t, http.StatusOK, ``)
		_, err := NewClient(server.URL, "").ListURLs(context.Background())
		assert.Error(t, err)
	})

	t.Run("unreachable", func(t *testing.T) {
		server, _ := serve(t, http.StatusOK, `[]`)
		server.Close()
		_, err := NewClient(server.URL, "").ListURLs(context.Background())
		assert.ErrorContains(t, err, "failed to make request")
	})
}

func TestNewClientFromConfig(t *testing.T) {
	config.ResetForTest()
	t.Cleanup(config.ResetForTest)

	c, err := NewClientFromConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", c.baseURL)

	config.SetForTest(config.APIBaseURLKey, "not a url")
	_, err = NewClientFromConfig()
	assert.Error(t, err)
}
