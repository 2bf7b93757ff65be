package ansclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ans-archiver/internal/ratelimit"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(Config{
		BaseURL:      baseURL,
		SessionToken: "secret-token",
		Timeout:      5 * time.Second,
	}, ratelimit.New(ratelimit.Config{}), zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestGetTextCarriesSessionCookie(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	body, err := client.GetText(context.Background(), srv.URL+"/courses")
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", body)
	require.Equal(t, "__Host-ans_session=secret-token", gotCookie)
}

func TestGetTextRepeatedURL(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte("page"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	for i := 0; i < 3; i++ {
		_, err := client.GetText(context.Background(), srv.URL+"/same")
		require.NoError(t, err)
	}
	require.Equal(t, 3, hits, "revisits must not be deduplicated")
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"point"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	var out struct {
		Content []struct {
			Type string `json:"type"`
		} `json:"content"`
	}
	require.NoError(t, client.GetJSON(context.Background(), srv.URL+"/annotations", &out))
	require.Len(t, out.Content, 1)
	require.Equal(t, "point", out.Content[0].Type)
}

func TestPostForm(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		gotToken = r.PostFormValue("authenticity_token")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.PostForm(context.Background(), srv.URL+"/switch", map[string]string{
		"authenticity_token": "csrf123",
	})
	require.NoError(t, err)
	require.Equal(t, "csrf123", gotToken)
}

func TestGetTextStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.GetText(context.Background(), srv.URL+"/secret")
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}

func TestResolve(t *testing.T) {
	client := newTestClient(t, "https://ans.app/")
	require.Equal(t, "https://ans.app/results/1", client.Resolve("/results/1"))
	require.Equal(t, "https://example.org/x", client.Resolve("https://example.org/x"))
}

func TestDoHonorsCanceledContext(t *testing.T) {
	client := newTestClient(t, "https://ans.app/")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetText(ctx, "https://ans.app/courses")
	require.Error(t, err)
}
