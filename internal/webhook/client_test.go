package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulsedesk/pulsedesk/internal/ident"
)

func newTestClient(chatURL, researchURL, reportURL string) *Client {
	return NewClient(Config{
		ChatURL:     chatURL,
		ResearchURL: researchURL,
		ReportURL:   reportURL,
	}, &ident.Sequence{}, zap.NewNop())
}

func TestSendPlainSuccess(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"message":   r.URL.Query().Get("message"),
			"sessionId": r.URL.Query().Get("sessionId"),
			"type":      r.URL.Query().Get("type"),
		}
		w.Write([]byte(`{"reply":"hi there"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	result := c.SendPlain(context.Background(), "hello", "sess-42")

	require.True(t, result.Success)
	assert.JSONEq(t, `{"reply":"hi there"}`, string(result.Data))
	assert.Equal(t, "hello", gotQuery["message"])
	assert.Equal(t, "sess-42", gotQuery["sessionId"])
	assert.Equal(t, "chat", gotQuery["type"])
}

func TestSendModeSelectsEndpoint(t *testing.T) {
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.URL.Query().Get("type")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL, srv.URL)

	c.SendResearch(context.Background(), "dig into this", "s1")
	assert.Equal(t, "research", gotType)

	c.SendReport(context.Background(), "summarize this", "s1")
	assert.Equal(t, "report", gotType)
}

func TestSendGeneratesSessionIDWhenAbsent(t *testing.T) {
	var gotSessionID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSessionID = r.URL.Query().Get("sessionId")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "", "")
	result := c.SendPlain(context.Background(), "hello", "")

	require.True(t, result.Success)
	assert.NotEmpty(t, gotSessionID, "every call must carry a session identifier")
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1", "", "")

	result := c.SendPlain(context.Background(), "   ", "s1")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestSendFailuresAreNormalized(t *testing.T) {
	t.Run("network error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // refuse connections

		c := newTestClient(srv.URL, "", "")
		result := c.SendPlain(context.Background(), "hello", "s1")
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
	})

	t.Run("non-success status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := newTestClient(srv.URL, "", "")
		result := c.SendPlain(context.Background(), "hello", "s1")
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "500")
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>not json</html>"))
		}))
		defer srv.Close()

		c := newTestClient(srv.URL, "", "")
		result := c.SendPlain(context.Background(), "hello", "s1")
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "malformed")
	})

	t.Run("missing endpoint", func(t *testing.T) {
		c := newTestClient("", "", "")
		result := c.SendResearch(context.Background(), "hello", "s1")
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "research")
	})
}
