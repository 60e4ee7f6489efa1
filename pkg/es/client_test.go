package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeQuery(t *testing.T, query string) string {
	t.Helper()
	b, err := json.Marshal(buildSearchQuery(query, 10))
	require.NoError(t, err)
	return string(b)
}

func TestBuildSearchQuery_SingleTermMatchesSubstrings(t *testing.T) {
	body := encodeQuery(t, "Appoint")

	assert.Contains(t, body, `"wildcard":{"visitor_text":{"case_insensitive":true,"value":"*appoint*"}}`)
	assert.Contains(t, body, `"wildcard":{"assistant_text":{"case_insensitive":true,"value":"*appoint*"}}`)
	assert.Contains(t, body, `"type":"phrase_prefix"`)
	assert.Contains(t, body, `"minimum_should_match":1`)
	assert.Contains(t, body, `"sort":[{"created_at":{"order":"desc"}}]`)
	assert.Contains(t, body, `"size":10`)
}

func TestBuildSearchQuery_EscapesWildcards(t *testing.T) {
	body := encodeQuery(t, "fee*?")
	assert.Contains(t, body, `"value":"*fee\\*\\?*"`)
}

func TestBuildSearchQuery_PhraseSkipsWildcard(t *testing.T) {
	body := encodeQuery(t, "consultation fee")
	assert.NotContains(t, body, "wildcard")
	assert.Contains(t, body, `"query":"consultation fee"`)
}

func TestChatLogIndexSearch(t *testing.T) {
	var captured string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		b, _ := io.ReadAll(r.Body)
		captured = string(b)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/medidesk_chats/_search"))
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"chat_id":"c1","visitor_text":"Book an appointment","assistant_text":"Sure","hospital_id":"BT hospital","created_at":"2026-10-01T10:00:00Z"}}]}}`))
	}))
	defer srv.Close()

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	chats, err := NewChatLogIndex(client, "medidesk_chats").Search(context.Background(), "appoint", 5)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "c1", chats[0].ID)
	assert.Equal(t, "Book an appointment", chats[0].VisitorText)
	assert.Contains(t, captured, "*appoint*")
}

func TestChatLogIndexSearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}, MaxRetries: 0, DisableRetry: true})
	require.NoError(t, err)

	_, err = NewChatLogIndex(client, "medidesk_chats").Search(context.Background(), "fees", 5)
	assert.Error(t, err)
}
