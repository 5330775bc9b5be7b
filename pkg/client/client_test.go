package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSendMessageStreamsCumulativeText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/message", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "file-1", body["fileId"])
		require.Equal(t, "What is it about?", body["message"])

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, chunk := range []string{"It is ", "about ", "cafés."} {
			_, _ = io.WriteString(w, chunk)
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	var seen []string
	answer, err := New(srv.URL, "tok", time.Second).SendMessage(context.Background(), "file-1", "What is it about?", func(s string) {
		seen = append(seen, s)
	})
	require.NoError(t, err)
	require.Equal(t, "It is about cafés.", answer)
	require.NotEmpty(t, seen)
	require.Equal(t, answer, seen[len(seen)-1])
	for i := 1; i < len(seen); i++ {
		require.GreaterOrEqual(t, len(seen[i]), len(seen[i-1]))
	}
}

func TestSendMessageErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "file not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).SendMessage(context.Background(), "file-1", "hi", nil)
	require.Error(t, err)
	require.True(t, IsStatus(err, http.StatusNotFound))
	require.ErrorContains(t, err, "file not found")
}

func TestListMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/files/file-1/messages", r.URL.Path)
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		require.Equal(t, "m9", r.URL.Query().Get("cursor"))
		_, _ = io.WriteString(w, `{"messages":[{"id":"m9","text":"hi","isUserMessage":true,"createdAt":"2024-05-01T12:00:00Z"}],"nextCursor":"m8"}`)
	}))
	defer srv.Close()

	page, err := New(srv.URL+"/", "tok", time.Second).ListMessages(context.Background(), "file-1", 5, "m9")
	require.NoError(t, err)
	require.Equal(t, "m8", page.NextCursor)
	require.Len(t, page.Messages, 1)
	require.True(t, page.Messages[0].IsUserMessage)
}

func TestCompleteRunes(t *testing.T) {
	full := []byte("café")
	require.Equal(t, "caf", string(completeRunes(full[:len(full)-1])))
	require.Equal(t, "café", string(completeRunes(full)))
	require.Empty(t, completeRunes(nil))
}

func TestSyncUserRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/auth/callback", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		n := calls.Add(1)
		if n < 3 {
			http.Error(w, "failed to sync user", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "user-1", "email": "a@example.com"})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", time.Second)
	c.syncBackoff = time.Millisecond
	user, err := c.SyncUser(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, calls.Load())
	require.Equal(t, "user-1", user.ID)
	require.Equal(t, "a@example.com", user.Email)
}

func TestSyncUserGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", time.Second)
	c.syncBackoff = time.Millisecond
	_, err := c.SyncUser(context.Background())
	require.True(t, IsStatus(err, http.StatusServiceUnavailable))
	require.EqualValues(t, 3, calls.Load())
}

func TestSyncUserDoesNotRetryUnauthorized(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "Unauthorized: token has no email claim", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", time.Second)
	c.syncBackoff = time.Millisecond
	_, err := c.SyncUser(context.Background())
	require.True(t, IsStatus(err, http.StatusUnauthorized))
	require.EqualValues(t, 1, calls.Load())
}
