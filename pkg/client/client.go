// Package client is a Go client for the chatdocs HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Client calls the chatdocs API over HTTP with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	syncAttempts int
	syncBackoff  time.Duration
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chatdocs: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// User is the API's record of the signed-in account.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	IsUserMessage bool      `json:"isUserMessage"`
	CreatedAt     time.Time `json:"createdAt"`
}

// MessagePage is one page of messages, newest first.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

type File struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	UploadStatus string    `json:"uploadStatus"`
	FailureKind  string    `json:"failureKind,omitempty"`
	PageCount    *int      `json:"pageCount,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// New returns a client for the API at baseURL. A zero timeout means none.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},

		syncAttempts: 3,
		syncBackoff:  500 * time.Millisecond,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = resp.Status
		}
		return nil, &APIError{Status: resp.StatusCode, Message: text}
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// SyncUser creates the caller's account on first use and returns it. Network
// errors, 429 and 5xx responses are retried a few times with doubling
// backoff; any other error is returned at once.
func (c *Client) SyncUser(ctx context.Context) (*User, error) {
	backoff := c.syncBackoff
	var err error
	for attempt := 1; ; attempt++ {
		var user *User
		user, err = c.syncUser(ctx)
		if err == nil {
			return user, nil
		}
		if attempt >= c.syncAttempts || !temporary(err) || ctx.Err() != nil {
			break
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Join(err, ctx.Err())
		case <-t.C:
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("syncing account: %w", err)
}

func (c *Client) syncUser(ctx context.Context) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/auth/callback", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding account: %w", err)
	}
	return &user, nil
}

func temporary(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// ListFiles returns the caller's files.
func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	var files []File
	if err := c.getJSON(ctx, "/v1/files", &files); err != nil {
		return nil, err
	}
	return files, nil
}

// ListMessages returns a page of a file's messages. An empty cursor starts
// from the newest message.
func (c *Client) ListMessages(ctx context.Context, fileID string, limit int, cursor string) (*MessagePage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/v1/files/" + url.PathEscape(fileID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page MessagePage
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SendMessage asks a question about fileID and streams the answer. onText
// receives the whole answer so far after every read; it never sees a split
// UTF-8 sequence. It returns the complete answer.
func (c *Client) SendMessage(ctx context.Context, fileID, text string, onText func(cumulative string)) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/v1/message", map[string]string{
		"fileId":  fileID,
		"message": text,
	})
	if err != nil {
		return "", err
	}
	resp, err := c.send(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var answer []byte
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			answer = append(answer, buf[:n]...)
			if onText != nil {
				onText(string(completeRunes(answer)))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return string(answer), fmt.Errorf("reading answer stream: %w", err)
		}
	}
	return string(answer), nil
}

// completeRunes drops a trailing partial UTF-8 sequence.
func completeRunes(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}
