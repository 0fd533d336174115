package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shubham-manmohan/voicenote/internal/api"
	"github.com/shubham-manmohan/voicenote/internal/auth"
	"github.com/shubham-manmohan/voicenote/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := storage.NewMemoryStorage()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	server := api.NewServer(store, tokens, zap.NewNop())

	ts := httptest.NewServer(server.Router("*"))
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func doJSONList(t *testing.T, ts *httptest.Server, path, token string) (*http.Response, []map[string]any) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func register(t *testing.T, ts *httptest.Server, username, email, mobile, password string) map[string]any {
	t.Helper()
	resp, body := doJSON(t, ts, http.MethodPost, "/register", "", map[string]any{
		"username": username,
		"email":    email,
		"mobile":   mobile,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body
}

func login(t *testing.T, ts *httptest.Server, email, password string) string {
	t.Helper()
	resp, body := doJSON(t, ts, http.MethodPost, "/login", "", map[string]any{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "bearer", body["token_type"])
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	body := register(t, ts, "u1", "u1@x.com", "111", "pw")
	assert.Equal(t, "u1", body["username"])
	assert.Equal(t, "u1@x.com", body["email"])
	assert.Equal(t, "111", body["mobile"])
	assert.NotZero(t, body["id"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "hashed_password")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ts := newTestServer(t)

	register(t, ts, "u1", "u1@x.com", "111", "pw")

	resp, body := doJSON(t, ts, http.MethodPost, "/register", "", map[string]any{
		"username": "someone-else",
		"email":    "u1@x.com",
		"mobile":   "222",
		"password": "other",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Email already registered", body["error"])
}

func TestRegister_MissingFields(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodPost, "/register", "", map[string]any{
		"username": "u1",
		"password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "email")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "u1", "u1@x.com", "111", "pw")

	resp, _ := doJSON(t, ts, http.MethodPost, "/login", "", map[string]any{
		"email": "u1@x.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPost, "/login", "", map[string]any{
		"email": "nobody@x.com", "password": "pw",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProfile(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "u1", "u1@x.com", "111", "pw")
	token := login(t, ts, "u1@x.com", "pw")

	resp, body := doJSON(t, ts, http.MethodGet, "/profile", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u1", body["username"])
	assert.Equal(t, "u1@x.com", body["email"])
}

func TestProfile_RequiresToken(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodGet, "/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, "/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNoteLifecycle(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "u1", "u1@x.com", "111", "pw")
	token := login(t, ts, "u1@x.com", "pw")

	// Create with an initial bubble.
	resp, note := doJSON(t, ts, http.MethodPost, "/api/notes", token, map[string]any{
		"title":     "A",
		"note_type": "t",
		"bubbles":   []map[string]any{{"note_bubble_type": "text", "content": "hi"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "A", note["title"])
	assert.NotZero(t, note["id"])

	bubbles, ok := note["bubbles"].([]any)
	require.True(t, ok)
	require.Len(t, bubbles, 1)
	bubble := bubbles[0].(map[string]any)
	assert.Equal(t, "hi", bubble["content"])
	assert.Equal(t, "USER", bubble["owner"])
	assert.NotZero(t, bubble["id"])

	noteID := int64(note["id"].(float64))

	// Read it back.
	resp, got := doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/notes/%d", noteID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "A", got["title"])

	// Partial update: only preview changes.
	resp, updated := doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/notes/%d", noteID), token, map[string]any{
		"preview": "short",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "short", updated["preview"])
	assert.Equal(t, "A", updated["title"])

	// Delete, then confirm it is gone.
	resp, deleted := doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/notes/%d", noteID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Note deleted", deleted["message"])

	resp, _ = doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/notes/%d", noteID), token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNoteAccess_CrossUser(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "u1", "u1@x.com", "111", "pw")
	register(t, ts, "u2", "u2@x.com", "222", "pw")
	tokenA := login(t, ts, "u1@x.com", "pw")
	tokenB := login(t, ts, "u2@x.com", "pw")

	_, note := doJSON(t, ts, http.MethodPost, "/api/notes", tokenA, map[string]any{
		"title": "private", "note_type": "t",
	})
	noteID := int64(note["id"].(float64))

	// B sees A's note exactly as if it did not exist.
	resp, _ := doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/notes/%d", noteID), tokenB, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/notes/%d", noteID), tokenB, map[string]any{"title": "stolen"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/notes/%d", noteID), tokenB, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// A is unaffected.
	resp, got := doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/notes/%d", noteID), tokenA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "private", got["title"])
}

func TestListNotes(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "u1", "u1@x.com", "111", "pw")
	token := login(t, ts, "u1@x.com", "pw")

	for i := 0; i < 3; i++ {
		resp, _ := doJSON(t, ts, http.MethodPost, "/api/notes", token, map[string]any{
			"title": fmt.Sprintf("n%d", i), "note_type": "t",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, notes := doJSONList(t, ts, "/api/notes", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, notes, 3)
}

func TestPaginatedNotes(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "u1", "u1@x.com", "111", "pw")
	token := login(t, ts, "u1@x.com", "pw")

	const total = 7
	for i := 0; i < total; i++ {
		resp, _ := doJSON(t, ts, http.MethodPost, "/api/notes", token, map[string]any{
			"title": fmt.Sprintf("n%d", i), "note_type": "t",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	seen := 0
	page := 1
	for {
		resp, body := doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/notes/paginated?page=%d&limit=3", page), token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, float64(page), body["page"])
		assert.Equal(t, float64(total), body["total"])

		notes := body["notes"].([]any)
		seen += len(notes)

		hasMore := body["hasMore"].(bool)
		assert.Equal(t, page*3 < total, hasMore)
		if !hasMore {
			break
		}
		page++
	}
	assert.Equal(t, total, seen)
}

func TestPaginatedNotes_Validation(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "u1", "u1@x.com", "111", "pw")
	token := login(t, ts, "u1@x.com", "pw")

	for _, path := range []string{
		"/api/notes/paginated?page=0",
		"/api/notes/paginated?page=abc",
		"/api/notes/paginated?limit=0",
		"/api/notes/paginated?limit=101",
	} {
		resp, _ := doJSON(t, ts, http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}

	// Defaults apply when the parameters are absent.
	resp, body := doJSON(t, ts, http.MethodGet, "/api/notes/paginated", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["page"])
}

func TestBubbleLifecycle(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "u1", "u1@x.com", "111", "pw")
	token := login(t, ts, "u1@x.com", "pw")

	_, note := doJSON(t, ts, http.MethodPost, "/api/notes", token, map[string]any{
		"title": "A", "note_type": "t",
	})
	noteID := int64(note["id"].(float64))

	// Client timestamp is ignored; the server sets its own.
	resp, bubble := doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/notes/%d/bubbles", noteID), token, map[string]any{
		"note_bubble_type": "audio",
		"audio_path":       "/rec/1.wav",
		"owner":            "SYSTEM",
		"timestamp":        "1999-01-01T00:00:00Z",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio", bubble["note_bubble_type"])
	assert.Equal(t, "SYSTEM", bubble["owner"])
	assert.Equal(t, false, bubble["is_edited"])
	stamp, err := time.Parse(time.RFC3339, bubble["timestamp"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), stamp, time.Minute)

	bubbleID := int64(bubble["id"].(float64))

	// Update without is_edited marks the bubble edited.
	resp, updated := doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/bubbles/%d", bubbleID), token, map[string]any{
		"content": "transcribed words",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "transcribed words", updated["content"])
	assert.Equal(t, true, updated["is_edited"])

	resp, deleted := doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/bubbles/%d", bubbleID), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "NoteBubble deleted", deleted["message"])

	resp, _ = doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/bubbles/%d", bubbleID), token, map[string]any{"content": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddBubble_MissingNote(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "u1", "u1@x.com", "111", "pw")
	token := login(t, ts, "u1@x.com", "pw")

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/notes/424242/bubbles", token, map[string]any{
		"note_bubble_type": "text", "content": "hi",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBubbles_CrossUser(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "u1", "u1@x.com", "111", "pw")
	register(t, ts, "u2", "u2@x.com", "222", "pw")
	tokenA := login(t, ts, "u1@x.com", "pw")
	tokenB := login(t, ts, "u2@x.com", "pw")

	_, note := doJSON(t, ts, http.MethodPost, "/api/notes", tokenA, map[string]any{
		"title":     "A",
		"note_type": "t",
		"bubbles":   []map[string]any{{"note_bubble_type": "text", "content": "hi"}},
	})
	noteID := int64(note["id"].(float64))
	bubbleID := int64(note["bubbles"].([]any)[0].(map[string]any)["id"].(float64))

	resp, _ := doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/notes/%d/bubbles", noteID), tokenB, map[string]any{
		"note_bubble_type": "text",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodPut, fmt.Sprintf("/api/bubbles/%d", bubbleID), tokenB, map[string]any{"content": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/bubbles/%d", bubbleID), tokenB, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/notes"},
		{http.MethodGet, "/api/notes"},
		{http.MethodGet, "/api/notes/paginated"},
		{http.MethodGet, "/api/notes/1"},
		{http.MethodPut, "/api/notes/1"},
		{http.MethodDelete, "/api/notes/1"},
		{http.MethodPost, "/api/notes/1/bubbles"},
		{http.MethodPut, "/api/bubbles/1"},
		{http.MethodDelete, "/api/bubbles/1"},
	} {
		resp, _ := doJSON(t, ts, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", route.method, route.path)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
