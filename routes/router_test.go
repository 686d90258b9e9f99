package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/techblog/techblog/auth"
	"github.com/techblog/techblog/config"
	"github.com/techblog/techblog/store"
	"github.com/techblog/techblog/testutil"
	"github.com/techblog/techblog/utils"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testClient struct {
	t *testing.T
	r *gin.Engine
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := config.AppConfig{
		GinMode:            "test",
		RateLimitPerMinute: 600,
		AllowedOrigins:     []string{"*"},
		SessionCookieName:  "techblog_session",
	}
	creds := store.NewCredentialStore(db, nil)
	sessions := auth.NewManager(creds, auth.NewMemorySessionStore(),
		utils.NewTokenSigner("test-secret", time.Hour), 30*time.Minute, nil)

	r := SetupRouter(Deps{
		Config:      cfg,
		Credentials: creds,
		Content:     store.NewContentStore(db, nil),
		Sessions:    sessions,
		Logger:      zap.NewNop(),
	})
	return &testClient{t: t, r: r}
}

func (c *testClient) do(method, path, token string, body interface{}) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)

	var env envelope
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w.Code, env
}

func (c *testClient) signup(username, password string) string {
	c.t.Helper()
	status, env := c.do(http.MethodPost, "/api/v1/auth/signup", "", gin.H{"username": username, "password": password})
	require.Equal(c.t, http.StatusOK, status, env.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(c.t, data.Token)
	return data.Token
}

func (c *testClient) createPost(token, title, content string) uint {
	c.t.Helper()
	status, env := c.do(http.MethodPost, "/api/v1/posts", token, gin.H{"title": title, "content": content})
	require.Equal(c.t, http.StatusOK, status, env.Message)
	var data struct {
		Post struct {
			ID uint `json:"id"`
		} `json:"post"`
	}
	require.NoError(c.t, json.Unmarshal(env.Data, &data))
	return data.Post.ID
}

func TestHealth(t *testing.T) {
	c := newTestClient(t)
	status, env := c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.Code)
}

func TestAuthFlow(t *testing.T) {
	c := newTestClient(t)
	token := c.signup("alice", "pw1")

	t.Run("duplicate signup", func(t *testing.T) {
		status, env := c.do(http.MethodPost, "/api/v1/auth/signup", "", gin.H{"username": "alice", "password": "x"})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, 40901, env.Code)
	})

	t.Run("empty signup", func(t *testing.T) {
		status, env := c.do(http.MethodPost, "/api/v1/auth/signup", "", gin.H{"username": "", "password": "x"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, 40002, env.Code)
	})

	t.Run("login failures look alike", func(t *testing.T) {
		s1, wrong := c.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "nope"})
		s2, unknown := c.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "nobody", "password": "pw1"})
		assert.Equal(t, http.StatusUnauthorized, s1)
		assert.Equal(t, s1, s2)
		assert.Equal(t, wrong, unknown)
	})

	t.Run("login and me", func(t *testing.T) {
		status, env := c.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "pw1"})
		require.Equal(t, http.StatusOK, status)
		var data struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))

		status, env = c.do(http.MethodGet, "/api/v1/auth/me", data.Token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), `"username":"alice"`)
		assert.NotContains(t, string(env.Data), "password")
	})

	t.Run("change password", func(t *testing.T) {
		status, _ := c.do(http.MethodPatch, "/api/v1/auth/password", token, gin.H{"current_password": "pw1", "new_password": "pw2"})
		require.Equal(t, http.StatusOK, status)
		status, _ = c.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "pw2"})
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("logout ends the session", func(t *testing.T) {
		status, _ := c.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
		require.Equal(t, http.StatusOK, status)

		status, env := c.do(http.MethodGet, "/api/v1/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, 40101, env.Code)

		status, _ = c.do(http.MethodPost, "/api/v1/auth/logout", "", nil)
		assert.Equal(t, http.StatusOK, status, "logout without a session is harmless")
	})
}

func (c *testClient) withCookie(method, path, token string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.AddCookie(&http.Cookie{Name: "techblog_session", Value: token})
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	return w
}

func sessionCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "techblog_session" {
			out = append(out, ck)
		}
	}
	return out
}

func TestCookieSession(t *testing.T) {
	c := newTestClient(t)
	token := c.signup("alice", "pw1")

	t.Run("cookie is renewed on use", func(t *testing.T) {
		w := c.withCookie(http.MethodGet, "/api/v1/auth/me", token)
		require.Equal(t, http.StatusOK, w.Code)

		cookies := sessionCookies(w)
		require.Len(t, cookies, 1)
		assert.Equal(t, token, cookies[0].Value)
		assert.Equal(t, int((30 * time.Minute).Seconds()), cookies[0].MaxAge)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("bearer requests leave cookies alone", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		c.r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, sessionCookies(w))
	})

	t.Run("dead cookie is not renewed", func(t *testing.T) {
		w := c.withCookie(http.MethodGet, "/api/v1/auth/me", "garbage")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, sessionCookies(w))
	})

	t.Run("logout clears the cookie last", func(t *testing.T) {
		w := c.withCookie(http.MethodPost, "/api/v1/auth/logout", token)
		require.Equal(t, http.StatusOK, w.Code)
		cookies := sessionCookies(w)
		require.NotEmpty(t, cookies)
		last := cookies[len(cookies)-1]
		assert.Empty(t, last.Value)
		assert.Negative(t, last.MaxAge)

		w = c.withCookie(http.MethodGet, "/api/v1/auth/me", token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAnonymousCannotMutate(t *testing.T) {
	c := newTestClient(t)
	alice := c.signup("alice", "pw1")
	postID := c.createPost(alice, "Hello", "World")

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/posts"},
		{http.MethodPut, fmt.Sprintf("/api/v1/posts/%d", postID)},
		{http.MethodDelete, fmt.Sprintf("/api/v1/posts/%d", postID)},
		{http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/comments", postID)},
		{http.MethodGet, "/api/v1/dashboard"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			status, env := c.do(tc.method, tc.path, "", gin.H{"title": "x", "content": "y"})
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, 40101, env.Code)
		})
	}

	status, _ := c.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", postID), "", nil)
	assert.Equal(t, http.StatusOK, status, "reads stay public")
}

func TestPostOwnershipScenario(t *testing.T) {
	c := newTestClient(t)
	alice := c.signup("alice", "pw1")
	bob := c.signup("bob", "pw2")

	postID := c.createPost(alice, "Hello", "World")
	postPath := fmt.Sprintf("/api/v1/posts/%d", postID)

	status, env := c.do(http.MethodPost, postPath+"/comments", bob, gin.H{"content": "Nice"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = c.do(http.MethodPut, postPath, bob, gin.H{"title": "Hacked", "content": "x"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40404, env.Code)

	status, _ = c.do(http.MethodDelete, postPath, bob, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = c.do(http.MethodGet, postPath, alice, nil)
	require.Equal(t, http.StatusOK, status)
	var view struct {
		Post struct {
			Title    string `json:"title"`
			CanEdit  bool   `json:"can_edit"`
			Comments []struct {
				Content string `json:"content"`
				CanEdit bool   `json:"can_edit"`
			} `json:"comments"`
		} `json:"post"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "Hello", view.Post.Title)
	assert.True(t, view.Post.CanEdit)
	require.Len(t, view.Post.Comments, 1)
	assert.Equal(t, "Nice", view.Post.Comments[0].Content)
	assert.False(t, view.Post.Comments[0].CanEdit, "alice did not write the comment")

	status, _ = c.do(http.MethodDelete, postPath, alice, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = c.do(http.MethodGet, postPath, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40401, env.Code)
}

func TestCommentRoutes(t *testing.T) {
	c := newTestClient(t)
	alice := c.signup("alice", "pw1")
	bob := c.signup("bob", "pw2")
	postID := c.createPost(alice, "Hello", "World")

	status, env := c.do(http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/comments", postID), bob, gin.H{"content": "Nice"})
	require.Equal(t, http.StatusOK, status)
	var created struct {
		Comment struct {
			ID uint `json:"id"`
		} `json:"comment"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	commentPath := fmt.Sprintf("/api/v1/comments/%d", created.Comment.ID)

	status, _ = c.do(http.MethodPut, commentPath, alice, gin.H{"content": "edited"})
	assert.Equal(t, http.StatusNotFound, status)

	status, env = c.do(http.MethodPut, commentPath, bob, gin.H{"content": "Nicer"})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "Nicer")

	status, _ = c.do(http.MethodDelete, commentPath, bob, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = c.do(http.MethodPost, "/api/v1/posts/9999/comments", bob, gin.H{"content": "hi"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40002, env.Code)
}

func TestListingAndDashboard(t *testing.T) {
	c := newTestClient(t)
	alice := c.signup("alice", "pw1")
	bob := c.signup("bob", "pw2")
	c.createPost(alice, "a1", "body")
	c.createPost(bob, "b1", "body")

	status, env := c.do(http.MethodGet, "/api/v1/posts?page=1&page_size=10", "", nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Items []struct {
			Title string `json:"title"`
		} `json:"items"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 2, list.Pagination.Total)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "b1", list.Items[0].Title)

	status, env = c.do(http.MethodGet, "/api/v1/dashboard", alice, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "a1", list.Items[0].Title)
}

func TestBadIDsAndUnknownRoutes(t *testing.T) {
	c := newTestClient(t)
	alice := c.signup("alice", "pw1")

	status, env := c.do(http.MethodGet, "/api/v1/posts/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40400, env.Code)

	status, _ = c.do(http.MethodDelete, "/api/v1/posts/-1", alice, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = c.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40400, env.Code)
}
