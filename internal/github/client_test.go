package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bookshelf/internal/catalogstore"
	"github.com/mesh-intelligence/bookshelf/internal/contentstest"
	"github.com/mesh-intelligence/bookshelf/internal/engine"
	"github.com/mesh-intelligence/bookshelf/pkg/types"
)

const (
	testOwner = "org"
	testRepo  = "books"
	testToken = "secret-token"
)

func newFake(t *testing.T) (*contentstest.Server, *Client) {
	t.Helper()
	fake := contentstest.New(testOwner, testRepo, testToken)
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return fake, NewClient(testOwner, testRepo, testToken, WithBaseURL(srv.URL), WithRateLimit(0))
}

func TestGetAbsent(t *testing.T) {
	_, c := newFake(t)
	_, err := c.Get(context.Background(), "catalog.yml")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestPutCreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	fake, c := newFake(t)

	r1, err := c.Put(ctx, "catalog.yml", []byte("books:\n"), "", "Add book: Guide")
	require.NoError(t, err)
	require.NotEmpty(t, r1)

	doc, err := c.Get(ctx, "catalog.yml")
	require.NoError(t, err)
	assert.Equal(t, "books:\n", string(doc.Content))
	assert.Equal(t, r1, doc.Revision)

	long := make([]byte, 500)
	for i := range long {
		long[i] = byte('a' + i%26)
	}
	r2, err := c.Put(ctx, "catalog.yml", long, r1, "update")
	require.NoError(t, err)
	assert.NotEqual(t, r1, r2)

	doc, err = c.Get(ctx, "catalog.yml")
	require.NoError(t, err)
	assert.Equal(t, long, doc.Content, "wrapped base64 must decode")

	history := fake.Store.History()
	require.Len(t, history, 2)
	assert.Equal(t, "Add book: Guide", history[0].Message)
}

func TestPutConflict(t *testing.T) {
	ctx := context.Background()
	_, c := newFake(t)

	r1, err := c.Put(ctx, "catalog.yml", []byte("v1"), "", "create")
	require.NoError(t, err)
	_, err = c.Put(ctx, "catalog.yml", []byte("v2"), r1, "advance")
	require.NoError(t, err)

	t.Run("stale sha", func(t *testing.T) {
		_, err := c.Put(ctx, "catalog.yml", []byte("v3"), r1, "stale")
		var ce *types.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, r1, ce.Revision)
		assert.Contains(t, ce.Message, "does not match")
	})

	t.Run("missing sha on existing file", func(t *testing.T) {
		_, err := c.Put(ctx, "catalog.yml", []byte("v3"), "", "blind create")
		assert.ErrorIs(t, err, types.ErrConflict)
	})
}

func TestBadCredentials(t *testing.T) {
	fake := contentstest.New(testOwner, testRepo, testToken)
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := NewClient(testOwner, testRepo, "wrong", WithBaseURL(srv.URL), WithRateLimit(0))

	_, err := c.Get(context.Background(), "catalog.yml")
	var se *types.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Equal(t, "Bad credentials", se.Message)

	_, err = c.Put(context.Background(), "catalog.yml", []byte("x"), "", "m")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
}

func TestServerErrors(t *testing.T) {
	ctx := context.Background()
	fake, c := newFake(t)

	fake.Store.FailNextPut(errors.New("disk full"))
	_, err := c.Put(ctx, "catalog.yml", []byte("x"), "", "m")
	var se *types.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, "disk full", se.Message)
	assert.NotErrorIs(t, err, types.ErrConflict)

	fake.Store.FailGet(errors.New("unavailable"))
	_, err = c.Get(ctx, "catalog.yml")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(testOwner, testRepo, testToken, WithBaseURL(url), WithRateLimit(0))
	_, err := c.Get(context.Background(), "catalog.yml")
	var se *types.StoreError
	require.ErrorAs(t, err, &se)
	assert.Zero(t, se.Status)
	assert.Error(t, se.Err)
}

func TestRequestShape(t *testing.T) {
	var gotGet, gotPut *http.Request
	var putBody putRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gotGet = r.Clone(context.Background())
			_ = json.NewEncoder(w).Encode(map[string]string{"content": "books:\n", "sha": "abc"})
		case http.MethodPut:
			gotPut = r.Clone(context.Background())
			_ = json.NewDecoder(r.Body).Decode(&putBody)
			_ = json.NewEncoder(w).Encode(map[string]any{"content": map[string]string{"sha": "def"}})
		}
	}))
	defer srv.Close()

	c := NewClient("my org", testRepo, testToken, WithBaseURL(srv.URL+"/"), WithBranch("gh-pages"), WithRateLimit(0))

	doc, err := c.Get(context.Background(), "catalog.yml")
	require.NoError(t, err)
	assert.Equal(t, "books:\n", string(doc.Content), "plain content passes through")
	assert.Equal(t, "abc", doc.Revision)

	rev, err := c.Put(context.Background(), "catalog.yml", []byte("books:\n"), "abc", "Remove book: X")
	require.NoError(t, err)
	assert.Equal(t, "def", rev)

	require.NotNil(t, gotGet)
	assert.Equal(t, "/repos/my%20org/books/contents/catalog.yml", gotGet.URL.EscapedPath())
	assert.Equal(t, "gh-pages", gotGet.URL.Query().Get("ref"))
	assert.Equal(t, "Bearer "+testToken, gotGet.Header.Get("Authorization"))
	assert.Equal(t, acceptHeader, gotGet.Header.Get("Accept"))

	require.NotNil(t, gotPut)
	assert.Equal(t, "application/json", gotPut.Header.Get("Content-Type"))
	assert.Equal(t, "abc", putBody.SHA)
	assert.Equal(t, "gh-pages", putBody.Branch)
	assert.Equal(t, "Remove book: X", putBody.Message)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("books:\n")), putBody.Content)
}

func TestMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		call func(c *Client) error
	}{
		{"get not json", "<html>", func(c *Client) error {
			_, err := c.Get(context.Background(), "catalog.yml")
			return err
		}},
		{"get bad base64", `{"encoding":"base64","content":"!!!","sha":"x"}`, func(c *Client) error {
			_, err := c.Get(context.Background(), "catalog.yml")
			return err
		}},
		{"get not inlined", `{"type":"file","encoding":"none","content":"","sha":"big"}`, func(c *Client) error {
			_, err := c.Get(context.Background(), "catalog.yml")
			return err
		}},
		{"get directory", `[{"type":"file"}]`, func(c *Client) error {
			_, err := c.Get(context.Background(), "catalog.yml")
			return err
		}},
		{"put without sha", `{"content":{}}`, func(c *Client) error {
			_, err := c.Put(context.Background(), "catalog.yml", nil, "", "m")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(testOwner, testRepo, testToken, WithBaseURL(srv.URL), WithRateLimit(0))
			assert.ErrorIs(t, tt.call(c), types.ErrStore)
		})
	}
}

func TestRateLimitHonorsContext(t *testing.T) {
	_, c := newFake(t)
	c.limiter.SetBurst(1)
	c.limiter.SetLimit(0.001)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "catalog.yml")
	assert.ErrorIs(t, err, types.ErrStore)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetNotInlinedKeepsCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"file","encoding":"none","content":"","sha":"big"}`))
	}))
	defer srv.Close()

	c := NewClient(testOwner, testRepo, testToken, WithBaseURL(srv.URL), WithRateLimit(0))
	doc, err := c.Get(context.Background(), "catalog.yml")
	require.ErrorIs(t, err, errNotInlined)
	assert.Empty(t, doc.Revision, "a revision must never be returned without its content")

	e := engine.New(catalogstore.New(c))
	require.ErrorIs(t, e.Initialize(context.Background()), types.ErrStore)
	_, err = e.AddBook(context.Background(), types.Book{Name: "X", Slug: "x", Repo: "o/x"})
	assert.ErrorIs(t, err, engine.ErrNotInitialized)
}
