package community

import (
	"agrichat-web/internal/config"
	"agrichat-web/internal/model"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.CommunityAPIConfig{
		BaseURL:        srv.URL,
		CreatePath:     "/community/post/create/",
		TimeoutSeconds: 5,
		CSRFHeader:     "X-CSRFToken",
	})
}

func TestCreatePostWithoutImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/community/post/create/", r.URL.Path)
		assert.Equal(t, "tok-123", r.Header.Get("X-CSRFToken"))
		if ck, err := r.Cookie("sessionid"); assert.NoError(t, err) {
			assert.Equal(t, "abc", ck.Value)
		}

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, map[string][]string{
			"title":     {"T"},
			"content":   {"C"},
			"post_type": {"sell"},
		}, map[string][]string(r.MultipartForm.Value))
		assert.Empty(t, r.MultipartForm.File)
		_, _ = w.Write([]byte(`{"id": 42}`))
	})

	created, err := c.CreatePost(context.Background(), CreatePostRequest{
		Title:    "T",
		Content:  "C",
		PostType: model.PostTypeSell,
	}, Credentials{
		CSRFToken: "tok-123",
		Cookies:   []*http.Cookie{{Name: "sessionid", Value: "abc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", created.ID)
}

func TestCreatePostWithImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "jpeg-bytes", string(data))
		assert.Equal(t, "farm.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"id":"p-7"}`))
	})

	created, err := c.CreatePost(context.Background(), CreatePostRequest{
		Title:    "T",
		Content:  "C",
		PostType: model.PostTypeBuy,
		Image:    &Image{FileName: "farm.jpg", ContentType: "image/jpeg", Reader: strings.NewReader("jpeg-bytes")},
	}, Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "p-7", created.ID)
}

func TestCreatePostOmitsEmptyCSRFHeader(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["X-Csrftoken"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{"id":1}`))
	})
	_, err := c.CreatePost(context.Background(), CreatePostRequest{Title: "T", Content: "C", PostType: model.PostTypeBuy}, Credentials{})
	require.NoError(t, err)
}

func TestCreatePostStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"CSRF Failed"}`, http.StatusForbidden)
	})
	_, err := c.CreatePost(context.Background(), CreatePostRequest{Title: "T", Content: "C", PostType: model.PostTypeBuy}, Credentials{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestCreatePostMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	_, err := c.CreatePost(context.Background(), CreatePostRequest{Title: "T", Content: "C", PostType: model.PostTypeBuy}, Credentials{})
	assert.ErrorIs(t, err, ErrMissingPostID)
}

func TestDecodeCreatedID(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"id":42}`, "42"},
		{`{"id": 9007199254740993}`, "9007199254740993"},
		{`{"id":"abc"}`, "abc"},
		{`{"id":"a\"bé"}`, `a"bé`},
	}
	for _, tc := range cases {
		created, err := decodeCreated([]byte(tc.body))
		require.NoError(t, err, tc.body)
		assert.Equal(t, tc.want, created.ID, tc.body)
	}

	for _, body := range []string{`{"id":null}`, `{"id":""}`, `{"id":{"pk":1}}`, `{"id":[1]}`} {
		_, err := decodeCreated([]byte(body))
		assert.ErrorIs(t, err, ErrMissingPostID, body)
	}
}
