package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	codes []int
}

func (o *recordingObserver) ObserveBackendRequest(method string, code int, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.codes = append(o.codes, code)
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(MustLocation(srv.URL), opts...)
}

func TestDoSendsBearerAndJSON(t *testing.T) {
	obs := &recordingObserver{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/users/cart/u1/remove/", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "p1", body["product_id"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[]}`)
	}, WithObserver(obs))

	var out struct {
		Items []any `json:"items"`
	}
	err := c.Do(context.Background(), Request{
		Method: http.MethodDelete,
		Path:   "/api/users/cart/u1/remove/",
		Token:  "tok",
		Body:   map[string]string{"product_id": "p1"},
	}, &out)
	require.NoError(t, err)
	assert.NotNil(t, out.Items)
	assert.Equal(t, []int{http.StatusOK}, obs.codes)
}

func TestDoWithoutTokenOmitsAuthorization(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.Do(context.Background(), Request{
		Method: http.MethodGet,
		Path:   "/api/products/",
		Query:  map[string][]string{"page": {"1"}},
	}, &struct{}{})
	require.NoError(t, err)
}

func TestDoReturnsBackendMessage(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
		want string
	}{
		{"message", http.StatusUnauthorized, `{"success":false,"message":"Invalid email or password"}`, "Invalid email or password"},
		{"error", http.StatusBadRequest, `{"error":"Cart is empty"}`, "Cart is empty"},
		{"detail", http.StatusForbidden, `{"detail":"Not allowed"}`, "Not allowed"},
		{"field errors", http.StatusBadRequest, `{"errors":{"email":["already registered"],"name":"required"}}`, "email: already registered; name: required"},
		{"plain text", http.StatusInternalServerError, `boom`, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = io.WriteString(w, tt.body)
			})
			err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"}, nil)
			require.Error(t, err)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.code, apiErr.StatusCode)
			assert.Equal(t, tt.want, apiErr.Message)
		})
	}
}

func TestErrorClassification(t *testing.T) {
	notFound := &Error{StatusCode: http.StatusNotFound, Message: "Not Found"}
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsUnauthorized(notFound))
	assert.True(t, IsUnauthorized(&Error{StatusCode: http.StatusForbidden}))

	assert.Equal(t, "fallback", Message(notFound, "fallback"))
	assert.Equal(t, "gone", Message(&Error{StatusCode: http.StatusNotFound, Message: "gone"}, "fallback"))
	assert.Equal(t, "fallback", Message(io.EOF, "fallback"))
}

func TestDoUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	loc := MustLocation(srv.URL)
	srv.Close()

	obs := &recordingObserver{}
	c := New(loc, WithObserver(obs), WithTimeout(time.Second))
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/products/"}, nil)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Equal(t, []int{0}, obs.codes)
}

func TestDoMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Tent", r.FormValue("name"))
		assert.Equal(t, []string{"waterproof", "2 person"}, r.MultipartForm.Value["features"])

		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "tent.png", hdr.Filename)
		assert.Equal(t, "PNGDATA", string(data))

		_, _ = io.WriteString(w, `{"_id":"p9"}`)
	})

	form := NewForm().
		Add("name", "Tent").
		Add("features", "waterproof").
		Add("features", "2 person").
		AddFile("image", "tent.png", strings.NewReader("PNGDATA"))
	assert.True(t, form.HasFile("image"))

	var out struct {
		ID string `json:"_id"`
	}
	require.NoError(t, c.DoMultipart(context.Background(), Request{Method: http.MethodPost, Path: "/api/products/create/"}, form, &out))
	assert.Equal(t, "p9", out.ID)
}
