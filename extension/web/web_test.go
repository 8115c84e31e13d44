package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

func TestWebGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		io.WriteString(w, "t1,t2\n")
	}))
	defer srv.Close()

	props := parser.NewProperties("header.X-Test", "yes")
	out, err := New().Execute(context.Background(), props, " "+srv.URL+" ", nil)
	require.NoError(t, err)
	assert.Equal(t, "t1,t2", out)
}

func TestWebPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		io.WriteString(w, r.Method+":"+string(body))
	}))
	defer srv.Close()

	w := New()
	out, err := w.Execute(context.Background(), parser.NewProperties(PropURL, srv.URL), "select 1", nil)
	require.NoError(t, err)
	assert.Equal(t, "POST:select 1", out)

	out, err = w.Execute(context.Background(), parser.NewProperties(PropURL, srv.URL, PropMethod, "put"), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "PUT:x", out)
}

func TestWebErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	w := New()
	_, err := w.Execute(context.Background(), parser.NewProperties(PropAttempts, "3"), srv.URL+"/missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.EqualValues(t, 1, calls.Load())

	calls.Store(0)
	_, err = w.Execute(context.Background(), parser.NewProperties(PropAttempts, "2"), srv.URL+"/down", nil)
	require.Error(t, err)
	assert.EqualValues(t, 2, calls.Load())

	_, err = w.Execute(context.Background(), parser.NewProperties(PropTimeout, "20ms"), srv.URL+"/slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = w.Execute(context.Background(), parser.Properties{}, "not a url", nil)
	assert.Error(t, err)
	_, err = w.Execute(context.Background(), parser.NewProperties(PropTimeout, "later"), srv.URL, nil)
	assert.Error(t, err)
}
