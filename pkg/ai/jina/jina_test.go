package jina

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/https://example.com/docs", r.URL.Path)
		assert.Equal(t, "Bearer tk", r.Header.Get("Authorization"))
		w.Write([]byte(`{"code":200,"data":{"title":"Docs","content":"hello"}}`))
	}))
	defer srv.Close()

	res, err := New("tk", srv.URL).Reader(context.Background(), "https://example.com/docs")
	require.NoError(t, err)
	assert.Equal(t, "Docs", res.Title)
	assert.Equal(t, "hello", res.Content)
}

func TestReaderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New("", srv.URL).Reader(context.Background(), "https://example.com")
	assert.Error(t, err)
}
