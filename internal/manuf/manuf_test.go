package manuf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPResolverLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/AA:BB:CC:DD:EE:01":
			w.Write([]byte("Acme Radios\n"))
		case "/AA:BB:CC:DD:EE:02":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL + "/")

	name, err := r.Lookup(context.Background(), "AA:BB:CC:DD:EE:01")
	require.NoError(t, err)
	assert.Equal(t, "Acme Radios", name)

	_, err = r.Lookup(context.Background(), "AA:BB:CC:DD:EE:02")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Lookup(context.Background(), "AA:BB:CC:DD:EE:03")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestHTTPResolverContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewHTTPResolver(srv.URL)
	_, err := r.Lookup(ctx, "AA:BB:CC:DD:EE:01")
	assert.Error(t, err)
}

func TestStaticResolver(t *testing.T) {
	s := Static{"AA:BB:CC:DD:EE:01": "Acme Radios"}

	name, err := s.Lookup(context.Background(), "AA:BB:CC:DD:EE:01")
	require.NoError(t, err)
	assert.Equal(t, "Acme Radios", name)

	_, err = s.Lookup(context.Background(), "AA:BB:CC:DD:EE:99")
	assert.ErrorIs(t, err, ErrNotFound)
}
