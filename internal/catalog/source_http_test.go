package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_Load(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"products":[
			{"id":1,"title":"Mascara","category":"beauty","price":9.99,"rating":4.5},
			{"id":2,"title":"Chair","category":"furniture","price":120,"rating":{"rate":3.1,"count":9}}
		],"total":2}`))
	})
	mux.HandleFunc("/carts", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"carts":[{"id":1,"userId":7,"products":[{"id":2,"title":"Chair","price":120,"quantity":1}]}]}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c, err := Load(context.Background(), NewHTTPSource(ts.URL+"/"))
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	p, err := c.Get(2)
	require.NoError(t, err)
	assert.Equal(t, Rating{Rate: 3.1, Count: 9}, p.Rating)
	assert.Len(t, c.CartsByUser(7), 1)
}

func TestHTTPSource_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := NewHTTPSource(ts.URL).Products(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamBadStatus)
}

func TestHTTPSource_Unavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewHTTPSource(url).Carts(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}
