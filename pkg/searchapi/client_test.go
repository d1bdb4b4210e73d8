package searchapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() Request {
	return Request{Query: "mind-bending thriller", K: 24, Alpha: 0.5}
}

func TestSearchSendsParametersAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "mind-bending thriller", q.Get("q"))
		assert.Equal(t, "24", q.Get("k"))
		assert.Equal(t, "0.5", q.Get("alpha"))
		assert.Equal(t, "false", q.Get("ai_overview"))
		assert.Equal(t, "", q.Get("stream"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"query":"mind-bending thriller","count":2,"results":[{"id":27205,"title":"Inception","rrf_score":0.03,"vector_rank":1,"bm25_rank":null},{"id":1124,"title":"The Prestige"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, nil)
	resp, err := c.Search(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Inception", resp.Results[0].Title)
	require.NotNil(t, resp.Results[0].VectorRank)
	assert.Equal(t, 1, *resp.Results[0].VectorRank)
	assert.Nil(t, resp.Results[0].BM25Rank)
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind ErrorKind
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantKind: KindHTTPStatus,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>gateway</html>"))
			},
			wantKind: KindMalformedResults,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second, nil).Search(context.Background(), validRequest())
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantKind, apiErr.Kind)
		})
	}
}

func TestSearchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second, nil).Search(context.Background(), validRequest())
	apiErr := AsError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, KindTransport, apiErr.Kind)
	assert.True(t, apiErr.Retryable())
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr bool
	}{
		{"valid", func(r *Request) {}, false},
		{"blank query", func(r *Request) { r.Query = "   " }, true},
		{"k too small", func(r *Request) { r.K = 0 }, true},
		{"k too large", func(r *Request) { r.K = 101 }, true},
		{"alpha out of range", func(r *Request) { r.Alpha = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindInvalidRequest, AsError(err).Kind)
				assert.False(t, AsError(err).Retryable())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHealthAndReady(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ready","models_loaded":true,"load_times":{"encoder":1.5}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)

	ready, err := c.Ready(context.Background())
	require.NoError(t, err)
	assert.True(t, ready.ModelsLoaded)
	assert.Equal(t, 1.5, ready.LoadTimes["encoder"])
}

func TestPosterURL(t *testing.T) {
	tests := []struct {
		path string
		size PosterSize
		want string
	}{
		{"/abc.jpg", PosterW200, "https://image.tmdb.org/t/p/w200/abc.jpg"},
		{"/abc.jpg", PosterOriginal, "https://image.tmdb.org/t/p/original/abc.jpg"},
		{"/abc.jpg", "", "https://image.tmdb.org/t/p/w500/abc.jpg"},
		{"/abc.jpg", "w9000", "https://image.tmdb.org/t/p/w500/abc.jpg"},
		{"", PosterW300, "/placeholder-poster.svg"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, PosterURL(tt.path, tt.size))
		})
	}

	custom := NewPosterResolver("https://cdn.example/img/", "/none.png")
	assert.Equal(t, "https://cdn.example/img/w300/x.jpg", custom.URL("/x.jpg", PosterW300))
	assert.Equal(t, "/none.png", custom.URL("", PosterW300))
}
