package directory

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/serbisyo-bataan/matcher/internal/matching"
)

func TestProvidersFollowsPages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/providers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if got := r.URL.Query().Get("municipality"); got != "Balanga" {
			t.Errorf("unexpected municipality %q", got)
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		body := map[string]any{
			"items": []any{
				map[string]any{"id": fmt.Sprintf("p%d", page*2+1), "businessName": "Shop", "rating": map[string]any{"average": 4.5}},
				map[string]any{"id": fmt.Sprintf("p%d", page*2+2)},
			},
			"found":    5,
			"pages":    3,
			"page":     page,
			"per_page": 2,
		}
		if page == 2 {
			body["items"] = []any{map[string]any{"id": "p5"}}
		}

		// The last page comes back compressed.
		if page == 2 {
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			defer gz.Close()
			json.NewEncoder(gz).Encode(body)
			return
		}
		json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	c := New(zap.NewNop(), srv.URL+"/", "secret")
	providers, err := c.Providers(context.Background(), "Balanga")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if providers.Len() != 5 {
		t.Fatalf("expected 5 providers, got %d", providers.Len())
	}
	if got := providers.IDs(); got[0] != "p1" || got[4] != "p5" {
		t.Fatalf("unexpected provider order %v", got)
	}
	if providers.Items[0].Rating.Average != 4.5 {
		t.Fatalf("expected rating to be decoded, got %v", providers.Items[0].Rating.Average)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 requests, got %d", calls.Load())
	}
}

func TestProvidersStopsOnRepeatedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"items": []any{map[string]any{"id": "p1"}},
			"pages": 4,
			"page":  0,
		})
	}))
	defer srv.Close()

	_, err := New(zap.NewNop(), srv.URL, "").Providers(context.Background(), "")
	if err == nil {
		t.Fatalf("expected an error for a server that ignores the page parameter")
	}
}

func TestProvidersBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := New(zap.NewNop(), srv.URL, "").Providers(context.Background(), ""); err == nil {
		t.Fatalf("expected an error on 502")
	}
}

func TestProviderByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/providers/p1":
			json.NewEncoder(w).Encode(map[string]any{"id": "p1", "category": "Plumbing"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(zap.NewNop(), srv.URL, "")

	provider, err := c.Provider(context.Background(), "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.ID != "p1" || provider.Category != "Plumbing" {
		t.Fatalf("unexpected provider %+v", provider)
	}

	_, err = c.Provider(context.Background(), "ghost")
	if !errors.Is(err, matching.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}
