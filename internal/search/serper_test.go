package search

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearch(t *testing.T) {
	var gotKey, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Write([]byte(`{"organic":[
			{"title":"Go","link":"https://go.dev","snippet":"The Go programming language"},
			{"title":"Go wiki","link":"https://go.dev/wiki","snippet":"Community wiki"},
			{"title":"Extra","link":"https://example.com","snippet":"over the cap"}
		]}`))
	}))
	defer server.Close()

	c := NewClient("test-key", 2)
	c.endpoint = server.URL

	out, err := c.Search(context.Background(), "golang")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if gotKey != "test-key" {
		t.Errorf("X-API-KEY = %q, want test-key", gotKey)
	}
	if !strings.Contains(gotBody, `"q":"golang"`) {
		t.Errorf("request body = %q, want query field", gotBody)
	}
	if !strings.Contains(out, "1. [Go](https://go.dev)") {
		t.Errorf("output missing first result: %q", out)
	}
	if !strings.Contains(out, "The Go programming language") {
		t.Errorf("output missing snippet: %q", out)
	}
	if strings.Contains(out, "Extra") {
		t.Errorf("output exceeds result cap: %q", out)
	}
}

func TestSearch_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"organic":[]}`))
	}))
	defer server.Close()

	c := NewClient("k", 5)
	c.endpoint = server.URL

	out, err := c.Search(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if out != "" {
		t.Errorf("Search() = %q, want empty string", out)
	}
}

func TestSearch_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"invalid key"}`))
	}))
	defer server.Close()

	c := NewClient("bad", 5)
	c.endpoint = server.URL

	if _, err := c.Search(context.Background(), "q"); err == nil {
		t.Error("Search() with 403 = nil, want error")
	}
}
