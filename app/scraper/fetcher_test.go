package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestBuildURL(t *testing.T) {
	url := BuildURL("technobase.fm", "2025-01-15")
	expected := "https://www.technobase.fm/showplan/2025-01-15/00-00"
	if url != expected {
		t.Errorf("Expected URL '%s', got '%s'", expected, url)
	}
}

func TestFetcherSendsBrowserProfile(t *testing.T) {
	var gotUA, gotAccept, gotLang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotLang = r.Header.Get("Accept-Language")
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	fetcher, err := NewFetcher("Mozilla/5.0 (Test)", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	data, err := fetcher.Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected page data")
	}

	if gotUA != "Mozilla/5.0 (Test)" {
		t.Errorf("Expected configured user agent, got '%s'", gotUA)
	}
	if !strings.Contains(gotAccept, "text/html") {
		t.Errorf("Expected browser-like Accept header, got '%s'", gotAccept)
	}
	if gotLang == "" {
		t.Error("Expected Accept-Language header")
	}
}

func TestFetcherNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	fetcher, err := NewFetcher("Test", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	_, err = fetcher.Run(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("Expected error to carry the status code, got: %v", err)
	}
}

func TestFetcherDecodesLatin1(t *testing.T) {
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte("Ströme"))
	if err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write(encoded)
	}))
	defer server.Close()

	fetcher, err := NewFetcher("Test", "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	data, err := fetcher.Run(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if string(data) != "Ströme" {
		t.Errorf("Expected decoded UTF-8 'Ströme', got '%s'", string(data))
	}
}

func TestNewFetcherInvalidProxy(t *testing.T) {
	if _, err := NewFetcher("Test", "://bad-proxy"); err == nil {
		t.Error("Expected error for invalid proxy URL")
	}
}
