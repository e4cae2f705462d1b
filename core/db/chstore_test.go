package db

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fbz-tec/chxport/core/config"
	"github.com/fbz-tec/chxport/core/errs"
)

// TestStoreInterface verifies that HTTPStore implements Executor
func TestStoreInterface(t *testing.T) {
	var _ Executor = &HTTPStore{}
	var _ Previewer = &NativeStore{}
}

func connFor(t *testing.T, srv *httptest.Server) config.Connection {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	return config.Connection{
		Host:     u.Hostname(),
		Port:     port,
		Database: "analytics",
		User:     "reader",
		Token:    "secret",
	}
}

func TestQuerySendsStatementAndHeaders(t *testing.T) {
	var gotBody string
	var gotHeader http.Header
	var gotMethod string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotHeader = r.Header.Clone()
		gotMethod = r.Method
		io.WriteString(w, "1\tAlice\n2\tBob\n")
	}))
	defer srv.Close()

	store := NewHTTPStore(HTTPOptions{Timeout: 5 * time.Second})
	defer store.Close()

	body, err := store.Query(context.Background(), connFor(t, srv), "SELECT id, name FROM users FORMAT TabSeparated")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if body != "1\tAlice\n2\tBob\n" {
		t.Errorf("body = %q", body)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotBody != "SELECT id, name FROM users FORMAT TabSeparated" {
		t.Errorf("statement = %q", gotBody)
	}

	wantHeaders := map[string]string{
		"X-ClickHouse-User":     "reader",
		"X-ClickHouse-Key":      "secret",
		"X-ClickHouse-Database": "analytics",
		"X-ClickHouse-Format":   "TabSeparated",
	}
	for k, v := range wantHeaders {
		if got := gotHeader.Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
}

func TestQueryNon200IsQueryFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "Code: 60. DB::Exception: Table default.missing does not exist")
	}))
	defer srv.Close()

	store := NewHTTPStore(HTTPOptions{})
	_, err := store.Query(context.Background(), connFor(t, srv), "SELECT 1 FROM missing")

	var qf *errs.QueryFailedError
	if !errors.As(err, &qf) {
		t.Fatalf("expected QueryFailedError, got %T: %v", err, err)
	}
	if qf.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", qf.StatusCode)
	}
	if !strings.Contains(qf.Body, "does not exist") {
		t.Errorf("Body = %q", qf.Body)
	}
}

func TestQueryUnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	conn := connFor(t, srv)
	srv.Close()

	store := NewHTTPStore(HTTPOptions{Timeout: 2 * time.Second})
	_, err := store.Query(context.Background(), conn, "SELECT 1")

	var te *errs.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
}

func TestQueryCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewHTTPStore(HTTPOptions{})
	_, err := store.Query(ctx, connFor(t, srv), "SELECT 1")

	var te *errs.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestStreamReturnsOpenBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "a\n")
	}))
	defer srv.Close()

	store := NewHTTPStore(HTTPOptions{})
	rc, err := store.Stream(context.Background(), connFor(t, srv), "SELECT 'a'")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "a\n" {
		t.Errorf("body = %q", b)
	}
}

func TestAbbreviate(t *testing.T) {
	if got := abbreviate("short", 10); got != "short" {
		t.Errorf("abbreviate(short) = %q", got)
	}
	got := abbreviate(strings.Repeat("x", 20), 5)
	if !strings.HasPrefix(got, "xxxxx...") || !strings.Contains(got, "15 more bytes") {
		t.Errorf("abbreviate(long) = %q", got)
	}
}
