package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fbz-tec/chxport/core/config"
	"github.com/fbz-tec/chxport/core/errs"
	"github.com/fbz-tec/chxport/core/ingest"
	"github.com/fbz-tec/chxport/core/progress"
	"github.com/fbz-tec/chxport/core/tasks"
)

type fakeStore struct {
	mu         sync.Mutex
	statements []string
	conns      []config.Connection
	respond    func(sql string) (string, error)
}

func (f *fakeStore) Query(_ context.Context, conn config.Connection, sql string) (string, error) {
	f.mu.Lock()
	f.statements = append(f.statements, sql)
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	if f.respond == nil {
		return "", nil
	}
	return f.respond(sql)
}

func (f *fakeStore) Stream(ctx context.Context, conn config.Connection, sql string) (io.ReadCloser, error) {
	body, err := f.Query(ctx, conn, sql)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeStore) Preview(_ context.Context, conn config.Connection, sql string) ([][]string, error) {
	f.mu.Lock()
	f.statements = append(f.statements, sql)
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	return [][]string{{"1", "Alice"}}, nil
}

type testEnv struct {
	server  *Server
	store   *fakeStore
	tracker *progress.MemoryTracker
	runner  *tasks.Runner
	uploads string
}

var testDefaults = config.Connection{
	Host: "localhost", Port: 8123, Database: "default", User: "default", Token: "server-secret", Secure: true,
}

func newTestEnv(t *testing.T, workers, queue int) *testEnv {
	t.Helper()

	store := &fakeStore{}
	uploads, err := NewUploadStore(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewUploadStore() error = %v", err)
	}

	tracker := progress.NewMemoryTracker(time.Hour, time.Hour)
	runner := tasks.NewRunner(tracker, workers, queue)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		runner.Shutdown(ctx)
	})

	svc := ingest.NewService(store, store, ingest.WithUploadDir(uploads.Dir()))
	srv := NewServer(Deps{
		Service:  svc,
		Runner:   runner,
		Tracker:  tracker,
		Uploads:  uploads,
		Defaults: testDefaults,
	})

	return &testEnv{server: srv, store: store, tracker: tracker, runner: runner, uploads: uploads.Dir()}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) waitTerminal(t *testing.T, id string) progress.Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := e.do(t, http.MethodGet, "/api/progress/"+id+"/detail", nil, "")
		if rec.Code == http.StatusOK {
			var st progress.Status
			if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
				t.Fatalf("decode status: %v", err)
			}
			if st.Terminal() {
				return st
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("transfer %s did not finish", id)
	return progress.Status{}
}

func decodeID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	var resp transferResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode id: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("empty transfer id")
	}
	return resp.ID
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"query failed", &errs.QueryFailedError{StatusCode: 500, Body: "boom"}, http.StatusBadGateway},
		{"transport", &errs.TransportError{Endpoint: "http://x", Err: errors.New("refused")}, http.StatusServiceUnavailable},
		{"column not found", &errs.ColumnNotFoundError{Column: "email", Available: []string{"id"}}, http.StatusBadRequest},
		{"format", errs.Formatf("bad"), http.StatusBadRequest},
		{"io", &errs.IOError{Op: "open", Path: "x", Err: os.ErrNotExist}, http.StatusInternalServerError},
		{"queue full", errs.ErrQueueFull, http.StatusServiceUnavailable},
		{"shutting down", tasks.ErrShuttingDown, http.StatusServiceUnavailable},
		{"wrapped", fmt.Errorf("failed to export data: %w", &errs.QueryFailedError{StatusCode: 404}), http.StatusBadGateway},
		{"other", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTablesAndColumns(t *testing.T) {
	env := newTestEnv(t, 1, 1)
	env.store.respond = func(sql string) (string, error) {
		switch {
		case strings.HasPrefix(sql, "SHOW TABLES FROM analytics"):
			return "events\nusers\n", nil
		case strings.HasPrefix(sql, "DESCRIBE TABLE users"):
			return "id\tUInt64\t\t\nname\tString\t\t\n", nil
		}
		return "", fmt.Errorf("unexpected query %q", sql)
	}

	rec := env.do(t, http.MethodGet, "/api/tables?database=analytics&port=8123", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("tables status = %d: %s", rec.Code, rec.Body.String())
	}
	var tables []string
	json.NewDecoder(rec.Body).Decode(&tables)
	if !reflect.DeepEqual(tables, []string{"events", "users"}) {
		t.Errorf("tables = %v", tables)
	}

	rec = env.do(t, http.MethodGet, "/api/columns?table=users", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("columns status = %d: %s", rec.Code, rec.Body.String())
	}
	var cols []ingest.ColumnInfo
	json.NewDecoder(rec.Body).Decode(&cols)
	want := []ingest.ColumnInfo{{Name: "id", Type: "UInt64"}, {Name: "name", Type: "String"}}
	if !reflect.DeepEqual(cols, want) {
		t.Errorf("columns = %+v, want %+v", cols, want)
	}
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t, 1, 1)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"bad port", http.MethodGet, "/api/tables?port=abc", "", http.StatusBadRequest},
		{"bad secure flag", http.MethodGet, "/api/tables?secure=maybe", "", http.StatusBadRequest},
		{"foreign host without user", http.MethodGet, "/api/tables?host=elsewhere", "", http.StatusBadRequest},
		{"columns without table", http.MethodGet, "/api/columns", "", http.StatusBadRequest},
		{"preview without table", http.MethodPost, "/api/preview/clickhouse", `{}`, http.StatusBadRequest},
		{"malformed export body", http.MethodPost, "/api/ingest/clickhouse-to-file", `{`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/ingest/join-tables", `{"bogus":1}`, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.target, strings.NewReader(tt.body), "application/json")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestStoreErrorsMapToStatus(t *testing.T) {
	env := newTestEnv(t, 1, 1)
	env.store.respond = func(string) (string, error) {
		return "", &errs.QueryFailedError{StatusCode: 500, Body: "Code: 60. Table missing"}
	}

	rec := env.do(t, http.MethodGet, "/api/tables", nil, "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body errorResponse
	json.NewDecoder(rec.Body).Decode(&body)
	if !strings.Contains(body.Error, "query failed with status code: 500") {
		t.Errorf("error body = %q", body.Error)
	}
}

func multipartUpload(t *testing.T, name, content, delimiter string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, content)
	if delimiter != "" {
		mw.WriteField("delimiter", delimiter)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t, 1, 1)

	body, ct := multipartUpload(t, "people.csv", "id;name\n1;Alice\n2;Bob\n", ";")
	rec := env.do(t, http.MethodPost, "/api/upload", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp uploadResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if filepath.Dir(resp.FilePath) != env.uploads {
		t.Errorf("stored at %s, want inside %s", resp.FilePath, env.uploads)
	}
	if filepath.Ext(resp.FilePath) != ".csv" {
		t.Errorf("extension = %q, want .csv", filepath.Ext(resp.FilePath))
	}
	if resp.Lines != 3 {
		t.Errorf("lines = %d, want 3", resp.Lines)
	}

	rec = env.do(t, http.MethodGet, "/api/file-headers?delimiter=%3B&filePath="+resp.FilePath, nil, "")
	if got := strings.TrimSpace(rec.Body.String()); got != `["id","name"]` {
		t.Errorf("headers = %s", got)
	}
}

func TestUploadRejectsMalformedFile(t *testing.T) {
	env := newTestEnv(t, 1, 1)

	body, ct := multipartUpload(t, "bad.csv", "id,name\n\"1,Alice\n", "")
	rec := env.do(t, http.MethodPost, "/api/upload", body, ct)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body.String())
	}

	entries, _ := os.ReadDir(env.uploads)
	if len(entries) != 0 {
		t.Errorf("rejected upload left %d file(s) behind", len(entries))
	}
}

func TestUploadExtension(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"data.csv", ".csv"},
		{"DATA.TSV", ".tsv"},
		{"archive.csv.gz", ".csv.gz"},
		{"../../etc/passwd", ""},
		{`C:\tmp\x.csv`, ".csv"},
		{"noext", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := uploadExt(tt.name); got != tt.want {
				t.Errorf("uploadExt(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestPreviewFileMissingColumn(t *testing.T) {
	env := newTestEnv(t, 1, 1)
	path := filepath.Join(t.TempDir(), "in.csv")
	os.WriteFile(path, []byte("id,name\n1,Alice\n"), 0o644)

	rec := env.do(t, http.MethodGet, "/api/preview/file?filePath="+path+"&columns=id,email", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "column not found: email") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/preview/file?filePath="+path+"&columns=name", nil, "")
	if got := strings.TrimSpace(rec.Body.String()); got != `[{"name":"Alice"}]` {
		t.Errorf("preview = %s", got)
	}
}

func TestPreviewStore(t *testing.T) {
	env := newTestEnv(t, 1, 1)

	rec := env.do(t, http.MethodPost, "/api/preview/clickhouse?table=users",
		strings.NewReader(`{"config":{"host":"ch","user":"reader"},"columns":["id","name"]}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `[["1","Alice"]]` {
		t.Errorf("rows = %s", got)
	}
	if got := env.store.statements[0]; got != "SELECT id, name FROM users LIMIT 100" {
		t.Errorf("sql = %q", got)
	}
}

func TestExportTransfer(t *testing.T) {
	env := newTestEnv(t, 1, 1)
	env.store.respond = func(string) (string, error) { return "1\tAlice\n2\tBob\n", nil }

	out := filepath.Join(t.TempDir(), "out.csv")
	payload := fmt.Sprintf(`{"columns":["id","name"],"file":{"filePath":%q,"delimiter":";"}}`, out)

	rec := env.do(t, http.MethodPost, "/api/ingest/clickhouse-to-file?table=users", strings.NewReader(payload), "application/json")
	id := decodeID(t, rec)
	if loc := rec.Header().Get("Location"); loc != "/api/progress/"+id {
		t.Errorf("Location = %q", loc)
	}

	st := env.waitTerminal(t, id)
	if st.Progress != progress.Complete || st.Rows != 2 {
		t.Fatalf("status = %+v", st)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "id;name\n1;Alice\n2;Bob\n" {
		t.Errorf("file = %q", data)
	}

	rec = env.do(t, http.MethodGet, "/api/progress/"+id, nil, "")
	if got := strings.TrimSpace(rec.Body.String()); got != "100" {
		t.Errorf("progress = %s, want 100", got)
	}
}

func TestImportTransferFailure(t *testing.T) {
	env := newTestEnv(t, 1, 1)

	in := filepath.Join(t.TempDir(), "in.csv")
	os.WriteFile(in, []byte("id,name\n1,Alice\n"), 0o644)
	payload := fmt.Sprintf(`{"table":"users","columns":["id","email"],"file":{"filePath":%q,"delimiter":","}}`, in)

	id := decodeID(t, env.do(t, http.MethodPost, "/api/ingest/file-to-clickhouse", strings.NewReader(payload), "application/json"))

	st := env.waitTerminal(t, id)
	if st.Progress != progress.Failed {
		t.Fatalf("progress = %d, want -1", st.Progress)
	}
	if !strings.Contains(st.Error, "column not found: email") {
		t.Errorf("error = %q", st.Error)
	}
	if len(env.store.statements) != 0 {
		t.Errorf("statements sent = %v, want none", env.store.statements)
	}
}

func TestJoinTransferRejectsUnsafeCondition(t *testing.T) {
	env := newTestEnv(t, 1, 1)

	out := filepath.Join(t.TempDir(), "out.csv")
	payload := fmt.Sprintf(`{"join":{"sourceTable":"a","joinTable":"b","joinCondition":"a.id = b.id; DROP TABLE a"},`+
		`"columns":["id"],"file":{"filePath":%q,"delimiter":","}}`, out)

	id := decodeID(t, env.do(t, http.MethodPost, "/api/ingest/join-tables", strings.NewReader(payload), "application/json"))
	if st := env.waitTerminal(t, id); st.Progress != progress.Failed {
		t.Fatalf("progress = %d, want -1", st.Progress)
	}
	if len(env.store.statements) != 0 {
		t.Errorf("statements sent = %v, want none", env.store.statements)
	}
}

func TestProgressUnknown(t *testing.T) {
	env := newTestEnv(t, 1, 1)

	rec := env.do(t, http.MethodGet, "/api/progress/nope", nil, "")
	if got := strings.TrimSpace(rec.Body.String()); got != "0" {
		t.Errorf("progress = %s, want 0", got)
	}
	if rec := env.do(t, http.MethodGet, "/api/progress/nope/detail", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("detail status = %d, want 404", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/tasks/nope/cancel", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("cancel status = %d, want 404", rec.Code)
	}
}

func TestQueueFullAndCancel(t *testing.T) {
	env := newTestEnv(t, 1, 1)

	release := make(chan struct{})
	blocker := func(ctx context.Context, _ func(int)) (int, error) {
		select {
		case <-release:
			return 0, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	running, err := env.runner.Submit("test", blocker)
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		if r, _ := env.runner.Stats(); r == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker never picked up the first transfer")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := env.runner.Submit("test", blocker); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodPost, "/api/ingest/join-tables",
		strings.NewReader(`{"join":{"sourceTable":"a"},"columns":["id"],"file":{"filePath":"x.csv","delimiter":","}}`), "application/json")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	if rec := env.do(t, http.MethodPost, "/api/tasks/"+running+"/cancel", nil, ""); rec.Code != http.StatusAccepted {
		t.Fatalf("cancel status = %d, want 202", rec.Code)
	}
	if st := env.waitTerminal(t, running); st.Progress != progress.Failed {
		t.Errorf("cancelled transfer progress = %d, want -1", st.Progress)
	}
	close(release)
}

func TestRequestConnectionDefaults(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   config.Connection
	}{
		{
			name:   "configured endpoint",
			target: "/api/tables",
			want:   testDefaults,
		},
		{
			name:   "other host keeps its own credentials only",
			target: "/api/tables?host=attacker.example&port=80&user=eve",
			want:   config.Connection{Host: "attacker.example", Port: 80, Database: "default", User: "eve"},
		},
		{
			name:   "secure query parameter",
			target: "/api/tables?host=other&user=bob&jwtToken=t&secure=true",
			want:   config.Connection{Host: "other", Port: 8123, Database: "default", User: "bob", Token: "t", Secure: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 1, 1)
			rec := env.do(t, http.MethodGet, tt.target, nil, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			if len(env.store.conns) != 1 || env.store.conns[0] != tt.want {
				t.Errorf("connection = %+v, want %+v", env.store.conns, tt.want)
			}
		})
	}
}

func TestTransferBodyDoesNotLeakServerToken(t *testing.T) {
	env := newTestEnv(t, 1, 1)
	env.store.respond = func(string) (string, error) { return "1\n", nil }

	out := filepath.Join(t.TempDir(), "out.csv")
	payload := fmt.Sprintf(`{"connection":{"host":"attacker.example","port":80,"user":"eve"},`+
		`"table":"users","columns":["id"],"file":{"filePath":%q,"delimiter":","}}`, out)

	id := decodeID(t, env.do(t, http.MethodPost, "/api/ingest/clickhouse-to-file", strings.NewReader(payload), "application/json"))
	env.waitTerminal(t, id)

	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	if len(env.store.conns) != 1 {
		t.Fatalf("store calls = %d, want 1", len(env.store.conns))
	}
	if got := env.store.conns[0]; got.Token != "" || got.Secure {
		t.Errorf("connection = %+v, want no inherited token or TLS", got)
	}
}
