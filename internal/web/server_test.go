package web

import (
	"bufio"
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/JonMunkholm/rowstream/internal/config"
	"github.com/JonMunkholm/rowstream/internal/core"
	"github.com/JonMunkholm/rowstream/internal/csv"
)

// ----------------------------------------------------------------------------
// Fixtures
// ----------------------------------------------------------------------------

type memorySink struct {
	mu      sync.Mutex
	rows    []core.Record
	results []*core.ImportResult
}

func (s *memorySink) BeginImport(ctx context.Context, def core.TableDefinition, importID uuid.UUID) (core.ImportTx, error) {
	return &memoryTx{sink: s}, nil
}

func (s *memorySink) RecordImport(ctx context.Context, result *core.ImportResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

type memoryTx struct {
	sink    *memorySink
	pending []core.Record
}

func (tx *memoryTx) CopyRecords(ctx context.Context, records []core.Record) (int64, error) {
	tx.pending = append(tx.pending, records...)
	return int64(len(records)), nil
}

func (tx *memoryTx) Commit(ctx context.Context) error {
	tx.sink.mu.Lock()
	defer tx.sink.mu.Unlock()
	tx.sink.rows = append(tx.sink.rows, tx.pending...)
	return nil
}

func (tx *memoryTx) Rollback(ctx context.Context) error {
	tx.pending = nil
	return nil
}

const vehiclesCSV = "Year,Make,Model\n" +
	"1997,Ford,E350\n" +
	"nineteen,Chevy,Venture\n" +
	"1996,Jeep,Grand Cherokee\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Decode: config.DecodeConfig{PreviewRows: 50},
		Import: config.ImportConfig{MaxFileSize: 1 << 20},
	}
}

func newTestServer(t *testing.T, sink core.Sink, cfg *config.Config) *Server {
	t.Helper()
	core.Clear()
	core.Register(core.TableDefinition{
		Info: core.TableInfo{Key: "vehicles", Group: "Demo", Label: "Vehicles"},
		FieldSpecs: []core.FieldSpec{
			{Name: "Year", Type: core.FieldInteger, Required: true},
			{Name: "Make", Type: core.FieldText, Required: true},
			{Name: "Model", Type: core.FieldText, AllowEmpty: true},
		},
	})
	t.Cleanup(core.Clear)

	var svc *core.Service
	if sink == nil {
		svc = core.NewService(nil, core.Options{Dialect: csv.Dialect{HasHeader: true}})
	} else {
		svc = core.NewService(sink, core.Options{Dialect: csv.Dialect{HasHeader: true}, BatchSize: 2})
	}
	return NewServer(svc, cfg)
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

// ndjson splits an NDJSON body into one map per line.
func ndjson(t *testing.T, body []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

// ----------------------------------------------------------------------------
// Health and Tables
// ----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["database"] != false {
		t.Errorf("health = %v", body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers not set")
	}
}

func TestListTables(t *testing.T) {
	s := newTestServer(t, nil, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var tables []core.TableInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &tables); err != nil {
		t.Fatal(err)
	}
	if len(tables) != 1 || tables[0].Key != "vehicles" {
		t.Fatalf("tables = %+v", tables)
	}
	if got := strings.Join(tables[0].Columns, ","); got != "Year,Make,Model" {
		t.Errorf("columns = %s", got)
	}
}

// ----------------------------------------------------------------------------
// Decode
// ----------------------------------------------------------------------------

func TestDecode(t *testing.T) {
	s := newTestServer(t, nil, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/decode/vehicles", strings.NewReader(vehiclesCSV))
	req.Header.Set("Content-Type", "text/csv")
	rec := do(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := ndjson(t, rec.Body.Bytes())
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %s", len(lines), rec.Body.String())
	}

	wantLines := []float64{2, 3, 4}
	for i, l := range lines {
		if l["line"] != wantLines[i] {
			t.Errorf("lines[%d].line = %v, want %v", i, l["line"], wantLines[i])
		}
	}

	first := lines[0]["record"].(map[string]any)
	if first["Make"] != "Ford" || first["Year"] != float64(1997) {
		t.Errorf("first record = %v", first)
	}

	failure, ok := lines[1]["error"].(map[string]any)
	if !ok {
		t.Fatalf("line 3 should be an error: %v", lines[1])
	}
	if failure["kind"] != "conversion" || failure["code"] != "DEC006" || failure["column"] != "Year" {
		t.Errorf("error = %v", failure)
	}
}

func TestDecodeQueryOptions(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		body      string
		wantLines int
		check     func(t *testing.T, lines []map[string]any)
	}{
		{
			name:      "failures only",
			query:     "?failures=only",
			body:      vehiclesCSV,
			wantLines: 1,
			check: func(t *testing.T, lines []map[string]any) {
				if lines[0]["error"] == nil {
					t.Errorf("expected only failures, got %v", lines[0])
				}
			},
		},
		{
			name:      "column projection",
			query:     "?columns=make",
			body:      vehiclesCSV,
			wantLines: 3,
			check: func(t *testing.T, lines []map[string]any) {
				rec := lines[0]["record"].(map[string]any)
				if len(rec) != 1 || rec["Make"] != "Ford" {
					t.Errorf("projected record = %v", rec)
				}
			},
		},
		{
			name:      "limit",
			query:     "?limit=1",
			body:      vehiclesCSV,
			wantLines: 1,
		},
		{
			name:      "no header",
			query:     "?header=false",
			body:      "1997,Ford,E350\n1996,Jeep,\n",
			wantLines: 2,
			check: func(t *testing.T, lines []map[string]any) {
				if lines[0]["line"] != float64(1) {
					t.Errorf("first line = %v, want 1", lines[0]["line"])
				}
				rec := lines[1]["record"].(map[string]any)
				if rec["Model"] != nil {
					t.Errorf("blank Model should be null, got %v", rec["Model"])
				}
			},
		},
		{
			name:      "latin1 charset",
			query:     "?charset=latin1",
			body:      "Year,Make,Model\n1997,Citro\xebn,DS\n",
			wantLines: 1,
			check: func(t *testing.T, lines []map[string]any) {
				rec := lines[0]["record"].(map[string]any)
				if rec["Make"] != "Citroën" {
					t.Errorf("Make = %v", rec["Make"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil, testConfig())
			req := httptest.NewRequest(http.MethodPost, "/api/decode/vehicles"+tt.query, strings.NewReader(tt.body))
			rec := do(s, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			lines := ndjson(t, rec.Body.Bytes())
			if len(lines) != tt.wantLines {
				t.Fatalf("got %d lines, want %d: %s", len(lines), tt.wantLines, rec.Body.String())
			}
			if tt.check != nil {
				tt.check(t, lines)
			}
		})
	}
}

func TestDecodeMultipart(t *testing.T) {
	s := newTestServer(t, nil, testConfig())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("note", "ignored"); err != nil {
		t.Fatal(err)
	}
	fw, err := mw.CreateFormFile("file", "vehicles.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(vehiclesCSV))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/decode/vehicles", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if n := len(ndjson(t, rec.Body.Bytes())); n != 3 {
		t.Errorf("got %d lines, want 3", n)
	}
}

func TestDecodeErrors(t *testing.T) {
	multipartWithoutFile := func() (string, *bytes.Buffer) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("note", "no file here")
		mw.Close()
		return mw.FormDataContentType(), &buf
	}

	tests := []struct {
		name       string
		path       string
		build      func() (string, *bytes.Buffer)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unknown table",
			path:       "/api/decode/missing",
			wantStatus: http.StatusNotFound,
			wantCode:   "TBL001",
		},
		{
			name:       "unsupported charset",
			path:       "/api/decode/vehicles?charset=klingon",
			wantStatus: http.StatusBadRequest,
			wantCode:   "SRC001",
		},
		{
			name:       "multipart without file",
			path:       "/api/decode/vehicles",
			build:      multipartWithoutFile,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil, testConfig())

			contentType, body := "text/csv", bytes.NewBufferString(vehiclesCSV)
			if tt.build != nil {
				contentType, body = tt.build()
			}
			req := httptest.NewRequest(http.MethodPost, tt.path, body)
			req.Header.Set("Content-Type", contentType)
			rec := do(s, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("error body is not JSON: %s", rec.Body.String())
			}
			if tt.wantCode != "" && resp.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Code, tt.wantCode)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Import
// ----------------------------------------------------------------------------

func TestImport(t *testing.T) {
	sink := &memorySink{}
	s := newTestServer(t, sink, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/import/vehicles?name=fleet.csv", strings.NewReader(vehiclesCSV))
	rec := do(s, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result core.ImportResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.FileName != "fleet.csv" || result.TotalRows != 3 || result.Inserted != 2 || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(result.FailedRows) != 1 || result.FailedRows[0].LineNumber != 3 {
		t.Errorf("failed rows = %+v", result.FailedRows)
	}
	if len(sink.rows) != 2 || len(sink.results) != 1 {
		t.Errorf("sink got %d rows and %d results", len(sink.rows), len(sink.results))
	}
}

func TestImportWithoutDatabase(t *testing.T) {
	s := newTestServer(t, nil, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/import/vehicles", strings.NewReader(vehiclesCSV))
	rec := do(s, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "UPL005" {
		t.Errorf("code = %s, want UPL005", resp.Code)
	}
}

func TestImportTooLarge(t *testing.T) {
	sink := &memorySink{}
	cfg := testConfig()
	cfg.Import.MaxFileSize = 64
	s := newTestServer(t, sink, cfg)

	body := "Year,Make,Model\n" + strings.Repeat("1997,Ford,E350\n", 100)
	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/import/vehicles", strings.NewReader(body)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413 (body %s)", rec.Code, rec.Body.String())
	}
	var resp importResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Failure == nil || resp.Failure.Code != "UPL004" {
		t.Errorf("failure = %+v", resp.Failure)
	}
	if len(sink.rows) != 0 {
		t.Errorf("aborted import committed %d rows", len(sink.rows))
	}
}

func TestImportMissingColumn(t *testing.T) {
	sink := &memorySink{}
	s := newTestServer(t, sink, testConfig())

	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/import/vehicles", strings.NewReader("Year,Model\n1997,E350\n")))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body.String())
	}
	if len(sink.rows) != 0 {
		t.Errorf("aborted import committed %d rows", len(sink.rows))
	}
}

// ----------------------------------------------------------------------------
// Auth
// ----------------------------------------------------------------------------

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := newTestServer(t, nil, cfg)

	if rec := do(s, httptest.NewRequest(http.MethodGet, "/api/tables", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tables", nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := do(s, req); rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d, want 200", rec.Code)
	}

	if rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz should not need a key, status = %d", rec.Code)
	}
}

// ----------------------------------------------------------------------------
// Preview
// ----------------------------------------------------------------------------

func TestPreview(t *testing.T) {
	cfg := testConfig()
	cfg.Decode.PreviewRows = 2
	s := newTestServer(t, nil, cfg)

	rec := do(s, httptest.NewRequest(http.MethodPost, "/preview/vehicles", strings.NewReader(vehiclesCSV)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	html := rec.Body.String()
	for _, want := range []string{"Vehicles", "Ford", "1 decoded, 1 failed", "DEC006"} {
		if !strings.Contains(html, want) {
			t.Errorf("preview missing %q:\n%s", want, html)
		}
	}
	if strings.Contains(html, "Jeep") {
		t.Error("preview should stop at the row limit")
	}
}

func TestPreviewErrorHTMX(t *testing.T) {
	s := newTestServer(t, nil, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/preview/missing", strings.NewReader(vehiclesCSV))
	req.Header.Set("HX-Request", "true")
	rec := do(s, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `role="alert"`) || !strings.Contains(body, "TBL001") {
		t.Errorf("expected error alert, got %s", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrUnknownTable, http.StatusNotFound},
		{core.ErrNoSink, http.StatusServiceUnavailable},
		{core.ErrTooManyImports, http.StatusTooManyRequests},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{&http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{errBadUpload, http.StatusUnprocessableEntity},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
