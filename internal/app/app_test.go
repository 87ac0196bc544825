package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/xmlstream/internal/config"
	"github.com/JakeFAU/xmlstream/internal/progress/sinks"
	"github.com/JakeFAU/xmlstream/internal/store"
	"github.com/JakeFAU/xmlstream/internal/store/sqlite"
	"github.com/JakeFAU/xmlstream/internal/transform"
	"github.com/JakeFAU/xmlstream/pkg/saxstream"
)

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 8080, MaxBodyBytes: 1 << 20},
		Parse:  config.ParseConfig{ChunkSize: 4, Encoding: saxstream.DefaultEncoding},
		Progress: config.ProgressConfig{
			Enabled:        true,
			BufferSize:     64,
			MaxBatchEvents: 8,
			MaxBatchWait:   10 * time.Millisecond,
			SinkTimeout:    time.Second,
		},
		Tracing: config.TracingConfig{ServiceName: "xmlstream-test"},
		Storage: config.StorageConfig{
			ContentType:  "application/xml",
			ReportFormat: sinks.FormatJSON,
		},
	}
}

func newTestApp(t *testing.T, cfg config.Config, opts ...Option) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, append([]Option{WithLogger(zap.NewNop())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func putMemory(t *testing.T, a *App, key, body string) {
	t.Helper()
	_, err := a.Resolver().Memory().PutObject(context.Background(), key, "application/xml", strings.NewReader(body))
	require.NoError(t, err)
}

func countingHandlers(n *int) saxstream.Handlers {
	return saxstream.Handlers{
		OpenTag: func(context.Context, saxstream.OpenTag) error {
			*n++
			return nil
		},
	}
}

func TestAppParseURIRecordsSession(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Storage.ReportsURI = "memory://reports"
	cfg.DB = config.DBConfig{Driver: config.DriverSQLite, DSN: filepath.Join(dir, "sessions.db")}
	cfg.Metrics.Textfile = filepath.Join(dir, "xmlstream.prom")

	a := newTestApp(t, cfg)
	require.NotNil(t, a.Hub())
	require.NotNil(t, a.Sessions())
	putMemory(t, a, "docs/a.xml", "<a><b/><c>1</c></a>")

	opens := 0
	require.NoError(t, a.ParseURI(context.Background(), "memory://docs/a.xml", countingHandlers(&opens)))
	assert.Equal(t, 3, opens)
	require.NoError(t, a.Close(context.Background()))

	var reportKey string
	for _, key := range a.Resolver().Memory().Keys() {
		if strings.HasPrefix(key, "reports/") {
			reportKey = key
		}
	}
	require.NotEmpty(t, reportKey)
	raw, ok := a.Resolver().Memory().Get(reportKey)
	require.True(t, ok)
	var sum sinks.SessionSummary
	require.NoError(t, json.Unmarshal(raw, &sum))
	assert.Equal(t, "memory://docs/a.xml", sum.Source)
	assert.Equal(t, "success", sum.Status)
	assert.Equal(t, int64(19), sum.Bytes)
	assert.Equal(t, reportKey, "reports/"+sum.SessionID.String()+".json")

	repo, err := sqlite.New(context.Background(), cfg.DB.DSN)
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()
	run, err := repo.GetSession(context.Background(), sum.SessionID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusSuccess, run.Status)
	assert.Equal(t, int64(5), run.Chunks)

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `xmlstream_sessions_completed_total{result="success"} 1`)
}

type memoryRepo struct {
	mu        sync.Mutex
	completed []store.SessionRun
	closed    bool
}

func (r *memoryRepo) StartSession(context.Context, uuid.UUID, string, time.Time) error {
	return nil
}

func (r *memoryRepo) CompleteSession(_ context.Context, run store.SessionRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, run)
	return nil
}

func (r *memoryRepo) GetSession(context.Context, uuid.UUID) (store.SessionRun, error) {
	return store.SessionRun{}, store.ErrNotFound
}

func (r *memoryRepo) ListSessions(context.Context, *store.SessionStatus, int, int) ([]store.SessionRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.SessionRun(nil), r.completed...), nil
}

func (r *memoryRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestAppParseReaderFailure(t *testing.T) {
	repo := &memoryRepo{}
	a := newTestApp(t, testConfig(), WithSessionRepository(repo))

	err := a.ParseReader(context.Background(), "inline", strings.NewReader("<a><b></a>"), saxstream.Handlers{})
	var se *saxstream.SyntaxError
	require.ErrorAs(t, err, &se)
	require.NoError(t, a.Close(context.Background()))

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.completed, 1)
	assert.Equal(t, store.StatusError, repo.completed[0].Status)
	assert.Equal(t, "syntax", repo.completed[0].ErrorClass)
	assert.Equal(t, "inline", repo.completed[0].Source)
	assert.True(t, repo.closed)
}

func TestAppCallerOptionsWin(t *testing.T) {
	a := newTestApp(t, testConfig())
	var text string
	h := saxstream.Handlers{Text: func(_ context.Context, ev saxstream.Text) error {
		text = ev.Content
		return nil
	}}
	err := a.ParseReader(context.Background(), "inline", strings.NewReader("<r>caf\xe9</r>"), h,
		saxstream.WithEncoding("windows-1252"))
	require.NoError(t, err)
	assert.Equal(t, "café", text)
}

func TestAppProgressDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Progress.Enabled = false
	a := newTestApp(t, cfg)
	assert.Nil(t, a.Hub())

	opens := 0
	require.NoError(t, a.ParseReader(context.Background(), "inline", strings.NewReader("<a/>"), countingHandlers(&opens)))
	assert.Equal(t, 1, opens)
}

func TestAppCopyURI(t *testing.T) {
	a := newTestApp(t, testConfig())
	putMemory(t, a, "in.xml", `<r><secret>x</secret><k a='1'>v</k></r>`)
	dst := filepath.Join(t.TempDir(), "out", "copy.xml")

	location, written, err := a.CopyURI(context.Background(), "memory://in.xml", dst, transform.WithDrop("secret"))
	require.NoError(t, err)
	assert.Equal(t, "file://"+dst, location)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, `<r><k a="1">v</k></r>`, string(got))
	assert.Equal(t, int64(len(got)), written)
}

func TestAppCopyURIParseFailureLeavesNoObject(t *testing.T) {
	a := newTestApp(t, testConfig())
	putMemory(t, a, "bad.xml", "<r><open></r>")
	dst := filepath.Join(t.TempDir(), "copy.xml")

	_, _, err := a.CopyURI(context.Background(), "memory://bad.xml", dst)
	require.Error(t, err)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAppParseURIMissingObject(t *testing.T) {
	a := newTestApp(t, testConfig())
	err := a.ParseURI(context.Background(), "memory://nope.xml", saxstream.Handlers{})
	var sre *saxstream.SourceReadError
	assert.ErrorAs(t, err, &sre)
}

type spanRecorder struct {
	mu    sync.Mutex
	names []string
}

func (s *spanRecorder) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, span := range spans {
		s.names = append(s.names, span.Name())
	}
	return nil
}

func (s *spanRecorder) Shutdown(context.Context) error { return nil }

func TestAppTracing(t *testing.T) {
	original := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	cfg := testConfig()
	cfg.Tracing.Enabled = true
	rec := &spanRecorder{}
	a := newTestApp(t, cfg, WithSpanExporter(rec))

	require.NoError(t, a.ParseReader(context.Background(), "traced", strings.NewReader("<a/>"), saxstream.Handlers{}))
	require.NoError(t, a.Close(context.Background()))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"xmlstream.session"}, rec.names)
}

func TestNewRejectsBadReportsURI(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.ReportsURI = "ftp://example.com/reports"
	_, err := New(context.Background(), cfg, WithLogger(zap.NewNop()))
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()))
}
