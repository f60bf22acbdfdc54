package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/rowstream/internal/csv"
	"github.com/JonMunkholm/rowstream/internal/decode"
	"github.com/JonMunkholm/rowstream/internal/logging"
	"github.com/JonMunkholm/rowstream/internal/stream"
)

// ErrNoSink is returned by Import when the service has no database.
var ErrNoSink = errors.New("import requires a database")

// ContextCheckInterval is how often (in rows) imports check for cancellation.
var ContextCheckInterval = 100

// Sink stores decoded records. Implementations must make an import atomic:
// either every batch copied through an ImportTx is committed or none is.
type Sink interface {
	BeginImport(ctx context.Context, def TableDefinition, importID uuid.UUID) (ImportTx, error)
	RecordImport(ctx context.Context, result *ImportResult) error
}

// ImportTx receives the batches of a single import.
type ImportTx interface {
	CopyRecords(ctx context.Context, records []Record) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Options configures a Service.
type Options struct {
	Dialect       csv.Dialect
	Charset       string // default source encoding
	BatchSize     int
	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration
}

// Service opens record streams for registered tables and imports them into a Sink.
type Service struct {
	sink    Sink
	limiter *ImportLimiter
	opts    Options
}

// NewService creates a Service. sink may be nil, in which case only decoding
// is available and Import returns ErrNoSink.
func NewService(sink Sink, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	return &Service{
		sink:    sink,
		limiter: NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:    opts,
	}
}

// HasSink reports whether imports are available.
func (s *Service) HasSink() bool {
	return s.sink != nil
}

// ListTables returns information about all registered tables.
func (s *Service) ListTables() []TableInfo {
	defs := All()
	infos := make([]TableInfo, len(defs))
	for i, def := range defs {
		infos[i] = def.Info
	}
	return infos
}

// LimiterStatus returns the import limiter state.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// OpenOptions describes one source handed to Open or Import.
type OpenOptions struct {
	Charset  string // overrides the service default when set
	Size     int64  // total size in bytes if known
	NoHeader bool   // the source has no header row
}

// RecordStream is a lazy stream of Records over one source.
type RecordStream struct {
	*stream.Reader[Record]
	Def    TableDefinition
	source *csv.Source
}

// BytesRead returns how many decoded bytes the tokenizer has consumed.
func (r *RecordStream) BytesRead() int64 {
	return r.source.BytesRead
}

// Progress returns read progress as a percentage when the size is known.
func (r *RecordStream) Progress() int {
	return r.source.Progress()
}

// Open returns a RecordStream decoding src as table tableKey.
//
// Open takes ownership of src. csv.WrapSource leaves src open when it fails,
// so Open closes it itself before returning any error; on success src is
// closed by the stream, on exhaustion, read failure or Close.
func (s *Service) Open(ctx context.Context, tableKey string, src io.ReadCloser, opts OpenOptions) (*RecordStream, error) {
	def, err := Lookup(tableKey)
	if err != nil {
		src.Close()
		return nil, err
	}

	charset := opts.Charset
	if charset == "" {
		charset = s.opts.Charset
	}
	source, err := csv.WrapSource(src, csv.SourceOptions{Charset: charset, Size: opts.Size})
	if err != nil {
		src.Close()
		return nil, err
	}

	dialect := s.opts.Dialect
	if opts.NoHeader {
		dialect.HasHeader = false
	}

	reader := stream.NewReader[Record](source, NewRecordDecoder(def), stream.Options{
		Dialect: dialect,
		Logger:  logging.WithFields(ctx, "table", tableKey),
	})
	return &RecordStream{Reader: reader, Def: def, source: source}, nil
}

// Import decodes src as table tableKey and copies every successful record
// into the sink in batches, inside a single transaction. Rows that fail to
// decode are reported in the result and skipped. A read failure, a missing
// required column, a sink error, or cancellation aborts the import and rolls
// it back; the partial result is returned alongside the error.
func (s *Service) Import(ctx context.Context, tableKey, fileName string, src io.ReadCloser, opts OpenOptions) (*ImportResult, error) {
	if s.sink == nil {
		src.Close()
		return nil, ErrNoSink
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		src.Close()
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	importID := uuid.New()
	logger := logging.WithFields(ctx,
		"import_id", importID.String(),
		"table", tableKey,
		"file", fileName,
	)

	rs, err := s.Open(ctx, tableKey, src, opts)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	result := &ImportResult{
		ImportID: importID.String(),
		TableKey: tableKey,
		FileName: fileName,
	}
	start := time.Now()
	logger.Info("import started")

	fail := func(err error) (*ImportResult, error) {
		result.Error = err.Error()
		result.BytesRead = rs.BytesRead()
		result.Duration = time.Since(start)
		result.Inserted = 0
		logger.Error("import failed",
			"error", err,
			"rows", result.TotalRows,
			"code", MapError(err).Code,
		)
		return result, err
	}

	tx, err := s.sink.BeginImport(ctx, rs.Def, importID)
	if err != nil {
		return fail(fmt.Errorf("begin import: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				logger.Warn("rollback failed", "error", rbErr)
			}
		}
	}()

	batch := make([]Record, 0, s.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := tx.CopyRecords(ctx, batch)
		if err != nil {
			return fmt.Errorf("copy rows: %w", err)
		}
		result.Inserted += int(n)
		batch = batch[:0]
		return nil
	}

	for i := 0; ; i++ {
		if i%ContextCheckInterval == 0 && ctx.Err() != nil {
			return fail(fmt.Errorf("import cancelled: %w", ctx.Err()))
		}

		res, ok := rs.Next()
		if !ok {
			break
		}

		rec, err := res.Get()
		if err != nil {
			if abort := abortImport(err); abort != nil {
				return fail(abort)
			}
			result.TotalRows++
			result.FailedRows = append(result.FailedRows, failedRow(err))
			continue
		}

		result.TotalRows++
		batch = append(batch, rec)
		if len(batch) >= s.opts.BatchSize {
			if err := flush(); err != nil {
				return fail(err)
			}
		}
	}

	if err := flush(); err != nil {
		return fail(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}
	committed = true

	result.Skipped = len(result.FailedRows)
	result.BytesRead = rs.BytesRead()
	result.Duration = time.Since(start)

	if err := s.sink.RecordImport(context.WithoutCancel(ctx), result); err != nil {
		logger.Warn("failed to record import history", "error", err)
	}

	logger.Info("import completed",
		"rows", result.TotalRows,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"duration", result.Duration,
	)
	return result, nil
}

// abortImport returns a non-nil error when a failed row means the rest of
// the file cannot be imported either.
func abortImport(err error) error {
	switch decode.KindOf(err) {
	case decode.KindResource, decode.KindUsage:
		return err
	}
	var de *decode.Error
	if errors.As(err, &de) && errors.Is(de, decode.ErrMissingColumn) {
		return fmt.Errorf("missing required column %q: %w", de.Column, err)
	}
	return nil
}

func failedRow(err error) FailedRow {
	fr := FailedRow{
		Kind:   decode.KindOf(err).String(),
		Reason: err.Error(),
		Code:   MapError(err).Code,
	}
	var de *decode.Error
	if errors.As(err, &de) {
		fr.LineNumber = de.Line
	}
	return fr
}

// WaitForImports blocks until active imports finish or ctx ends.
// Used for graceful shutdown.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
