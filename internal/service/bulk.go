package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/observability"
)

// DefaultBulkChunkSize bounds how many rows share one transaction.
const DefaultBulkChunkSize = 500

const (
	bulkKindMarks      = "marks"
	bulkKindMonitoring = "monitoring"
)

// bulkRow carries the coerced fields every bulk entry shares. A non-empty
// shapeError rejects the row before any reference lookup.
type bulkRow struct {
	row        int
	shapeError string
	studentID  string
	subjectID  uint
	score      float64
}

func (r bulkRow) base() bulkRow { return r }

type reconcilable interface {
	base() bulkRow
}

// bulkReferences indexes the students and subjects named by a batch.
type bulkReferences struct {
	students map[string]models.Student
	subjects map[uint]models.Subject
}

func rowError(row int, format string, args ...interface{}) dto.BulkRowError {
	return dto.BulkRowError{Message: fmt.Sprintf("Row %d: ", row) + fmt.Sprintf(format, args...)}
}

// reconcileRows walks rows in input order. Rows with a shape error are
// rejected as is; the rest go through accept, which returns the model to
// write or a rejection message.
func reconcileRows[R reconcilable, M any](rows []R, accept func(R) (M, string)) ([]M, []dto.BulkRowError) {
	accepted := make([]M, 0, len(rows))
	rejected := make([]dto.BulkRowError, 0)
	for _, r := range rows {
		base := r.base()
		if base.shapeError != "" {
			rejected = append(rejected, rowError(base.row, "%s", base.shapeError))
			continue
		}
		model, rejection := accept(r)
		if rejection != "" {
			rejected = append(rejected, rowError(base.row, "%s", rejection))
			continue
		}
		accepted = append(accepted, model)
	}
	return accepted, rejected
}

// checkStudent resolves the row's student and applies the optional grade scope.
func checkStudent(refs bulkReferences, r bulkRow, gradeFilter *uint) (models.Student, string) {
	student, ok := refs.students[r.studentID]
	if !ok {
		return student, fmt.Sprintf("student \"%s\" not found", r.studentID)
	}
	if gradeFilter != nil && (student.GradeID == nil || *student.GradeID != *gradeFilter) {
		return student, fmt.Sprintf("student \"%s\" not in selected grade", r.studentID)
	}
	return student, ""
}

// validKeys collects one key per row that passed coercion.
func validKeys[R reconcilable, K comparable](rows []R, key func(R) K) []K {
	keys := make([]K, 0, len(rows))
	for _, r := range rows {
		if r.base().shapeError == "" {
			keys = append(keys, key(r))
		}
	}
	return keys
}

// loadBulkReferences preloads the students and subjects named by rows.
func loadBulkReferences[R reconcilable](
	ctx context.Context,
	students studentFinder,
	subjects subjectFinder,
	rows []R,
) (bulkReferences, error) {
	var refs bulkReferences
	var err error
	refs.students, err = preload(ctx,
		validKeys(rows, func(r R) string { return r.base().studentID }),
		students.FindByIDs,
		func(s models.Student) string { return s.ID },
	)
	if err != nil {
		return refs, err
	}
	refs.subjects, err = preload(ctx,
		validKeys(rows, func(r R) uint { return r.base().subjectID }),
		subjects.FindByIDs,
		func(s models.Subject) uint { return s.ID },
	)
	return refs, err
}

type studentFinder interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Student, error)
}

type subjectFinder interface {
	FindByIDs(ctx context.Context, ids []uint) ([]models.Subject, error)
}

// preload fetches the records behind keys and indexes them by key. Keys are
// deduplicated and sent in slices of at most DefaultBulkChunkSize so a large
// batch never exceeds the driver's bind variable limit.
func preload[K comparable, V any](
	ctx context.Context,
	keys []K,
	find func(context.Context, []K) ([]V, error),
	keyOf func(V) K,
) (map[K]V, error) {
	var zero K
	seen := make(map[K]struct{}, len(keys))
	unique := make([]K, 0, len(keys))
	for _, k := range keys {
		if k == zero {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, k)
	}

	found := make(map[K]V, len(unique))
	for _, batch := range chunk(unique, DefaultBulkChunkSize) {
		records, err := find(ctx, batch)
		if err != nil {
			return found, err
		}
		for _, record := range records {
			found[keyOf(record)] = record
		}
	}
	return found, nil
}

func chunk[T any](rows []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBulkChunkSize
	}
	chunks := make([][]T, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

// commitChunks writes accepted rows chunk by chunk, in input order. The first
// failing chunk stops the import; chunks committed before it stay committed
// and their row count is returned with the error.
func commitChunks[T any](
	ctx context.Context,
	tracer trace.Tracer,
	logger zerolog.Logger,
	kind string,
	rows []T,
	size int,
	write func(context.Context, []T) (int, error),
) (int, error) {
	written := 0
	chunks := chunk(rows, size)

	for index, batch := range chunks {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		chunkCtx, span := tracer.Start(ctx, "bulk.commit_chunk", trace.WithAttributes(
			attribute.String("bulk.kind", kind),
			attribute.Int("bulk.chunk", index),
			attribute.Int("bulk.rows", len(batch)),
		))
		started := time.Now()
		count, err := write(chunkCtx, batch)
		observability.BulkChunkDuration().WithLabelValues(kind).Observe(time.Since(started).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "chunk commit failed")
			span.End()
			logger.Error().
				Err(err).
				Str("kind", kind).
				Int("chunk", index).
				Int("chunks", len(chunks)).
				Int("committed_rows", written).
				Msg("bulk chunk failed, earlier chunks remain committed")
			return written, err
		}
		span.End()

		written += count
		observability.BulkRows().WithLabelValues(kind, "committed").Add(float64(count))
	}

	return written, nil
}

func recordBulkOutcome(kind string, accepted, rejected int) {
	observability.BulkRows().WithLabelValues(kind, "accepted").Add(float64(accepted))
	observability.BulkRows().WithLabelValues(kind, "rejected").Add(float64(rejected))
}
