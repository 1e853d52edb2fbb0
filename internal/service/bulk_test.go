package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/noah-isme/school-records-api/internal/models"
)

func TestChunkSplitsInOrder(t *testing.T) {
	chunks := chunk([]int{1, 2, 3, 4, 5}, 2)
	require.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks)

	require.Empty(t, chunk([]int{}, 2))
	require.Len(t, chunk(make([]int, DefaultBulkChunkSize+1), 0), 2)
}

func TestCommitChunksStopsAtFirstFailure(t *testing.T) {
	tracer := otel.Tracer("test")
	var seen [][]int
	write := func(_ context.Context, rows []int) (int, error) {
		if rows[0] == 5 {
			return 0, errors.New("constraint violated")
		}
		seen = append(seen, rows)
		return len(rows), nil
	}

	written, err := commitChunks(context.Background(), tracer, testLogger(), bulkKindMarks, []int{1, 2, 3, 4, 5, 6, 7}, 2, write)
	require.EqualError(t, err, "constraint violated")
	require.Equal(t, 4, written)
	require.Equal(t, [][]int{{1, 2}, {3, 4}}, seen)
}

func TestCommitChunksHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	written, err := commitChunks(ctx, otel.Tracer("test"), testLogger(), bulkKindMonitoring, []int{1, 2}, 1, func(context.Context, []int) (int, error) {
		calls++
		return 1, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, written)
	require.Zero(t, calls)
}

func TestRowErrorPrefixesRowNumber(t *testing.T) {
	require.Equal(t, `Row 3: student "X" not found`, rowError(3, "student \"%s\" not found", "X").Message)
}

func TestPreloadBoundsEveryLookup(t *testing.T) {
	keys := make([]string, 0, 2*DefaultBulkChunkSize+20)
	for i := 0; i < 2*DefaultBulkChunkSize+10; i++ {
		keys = append(keys, fmt.Sprintf("S-%d", i))
	}
	keys = append(keys, "S-1", "S-2", "", "S-3")

	var batches []int
	find := func(_ context.Context, ids []string) ([]models.Student, error) {
		batches = append(batches, len(ids))
		found := make([]models.Student, 0, len(ids))
		for _, id := range ids {
			if id == "S-7" || id == "S-1009" {
				found = append(found, models.Student{ID: id})
			}
		}
		return found, nil
	}

	students, err := preload(context.Background(), keys, find, func(s models.Student) string { return s.ID })
	require.NoError(t, err)
	require.Equal(t, []int{DefaultBulkChunkSize, DefaultBulkChunkSize, 10}, batches)
	require.Len(t, students, 2)
	require.Contains(t, students, "S-1009")
}

func TestPreloadStopsOnLookupFailure(t *testing.T) {
	calls := 0
	_, err := preload(context.Background(), []uint{1, 2}, func(context.Context, []uint) ([]models.Subject, error) {
		calls++
		return nil, errors.New("connection reset")
	}, func(s models.Subject) uint { return s.ID })
	require.EqualError(t, err, "connection reset")
	require.Equal(t, 1, calls)

	empty, err := preload(context.Background(), nil, func(context.Context, []uint) ([]models.Subject, error) {
		t.Fatal("no lookup expected for an empty key set")
		return nil, nil
	}, func(s models.Subject) uint { return s.ID })
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestReconcileRowsKeepsInputOrder(t *testing.T) {
	rows := []bulkRow{
		{row: 1, studentID: "A"},
		{row: 2, shapeError: "score must be a number"},
		{row: 3, studentID: "B"},
		{row: 4, studentID: "C"},
	}
	accepted, rejected := reconcileRows(rows, func(r bulkRow) (string, string) {
		if r.studentID == "B" {
			return "", "student \"B\" not found"
		}
		return r.studentID, ""
	})
	require.Equal(t, []string{"A", "C"}, accepted)
	require.Equal(t, []string{
		"Row 2: score must be a number",
		`Row 3: student "B" not found`,
	}, messages(rejected))
}
