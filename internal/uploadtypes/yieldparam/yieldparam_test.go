package yieldparam

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"massupload/internal/store"
	"massupload/internal/upload"
	"massupload/internal/upload/uploadtest"
)

var started = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

type fixture struct {
	repo     *store.YieldParameterRepository
	pipeline *upload.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := store.NewYieldParameterRepository(db)
	registry, err := upload.NewRegistry(Definition(repo))
	require.NoError(t, err)
	return &fixture{
		repo:     repo,
		pipeline: upload.NewPipeline(registry, upload.WithClock(func() time.Time { return started })),
	}
}

func (fx *fixture) run(t *testing.T, rows ...[]any) *upload.Result {
	t.Helper()
	run, err := fx.pipeline.Run(context.Background(), uploadtest.Workbook(t, rows...), upload.Request{Type: Type, User: "jdoe"})
	require.NoError(t, err)
	return run.Result
}

var header = uploadtest.Row("UPLOAD_ACTION", "PART_12NC", "SITE", "EFFECTIVE_DATE", "PARAMETER_VALUE")

func TestFutureAddIsInserted(t *testing.T) {
	fx := newFixture(t)
	res := fx.run(t, header, uploadtest.Row("ADD_ONLY", "12345", "ATKH", "2099-01-01", "3.5"))

	counts := res.Counts()
	assert.Equal(t, 1, counts.Insert)
	assert.Equal(t, 1, counts.Success)
	assert.Zero(t, counts.Error)
	assert.Equal(t, 1, counts.Warning, "short 12NC is padded")

	got, err := fx.repo.Get(context.Background(), store.YieldParameterKey{
		Part12NC: "000000012345", Site: "ATKH", EffectiveDate: time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 3.5, got.ParameterValue)
	assert.Equal(t, "jdoe", got.UpdatedBy)
}

func TestPastDeleteIsRejected(t *testing.T) {
	fx := newFixture(t)
	res := fx.run(t, header, uploadtest.Row("DELETE", "12345", "ATKH", "2000-01-01", "3.5"))

	counts := res.Counts()
	assert.Equal(t, 1, counts.Error)
	assert.Zero(t, counts.Success)
	assert.Equal(t, []int{2}, res.ErrorRows())
	assert.Contains(t, res.ErrorMessages()[0], "2000-01-01")
}

func TestIdenticalRowsLoadOnce(t *testing.T) {
	fx := newFixture(t)
	res := fx.run(t, header,
		uploadtest.Row("ADD_ONLY", "12345", "ATKH", "2099-01-01", 3.5),
		uploadtest.Row("ADD_ONLY", "12345", "ATKH", "2099-01-01", 3.5))

	counts := res.Counts()
	assert.Equal(t, 1, counts.Duplicate)
	assert.Equal(t, 1, counts.Insert)
	assert.Contains(t, res.ErrorMessages(), "Row 3: duplicate of row 2")
}

func TestDuplicatedRequiredHeader(t *testing.T) {
	fx := newFixture(t)
	res := fx.run(t,
		uploadtest.Row("UPLOAD_ACTION", "PART_12NC", "SITE", "EFFECTIVE_DATE", "PARAMETER_VALUE", "SITE"),
		uploadtest.Row("ADD_ONLY", "12345", "ATKH", "2099-01-01", "3.5", "ATKH"))

	assert.True(t, res.Critical())
	require.Len(t, res.ErrorMessages(), 1)
	assert.Contains(t, res.ErrorMessages()[0], "SITE")
	assert.Zero(t, res.Counts().Success)
}

func TestExistingKeyIsReportedAsConflict(t *testing.T) {
	fx := newFixture(t)
	fx.run(t, header, uploadtest.Row("ADD_ONLY", "000000012345", "ATKH", "2099-01-01", 3.5))

	res := fx.run(t, header,
		uploadtest.Row("ADD_ONLY", "000000012345", "ATKH", "2099-01-01", 4),
		uploadtest.Row("CHANGE_ONLY", "000000012345", "ATKH", "2099-02-01", 4),
		uploadtest.Row("ADD_OR_CHANGE", "000000012345", "ATKH", "2099-01-01", 5),
		uploadtest.Row("DELETE", "000000012345", "ATKH", "2099-01-01", 0))

	counts := res.Counts()
	assert.Equal(t, 2, counts.Ignore)
	assert.Equal(t, 1, counts.Update)
	assert.Equal(t, 1, counts.Delete)
	assert.Equal(t, []string{
		"Row 2: could not add the record: it already exists",
		"Row 3: could not change the record: it does not exist",
	}, res.ErrorMessages())
}

func TestTransformRules(t *testing.T) {
	tests := []struct {
		name     string
		row      []any
		errors   int
		warnings int
	}{
		{"valid", uploadtest.Row("ADD_ONLY", "000000012345", "atkh", "2099-01-01", 50), 0, 0},
		{"today is allowed for add", uploadtest.Row("ADD_ONLY", "000000012345", "ATKH", "2026-03-10", 50), 0, 0},
		{"yesterday is not", uploadtest.Row("ADD_ONLY", "000000012345", "ATKH", "2026-03-09", 50), 1, 0},
		{"today is not allowed for delete", uploadtest.Row("DELETE", "000000012345", "ATKH", "2026-03-10", 50), 1, 0},
		{"value above range", uploadtest.Row("ADD_ONLY", "000000012345", "ATKH", "2099-01-01", 101), 1, 0},
		{"bad site", uploadtest.Row("ADD_ONLY", "000000012345", "A-1", "2099-01-01", 1), 1, 0},
		{"bad part", uploadtest.Row("ADD_ONLY", "ABC", "ATKH", "2099-01-01", 1), 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newFixture(t).run(t, header, tt.row)
			counts := res.Counts()
			assert.Equal(t, tt.errors, counts.Error, res.ErrorMessages())
			assert.Equal(t, tt.warnings, counts.Warning, res.WarningMessages())
			assert.Equal(t, 1-tt.errors, counts.Success)
		})
	}
}

func TestOptionalColumns(t *testing.T) {
	fx := newFixture(t)
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	res := fx.run(t,
		uploadtest.Row("PART_12NC", "SITE", "EFFECTIVE_DATE", "PARAMETER_VALUE", "PRECISE_VALUE", "LOT_SIZE", "COMMENT", "PART_DESCRIPTION"),
		uploadtest.Row("000000012345", "ATKH", "2099-01-01", 3.5, "3.5000001", 500, string(long), "ignored"),
		uploadtest.Row("000000012346", "ATKH", "2099-01-01", 3.5, "3.6", nil, nil, nil),
		uploadtest.Row("000000012347", "ATKH", "2099-01-01", 3.5, nil, -1, nil, nil))

	assert.Equal(t, 2, res.Counts().Insert)
	assert.Equal(t, []int{2, 3}, res.WarningRows())
	assert.Equal(t, []int{4}, res.ErrorRows())

	got, err := fx.repo.Get(context.Background(), store.YieldParameterKey{
		Part12NC: "000000012345", Site: "ATKH", EffectiveDate: time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "3.5000001", got.PreciseValue.Decimal.String())
	assert.Equal(t, int64(500), got.LotSize.Int64)
	assert.Len(t, got.Comment.String, maxCommentLength)
}
