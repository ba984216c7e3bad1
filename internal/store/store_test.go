package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/kgex/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	n := 0
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.newID = func() string {
		n++
		return fmt.Sprintf("run-%d", n)
	}
	s.now = func() time.Time { return base.Add(time.Duration(n) * time.Minute) }
	return s
}

func sampleRecords() []model.KnowledgeRecord {
	return []model.KnowledgeRecord{
		{
			Sentence: "The gear drives the shaft via a coupling.",
			Entities: []string{"the gear", "the shaft", "a coupling"},
			Facts: []model.Fact{
				{Head: "the gear", Relation: "drives", Tail: "the shaft"},
				{Head: "the shaft", Relation: "via", Tail: "a coupling"},
			},
		},
		{
			Sentence: "A housing for the gear.",
			Entities: []string{"a housing", "the gear"},
			Facts:    []model.Fact{},
		},
		{
			Sentence: "The coupling wherein the gear is steel.",
			Entities: []string{"the coupling", "the gear", "steel"},
			Facts: []model.Fact{
				{Head: "the gear", Relation: "is", Tail: "steel"},
			},
		},
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"runs", "records", "entities", "facts"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found", table)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kgex.db")

	s, err := OpenFromConfig(model.StoreConfig{Enabled: true, Path: path})
	require.NoError(t, err)
	_, err = s.SaveRun(context.Background(), "file", sampleRecords())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	stats, err := reopened.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Runs)
	assert.Equal(t, path, reopened.Path())
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestSaveRun_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.SaveRun(ctx, "US7654321", sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, 3, run.Records)
	assert.Equal(t, 3, run.Facts)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Source, got.Source)
	assert.Equal(t, 3, got.Records)
	assert.Equal(t, 3, got.Facts)
	assert.True(t, got.CreatedAt.Equal(run.CreatedAt))

	records, err := s.Records(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), records)
}

func TestSaveRun_Empty(t *testing.T) {
	s := newTestStore(t)

	run, err := s.SaveRun(context.Background(), "empty", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, run.Records)

	records, err := s.Records(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = s.Records(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	assert.ErrorIs(t, s.DeleteRun(context.Background(), "missing"), ErrRunNotFound)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, src := range []string{"a", "b", "c"} {
		_, err := s.SaveRun(ctx, src, sampleRecords()[:1])
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].Source)
	assert.Equal(t, "b", runs[1].Source)
	assert.Equal(t, 2, runs[0].Facts)
}

func TestListFacts_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SaveRun(ctx, "US1", sampleRecords())
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, "US2", []model.KnowledgeRecord{{
		Sentence: "The Motor_1 drives 50% of the load.",
		Entities: []string{"the motor_1", "the load"},
		Facts:    []model.Fact{{Head: "The Motor_1", Relation: "Drives", Tail: "the load"}},
	}})
	require.NoError(t, err)

	tests := []struct {
		name string
		opts ListOpts
		want []string
	}{
		{"all in order", ListOpts{}, []string{"drives", "via", "is", "Drives"}},
		{"entity substring", ListOpts{Entity: "GEAR"}, []string{"drives", "is"}},
		{"entity matches tail", ListOpts{Entity: "coupling"}, []string{"via"}},
		{"underscore is literal", ListOpts{Entity: "r_1"}, []string{"Drives"}},
		{"percent is literal", ListOpts{Entity: "%"}, nil},
		{"relation ignores case", ListOpts{Relation: "DRIVES"}, []string{"drives", "Drives"}},
		{"by run", ListOpts{RunID: first.ID, Relation: "drives"}, []string{"drives"}},
		{"by source", ListOpts{Source: "US2"}, []string{"Drives"}},
		{"limit and offset", ListOpts{Limit: 2, Offset: 1}, []string{"via", "is"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts, err := s.ListFacts(ctx, tt.opts)
			require.NoError(t, err)

			var got []string
			for _, f := range facts {
				got = append(got, f.Relation)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	facts, err := s.ListFacts(ctx, ListOpts{Relation: "via"})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "US1", facts[0].Source)
	assert.Equal(t, first.ID, facts[0].RunID)
	assert.Equal(t, "The gear drives the shaft via a coupling.", facts[0].Sentence)
	assert.Equal(t, []string{"the shaft", "via", "a coupling"}, facts[0].Triple())
}

func TestDeleteRun_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.SaveRun(ctx, "US1", sampleRecords())
	require.NoError(t, err)
	require.NoError(t, s.DeleteRun(ctx, run.ID))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, stats)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SaveRun(ctx, "US1", sampleRecords())
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, "US2", sampleRecords()[2:])
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Runs)
	assert.Equal(t, int64(4), stats.Records)
	assert.Equal(t, int64(6), stats.Entities)
	assert.Equal(t, int64(4), stats.Facts)
	assert.Equal(t, []model.RelationCount{
		{Relation: "is", Count: 2},
		{Relation: "drives", Count: 1},
		{Relation: "via", Count: 1},
	}, stats.TopRelations)
}
