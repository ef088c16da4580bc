package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"media-digest-go/internal/model"
)

// testStores returns the memory store and, when MEDIA_DIGEST_TEST_DSN is
// set, a migrated postgres store
func testStores(t *testing.T) map[string]Store {
	stores := map[string]Store{"memory": NewMemoryStore()}

	dsn := os.Getenv("MEDIA_DIGEST_TEST_DSN")
	if dsn == "" {
		return stores
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, Migrate(db, "reset"))
	require.NoError(t, Migrate(db, "up"))
	pg := NewPostgresStoreWithDB(db, 5*time.Second, zap.NewNop())
	t.Cleanup(func() { pg.Close() })
	stores["postgres"] = pg
	return stores
}

func newUnit(externalID string) *model.ContentUnit {
	return &model.ContentUnit{
		ID:         uuid.NewString(),
		Source:     "youtube",
		ExternalID: externalID,
		Title:      "Talk " + externalID,
	}
}

func TestCreateUnitIfAbsent(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, created, err := s.CreateUnitIfAbsent(ctx, newUnit("vid-create"))
			require.NoError(t, err)
			assert.True(t, created)
			assert.Equal(t, model.StepPending, first.CurrentStep)
			assert.Equal(t, model.StatusPending, first.Status)
			assert.Equal(t, model.DefaultMaxRetries, first.MaxRetries)

			second, created, err := s.CreateUnitIfAbsent(ctx, newUnit("vid-create"))
			require.NoError(t, err)
			assert.False(t, created)
			assert.Equal(t, first.ID, second.ID)

			byExternal, err := s.GetUnitByExternalID(ctx, "youtube", "vid-create")
			require.NoError(t, err)
			assert.Equal(t, first.ID, byExternal.ID)
		})
	}
}

func TestCreateUnitIfAbsentConcurrent(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			var createdCount int32
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, created, err := s.CreateUnitIfAbsent(context.Background(), newUnit("vid-race"))
					assert.NoError(t, err)
					if created {
						atomic.AddInt32(&createdCount, 1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), createdCount)
		})
	}
}

func TestUpdateStepErrorHandling(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			unit, _, err := s.CreateUnitIfAbsent(ctx, newUnit("vid-step"))
			require.NoError(t, err)

			failure := &model.ErrorDetails{Subsystem: "transcript", Kind: "no_captions", Message: "none"}
			require.NoError(t, s.UpdateStep(ctx, StepUpdate{
				UnitID:       unit.ID,
				Step:         model.StepFailed,
				Details:      map[string]any{"failed_at": "extracting_transcript"},
				ErrorDetails: failure,
			}))

			got, err := s.GetUnit(ctx, unit.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StepFailed, got.CurrentStep)
			assert.Equal(t, model.StatusFailed, got.Status)
			require.NotNil(t, got.ErrorDetails)
			assert.Equal(t, "no_captions", got.ErrorDetails.Kind)

			// Details replace rather than merge, and errors are kept unless cleared
			require.NoError(t, s.UpdateStep(ctx, StepUpdate{
				UnitID:  unit.ID,
				Step:    model.StepAIProcessing,
				Details: map[string]any{"provider": "openai"},
			}))
			got, err = s.GetUnit(ctx, unit.ID)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"provider": "openai"}, got.StepDetails)
			assert.NotNil(t, got.ErrorDetails)

			require.NoError(t, s.UpdateStep(ctx, StepUpdate{
				UnitID:     unit.ID,
				Step:       model.StepSavingData,
				ClearError: true,
			}))
			got, err = s.GetUnit(ctx, unit.ID)
			require.NoError(t, err)
			assert.Nil(t, got.ErrorDetails)
			assert.Empty(t, got.StepDetails)

			err = s.UpdateStep(ctx, StepUpdate{UnitID: uuid.NewString(), Step: model.StepFailed})
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestIncrementRetryCount(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			unit, _, err := s.CreateUnitIfAbsent(ctx, newUnit("vid-retry"))
			require.NoError(t, err)

			// Only failed units are eligible
			ok, err := s.IncrementRetryCount(ctx, unit.ID, 3)
			require.NoError(t, err)
			assert.False(t, ok)

			for i := 1; i <= 3; i++ {
				require.NoError(t, s.UpdateStep(ctx, StepUpdate{
					UnitID:       unit.ID,
					Step:         model.StepFailed,
					ErrorDetails: &model.ErrorDetails{Kind: "no_captions"},
				}))

				ok, err := s.IncrementRetryCount(ctx, unit.ID, 3)
				require.NoError(t, err)
				assert.True(t, ok)

				got, err := s.GetUnit(ctx, unit.ID)
				require.NoError(t, err)
				assert.Equal(t, i, got.RetryCount)
				assert.Equal(t, model.StepPending, got.CurrentStep)
				assert.Nil(t, got.ErrorDetails)
			}

			require.NoError(t, s.UpdateStep(ctx, StepUpdate{UnitID: unit.ID, Step: model.StepFailed}))
			ok, err = s.IncrementRetryCount(ctx, unit.ID, 3)
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := s.GetUnit(ctx, unit.ID)
			require.NoError(t, err)
			assert.False(t, got.CanRetry())

			_, err = s.IncrementRetryCount(ctx, uuid.NewString(), 3)
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestIncrementRetryCountConcurrent(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			unit, _, err := s.CreateUnitIfAbsent(ctx, newUnit("vid-retry-race"))
			require.NoError(t, err)
			require.NoError(t, s.UpdateStep(ctx, StepUpdate{UnitID: unit.ID, Step: model.StepFailed}))

			var allowed int32
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := s.IncrementRetryCount(ctx, unit.ID, 3)
					assert.NoError(t, err)
					if ok {
						atomic.AddInt32(&allowed, 1)
					}
				}()
			}
			wg.Wait()

			// The first winner moves the unit to pending, so the rest are rejected
			assert.Equal(t, int32(1), allowed)
		})
	}
}

func TestTranscriptAndAnalysis(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			unit, _, err := s.CreateUnitIfAbsent(ctx, newUnit("vid-artifacts"))
			require.NoError(t, err)

			_, err = s.GetTranscript(ctx, unit.ID)
			assert.True(t, errors.Is(err, ErrNotFound))

			transcript := &model.Transcript{
				UnitID:        unit.ID,
				RawText:       "um hello hello world",
				ProcessedText: "Hello world",
				Segments:      []model.Segment{{Start: 0, End: 1.5, Text: "hello world"}},
				Type:          model.TranscriptAuto,
				Language:      "en",
			}
			require.NoError(t, s.SaveTranscript(ctx, transcript))
			assert.NotEmpty(t, transcript.ID)

			gotTranscript, err := s.GetTranscript(ctx, unit.ID)
			require.NoError(t, err)
			assert.Equal(t, "Hello world", gotTranscript.ProcessedText)
			assert.Equal(t, model.TranscriptAuto, gotTranscript.Type)
			assert.Len(t, gotTranscript.Segments, 1)

			analysis := &model.AnalysisResult{
				UnitID:       unit.ID,
				Title:        "Greeting",
				Summary:      "Someone says hello.",
				KeyPoints:    []string{"hello", "world"},
				Topics:       []model.Topic{{Name: "greetings", Confidence: 0.9, Keywords: []string{"hi"}}},
				Confidence:   0.8,
				Provider:     "openai",
				Model:        "gpt-4o-mini",
				InputTokens:  100,
				OutputTokens: 50,
				Cost:         0.00045,
				ElapsedTime:  1500 * time.Millisecond,
			}
			require.NoError(t, s.SaveAnalysis(ctx, analysis))

			gotAnalysis, err := s.GetAnalysis(ctx, unit.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"hello", "world"}, gotAnalysis.KeyPoints)
			assert.Equal(t, "greetings", gotAnalysis.Topics[0].Name)
			assert.Equal(t, 1500*time.Millisecond, gotAnalysis.ElapsedTime)
			assert.InDelta(t, 0.00045, gotAnalysis.Cost, 1e-9)

			err = s.SaveTranscript(ctx, &model.Transcript{UnitID: uuid.NewString(), Type: model.TranscriptAuto})
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestListUnits(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	var ids []string
	for _, ext := range []string{"a", "b", "c"} {
		unit, _, err := s.CreateUnitIfAbsent(ctx, newUnit(ext))
		require.NoError(t, err)
		ids = append(ids, unit.ID)
	}
	require.NoError(t, s.UpdateStep(ctx, StepUpdate{UnitID: ids[1], Step: model.StepFailed}))

	all, err := s.ListUnits(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ExternalID)

	failed, err := s.ListUnits(ctx, ListFilter{Step: model.StepFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, ids[1], failed[0].ID)

	page, err := s.ListUnits(ctx, ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ExternalID)

	// Returned units are copies
	all[0].Title = "changed"
	fresh, err := s.GetUnit(ctx, all[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, "changed", fresh.Title)
}
