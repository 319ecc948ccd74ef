package matcher_test

import (
	"context"
	"fmt"
	"testing"

	"ticket-exchange/internal/catalog/mocks"
	"ticket-exchange/internal/matcher"
	"ticket-exchange/internal/model"
	apperrors "ticket-exchange/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Arena  Event", "arenaevent"},
		{"arena event", "arenaevent"},
		{"  Café Théâtre ", "cafetheatre"},
		{"fall concert!", "fallconcert"},
		{"Game #3 (2025)", "game32025"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, matcher.Normalize(tt.in))
		})
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 100, matcher.Ratio("fallconcert", "fallconcert"))
	assert.Equal(t, 90, matcher.Ratio("abcdefghij", "abcdefghix"))
	assert.Equal(t, 89, matcher.Ratio("abcdefghi", "abcdefghx"))
	assert.Equal(t, 89, matcher.Ratio("examplearena", "theexamplearena"))
	assert.Equal(t, 0, matcher.Ratio("", "arena"))
	assert.Equal(t, matcher.Ratio("abc", "abd"), matcher.Ratio("abd", "abc"))
}

func TestParseDateTime(t *testing.T) {
	iso, err := matcher.ParseDateTime("2025-10-18T19:00:00")
	require.NoError(t, err)
	assert.Equal(t, 18, iso.Day())
	assert.Equal(t, 19, iso.Hour())

	loose, err := matcher.ParseDateTime("10/18/2025 19:00")
	require.NoError(t, err)
	assert.Equal(t, 2025, loose.Year())
	assert.Equal(t, 18, loose.Day())

	_, err = matcher.ParseDateTime("not a date")
	assert.Error(t, err)
}

func TestBest_ScenarioDayOnlyAndVenueSubstring(t *testing.T) {
	sub := model.EventSubmission{Name: "Fall Concert", Venue: "Example Arena", DateTime: "2025-10-18T19:00:00"}
	candidates := []model.EventCandidate{
		{ID: "E1", Name: "fall concert!", Venue: "The Example Arena", Date: "2025-10-18T20:30:00"},
	}

	matched, err := matcher.Best(sub, candidates)

	require.NoError(t, err)
	assert.Equal(t, "E1", matched.EventID)
	assert.Equal(t, 100, matched.NameScore)
	assert.Equal(t, 100, matched.VenueScore)
}

func TestBest_VenueContainment(t *testing.T) {
	const day = "2025-10-18T19:00:00"
	tests := []struct {
		name      string
		submitted string
		candidate string
		wantMatch bool
	}{
		{"CandidateInsideSubmitted", "The Example University Arena Hall", "Arena", true},
		{"SubmittedInsideCandidate", "Example Arena", "The Example University Example Arena", true},
		{"ShortSubmittedRejected", "A", "Example University Arena", false},
		{"ShortWordRejected", "Hall", "Example Concert Hall", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := model.EventSubmission{Name: "Fall Concert", Venue: tt.submitted, DateTime: day}
			candidates := []model.EventCandidate{{ID: "E1", Name: "Fall Concert", Venue: tt.candidate, Date: day}}

			matched, err := matcher.Best(sub, candidates)

			if !tt.wantMatch {
				assert.ErrorIs(t, err, apperrors.ErrNoMatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 100, matched.VenueScore)
		})
	}
}

func TestBest_ThresholdIsInclusive(t *testing.T) {
	candidates := []model.EventCandidate{
		{ID: "E90", Name: "abcdefghix", Venue: "abcdefghix", Date: "2025-10-18"},
	}

	matched, err := matcher.Best(model.EventSubmission{Name: "abcdefghij", Venue: "abcdefghij", DateTime: "2025-10-18"}, candidates)

	require.NoError(t, err)
	assert.Equal(t, 90, matched.NameScore)
	assert.Equal(t, 90, matched.VenueScore)
}

func TestBest_RejectsBelowThreshold(t *testing.T) {
	candidates := []model.EventCandidate{
		{ID: "E89", Name: "abcdefghx", Venue: "Arena", Date: "2025-10-18"},
	}

	_, err := matcher.Best(model.EventSubmission{Name: "abcdefghi", Venue: "Arena", DateTime: "2025-10-18"}, candidates)

	assert.ErrorIs(t, err, apperrors.ErrNoMatch)
}

func TestBest_RejectsOtherDay(t *testing.T) {
	candidates := []model.EventCandidate{
		{ID: "E1", Name: "Fall Concert", Venue: "Arena", Date: "2025-10-19T19:00:00"},
		{ID: "E2", Name: "Fall Concert", Venue: "Arena", Date: "garbage"},
	}

	_, err := matcher.Best(model.EventSubmission{Name: "Fall Concert", Venue: "Arena", DateTime: "2025-10-18T19:00:00"}, candidates)

	assert.ErrorIs(t, err, apperrors.ErrNoMatch)
}

func TestBest_HighestSumWinsAndTiesKeepFirst(t *testing.T) {
	sub := model.EventSubmission{Name: "abcdefghij", Venue: "Arena", DateTime: "2025-10-18"}
	candidates := []model.EventCandidate{
		{ID: "tie-1", Name: "abcdefghix", Venue: "Arena", Date: "2025-10-18"},
		{ID: "tie-2", Name: "abcdefghiy", Venue: "Arena", Date: "2025-10-18"},
		{ID: "best", Name: "abcdefghij", Venue: "Arena", Date: "2025-10-18"},
		{ID: "later", Name: "abcdefghij", Venue: "Arena", Date: "2025-10-18"},
	}

	matched, err := matcher.Best(sub, candidates[:2])
	require.NoError(t, err)
	assert.Equal(t, "tie-1", matched.EventID)

	matched, err = matcher.Best(sub, candidates)
	require.NoError(t, err)
	assert.Equal(t, "best", matched.EventID)
}

func TestMatcher_Match(t *testing.T) {
	ctx := context.Background()
	sub := model.EventSubmission{Name: "Fall Concert", Venue: "Example Arena", DateTime: "2025-10-18T19:00:00"}

	t.Run("Success", func(t *testing.T) {
		src := mocks.NewSourceMock()
		src.On("ListEvents", mock.Anything, "P-1", "F25").Return([]model.EventCandidate{
			{ID: "E1", Name: "Fall Concert", Venue: "Example Arena", Date: "2025-10-18T19:00:00"},
		}, nil)

		matched, err := matcher.New(src, "F25").Match(ctx, sub, "P-1")

		require.NoError(t, err)
		assert.Equal(t, "E1", matched.EventID)
		src.AssertExpectations(t)
	})

	t.Run("CatalogUnavailable", func(t *testing.T) {
		src := mocks.NewSourceMock()
		src.On("ListEvents", mock.Anything, "P-1", "F25").
			Return(nil, fmt.Errorf("%w: timeout", apperrors.ErrCatalogUnavailable))

		_, err := matcher.New(src, "F25").Match(ctx, sub, "P-1")

		assert.ErrorIs(t, err, apperrors.ErrCatalogUnavailable)
	})

	t.Run("MissingPatron", func(t *testing.T) {
		src := mocks.NewSourceMock()

		_, err := matcher.New(src, "F25").Match(ctx, sub, "")

		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		src.AssertNotCalled(t, "ListEvents", mock.Anything, mock.Anything, mock.Anything)
	})
}
