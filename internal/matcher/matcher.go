package matcher

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"ticket-exchange/internal/catalog"
	"ticket-exchange/internal/model"
	"ticket-exchange/internal/monitoring"
	apperrors "ticket-exchange/pkg/app_errors"
	"ticket-exchange/pkg/logger"

	"go.uber.org/zap"
)

const (
	// Threshold 名稱與場館分數都要達到的最低分
	Threshold    = 90
	perfectScore = 200
)

// Matcher 將使用者提交的活動與票務系統目錄比對
type Matcher struct {
	source     catalog.Source
	seasonCode string
	log        *zap.Logger
}

func New(source catalog.Source, seasonCode string) *Matcher {
	return &Matcher{
		source:     source,
		seasonCode: seasonCode,
		log:        logger.WithComponent("matcher"),
	}
}

// Match 取得 patron 本季的活動清單並挑出最佳候選
func (m *Matcher) Match(ctx context.Context, sub model.EventSubmission, patronID string) (*model.MatchedEvent, error) {
	if strings.TrimSpace(patronID) == "" {
		return nil, fmt.Errorf("%w: patron id is required", apperrors.ErrInvalidInput)
	}
	if _, err := ParseDateTime(sub.DateTime); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	candidates, err := m.source.ListEvents(ctx, patronID, m.seasonCode)
	if err != nil {
		monitoring.TrackEventMatch("catalog_unavailable")
		return nil, err
	}

	matched, err := Best(sub, candidates)
	if err != nil {
		monitoring.TrackEventMatch("no_match")
		m.log.Info("no event matched",
			zap.String("name", sub.Name),
			zap.String("venue", sub.Venue),
			zap.String("datetime", sub.DateTime),
			zap.Int("candidates", len(candidates)),
		)
		return nil, err
	}

	monitoring.TrackEventMatch("matched")
	m.log.Debug("event matched",
		zap.String("event_id", matched.EventID),
		zap.Int("name_score", matched.NameScore),
		zap.Int("venue_score", matched.VenueScore),
	)
	return matched, nil
}

// Best 線性掃描候選活動：日期需同一天，名稱與場館分數皆 >= Threshold，取總分最高者；
// 同分保留先出現的，滿分立即結束
func Best(sub model.EventSubmission, candidates []model.EventCandidate) (*model.MatchedEvent, error) {
	target, err := ParseDateTime(sub.DateTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	name := Normalize(sub.Name)
	venue := Normalize(sub.Venue)

	var (
		best      *model.MatchedEvent
		bestScore int
	)
	for _, c := range candidates {
		date, err := ParseDateTime(c.Date)
		if err != nil {
			continue
		}
		if !sameDay(date, target) {
			continue
		}

		candidateVenue := Normalize(c.Venue)
		nameScore := Ratio(name, Normalize(c.Name))
		venueScore := Ratio(venue, candidateVenue)
		if venueScore < Threshold && venueContains(venue, candidateVenue) {
			venueScore = 100
		}
		if nameScore < Threshold || venueScore < Threshold {
			continue
		}

		if total := nameScore + venueScore; total > bestScore {
			bestScore = total
			best = &model.MatchedEvent{
				EventID:    c.ID,
				Name:       c.Name,
				Venue:      c.Venue,
				Date:       date,
				NameScore:  nameScore,
				VenueScore: venueScore,
			}
		}
		if bestScore == perfectScore {
			break
		}
	}

	if best == nil {
		return nil, apperrors.ErrNoMatch
	}
	return best, nil
}

// minVenueContainment 提交場館被候選場館包含時，正規化後至少要有的字元數
const minVenueContainment = 6

// venueContains 場館名稱部分相符。候選名稱出現在提交名稱中一律成立，
// 反方向需提交名稱夠長，否則 "A" 或 "Hall" 會吃下任何場館
func venueContains(submitted, candidate string) bool {
	if submitted == "" || candidate == "" {
		return false
	}
	if strings.Contains(submitted, candidate) {
		return true
	}
	return utf8.RuneCountInString(submitted) >= minVenueContainment && strings.Contains(candidate, submitted)
}
