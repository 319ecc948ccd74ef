package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ticket-exchange/config"
	"ticket-exchange/internal/breaker"
	"ticket-exchange/internal/model"
	apperrors "ticket-exchange/pkg/app_errors"
	"ticket-exchange/pkg/logger"

	"go.uber.org/zap"
)

// Source 票務系統活動目錄：某 patron 在某季的活動清單
type Source interface {
	ListEvents(ctx context.Context, patronID, seasonCode string) ([]model.EventCandidate, error)
}

type HTTPSource struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	breaker *breaker.Breaker
	log     *zap.Logger
}

func NewHTTPSource(cfg config.CatalogConfig, br config.BreakerConfig) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		hc:      &http.Client{},
		breaker: breaker.New("catalog", br, cfg.Timeout),
		log:     logger.WithComponent("catalog"),
	}
}

func (s *HTTPSource) ListEvents(ctx context.Context, patronID, seasonCode string) ([]model.EventCandidate, error) {
	endpoint := fmt.Sprintf("%s/v1/patrons/%s/events?season=%s",
		s.baseURL, url.PathEscape(patronID), url.QueryEscape(seasonCode))

	events, err := breaker.Call(ctx, s.breaker, func(ctx context.Context) ([]model.EventCandidate, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("http.NewRequest: %v", err)
		}
		req.Header.Set("Accept", "application/json")
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}

		resp, err := s.hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http.Do: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}

		var out []model.EventCandidate
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("json.Decode: %v", err)
		}
		return out, nil
	})
	if err != nil {
		s.log.Warn("catalog fetch failed", zap.String("patron_id", patronID), zap.String("season", seasonCode), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCatalogUnavailable, err)
	}

	return events, nil
}
