package transfer

import (
	"bytes"
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

var _ Gateway = (*HTTPGateway)(nil)

// HTTPGateway 呼叫票務系統的 transfer REST API
type HTTPGateway struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	breaker *breaker.Breaker
	log     *zap.Logger
}

func NewHTTPGateway(cfg config.TransferConfig, br config.BreakerConfig) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		// 單次逾時由 breaker 的 context 控制
		hc:      &http.Client{},
		breaker: breaker.New("transfer", br, cfg.Timeout),
		log:     logger.WithComponent("transfer"),
	}
}

type patron struct {
	PatronID string `json:"patronId,omitempty"`
	Email    string `json:"email,omitempty"`
}

type seat struct {
	Section string `json:"section"`
	Row     string `json:"row"`
	Seat    string `json:"seat"`
}

type initiateBody struct {
	Sender    patron `json:"sender"`
	Recipient patron `json:"recipient"`
	EventID   string `json:"eventId,omitempty"`
	Seats     []seat `json:"seats"`
	Reference string `json:"reference"`
}

type initiateReply struct {
	TransferID    string `json:"transferId"`
	AcceptanceURL string `json:"acceptanceUrl"`
}

type acceptReply struct {
	ConfirmationCode string `json:"confirmationCode"`
}

func toPatron(id model.Identity) patron {
	return patron{PatronID: id.PatronID, Email: id.Email}
}

func (g *HTTPGateway) Initiate(ctx context.Context, req InitiateRequest) (*Initiated, error) {
	if req.Sender.PatronID == "" || (req.Recipient.PatronID == "" && req.Recipient.Email == "") {
		return nil, fmt.Errorf("%w: sender patron id and recipient patron id or email are required", apperrors.ErrInvalidInput)
	}

	body := initiateBody{
		Sender:    toPatron(req.Sender),
		Recipient: toPatron(req.Recipient),
		EventID:   req.EventID,
		Seats:     make([]seat, 0, len(req.Seats)),
		Reference: req.Reference,
	}
	for _, s := range req.Seats {
		body.Seats = append(body.Seats, seat{Section: s.Section, Row: s.Row, Seat: s.Seat})
	}

	key := req.IdempotencyKey
	if key == "" {
		key = req.Reference
	}

	var reply initiateReply
	err := breaker.Do(ctx, g.breaker, func(ctx context.Context) error {
		return g.post(ctx, "/v1/transfers", key, body, &reply)
	})
	if err != nil {
		return nil, g.wrap("initiate", req.Reference, err)
	}
	if reply.TransferID == "" {
		return nil, g.wrap("initiate", req.Reference, fmt.Errorf("reply without transfer id"))
	}

	return &Initiated{TransferID: reply.TransferID, AcceptanceURL: reply.AcceptanceURL}, nil
}

func (g *HTTPGateway) Accept(ctx context.Context, transferID string) (string, error) {
	var reply acceptReply
	err := breaker.Do(ctx, g.breaker, func(ctx context.Context) error {
		return g.post(ctx, "/v1/transfers/"+url.PathEscape(transferID)+"/accept", "accept-"+transferID, nil, &reply)
	})
	if err != nil {
		return "", g.wrap("accept", transferID, err)
	}
	if reply.ConfirmationCode == "" {
		return "", g.wrap("accept", transferID, fmt.Errorf("reply without confirmation code"))
	}

	return reply.ConfirmationCode, nil
}

func (g *HTTPGateway) Cancel(ctx context.Context, transferID string) error {
	err := breaker.Do(ctx, g.breaker, func(ctx context.Context) error {
		return g.post(ctx, "/v1/transfers/"+url.PathEscape(transferID)+"/cancel", "", nil, nil)
	})
	if err != nil {
		return g.wrap("cancel", transferID, err)
	}
	return nil
}

func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, in, out interface{}) error {
	var reader io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("json.Marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("http.NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.hc.Do(req)
	if err != nil {
		return fmt.Errorf("http.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if isRejection(resp.StatusCode) {
			return breaker.Reject(err)
		}
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("json.Decode: %v", err)
	}
	return nil
}

func (g *HTTPGateway) wrap(op, ref string, err error) error {
	g.log.Warn("transfer call failed", zap.String("op", op), zap.String("ref", ref), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", apperrors.ErrTransferFailure, op, err)
}

// isRejection 4xx 代表對方正常運作但拒絕請求，408 與 429 除外
func isRejection(status int) bool {
	return status >= 400 && status < 500 &&
		status != http.StatusRequestTimeout && status != http.StatusTooManyRequests
}
