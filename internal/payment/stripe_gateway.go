package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ticket-exchange/config"
	"ticket-exchange/internal/breaker"
	"ticket-exchange/internal/model"
	apperrors "ticket-exchange/pkg/app_errors"
	"ticket-exchange/pkg/logger"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// StripeGateway 以 manual capture 的 PaymentIntent 實作授權 hold
type StripeGateway struct {
	api     *client.API
	breaker *breaker.Breaker
	log     *zap.Logger
}

func NewStripeGateway(cfg config.PaymentConfig, br config.BreakerConfig) *StripeGateway {
	var backends *stripe.Backends
	if cfg.StripeBaseURL != "" {
		backends = &stripe.Backends{
			API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
				URL:               stripe.String(cfg.StripeBaseURL),
				HTTPClient:        &http.Client{Timeout: cfg.Timeout},
				MaxNetworkRetries: stripe.Int64(0),
			}),
		}
	}

	return &StripeGateway{
		api:     client.New(cfg.StripeSecretKey, backends),
		breaker: breaker.New("payment", br, cfg.Timeout),
		log:     logger.WithComponent("payment"),
	}
}

func (g *StripeGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*model.PaymentAuthorization, error) {
	if req.Amount < 0 || !model.IsCurrencyCode(strings.ToUpper(req.Currency)) {
		return nil, fmt.Errorf("%w: invalid amount %d %s", apperrors.ErrInvalidInput, req.Amount, req.Currency)
	}

	pi, err := breaker.Call(ctx, g.breaker, func(ctx context.Context) (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentParams{
			Amount:        stripe.Int64(req.Amount),
			Currency:      stripe.String(strings.ToLower(req.Currency)),
			CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		}
		params.Context = ctx
		if req.IdempotencyKey != "" {
			params.SetIdempotencyKey(req.IdempotencyKey)
		}
		for k, v := range req.Metadata {
			params.AddMetadata(k, v)
		}
		pi, err := g.api.PaymentIntents.New(params)
		return pi, rejected(err)
	})
	if err != nil {
		return nil, g.wrap("authorize", "", err)
	}

	return toAuthorization(pi), nil
}

func (g *StripeGateway) Capture(ctx context.Context, authorizationID string) (*model.PaymentAuthorization, error) {
	pi, err := breaker.Call(ctx, g.breaker, func(ctx context.Context) (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentCaptureParams{}
		params.Context = ctx
		// 同一授權重複請款由 Stripe 以冪等鍵去重
		params.SetIdempotencyKey("capture-" + authorizationID)
		pi, err := g.api.PaymentIntents.Capture(authorizationID, params)
		return pi, rejected(err)
	})
	if err != nil {
		return nil, g.wrap("capture", authorizationID, err)
	}

	return toAuthorization(pi), nil
}

func (g *StripeGateway) Cancel(ctx context.Context, authorizationID string) (*model.PaymentAuthorization, error) {
	pi, err := breaker.Call(ctx, g.breaker, func(ctx context.Context) (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentCancelParams{}
		params.Context = ctx
		pi, err := g.api.PaymentIntents.Cancel(authorizationID, params)
		return pi, rejected(err)
	})
	if err != nil {
		return nil, g.wrap("cancel", authorizationID, err)
	}

	return toAuthorization(pi), nil
}

func (g *StripeGateway) Get(ctx context.Context, authorizationID string) (*model.PaymentAuthorization, error) {
	pi, err := breaker.Call(ctx, g.breaker, func(ctx context.Context) (*stripe.PaymentIntent, error) {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		pi, err := g.api.PaymentIntents.Get(authorizationID, params)
		return pi, rejected(err)
	})
	if err != nil {
		return nil, g.wrap("get", authorizationID, err)
	}

	return toAuthorization(pi), nil
}

// rejected 卡片被拒、參數錯誤等 4xx 回應不讓斷路器跳開
func rejected(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 &&
		stripeErr.HTTPStatusCode != http.StatusTooManyRequests {
		return breaker.Reject(err)
	}
	return err
}

func (g *StripeGateway) wrap(op, authorizationID string, err error) error {
	fields := []zap.Field{zap.String("op", op), zap.String("authorization_id", authorizationID), zap.Error(err)}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		fields = append(fields,
			zap.Int("http_status", stripeErr.HTTPStatusCode),
			zap.String("stripe_code", string(stripeErr.Code)),
		)
	}
	g.log.Warn("stripe call failed", fields...)

	return fmt.Errorf("%w: %s: %v", apperrors.ErrPaymentFailure, op, err)
}

func toAuthorization(pi *stripe.PaymentIntent) *model.PaymentAuthorization {
	return &model.PaymentAuthorization{
		AuthorizationID: pi.ID,
		Status:          mapStatus(pi.Status),
		Amount:          pi.Amount,
		Currency:        strings.ToUpper(string(pi.Currency)),
		ClientSecret:    pi.ClientSecret,
		CreatedAt:       time.Unix(pi.Created, 0).UTC(),
	}
}

func mapStatus(s stripe.PaymentIntentStatus) model.PaymentStatus {
	switch s {
	case stripe.PaymentIntentStatusRequiresCapture:
		return model.PaymentStatusAuthorized
	case stripe.PaymentIntentStatusSucceeded:
		return model.PaymentStatusCaptured
	case stripe.PaymentIntentStatusCanceled:
		return model.PaymentStatusCancelled
	default:
		// requires_payment_method / requires_confirmation / requires_action / processing
		return model.PaymentStatusAwaitingConfirmation
	}
}
