package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appintegration "github.com/wms/shopsync/internal/application/integration"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/domain/shared"
	"github.com/wms/shopsync/internal/infrastructure/shopify"
	"github.com/wms/shopsync/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Webhook outcomes reported to metrics and in the response body
const (
	WebhookProcessed        = "processed"
	WebhookDuplicate        = "duplicate"
	WebhookIgnored          = "ignored"
	WebhookInvalidSignature = "invalid_signature"
	WebhookFailed           = "failed"
)

var errMalformedWebhook = errors.New("malformed webhook payload")

// WebhookVerifier checks a webhook signature
type WebhookVerifier interface {
	Verify(r *http.Request) bool
}

// WebhookIntegrations loads and disconnects integrations
type WebhookIntegrations interface {
	Get(ctx context.Context, id uuid.UUID) (*integration.Integration, error)
	Disconnect(ctx context.Context, id uuid.UUID) (*integration.Integration, error)
}

// WebhookOrderImporter imports orders pushed by the platform
type WebhookOrderImporter interface {
	ImportWebhookOrder(ctx context.Context, integrationID uuid.UUID, order *integration.ExternalOrder) (*appintegration.ImportOutcome, error)
}

// WebhookRecorder counts deliveries
type WebhookRecorder interface {
	RecordWebhook(ctx context.Context, topic, outcome string)
}

// WebhookConfig wires a ShopifyWebhookHandler
type WebhookConfig struct {
	Verifier     WebhookVerifier
	Integrations WebhookIntegrations
	Orders       WebhookOrderImporter
	Dedup        shared.IdempotencyStore
	DedupTTL     time.Duration
	Metrics      WebhookRecorder
	Logger       *zap.Logger
}

// WebhookResult is the body returned to the platform
type WebhookResult struct {
	Topic   string                        `json:"topic"`
	Outcome string                        `json:"outcome"`
	Order   *appintegration.ImportOutcome `json:"order,omitempty"`
}

// ShopifyWebhookHandler receives Shopify webhook deliveries.
//
// Deliveries are deduplicated on X-Shopify-Webhook-Id. The id is recorded
// only after a delivery succeeds so a failed one is handled again when
// Shopify retries it.
type ShopifyWebhookHandler struct {
	BaseHandler
	cfg WebhookConfig
}

// NewShopifyWebhookHandler creates a webhook handler
func NewShopifyWebhookHandler(cfg WebhookConfig) *ShopifyWebhookHandler {
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = shared.DefaultIdempotencyConfig().TTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ShopifyWebhookHandler{cfg: cfg}
}

// Receive handles one delivery
//
// POST /webhooks/shopify/:integration_id
func (h *ShopifyWebhookHandler) Receive(c *gin.Context) {
	ctx := c.Request.Context()
	topic := c.GetHeader(shopify.WebhookTopicHeader)
	webhookID := c.GetHeader(shopify.WebhookIDHeader)
	log := h.cfg.Logger.With(
		zap.String("topic", topic),
		zap.String("webhook_id", webhookID),
		zap.String("integration_id", c.Param("integration_id")),
	)

	id, ok := h.ParamUUID(c, "integration_id")
	if !ok {
		return
	}

	if !h.cfg.Verifier.Verify(c.Request) {
		log.Warn("Rejected webhook with invalid signature")
		h.record(ctx, topic, WebhookInvalidSignature)
		h.Unauthorized(c, dto.ErrCodeInvalidSignature, "Invalid webhook signature")
		return
	}

	in, err := h.cfg.Integrations.Get(ctx, id)
	if err != nil {
		h.record(ctx, topic, WebhookFailed)
		h.HandleError(c, err)
		return
	}
	if shop := c.GetHeader(shopify.WebhookShopHeader); shop != "" && !strings.EqualFold(shop, in.ShopDomain) {
		log.Warn("Rejected webhook for another shop", zap.String("shop", shop))
		h.record(ctx, topic, WebhookInvalidSignature)
		h.Unauthorized(c, dto.ErrCodeInvalidSignature, "Shop domain does not match integration")
		return
	}

	dedupKey := ""
	if webhookID != "" {
		dedupKey = in.ID.String() + ":" + webhookID
		seen, err := h.cfg.Dedup.IsProcessed(ctx, dedupKey)
		if err != nil {
			// Redis outage should not block orders, the unique order index still holds
			log.Warn("Webhook dedup lookup failed", zap.Error(err))
		} else if seen {
			h.finish(c, topic, WebhookDuplicate, nil)
			return
		}
	}

	result, err := h.dispatch(c, in, topic)
	if err != nil {
		log.Error("Webhook handling failed", zap.Error(err))
		h.record(ctx, topic, WebhookFailed)
		if errors.Is(err, errMalformedWebhook) {
			h.BadRequest(c, err.Error())
			return
		}
		h.HandleError(c, err)
		return
	}

	if dedupKey != "" {
		if _, err := h.cfg.Dedup.MarkProcessed(ctx, dedupKey, h.cfg.DedupTTL); err != nil {
			log.Warn("Failed to record webhook delivery", zap.Error(err))
		}
	}
	h.finish(c, topic, result.Outcome, result.Order)
}

func (h *ShopifyWebhookHandler) dispatch(c *gin.Context, in *integration.Integration, topic string) (WebhookResult, error) {
	ctx := c.Request.Context()
	switch topic {
	case shopify.TopicOrdersCreate:
		if !in.IsActive() || !in.Settings.AutoSyncOrders {
			return WebhookResult{Outcome: WebhookIgnored}, nil
		}
		raw, err := c.GetRawData()
		if err != nil {
			return WebhookResult{}, err
		}
		order, err := shopify.ParseOrder(raw)
		if err != nil {
			return WebhookResult{}, fmt.Errorf("%w: %v", errMalformedWebhook, err)
		}
		outcome, err := h.cfg.Orders.ImportWebhookOrder(ctx, in.ID, &order)
		if errors.Is(err, integration.ErrOrderAlreadyImported) {
			return WebhookResult{Outcome: WebhookDuplicate}, nil
		}
		if err != nil {
			return WebhookResult{}, err
		}
		return WebhookResult{Outcome: WebhookProcessed, Order: outcome}, nil

	case shopify.TopicAppUninstalled:
		if !in.IsActive() {
			return WebhookResult{Outcome: WebhookIgnored}, nil
		}
		if _, err := h.cfg.Integrations.Disconnect(ctx, in.ID); err != nil {
			return WebhookResult{}, err
		}
		return WebhookResult{Outcome: WebhookProcessed}, nil
	}
	return WebhookResult{Outcome: WebhookIgnored}, nil
}

func (h *ShopifyWebhookHandler) finish(c *gin.Context, topic, outcome string, order *appintegration.ImportOutcome) {
	h.record(c.Request.Context(), topic, outcome)
	h.Success(c, WebhookResult{Topic: topic, Outcome: outcome, Order: order})
}

func (h *ShopifyWebhookHandler) record(ctx context.Context, topic, outcome string) {
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.RecordWebhook(ctx, topic, outcome)
	}
}
