package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	appintegration "github.com/wms/shopsync/internal/application/integration"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/cache"
	"github.com/wms/shopsync/internal/infrastructure/shopify"
	"github.com/wms/shopsync/internal/interfaces/http/dto"
)

const webhookSecret = "shpss_test"

type recordedWebhook struct {
	topic, outcome string
}

type fakeWebhookRecorder struct {
	mu    sync.Mutex
	calls []recordedWebhook
}

func (f *fakeWebhookRecorder) RecordWebhook(_ context.Context, topic, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedWebhook{topic, outcome})
}

func (f *fakeWebhookRecorder) outcomes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.outcome
	}
	return out
}

type webhookFixture struct {
	integrations *MockIntegrationService
	orders       *MockSyncServices
	metrics      *fakeWebhookRecorder
	in           *integration.Integration
	router       *gin.Engine
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	f := &webhookFixture{
		integrations: new(MockIntegrationService),
		orders:       new(MockSyncServices),
		metrics:      &fakeWebhookRecorder{},
		in:           newTestIntegration(uuid.New()),
	}
	f.integrations.On("Get", mock.Anything, f.in.ID).Return(f.in, nil).Maybe()

	dedup := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = dedup.Close() })

	h := NewShopifyWebhookHandler(WebhookConfig{
		Verifier:     shopify.NewWebhookVerifier("key", webhookSecret),
		Integrations: f.integrations,
		Orders:       f.orders,
		Dedup:        dedup,
		Metrics:      f.metrics,
	})
	r := gin.New()
	r.POST("/webhooks/shopify/:integration_id", h.Receive)
	f.router = r
	return f
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (f *webhookFixture) deliver(topic, webhookID string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/"+f.in.ID.String(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Hmac-Sha256", signature)
	req.Header.Set(shopify.WebhookTopicHeader, topic)
	req.Header.Set(shopify.WebhookShopHeader, f.in.ShopDomain)
	if webhookID != "" {
		req.Header.Set(shopify.WebhookIDHeader, webhookID)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

var orderPayload = []byte(`{
	"id": 820982911946154508,
	"name": "#1001",
	"email": "jon@example.com",
	"currency": "USD",
	"total_price": "25.00",
	"line_items": [{"id": 1, "variant_id": 111, "sku": "SKU-1", "quantity": 2, "price": "12.50"}]
}`)

func TestShopifyWebhook_OrdersCreate(t *testing.T) {
	t.Run("imports order once per delivery id", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.orders.On("ImportWebhookOrder", mock.Anything, f.in.ID, mock.MatchedBy(func(o *integration.ExternalOrder) bool {
			return o.ID == "820982911946154508" && o.Name == "#1001" && len(o.Raw) > 0
		})).Return(&appintegration.ImportOutcome{Status: appintegration.ImportStatusImported, MappedItems: 1}, nil).Once()

		w := f.deliver(shopify.TopicOrdersCreate, "wh-1", orderPayload, sign(orderPayload))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got WebhookResult
		decodeData(t, w, &got)
		assert.Equal(t, WebhookProcessed, got.Outcome)
		require.NotNil(t, got.Order)
		assert.Equal(t, appintegration.ImportStatusImported, got.Order.Status)

		w = f.deliver(shopify.TopicOrdersCreate, "wh-1", orderPayload, sign(orderPayload))
		require.Equal(t, http.StatusOK, w.Code)
		decodeData(t, w, &got)
		assert.Equal(t, WebhookDuplicate, got.Outcome)

		f.orders.AssertNumberOfCalls(t, "ImportWebhookOrder", 1)
		assert.Equal(t, []string{WebhookProcessed, WebhookDuplicate}, f.metrics.outcomes())
	})

	t.Run("failed delivery is retried", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.orders.On("ImportWebhookOrder", mock.Anything, f.in.ID, mock.Anything).
			Return(nil, errors.New("db down")).Once()
		f.orders.On("ImportWebhookOrder", mock.Anything, f.in.ID, mock.Anything).
			Return(&appintegration.ImportOutcome{Status: appintegration.ImportStatusImported}, nil).Once()

		w := f.deliver(shopify.TopicOrdersCreate, "wh-2", orderPayload, sign(orderPayload))
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		w = f.deliver(shopify.TopicOrdersCreate, "wh-2", orderPayload, sign(orderPayload))
		assert.Equal(t, http.StatusOK, w.Code)
		f.orders.AssertNumberOfCalls(t, "ImportWebhookOrder", 2)
	})

	t.Run("already imported order is a duplicate", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.orders.On("ImportWebhookOrder", mock.Anything, f.in.ID, mock.Anything).
			Return(nil, integration.ErrOrderAlreadyImported)

		w := f.deliver(shopify.TopicOrdersCreate, "wh-3", orderPayload, sign(orderPayload))

		require.Equal(t, http.StatusOK, w.Code)
		var got WebhookResult
		decodeData(t, w, &got)
		assert.Equal(t, WebhookDuplicate, got.Outcome)
	})

	t.Run("auto order sync disabled", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.in.Settings.AutoSyncOrders = false

		w := f.deliver(shopify.TopicOrdersCreate, "wh-4", orderPayload, sign(orderPayload))

		require.Equal(t, http.StatusOK, w.Code)
		var got WebhookResult
		decodeData(t, w, &got)
		assert.Equal(t, WebhookIgnored, got.Outcome)
		f.orders.AssertNotCalled(t, "ImportWebhookOrder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed payload", func(t *testing.T) {
		f := newWebhookFixture(t)
		body := []byte(`{"name":"#1002"}`)

		w := f.deliver(shopify.TopicOrdersCreate, "wh-5", body, sign(body))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, []string{WebhookFailed}, f.metrics.outcomes())
	})
}

func TestShopifyWebhook_Signature(t *testing.T) {
	t.Run("invalid signature", func(t *testing.T) {
		f := newWebhookFixture(t)

		w := f.deliver(shopify.TopicOrdersCreate, "wh-6", orderPayload, "bogus")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidSignature, errorCode(t, w))
		assert.Equal(t, []string{WebhookInvalidSignature}, f.metrics.outcomes())
		f.integrations.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("shop domain mismatch", func(t *testing.T) {
		f := newWebhookFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify/"+f.in.ID.String(), bytes.NewReader(orderPayload))
		req.Header.Set("X-Shopify-Hmac-Sha256", sign(orderPayload))
		req.Header.Set(shopify.WebhookTopicHeader, shopify.TopicOrdersCreate)
		req.Header.Set(shopify.WebhookShopHeader, "evil.myshopify.com")
		w := httptest.NewRecorder()

		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown integration", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.in.ID = uuid.New()
		f.integrations.On("Get", mock.Anything, f.in.ID).Return(nil, integration.ErrIntegrationNotFound)

		w := f.deliver(shopify.TopicOrdersCreate, "wh-7", orderPayload, sign(orderPayload))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestShopifyWebhook_AppUninstalled(t *testing.T) {
	t.Run("disconnects active integration", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.integrations.On("Disconnect", mock.Anything, f.in.ID).Return(f.in, nil).Once()
		body := []byte(`{"id":1,"domain":"acme.myshopify.com"}`)

		w := f.deliver(shopify.TopicAppUninstalled, "wh-8", body, sign(body))

		require.Equal(t, http.StatusOK, w.Code)
		f.integrations.AssertExpectations(t)
	})

	t.Run("already inactive", func(t *testing.T) {
		f := newWebhookFixture(t)
		f.in.Status = integration.IntegrationStatusInactive
		body := []byte(`{"id":1}`)

		w := f.deliver(shopify.TopicAppUninstalled, "wh-9", body, sign(body))

		require.Equal(t, http.StatusOK, w.Code)
		f.integrations.AssertNotCalled(t, "Disconnect", mock.Anything, mock.Anything)
	})
}

func TestShopifyWebhook_UnhandledTopic(t *testing.T) {
	f := newWebhookFixture(t)
	body := []byte(`{"id":1}`)

	w := f.deliver("products/update", "wh-10", body, sign(body))

	require.Equal(t, http.StatusOK, w.Code)
	var got WebhookResult
	decodeData(t, w, &got)
	assert.Equal(t, WebhookIgnored, got.Outcome)
}
