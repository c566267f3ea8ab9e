package shopify

import (
	"context"
	"fmt"
	"net/http"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/wms/shopsync/internal/domain/integration"
	"go.uber.org/zap"
)

// TokenDecrypter opens a sealed access token
type TokenDecrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// GatewayFactory builds per-integration gateways sharing one rate limiter
type GatewayFactory struct {
	decrypter TokenDecrypter
	limiter   *RateLimiter
	config    Config
	logger    *zap.Logger
}

// NewGatewayFactory creates a factory
func NewGatewayFactory(decrypter TokenDecrypter, limiter *RateLimiter, config Config, logger *zap.Logger) *GatewayFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayFactory{
		decrypter: decrypter,
		limiter:   limiter,
		config:    config,
		logger:    logger.Named("shopify"),
	}
}

// ForIntegration decrypts the integration's token and returns a gateway bound to it
func (f *GatewayFactory) ForIntegration(ctx context.Context, in *integration.Integration) (integration.PlatformGateway, error) {
	if in.Platform != integration.PlatformShopify {
		return nil, fmt.Errorf("%w: %s", integration.ErrUnsupportedPlatform, in.Platform)
	}
	if !in.HasCredentials() {
		return nil, integration.ErrIntegrationMissingCredentials
	}
	token, err := f.decrypter.Decrypt(in.AccessTokenEncrypted)
	if err != nil {
		return nil, fmt.Errorf("shopify: failed to decrypt access token: %w", err)
	}
	client := NewClient(in.ShopDomain, token, f.config, f.limiter, f.logger)
	return NewGateway(client), nil
}

// Ensure GatewayFactory implements integration.GatewayFactory
var _ integration.GatewayFactory = (*GatewayFactory)(nil)

// ---------------------------------------------------------------------------
// Webhooks
// ---------------------------------------------------------------------------

// Webhook headers
const (
	WebhookTopicHeader = "X-Shopify-Topic"
	WebhookIDHeader    = "X-Shopify-Webhook-Id"
	WebhookShopHeader  = "X-Shopify-Shop-Domain"
)

// Webhook topics handled by the receiver
const (
	TopicOrdersCreate   = "orders/create"
	TopicAppUninstalled = "app/uninstalled"
)

// WebhookVerifier checks webhook HMAC signatures with the app secret
type WebhookVerifier struct {
	app goshopify.App
}

// NewWebhookVerifier creates a verifier for the app's API credentials
func NewWebhookVerifier(apiKey, apiSecret string) *WebhookVerifier {
	return &WebhookVerifier{app: goshopify.App{ApiKey: apiKey, ApiSecret: apiSecret}}
}

// Verify reports whether the request carries a valid X-Shopify-Hmac-Sha256.
// The request body is restored and can be read again afterwards.
func (v *WebhookVerifier) Verify(r *http.Request) bool {
	if v.app.ApiSecret == "" {
		return false
	}
	return v.app.VerifyWebhookRequest(r)
}
