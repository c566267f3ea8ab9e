package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wms/shopsync/internal/infrastructure/auth"
	"github.com/wms/shopsync/internal/interfaces/http/dto"
	"github.com/wms/shopsync/internal/interfaces/http/handler"
	"github.com/wms/shopsync/internal/interfaces/http/middleware"
)

// Handlers are the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	System      *handler.SystemHandler
	Integration *handler.IntegrationHandler
	Mapping     *handler.ProductMappingHandler
	Sync        *handler.SyncHandler
	Events      *handler.EventHandler
	Outbox      *handler.OutboxHandler
	Webhook     *handler.ShopifyWebhookHandler
}

// Options configure authentication and limits for RegisterRoutes
type Options struct {
	// Auth authenticates API callers, normally the JWT middleware
	Auth gin.HandlerFunc
	// WebhookLimiter runs before the webhook receiver; nil disables it
	WebhookLimiter gin.HandlerFunc
}

// RegisterRoutes mounts the probes, the Shopify webhook receiver and the
// authenticated /api/v1 surface.
//
// Reads need the viewer or operator role. Anything that writes or talks to
// Shopify needs operator.
func RegisterRoutes(engine *gin.Engine, h Handlers, opts Options) {
	engine.GET("/health", h.System.Health)
	engine.GET("/api/v1/ping", h.System.Ping)

	webhooks := engine.Group("/webhooks/shopify")
	if opts.WebhookLimiter != nil {
		webhooks.Use(opts.WebhookLimiter)
	}
	webhooks.POST("/:integration_id", h.Webhook.Receive)

	g := gates{
		readOnly:     middleware.RequireRole(auth.RoleViewer, auth.RoleOperator),
		operatorOnly: middleware.RequireRole(auth.RoleOperator),
	}

	api := engine.Group("/api/v1")
	if opts.Auth != nil {
		api.Use(opts.Auth)
	}
	api.Use(middleware.SpanAttributes())

	for _, t := range apiTables(h) {
		g.mount(api, t)
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.Fail(dto.ErrCodeNotFound, "Route not found", middleware.RequestID(c)))
	})
}

func apiTables(h Handlers) []table {
	return []table{
		{prefix: "/integrations/:integration_id", routes: []route{
			{http.MethodGet, "", readOnly, h.Integration.Get},
			{http.MethodPut, "/settings", operatorOnly, h.Integration.UpdateSettings},
			{http.MethodPost, "/disconnect", operatorOnly, h.Integration.Disconnect},
			{http.MethodGet, "/sync-logs", readOnly, h.Integration.ListSyncLogs},
			{http.MethodGet, "/incoming", readOnly, h.Sync.CalculateIncoming},
			{http.MethodPost, "/sync/inventory", operatorOnly, h.Sync.SyncInventory},
			{http.MethodPost, "/sync/orders", operatorOnly, h.Sync.PullOrders},
			{http.MethodPost, "/sync/incoming", operatorOnly, h.Sync.SyncIncoming},
		}},
		{prefix: "/integrations/:integration_id/mappings", routes: []route{
			{http.MethodGet, "", readOnly, h.Mapping.List},
			{http.MethodPost, "", operatorOnly, h.Mapping.Create},
			{http.MethodPost, "/import", operatorOnly, h.Mapping.Import},
			{http.MethodGet, "/:mapping_id", readOnly, h.Mapping.Get},
			{http.MethodPut, "/:mapping_id/external-ref", operatorOnly, h.Mapping.Remap},
			{http.MethodPatch, "/:mapping_id/sync-flags", operatorOnly, h.Mapping.SetSyncFlags},
		}},
		{routes: []route{
			{http.MethodPost, "/fulfillments/sync", operatorOnly, h.Sync.SyncFulfillment},
			{http.MethodPost, "/returns/:return_id/sync", operatorOnly, h.Sync.SyncReturn},
		}},
		{prefix: "/events", routes: []route{
			{http.MethodPost, "/inventory-changed", operatorOnly, h.Events.InventoryChanged},
			{http.MethodPost, "/fulfillments", operatorOnly, h.Events.FulfillmentCreated},
			{http.MethodPost, "/returns/:return_id/completed", operatorOnly, h.Events.ReturnCompleted},
		}},
		{prefix: "/system", routes: []route{
			{http.MethodGet, "/info", readOnly, h.System.GetSystemInfo},
			{http.MethodGet, "/jobs", readOnly, h.System.ListJobs},
			{http.MethodPost, "/jobs/:name/run", operatorOnly, h.System.RunJob},
		}},
		{prefix: "/system/outbox", routes: []route{
			{http.MethodGet, "/stats", readOnly, h.Outbox.GetStats},
			{http.MethodGet, "/dead", readOnly, h.Outbox.GetDeadLetterEntries},
			{http.MethodPost, "/dead/retry-all", operatorOnly, h.Outbox.RetryAllDeadEntries},
			{http.MethodGet, "/:id", readOnly, h.Outbox.GetEntry},
			{http.MethodPost, "/:id/retry", operatorOnly, h.Outbox.RetryDeadEntry},
		}},
	}
}
