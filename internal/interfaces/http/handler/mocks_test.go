package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	appintegration "github.com/wms/shopsync/internal/application/integration"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/domain/shared"
	"github.com/wms/shopsync/internal/infrastructure/auth"
	"github.com/wms/shopsync/internal/infrastructure/event"
	"github.com/wms/shopsync/internal/interfaces/http/dto"
	"github.com/wms/shopsync/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type MockIntegrationService struct {
	mock.Mock
}

func (m *MockIntegrationService) Get(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Integration), args.Error(1)
}

func (m *MockIntegrationService) Disconnect(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Integration), args.Error(1)
}

func (m *MockIntegrationService) UpdateSettings(ctx context.Context, id uuid.UUID, settings integration.Settings) (*integration.Integration, error) {
	args := m.Called(ctx, id, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Integration), args.Error(1)
}

func (m *MockIntegrationService) ListSyncLogs(ctx context.Context, id uuid.UUID, filter integration.SyncLogFilter) ([]integration.SyncLogEntry, int64, error) {
	args := m.Called(ctx, id, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]integration.SyncLogEntry), args.Get(1).(int64), args.Error(2)
}

type MockProductMappingService struct {
	mock.Mock
}

func (m *MockProductMappingService) mapping(args mock.Arguments) (*integration.ProductMapping, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductMapping), args.Error(1)
}

func (m *MockProductMappingService) CreateMapping(ctx context.Context, integrationID, productID uuid.UUID, ref integration.ExternalRef) (*integration.ProductMapping, error) {
	return m.mapping(m.Called(ctx, integrationID, productID, ref))
}

func (m *MockProductMappingService) GetMapping(ctx context.Context, integrationID, id uuid.UUID) (*integration.ProductMapping, error) {
	return m.mapping(m.Called(ctx, integrationID, id))
}

func (m *MockProductMappingService) ListMappings(ctx context.Context, integrationID uuid.UUID, filter integration.ProductMappingFilter) ([]integration.ProductMapping, int64, error) {
	args := m.Called(ctx, integrationID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]integration.ProductMapping), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductMappingService) Remap(ctx context.Context, integrationID, id uuid.UUID, ref integration.ExternalRef) (*integration.ProductMapping, error) {
	return m.mapping(m.Called(ctx, integrationID, id, ref))
}

func (m *MockProductMappingService) SetSyncFlags(ctx context.Context, integrationID, id uuid.UUID, inventory, price *bool) (*integration.ProductMapping, error) {
	return m.mapping(m.Called(ctx, integrationID, id, inventory, price))
}

type MockMappingImporter struct {
	mock.Mock
}

func (m *MockMappingImporter) ImportMappings(ctx context.Context, integrationID uuid.UUID, r io.Reader, dryRun bool) (*appintegration.MappingImportResult, error) {
	content, _ := io.ReadAll(r)
	args := m.Called(ctx, integrationID, string(content), dryRun)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.MappingImportResult), args.Error(1)
}

type MockSyncServices struct {
	mock.Mock
}

func (m *MockSyncServices) SyncInventory(ctx context.Context, integrationID uuid.UUID, productIDs []uuid.UUID, trigger integration.SyncTrigger) (*appintegration.InventorySyncResult, error) {
	args := m.Called(ctx, integrationID, productIDs, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.InventorySyncResult), args.Error(1)
}

func (m *MockSyncServices) SyncShopifyOrders(ctx context.Context, integrationID uuid.UUID, since *time.Time, trigger integration.SyncTrigger) (*appintegration.OrderSyncResult, error) {
	args := m.Called(ctx, integrationID, since, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.OrderSyncResult), args.Error(1)
}

func (m *MockSyncServices) CalculateIncoming(ctx context.Context, integrationID uuid.UUID) (int, error) {
	args := m.Called(ctx, integrationID)
	return args.Int(0), args.Error(1)
}

func (m *MockSyncServices) SyncIncomingToShopify(ctx context.Context, integrationID uuid.UUID, trigger integration.SyncTrigger) (*appintegration.IncomingSyncResult, error) {
	args := m.Called(ctx, integrationID, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.IncomingSyncResult), args.Error(1)
}

func (m *MockSyncServices) SyncFulfillment(ctx context.Context, req integration.FulfillmentSyncRequest) (*appintegration.FulfillmentSyncResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.FulfillmentSyncResult), args.Error(1)
}

func (m *MockSyncServices) SyncReturn(ctx context.Context, returnID uuid.UUID) (*appintegration.ReturnSyncResult, error) {
	args := m.Called(ctx, returnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.ReturnSyncResult), args.Error(1)
}

func (m *MockSyncServices) ImportWebhookOrder(ctx context.Context, integrationID uuid.UUID, order *integration.ExternalOrder) (*appintegration.ImportOutcome, error) {
	args := m.Called(ctx, integrationID, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appintegration.ImportOutcome), args.Error(1)
}

type MockTaskEnqueuer struct {
	mock.Mock
}

func (m *MockTaskEnqueuer) Enqueue(ctx context.Context, taskType string, subjectID uuid.UUID, payload any) error {
	return m.Called(ctx, taskType, subjectID, payload).Error(0)
}

type MockDeadLetters struct {
	mock.Mock
}

func (m *MockDeadLetters) List(ctx context.Context, page, pageSize int) (shared.Paginated[*shared.OutboxEntry], error) {
	args := m.Called(ctx, page, pageSize)
	return args.Get(0).(shared.Paginated[*shared.OutboxEntry]), args.Error(1)
}

func (m *MockDeadLetters) Get(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.OutboxEntry), args.Error(1)
}

func (m *MockDeadLetters) Retry(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.OutboxEntry), args.Error(1)
}

func (m *MockDeadLetters) RetryAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDeadLetters) Stats(ctx context.Context) (*event.OutboxStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.OutboxStats), args.Error(1)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestIntegration(clientID uuid.UUID) *integration.Integration {
	return &integration.Integration{
		ID:          uuid.New(),
		ClientID:    clientID,
		Platform:    integration.PlatformShopify,
		ShopDomain:  "acme.myshopify.com",
		Status:      integration.IntegrationStatusActive,
		AccessTokenEncrypted: "encrypted",
		Settings: integration.Settings{
			SchemaVersion:     integration.CurrentSettingsVersion,
			AutoSyncInventory: true,
			AutoSyncOrders:    true,
		},
	}
}

// withClaims simulates the JWT middleware for a caller limited to clientID.
// uuid.Nil means a staff token spanning every client.
func withClaims(clientID uuid.UUID, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := &auth.Claims{UserID: uuid.NewString(), Roles: roles}
		if clientID != uuid.Nil {
			claims.ClientID = clientID.String()
		}
		middleware.SetPrincipal(c, claims)
		c.Next()
	}
}

func doRequest(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) testResponse {
	t.Helper()
	var resp testResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	resp := decode(t, w)
	require.True(t, resp.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decode(t, w)
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}
