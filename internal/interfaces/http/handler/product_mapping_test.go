package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	appintegration "github.com/wms/shopsync/internal/application/integration"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/csvimport"
	"github.com/wms/shopsync/internal/interfaces/http/dto"
)

type mappingFixture struct {
	integrations *MockIntegrationService
	mappings     *MockProductMappingService
	importer     *MockMappingImporter
	in           *integration.Integration
	router       *gin.Engine
}

func newMappingFixture() *mappingFixture {
	f := &mappingFixture{
		integrations: new(MockIntegrationService),
		mappings:     new(MockProductMappingService),
		importer:     new(MockMappingImporter),
		in:           newTestIntegration(uuid.New()),
	}
	f.integrations.On("Get", mock.Anything, f.in.ID).Return(f.in, nil)

	h := NewProductMappingHandler(f.integrations, f.mappings, f.importer)
	r := gin.New()
	r.Use(withClaims(f.in.ClientID, "operator"))
	g := r.Group("/integrations/:integration_id/mappings")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.POST("/import", h.Import)
	g.GET("/:mapping_id", h.Get)
	g.PUT("/:mapping_id/external-ref", h.Remap)
	g.PATCH("/:mapping_id/sync-flags", h.SetSyncFlags)
	f.router = r
	return f
}

func (f *mappingFixture) path(suffix string) string {
	return "/integrations/" + f.in.ID.String() + "/mappings" + suffix
}

func testMapping(integrationID uuid.UUID) *integration.ProductMapping {
	return &integration.ProductMapping{
		ID:                      uuid.New(),
		IntegrationID:           integrationID,
		ProductID:               uuid.New(),
		SyncInventory:           true,
		ExternalSKU:             "SKU-1",
		ExternalVariantID:       "111",
		ExternalInventoryItemID: "222",
	}
}

func TestProductMappingHandler_Create(t *testing.T) {
	t.Run("creates mapping", func(t *testing.T) {
		f := newMappingFixture()
		m := testMapping(f.in.ID)
		f.mappings.On("CreateMapping", mock.Anything, f.in.ID, m.ProductID, integration.ExternalRef{
			SKU: "SKU-1", VariantID: "111", InventoryItemID: "222",
		}).Return(m, nil)

		w := doRequest(t, f.router, http.MethodPost, f.path(""), map[string]any{
			"product_id":                 m.ProductID,
			"external_sku":               "SKU-1",
			"external_variant_id":        "111",
			"external_inventory_item_id": "222",
		})

		require.Equal(t, http.StatusCreated, w.Code)
		var got appintegration.ProductMappingResponse
		decodeData(t, w, &got)
		assert.Equal(t, m.ID, got.ID)
		assert.Equal(t, "222", got.ExternalInventoryItemID)
	})

	t.Run("variant is required", func(t *testing.T) {
		f := newMappingFixture()

		w := doRequest(t, f.router, http.MethodPost, f.path(""), map[string]any{"product_id": uuid.New()})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode(t, w)
		require.NotEmpty(t, resp.Error.Details)
		assert.Equal(t, "external_variant_id", resp.Error.Details[0].Field)
	})

	t.Run("duplicate product", func(t *testing.T) {
		f := newMappingFixture()
		f.mappings.On("CreateMapping", mock.Anything, f.in.ID, mock.Anything, mock.Anything).
			Return(nil, integration.ErrMappingAlreadyExists)

		w := doRequest(t, f.router, http.MethodPost, f.path(""), map[string]any{
			"product_id":          uuid.New(),
			"external_variant_id": "111",
		})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dto.ErrCodeAlreadyExists, errorCode(t, w))
	})
}

func TestProductMappingHandler_Get(t *testing.T) {
	f := newMappingFixture()
	m := testMapping(f.in.ID)
	f.mappings.On("GetMapping", mock.Anything, f.in.ID, m.ID).Return(m, nil)
	missing := uuid.New()
	f.mappings.On("GetMapping", mock.Anything, f.in.ID, missing).Return(nil, integration.ErrMappingNotFound)

	w := doRequest(t, f.router, http.MethodGet, f.path("/"+m.ID.String()), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, f.router, http.MethodGet, f.path("/"+missing.String()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, f.router, http.MethodGet, f.path("/nope"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProductMappingHandler_List(t *testing.T) {
	t.Run("passes filter through", func(t *testing.T) {
		f := newMappingFixture()
		m := testMapping(f.in.ID)
		f.mappings.On("ListMappings", mock.Anything, f.in.ID, mock.MatchedBy(func(filter integration.ProductMappingFilter) bool {
			return filter.Search == "sku" &&
				filter.SyncInventory != nil && !*filter.SyncInventory &&
				filter.SyncPrice == nil &&
				filter.SortBy == "external_sku" && filter.SortOrder == "asc" &&
				filter.Page == 1 && filter.PageSize == 50
		})).Return([]integration.ProductMapping{*m}, int64(1), nil)

		w := doRequest(t, f.router, http.MethodGet, f.path("?search=sku&sync_inventory=false&sort_by=external_sku&sort_order=asc"), nil)

		require.Equal(t, http.StatusOK, w.Code)
		var got []appintegration.ProductMappingResponse
		decodeData(t, w, &got)
		assert.Len(t, got, 1)
		f.mappings.AssertExpectations(t)
	})

	t.Run("rejects unknown sort field", func(t *testing.T) {
		f := newMappingFixture()

		w := doRequest(t, f.router, http.MethodGet, f.path("?sort_by=access_token"), nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProductMappingHandler_Remap(t *testing.T) {
	f := newMappingFixture()
	m := testMapping(f.in.ID)
	f.mappings.On("Remap", mock.Anything, f.in.ID, m.ID, integration.ExternalRef{VariantID: "999"}).Return(m, nil)

	w := doRequest(t, f.router, http.MethodPut, f.path("/"+m.ID.String()+"/external-ref"), map[string]any{
		"external_variant_id": "999",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	f.mappings.AssertExpectations(t)
}

func TestProductMappingHandler_SetSyncFlags(t *testing.T) {
	t.Run("toggles price only", func(t *testing.T) {
		f := newMappingFixture()
		m := testMapping(f.in.ID)
		f.mappings.On("SetSyncFlags", mock.Anything, f.in.ID, m.ID, (*bool)(nil), mock.MatchedBy(func(p *bool) bool {
			return p != nil && *p
		})).Return(m, nil)

		w := doRequest(t, f.router, http.MethodPatch, f.path("/"+m.ID.String()+"/sync-flags"), map[string]any{
			"sync_price": true,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		f.mappings.AssertExpectations(t)
	})

	t.Run("requires at least one flag", func(t *testing.T) {
		f := newMappingFixture()

		w := doRequest(t, f.router, http.MethodPatch, f.path("/"+uuid.NewString()+"/sync-flags"), map[string]any{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.mappings.AssertNotCalled(t, "SetSyncFlags", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func uploadCSV(t *testing.T, r http.Handler, path, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "mappings.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProductMappingHandler_Import(t *testing.T) {
	const csv = "sku,shopify_variant_id\nSKU-1,111\n"

	t.Run("returns the import summary", func(t *testing.T) {
		f := newMappingFixture()
		f.importer.On("ImportMappings", mock.Anything, f.in.ID, csv, true).Return(&appintegration.MappingImportResult{
			TotalRows: 1, Created: 1, DryRun: true,
		}, nil)

		w := uploadCSV(t, f.router, f.path("/import?dry_run=true"), csv)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got appintegration.MappingImportResult
		decodeData(t, w, &got)
		assert.Equal(t, 1, got.Created)
		assert.True(t, got.DryRun)
	})

	t.Run("row errors are part of a successful response", func(t *testing.T) {
		f := newMappingFixture()
		f.importer.On("ImportMappings", mock.Anything, f.in.ID, csv, false).Return(&appintegration.MappingImportResult{
			TotalRows: 1, Failed: 1, TotalErrors: 1,
			Errors: []csvimport.RowError{{Row: 2, Column: "sku", Code: csvimport.ErrCodeNotFound, Message: "no product with this SKU"}},
		}, nil)

		w := uploadCSV(t, f.router, f.path("/import"), csv)

		require.Equal(t, http.StatusOK, w.Code)
		var got appintegration.MappingImportResult
		decodeData(t, w, &got)
		require.Len(t, got.Errors, 1)
		assert.Equal(t, 2, got.Errors[0].Row)
	})

	t.Run("unreadable file", func(t *testing.T) {
		f := newMappingFixture()
		f.importer.On("ImportMappings", mock.Anything, f.in.ID, "", false).Return(nil, csvimport.ErrEmptyFile)

		w := uploadCSV(t, f.router, f.path("/import"), "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidFile, errorCode(t, w))
	})

	t.Run("file part is required", func(t *testing.T) {
		f := newMappingFixture()

		w := doRequest(t, f.router, http.MethodPost, f.path("/import"), map[string]any{})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.importer.AssertNotCalled(t, "ImportMappings", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
