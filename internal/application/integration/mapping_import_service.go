package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/infrastructure/csvimport"
	"go.uber.org/zap"
)

// Mapping import CSV columns
const (
	ColumnSKU             = "sku"
	ColumnProductID       = "shopify_product_id"
	ColumnVariantID       = "shopify_variant_id"
	ColumnInventoryItemID = "shopify_inventory_item_id"
	ColumnSyncInventory   = "sync_inventory"
	ColumnSyncPrice       = "sync_price"
)

// Import limits
const (
	DefaultImportMaxRows   = 5000
	DefaultImportMaxErrors = 200
)

// MappingImportResult summarizes one CSV mapping import
type MappingImportResult struct {
	TotalRows   int                  `json:"total_rows"`
	Created     int                  `json:"created"`
	Failed      int                  `json:"failed"`
	DryRun      bool                 `json:"dry_run"`
	Errors      []csvimport.RowError `json:"errors,omitempty"`
	TotalErrors int                  `json:"total_errors"`
	Truncated   bool                 `json:"truncated,omitempty"`
}

// MappingImportService creates product mappings in bulk from a CSV export of
// the shop's variants. Rows are matched to internal products by SKU,
// ignoring case.
//
// Rows that fail validation, match no product or several products, or
// whose product is already mapped are reported and skipped. The remaining
// rows are saved one by one, so a failure part way leaves earlier rows
// saved; re-running the same file reports them as already mapped.
type MappingImportService struct {
	integrations integration.IntegrationReader
	mappings     integration.ProductMappingRepository
	catalog      integration.ProductCatalog
	maxRows      int
	maxErrors    int
	logger       *zap.Logger
}

// NewMappingImportService creates a new MappingImportService
func NewMappingImportService(mappings integration.ProductMappingRepository, integrations integration.IntegrationReader, catalog integration.ProductCatalog, logger *zap.Logger) *MappingImportService {
	return &MappingImportService{
		integrations: integrations,
		mappings:     mappings,
		catalog:      catalog,
		maxRows:      DefaultImportMaxRows,
		maxErrors:    DefaultImportMaxErrors,
		logger:       logger,
	}
}

func importRules() []csvimport.FieldRule {
	return []csvimport.FieldRule{
		csvimport.Field(ColumnSKU).Required().MaxLength(100).Unique(integration.FoldKey).Build(),
		csvimport.Field(ColumnProductID).Numeric().Build(),
		csvimport.Field(ColumnVariantID).Required().Numeric().Unique(nil).Build(),
		csvimport.Field(ColumnInventoryItemID).Numeric().Build(),
		csvimport.Field(ColumnSyncInventory).Bool().Build(),
		csvimport.Field(ColumnSyncPrice).Bool().Build(),
	}
}

// importRow is a validated row waiting for its product
type importRow struct {
	line    int
	sku     string
	ref     integration.ExternalRef
	syncInv bool
	syncPri bool
}

// ImportMappings reads r and creates a mapping per valid row. With dryRun
// nothing is written but every check still runs. File-level problems are
// returned as csvimport errors.
func (s *MappingImportService) ImportMappings(ctx context.Context, integrationID uuid.UUID, r io.Reader, dryRun bool) (*MappingImportResult, error) {
	in, err := s.integrations.FindByID(ctx, integrationID)
	if err != nil {
		return nil, err
	}

	parser, err := csvimport.NewParser(r, csvimport.WithMaxRows(s.maxRows))
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}
	errs := csvimport.NewErrorCollection(s.maxErrors)
	validator := csvimport.NewValidator(importRules(), errs)
	if missing := parser.MissingHeaders(validator.Columns()...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", csvimport.ErrMissingColumns, strings.Join(missing, ", "))
	}

	rows, err := parser.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, csvimport.ErrNoDataRows
	}

	var valid []importRow
	for _, row := range rows {
		if !validator.ValidateRow(row) {
			continue
		}
		valid = append(valid, importRow{
			line: row.Line,
			sku:  row.Get(ColumnSKU),
			ref: integration.ExternalRef{
				SKU:             row.Get(ColumnSKU),
				ProductID:       row.Get(ColumnProductID),
				VariantID:       row.Get(ColumnVariantID),
				InventoryItemID: row.Get(ColumnInventoryItemID),
			},
			syncInv: csvimport.ParseBoolDefault(row.Get(ColumnSyncInventory), true),
			syncPri: csvimport.ParseBoolDefault(row.Get(ColumnSyncPrice), false),
		})
	}

	pending, err := s.resolve(ctx, in, valid, errs)
	if err != nil {
		return nil, err
	}

	result := &MappingImportResult{TotalRows: len(rows), DryRun: dryRun}
	for _, p := range pending {
		if !dryRun {
			if err := s.mappings.Save(ctx, p.mapping); err != nil {
				if !errors.Is(err, integration.ErrMappingAlreadyExists) {
					return nil, fmt.Errorf("save mapping from row %d: %w", p.line, err)
				}
				errs.Add(alreadyMapped(p.line, p.mapping.ExternalSKU))
				continue
			}
		}
		result.Created++
	}

	result.Failed = errs.RowCount()
	result.Errors = errs.Errors()
	result.TotalErrors = errs.TotalCount()
	result.Truncated = errs.IsTruncated()

	s.logger.Info("product mapping import finished",
		zap.String("integration_id", in.ID.String()),
		zap.Int("rows", result.TotalRows),
		zap.Int("created", result.Created),
		zap.Int("failed", result.Failed),
		zap.Bool("dry_run", dryRun),
	)
	return result, nil
}

type pendingMapping struct {
	line    int
	mapping *integration.ProductMapping
}

// resolve matches rows to products and drops rows whose product is unknown,
// ambiguous or already mapped
func (s *MappingImportService) resolve(ctx context.Context, in *integration.Integration, rows []importRow, errs *csvimport.ErrorCollection) ([]pendingMapping, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	skus := make([]string, len(rows))
	for i, row := range rows {
		skus[i] = row.sku
	}
	products, err := s.catalog.FindBySKU(ctx, in.ClientID, skus)
	if err != nil {
		return nil, err
	}

	type matched struct {
		row       importRow
		productID uuid.UUID
	}
	var found []matched
	var productIDs []uuid.UUID
	for _, row := range rows {
		candidates := products[integration.FoldKey(row.sku)]
		switch len(candidates) {
		case 0:
			errs.Add(csvimport.RowError{Row: row.line, Column: ColumnSKU, Code: csvimport.ErrCodeNotFound,
				Message: "no product with this SKU", Value: row.sku})
		case 1:
			found = append(found, matched{row: row, productID: candidates[0].ID})
			productIDs = append(productIDs, candidates[0].ID)
		default:
			errs.Add(csvimport.RowError{Row: row.line, Column: ColumnSKU, Code: csvimport.ErrCodeConflict,
				Message: fmt.Sprintf("SKU matches %d products", len(candidates)), Value: row.sku})
		}
	}
	if len(found) == 0 {
		return nil, nil
	}

	existing, err := s.mappings.FindByIntegrationAndProducts(ctx, in.ID, productIDs)
	if err != nil {
		return nil, err
	}
	mapped := make(map[uuid.UUID]struct{}, len(existing))
	for _, m := range existing {
		mapped[m.ProductID] = struct{}{}
	}

	out := make([]pendingMapping, 0, len(found))
	for _, f := range found {
		if _, ok := mapped[f.productID]; ok {
			errs.Add(alreadyMapped(f.row.line, f.row.sku))
			continue
		}
		m, err := integration.NewProductMapping(in.ID, f.productID, f.row.ref)
		if err != nil {
			errs.Add(csvimport.RowError{Row: f.row.line, Code: csvimport.ErrCodeRejected, Message: err.Error()})
			continue
		}
		m.SetSyncFlags(f.row.syncInv, f.row.syncPri)
		out = append(out, pendingMapping{line: f.row.line, mapping: m})
	}
	return out, nil
}

func alreadyMapped(line int, sku string) csvimport.RowError {
	return csvimport.RowError{Row: line, Column: ColumnSKU, Code: csvimport.ErrCodeConflict,
		Message: "product is already mapped, use remap to change it", Value: sku}
}
