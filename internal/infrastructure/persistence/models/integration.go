package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/wms/shopsync/internal/domain/integration"
	"gorm.io/datatypes"
)

// IntegrationModel is the persistence model for the Integration entity
type IntegrationModel struct {
	BaseModel
	ClientID             uuid.UUID                     `gorm:"type:uuid;not null;index"`
	Platform             integration.Platform          `gorm:"type:varchar(20);not null;index:idx_integration_platform_status,priority:1"`
	ShopDomain           string                        `gorm:"type:varchar(255);not null"`
	AccessTokenEncrypted string                        `gorm:"type:text"`
	Status               integration.IntegrationStatus `gorm:"type:varchar(20);not null;index:idx_integration_platform_status,priority:2"`
	Settings             datatypes.JSON
	LastInventorySyncAt  *time.Time
	LastOrderSyncAt      *time.Time
	LastErrorAt          *time.Time
	LastErrorMessage     string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (IntegrationModel) TableName() string {
	return "integrations"
}

// ToDomain converts the persistence model to a domain Integration.
// Settings are parsed here so the rest of the code only sees typed settings.
func (m *IntegrationModel) ToDomain() (*integration.Integration, error) {
	settings, err := integration.ParseSettings(m.Settings)
	if err != nil {
		return nil, err
	}
	return &integration.Integration{
		ID:                   m.ID,
		ClientID:             m.ClientID,
		Platform:             m.Platform,
		ShopDomain:           m.ShopDomain,
		AccessTokenEncrypted: m.AccessTokenEncrypted,
		Status:               m.Status,
		Settings:             settings,
		LastInventorySyncAt:  m.LastInventorySyncAt,
		LastOrderSyncAt:      m.LastOrderSyncAt,
		LastErrorAt:          m.LastErrorAt,
		LastErrorMessage:     m.LastErrorMessage,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}, nil
}

// FromDomain populates the persistence model from a domain Integration
func (m *IntegrationModel) FromDomain(in *integration.Integration) error {
	settings, err := in.Settings.Marshal()
	if err != nil {
		return err
	}
	m.setBase(in.ID, in.CreatedAt, in.UpdatedAt)
	m.ClientID = in.ClientID
	m.Platform = in.Platform
	m.ShopDomain = in.ShopDomain
	m.AccessTokenEncrypted = in.AccessTokenEncrypted
	m.Status = in.Status
	m.Settings = datatypes.JSON(settings)
	m.LastInventorySyncAt = in.LastInventorySyncAt
	m.LastOrderSyncAt = in.LastOrderSyncAt
	m.LastErrorAt = in.LastErrorAt
	m.LastErrorMessage = in.LastErrorMessage
	return nil
}

// IntegrationModelFromDomain creates a new persistence model from a domain Integration
func IntegrationModelFromDomain(in *integration.Integration) (*IntegrationModel, error) {
	m := &IntegrationModel{}
	if err := m.FromDomain(in); err != nil {
		return nil, err
	}
	return m, nil
}

// ProductMappingModel is the persistence model for the ProductMapping entity
type ProductMappingModel struct {
	BaseModel
	IntegrationID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_mapping_integration_product,priority:1"`
	ProductID               uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_mapping_integration_product,priority:2;index"`
	SyncInventory           bool      `gorm:"not null"`
	SyncPrice               bool      `gorm:"not null"`
	ExternalSKU             string    `gorm:"column:external_sku;type:varchar(255)"`
	ExternalProductID       string    `gorm:"type:varchar(64)"`
	ExternalVariantID       string    `gorm:"type:varchar(64);index"`
	ExternalInventoryItemID string    `gorm:"type:varchar(64)"`
	IncomingQty             int       `gorm:"not null"`
	LastSyncedAt            *time.Time
}

// TableName returns the table name for GORM
func (ProductMappingModel) TableName() string {
	return "product_mappings"
}

// ToDomain converts the persistence model to a domain ProductMapping
func (m *ProductMappingModel) ToDomain() *integration.ProductMapping {
	return &integration.ProductMapping{
		ID:                      m.ID,
		IntegrationID:           m.IntegrationID,
		ProductID:               m.ProductID,
		SyncInventory:           m.SyncInventory,
		SyncPrice:               m.SyncPrice,
		ExternalSKU:             m.ExternalSKU,
		ExternalProductID:       m.ExternalProductID,
		ExternalVariantID:       m.ExternalVariantID,
		ExternalInventoryItemID: m.ExternalInventoryItemID,
		IncomingQty:             m.IncomingQty,
		LastSyncedAt:            m.LastSyncedAt,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain ProductMapping
func (m *ProductMappingModel) FromDomain(pm *integration.ProductMapping) {
	m.setBase(pm.ID, pm.CreatedAt, pm.UpdatedAt)
	m.IntegrationID = pm.IntegrationID
	m.ProductID = pm.ProductID
	m.SyncInventory = pm.SyncInventory
	m.SyncPrice = pm.SyncPrice
	m.ExternalSKU = pm.ExternalSKU
	m.ExternalProductID = pm.ExternalProductID
	m.ExternalVariantID = pm.ExternalVariantID
	m.ExternalInventoryItemID = pm.ExternalInventoryItemID
	m.IncomingQty = pm.IncomingQty
	m.LastSyncedAt = pm.LastSyncedAt
}

// ProductMappingModelFromDomain creates a new persistence model from a domain ProductMapping
func ProductMappingModelFromDomain(pm *integration.ProductMapping) *ProductMappingModel {
	m := &ProductMappingModel{}
	m.FromDomain(pm)
	return m
}
