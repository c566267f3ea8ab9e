package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// Platform identifies the external commerce platform of an integration
type Platform string

const (
	// PlatformShopify represents a Shopify store
	PlatformShopify Platform = "shopify"
)

// IsValid returns true if the platform is supported
func (p Platform) IsValid() bool {
	return p == PlatformShopify
}

// String returns the string representation
func (p Platform) String() string {
	return string(p)
}

// ---------------------------------------------------------------------------
// IntegrationStatus
// ---------------------------------------------------------------------------

// IntegrationStatus is the connection status of an integration
type IntegrationStatus string

const (
	IntegrationStatusActive   IntegrationStatus = "active"
	IntegrationStatusInactive IntegrationStatus = "inactive"
	IntegrationStatusError    IntegrationStatus = "error"
)

// IsValid returns true if the status is valid
func (s IntegrationStatus) IsValid() bool {
	switch s {
	case IntegrationStatusActive, IntegrationStatusInactive, IntegrationStatusError:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Integration Entity
// ---------------------------------------------------------------------------

// Integration is one connection between a warehouse client and an external store.
// It is created when the OAuth handshake completes and is never hard-deleted
// while product mappings reference it.
type Integration struct {
	// ID is the unique identifier of this integration
	ID uuid.UUID
	// ClientID is the warehouse client that owns the store
	ClientID uuid.UUID
	// Platform is the external platform type
	Platform Platform
	// ShopDomain is the store's API host, e.g. "acme.myshopify.com"
	ShopDomain string
	// AccessTokenEncrypted is the sealed platform access token
	AccessTokenEncrypted string
	// Status is the connection status
	Status IntegrationStatus
	// Settings holds the typed per-integration configuration
	Settings Settings
	// LastInventorySyncAt is when inventory was last pushed
	LastInventorySyncAt *time.Time
	// LastOrderSyncAt is when orders were last pulled or a fulfillment was pushed
	LastOrderSyncAt *time.Time
	// LastErrorAt is when the last customer-visible sync failure happened
	LastErrorAt *time.Time
	// LastErrorMessage describes the last customer-visible sync failure
	LastErrorMessage string
	// CreatedAt is when this integration was created
	CreatedAt time.Time
	// UpdatedAt is when this integration was last updated
	UpdatedAt time.Time
}

// NewIntegration creates an active integration with default settings
func NewIntegration(clientID uuid.UUID, platform Platform, shopDomain, encryptedToken string) (*Integration, error) {
	if clientID == uuid.Nil {
		return nil, ErrIntegrationInvalidClientID
	}
	if !platform.IsValid() {
		return nil, ErrUnsupportedPlatform
	}
	shopDomain = strings.ToLower(strings.TrimSpace(shopDomain))
	if shopDomain == "" {
		return nil, ErrIntegrationInvalidShopDomain
	}

	now := time.Now()
	return &Integration{
		ID:                   uuid.New(),
		ClientID:             clientID,
		Platform:             platform,
		ShopDomain:           shopDomain,
		AccessTokenEncrypted: encryptedToken,
		Status:               IntegrationStatusActive,
		Settings:             DefaultSettings(),
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// IsActive returns true if the integration is active
func (i *Integration) IsActive() bool {
	return i.Status == IntegrationStatusActive
}

// HasCredentials returns true if the integration can authenticate against the platform
func (i *Integration) HasCredentials() bool {
	return i.ShopDomain != "" && i.AccessTokenEncrypted != ""
}

// EnsureSyncable returns a setup error when the integration cannot be synced
func (i *Integration) EnsureSyncable() error {
	if !i.IsActive() {
		return ErrIntegrationNotActive
	}
	if !i.HasCredentials() {
		return ErrIntegrationMissingCredentials
	}
	return nil
}

// Disconnect marks the integration inactive. The token is cleared only when
// the integration's settings ask for it.
func (i *Integration) Disconnect() {
	i.Status = IntegrationStatusInactive
	if i.Settings.ClearTokenOnDisconnect {
		i.AccessTokenEncrypted = ""
	}
	i.UpdatedAt = time.Now()
}

// RecordError stores the last customer-visible sync failure
func (i *Integration) RecordError(message string, at time.Time) {
	i.LastErrorAt = &at
	i.LastErrorMessage = message
	i.UpdatedAt = time.Now()
}

// ---------------------------------------------------------------------------
// Repository Interfaces
// ---------------------------------------------------------------------------

// IntegrationReader defines the interface for reading integrations
type IntegrationReader interface {
	// FindByID finds an integration by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Integration, error)
	// FindByIDs finds integrations by IDs
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Integration, error)
	// FindActive finds all active integrations of a platform
	FindActive(ctx context.Context, platform Platform) ([]Integration, error)
}

// IntegrationWriter persists integrations. Field-level updates touch only the
// named columns, so concurrent sync types do not overwrite each other's state.
type IntegrationWriter interface {
	// Save creates or fully replaces an integration
	Save(ctx context.Context, integration *Integration) error
	// UpdateSettings replaces the settings column
	UpdateSettings(ctx context.Context, id uuid.UUID, settings Settings) error
	// TouchInventorySync sets last_inventory_sync_at
	TouchInventorySync(ctx context.Context, id uuid.UUID, at time.Time) error
	// TouchOrderSync sets last_order_sync_at
	TouchOrderSync(ctx context.Context, id uuid.UUID, at time.Time) error
	// RecordError sets last_error_at and last_error_message
	RecordError(ctx context.Context, id uuid.UUID, at time.Time, message string) error
}

// IntegrationRepository is the full persistence interface
type IntegrationRepository interface {
	IntegrationReader
	IntegrationWriter
}
