package integration

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// CurrentSettingsVersion is the schema version written by this code
const CurrentSettingsVersion = 1

var settingsValidator = validator.New()

// Settings is the typed per-integration configuration. It is stored as a
// versioned JSON document on the integration row.
type Settings struct {
	// SchemaVersion is the document version, 0 for legacy unversioned blobs
	SchemaVersion int `json:"schema_version" validate:"gte=1"`
	// InventoryBuffer is held back from every pushed available quantity
	InventoryBuffer int `json:"inventory_buffer" validate:"gte=0"`
	// AutoSyncInventory enables event driven and scheduled inventory pushes
	AutoSyncInventory bool `json:"auto_sync_inventory"`
	// AutoSyncOrders enables scheduled order pulls
	AutoSyncOrders bool `json:"auto_sync_orders"`
	// ShopifyLocationID caches the platform location inventory is set on
	ShopifyLocationID string `json:"shopify_location_id,omitempty" validate:"omitempty,numeric"`
	// DefaultWarehouseLocationID scopes the inventory aggregate to one internal location
	DefaultWarehouseLocationID *uuid.UUID `json:"default_warehouse_location_id,omitempty"`
	// NotifyCustomerOnFulfillment asks the platform to email shipment notifications
	NotifyCustomerOnFulfillment bool `json:"notify_customer_on_fulfillment"`
	// ClearTokenOnDisconnect drops the stored token when the integration is disconnected
	ClearTokenOnDisconnect bool `json:"clear_token_on_disconnect"`
}

// DefaultSettings returns the settings a new integration starts with
func DefaultSettings() Settings {
	return Settings{
		SchemaVersion:               CurrentSettingsVersion,
		AutoSyncInventory:           true,
		AutoSyncOrders:              true,
		NotifyCustomerOnFulfillment: true,
	}
}

// legacySettings holds the keys used by unversioned settings blobs
type legacySettings struct {
	LocationID          *string `json:"location_id"`
	NotifyOnFulfillment *bool   `json:"notify_on_fulfillment"`
}

// ParseSettings decodes a stored settings document. Missing keys take their
// defaults, unversioned documents are upgraded, and the result is validated.
func ParseSettings(raw []byte) (Settings, error) {
	s := DefaultSettings()
	if len(raw) == 0 || string(raw) == "null" {
		return s, nil
	}

	s.SchemaVersion = 0
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrSettingsInvalid, err)
	}

	switch {
	case s.SchemaVersion == 0:
		var legacy legacySettings
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return Settings{}, fmt.Errorf("%w: %v", ErrSettingsInvalid, err)
		}
		if legacy.LocationID != nil && s.ShopifyLocationID == "" {
			s.ShopifyLocationID = *legacy.LocationID
		}
		if legacy.NotifyOnFulfillment != nil {
			s.NotifyCustomerOnFulfillment = *legacy.NotifyOnFulfillment
		}
		s.SchemaVersion = CurrentSettingsVersion
	case s.SchemaVersion > CurrentSettingsVersion:
		return Settings{}, fmt.Errorf("%w: %d", ErrSettingsUnsupportedVersion, s.SchemaVersion)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks field constraints
func (s Settings) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsInvalid, err)
	}
	return nil
}

// Marshal encodes the settings for storage, always at the current version
func (s Settings) Marshal() ([]byte, error) {
	s.SchemaVersion = CurrentSettingsVersion
	return json.Marshal(s)
}

// WithLocation returns a copy with the platform location cached
func (s Settings) WithLocation(locationID string) Settings {
	s.ShopifyLocationID = locationID
	return s
}
