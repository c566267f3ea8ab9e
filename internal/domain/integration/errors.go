package integration

import "errors"

// ---------------------------------------------------------------------------
// Integration Errors
// ---------------------------------------------------------------------------

var (
	// Integration errors
	ErrIntegrationNotFound           = errors.New("integration: integration not found")
	ErrIntegrationNotActive          = errors.New("integration: integration is not active")
	ErrIntegrationMissingCredentials = errors.New("integration: integration has no credentials")
	ErrIntegrationInvalidClientID    = errors.New("integration: invalid client ID")
	ErrIntegrationInvalidShopDomain  = errors.New("integration: invalid shop domain")
	ErrUnsupportedPlatform           = errors.New("integration: unsupported platform")
	ErrNoLocation                    = errors.New("integration: no platform location could be resolved")

	// Settings errors
	ErrSettingsInvalid            = errors.New("integration: invalid settings")
	ErrSettingsUnsupportedVersion = errors.New("integration: unsupported settings schema version")

	// Platform errors
	ErrPlatformRequestFailed    = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse  = errors.New("integration: invalid platform response")
	ErrPlatformInvalidSignature = errors.New("integration: invalid platform signature")

	// Mapping errors
	ErrMappingNotFound             = errors.New("integration: product mapping not found")
	ErrMappingAlreadyExists        = errors.New("integration: product mapping already exists")
	ErrMappingInvalidIntegrationID = errors.New("integration: invalid integration ID")
	ErrMappingInvalidProductID     = errors.New("integration: invalid product ID")
	ErrMappingMissingVariant       = errors.New("integration: mapping has no external variant ID")
	ErrMappingMissingInventoryItem = errors.New("integration: mapping has no external inventory item ID")
	ErrMappingMissingProduct       = errors.New("integration: mapping has no external product ID")

	// Order errors
	ErrOrderNotFound        = errors.New("integration: order not found")
	ErrOrderAlreadyImported = errors.New("integration: external order already imported")
	ErrOrderNumberTaken     = errors.New("integration: order number already taken")

	// Return errors
	ErrReturnNotFound = errors.New("integration: return not found")
)
