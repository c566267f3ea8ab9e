package dto

import (
	"errors"
	"net/http"

	"github.com/wms/shopsync/internal/domain/integration"
	"github.com/wms/shopsync/internal/domain/shared"
	"github.com/wms/shopsync/internal/infrastructure/csvimport"
	"github.com/wms/shopsync/internal/infrastructure/scheduler"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	ErrCodeValidation = "ERR_VALIDATION"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidSettings is used when integration settings fail validation
	ErrCodeInvalidSettings = "ERR_INVALID_SETTINGS"
	// ErrCodeInvalidFile rejects an uploaded file as a whole
	ErrCodeInvalidFile = "ERR_INVALID_FILE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	// ErrCodeInvalidSignature is used when a webhook HMAC does not verify
	ErrCodeInvalidSignature = "ERR_INVALID_SIGNATURE"
)

// Resource error codes
const (
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	ErrCodeConflict      = "ERR_CONFLICT"
)

// Integration state error codes
const (
	// ErrCodeIntegrationInactive is used when a sync is requested for a disconnected shop
	ErrCodeIntegrationInactive = "ERR_INTEGRATION_INACTIVE"
	// ErrCodeMissingCredentials is used when the integration has no access token
	ErrCodeMissingCredentials = "ERR_MISSING_CREDENTIALS"
	// ErrCodeNoLocation is used when no platform location could be resolved
	ErrCodeNoLocation = "ERR_NO_LOCATION"
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodePlatform is used when the platform rejected or failed a request
	ErrCodePlatform = "ERR_PLATFORM"
)

// Rate limiting error codes
const (
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidSettings: http.StatusBadRequest,
	ErrCodeInvalidFile:     http.StatusBadRequest,

	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeTokenExpired:     http.StatusUnauthorized,
	ErrCodeTokenInvalid:     http.StatusUnauthorized,
	ErrCodeInvalidSignature: http.StatusUnauthorized,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeConflict:      http.StatusConflict,

	ErrCodeIntegrationInactive: http.StatusUnprocessableEntity,
	ErrCodeMissingCredentials:  http.StatusUnprocessableEntity,
	ErrCodeNoLocation:          http.StatusUnprocessableEntity,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodePlatform:            http.StatusBadGateway,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// errorMapping pairs a domain sentinel with the code and message exposed to clients
type errorMapping struct {
	target  error
	code    string
	message string
}

// domainErrors is checked in order; the first errors.Is match wins
var domainErrors = []errorMapping{
	{integration.ErrIntegrationNotFound, ErrCodeNotFound, "Integration not found"},
	{integration.ErrMappingNotFound, ErrCodeNotFound, "Product mapping not found"},
	{integration.ErrOrderNotFound, ErrCodeNotFound, "Order not found"},
	{integration.ErrReturnNotFound, ErrCodeNotFound, "Return not found"},
	{shared.ErrOutboxEntryNotFound, ErrCodeNotFound, "Task not found"},
	{scheduler.ErrJobNotFound, ErrCodeNotFound, "Job not found"},
	{integration.ErrMappingAlreadyExists, ErrCodeAlreadyExists, "Product is already mapped for this integration"},
	{integration.ErrOrderAlreadyImported, ErrCodeAlreadyExists, "Order was already imported"},
	{integration.ErrOrderNumberTaken, ErrCodeAlreadyExists, "Order number is already taken"},
	{scheduler.ErrJobAlreadyRunning, ErrCodeConflict, "Job is already running"},
	{integration.ErrIntegrationNotActive, ErrCodeIntegrationInactive, "Integration is not active"},
	{integration.ErrIntegrationMissingCredentials, ErrCodeMissingCredentials, "Integration has no access token"},
	{integration.ErrNoLocation, ErrCodeNoLocation, "No Shopify location could be resolved"},
	{shared.ErrOutboxNotDead, ErrCodeInvalidState, "Only dead tasks can be retried"},
	{integration.ErrSettingsInvalid, ErrCodeInvalidSettings, ""},
	{integration.ErrSettingsUnsupportedVersion, ErrCodeInvalidSettings, ""},
	{integration.ErrMappingInvalidIntegrationID, ErrCodeBadRequest, "Invalid integration ID"},
	{integration.ErrMappingInvalidProductID, ErrCodeBadRequest, "Invalid product ID"},
	{integration.ErrMappingMissingVariant, ErrCodeBadRequest, "External variant ID is required"},
	{integration.ErrMappingMissingInventoryItem, ErrCodeBadRequest, "External inventory item ID is required"},
	{csvimport.ErrEmptyFile, ErrCodeInvalidFile, ""},
	{csvimport.ErrInvalidEncoding, ErrCodeInvalidFile, ""},
	{csvimport.ErrMissingHeader, ErrCodeInvalidFile, ""},
	{csvimport.ErrDuplicateHeader, ErrCodeInvalidFile, ""},
	{csvimport.ErrMissingColumns, ErrCodeInvalidFile, ""},
	{csvimport.ErrMalformedRow, ErrCodeInvalidFile, ""},
	{csvimport.ErrTooManyRows, ErrCodeInvalidFile, ""},
	{csvimport.ErrNoDataRows, ErrCodeInvalidFile, ""},
	{integration.ErrPlatformInvalidSignature, ErrCodeInvalidSignature, "Invalid webhook signature"},
	{integration.ErrPlatformRequestFailed, ErrCodePlatform, "Shopify request failed"},
	{integration.ErrPlatformInvalidResponse, ErrCodePlatform, "Shopify returned an invalid response"},
}

// FromError resolves err to an error code and client-facing message.
// An empty message in the table means the error text itself is safe to show.
// Unknown errors map to ErrCodeInternal.
func FromError(err error) (code, message string) {
	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			if m.message == "" {
				return m.code, err.Error()
			}
			return m.code, m.message
		}
	}
	return ErrCodeInternal, "An unexpected error occurred"
}
