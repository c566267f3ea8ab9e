package csvimport

import (
	"errors"
	"fmt"
)

// Row error codes
const (
	ErrCodeRequiredField   = "ERR_IMPORT_REQUIRED_FIELD"
	ErrCodeInvalidFormat   = "ERR_IMPORT_INVALID_FORMAT"
	ErrCodeInvalidLength   = "ERR_IMPORT_INVALID_LENGTH"
	ErrCodeDuplicateInFile = "ERR_IMPORT_DUPLICATE_IN_FILE"
	ErrCodeNotFound        = "ERR_IMPORT_REFERENCE_NOT_FOUND"
	ErrCodeConflict        = "ERR_IMPORT_CONFLICT"
	ErrCodeRejected        = "ERR_IMPORT_REJECTED"
)

// File-level errors
var (
	ErrEmptyFile       = errors.New("csvimport: file is empty")
	ErrInvalidEncoding = errors.New("csvimport: file is not valid UTF-8")
	ErrMissingHeader   = errors.New("csvimport: file has no header row")
	ErrDuplicateHeader = errors.New("csvimport: duplicate header")
	ErrMissingColumns  = errors.New("csvimport: required columns missing")
	ErrMalformedRow    = errors.New("csvimport: malformed row")
	ErrTooManyRows     = errors.New("csvimport: too many rows")
	ErrNoDataRows      = errors.New("csvimport: file has no data rows")
)

// RowError describes a problem with one cell or row
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ErrorCollection keeps the first maxErrors row errors and counts the rest
type ErrorCollection struct {
	errors    []RowError
	maxErrors int
	total     int
	rows      map[int]struct{}
}

// NewErrorCollection creates a collection; maxErrors <= 0 means 100
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorCollection{
		errors:    make([]RowError, 0),
		maxErrors: maxErrors,
		rows:      make(map[int]struct{}),
	}
}

// Add records err
func (ec *ErrorCollection) Add(err RowError) {
	ec.total++
	ec.rows[err.Row] = struct{}{}
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// AddRequired records a missing required value
func (ec *ErrorCollection) AddRequired(row int, column string) {
	ec.Add(RowError{Row: row, Column: column, Code: ErrCodeRequiredField,
		Message: fmt.Sprintf("field '%s' is required", column)})
}

// AddFormat records a value that does not parse as expected
func (ec *ErrorCollection) AddFormat(row int, column, expected, value string) {
	ec.Add(RowError{Row: row, Column: column, Code: ErrCodeInvalidFormat,
		Message: fmt.Sprintf("invalid format, expected %s", expected), Value: value})
}

// AddDuplicate records a value already seen at firstRow
func (ec *ErrorCollection) AddDuplicate(row int, column, value string, firstRow int) {
	ec.Add(RowError{Row: row, Column: column, Code: ErrCodeDuplicateInFile,
		Message: fmt.Sprintf("duplicate value (first seen in row %d)", firstRow), Value: value})
}

// Errors returns the kept errors in the order they were added
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// TotalCount returns every error added, kept or not
func (ec *ErrorCollection) TotalCount() int {
	return ec.total
}

// HasErrors returns true if any error was added
func (ec *ErrorCollection) HasErrors() bool {
	return ec.total > 0
}

// HasRowError reports whether row has at least one error
func (ec *ErrorCollection) HasRowError(row int) bool {
	_, ok := ec.rows[row]
	return ok
}

// RowCount returns the number of distinct rows with errors
func (ec *ErrorCollection) RowCount() int {
	return len(ec.rows)
}

// IsTruncated returns true if some errors were dropped
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.total > ec.maxErrors
}
