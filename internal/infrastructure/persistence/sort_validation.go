package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// sortClause builds an ORDER BY expression from whitelisted input.
// The id tiebreaker keeps pages stable when the sort column has duplicates.
func sortClause(sortField, orderDir string, allowedFields map[string]bool) string {
	field := ValidateSortField(sortField, allowedFields, "created_at")
	dir := ValidateSortOrder(orderDir)
	if field == "id" {
		return "id " + dir
	}
	return field + " " + dir + ", id " + dir
}

// RefundSortFields contains allowed sort fields for refunds
var RefundSortFields = map[string]bool{
	"id":                 true,
	"created_at":         true,
	"updated_at":         true,
	"refund_number":      true,
	"status":             true,
	"refund_type":        true,
	"refund_method":      true,
	"total_refund_value": true,
	"customer_name":      true,
	"approved_at":        true,
	"completed_at":       true,
}

// VoucherSortFields contains allowed sort fields for vouchers
var VoucherSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"code":           true,
	"status":         true,
	"customer_name":  true,
	"original_value": true,
	"current_value":  true,
	"expires_at":     true,
}
