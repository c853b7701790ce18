package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex chg_01HZY7Q4J5T0V9X3M2K8FJOOFX
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	// Prefixes for all ledger entities

	UUID_PREFIX_CHARGE             = "chg"
	UUID_PREFIX_PAYMENT            = "pay"
	UUID_PREFIX_PAYMENT_ALLOCATION = "alloc"
	UUID_PREFIX_CREDIT_BALANCE     = "cred"
	UUID_PREFIX_BILLING_RUN        = "run"
)

// RECEIPT_NUMBER_PREFIX prefixes the zero padded sequence value of every receipt, ex REC-000042
const RECEIPT_NUMBER_PREFIX = "REC-"

// FormatReceiptNumber renders a receipt sequence value.
func FormatReceiptNumber(seq int64) string {
	return fmt.Sprintf("%s%06d", RECEIPT_NUMBER_PREFIX, seq)
}
