package config

import (
	"os"
	"strings"
)

// EnforcePaymentBalance rejects payments larger than the quotation's open balance.
// On unless explicitly disabled:
// - ENFORCE_PAYMENT_BALANCE=false
func EnforcePaymentBalance() bool {
	return boolFromEnv("ENFORCE_PAYMENT_BALANCE", true)
}

// EnforceClosedExpenseMonths blocks any write (autosave or salary cross-posting)
// into an expense month that has been closed.
// - ENFORCE_CLOSED_EXPENSE_MONTHS=false
func EnforceClosedExpenseMonths() bool {
	return boolFromEnv("ENFORCE_CLOSED_EXPENSE_MONTHS", true)
}

// OutboxEnabled starts the Pub/Sub outbox dispatcher. Events are always written;
// they simply stay PENDING while the dispatcher is off.
// - OUTBOX_ENABLED=true
func OutboxEnabled() bool {
	return boolFromEnv("OUTBOX_ENABLED", false)
}

func boolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return def
}
