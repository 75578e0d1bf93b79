package services

import (
	"fmt"

	"github.com/diewo77/proposals-app/validation"
)

// The resolver and ledger never swallow failures: each class below is
// distinguishable with errors.As so callers can decide between "show error",
// "retry" and "proceed degraded".

// ValidationError reports missing or invalid input. Nothing was persisted.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string { return "validation_failed" }

// ReconciliationError means a customer or product lookup/creation failed.
// The quote write was aborted before any header row was created.
type ReconciliationError struct {
	Entity string // "customer" or "product"
	Cause  error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation_failed: %s: %v", e.Entity, e.Cause)
}

func (e *ReconciliationError) Unwrap() error { return e.Cause }

// PartialWriteError means the quote header was written but its items were
// not. The header is a recoverable, re-editable state, not corruption:
// callers resume it through the edit path using QuoteID.
type PartialWriteError struct {
	QuoteID string
	Cause   error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial_write: quote %s has no items: %v", e.QuoteID, e.Cause)
}

func (e *PartialWriteError) Unwrap() error { return e.Cause }

// ProvisioningDegradedError means tenant resolution failed partway but a
// usable business id is still returned. Subsequent calls self-heal.
type ProvisioningDegradedError struct {
	BusinessID string
	Cause      error
}

func (e *ProvisioningDegradedError) Error() string {
	return fmt.Sprintf("provisioning_degraded: business=%q: %v", e.BusinessID, e.Cause)
}

func (e *ProvisioningDegradedError) Unwrap() error { return e.Cause }
