// Package pricing computes per-item and cart-level totals for the storefront
// commerce client. All functions are pure and safe to call on every render;
// prices are int64 minor currency units.
package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/okstore/commerce-client/pkg/contracts/domain"
)

var (
	// ErrInvalidLicenseScope indicates a license type incompatible with the
	// product's license scope. This is an invariant violation, not a user
	// error: correct UI gating never produces it.
	ErrInvalidLicenseScope = errors.New("license type not valid for product license scope")

	// ErrInvalidQuantity indicates a zero or negative quantity.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrUnknownLicenseType indicates a license type id missing from the catalog.
	ErrUnknownLicenseType = errors.New("unknown license type")

	// ErrUnknownDuration indicates a duration id missing from the catalog.
	ErrUnknownDuration = errors.New("unknown license duration")
)

// ComputeItemPrice returns the unit price for a product at the given license
// type and duration: basePrice * duration.Multiplier. The license type does
// not itself scale the price, but it must be compatible with the product's
// license scope; a mismatch fails loudly rather than pricing incorrectly.
func ComputeItemPrice(basePrice int64, scope domain.LicenseScope, licenseTypeID, durationID string) (int64, error) {
	lt, ok := LookupLicenseType(licenseTypeID)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLicenseType, licenseTypeID)
	}
	d, ok := LookupDuration(durationID)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDuration, durationID)
	}
	if !lt.CompatibleWithScope(scope) {
		return 0, fmt.Errorf("%w: type %q, scope %q", ErrInvalidLicenseScope, licenseTypeID, scope)
	}
	return int64(math.Round(float64(basePrice) * d.Multiplier)), nil
}

// ComputeItemTotal returns price * quantity for one cart line.
func ComputeItemTotal(price int64, quantity int) (int64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	return price * int64(quantity), nil
}

// ComputeCartSubtotal sums price*quantity across all items. An empty cart
// yields 0. Items with a non-positive quantity are an invariant violation and
// surface as an error rather than being skipped.
func ComputeCartSubtotal(items []domain.CartItem) (int64, error) {
	var subtotal int64
	for _, item := range items {
		total, err := ComputeItemTotal(item.Price, item.Quantity)
		if err != nil {
			return 0, fmt.Errorf("item %s: %w", item.ID, err)
		}
		subtotal += total
	}
	return subtotal, nil
}

// ItemCount sums quantities across all items.
func ItemCount(items []domain.CartItem) int {
	var n int
	for _, item := range items {
		n += item.Quantity
	}
	return n
}
