// Package domain contains the core domain models for the storefront commerce
// client. These types serve as the Single Source of Truth (SSOT) for all
// layers of the application and mirror the wire contracts of the storefront
// backend.
package domain

import (
	"time"
)

// ProductType classifies a catalog product.
type ProductType string

const (
	ProductTypePlugin ProductType = "plugin"
	ProductTypeTheme  ProductType = "theme"
)

// LicenseScope determines whether a product is licensed per software
// installation or per hosted journal instance.
type LicenseScope string

const (
	LicenseScopeInstallation LicenseScope = "installation"
	LicenseScopeJournal      LicenseScope = "journal"
)

// Product is a read-only catalog entity as rendered by the backend. Prices
// are in minor currency units.
type Product struct {
	ID           string       `json:"id" validate:"required"`
	Name         string       `json:"name" validate:"required"`
	ProductType  ProductType  `json:"product_type" validate:"required,oneof=plugin theme"`
	LicenseScope LicenseScope `json:"license_scope" validate:"required,oneof=installation journal"`
	BasePrice    int64        `json:"base_price" validate:"min=0"`
	SalePrice    *int64       `json:"sale_price,omitempty"`
	Version      string       `json:"version"`
	IsActive     bool         `json:"is_active"`
	IsFeatured   bool         `json:"is_featured"`
}

// EffectivePrice returns the sale price when set, the base price otherwise.
func (p Product) EffectivePrice() int64 {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.BasePrice
}

// CartItem is one line of the cart. Product is a denormalized snapshot for
// display; ProductID is the authoritative reference. Price is captured when
// the item is added or its license terms change, never re-derived in display
// logic.
type CartItem struct {
	ID           string    `json:"id" validate:"required"`
	ProductID    string    `json:"product_id" validate:"required"`
	Product      Product   `json:"product"`
	LicenseType  string    `json:"license_type" validate:"required"`
	Duration     string    `json:"license_duration" validate:"required"`
	Price        int64     `json:"price" validate:"min=0"`
	Quantity     int       `json:"quantity" validate:"min=1"`
	Total        int64     `json:"total"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Cart is the backend's rendering of the session cart. Subtotal and ItemCount
// are derivable from Items; Total includes server-side tax/fees and is ground
// truth, the client never recomputes it.
type Cart struct {
	Items     []CartItem `json:"items"`
	Subtotal  int64      `json:"subtotal"`
	Total     int64      `json:"total"`
	ItemCount int        `json:"item_count"`
}

// BillingDetails is the stage-one checkout payload. Validation bounds match
// the backend's billing schema.
type BillingDetails struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,min=1,max=20"`
	Organization string `json:"organization,omitempty" validate:"max=255"`
	Country      string `json:"country" validate:"required"`
	Address      string `json:"address" validate:"required,min=1,max=500"`
	City         string `json:"city" validate:"required,min=1,max=100"`
	PostalCode   string `json:"postal_code,omitempty" validate:"max=10"`
	Notes        string `json:"notes,omitempty" validate:"max=1000"`
}

// OrderReview is the stage-two checkout payload. TermsAccepted must be true;
// a false value is well-typed but semantically invalid.
type OrderReview struct {
	TermsAccepted bool `json:"terms_accepted"`
}

// OrderStatus tracks fulfillment of a placed order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus tracks payment verification of a placed order.
type PaymentStatus string

const (
	PaymentStatusUnpaid              PaymentStatus = "unpaid"
	PaymentStatusPendingVerification PaymentStatus = "pending_verification"
	PaymentStatusPaid                PaymentStatus = "paid"
	PaymentStatusRejected            PaymentStatus = "rejected"
)

// Order is the server-owned record read by the client after submission.
type Order struct {
	OrderNumber   string        `json:"order_number"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Items         []OrderItem   `json:"items"`
	Subtotal      int64         `json:"subtotal"`
	Total         int64         `json:"total"`
	PlacedAt      time.Time     `json:"placed_at"`
}

// OrderItem snapshots product name, version and license terms at time of
// purchase. It is an immutable historical record, independent of later
// product changes.
type OrderItem struct {
	ID             string `json:"id"`
	ProductName    string `json:"product_name"`
	ProductVersion string `json:"product_version"`
	LicenseType    string `json:"license_type"`
	Duration       string `json:"license_duration"`
	Price          int64  `json:"price"`
	Quantity       int    `json:"quantity"`
	Total          int64  `json:"total"`
}

// LicenseKey is an issued key attached to a completed order item.
type LicenseKey struct {
	Key            string     `json:"key"`
	OrderItemID    string     `json:"order_item_id"`
	ProductID      string     `json:"product_id"`
	ProductName    string     `json:"product_name"`
	ProductVersion string     `json:"product_version"`
	LicenseType    string     `json:"license_type"`
	Duration       string     `json:"license_duration"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IssuedAt       time.Time  `json:"issued_at"`
}
