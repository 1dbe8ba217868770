package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// FreeShippingThreshold is the cart total from which shipping is free.
	FreeShippingThreshold = 100.0
	// FlatShipping is charged below FreeShippingThreshold.
	FlatShipping = 9.99
)

var (
	ErrEmptyOrder        = errors.New("order has no items")
	ErrIncompleteAddress = errors.New("address is incomplete")
)

// OrderStatus mirrors the backend's order states.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// Address is the delivery address captured at checkout.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Zip       string `json:"zip"`
}

// Validate requires every field.
func (a Address) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"first_name", a.FirstName},
		{"last_name", a.LastName},
		{"email", a.Email},
		{"address", a.Address},
		{"city", a.City},
		{"zip", a.Zip},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteAddress, strings.Join(missing, ", "))
	}
	return nil
}

// OrderItem is the denormalized snapshot of a cart line inside an order.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// UnmarshalJSON accepts quantities sent as floats ("quantity": 2.0).
func (i *OrderItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		ProductID string  `json:"product_id"`
		Name      string  `json:"name"`
		Price     float64 `json:"price"`
		Quantity  float64 `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = OrderItem{
		ProductID: raw.ProductID,
		Name:      raw.Name,
		Price:     raw.Price,
		Quantity:  int(math.Round(raw.Quantity)),
	}
	return nil
}

// ItemsFromCart snapshots cart lines for an order.
func ItemsFromCart(lines []CartLine) []OrderItem {
	items := make([]OrderItem, len(lines))
	for i, l := range lines {
		items[i] = OrderItem{ProductID: l.ProductID, Name: l.Name, Price: l.Price, Quantity: l.Quantity}
	}
	return items
}

// OrderUser is the customer summary attached to orders in admin listings.
type OrderUser struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Order is immutable once created, except for admin deletion.
type Order struct {
	ID      string      `json:"_id"`
	User    *OrderUser  `json:"user,omitempty"`
	Items   []OrderItem `json:"items"`
	Amount  float64     `json:"amount"`
	Address Address     `json:"address"`
	Status  OrderStatus `json:"status"`
	Payment bool        `json:"payment"`
	Date    string      `json:"date"`
}

// Quote is the price breakdown shown before checkout.
type Quote struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Amount   float64 `json:"amount"`
}

// NewQuote prices a cart total: free shipping from FreeShippingThreshold,
// FlatShipping below it.
func NewQuote(cartTotal float64) Quote {
	shipping := Shipping(cartTotal)
	return Quote{
		Subtotal: RoundCents(cartTotal),
		Shipping: shipping,
		Amount:   RoundCents(cartTotal + shipping),
	}
}

// Shipping returns 0 when cartTotal >= FreeShippingThreshold, else FlatShipping.
func Shipping(cartTotal float64) float64 {
	if cartTotal >= FreeShippingThreshold {
		return 0
	}
	return FlatShipping
}

// RoundCents rounds to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
