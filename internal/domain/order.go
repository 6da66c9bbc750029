package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	StatusProcessing OrderStatus = "processing"
	StatusDelivering OrderStatus = "delivering"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusDelivering, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s OrderStatus) Terminal() bool {
	for _, t := range transitions {
		if t.From == s {
			return false
		}
	}
	return true
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, t := range transitions {
		if t.From == s && t.To == next {
			return true
		}
	}
	return false
}

// OrderAction names a post-creation status change
type OrderAction string

const (
	ActionAccept   OrderAction = "accept"
	ActionComplete OrderAction = "complete"
	ActionCancel   OrderAction = "cancel"
)

// Transition describes one edge of the order lifecycle
type Transition struct {
	Action OrderAction
	From   OrderStatus
	To     OrderStatus
	Actor  Role
	// OwnerOnly restricts the transition to the customer who placed the order
	OwnerOnly bool
	// RestoresStock returns every item quantity to its size when applied
	RestoresStock bool
}

var transitions = map[OrderAction]Transition{
	ActionAccept: {
		Action: ActionAccept,
		From:   StatusProcessing,
		To:     StatusDelivering,
		Actor:  RoleAdmin,
	},
	ActionComplete: {
		Action: ActionComplete,
		From:   StatusDelivering,
		To:     StatusCompleted,
		Actor:  RoleDelivery,
	},
	ActionCancel: {
		Action:        ActionCancel,
		From:          StatusProcessing,
		To:            StatusCancelled,
		Actor:         RoleCustomer,
		OwnerOnly:     true,
		RestoresStock: true,
	},
}

// TransitionFor returns the lifecycle edge for an action
func TransitionFor(action OrderAction) (Transition, bool) {
	t, ok := transitions[action]
	return t, ok
}

// Order is an order header together with its line items
type Order struct {
	ID              int64           `json:"order_id"`
	UserID          int64           `json:"user_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress string          `json:"customer_address"`
	Description     string          `json:"description"`
	Status          OrderStatus     `json:"status"`
	Total           decimal.Decimal `json:"total"`
	OrderDate       time.Time       `json:"order_date"`
	Items           []OrderItem     `json:"items"`
}

// OrderItem snapshots product, size and price at order time. Items are
// never changed after the order is created.
type OrderItem struct {
	ID          int64           `json:"order_item_id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	SizeID      int64           `json:"size_id"`
	SizeValue   string          `json:"size_value"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// LineTotal returns unit price times quantity rounded to cents
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// OrderTotal sums already rounded line totals and rounds the result to cents
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal)
	}
	return total.Round(2)
}
