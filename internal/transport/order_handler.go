package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OrderItemRequest is one line of a checkout. Missing or fractional numbers
// are passed on as 0.
type OrderItemRequest struct {
	ProductID json.Number `json:"product_id"`
	SizeValue string      `json:"size_value"`
	Quantity  json.Number `json:"quantity"`
}

// MakeOrderRequest represents the checkout payload
type MakeOrderRequest struct {
	CustomerAddress string             `json:"customer_address"`
	CustomerPhone   string             `json:"customer_phone"`
	Description     string             `json:"description"`
	Items           []OrderItemRequest `json:"items"`
}

func (r MakeOrderRequest) request() service.PlaceOrderRequest {
	req := service.PlaceOrderRequest{
		CustomerAddress: r.CustomerAddress,
		CustomerPhone:   r.CustomerPhone,
		Description:     r.Description,
		Items:           make([]service.OrderLine, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		req.Items = append(req.Items, service.OrderLine{
			ProductID: positiveInt(item.ProductID),
			SizeValue: item.SizeValue,
			Quantity:  int(positiveInt(item.Quantity)),
		})
	}
	return req
}

// positiveInt returns n as an integer, or 0 when it is missing or fractional
func positiveInt(n json.Number) int64 {
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

// OrderItemResponse is a line item as stored on the order
type OrderItemResponse struct {
	ProductID   int64       `json:"product_id"`
	ProductName string      `json:"product_name"`
	SizeID      int64       `json:"size_id"`
	SizeValue   string      `json:"size_value"`
	Price       json.Number `json:"price"`
	Quantity    int         `json:"quantity"`
	LineTotal   json.Number `json:"line_total"`
}

// OrderResponse represents an order with its items
type OrderResponse struct {
	ID              int64               `json:"order_id"`
	UserID          int64               `json:"user_id"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone"`
	CustomerAddress string              `json:"customer_address"`
	Description     string              `json:"description,omitempty"`
	Status          domain.OrderStatus  `json:"status"`
	Total           json.Number         `json:"total"`
	OrderDate       time.Time           `json:"order_date"`
	Items           []OrderItemResponse `json:"items"`
}

// MakeOrderResponse is returned when an order is created
type MakeOrderResponse struct {
	Message      string              `json:"message"`
	OrderID      int64               `json:"order_id"`
	CustomerName string              `json:"customer_name"`
	Total        json.Number         `json:"total"`
	Items        []OrderItemResponse `json:"items"`
}

// StatusChangeResponse is returned after a lifecycle transition
type StatusChangeResponse struct {
	Message string        `json:"message"`
	Order   OrderResponse `json:"order"`
}

func itemsOf(items []domain.OrderItem) []OrderItemResponse {
	out := make([]OrderItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, OrderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			SizeID:      item.SizeID,
			SizeValue:   item.SizeValue,
			Price:       money(item.Price),
			Quantity:    item.Quantity,
			LineTotal:   money(item.LineTotal),
		})
	}
	return out
}

func orderOf(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		CustomerAddress: o.CustomerAddress,
		Description:     o.Description,
		Status:          o.Status,
		Total:           money(o.Total),
		OrderDate:       o.OrderDate,
		Items:           itemsOf(o.Items),
	}
}

// OrderHandler handles HTTP requests for orders
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers all order routes. Roles are checked by the order
// service, ahead of payload validation.
func (h *OrderHandler) RegisterRoutes(r chi.Router, guards Guards) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(guards.Auth)

		r.With(guards.RateLimit).Post("/make_order", h.MakeOrder)
		r.Get("/my_orders", h.list(func(r *http.Request, userID int64) ([]*domain.Order, error) {
			return h.orderService.ListMyOrders(r.Context(), userID)
		}))
		r.Get("/admin_orders", h.list(func(r *http.Request, userID int64) ([]*domain.Order, error) {
			return h.orderService.ListAllOrders(r.Context(), userID)
		}))
		r.Get("/view_orders/{user_id}", h.list(func(r *http.Request, userID int64) ([]*domain.Order, error) {
			return h.orderService.ListOrdersByUser(r.Context(), userID, pathID(r, "user_id"))
		}))
		r.Get("/delivery_orders", h.list(func(r *http.Request, userID int64) ([]*domain.Order, error) {
			return h.orderService.ListDeliveryOrders(r.Context(), userID)
		}))

		r.Put("/accept_order/{order_id}", h.transition(h.orderService.AcceptOrder, "Order accepted"))
		r.Put("/complete_order/{order_id}", h.transition(h.orderService.CompleteOrder, "Order completed"))
		r.Put("/cancel_order/{order_id}", h.transition(h.orderService.CancelOrder, "Order cancelled"))
	})
}

// MakeOrder handles checkout
func (h *OrderHandler) MakeOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req MakeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Order decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orderService.PlaceOrder(r.Context(), userID, req.request())
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, MakeOrderResponse{
		Message:      "Order created successfully",
		OrderID:      order.ID,
		CustomerName: order.CustomerName,
		Total:        money(order.Total),
		Items:        itemsOf(order.Items),
	})
}

func (h *OrderHandler) list(fetch func(r *http.Request, userID int64) ([]*domain.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.GetUserID(r.Context())

		orders, err := fetch(r, userID)
		if err != nil {
			middleware.RespondWithDomainError(w, r, err, h.logger)
			return
		}

		resp := make([]OrderResponse, 0, len(orders))
		for _, o := range orders {
			resp = append(resp, orderOf(o))
		}
		middleware.RespondWithJSON(w, http.StatusOK, resp)
	}
}

type transitionFunc func(ctx context.Context, userID, orderID int64) (*domain.Order, error)

func (h *OrderHandler) transition(apply transitionFunc, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.GetUserID(r.Context())

		order, err := apply(r.Context(), userID, pathID(r, "order_id"))
		if err != nil {
			middleware.RespondWithDomainError(w, r, err, h.logger)
			return
		}

		middleware.RespondWithJSON(w, http.StatusOK, StatusChangeResponse{
			Message: message,
			Order:   orderOf(order),
		})
	}
}
