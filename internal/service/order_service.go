package service

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// OrderLine is one requested item of a new order
type OrderLine struct {
	ProductID int64
	SizeValue string
	Quantity  int
}

// PlaceOrderRequest carries a customer's checkout
type PlaceOrderRequest struct {
	CustomerAddress string
	CustomerPhone   string
	Description     string
	Items           []OrderLine
}

// OrderService defines the interface for order business logic
type OrderService interface {
	PlaceOrder(ctx context.Context, userID int64, req PlaceOrderRequest) (*domain.Order, error)
	AcceptOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	CompleteOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	CancelOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	ListMyOrders(ctx context.Context, userID int64) ([]*domain.Order, error)
	ListAllOrders(ctx context.Context, userID int64) ([]*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID, customerID int64) ([]*domain.Order, error)
	ListDeliveryOrders(ctx context.Context, userID int64) ([]*domain.Order, error)
}

type orderService struct {
	store      repository.OrderStore
	users      repository.UserRepository
	authorizer Authorizer
	logger     *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	store repository.OrderStore,
	users repository.UserRepository,
	authorizer Authorizer,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		store:      store,
		users:      users,
		authorizer: authorizer,
		logger:     logger,
	}
}

var forbiddenMessages = map[domain.Role]string{
	domain.RoleCustomer: "Only customers can %s",
	domain.RoleAdmin:    "Only admins can %s",
	domain.RoleDelivery: "Only delivery staff can %s",
}

// requireRole rejects anonymous callers and callers lacking role
func (s *orderService) requireRole(ctx context.Context, userID int64, role domain.Role, what string) error {
	if userID <= 0 {
		return domain.Unauthorized("authentication required")
	}
	ok, err := s.authorizer.HasRole(ctx, userID, role)
	if err != nil {
		return domain.Internal("failed to check role", err)
	}
	if !ok {
		return domain.Forbidden(forbiddenMessages[role], what)
	}
	return nil
}

// PlaceOrder validates the request, then reserves stock for every line and
// records the order in a single transaction.
func (s *orderService) PlaceOrder(ctx context.Context, userID int64, req PlaceOrderRequest) (*domain.Order, error) {
	if err := s.requireRole(ctx, userID, domain.RoleCustomer, "place orders"); err != nil {
		return nil, err
	}
	if err := validatePlaceOrder(&req); err != nil {
		return nil, err
	}

	customer, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domain.Unauthorized("user not found")
		}
		return nil, domain.Internal("failed to load customer", err)
	}

	order := &domain.Order{
		UserID:          userID,
		CustomerName:    customer.FullName(),
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		Description:     req.Description,
		Status:          domain.StatusProcessing,
	}

	err = s.store.WithinTx(ctx, func(tx repository.OrderTx) error {
		items, err := reserveLines(ctx, tx, req.Items)
		if err != nil {
			return err
		}

		order.Items = items
		order.Total = domain.OrderTotal(items)
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		for i := range order.Items {
			item := &order.Items[i]
			item.OrderID = order.ID
			if err := tx.InsertOrderItem(ctx, item); err != nil {
				return err
			}
			if err := tx.DecrementStock(ctx, item.SizeID, item.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return domain.BadRequest("not enough stock for product %d size %s", item.ProductID, item.SizeValue)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Order rejected",
			zap.Int64("user_id", userID),
			zap.Int("lines", len(req.Items)),
			zap.Error(err),
		)
		return nil, asDomainError(err, "failed to create order")
	}

	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("total", order.Total.StringFixed(2)),
	)

	return order, nil
}

// reserveLines locks every requested size and checks it against the stock
// still free after earlier lines of the same request.
func reserveLines(ctx context.Context, tx repository.OrderTx, lines []OrderLine) ([]domain.OrderItem, error) {
	reserved := make(map[int64]int, len(lines))
	items := make([]domain.OrderItem, 0, len(lines))

	for _, line := range lines {
		sp, err := tx.LockSizedProduct(ctx, line.ProductID, line.SizeValue)
		if err != nil {
			if errors.Is(err, repository.ErrProductSizeNotFound) {
				return nil, domain.NotFound("product %d with size %s not found", line.ProductID, line.SizeValue)
			}
			return nil, err
		}

		available := sp.Stock - reserved[sp.SizeID]
		if available < line.Quantity {
			return nil, domain.BadRequest("not enough stock for product %s size %s", sp.ProductName, sp.SizeValue).
				WithDetail("available_stock", available)
		}
		reserved[sp.SizeID] += line.Quantity

		items = append(items, domain.OrderItem{
			ProductID:   sp.ProductID,
			SizeID:      sp.SizeID,
			SizeValue:   sp.SizeValue,
			ProductName: sp.ProductName,
			Price:       sp.UnitPrice,
			Quantity:    line.Quantity,
			LineTotal:   domain.LineTotal(sp.UnitPrice, line.Quantity),
		})
	}

	return items, nil
}

func validatePlaceOrder(req *PlaceOrderRequest) error {
	req.CustomerAddress = strings.TrimSpace(req.CustomerAddress)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.Description = strings.TrimSpace(req.Description)

	if req.CustomerAddress == "" || req.CustomerPhone == "" {
		return domain.BadRequest("customer_address and customer_phone are required")
	}
	if len(req.Items) == 0 {
		return domain.BadRequest("Order must contain at least one item")
	}
	for i := range req.Items {
		line := &req.Items[i]
		line.SizeValue = strings.TrimSpace(line.SizeValue)
		if line.ProductID <= 0 || line.SizeValue == "" {
			return domain.BadRequest("item %d must include product_id and size_value", i+1)
		}
		if line.Quantity <= 0 {
			return domain.BadRequest("item %d quantity must be a positive integer", i+1)
		}
	}
	return nil
}

func (s *orderService) AcceptOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	return s.transition(ctx, domain.ActionAccept, userID, orderID, "accept orders")
}

func (s *orderService) CompleteOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	return s.transition(ctx, domain.ActionComplete, userID, orderID, "complete orders")
}

func (s *orderService) CancelOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	return s.transition(ctx, domain.ActionCancel, userID, orderID, "cancel orders")
}

// transition applies one lifecycle edge to an order inside a transaction
func (s *orderService) transition(ctx context.Context, action domain.OrderAction, userID, orderID int64, what string) (*domain.Order, error) {
	t, ok := domain.TransitionFor(action)
	if !ok {
		return nil, domain.Internal("unknown order action "+string(action), nil)
	}
	if err := s.requireRole(ctx, userID, t.Actor, what); err != nil {
		return nil, err
	}
	if orderID <= 0 {
		return nil, domain.BadRequest("invalid order id")
	}

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.OrderTx) error {
		var err error
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return domain.NotFound("order %d not found", orderID)
			}
			return err
		}

		if t.OwnerOnly && order.UserID != userID {
			return domain.Forbidden("You can only %s your own orders", string(action))
		}
		if order.Status != t.From {
			return domain.BadRequest("order must be in %s status", t.From).
				WithDetail("current_status", string(order.Status))
		}

		items, err := tx.OrderItems(ctx, orderID)
		if err != nil {
			return err
		}
		order.Items = items

		if t.RestoresStock {
			for _, item := range items {
				if err := tx.IncrementStock(ctx, item.SizeID, item.Quantity); err != nil {
					return err
				}
			}
		}

		if err := tx.UpdateOrderStatus(ctx, orderID, t.From, t.To); err != nil {
			if errors.Is(err, repository.ErrOrderStatusChanged) {
				return domain.Conflict("order %d changed status concurrently", orderID)
			}
			return err
		}
		order.Status = t.To
		return nil
	})
	if err != nil {
		return nil, asDomainError(err, "failed to "+string(action)+" order")
	}

	s.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.Int64("user_id", userID),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
	)

	return order, nil
}

func (s *orderService) ListMyOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	if err := s.requireRole(ctx, userID, domain.RoleCustomer, "view their orders"); err != nil {
		return nil, err
	}
	return s.listed(s.store.ListByUser(ctx, userID))
}

func (s *orderService) ListAllOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	if err := s.requireRole(ctx, userID, domain.RoleAdmin, "view all orders"); err != nil {
		return nil, err
	}
	return s.listed(s.store.ListAll(ctx))
}

func (s *orderService) ListOrdersByUser(ctx context.Context, userID, customerID int64) ([]*domain.Order, error) {
	if err := s.requireRole(ctx, userID, domain.RoleAdmin, "view customer orders"); err != nil {
		return nil, err
	}
	if customerID <= 0 {
		return nil, domain.BadRequest("invalid user id")
	}
	return s.listed(s.store.ListByUser(ctx, customerID))
}

func (s *orderService) ListDeliveryOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	if err := s.requireRole(ctx, userID, domain.RoleDelivery, "view delivery orders"); err != nil {
		return nil, err
	}
	return s.listed(s.store.ListByStatus(ctx, domain.StatusDelivering))
}

func (s *orderService) listed(orders []*domain.Order, err error) ([]*domain.Order, error) {
	if err != nil {
		return nil, domain.Internal("failed to list orders", err)
	}
	return orders, nil
}

// asDomainError passes classified errors through and wraps the rest as internal
func asDomainError(err error, msg string) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.Internal(msg, err)
}
