package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// fakeUserRepository keeps users in memory
type fakeUserRepository struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: make(map[int64]*domain.User)}
}

func (r *fakeUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrUserAlreadyExists
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			found := *u
			return &found, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	found := *u
	return &found, nil
}

func (r *fakeUserRepository) FindActiveRole(ctx context.Context, id int64) (domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || !u.Active {
		return "", repository.ErrUserNotFound
	}
	return u.Role, nil
}

func (r *fakeUserRepository) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, u := range r.users {
		if u.Role == role {
			count++
		}
	}
	return count, nil
}

// add stores an active user with the given role and returns its id
func (r *fakeUserRepository) add(role domain.Role, first, last string) int64 {
	user := &domain.User{
		FirstName:    first,
		LastName:     last,
		Username:     first + "." + last + "." + string(role),
		PasswordHash: "x",
		Role:         role,
		Active:       true,
	}
	if err := r.Create(context.Background(), user); err != nil {
		panic(err)
	}
	return user.ID
}

func (r *fakeUserRepository) deactivate(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].Active = false
}

type fakeSize struct {
	productID   int64
	productName string
	price       decimal.Decimal
	sizeValue   string
	stock       int
}

type fakeState struct {
	sizes       map[int64]*fakeSize
	orders      map[int64]*domain.Order
	nextOrderID int64
	nextItemID  int64
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		sizes:       make(map[int64]*fakeSize, len(s.sizes)),
		orders:      make(map[int64]*domain.Order, len(s.orders)),
		nextOrderID: s.nextOrderID,
		nextItemID:  s.nextItemID,
	}
	for id, size := range s.sizes {
		cp := *size
		c.sizes[id] = &cp
	}
	for id, order := range s.orders {
		cp := *order
		cp.Items = append([]domain.OrderItem(nil), order.Items...)
		c.orders[id] = &cp
	}
	return c
}

// fakeOrderStore is a transactional in-memory OrderStore. Transactions run
// one at a time against a copy of the state that is swapped in on commit.
type fakeOrderStore struct {
	mu    sync.Mutex
	state *fakeState
	txs   int

	// failItemInsert makes InsertOrderItem fail once this many items were written
	failItemInsert int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		state: &fakeState{
			sizes:  make(map[int64]*fakeSize),
			orders: make(map[int64]*domain.Order),
		},
		failItemInsert: -1,
	}
}

func (s *fakeOrderStore) addSize(sizeID, productID int64, name, price, sizeValue string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.sizes[sizeID] = &fakeSize{
		productID:   productID,
		productName: name,
		price:       decimal.RequireFromString(price),
		sizeValue:   sizeValue,
		stock:       stock,
	}
}

func (s *fakeOrderStore) stock(sizeID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.sizes[sizeID].stock
}

func (s *fakeOrderStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

func (s *fakeOrderStore) order(id int64) *domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orders[id]
}

func (s *fakeOrderStore) txCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txs
}

func (s *fakeOrderStore) WithinTx(ctx context.Context, fn func(tx repository.OrderTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs++

	work := s.state.clone()
	if err := fn(&fakeOrderTx{state: work, failItemInsert: s.failItemInsert}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *fakeOrderStore) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return s.filter(func(o *domain.Order) bool { return o.UserID == userID }), nil
}

func (s *fakeOrderStore) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	return s.filter(func(o *domain.Order) bool { return o.Status == status }), nil
}

func (s *fakeOrderStore) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return s.filter(func(*domain.Order) bool { return true }), nil
}

func (s *fakeOrderStore) filter(keep func(*domain.Order) bool) []*domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.Order{}
	for _, order := range s.state.orders {
		if keep(order) {
			cp := *order
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

type fakeOrderTx struct {
	state          *fakeState
	itemsWritten   int
	failItemInsert int
}

func (t *fakeOrderTx) LockSizedProduct(ctx context.Context, productID int64, sizeValue string) (*domain.SizedProduct, error) {
	for id, size := range t.state.sizes {
		if size.productID == productID && size.sizeValue == sizeValue {
			return &domain.SizedProduct{
				ProductID:   size.productID,
				ProductName: size.productName,
				UnitPrice:   size.price,
				SizeID:      id,
				SizeValue:   size.sizeValue,
				Stock:       size.stock,
			}, nil
		}
	}
	return nil, repository.ErrProductSizeNotFound
}

func (t *fakeOrderTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	t.state.nextOrderID++
	order.ID = t.state.nextOrderID
	order.OrderDate = time.Now()
	cp := *order
	cp.Items = nil
	t.state.orders[order.ID] = &cp
	return nil
}

func (t *fakeOrderTx) InsertOrderItem(ctx context.Context, item *domain.OrderItem) error {
	if t.failItemInsert >= 0 && t.itemsWritten >= t.failItemInsert {
		return errItemInsert
	}
	t.itemsWritten++
	t.state.nextItemID++
	item.ID = t.state.nextItemID
	order := t.state.orders[item.OrderID]
	order.Items = append(order.Items, *item)
	return nil
}

func (t *fakeOrderTx) DecrementStock(ctx context.Context, sizeID int64, quantity int) error {
	size, ok := t.state.sizes[sizeID]
	if !ok || size.stock < quantity {
		return repository.ErrInsufficientStock
	}
	size.stock -= quantity
	return nil
}

func (t *fakeOrderTx) IncrementStock(ctx context.Context, sizeID int64, quantity int) error {
	size, ok := t.state.sizes[sizeID]
	if !ok {
		return repository.ErrProductSizeNotFound
	}
	size.stock += quantity
	return nil
}

func (t *fakeOrderTx) LockOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, ok := t.state.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *order
	cp.Items = nil
	return &cp, nil
}

func (t *fakeOrderTx) OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	return append([]domain.OrderItem{}, t.state.orders[orderID].Items...), nil
}

func (t *fakeOrderTx) UpdateOrderStatus(ctx context.Context, orderID int64, from, to domain.OrderStatus) error {
	order := t.state.orders[orderID]
	if order.Status != from {
		return repository.ErrOrderStatusChanged
	}
	order.Status = to
	return nil
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const errItemInsert = fakeError("connection reset while inserting order item")

// fixture wires an order service over in-memory fakes
type fixture struct {
	users    *fakeUserRepository
	store    *fakeOrderStore
	service  OrderService
	customer int64
	admin    int64
	delivery int64
}

func newFixture() *fixture {
	users := newFakeUserRepository()
	store := newFakeOrderStore()
	f := &fixture{
		users:    users,
		store:    store,
		service:  NewOrderService(store, users, NewAuthorizer(users), zap.NewNop()),
		customer: users.add(domain.RoleCustomer, "Ana", "Lopez"),
		admin:    users.add(domain.RoleAdmin, "Ada", "Admin"),
		delivery: users.add(domain.RoleDelivery, "Dan", "Driver"),
	}
	return f
}

func checkout(lines ...OrderLine) PlaceOrderRequest {
	return PlaceOrderRequest{
		CustomerAddress: "12 Main St",
		CustomerPhone:   "+1-555-0100",
		Items:           lines,
	}
}
