package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_food/internal/cache"
	"github.com/fjod/go_food/internal/domain"
	"github.com/fjod/go_food/internal/repository"
)

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.Items = append([]domain.CartItem(nil), c.Items...)
	return &out
}

func cloneOrder(o *domain.Order) *domain.Order {
	out := *o
	out.Items = append([]domain.OrderItem(nil), o.Items...)
	out.InternalNotes = append([]domain.InternalNote(nil), o.InternalNotes...)
	return &out
}

// mockCartRepository keeps carts in memory and enforces the version check.
type mockCartRepository struct {
	m         sync.RWMutex
	carts     map[string]*domain.Cart
	conflicts int // next N ReplaceCart calls fail with ErrVersionConflict
	writes    int
	err       error
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: map[string]*domain.Cart{}}
}

func (m *mockCartRepository) GetActiveCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, c := range m.carts {
		if c.UserID == userID && c.Status == domain.CartStatusActive {
			return cloneCart(c), nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (m *mockCartRepository) GetCartByID(_ context.Context, cartID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.carts[cartID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (m *mockCartRepository) CreateCart(_ context.Context, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, c := range m.carts {
		if c.UserID == cart.UserID && c.Status == domain.CartStatusActive {
			return repository.ErrVersionConflict
		}
	}
	cart.Version = 1
	m.carts[cart.ID] = cloneCart(cart)
	m.writes++
	return nil
}

func (m *mockCartRepository) ReplaceCart(_ context.Context, cart *domain.Cart, expectedVersion int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		return repository.ErrVersionConflict
	}
	stored, ok := m.carts[cart.ID]
	if !ok || stored.Version != expectedVersion || stored.Status != domain.CartStatusActive {
		return repository.ErrVersionConflict
	}
	cart.Version = expectedVersion + 1
	m.carts[cart.ID] = cloneCart(cart)
	m.writes++
	return nil
}

func (m *mockCartRepository) MarkConverted(_ context.Context, cartID string, expectedVersion int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	stored, ok := m.carts[cartID]
	if !ok || stored.Version != expectedVersion || stored.Status != domain.CartStatusActive {
		return repository.ErrVersionConflict
	}
	stored.Status = domain.CartStatusConverted
	stored.Version++
	return nil
}

// bump simulates a concurrent writer.
func (m *mockCartRepository) bump(cartID string) {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[cartID].Version++
}

func (m *mockCartRepository) get(cartID string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return cloneCart(m.carts[cartID])
}

type mockCache struct {
	m             sync.RWMutex
	carts         map[string]*domain.Cart
	gens          map[string]cache.Generation
	invalidations int
	staleSets     int
	err           error
	// gate, when set, parks Set until it is closed.
	gate chan struct{}
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}, gens: map[string]cache.Generation{}}
}

func (m *mockCache) Get(_ context.Context, userID string) (*domain.Cart, cache.Generation, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, m.gens[userID], cache.ErrCacheMiss
	}
	return cloneCart(c), m.gens[userID], nil
}

func (m *mockCache) Set(_ context.Context, userID string, cart *domain.Cart, gen cache.Generation) error {
	m.m.RLock()
	gate := m.gate
	m.m.RUnlock()
	if gate != nil {
		<-gate
	}
	m.m.Lock()
	defer m.m.Unlock()
	if m.gens[userID] != gen {
		m.staleSets++
		return cache.ErrStale
	}
	m.carts[userID] = cloneCart(cart)
	return m.err
}

func (m *mockCache) Invalidate(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, userID)
	m.gens[userID]++
	m.invalidations++
	return m.err
}

func (m *mockCache) getCart(userID string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[userID]
}

func (m *mockCache) staleCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.staleSets
}

type mockCatalog struct {
	m        sync.RWMutex
	products map[string]*domain.Product
	addOns   map[string]*domain.AddOn
	stores   map[string]*domain.Store
	coupons  map[string]*domain.Coupon
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		products: map[string]*domain.Product{},
		addOns:   map[string]*domain.AddOn{},
		stores:   map[string]*domain.Store{},
		coupons:  map[string]*domain.Coupon{},
	}
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	out := *p
	return &out, nil
}

func (m *mockCatalog) GetAddOn(_ context.Context, id string) (*domain.AddOn, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	a, ok := m.addOns[id]
	if !ok {
		return nil, repository.ErrAddOnNotFound
	}
	out := *a
	return &out, nil
}

func (m *mockCatalog) GetStore(_ context.Context, id string) (*domain.Store, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	s, ok := m.stores[id]
	if !ok {
		return nil, repository.ErrStoreNotFound
	}
	out := *s
	return &out, nil
}

func (m *mockCatalog) GetCoupon(_ context.Context, code string) (*domain.Coupon, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	c, ok := m.coupons[code]
	if !ok {
		return nil, repository.ErrCouponNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockCatalog) setProductAvailable(id string, available bool) {
	m.m.Lock()
	defer m.m.Unlock()
	m.products[id].IsAvailable = available
}

func (m *mockCatalog) setAddOnAvailable(id string, available bool) {
	m.m.Lock()
	defer m.m.Unlock()
	m.addOns[id].IsAvailable = available
}

type mockSessionRepository struct {
	m        sync.RWMutex
	sessions map[string]*domain.CheckoutSession
}

func newMockSessionRepository() *mockSessionRepository {
	return &mockSessionRepository{sessions: map[string]*domain.CheckoutSession{}}
}

func (m *mockSessionRepository) CreateSession(_ context.Context, s *domain.CheckoutSession) error {
	m.m.Lock()
	defer m.m.Unlock()
	out := *s
	m.sessions[s.ID] = &out
	return nil
}

func (m *mockSessionRepository) GetSession(_ context.Context, id string) (*domain.CheckoutSession, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrCheckoutNotFound
	}
	out := *s
	return &out, nil
}

func (m *mockSessionRepository) UpdateOpenSession(_ context.Context, s *domain.CheckoutSession) error {
	m.m.Lock()
	defer m.m.Unlock()
	stored, ok := m.sessions[s.ID]
	if !ok || stored.Status != domain.CheckoutStatusOpen {
		return repository.ErrStatusConflict
	}
	out := *s
	m.sessions[s.ID] = &out
	return nil
}

func (m *mockSessionRepository) MarkConfirmed(_ context.Context, id, orderID string, at time.Time) error {
	return m.close(id, domain.CheckoutStatusConfirmed, orderID, at)
}

func (m *mockSessionRepository) MarkExpired(_ context.Context, id string, at time.Time) error {
	return m.close(id, domain.CheckoutStatusExpired, "", at)
}

func (m *mockSessionRepository) close(id string, status domain.CheckoutStatus, orderID string, at time.Time) error {
	m.m.Lock()
	defer m.m.Unlock()
	stored, ok := m.sessions[id]
	if !ok || stored.Status != domain.CheckoutStatusOpen {
		return repository.ErrStatusConflict
	}
	stored.Status = status
	stored.OrderID = orderID
	stored.UpdatedAt = at
	return nil
}

type mockOrderRepository struct {
	m      sync.RWMutex
	orders map[string]*domain.Order
	// beforeStateUpdate runs without the lock held, before the conditional check.
	beforeStateUpdate func()
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: map[string]*domain.Order{}}
}

func (m *mockOrderRepository) CreateOrder(_ context.Context, o *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	for _, existing := range m.orders {
		if existing.CheckoutID == o.CheckoutID {
			return repository.ErrDuplicateOrder
		}
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *mockOrderRepository) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *mockOrderRepository) GetOrderByCheckout(_ context.Context, checkoutID string) (*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, o := range m.orders {
		if o.CheckoutID == checkoutID {
			return cloneOrder(o), nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepository) ListOrders(_ context.Context, f domain.OrderFilter) ([]*domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.StoreID != "" && o.StoreID != f.StoreID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrderRepository) UpdateOrderState(_ context.Context, o *domain.Order, expected domain.OrderStatus) error {
	if m.beforeStateUpdate != nil {
		hook := m.beforeStateUpdate
		m.beforeStateUpdate = nil
		hook()
	}
	m.m.Lock()
	defer m.m.Unlock()
	stored, ok := m.orders[o.ID]
	if !ok || stored.Status != expected {
		return repository.ErrStatusConflict
	}
	stored.Status = o.Status
	stored.PaymentStatus = o.PaymentStatus
	stored.RefundAmount = o.RefundAmount
	stored.UpdatedAt = o.UpdatedAt
	if o.PaymentReference != "" {
		stored.PaymentReference = o.PaymentReference
	}
	if o.RefundStatus != "" {
		stored.RefundStatus = o.RefundStatus
	}
	if o.EstimatedReadyTime != nil {
		stored.EstimatedReadyTime = o.EstimatedReadyTime
	}
	if o.ActualReadyTime != nil {
		stored.ActualReadyTime = o.ActualReadyTime
	}
	if o.PickedUpAt != nil {
		stored.PickedUpAt = o.PickedUpAt
	}
	if o.CancelledAt != nil {
		stored.CancelledAt = o.CancelledAt
		stored.CancelledBy = o.CancelledBy
		stored.CancellationReason = o.CancellationReason
	}
	return nil
}

func (m *mockOrderRepository) SetRating(_ context.Context, id string, r domain.Rating) error {
	m.m.Lock()
	defer m.m.Unlock()
	stored, ok := m.orders[id]
	if !ok || stored.Status != domain.OrderStatusCompleted || stored.Rating != nil {
		return repository.ErrStatusConflict
	}
	stored.Rating = &r
	return nil
}

func (m *mockOrderRepository) AddInternalNote(_ context.Context, id string, note domain.InternalNote) error {
	m.m.Lock()
	defer m.m.Unlock()
	stored, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	stored.InternalNotes = append(stored.InternalNotes, note)
	return nil
}

func (m *mockOrderRepository) AssignDriver(_ context.Context, id, driverID string, allowed []domain.OrderStatus) error {
	m.m.Lock()
	defer m.m.Unlock()
	stored, ok := m.orders[id]
	if !ok || !statusIn(stored.Status, allowed) {
		return repository.ErrStatusConflict
	}
	stored.DriverID = driverID
	return nil
}

func (m *mockOrderRepository) put(o *domain.Order) {
	m.m.Lock()
	defer m.m.Unlock()
	m.orders[o.ID] = cloneOrder(o)
}

func (m *mockOrderRepository) count() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return len(m.orders)
}

type mockHistoryRepository struct {
	m       sync.RWMutex
	entries []domain.OrderStatusHistory
}

func (m *mockHistoryRepository) AppendHistory(_ context.Context, e *domain.OrderStatusHistory) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockHistoryRepository) ListHistory(_ context.Context, orderID string) ([]domain.OrderStatusHistory, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []domain.OrderStatusHistory
	for _, e := range m.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockOutboxRepository struct {
	m      sync.RWMutex
	events []domain.OutboxEvent
}

func (m *mockOutboxRepository) InsertEvent(_ context.Context, e *domain.OutboxEvent) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *mockOutboxRepository) FetchUnprocessed(_ context.Context, limit int64) ([]domain.OutboxEvent, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []domain.OutboxEvent
	for _, e := range m.events {
		if e.ProcessedAt == nil && int64(len(out)) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockOutboxRepository) MarkProcessed(_ context.Context, id string, at time.Time) error {
	m.m.Lock()
	defer m.m.Unlock()
	for i := range m.events {
		if m.events[i].ID == id {
			m.events[i].ProcessedAt = &at
		}
	}
	return nil
}

func (m *mockOutboxRepository) types() []domain.EventType {
	m.m.RLock()
	defer m.m.RUnlock()
	out := make([]domain.EventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

// mockTransactor runs fn directly; the in-memory stores have no rollback.
type mockTransactor struct {
	m     sync.Mutex
	calls int
}

func (m *mockTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.m.Lock()
	m.calls++
	m.m.Unlock()
	return fn(ctx)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
