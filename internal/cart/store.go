// Package cart owns the session-scoped cart state machine: it bridges the
// persisted cart identifier to the storefront API and exposes an observable
// snapshot to transport layers.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/banerjeearin/storefront/internal/shopify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrNoCart is returned by line mutations invoked before any cart exists.
var ErrNoCart = errors.New("no active cart")

// Gateway is the slice of the storefront client the store depends on.
type Gateway interface {
	CreateCart(ctx context.Context, lines []shopify.LineInput) (*shopify.Cart, error)
	AddLines(ctx context.Context, cartID string, lines []shopify.LineInput) (*shopify.Cart, error)
	UpdateLines(ctx context.Context, cartID string, updates []shopify.LineUpdate) (*shopify.Cart, error)
	RemoveLines(ctx context.Context, cartID string, lineIDs []string) (*shopify.Cart, error)
	GetCart(ctx context.Context, cartID string) (*shopify.Cart, error)
}

// State is the observable store state. Cart points at an immutable snapshot:
// every successful operation replaces the whole pointer, fields are never
// mutated in place, so readers never see a half-updated cart.
type State struct {
	Cart      *shopify.Cart `json:"cart"`
	IsLoading bool          `json:"isLoading"`
	Error     string        `json:"error,omitempty"`
}

// Store holds the single active cart of one session.
//
// Remote mutations are serialized through an operation lock: a second
// mutation issued while one is in flight waits for the first, so responses
// apply in invocation order and no completed mutation is silently dropped.
type Store struct {
	gateway Gateway
	ids     IDStore
	idKey   string
	logger  *slog.Logger

	opMu sync.Mutex // serializes Init and all remote mutations

	mu          sync.RWMutex
	state       State
	subscribers map[int]func(State)
	nextSubID   int

	cartsCreated  metric.Int64Counter
	cartMutations metric.Int64Counter
}

// NewStore creates a store bound to one persisted-identifier key. idKey is
// the fixed storage key under which this session's cart id lives.
func NewStore(gateway Gateway, ids IDStore, idKey string, logger *slog.Logger) *Store {
	meter := otel.Meter("cart-store")
	cartsCreated, err := meter.Int64Counter("carts_created", metric.WithDescription("Total number of carts created"))
	if err != nil {
		panic(fmt.Sprintf("failed to create carts_created counter: %v", err))
	}
	cartMutations, err := meter.Int64Counter("cart_mutations", metric.WithDescription("Total number of cart line mutations"))
	if err != nil {
		panic(fmt.Sprintf("failed to create cart_mutations counter: %v", err))
	}
	return &Store{
		gateway:       gateway,
		ids:           ids,
		idKey:         idKey,
		logger:        logger.With("component", "cart"),
		subscribers:   make(map[int]func(State)),
		cartsCreated:  cartsCreated,
		cartMutations: cartMutations,
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers a listener invoked on every state transition with the
// new state. The returned function removes the listener.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Init resolves the persisted identifier into a live cart, creating a fresh
// cart when no identifier exists or the persisted one no longer resolves.
// Idempotent: once a cart is loaded, Init is a no-op, and concurrent calls
// coalesce into a single remote create.
func (s *Store) Init(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.Snapshot().Cart != nil {
		return nil
	}
	s.beginOperation()

	cart, err := s.bootstrap(ctx)
	if err != nil {
		s.logger.Error("Cart initialization failed", "error", err)
		s.failOperation(err)
		return err
	}
	s.commit(cart)
	return nil
}

// bootstrap implements the persisted-identifier resolution order: stored id
// -> fetch; not found or no id -> create. A "not found" outcome is recovered
// locally and never surfaces to the user.
func (s *Store) bootstrap(ctx context.Context) (*shopify.Cart, error) {
	id, ok, err := s.ids.Load(ctx, s.idKey)
	if err != nil {
		// Unreadable identifier storage degrades to a fresh cart.
		s.logger.Warn("Failed to load persisted cart id", "error", err)
		ok = false
	}
	if ok && id != "" {
		cart, err := s.gateway.GetCart(ctx, id)
		if err != nil {
			return nil, err
		}
		if cart != nil {
			return cart, nil
		}
		s.logger.Info("Persisted cart no longer exists, creating a new one", "cart_id", id)
	}
	return s.createCart(ctx)
}

// createCart allocates a fresh empty cart and persists its identifier,
// overwriting any stale one. Callers must hold opMu.
func (s *Store) createCart(ctx context.Context) (*shopify.Cart, error) {
	cart, err := s.gateway.CreateCart(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := s.ids.Save(ctx, s.idKey, cart.ID); err != nil {
		// The cart is still usable this session; only resumption is lost.
		s.logger.Warn("Failed to persist cart id", "cart_id", cart.ID, "error", err)
	}
	s.cartsCreated.Add(ctx, 1)
	s.logger.Info("Created cart", "cart_id", cart.ID)
	return cart, nil
}

// AddItem adds quantity units of a variant to the cart, creating a cart
// first if none exists yet (initialization race).
func (s *Store) AddItem(ctx context.Context, merchandiseID string, quantity int) error {
	if quantity == 0 {
		quantity = 1
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.beginOperation()

	cartID := s.currentCartID()
	if cartID == "" {
		created, err := s.createCart(ctx)
		if err != nil {
			s.failOperation(err)
			return err
		}
		s.setCart(created)
		cartID = created.ID
	}

	updated, err := s.gateway.AddLines(ctx, cartID, []shopify.LineInput{{MerchandiseID: merchandiseID, Quantity: quantity}})
	if err != nil {
		s.failOperation(err)
		return err
	}
	s.commit(updated)
	s.cartMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "add")))
	return nil
}

// UpdateItem sets the quantity of an existing line. A quantity below one is
// not a valid line state and delegates to RemoveItem; the gateway never sees
// a zero-quantity update.
func (s *Store) UpdateItem(ctx context.Context, lineID string, quantity int) error {
	if quantity < 1 {
		return s.RemoveItem(ctx, lineID)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	cartID := s.currentCartID()
	if cartID == "" {
		s.setError(ErrNoCart)
		return ErrNoCart
	}
	s.beginOperation()

	updated, err := s.gateway.UpdateLines(ctx, cartID, []shopify.LineUpdate{{LineID: lineID, Quantity: quantity}})
	if err != nil {
		s.failOperation(err)
		return err
	}
	s.commit(updated)
	s.cartMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "update")))
	return nil
}

// RemoveItem removes one line from the cart.
func (s *Store) RemoveItem(ctx context.Context, lineID string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	cartID := s.currentCartID()
	if cartID == "" {
		s.setError(ErrNoCart)
		return ErrNoCart
	}
	s.beginOperation()

	updated, err := s.gateway.RemoveLines(ctx, cartID, []string{lineID})
	if err != nil {
		s.failOperation(err)
		return err
	}
	s.commit(updated)
	s.cartMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "remove")))
	return nil
}

// ClearError drops the error message without touching the snapshot.
// Purely local, no remote call.
func (s *Store) ClearError() {
	s.mu.Lock()
	if s.state.Error == "" {
		s.mu.Unlock()
		return
	}
	s.state.Error = ""
	s.mu.Unlock()
	s.notify()
}

func (s *Store) currentCartID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Cart == nil {
		return ""
	}
	return s.state.Cart.ID
}

// beginOperation marks the store loading and clears any prior error.
func (s *Store) beginOperation() {
	s.mu.Lock()
	s.state.IsLoading = true
	s.state.Error = ""
	s.mu.Unlock()
	s.notify()
}

// commit replaces the snapshot wholesale and ends the operation.
func (s *Store) commit(cart *shopify.Cart) {
	s.mu.Lock()
	s.state = State{Cart: cart}
	s.mu.Unlock()
	s.notify()
}

// setCart swaps the snapshot while an operation is still in flight
// (a cart created on the way to an add).
func (s *Store) setCart(cart *shopify.Cart) {
	s.mu.Lock()
	s.state.Cart = cart
	s.mu.Unlock()
	s.notify()
}

// failOperation records the failure and keeps the previous snapshot: errors
// are non-destructive to the last known-good cart.
func (s *Store) failOperation(err error) {
	s.mu.Lock()
	s.state.IsLoading = false
	s.state.Error = err.Error()
	s.mu.Unlock()
	s.notify()
}

// setError records an error outside of a loading transition.
func (s *Store) setError(err error) {
	s.mu.Lock()
	s.state.Error = err.Error()
	s.mu.Unlock()
	s.notify()
}

// notify invokes subscribers with the current state. Listeners are copied
// out first so a callback may subscribe or unsubscribe without deadlock.
func (s *Store) notify() {
	s.mu.RLock()
	state := s.state
	fns := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(state)
	}
}
