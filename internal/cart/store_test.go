package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/banerjeearin/storefront/internal/shopify"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// mockGateway is a mock implementation of the Gateway interface. Each call
// returns the configured cart or error; call counts and overlap are tracked
// so tests can assert on remote traffic.
type mockGateway struct {
	cart    *shopify.Cart
	getCart *shopify.Cart

	createErr error
	getErr    error
	addErr    error
	updateErr error
	removeErr error

	delay time.Duration

	createCalls atomic.Int32
	getCalls    atomic.Int32
	addCalls    atomic.Int32
	updateCalls atomic.Int32
	removeCalls atomic.Int32

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *mockGateway) enter() {
	n := m.inFlight.Add(1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
}

func (m *mockGateway) exit() {
	m.inFlight.Add(-1)
}

func (m *mockGateway) CreateCart(_ context.Context, _ []shopify.LineInput) (*shopify.Cart, error) {
	m.enter()
	defer m.exit()
	m.createCalls.Add(1)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.cart, nil
}

func (m *mockGateway) AddLines(_ context.Context, _ string, _ []shopify.LineInput) (*shopify.Cart, error) {
	m.enter()
	defer m.exit()
	m.addCalls.Add(1)
	if m.addErr != nil {
		return nil, m.addErr
	}
	return m.cart, nil
}

func (m *mockGateway) UpdateLines(_ context.Context, _ string, _ []shopify.LineUpdate) (*shopify.Cart, error) {
	m.enter()
	defer m.exit()
	m.updateCalls.Add(1)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return m.cart, nil
}

func (m *mockGateway) RemoveLines(_ context.Context, _ string, _ []string) (*shopify.Cart, error) {
	m.enter()
	defer m.exit()
	m.removeCalls.Add(1)
	if m.removeErr != nil {
		return nil, m.removeErr
	}
	return m.cart, nil
}

func (m *mockGateway) GetCart(_ context.Context, _ string) (*shopify.Cart, error) {
	m.enter()
	defer m.exit()
	m.getCalls.Add(1)
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.getCart, nil
}

func fakeCart() *shopify.Cart {
	id := fmt.Sprintf("gid://shopify/Cart/%s", gofakeit.UUID())
	return &shopify.Cart{
		ID:            id,
		CheckoutURL:   fmt.Sprintf("https://%s/checkout", gofakeit.DomainName()),
		TotalQuantity: 1,
		Lines: shopify.CartLines{{
			ID:       fmt.Sprintf("gid://shopify/CartLine/%s", gofakeit.UUID()),
			Quantity: 1,
		}},
	}
}

func newTestStore(gateway Gateway, ids IDStore) *Store {
	return NewStore(gateway, ids, "session-1", discardLogger())
}

func Test_Store_Init_CreatesCartWhenNoIDPersisted(t *testing.T) {
	// given
	created := fakeCart()
	gateway := &mockGateway{cart: created}
	ids := NewMemoryIDStore()
	store := newTestStore(gateway, ids)

	// when
	err := store.Init(context.Background())

	// then
	require.NoError(t, err)
	state := store.Snapshot()
	require.NotNil(t, state.Cart)
	assert.Empty(t, cmp.Diff(created, state.Cart))
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.Error)
	assert.Equal(t, int32(1), gateway.createCalls.Load())
	assert.Equal(t, int32(0), gateway.getCalls.Load())

	id, ok, err := ids.Load(context.Background(), "session-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, created.ID, id)
}

func Test_Store_Init_ResumesPersistedCart(t *testing.T) {
	existing := fakeCart()
	gateway := &mockGateway{getCart: existing}
	ids := NewMemoryIDStore()
	require.NoError(t, ids.Save(context.Background(), "session-1", existing.ID))
	store := newTestStore(gateway, ids)

	err := store.Init(context.Background())

	require.NoError(t, err)
	assert.Equal(t, existing.ID, store.Snapshot().Cart.ID)
	assert.Equal(t, int32(1), gateway.getCalls.Load())
	assert.Equal(t, int32(0), gateway.createCalls.Load())
}

func Test_Store_Init_RecreatesWhenPersistedCartGone(t *testing.T) {
	// given a persisted id the platform no longer recognizes
	created := fakeCart()
	gateway := &mockGateway{cart: created, getCart: nil}
	ids := NewMemoryIDStore()
	require.NoError(t, ids.Save(context.Background(), "session-1", "gid://shopify/Cart/expired"))
	store := newTestStore(gateway, ids)

	// when
	err := store.Init(context.Background())

	// then the miss is recovered locally and the stale id overwritten
	require.NoError(t, err)
	state := store.Snapshot()
	assert.Equal(t, created.ID, state.Cart.ID)
	assert.Empty(t, state.Error)
	assert.Equal(t, int32(1), gateway.getCalls.Load())
	assert.Equal(t, int32(1), gateway.createCalls.Load())

	id, _, err := ids.Load(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, id)
}

func Test_Store_Init_Idempotent(t *testing.T) {
	gateway := &mockGateway{cart: fakeCart()}
	store := newTestStore(gateway, NewMemoryIDStore())

	require.NoError(t, store.Init(context.Background()))
	require.NoError(t, store.Init(context.Background()))

	assert.Equal(t, int32(1), gateway.createCalls.Load())
}

func Test_Store_Init_ConcurrentCallsCreateOnce(t *testing.T) {
	gateway := &mockGateway{cart: fakeCart(), delay: 5 * time.Millisecond}
	store := newTestStore(gateway, NewMemoryIDStore())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Init(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), gateway.createCalls.Load())
}

func Test_Store_Init_FailureLeavesNoCart(t *testing.T) {
	gateway := &mockGateway{createErr: shopify.ErrTimeout}
	store := newTestStore(gateway, NewMemoryIDStore())

	err := store.Init(context.Background())

	require.Error(t, err)
	state := store.Snapshot()
	assert.Nil(t, state.Cart)
	assert.False(t, state.IsLoading)
	assert.Equal(t, shopify.ErrTimeout.Error(), state.Error)
}

func Test_Store_AddItem_CreatesCartFirst(t *testing.T) {
	// adding before initialization must not be lost
	cart := fakeCart()
	gateway := &mockGateway{cart: cart}
	store := newTestStore(gateway, NewMemoryIDStore())

	err := store.AddItem(context.Background(), "gid://shopify/ProductVariant/v1", 2)

	require.NoError(t, err)
	assert.Equal(t, int32(1), gateway.createCalls.Load())
	assert.Equal(t, int32(1), gateway.addCalls.Load())
	assert.Equal(t, cart.ID, store.Snapshot().Cart.ID)
}

func Test_Store_AddItem_DefaultsQuantityToOne(t *testing.T) {
	gateway := &mockGateway{cart: fakeCart()}
	store := newTestStore(gateway, NewMemoryIDStore())
	require.NoError(t, store.Init(context.Background()))

	err := store.AddItem(context.Background(), "gid://shopify/ProductVariant/v1", 0)

	require.NoError(t, err)
	assert.Equal(t, int32(1), gateway.addCalls.Load())
}

func Test_Store_UpdateItem_ZeroQuantityRemovesLine(t *testing.T) {
	gateway := &mockGateway{cart: fakeCart()}
	store := newTestStore(gateway, NewMemoryIDStore())
	require.NoError(t, store.Init(context.Background()))

	err := store.UpdateItem(context.Background(), "gid://shopify/CartLine/l1", 0)

	require.NoError(t, err)
	assert.Equal(t, int32(1), gateway.removeCalls.Load())
	assert.Equal(t, int32(0), gateway.updateCalls.Load())
}

func Test_Store_RemoveItem_DropsLineFromSnapshot(t *testing.T) {
	// given a cart holding two lines
	keep := shopify.CartLine{ID: "gid://shopify/CartLine/keep", Quantity: 1}
	drop := shopify.CartLine{ID: "gid://shopify/CartLine/drop", Quantity: 2}
	full := &shopify.Cart{
		ID:            "gid://shopify/Cart/c1",
		TotalQuantity: 3,
		Lines:         shopify.CartLines{keep, drop},
	}
	gateway := &mockGateway{cart: full}
	store := newTestStore(gateway, NewMemoryIDStore())
	require.NoError(t, store.Init(context.Background()))
	require.Len(t, store.Snapshot().Cart.Lines, 2)

	// when the line is removed the server answers with the shrunk cart
	gateway.cart = &shopify.Cart{
		ID:            full.ID,
		TotalQuantity: 1,
		Lines:         shopify.CartLines{keep},
	}
	require.NoError(t, store.RemoveItem(context.Background(), drop.ID))

	// then the snapshot no longer carries the removed line
	state := store.Snapshot()
	assert.Equal(t, 1, state.Cart.TotalQuantity)
	require.Len(t, state.Cart.Lines, 1)
	assert.Equal(t, keep.ID, state.Cart.Lines[0].ID)
	for _, line := range state.Cart.Lines {
		assert.NotEqual(t, drop.ID, line.ID)
	}
}

func Test_Store_UpdateItem_NoCart(t *testing.T) {
	gateway := &mockGateway{}
	store := newTestStore(gateway, NewMemoryIDStore())

	err := store.UpdateItem(context.Background(), "gid://shopify/CartLine/l1", 2)

	assert.ErrorIs(t, err, ErrNoCart)
	assert.Equal(t, ErrNoCart.Error(), store.Snapshot().Error)
	assert.Equal(t, int32(0), gateway.updateCalls.Load())
}

func Test_Store_FailedMutationKeepsSnapshot(t *testing.T) {
	// given an initialized cart
	cart := fakeCart()
	gateway := &mockGateway{cart: cart}
	store := newTestStore(gateway, NewMemoryIDStore())
	require.NoError(t, store.Init(context.Background()))

	// when the platform rejects the next mutation
	gateway.updateErr = fmt.Errorf("quantity exceeds available stock: %w", shopify.ErrRemoteRejected)
	err := store.UpdateItem(context.Background(), cart.Lines[0].ID, 99)

	// then the last known-good snapshot survives and the error is readable
	require.Error(t, err)
	state := store.Snapshot()
	require.NotNil(t, state.Cart)
	assert.Equal(t, cart.ID, state.Cart.ID)
	assert.False(t, state.IsLoading)
	assert.Contains(t, state.Error, "quantity exceeds available stock")
}

func Test_Store_SuccessClearsPreviousError(t *testing.T) {
	cart := fakeCart()
	gateway := &mockGateway{cart: cart, addErr: shopify.ErrTimeout}
	store := newTestStore(gateway, NewMemoryIDStore())
	require.NoError(t, store.Init(context.Background()))

	require.Error(t, store.AddItem(context.Background(), "gid://shopify/ProductVariant/v1", 1))
	require.NotEmpty(t, store.Snapshot().Error)

	gateway.addErr = nil
	require.NoError(t, store.AddItem(context.Background(), "gid://shopify/ProductVariant/v1", 1))

	assert.Empty(t, store.Snapshot().Error)
}

func Test_Store_ClearError(t *testing.T) {
	gateway := &mockGateway{cart: fakeCart(), updateErr: shopify.ErrTimeout}
	store := newTestStore(gateway, NewMemoryIDStore())
	require.NoError(t, store.Init(context.Background()))
	require.Error(t, store.UpdateItem(context.Background(), "l1", 2))

	store.ClearError()

	state := store.Snapshot()
	assert.Empty(t, state.Error)
	assert.NotNil(t, state.Cart)
}

func Test_Store_UnreadableIDStoreDegradesToFreshCart(t *testing.T) {
	created := fakeCart()
	gateway := &mockGateway{cart: created}
	store := newTestStore(gateway, failingIDStore{})

	err := store.Init(context.Background())

	require.NoError(t, err)
	assert.Equal(t, created.ID, store.Snapshot().Cart.ID)
}

type failingIDStore struct{}

func (failingIDStore) Load(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func (failingIDStore) Save(context.Context, string, string) error {
	return errors.New("disk on fire")
}

func Test_Store_MutationsAreSerialized(t *testing.T) {
	gateway := &mockGateway{cart: fakeCart(), delay: 2 * time.Millisecond}
	store := newTestStore(gateway, NewMemoryIDStore())
	require.NoError(t, store.Init(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.AddItem(context.Background(), "gid://shopify/ProductVariant/v1", 1)
		}()
	}
	wg.Wait()

	// At most one remote call in flight at any time.
	assert.Equal(t, int32(1), gateway.maxInFlight.Load())
	assert.Equal(t, int32(10), gateway.addCalls.Load())
}

func Test_Store_SubscribersObserveTransitions(t *testing.T) {
	gateway := &mockGateway{cart: fakeCart()}
	store := newTestStore(gateway, NewMemoryIDStore())

	var mu sync.Mutex
	var states []State
	unsubscribe := store.Subscribe(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	require.NoError(t, store.Init(context.Background()))

	mu.Lock()
	require.GreaterOrEqual(t, len(states), 2)
	first, last := states[0], states[len(states)-1]
	mu.Unlock()

	// Loading transition first, then the committed cart.
	assert.True(t, first.IsLoading)
	assert.Nil(t, first.Cart)
	assert.False(t, last.IsLoading)
	assert.NotNil(t, last.Cart)

	unsubscribe()
	mu.Lock()
	seen := len(states)
	mu.Unlock()

	require.NoError(t, store.AddItem(context.Background(), "gid://shopify/ProductVariant/v1", 1))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, seen, len(states), "no notifications after unsubscribe")
}

func Test_Store_Scenario_CreateAddUpdateReject(t *testing.T) {
	// given
	cart := fakeCart()
	gateway := &mockGateway{cart: cart}
	store := newTestStore(gateway, NewMemoryIDStore())

	// init -> fresh cart
	require.NoError(t, store.Init(context.Background()))
	require.NotNil(t, store.Snapshot().Cart)

	// add succeeds
	require.NoError(t, store.AddItem(context.Background(), "gid://shopify/ProductVariant/v1", 1))
	assert.Empty(t, store.Snapshot().Error)

	// update succeeds
	require.NoError(t, store.UpdateItem(context.Background(), cart.Lines[0].ID, 3))
	assert.Empty(t, store.Snapshot().Error)

	// remote rejection surfaces but the cart survives
	gateway.updateErr = fmt.Errorf("sold out: %w", shopify.ErrRemoteRejected)
	require.Error(t, store.UpdateItem(context.Background(), cart.Lines[0].ID, 50))
	state := store.Snapshot()
	assert.NotNil(t, state.Cart)
	assert.Contains(t, state.Error, "sold out")

	// clearing the error restores a clean state
	store.ClearError()
	assert.Empty(t, store.Snapshot().Error)
	assert.NotNil(t, store.Snapshot().Cart)
}
