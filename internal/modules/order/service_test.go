package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/storefront-backend/internal/modules/cart"
	"github.com/example/storefront-backend/internal/shared/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeStock struct {
	mu    sync.Mutex
	price map[string]float64
	stock map[string]int
}

func newFakeStock() *fakeStock {
	return &fakeStock{price: map[string]float64{}, stock: map[string]int{}}
}

func (f *fakeStock) add(id string, price float64, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price[id] = price
	f.stock[id] = stock
}

func (f *fakeStock) GetPriceAndStock(_ context.Context, id string) (float64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	price, ok := f.price[id]
	if !ok {
		return 0, 0, apperr.ErrNotFound
	}
	return price, f.stock[id], nil
}

// decrement is the fake's compare-and-decrement: all-or-nothing under a lock,
// mirroring the single-transaction semantics of the real repository.
func (f *fakeStock) decrementAll(items []*Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		id := item.ProductID.String()
		if f.stock[id] < item.Quantity {
			return &apperr.InsufficientStockError{
				ProductID: id,
				Requested: item.Quantity,
				Available: f.stock[id],
			}
		}
	}
	for _, item := range items {
		f.stock[item.ProductID.String()] -= item.Quantity
	}
	return nil
}

func (f *fakeStock) incrementAll(items []*Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		f.stock[item.ProductID.String()] += item.Quantity
	}
}

func (f *fakeStock) stockOf(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[id]
}

type fakeOrderRepo struct {
	mu                 sync.Mutex
	stock              *fakeStock
	orders             map[string]*Order
	numbers            map[string]bool
	beforeCreate       func()
	beforeUpdateStatus func()
	dupesLeft          int
	createCalls        int
}

func newFakeOrderRepo(stock *fakeStock) *fakeOrderRepo {
	return &fakeOrderRepo{
		stock:   stock,
		orders:  map[string]*Order{},
		numbers: map[string]bool{},
	}
}

func (r *fakeOrderRepo) CreateOrder(_ context.Context, o *Order) error {
	r.mu.Lock()
	hook := r.beforeCreate
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	if r.dupesLeft > 0 {
		r.dupesLeft--
		return apperr.ErrDuplicateReference
	}
	if r.numbers[o.OrderNumber] {
		return apperr.ErrDuplicateReference
	}
	if err := r.stock.decrementAll(o.Items); err != nil {
		return err
	}
	r.numbers[o.OrderNumber] = true
	stored := *o
	r.orders[o.ID.String()] = &stored
	return nil
}

func (r *fakeOrderRepo) GetOrderByID(_ context.Context, id string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (r *fakeOrderRepo) ListOrdersByCustomer(_ context.Context, customerID, status string) ([]*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Order
	for _, o := range r.orders {
		if o.CustomerID.String() == customerID && (status == "" || string(o.Status) == status) {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id string, from, to Status, deliveredAt *time.Time) error {
	r.mu.Lock()
	hook := r.beforeUpdateStatus
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return apperr.ErrNotFound
	}
	// Mirrors the conditional UPDATE: the write only lands while the stored
	// status still matches from.
	if o.Status != from {
		return &apperr.InvalidTransitionError{From: string(from), To: string(to)}
	}
	o.Status = to
	if deliveredAt != nil {
		o.DeliveredAt = deliveredAt
	}
	return nil
}

func (r *fakeOrderRepo) CancelOrder(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[o.ID.String()]
	if !ok {
		return apperr.ErrNotFound
	}
	if stored.Status == StatusDelivered || stored.Status == StatusCancelled {
		return &apperr.InvalidTransitionError{From: string(stored.Status), To: string(StatusCancelled)}
	}
	r.stock.incrementAll(stored.Items)
	now := time.Now()
	stored.Status = StatusCancelled
	stored.CancelledAt = &now
	return nil
}

func (r *fakeOrderRepo) MarkPaid(_ context.Context, id string, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return apperr.ErrNotFound
	}
	o.PaymentStatus = PaymentPaid
	o.PaidAt = &paidAt
	if o.Status == StatusPending {
		o.Status = StatusProcessing
	}
	return nil
}

type fakeCartStore struct {
	mu    sync.Mutex
	lines map[string][]*cart.Line
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{lines: map[string][]*cart.Line{}}
}

func (f *fakeCartStore) addLine(customerID string, productID uuid.UUID, qty int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	custID, _ := uuid.Parse(customerID)
	f.lines[customerID] = append(f.lines[customerID], &cart.Line{
		ID:         uuid.New(),
		CustomerID: custID,
		ProductID:  productID,
		Quantity:   qty,
	})
}

func (f *fakeCartStore) ListByCustomer(_ context.Context, customerID string) ([]*cart.Line, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lines[customerID], nil
}

func (f *fakeCartStore) DeleteAll(_ context.Context, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines, customerID)
	return nil
}

func (f *fakeCartStore) count(customerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lines[customerID])
}

type testEnv struct {
	service Service
	repo    *fakeOrderRepo
	carts   *fakeCartStore
	stock   *fakeStock
}

func newTestEnv() *testEnv {
	stock := newFakeStock()
	repo := newFakeOrderRepo(stock)
	carts := newFakeCartStore()
	return &testEnv{
		service: NewService(repo, carts, stock, DefaultCheckoutConfig()),
		repo:    repo,
		carts:   carts,
		stock:   stock,
	}
}

func checkoutReq() CheckoutRequest {
	return CheckoutRequest{
		ShippingAddress: "12 Marina Road, Lagos",
		PaymentMethod:   "card",
	}
}

// ── checkout ──────────────────────────────────────────────────────────────────

func TestCheckout_TotalsAboveFreeShippingThreshold(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	customerID := uuid.New().String()
	productA, productB := uuid.New(), uuid.New()

	env.stock.add(productA.String(), 5000, 10)
	env.stock.add(productB.String(), 3000, 5)
	env.carts.addLine(customerID, productA, 2)
	env.carts.addLine(customerID, productB, 1)

	o, err := env.service.Checkout(ctx, customerID, checkoutReq())
	require.NoError(t, err)

	assert.Equal(t, 13000.0, o.Subtotal)
	assert.Equal(t, 0.0, o.ShippingFee)
	assert.Equal(t, 975.0, o.Tax)
	assert.Equal(t, 13975.0, o.TotalAmount)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)

	var itemSum float64
	for _, item := range o.Items {
		itemSum += item.Subtotal
	}
	assert.Equal(t, o.Subtotal, itemSum)

	assert.Equal(t, 8, env.stock.stockOf(productA.String()))
	assert.Equal(t, 4, env.stock.stockOf(productB.String()))
	assert.Zero(t, env.carts.count(customerID), "cart should be cleared after checkout")
}

func TestCheckout_FlatFeeBelowThreshold(t *testing.T) {
	env := newTestEnv()
	customerID := uuid.New().String()
	product := uuid.New()

	env.stock.add(product.String(), 2000, 3)
	env.carts.addLine(customerID, product, 1)

	o, err := env.service.Checkout(context.Background(), customerID, checkoutReq())
	require.NoError(t, err)

	assert.Equal(t, 2000.0, o.Subtotal)
	assert.Equal(t, 500.0, o.ShippingFee)
	assert.Equal(t, 150.0, o.Tax)
	assert.Equal(t, 2650.0, o.TotalAmount)
}

func TestCheckout_BillingDefaultsToShipping(t *testing.T) {
	env := newTestEnv()
	customerID := uuid.New().String()
	product := uuid.New()

	env.stock.add(product.String(), 1000, 1)
	env.carts.addLine(customerID, product, 1)

	o, err := env.service.Checkout(context.Background(), customerID, checkoutReq())
	require.NoError(t, err)
	assert.Equal(t, o.ShippingAddress, o.BillingAddress)
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv()

	_, err := env.service.Checkout(context.Background(), uuid.New().String(), checkoutReq())
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}

func TestCheckout_MissingAddressOrMethod(t *testing.T) {
	env := newTestEnv()
	var vErr *apperr.ValidationError

	_, err := env.service.Checkout(context.Background(), uuid.New().String(), CheckoutRequest{PaymentMethod: "card"})
	assert.ErrorAs(t, err, &vErr)

	_, err = env.service.Checkout(context.Background(), uuid.New().String(), CheckoutRequest{ShippingAddress: "somewhere"})
	assert.ErrorAs(t, err, &vErr)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	env := newTestEnv()
	customerID := uuid.New().String()
	product := uuid.New()

	env.stock.add(product.String(), 5000, 1)
	env.carts.addLine(customerID, product, 3)

	_, err := env.service.Checkout(context.Background(), customerID, checkoutReq())

	var stockErr *apperr.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, product.String(), stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)

	assert.Equal(t, 1, env.stock.stockOf(product.String()), "stock must be untouched")
	assert.Equal(t, 1, env.carts.count(customerID), "cart must survive a failed checkout")
	assert.Empty(t, env.repo.orders, "no order may be persisted")
}

func TestCheckout_ReservationRaceRollsBack(t *testing.T) {
	env := newTestEnv()
	customerID := uuid.New().String()
	productA, productB := uuid.New(), uuid.New()

	env.stock.add(productA.String(), 5000, 5)
	env.stock.add(productB.String(), 3000, 5)
	env.carts.addLine(customerID, productA, 1)
	env.carts.addLine(customerID, productB, 2)

	// A competing checkout drains product B between the pre-check and the
	// reservation transaction.
	env.repo.beforeCreate = func() {
		env.repo.beforeCreate = nil
		env.stock.mu.Lock()
		env.stock.stock[productB.String()] = 1
		env.stock.mu.Unlock()
	}

	_, err := env.service.Checkout(context.Background(), customerID, checkoutReq())

	var stockErr *apperr.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, productB.String(), stockErr.ProductID)
	assert.Equal(t, 5, env.stock.stockOf(productA.String()), "applied decrements must be rolled back")
	assert.Equal(t, 2, env.carts.count(customerID), "cart must survive")
	assert.Empty(t, env.repo.orders)
}

func TestCheckout_RetriesOrderNumberCollision(t *testing.T) {
	env := newTestEnv()
	customerID := uuid.New().String()
	product := uuid.New()

	env.stock.add(product.String(), 1000, 2)
	env.carts.addLine(customerID, product, 1)
	env.repo.dupesLeft = 2

	o, err := env.service.Checkout(context.Background(), customerID, checkoutReq())
	require.NoError(t, err)
	assert.NotEmpty(t, o.OrderNumber)
	assert.Equal(t, 3, env.repo.createCalls)
}

func TestCheckout_SurfacesPersistentCollision(t *testing.T) {
	env := newTestEnv()
	customerID := uuid.New().String()
	product := uuid.New()

	env.stock.add(product.String(), 1000, 2)
	env.carts.addLine(customerID, product, 1)
	env.repo.dupesLeft = 10

	_, err := env.service.Checkout(context.Background(), customerID, checkoutReq())
	assert.ErrorIs(t, err, apperr.ErrDuplicateReference)
	assert.Equal(t, 3, env.repo.createCalls)
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	env := newTestEnv()
	product := uuid.New()
	env.stock.add(product.String(), 5000, 1)

	const n = 8
	customers := make([]string, n)
	for i := range customers {
		customers[i] = uuid.New().String()
		env.carts.addLine(customers[i], product, 1)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.service.Checkout(context.Background(), customers[i], checkoutReq())
		}(i)
	}
	wg.Wait()

	var successes, rejections int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var stockErr *apperr.InsufficientStockError
		if assert.ErrorAs(t, err, &stockErr) {
			rejections++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, rejections)
	assert.Equal(t, 0, env.stock.stockOf(product.String()))
}

// ── status state machine ─────────────────────────────────────────────────────

func (e *testEnv) placeOrder(t *testing.T, status Status) *Order {
	t.Helper()
	customerID := uuid.New().String()
	product := uuid.New()
	e.stock.add(product.String(), 5000, 10)
	e.carts.addLine(customerID, product, 2)

	o, err := e.service.Checkout(context.Background(), customerID, checkoutReq())
	require.NoError(t, err)

	e.repo.mu.Lock()
	e.repo.orders[o.ID.String()].Status = status
	e.repo.mu.Unlock()
	o.Status = status
	return o
}

func TestUpdateStatus_ForwardTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      string
		allowed bool
	}{
		{"pending to processing", StatusPending, "processing", true},
		{"processing to shipped", StatusProcessing, "shipped", true},
		{"shipped to delivered", StatusShipped, "delivered", true},
		{"pending to shipped skips a step", StatusPending, "shipped", false},
		{"delivered back to processing", StatusDelivered, "processing", false},
		{"shipped back to pending", StatusShipped, "pending", false},
		{"delivered is terminal", StatusDelivered, "delivered", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			o := env.placeOrder(t, tt.from)

			updated, err := env.service.UpdateStatus(context.Background(), o.ID.String(), UpdateStatusRequest{Status: tt.to})
			if !tt.allowed {
				var transErr *apperr.InvalidTransitionError
				require.ErrorAs(t, err, &transErr)
				assert.Equal(t, string(tt.from), transErr.From)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Status(tt.to), updated.Status)
		})
	}
}

func TestUpdateStatus_DeliveredStampsTimestamp(t *testing.T) {
	env := newTestEnv()
	o := env.placeOrder(t, StatusShipped)

	updated, err := env.service.UpdateStatus(context.Background(), o.ID.String(), UpdateStatusRequest{Status: "delivered"})
	require.NoError(t, err)
	require.NotNil(t, updated.DeliveredAt)
	assert.WithinDuration(t, time.Now(), *updated.DeliveredAt, time.Minute)
}

func TestUpdateStatus_ConcurrentAdvanceRejectsStaleWrite(t *testing.T) {
	env := newTestEnv()
	o := env.placeOrder(t, StatusShipped)

	// A competing admin delivers the order between this update's status check
	// and its write; the stale shipped-based write must not land.
	env.repo.beforeUpdateStatus = func() {
		env.repo.beforeUpdateStatus = nil
		env.repo.mu.Lock()
		env.repo.orders[o.ID.String()].Status = StatusDelivered
		env.repo.mu.Unlock()
	}

	_, err := env.service.UpdateStatus(context.Background(), o.ID.String(), UpdateStatusRequest{Status: "delivered"})
	var transErr *apperr.InvalidTransitionError
	require.ErrorAs(t, err, &transErr)

	got, err := env.service.GetOrder(context.Background(), "", o.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, got.Status, "the first transition stands")
}

func TestUpdateStatus_UnknownStatusRejected(t *testing.T) {
	env := newTestEnv()
	o := env.placeOrder(t, StatusPending)

	_, err := env.service.UpdateStatus(context.Background(), o.ID.String(), UpdateStatusRequest{Status: "misplaced"})
	var vErr *apperr.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

// ── cancellation ─────────────────────────────────────────────────────────────

func TestCancelOrder_RestoresStockForShippedOrder(t *testing.T) {
	env := newTestEnv()
	o := env.placeOrder(t, StatusShipped)
	productID := o.Items[0].ProductID.String()
	before := env.stock.stockOf(productID)

	cancelled, err := env.service.CancelOrder(context.Background(), o.CustomerID.String(), o.ID.String())
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, before+o.Items[0].Quantity, env.stock.stockOf(productID))
}

func TestCancelOrder_DeliveredRejected(t *testing.T) {
	env := newTestEnv()
	o := env.placeOrder(t, StatusDelivered)
	productID := o.Items[0].ProductID.String()
	before := env.stock.stockOf(productID)

	_, err := env.service.CancelOrder(context.Background(), o.CustomerID.String(), o.ID.String())

	var transErr *apperr.InvalidTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, "delivered", transErr.From)
	assert.Equal(t, before, env.stock.stockOf(productID), "no stock change on rejected cancel")
}

func TestCancelOrder_AlreadyCancelledRejected(t *testing.T) {
	env := newTestEnv()
	o := env.placeOrder(t, StatusPending)

	_, err := env.service.CancelOrder(context.Background(), o.CustomerID.String(), o.ID.String())
	require.NoError(t, err)

	_, err = env.service.CancelOrder(context.Background(), o.CustomerID.String(), o.ID.String())
	var transErr *apperr.InvalidTransitionError
	assert.ErrorAs(t, err, &transErr)
}

func TestCancelOrder_OwnershipEnforced(t *testing.T) {
	env := newTestEnv()
	o := env.placeOrder(t, StatusPending)

	_, err := env.service.CancelOrder(context.Background(), uuid.New().String(), o.ID.String())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// ── misc ─────────────────────────────────────────────────────────────────────

func TestGetOrder_OwnershipEnforced(t *testing.T) {
	env := newTestEnv()
	o := env.placeOrder(t, StatusPending)

	_, err := env.service.GetOrder(context.Background(), uuid.New().String(), o.ID.String())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := env.service.GetOrder(context.Background(), "", o.ID.String())
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestMarkPaid_PromotesPendingOrder(t *testing.T) {
	env := newTestEnv()
	o := env.placeOrder(t, StatusPending)
	paidAt := time.Now()

	require.NoError(t, env.service.MarkPaid(context.Background(), o.ID.String(), paidAt))

	got, err := env.service.GetOrder(context.Background(), "", o.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	require.NotNil(t, got.PaidAt)
}

func TestMarkPaid_DoesNotRegressShippedOrder(t *testing.T) {
	env := newTestEnv()
	o := env.placeOrder(t, StatusShipped)

	require.NoError(t, env.service.MarkPaid(context.Background(), o.ID.String(), time.Now()))

	got, err := env.service.GetOrder(context.Background(), "", o.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, got.Status)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
}

func TestGenerateOrderNumber_Format(t *testing.T) {
	n := generateOrderNumber()
	assert.Regexp(t, `^ORD-\d{8}-\d{4}$`, n)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 975.0, round2(13000*0.075))
	assert.Equal(t, 1.23, round2(1.2349))
}
