package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yemba/grocery-core/internal/inventory"
	"github.com/yemba/grocery-core/internal/inventory/dto"
	"github.com/yemba/grocery-core/internal/model"
	"github.com/yemba/grocery-core/internal/platform/logger"
	"github.com/yemba/grocery-core/internal/platform/postgres"
)

// fakeTxManager serializes units of work with a mutex so concurrent callers
// behave like transactions taking row locks. The nil tx is ignored by memRepo.
type fakeTxManager struct {
	mu sync.Mutex
}

func (m *fakeTxManager) WithinTx(ctx context.Context, fn postgres.TxFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, nil)
}

type memRepo struct {
	mu           sync.Mutex
	items        map[string]model.InventoryItem
	reservations map[string]model.StockReservation
	movements    []model.StockMovement
}

func newMemRepo() *memRepo {
	return &memRepo{
		items:        make(map[string]model.InventoryItem),
		reservations: make(map[string]model.StockReservation),
	}
}

func (r *memRepo) seed(productID string, onHand, reserved int64) {
	r.items[productID] = model.InventoryItem{
		ID:        "item-" + productID,
		ProductID: productID,
		OnHand:    onHand,
		Reserved:  reserved,
	}
}

func (r *memRepo) GetByProduct(ctx context.Context, tx *sqlx.Tx, productID string) (*model.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[productID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (r *memRepo) GetByProductForUpdate(ctx context.Context, tx *sqlx.Tx, productID string) (*model.InventoryItem, error) {
	return r.GetByProduct(ctx, tx, productID)
}

func (r *memRepo) UpdateCounts(ctx context.Context, tx *sqlx.Tx, item *model.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ProductID] = *item
	return nil
}

func (r *memRepo) CreateItem(ctx context.Context, tx *sqlx.Tx, item *model.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ProductID] = *item
	return nil
}

func (r *memRepo) LogMovement(ctx context.Context, tx *sqlx.Tx, m *model.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *memRepo) GetReservationForUpdate(ctx context.Context, tx *sqlx.Tx, productID, reference string) (*model.StockReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[productID+"/"+reference]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (r *memRepo) SaveReservation(ctx context.Context, tx *sqlx.Tx, res *model.StockReservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reservations[res.ProductID+"/"+res.Reference] = *res
	return nil
}

func (r *memRepo) FindAll(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.InventoryItem
	for _, item := range r.items {
		if filters.LowStock && !item.NeedsReorder() {
			continue
		}
		out = append(out, item)
	}
	return out, len(out), nil
}

func (r *memRepo) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.StockMovement(nil), r.movements...), len(r.movements), nil
}

func (r *memRepo) movementsFor(productID string) []model.StockMovement {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockMovement
	for _, m := range r.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

func newTestUseCase(repo *memRepo) inventory.UseCase {
	return NewInventoryUseCase(repo, &fakeTxManager{}, nil, logger.NewNop())
}

func TestReserveHoldsStock(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 10, 0)
	uc := newTestUseCase(repo)

	result, err := uc.Reserve(context.Background(), []dto.ItemRequest{{ProductID: "p1", Quantity: 3}}, "ORD-1")
	require.NoError(t, err)
	require.Len(t, result.ReservedItems, 1)

	item := repo.items["p1"]
	assert.Equal(t, int64(10), item.OnHand)
	assert.Equal(t, int64(3), item.Reserved)
	assert.Equal(t, int64(7), item.Available())

	movements := repo.movementsFor("p1")
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementOutbound, movements[0].MovementType)
	assert.Equal(t, int64(-3), movements[0].Quantity)
	assert.Equal(t, "ORD-1", movements[0].Reference)

	res := repo.reservations["p1/ORD-1"]
	assert.Equal(t, model.ReservationActive, res.Status)
	assert.Equal(t, int64(3), res.Quantity)
}

func TestReserveInsufficientLeavesStateUntouched(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 3, 0)
	repo.seed("p2", 10, 0)
	uc := newTestUseCase(repo)

	_, err := uc.Reserve(context.Background(), []dto.ItemRequest{
		{ProductID: "p1", Quantity: 5},
		{ProductID: "p2", Quantity: 5},
	}, "ORD-2")
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var shortage *inventory.InsufficientStockError
	require.ErrorAs(t, err, &shortage)
	require.Len(t, shortage.Lines, 1)
	assert.Equal(t, "p1", shortage.Lines[0].ProductID)
	assert.Equal(t, int64(5), shortage.Lines[0].Requested)
	assert.Equal(t, int64(3), shortage.Lines[0].Available)

	// No line may have been touched, including the sufficient one.
	assert.Equal(t, int64(0), repo.items["p1"].Reserved)
	assert.Equal(t, int64(0), repo.items["p2"].Reserved)
	assert.Empty(t, repo.movements)
}

func TestReserveUnknownProductIsAShortage(t *testing.T) {
	repo := newMemRepo()
	uc := newTestUseCase(repo)

	_, err := uc.Reserve(context.Background(), []dto.ItemRequest{{ProductID: "ghost", Quantity: 1}}, "ORD-3")
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var shortage *inventory.InsufficientStockError
	require.ErrorAs(t, err, &shortage)
	assert.Equal(t, int64(0), shortage.Lines[0].Available)
}

func TestReserveDuplicateLinesAreCumulative(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 1, 0)
	uc := newTestUseCase(repo)

	// Two lines for the same product must be checked against stock together,
	// not each against the full available quantity.
	_, err := uc.Reserve(context.Background(), []dto.ItemRequest{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p1", Quantity: 1},
	}, "ORD-DUP")
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var shortage *inventory.InsufficientStockError
	require.ErrorAs(t, err, &shortage)
	require.Len(t, shortage.Lines, 1)
	assert.Equal(t, int64(2), shortage.Lines[0].Requested)
	assert.Equal(t, int64(1), shortage.Lines[0].Available)

	assert.Equal(t, int64(0), repo.items["p1"].Reserved)
	assert.Empty(t, repo.movements)
}

func TestReserveDuplicateLinesCommitCleanly(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 5, 0)
	uc := newTestUseCase(repo)

	items := []dto.ItemRequest{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p1", Quantity: 1},
	}
	result, err := uc.Reserve(context.Background(), items, "ORD-DUP2")
	require.NoError(t, err)
	require.Len(t, result.ReservedItems, 1)
	assert.Equal(t, int64(3), result.ReservedItems[0].Quantity)

	item := repo.items["p1"]
	assert.Equal(t, int64(3), item.Reserved)

	// One reservation row and one movement carry the combined quantity.
	res := repo.reservations["p1/ORD-DUP2"]
	assert.Equal(t, int64(3), res.Quantity)
	movements := repo.movementsFor("p1")
	require.Len(t, movements, 1)
	assert.Equal(t, int64(-3), movements[0].Quantity)

	require.NoError(t, uc.CommitOutbound(context.Background(), items, "ORD-DUP2"))
	item = repo.items["p1"]
	assert.Equal(t, int64(2), item.OnHand)
	assert.Equal(t, int64(0), item.Reserved)
	assert.Equal(t, model.ReservationCommitted, repo.reservations["p1/ORD-DUP2"].Status)
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 1, 0)
	uc := newTestUseCase(repo)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := uc.Reserve(context.Background(),
				[]dto.ItemRequest{{ProductID: "p1", Quantity: 1}},
				"ORD-"+string(rune('A'+n)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, inventory.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded)

	item := repo.items["p1"]
	assert.Equal(t, int64(1), item.Reserved)
	assert.GreaterOrEqual(t, item.OnHand, item.Reserved)
}

func TestReleaseRestoresAvailability(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 10, 0)
	uc := newTestUseCase(repo)

	items := []dto.ItemRequest{{ProductID: "p1", Quantity: 4}}
	_, err := uc.Reserve(context.Background(), items, "ORD-4")
	require.NoError(t, err)

	require.NoError(t, uc.Release(context.Background(), items, "ORD-4"))

	item := repo.items["p1"]
	assert.Equal(t, int64(10), item.OnHand)
	assert.Equal(t, int64(0), item.Reserved)

	movements := repo.movementsFor("p1")
	require.Len(t, movements, 2)
	assert.Equal(t, model.MovementReturnIn, movements[1].MovementType)
	assert.Equal(t, int64(4), movements[1].Quantity)

	res := repo.reservations["p1/ORD-4"]
	assert.Equal(t, model.ReservationReleased, res.Status)
}

func TestReleaseWithoutReservationFails(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 10, 2)
	uc := newTestUseCase(repo)

	err := uc.Release(context.Background(), []dto.ItemRequest{{ProductID: "p1", Quantity: 2}}, "ORD-UNKNOWN")
	require.ErrorIs(t, err, inventory.ErrReservationMismatch)
	assert.Equal(t, int64(2), repo.items["p1"].Reserved)
}

func TestDoubleReleaseIsAMismatch(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 10, 0)
	uc := newTestUseCase(repo)

	items := []dto.ItemRequest{{ProductID: "p1", Quantity: 2}}
	_, err := uc.Reserve(context.Background(), items, "ORD-5")
	require.NoError(t, err)
	require.NoError(t, uc.Release(context.Background(), items, "ORD-5"))

	err = uc.Release(context.Background(), items, "ORD-5")
	require.ErrorIs(t, err, inventory.ErrReservationMismatch)

	item := repo.items["p1"]
	assert.Equal(t, int64(10), item.OnHand)
	assert.Equal(t, int64(0), item.Reserved)
}

func TestCommitOutboundDecrementsOnHand(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 10, 0)
	uc := newTestUseCase(repo)

	items := []dto.ItemRequest{{ProductID: "p1", Quantity: 4}}
	_, err := uc.Reserve(context.Background(), items, "ORD-6")
	require.NoError(t, err)

	require.NoError(t, uc.CommitOutbound(context.Background(), items, "ORD-6"))

	item := repo.items["p1"]
	assert.Equal(t, int64(6), item.OnHand)
	assert.Equal(t, int64(0), item.Reserved)

	movements := repo.movementsFor("p1")
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, model.MovementOutbound, m.MovementType)
		assert.Equal(t, int64(-4), m.Quantity)
	}

	res := repo.reservations["p1/ORD-6"]
	assert.Equal(t, model.ReservationCommitted, res.Status)
}

func TestCommitWithoutReservationFails(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 10, 0)
	uc := newTestUseCase(repo)

	err := uc.CommitOutbound(context.Background(), []dto.ItemRequest{{ProductID: "p1", Quantity: 1}}, "ORD-7")
	require.ErrorIs(t, err, inventory.ErrReservationMismatch)
	assert.Equal(t, int64(10), repo.items["p1"].OnHand)
}

func TestRecordInboundCreatesMissingItem(t *testing.T) {
	repo := newMemRepo()
	uc := newTestUseCase(repo)

	item, err := uc.RecordInbound(context.Background(), &dto.RecordInboundInput{
		ProductID: "p-new",
		Quantity:  25,
		Reference: "GR-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25), item.OnHand)
	assert.Equal(t, int64(0), item.Reserved)

	movements := repo.movementsFor("p-new")
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementInbound, movements[0].MovementType)
	assert.Equal(t, int64(25), movements[0].Quantity)
	assert.Equal(t, "GR-1", movements[0].Reference)
}

func TestAdjustRejectsNegativeResult(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 3, 0)
	uc := newTestUseCase(repo)

	_, err := uc.AdjustInventory(context.Background(), &dto.AdjustInventoryInput{
		ProductID: "p1",
		Delta:     -5,
		Reason:    "spoilage",
	})
	require.ErrorIs(t, err, inventory.ErrNegativeStock)
	assert.Equal(t, int64(3), repo.items["p1"].OnHand)
	assert.Empty(t, repo.movements)
}

func TestAdjustLogsAdjustMovement(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 10, 0)
	uc := newTestUseCase(repo)

	item, err := uc.AdjustInventory(context.Background(), &dto.AdjustInventoryInput{
		ProductID: "p1",
		Delta:     -2,
		Reason:    "damaged in storage",
		ActorID:   "staff-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), item.OnHand)

	movements := repo.movementsFor("p1")
	require.Len(t, movements, 1)
	assert.Equal(t, model.MovementAdjust, movements[0].MovementType)
	assert.Equal(t, int64(-2), movements[0].Quantity)
	assert.Equal(t, "damaged in storage", movements[0].Notes)
	require.NotNil(t, movements[0].CreatedBy)
	assert.Equal(t, "staff-1", *movements[0].CreatedBy)
}

type stubLocker struct {
	mu       sync.Mutex
	busy     bool
	acquired int
	released int
}

func (l *stubLocker) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return false, nil
	}
	l.acquired++
	return true, nil
}

func (l *stubLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	return nil
}

func TestAdjustHoldsAdvisoryLock(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 10, 0)
	locker := &stubLocker{}
	uc := NewInventoryUseCase(repo, &fakeTxManager{}, locker, logger.NewNop())

	_, err := uc.AdjustInventory(context.Background(), &dto.AdjustInventoryInput{
		ProductID: "p1",
		Delta:     1,
		Reason:    "recount",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestAdjustLockBusy(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 10, 0)
	locker := &stubLocker{busy: true}
	uc := NewInventoryUseCase(repo, &fakeTxManager{}, locker, logger.NewNop())

	_, err := uc.AdjustInventory(context.Background(), &dto.AdjustInventoryInput{
		ProductID: "p1",
		Delta:     1,
		Reason:    "recount",
	})
	require.ErrorIs(t, err, ErrLockBusy)
	assert.Equal(t, int64(10), repo.items["p1"].OnHand)
}

func TestCheckAvailableReportsPerLine(t *testing.T) {
	repo := newMemRepo()
	repo.seed("p1", 10, 4)
	uc := newTestUseCase(repo)

	result, err := uc.CheckAvailable(context.Background(), []dto.ItemRequest{
		{ProductID: "p1", Quantity: 6},
		{ProductID: "ghost", Quantity: 1},
	})
	require.NoError(t, err)
	assert.False(t, result.Available)
	require.Len(t, result.Items, 2)

	assert.Equal(t, int64(6), result.Items[0].Available)
	assert.True(t, result.Items[0].Sufficient)
	assert.Equal(t, int64(0), result.Items[1].Available)
	assert.False(t, result.Items[1].Sufficient)
}
