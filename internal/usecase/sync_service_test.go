package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"pinbot/internal/domain"
	"pinbot/internal/usecase"
)

const epsilon = 0.000001

func floatEquals(a, b float64) bool {
	return (a-b) < epsilon && (b-a) < epsilon
}

// MockOrderStore keeps orders in memory and records every mutation, so
// tests can assert exactly what was written and when.
type MockOrderStore struct {
	mu         sync.Mutex
	Orders     []*domain.Order
	PendingErr error
	ListErr    error
	StatusErr  error
	ReplaceErr error

	StatusCalls  []StatusCall
	ReplaceCalls []ReplaceCall
}

type StatusCall struct {
	OrderID string
	Status  domain.OrderStatus
}

type ReplaceCall struct {
	OldID      string
	NewID      string
	NewCurrent float64
	NewTarget  float64
}

func (m *MockOrderStore) GetPendingOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	if m.PendingErr != nil {
		return nil, m.PendingErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.Orders {
		if o.UserID == userID && o.Status == domain.StatusPending {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MockOrderStore) ListUsersWithPending(ctx context.Context) ([]int64, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]bool)
	var users []int64
	for _, o := range m.Orders {
		if o.Status == domain.StatusPending && !seen[o.UserID] {
			seen[o.UserID] = true
			users = append(users, o.UserID)
		}
	}
	return users, nil
}

func (m *MockOrderStore) SetStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if m.StatusErr != nil {
		return m.StatusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusCalls = append(m.StatusCalls, StatusCall{OrderID: orderID, Status: status})
	for _, o := range m.Orders {
		if o.OrderID == orderID {
			o.Status = status
			return nil
		}
	}
	return domain.ErrOrderNotFound
}

func (m *MockOrderStore) ReplaceOrder(ctx context.Context, oldID, newID string, newCurrent, newTarget float64) error {
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplaceCalls = append(m.ReplaceCalls, ReplaceCall{OldID: oldID, NewID: newID, NewCurrent: newCurrent, NewTarget: newTarget})
	for _, o := range m.Orders {
		if o.OrderID == oldID {
			o.OrderID = newID
			o.CurrentPrice = newCurrent
			o.TargetPrice = newTarget
			return nil
		}
	}
	return domain.ErrOrderNotFound
}

func (m *MockOrderStore) CountByStatus(ctx context.Context) (map[domain.OrderStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.OrderStatus]int)
	for _, o := range m.Orders {
		counts[o.Status]++
	}
	return counts, nil
}

// MockMarketData serves canned top-of-book prices per token.
type MockMarketData struct {
	Prices map[string]float64
	Errs   map[string]error
}

func (m *MockMarketData) BestPrice(ctx context.Context, tokenID string, side domain.Side) (float64, error) {
	if err := m.Errs[tokenID]; err != nil {
		return 0, err
	}
	price, ok := m.Prices[tokenID]
	if !ok {
		return 0, domain.ErrNoLiquidity
	}
	return price, nil
}

// MockGateway records batch calls and answers with canned results. With
// no canned result set, every cancel is removed and every placement is
// accepted under a generated id.
type MockGateway struct {
	mu sync.Mutex

	States   map[string]*domain.OrderState
	StateErr map[string]error
	PanicOn  string

	CancelRes *domain.CancelResult
	CancelErr error
	PlaceRes  *domain.PlaceResult
	PlaceErr  error

	CancelCalls [][]string
	PlaceCalls  [][]domain.PlacementSpec
}

func (m *MockGateway) GetOrderStatus(ctx context.Context, orderID string) (*domain.OrderState, error) {
	if m.PanicOn != "" && orderID == m.PanicOn {
		panic("corrupt order state")
	}
	if err := m.StateErr[orderID]; err != nil {
		return nil, err
	}
	if state, ok := m.States[orderID]; ok {
		return state, nil
	}
	return &domain.OrderState{Status: domain.StatusPending}, nil
}

func (m *MockGateway) CancelBatch(ctx context.Context, orderIDs []string) (*domain.CancelResult, error) {
	m.mu.Lock()
	m.CancelCalls = append(m.CancelCalls, orderIDs)
	m.mu.Unlock()
	if m.CancelErr != nil {
		return nil, m.CancelErr
	}
	if m.CancelRes != nil {
		return m.CancelRes, nil
	}
	return &domain.CancelResult{Success: true, Removed: orderIDs}, nil
}

func (m *MockGateway) PlaceBatch(ctx context.Context, specs []domain.PlacementSpec) (*domain.PlaceResult, error) {
	m.mu.Lock()
	m.PlaceCalls = append(m.PlaceCalls, specs)
	m.mu.Unlock()
	if m.PlaceErr != nil {
		return nil, m.PlaceErr
	}
	if m.PlaceRes != nil {
		return m.PlaceRes, nil
	}
	res := &domain.PlaceResult{Success: true}
	for i := range specs {
		res.Items = append(res.Items, domain.PlaceResultItem{OrderID: fmt.Sprintf("new-%d", i+1)})
	}
	return res, nil
}

// MockNotifier records every message, even when told to fail delivery.
type MockNotifier struct {
	mu       sync.Mutex
	Err      error
	Messages []SentMessage
}

type SentMessage struct {
	UserID int64
	Text   string
}

func (m *MockNotifier) Notify(ctx context.Context, userID int64, text string) error {
	m.mu.Lock()
	m.Messages = append(m.Messages, SentMessage{UserID: userID, Text: text})
	m.mu.Unlock()
	return m.Err
}

func newTestService(store *MockOrderStore, market *MockMarketData, gw *MockGateway, sink *MockNotifier) *usecase.SyncService {
	log := zap.NewNop()
	executor := usecase.NewBatchExecutor(gw, log)
	return usecase.NewSyncService(store, market, gw, executor, sink, log)
}

// pinnedOrder is a BUY resting 10 ticks under a 0.500 top of book.
func pinnedOrder(id string, userID int64) *domain.Order {
	return &domain.Order{
		OrderID:                  id,
		UserID:                   userID,
		MarketID:                 42,
		MarketTitle:              "Will it rain in London tomorrow?",
		TokenID:                  "tok-yes",
		TokenName:                "YES",
		Side:                     domain.SideBuy,
		OffsetTicks:              10,
		RepositionThresholdCents: 0.5,
		CurrentPrice:             0.500,
		TargetPrice:              0.490,
		Amount:                   25,
		Status:                   domain.StatusPending,
	}
}

func TestSyncUser_RepositionsOnDrift(t *testing.T) {
	// Top of book moved 0.500 -> 0.510, so the 10-tick target moves
	// 0.490 -> 0.500. One full cent of drift, well past the 0.5¢ threshold.
	store := &MockOrderStore{Orders: []*domain.Order{pinnedOrder("ord-1", 7)}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{PlaceRes: &domain.PlaceResult{
		Success: true,
		Items:   []domain.PlaceResultItem{{OrderID: "ord-2"}},
	}}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Checked != 1 || res.Repositioned != 1 {
		t.Fatalf("Expected 1 checked, 1 repositioned, got %+v", res)
	}

	// Cancel and place submitted in lockstep, cancel first.
	if len(gw.CancelCalls) != 1 || len(gw.CancelCalls[0]) != 1 || gw.CancelCalls[0][0] != "ord-1" {
		t.Fatalf("Expected one cancel of ord-1, got %v", gw.CancelCalls)
	}
	if len(gw.PlaceCalls) != 1 || len(gw.PlaceCalls[0]) != len(gw.CancelCalls[0]) {
		t.Fatalf("Expected place batch paired with cancel batch, got %v", gw.PlaceCalls)
	}
	spec := gw.PlaceCalls[0][0]
	if !floatEquals(spec.Price, 0.500) {
		t.Errorf("New target wrong: %f", spec.Price)
	}
	if !floatEquals(spec.CurrentPrice, 0.510) {
		t.Errorf("New current wrong: %f", spec.CurrentPrice)
	}

	// Store rewritten only after the venue confirmed the new order.
	if len(store.ReplaceCalls) != 1 {
		t.Fatalf("Expected one replace, got %d", len(store.ReplaceCalls))
	}
	call := store.ReplaceCalls[0]
	if call.OldID != "ord-1" || call.NewID != "ord-2" {
		t.Errorf("Replace ids wrong: %+v", call)
	}
	if !floatEquals(call.NewCurrent, 0.510) || !floatEquals(call.NewTarget, 0.500) {
		t.Errorf("Replace prices wrong: %+v", call)
	}

	// Intent message before execution, confirmation after.
	if len(sink.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(sink.Messages))
	}
	if !strings.Contains(sink.Messages[0].Text, "ord-1") {
		t.Errorf("Intent message should name the old order: %q", sink.Messages[0].Text)
	}
	if !strings.Contains(sink.Messages[1].Text, "ord-2") {
		t.Errorf("Confirmation should name the new order: %q", sink.Messages[1].Text)
	}
}

func TestSyncUser_HoldsStillBelowThreshold(t *testing.T) {
	// 0.500 -> 0.503 moves the target 0.490 -> 0.493, only 0.3¢. Nothing
	// may be cancelled, placed, stored or sent.
	store := &MockOrderStore{Orders: []*domain.Order{pinnedOrder("ord-1", 7)}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.503}}
	gw := &MockGateway{}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Checked != 1 || res.Repositioned != 0 {
		t.Fatalf("Expected a checked no-op, got %+v", res)
	}
	if len(gw.CancelCalls) != 0 || len(gw.PlaceCalls) != 0 {
		t.Errorf("No venue calls expected, got cancels %v places %v", gw.CancelCalls, gw.PlaceCalls)
	}
	if len(store.ReplaceCalls) != 0 {
		t.Errorf("Store must stay untouched, got %v", store.ReplaceCalls)
	}
	if len(sink.Messages) != 0 {
		t.Errorf("No messages expected, got %v", sink.Messages)
	}
	if store.Orders[0].OrderID != "ord-1" || !floatEquals(store.Orders[0].TargetPrice, 0.490) {
		t.Errorf("Order changed on a no-op: %+v", store.Orders[0])
	}
}

func TestSyncUser_DriftAtThresholdRepositions(t *testing.T) {
	// 0.505 moves the target to 0.495, exactly the 0.5¢ threshold. At the
	// threshold counts as drifted.
	store := &MockOrderStore{Orders: []*domain.Order{pinnedOrder("ord-1", 7)}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.505}}
	gw := &MockGateway{}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Repositioned != 1 {
		t.Fatalf("Expected reposition at exact threshold, got %+v", res)
	}
}

func TestSyncUser_PartialPlacementFailure(t *testing.T) {
	// Two orders drift together. Both cancels succeed (one actively, one
	// already resolved), the second placement is rejected by the venue.
	// Only the first order may be rewritten in the store.
	o1 := pinnedOrder("ord-1", 7)
	o2 := pinnedOrder("ord-2", 7)
	store := &MockOrderStore{Orders: []*domain.Order{o1, o2}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{
		CancelRes: &domain.CancelResult{Success: true, Removed: []string{"ord-1"}, NoOp: []string{"ord-2"}},
		PlaceRes: &domain.PlaceResult{
			Success: true,
			Items: []domain.PlaceResultItem{
				{OrderID: "new-1"},
				{Code: 3001, Message: "insufficient balance"},
			},
		},
	}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Repositioned != 1 || res.Failed != 1 {
		t.Fatalf("Expected 1 repositioned, 1 failed, got %+v", res)
	}

	if len(store.ReplaceCalls) != 1 {
		t.Fatalf("Expected exactly one replace, got %v", store.ReplaceCalls)
	}
	if store.ReplaceCalls[0].OldID != "ord-1" || store.ReplaceCalls[0].NewID != "new-1" {
		t.Errorf("Wrong order replaced: %+v", store.ReplaceCalls[0])
	}

	// The failed order keeps its old record untouched.
	if o2.OrderID != "ord-2" || !floatEquals(o2.TargetPrice, 0.490) {
		t.Errorf("Failed order must keep its old record: %+v", o2)
	}

	// 2 intent messages, 1 confirmation, 1 failure naming the old id and
	// the venue's code.
	if len(sink.Messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(sink.Messages))
	}
	failure := sink.Messages[3].Text
	if !strings.Contains(failure, "ord-2") {
		t.Errorf("Failure must reference the old order id: %q", failure)
	}
	if !strings.Contains(failure, "3001") || !strings.Contains(failure, "insufficient balance") {
		t.Errorf("Failure must carry the venue code and message: %q", failure)
	}
	if !strings.Contains(failure, "NOT protected") {
		t.Errorf("Failure must warn the position is uncovered: %q", failure)
	}
}

func TestSyncUser_CancelFailureBlocksAllPlacements(t *testing.T) {
	// The venue never accounts for ord-2's cancel. Both placements must
	// be held back and the store left alone.
	o1 := pinnedOrder("ord-1", 7)
	o2 := pinnedOrder("ord-2", 7)
	store := &MockOrderStore{Orders: []*domain.Order{o1, o2}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{
		CancelRes: &domain.CancelResult{Success: true, Removed: []string{"ord-1"}},
	}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("Cancel failure must not abort the cycle: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("Expected 1 failed, got %+v", res)
	}
	if len(gw.PlaceCalls) != 0 {
		t.Fatalf("No placements allowed after a failed cancel, got %v", gw.PlaceCalls)
	}
	if len(store.ReplaceCalls) != 0 {
		t.Errorf("Store must stay untouched, got %v", store.ReplaceCalls)
	}
	if o1.OrderID != "ord-1" || o2.OrderID != "ord-2" {
		t.Errorf("Orders changed without placement: %s, %s", o1.OrderID, o2.OrderID)
	}

	// 2 intent messages plus the hold notification listing the stuck id.
	if len(sink.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(sink.Messages))
	}
	hold := sink.Messages[2].Text
	if !strings.Contains(hold, "ord-2") {
		t.Errorf("Hold message must list the stuck order: %q", hold)
	}
	if !strings.Contains(hold, "NOT be placed") {
		t.Errorf("Hold message must say placements are held: %q", hold)
	}
}

func TestSyncUser_NoOpCancelClearsWayForPlacement(t *testing.T) {
	// A cancel answered as a no-op means the order is already gone on the
	// venue, which is all a cancel is for. Placement proceeds.
	store := &MockOrderStore{Orders: []*domain.Order{pinnedOrder("ord-1", 7)}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{
		CancelRes: &domain.CancelResult{Success: true, NoOp: []string{"ord-1"}},
	}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Repositioned != 1 || res.Failed != 0 {
		t.Fatalf("Expected no-op cancel to permit placement, got %+v", res)
	}
	if len(gw.PlaceCalls) != 1 {
		t.Fatalf("Expected one place call, got %d", len(gw.PlaceCalls))
	}
}

func TestSyncUser_ResolvesFilledOrder(t *testing.T) {
	store := &MockOrderStore{Orders: []*domain.Order{pinnedOrder("ord-1", 7)}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{
		States: map[string]*domain.OrderState{
			"ord-1": {Status: domain.StatusFinished, FilledAmount: 25, FillPrice: 0.492},
		},
	}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Resolved != 1 || res.Repositioned != 0 {
		t.Fatalf("Expected 1 resolved, got %+v", res)
	}
	if len(store.StatusCalls) != 1 || store.StatusCalls[0].Status != domain.StatusFinished {
		t.Fatalf("Expected finished status write, got %v", store.StatusCalls)
	}
	if len(gw.CancelCalls) != 0 || len(gw.PlaceCalls) != 0 {
		t.Errorf("Resolved order must not reach the venue, got cancels %v places %v", gw.CancelCalls, gw.PlaceCalls)
	}
	if len(sink.Messages) != 1 || !strings.Contains(sink.Messages[0].Text, "ord-1") {
		t.Fatalf("Expected one fill message naming the order, got %v", sink.Messages)
	}
	if !strings.Contains(sink.Messages[0].Text, "filled") {
		t.Errorf("Fill message wrong: %q", sink.Messages[0].Text)
	}
}

func TestSyncUser_ResolvesCanceledOrderSilently(t *testing.T) {
	store := &MockOrderStore{Orders: []*domain.Order{pinnedOrder("ord-1", 7)}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{
		States: map[string]*domain.OrderState{
			"ord-1": {Status: domain.StatusCanceled},
		},
	}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Resolved != 1 {
		t.Fatalf("Expected 1 resolved, got %+v", res)
	}
	if len(store.StatusCalls) != 1 || store.StatusCalls[0].Status != domain.StatusCanceled {
		t.Fatalf("Expected canceled status write, got %v", store.StatusCalls)
	}
	// The user canceled it themselves; no message for that.
	if len(sink.Messages) != 0 {
		t.Errorf("Expected no messages, got %v", sink.Messages)
	}
}

func TestSyncUser_StatusLookupFailureStillRepositions(t *testing.T) {
	// A flaky status endpoint downgrades to "still pending"; the order
	// keeps tracking the book.
	store := &MockOrderStore{Orders: []*domain.Order{pinnedOrder("ord-1", 7)}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{
		StateErr: map[string]error{"ord-1": errors.New("venue 502")},
	}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Repositioned != 1 {
		t.Fatalf("Expected reposition despite status failure, got %+v", res)
	}
}

func TestSyncUser_StatusWriteFailureSkipsOrder(t *testing.T) {
	store := &MockOrderStore{
		Orders:    []*domain.Order{pinnedOrder("ord-1", 7)},
		StatusErr: errors.New("disk full"),
	}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{
		States: map[string]*domain.OrderState{
			"ord-1": {Status: domain.StatusFinished, FilledAmount: 25},
		},
	}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Skipped != 1 || res.Resolved != 0 {
		t.Fatalf("Expected skipped order on status write failure, got %+v", res)
	}
	// Fill is only announced once it is recorded.
	if len(sink.Messages) != 0 {
		t.Errorf("Expected no messages, got %v", sink.Messages)
	}
}

func TestSyncUser_PriceFailureSkipsOrderOnly(t *testing.T) {
	// One book is unavailable; the sibling with a live book still moves.
	o1 := pinnedOrder("ord-1", 7)
	o2 := pinnedOrder("ord-2", 7)
	o2.TokenID = "tok-no"
	o2.TokenName = "NO"
	store := &MockOrderStore{Orders: []*domain.Order{o1, o2}}
	market := &MockMarketData{
		Prices: map[string]float64{"tok-no": 0.510},
		Errs:   map[string]error{"tok-yes": errors.New("book unavailable")},
	}
	gw := &MockGateway{}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Skipped != 1 || res.Repositioned != 1 {
		t.Fatalf("Expected 1 skipped, 1 repositioned, got %+v", res)
	}
	if len(gw.CancelCalls) != 1 || gw.CancelCalls[0][0] != "ord-2" {
		t.Fatalf("Only the live order may be cancelled, got %v", gw.CancelCalls)
	}
}

func TestSyncUser_PanicIsolatedToOneOrder(t *testing.T) {
	o1 := pinnedOrder("ord-1", 7)
	o2 := pinnedOrder("ord-2", 7)
	store := &MockOrderStore{Orders: []*domain.Order{o1, o2}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{PanicOn: "ord-1"}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("Panic must be recovered, got error: %v", err)
	}
	if res.Skipped != 1 || res.Repositioned != 1 {
		t.Fatalf("Expected panicking order skipped and sibling repositioned, got %+v", res)
	}
	if len(gw.CancelCalls) != 1 || gw.CancelCalls[0][0] != "ord-2" {
		t.Fatalf("Only the healthy order may move, got %v", gw.CancelCalls)
	}
}

func TestSyncUser_PlaceCallRejectionFailsWholeBatch(t *testing.T) {
	o1 := pinnedOrder("ord-1", 7)
	o2 := pinnedOrder("ord-2", 7)
	store := &MockOrderStore{Orders: []*domain.Order{o1, o2}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{
		PlaceRes: &domain.PlaceResult{Success: false, Cause: "risk check failed"},
	}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Failed != 2 || res.Repositioned != 0 {
		t.Fatalf("Expected both placements failed, got %+v", res)
	}
	if len(store.ReplaceCalls) != 0 {
		t.Errorf("Store must stay untouched, got %v", store.ReplaceCalls)
	}
	// 2 intent messages plus 2 failures carrying the venue cause.
	if len(sink.Messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(sink.Messages))
	}
	for _, msg := range sink.Messages[2:] {
		if !strings.Contains(msg.Text, "risk check failed") {
			t.Errorf("Failure must carry the venue cause: %q", msg.Text)
		}
	}
}

func TestSyncUser_StoreWriteFailureCountsAsFailed(t *testing.T) {
	store := &MockOrderStore{
		Orders:     []*domain.Order{pinnedOrder("ord-1", 7)},
		ReplaceErr: errors.New("database locked"),
	}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Failed != 1 || res.Repositioned != 0 {
		t.Fatalf("Expected failed reposition on store error, got %+v", res)
	}
}

func TestSyncUser_NotifierFailureDoesNotStopCycle(t *testing.T) {
	store := &MockOrderStore{Orders: []*domain.Order{pinnedOrder("ord-1", 7)}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{}
	sink := &MockNotifier{Err: errors.New("telegram down")}
	service := newTestService(store, market, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("Notification failure must stay local: %v", err)
	}
	if res.Repositioned != 1 {
		t.Fatalf("Expected reposition despite notifier failure, got %+v", res)
	}
	if len(store.ReplaceCalls) != 1 {
		t.Errorf("Expected the replace to be persisted, got %v", store.ReplaceCalls)
	}
}

func TestSyncUser_SecondCycleIsIdempotent(t *testing.T) {
	// After a confirmed replace the stored prices match the book again, so
	// an unchanged book must produce a pure no-op next cycle.
	store := &MockOrderStore{Orders: []*domain.Order{pinnedOrder("ord-1", 7)}}
	market := &MockMarketData{Prices: map[string]float64{"tok-yes": 0.510}}
	gw := &MockGateway{}
	sink := &MockNotifier{}
	service := newTestService(store, market, gw, sink)

	first, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("First cycle failed: %v", err)
	}
	if first.Repositioned != 1 {
		t.Fatalf("Expected first cycle to reposition, got %+v", first)
	}

	second, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("Second cycle failed: %v", err)
	}
	if second.Repositioned != 0 || second.Checked != 1 {
		t.Fatalf("Expected second cycle no-op, got %+v", second)
	}
	if len(gw.CancelCalls) != 1 {
		t.Errorf("Second cycle must not touch the venue, got %d cancel calls", len(gw.CancelCalls))
	}
}

func TestSyncUser_LoadFailureAbortsCycle(t *testing.T) {
	store := &MockOrderStore{PendingErr: errors.New("database locked")}
	service := newTestService(store, &MockMarketData{}, &MockGateway{}, &MockNotifier{})

	_, err := service.SyncUser(context.Background(), 7)
	if err == nil {
		t.Fatal("Expected error when orders cannot be loaded")
	}
}

func TestSyncUser_NoPendingOrdersIsQuiet(t *testing.T) {
	store := &MockOrderStore{}
	gw := &MockGateway{}
	sink := &MockNotifier{}
	service := newTestService(store, &MockMarketData{}, gw, sink)

	res, err := service.SyncUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SyncUser failed: %v", err)
	}
	if res.Checked != 0 || len(gw.CancelCalls) != 0 || len(sink.Messages) != 0 {
		t.Errorf("Empty user must be a pure no-op, got %+v", res)
	}
}
