package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/vending-machine/internal/core/domain"
	"github.com/rl1809/vending-machine/internal/port"
)

var ErrDuplicateRequest = errors.New("duplicate request")

const requestKeyPrefix = "request:"

// Status is a read-only snapshot of the machine.
type Status struct {
	State            domain.MachineState `json:"state"`
	Balance          domain.Money        `json:"balance"`
	Cart             []string            `json:"cart"`
	CartCount        int                 `json:"cart_count"`
	SelectedItem     *string             `json:"selected_item"`
	AvailableActions []string            `json:"available_actions"`
}

type CoinResult struct {
	Message  string
	Inserted domain.Money
	Balance  domain.Money
	Status   Status
}

// SelectResult reports a selection. Available is false when the machine
// moved to OutOfStock instead of adding the item to the cart.
type SelectResult struct {
	Message   string
	Item      domain.Item
	Available bool
	Status    Status
}

type PurchaseResult struct {
	Message     string
	Change      domain.Money
	Transaction domain.Transaction
	Status      Status
}

type RefundResult struct {
	Message string
	Amount  domain.Money
	Status  Status
}

type ResetResult struct {
	Message string
	Status  Status
}

// VendingService is the machine controller. It owns the current state and
// orchestrates the inventory, ledger, cart and transaction log. Every public
// method is a critical section: inputs are handled one at a time and run to
// completion, and a rejected input leaves state, balance, cart and stock as
// they were.
type VendingService struct {
	mu        sync.Mutex
	state     domain.MachineState
	inventory *domain.Inventory
	ledger    *domain.Ledger
	cart      *domain.Cart
	history   *domain.TransactionLog
	selected  string

	settlements chan domain.Transaction
	closed      bool
	requests    port.CacheRepository

	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

type Option func(*VendingService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *VendingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *VendingService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *VendingService) { s.newID = newID }
}

// WithIdempotencyCache enables ClaimRequest.
func WithIdempotencyCache(cache port.CacheRepository) Option {
	return func(s *VendingService) { s.requests = cache }
}

// NewVendingService builds a machine in the Idle state. Settled transactions
// are published to a buffered queue of queueSize; a non-positive size
// disables publishing.
func NewVendingService(inventory *domain.Inventory, ledger *domain.Ledger, queueSize int, opts ...Option) *VendingService {
	if inventory == nil {
		inventory, _ = domain.NewInventory()
	}
	if ledger == nil {
		ledger = domain.NewLedger()
	}

	s := &VendingService{
		state:     domain.StateIdle,
		inventory: inventory,
		ledger:    ledger,
		cart:      domain.NewCart(),
		history:   domain.NewTransactionLog(),
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    zap.NewNop(),
	}
	if queueSize > 0 {
		s.settlements = make(chan domain.Transaction, queueSize)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *VendingService) InsertCoin(amount domain.Money) (CoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	if !accepts(from, InputInsertCoin) {
		return CoinResult{}, s.reject(InputInsertCoin, domain.ErrInvalidStateTransition,
			"Cannot insert coin in %s state", from)
	}
	if err := s.ledger.Credit(amount); err != nil {
		return CoinResult{}, s.reject(InputInsertCoin, domain.ErrInvalidDenomination,
			"Invalid coin %s. Accepted: %s", amount.Dollars(), s.acceptedList())
	}

	to := from
	if from == domain.StateIdle {
		to = domain.StateCoinInserted
	}
	balance := s.ledger.Balance()
	msg := s.advance(from, InputInsertCoin, to, amount.Dollars(), balance.Dollars())

	return CoinResult{Message: msg, Inserted: amount, Balance: balance, Status: s.status()}, nil
}

func (s *VendingService) SelectItem(itemID string) (SelectResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	if !accepts(from, InputSelectItem) {
		if from == domain.StateIdle {
			return SelectResult{}, s.reject(InputSelectItem, domain.ErrInvalidStateTransition, "Please insert coins first")
		}
		return SelectResult{}, s.reject(InputSelectItem, domain.ErrInvalidStateTransition,
			"Cannot select an item in %s state", from)
	}

	item, err := s.inventory.GetItem(itemID)
	if err != nil {
		return SelectResult{}, s.reject(InputSelectItem, domain.ErrItemNotFound, "Item %s not found", itemID)
	}

	if !s.inventory.HasStock(itemID) {
		msg := s.advance(from, InputSelectItem, domain.StateOutOfStock, item.Name)
		s.logger.Info("item unavailable", zap.String("item_id", itemID), zap.Int("stock", item.Stock))
		return SelectResult{Message: msg, Item: item, Available: false, Status: s.status()}, nil
	}

	s.cart.Add(itemID)
	s.selected = itemID
	msg := s.advance(from, InputSelectItem, domain.StateItemSelected, item.Name)

	return SelectResult{Message: msg, Item: item, Available: true, Status: s.status()}, nil
}

// Purchase settles the cart. Stock decrement, balance reset, cart clear and
// the history append are applied together or not at all.
func (s *VendingService) Purchase() (PurchaseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	if !accepts(from, InputPurchase) {
		return PurchaseResult{}, s.reject(InputPurchase, domain.ErrInvalidStateTransition, "No item ready for dispensing")
	}

	ids := s.cart.Items()
	if len(ids) == 0 {
		return PurchaseResult{}, s.reject(InputPurchase, domain.ErrInvalidStateTransition, "Cart is empty")
	}

	total, err := s.cart.Total(s.inventory)
	if err != nil {
		return PurchaseResult{}, s.reject(InputPurchase, domain.ErrItemNotFound, "Cart references an unknown item")
	}
	balance := s.ledger.Balance()
	if balance < total {
		return PurchaseResult{}, s.reject(InputPurchase, domain.ErrInsufficientBalance,
			"Insufficient balance. Need %s, have %s", total.Dollars(), balance.Dollars())
	}
	if err := s.ledger.CanDebit(total); err != nil {
		s.logger.Error("settlement debit refused", zap.Error(err))
		return PurchaseResult{}, s.reject(InputPurchase, domain.ErrUnderflow, "Payment could not be processed")
	}

	need := make(map[string]int, len(ids))
	items := make([]domain.ItemSnapshot, 0, len(ids))
	for _, id := range ids {
		item, err := s.inventory.GetItem(id)
		if err != nil {
			return PurchaseResult{}, s.reject(InputPurchase, domain.ErrItemNotFound, "Item %s not found", id)
		}
		need[id]++
		if item.Stock < need[id] {
			return PurchaseResult{}, s.reject(InputPurchase, domain.ErrStockChanged,
				"%s is no longer in stock", item.Name)
		}
		items = append(items, item.Snapshot())
	}

	if err := s.inventory.DecrementAll(ids); err != nil {
		return PurchaseResult{}, s.reject(InputPurchase, domain.ErrStockChanged, "Stock changed during transaction")
	}
	if err := s.ledger.Debit(total); err != nil {
		panic(fmt.Sprintf("vending: debit of %s failed after CanDebit: %v", total, err))
	}
	change := s.ledger.ResetToZero()
	s.cart.Clear()
	s.selected = ""

	tx := domain.Transaction{
		ID:         s.newID(),
		Timestamp:  s.now(),
		Items:      items,
		TotalPrice: total,
		Change:     change,
	}
	s.history.Append(tx)

	msg := s.advance(from, InputPurchase, domain.StateDispensing, len(items), change.Dollars())
	s.advance(domain.StateDispensing, InputComplete, domain.StateIdle)
	s.publish(tx)

	s.logger.Info("purchase settled",
		zap.String("transaction_id", tx.ID),
		zap.Int("items", len(items)),
		zap.Stringer("total", total),
		zap.Stringer("change", change))

	return PurchaseResult{Message: msg, Change: change, Transaction: tx, Status: s.status()}, nil
}

func (s *VendingService) Refund() (RefundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	if !accepts(from, InputRefund) {
		return RefundResult{}, s.reject(InputRefund, domain.ErrInvalidStateTransition, "No active transaction to refund")
	}

	amount := s.ledger.ResetToZero()
	s.cart.Clear()
	s.selected = ""

	msg := s.advance(from, InputRefund, domain.StateRefund, amount.Dollars())
	s.advance(domain.StateRefund, InputComplete, domain.StateIdle)

	s.logger.Info("balance refunded", zap.Stringer("amount", amount), zap.Stringer("from", from))

	return RefundResult{Message: msg, Amount: amount, Status: s.status()}, nil
}

// Reset forces the machine back to Idle from any state. Inventory and
// history are left untouched.
func (s *VendingService) Reset() ResetResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	discarded := s.ledger.ResetToZero()
	s.cart.Clear()
	s.selected = ""
	s.state = domain.StateIdle

	if discarded > 0 {
		s.logger.Warn("reset discarded balance", zap.Stringer("amount", discarded), zap.Stringer("from", from))
	} else {
		s.logger.Debug("machine reset", zap.Stringer("from", from))
	}

	return ResetResult{Message: "Vending machine reset to idle state", Status: s.status()}
}

func (s *VendingService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status()
}

func (s *VendingService) ListItems() []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory.ListItems()
}

func (s *VendingService) GetItem(itemID string) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.inventory.GetItem(itemID)
	if err != nil {
		return domain.Item{}, domain.NewMachineError(domain.ErrItemNotFound, "Item %s not found", itemID)
	}
	return item, nil
}

// History returns completed purchases, oldest first.
func (s *VendingService) History() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.List()
}

func (s *VendingService) Denominations() []domain.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Denominations()
}

// Restock adds units to an item. It is the only operation that raises stock.
func (s *VendingService) Restock(itemID string, quantity int) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.inventory.Restock(itemID, quantity); err != nil {
		return domain.Item{}, err
	}
	item, _ := s.inventory.GetItem(itemID)
	s.logger.Info("item restocked", zap.String("item_id", itemID), zap.Int("quantity", quantity), zap.Int("stock", item.Stock))
	return item, nil
}

func (s *VendingService) SetPrice(itemID string, price domain.Money) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.inventory.SetPrice(itemID, price); err != nil {
		return domain.Item{}, err
	}
	item, _ := s.inventory.GetItem(itemID)
	s.logger.Info("item repriced", zap.String("item_id", itemID), zap.Stringer("price", price))
	return item, nil
}

// ClaimRequest records an idempotency key. It returns ErrDuplicateRequest
// when the key was already claimed, and nil when no cache is configured.
func (s *VendingService) ClaimRequest(ctx context.Context, key string) error {
	if s.requests == nil || key == "" {
		return nil
	}

	ok, err := s.requests.SetIdempotency(ctx, requestKeyPrefix+key)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return ErrDuplicateRequest
	}
	return nil
}

// Settlements returns the queue of settled transactions, or nil when
// publishing is disabled.
func (s *VendingService) Settlements() <-chan domain.Transaction {
	return s.settlements
}

func (s *VendingService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if s.settlements != nil {
		close(s.settlements)
	}
}

func (s *VendingService) publish(tx domain.Transaction) {
	if s.settlements == nil || s.closed {
		return
	}
	select {
	case s.settlements <- tx:
	default:
		s.logger.Warn("settlement queue full, transaction not archived", zap.String("transaction_id", tx.ID))
	}
}

// advance takes the edge from --in--> to and returns its output.
func (s *VendingService) advance(from domain.MachineState, in Input, to domain.MachineState, args ...any) string {
	r, ok := lookup(from, in, to)
	if !ok {
		panic(fmt.Sprintf("vending: no transition %s --%s--> %s", from, in, to))
	}
	s.state = to
	s.logger.Debug("transition", zap.Stringer("from", from), zap.Stringer("input", in), zap.Stringer("to", to))
	return fmt.Sprintf(r.output, args...)
}

func (s *VendingService) reject(in Input, kind error, format string, args ...any) error {
	err := domain.NewMachineError(kind, format, args...)
	err.State = s.state
	s.logger.Debug("input rejected",
		zap.Stringer("state", s.state),
		zap.Stringer("input", in),
		zap.String("kind", domain.KindName(err)),
		zap.String("reason", err.Message))
	return err
}

func (s *VendingService) status() Status {
	st := Status{
		State:            s.state,
		Balance:          s.ledger.Balance(),
		Cart:             s.cart.Items(),
		CartCount:        s.cart.Len(),
		AvailableActions: availableActions(s.state),
	}
	if s.selected != "" {
		selected := s.selected
		st.SelectedItem = &selected
	}
	return st
}

func (s *VendingService) acceptedList() string {
	denoms := s.ledger.Denominations()
	parts := make([]string, len(denoms))
	for i, d := range denoms {
		parts[i] = d.Dollars()
	}
	return strings.Join(parts, ", ")
}
