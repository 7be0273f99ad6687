package domain

import (
	"fmt"
	"sort"
)

// DefaultDenominations are the coins and notes accepted when none are configured.
var DefaultDenominations = []Money{25, 50, 100, 200}

// Ledger holds the customer's running balance.
type Ledger struct {
	balance  Money
	accepted map[Money]struct{}
}

func NewLedger(denominations ...Money) *Ledger {
	if len(denominations) == 0 {
		denominations = DefaultDenominations
	}
	accepted := make(map[Money]struct{}, len(denominations))
	for _, d := range denominations {
		accepted[d] = struct{}{}
	}
	return &Ledger{accepted: accepted}
}

func (l *Ledger) IsAccepted(amount Money) bool {
	_, ok := l.accepted[amount]
	return ok
}

func (l *Ledger) Denominations() []Money {
	out := make([]Money, 0, len(l.accepted))
	for d := range l.accepted {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (l *Ledger) Credit(amount Money) error {
	if !l.IsAccepted(amount) {
		return fmt.Errorf("%w: %s", ErrInvalidDenomination, amount)
	}
	l.balance += amount
	return nil
}

func (l *Ledger) Balance() Money {
	return l.balance
}

// CanDebit reports whether Debit(amount) would succeed, without touching the
// balance.
func (l *Ledger) CanDebit(amount Money) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative debit %s", ErrInvalidAmount, amount)
	}
	if amount > l.balance {
		return fmt.Errorf("%w: debit %s exceeds balance %s", ErrUnderflow, amount, l.balance)
	}
	return nil
}

func (l *Ledger) Debit(amount Money) error {
	if err := l.CanDebit(amount); err != nil {
		return err
	}
	l.balance -= amount
	return nil
}

// ResetToZero empties the balance and returns what it held.
func (l *Ledger) ResetToZero() Money {
	prev := l.balance
	l.balance = 0
	return prev
}
