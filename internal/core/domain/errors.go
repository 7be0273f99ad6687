package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDenomination    = errors.New("invalid denomination")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrItemNotFound           = errors.New("item not found")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrStockChanged           = errors.New("stock changed during transaction")
	ErrUnderflow              = errors.New("balance underflow")

	ErrOutOfStock    = errors.New("out of stock")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidItem   = errors.New("invalid item")
)

// MachineError is a rejected controller input. Message is meant for the
// person at the machine; Kind is one of the sentinel errors above. State is
// the machine state at the moment of rejection, when known.
type MachineError struct {
	Kind    error
	Message string
	State   MachineState
}

func NewMachineError(kind error, format string, args ...any) *MachineError {
	return &MachineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *MachineError) Error() string {
	return e.Message
}

func (e *MachineError) Unwrap() error {
	return e.Kind
}

var kindNames = []struct {
	kind error
	name string
}{
	{ErrInvalidDenomination, "InvalidDenomination"},
	{ErrInvalidStateTransition, "InvalidStateTransition"},
	{ErrItemNotFound, "ItemNotFound"},
	{ErrInsufficientBalance, "InsufficientBalance"},
	{ErrStockChanged, "StockChangedDuringTransaction"},
	{ErrUnderflow, "Underflow"},
	{ErrOutOfStock, "OutOfStock"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInvalidItem, "InvalidItem"},
}

// KindName returns the wire name of the error kind wrapped by err, or
// "Internal" when err carries none of the known kinds.
func KindName(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "Internal"
}
