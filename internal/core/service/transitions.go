package service

import (
	"fmt"

	"github.com/rl1809/vending-machine/internal/core/domain"
)

// Input is an event fed to the machine.
type Input uint8

const (
	InputInsertCoin Input = iota
	InputSelectItem
	InputPurchase
	InputRefund
	// InputComplete is raised by the machine itself to leave the
	// Dispensing and Refund states.
	InputComplete
)

var inputNames = [...]string{
	InputInsertCoin: "insert_coin",
	InputSelectItem: "select_item",
	InputPurchase:   "purchase",
	InputRefund:     "refund",
	InputComplete:   "complete",
}

func (in Input) String() string {
	if int(in) < len(inputNames) {
		return inputNames[in]
	}
	return fmt.Sprintf("input(%d)", uint8(in))
}

// rule is one edge of the Mealy machine. output is a format string for the
// message produced when the edge is taken; its verbs depend on the input.
type rule struct {
	from   domain.MachineState
	input  Input
	to     domain.MachineState
	output string
}

// mealyTable is the complete transition relation. Any (state, input) pair not
// listed here is rejected with ErrInvalidStateTransition. Reset is handled
// outside the table since it is accepted from every state.
var mealyTable = []rule{
	{domain.StateIdle, InputInsertCoin, domain.StateCoinInserted, "Coin accepted. %s inserted, balance %s"},

	{domain.StateCoinInserted, InputInsertCoin, domain.StateCoinInserted, "Balance updated. %s inserted, balance %s"},
	{domain.StateCoinInserted, InputSelectItem, domain.StateItemSelected, "%s added to cart"},
	{domain.StateCoinInserted, InputSelectItem, domain.StateOutOfStock, "%s is out of stock"},
	{domain.StateCoinInserted, InputRefund, domain.StateRefund, "Refunded %s"},

	{domain.StateItemSelected, InputInsertCoin, domain.StateItemSelected, "Balance updated. %s inserted, balance %s"},
	{domain.StateItemSelected, InputSelectItem, domain.StateItemSelected, "%s added to cart"},
	{domain.StateItemSelected, InputSelectItem, domain.StateOutOfStock, "%s is out of stock"},
	{domain.StateItemSelected, InputPurchase, domain.StateDispensing, "%d item(s) dispensed, change %s"},
	{domain.StateItemSelected, InputRefund, domain.StateRefund, "Refunded %s, cart cleared"},

	{domain.StateDispensing, InputComplete, domain.StateIdle, "Transaction complete. Enjoy!"},

	{domain.StateOutOfStock, InputRefund, domain.StateRefund, "Refunded %s"},

	{domain.StateRefund, InputComplete, domain.StateIdle, "Refund complete. Thank you!"},
}

func accepts(from domain.MachineState, in Input) bool {
	for _, r := range mealyTable {
		if r.from == from && r.input == in {
			return true
		}
	}
	return false
}

func lookup(from domain.MachineState, in Input, to domain.MachineState) (rule, bool) {
	for _, r := range mealyTable {
		if r.from == from && r.input == in && r.to == to {
			return r, true
		}
	}
	return rule{}, false
}

// availableActions lists the external inputs accepted in state, in table
// order, followed by reset.
func availableActions(state domain.MachineState) []string {
	var actions []string
	seen := make(map[Input]bool)
	for _, r := range mealyTable {
		if r.from != state || r.input == InputComplete || seen[r.input] {
			continue
		}
		seen[r.input] = true
		actions = append(actions, r.input.String())
	}
	return append(actions, "reset")
}
