package domain

import "fmt"

// MachineState is the closed set of controller states. The zero value is
// StateIdle, the resting state the machine returns to after every cycle.
type MachineState uint8

const (
	StateIdle MachineState = iota
	StateCoinInserted
	StateItemSelected
	StateDispensing
	StateOutOfStock
	StateRefund
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateCoinInserted: "coin_inserted",
	StateItemSelected: "item_selected",
	StateDispensing:   "dispensing",
	StateOutOfStock:   "out_of_stock",
	StateRefund:       "refund",
}

// AllStates lists every state in declaration order.
func AllStates() []MachineState {
	return []MachineState{StateIdle, StateCoinInserted, StateItemSelected, StateDispensing, StateOutOfStock, StateRefund}
}

func (s MachineState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

func (s MachineState) Valid() bool {
	return int(s) < len(stateNames)
}

func ParseMachineState(name string) (MachineState, error) {
	for i, n := range stateNames {
		if n == name {
			return MachineState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown machine state %q", name)
}

func (s MachineState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid machine state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *MachineState) UnmarshalText(b []byte) error {
	parsed, err := ParseMachineState(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
