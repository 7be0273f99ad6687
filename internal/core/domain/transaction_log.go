package domain

// TransactionLog is the append-only record of completed purchases, oldest first.
type TransactionLog struct {
	entries []Transaction
}

func NewTransactionLog() *TransactionLog {
	return &TransactionLog{}
}

func (l *TransactionLog) Append(tx Transaction) {
	l.entries = append(l.entries, tx)
}

func (l *TransactionLog) List() []Transaction {
	out := make([]Transaction, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *TransactionLog) Len() int {
	return len(l.entries)
}
