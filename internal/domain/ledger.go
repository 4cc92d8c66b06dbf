package domain

import "time"

// OwnerKind tags which side of the marketplace a balance belongs to.
type OwnerKind string

// List of balance owner kinds
const (
	OwnerStore   OwnerKind = "store"
	OwnerCourier OwnerKind = "courier"
)

// OwnerRef identifies a balance owner without reflection-based dispatch:
// a tagged kind plus the owner's id.
type OwnerRef struct {
	Kind OwnerKind
	ID   string
}

// Valid checks the reference carries a known kind and a non-empty id.
func (r OwnerRef) Valid() bool {
	if r.ID == "" {
		return false
	}
	return r.Kind == OwnerStore || r.Kind == OwnerCourier
}

// BalanceField selects which component of a balance a delta applies to.
// The total always follows the mutated field.
type BalanceField string

// Mutable balance fields
const (
	FieldAvailable BalanceField = "available"
	FieldPending   BalanceField = "pending"
)

// Balance is a running total per owner, in integer minor-currency units.
// Invariant at every observation point: Total == Available + Pending.
type Balance struct {
	Owner     OwnerRef
	Available int64
	Pending   int64
	Total     int64
	UpdatedAt time.Time
}

// Consistent reports whether the balance invariant holds.
func (b *Balance) Consistent() bool {
	return b.Total == b.Available+b.Pending &&
		b.Available >= 0 && b.Pending >= 0
}

// TransactionType classifies a ledger entry.
type TransactionType string

// List of transaction types
const (
	TxIncrement   TransactionType = "increment"
	TxDecrement   TransactionType = "decrement"
	TxCommission  TransactionType = "commission"
	TxDeliveryFee TransactionType = "delivery_fee"
	TxWithdrawal  TransactionType = "withdrawal"
)

// Transaction is an immutable ledger entry accompanying a balance mutation.
// Append-only; never updated or deleted.
type Transaction struct {
	ID        string
	Owner     OwnerRef
	Type      TransactionType
	Amount    int64
	Currency  string
	Status    string
	OrderID   *string
	CreatedAt time.Time
}
