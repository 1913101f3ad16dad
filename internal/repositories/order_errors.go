package repositories

import "errors"

// ErrDepositInvariant indicates a write would persist a deposit above the
// order total. The invariant is enforced at the repository boundary so no
// caller can store an overpaid order.
var ErrDepositInvariant = errors.New("orders: deposit exceeds total")
