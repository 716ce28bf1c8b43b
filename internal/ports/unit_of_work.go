package ports

import "context"

// Tx is an opaque transaction handle.  The persistence layer decides the
// concrete type (*sql.Tx for MySQL).
type Tx interface{}

// UnitOfWork is a transaction boundary.  Returning an error from fn rolls
// the transaction back; returning nil commits it.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in ctx.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction stored in ctx, or nil.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
