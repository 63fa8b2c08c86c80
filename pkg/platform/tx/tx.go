// Package tx threads a SQL transaction through context so stores can join
// the caller's transaction without widening every interface signature.
package tx

import (
	"context"
	"database/sql"

	dErrors "workpermit/pkg/domain-errors"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Require extracts the transaction or fails with a precondition error.
// Quota checks acquire row locks and must never run autocommit; this guard
// turns a silent race into a loud programming error.
func Require(ctx context.Context) (*sql.Tx, error) {
	t, ok := From(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodePrecondition, "must be called within a transaction")
	}
	return t, nil
}
