package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Stores that are not transactional ignore Tx.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func From(ctx context.Context) Context {
	return Context{Ctx: ctx}
}
