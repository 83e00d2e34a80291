package persistence

import (
	"context"

	"github.com/erp/thaitax/internal/domain/shared"
	"gorm.io/gorm"
)

type txKey struct{}

// txScope is the transaction carried on the context. root is shared by every
// nested scope of one outer transaction.
type txScope struct {
	db   *gorm.DB
	root *txRoot
}

type txRoot struct {
	hooks []func(ctx context.Context)
}

// GormTransactor implements shared.Transactor on top of GORM. Nested calls
// become savepoints; hooks registered inside a rolled-back savepoint are
// discarded with it.
type GormTransactor struct {
	db *gorm.DB
}

var _ shared.Transactor = (*GormTransactor)(nil)

// NewGormTransactor creates a new transactor
func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

// WithinTransaction runs fn in a transaction, or in a savepoint of the
// transaction already on ctx
func (t *GormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if scope, ok := ctx.Value(txKey{}).(*txScope); ok {
		mark := len(scope.root.hooks)
		err := scope.db.Transaction(func(tx *gorm.DB) error {
			return fn(context.WithValue(ctx, txKey{}, &txScope{db: tx, root: scope.root}))
		})
		if err != nil {
			scope.root.hooks = scope.root.hooks[:mark]
		}
		return err
	}

	root := &txRoot{}
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, &txScope{db: tx, root: root}))
	})
	if err != nil {
		return err
	}
	for _, hook := range root.hooks {
		hook(ctx)
	}
	return nil
}

// AfterCommit defers fn until the outermost transaction commits
func (t *GormTransactor) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if scope, ok := ctx.Value(txKey{}).(*txScope); ok {
		scope.root.hooks = append(scope.root.hooks, fn)
		return
	}
	fn(ctx)
}

// conn returns the transaction on ctx, or db when there is none
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if scope, ok := ctx.Value(txKey{}).(*txScope); ok {
		return scope.db.WithContext(ctx)
	}
	return db.WithContext(ctx)
}
