// Package repo holds the gorm plumbing shared by the fact and run repositories.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base binds a repository to one connection or transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Table scopes DB(ctx) to a table chosen at runtime.
func (b Base) Table(ctx context.Context, name string) *gorm.DB {
	return b.DB(ctx).Table(name)
}

// Rebind returns a Base on tx, or b itself when tx is nil.
func (b Base) Rebind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}
