package repo

import (
	"context"

	"github.com/Skotchmaster/grocery_shop/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormRepo struct {
	DB *gorm.DB
}

// InTx runs fn against a repo bound to one transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (r *GormRepo) InTx(ctx context.Context, fn func(tx *GormRepo) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}

func (r *GormRepo) Migrate(ctx context.Context) error {
	return r.DB.WithContext(ctx).AutoMigrate(
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
	)
}

// forUpdate adds SELECT ... FOR UPDATE where the dialect has row locks.
// sqlite has a single writer and rejects the clause.
func (r *GormRepo) forUpdate(db *gorm.DB) *gorm.DB {
	if r.DB.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
