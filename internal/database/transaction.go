package database

import (
	"fmt"

	"gorm.io/gorm"
)

// Transaction wraps a *gorm.DB transaction with idempotent Commit/Rollback.
type Transaction struct {
	tx       *gorm.DB
	finished bool
}

// NewTransaction begins a transaction on db.
func NewTransaction(db *gorm.DB) (*Transaction, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Transaction{tx: tx}, nil
}

// DB returns the underlying transactional handle for use by repositories.
func (t *Transaction) DB() *gorm.DB { return t.tx }

// Commit commits the transaction. Calling Commit or Rollback a second time
// is a no-op.
func (t *Transaction) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	return t.tx.Commit().Error
}

// Rollback rolls back the transaction. Calling Commit or Rollback a second
// time is a no-op.
func (t *Transaction) Rollback() error {
	if t.finished {
		return nil
	}
	t.finished = true
	return t.tx.Rollback().Error
}

// WithTransaction runs fn inside a transaction, committing on success and
// rolling back if fn returns an error or panics.
func WithTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	t, err := NewTransaction(db)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = t.Rollback()
			panic(p)
		}
	}()
	if err := fn(t.DB()); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return t.Commit()
}

// WithTransactionResult is WithTransaction generalized to return a value
// alongside the error.
func WithTransactionResult[R any](db *gorm.DB, fn func(tx *gorm.DB) (R, error)) (R, error) {
	var result R
	err := WithTransaction(db, func(tx *gorm.DB) error {
		r, err := fn(tx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}
