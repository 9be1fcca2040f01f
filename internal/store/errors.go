package store

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// Errors.
var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// translateError maps driver errors onto the package sentinels so callers
// never import the mongo driver for error checks.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}
