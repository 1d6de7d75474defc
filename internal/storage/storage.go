// Package storage holds the durable slots the board mirrors its state into.
// A slot is a named value; the task repository keeps the whole collection in
// one slot as a JSON array.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when the slot has never been written.
var ErrNotFound = errors.New("slot not found")

type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}
