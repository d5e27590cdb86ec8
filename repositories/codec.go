package repositories

import (
	"chat-relay/errors"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Sequence bandwidth leased from badger at once. Unused ids are lost on restart.
const sequenceBandwidth = 100

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(key, data)
}

func getJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// translate maps a badger error to the relay taxonomy.
// A missing key becomes notFound, anything else a persistence failure.
func translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return notFound
	case errors.Is(err, errors.ErrNotFound), errors.Is(err, errors.ErrConflict),
		errors.Is(err, errors.ErrValidation), errors.Is(err, errors.ErrPersistence):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
}

// nextID returns the next positive id from a badger sequence (sequences start at 0).
func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("%w: sequence: %v", errors.ErrPersistence, err)
	}
	return int64(n) + 1, nil
}
