package state

import (
	"errors"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/RajaShyam/JET-movie-ratings/internal/model"
)

// BadgerStore keeps catalog entries in BadgerDB. Badger iterates keys in
// byte order, which is the catalog key order.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(filepath.Clean(dir)).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger catalog state %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Close() error { return b.db.Close() }

func (b *BadgerStore) Put(key string, p model.CatalogPartition) error {
	val, err := encodePartition(p)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error { return txn.Set([]byte(key), val) })
}

func (b *BadgerStore) Get(key string) (model.CatalogPartition, bool) {
	var p model.CatalogPartition
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			var derr error
			p, derr = decodePartition(v)
			return derr
		})
	})
	if err != nil {
		return model.CatalogPartition{}, false
	}
	return p, true
}

func (b *BadgerStore) Range(fn func(key string, p model.CatalogPartition) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			var p model.CatalogPartition
			if err := item.Value(func(v []byte) (err error) {
				p, err = decodePartition(v)
				return err
			}); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			if err := fn(key, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadAll replaces the whole catalog state in one transaction.
func (b *BadgerStore) LoadAll(all map[string]model.CatalogPartition) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys(txn) {
			if _, keep := all[string(k)]; keep {
				continue
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for k, p := range all {
			val, err := encodePartition(p)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(k), val); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("catalog state too large for one badger transaction: %w", err)
	}
	return err
}

func keys(txn *badger.Txn) [][]byte {
	it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
	defer it.Close()
	var out [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		out = append(out, it.Item().KeyCopy(nil))
	}
	return out
}
