package state

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"

	"github.com/RajaShyam/JET-movie-ratings/internal/model"
)

// PebbleStore implements Store using PebbleDB.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		// Catalogs are small; keep the memtable modest.
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 8,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: d}, nil
}

func (p *PebbleStore) Close() error { return p.db.Close() }

func encodePartition(c model.CatalogPartition) ([]byte, error) { return json.Marshal(c) }
func decodePartition(val []byte) (model.CatalogPartition, error) {
	var c model.CatalogPartition
	if err := json.Unmarshal(val, &c); err != nil {
		return model.CatalogPartition{}, err
	}
	return c, nil
}

// Put writes synchronously; each catalog statement must be durable once it returns.
func (p *PebbleStore) Put(key string, c model.CatalogPartition) error {
	b, err := encodePartition(c)
	if err != nil {
		return err
	}
	return p.db.Set([]byte(key), b, pebble.Sync)
}

func (p *PebbleStore) Get(key string) (model.CatalogPartition, bool) {
	v, closer, err := p.db.Get([]byte(key))
	if err != nil {
		return model.CatalogPartition{}, false
	}
	defer closer.Close()
	c, e := decodePartition(v)
	if e != nil {
		return model.CatalogPartition{}, false
	}
	return c, true
}

func (p *PebbleStore) Range(fn func(key string, c model.CatalogPartition) error) error {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		k := append([]byte(nil), it.Key()...)
		c, err := decodePartition(it.Value())
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
		if err := fn(string(k), c); err != nil {
			return err
		}
	}
	return it.Error()
}

// LoadAll replaces all keys with the snapshot in a single batch.
func (p *PebbleStore) LoadAll(all map[string]model.CatalogPartition) error {
	it, err := p.db.NewIter(nil)
	if err != nil {
		return err
	}
	wb := p.db.NewBatch()
	defer wb.Close()
	for it.First(); it.Valid(); it.Next() {
		if err := wb.Delete(append([]byte(nil), it.Key()...), nil); err != nil {
			it.Close()
			return err
		}
	}
	if err := it.Close(); err != nil {
		return err
	}
	for k, c := range all {
		b, err := encodePartition(c)
		if err != nil {
			return err
		}
		if err := wb.Set([]byte(k), b, nil); err != nil {
			return err
		}
	}
	return wb.Commit(pebble.Sync)
}
