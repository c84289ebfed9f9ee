package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/RajaShyam/JET-movie-ratings/internal/model"
	"github.com/RajaShyam/JET-movie-ratings/internal/state"
)

// StoreCatalog keeps partitions in a key/value state store. Dropped entries
// stay as tombstones with Present=false.
type StoreCatalog struct {
	mu sync.Mutex
	st state.Store
}

func NewStoreCatalog(st state.Store) *StoreCatalog {
	return &StoreCatalog{st: st}
}

// State exposes the backing store for snapshot and restore.
func (c *StoreCatalog) State() state.Store { return c.st }

func (c *StoreCatalog) DropPartitionIfExists(ctx context.Context, table string, key model.PartitionKey) error {
	if err := ctx.Err(); err != nil {
		return Error.Wrap(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := model.CatalogKey(table, key)
	cur, ok := c.st.Get(k)
	if !ok || !cur.Present {
		return nil
	}
	cur.Present = false
	return Error.Wrap(c.st.Put(k, cur))
}

func (c *StoreCatalog) AddPartition(ctx context.Context, table string, key model.PartitionKey, location string) error {
	if err := ctx.Err(); err != nil {
		return Error.Wrap(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := model.CatalogKey(table, key)
	if cur, ok := c.st.Get(k); ok && cur.Present {
		return nil
	}
	return Error.Wrap(c.st.Put(k, model.CatalogPartition{
		Table:    table,
		Year:     key.Year,
		Month:    key.Month,
		Location: location,
		Present:  true,
	}))
}

func (c *StoreCatalog) Partitions(ctx context.Context, table string) ([]model.CatalogPartition, error) {
	prefix := table + "/"
	var out []model.CatalogPartition
	err := c.st.Range(func(key string, p model.CatalogPartition) error {
		if strings.HasPrefix(key, prefix) && p.Present {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out, nil
}

func (c *StoreCatalog) Close() error { return Error.Wrap(c.st.Close()) }
