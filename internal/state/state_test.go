package state

import (
	"sync"
	"testing"

	"github.com/RajaShyam/JET-movie-ratings/internal/model"
)

func partition(month int, present bool) model.CatalogPartition {
	return model.CatalogPartition{
		Table:    "movie_ratings",
		Year:     2013,
		Month:    month,
		Location: "s3://bucket/out/batch_id=1/year=2013/month=9/",
		Present:  present,
	}
}

func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{"memory": NewInMemoryStore()}
	for _, kind := range []string{"pebble", "badger"} {
		st, err := Open(kind, t.TempDir())
		if err != nil {
			t.Fatalf("%s open: %v", kind, err)
		}
		t.Cleanup(func() { _ = st.Close() })
		out[kind] = st
	}
	return out
}

func TestStore_PutGetOverwrite(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok := st.Get("movie_ratings/year=2013/month=9"); ok {
				t.Fatalf("unexpected entry before put")
			}
			if err := st.Put("movie_ratings/year=2013/month=9", partition(9, true)); err != nil {
				t.Fatalf("put: %v", err)
			}
			if err := st.Put("movie_ratings/year=2013/month=9", partition(9, false)); err != nil {
				t.Fatalf("put: %v", err)
			}
			got, ok := st.Get("movie_ratings/year=2013/month=9")
			if !ok {
				t.Fatalf("missing key")
			}
			if got != partition(9, false) {
				t.Fatalf("get mismatch: %+v", got)
			}
		})
	}
}

func TestStore_LoadAllAndRange(t *testing.T) {
	for name, st := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.Put("stale/year=2000/month=1", partition(1, true)); err != nil {
				t.Fatalf("put: %v", err)
			}
			dump := map[string]model.CatalogPartition{
				"movie_ratings/year=2013/month=9":  partition(9, true),
				"movie_ratings/year=2013/month=10": partition(10, true),
				"movie_ratings/year=2013/month=11": partition(11, false),
			}
			if err := st.LoadAll(dump); err != nil {
				t.Fatalf("load: %v", err)
			}
			if _, ok := st.Get("stale/year=2000/month=1"); ok {
				t.Fatalf("LoadAll must replace existing keys")
			}

			var keys []string
			if err := st.Range(func(key string, p model.CatalogPartition) error {
				if dump[key] != p {
					t.Fatalf("range value mismatch for %s: %+v", key, p)
				}
				keys = append(keys, key)
				return nil
			}); err != nil {
				t.Fatalf("range err: %v", err)
			}
			want := []string{
				"movie_ratings/year=2013/month=10",
				"movie_ratings/year=2013/month=11",
				"movie_ratings/year=2013/month=9",
			}
			if len(keys) != len(want) {
				t.Fatalf("range keys=%v want=%v", keys, want)
			}
			for i := range want {
				if keys[i] != want[i] {
					t.Fatalf("range order=%v want=%v", keys, want)
				}
			}
		})
	}
}

func TestInMemoryStore_ConcurrentPutsDifferentKeys(t *testing.T) {
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for m := 1; m <= 12; m++ {
		m := m
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if err := s.Put(model.CatalogKey("t", model.PartitionKey{Year: 2013, Month: m}), partition(m, i%2 == 0)); err != nil {
					t.Errorf("put err: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	n := 0
	_ = s.Range(func(string, model.CatalogPartition) error { n++; return nil })
	if n != 12 {
		t.Fatalf("keys=%d want=12", n)
	}
	if p, ok := s.Get("t/year=2013/month=5"); !ok || p.Present {
		t.Fatalf("last put should win: %+v ok=%v", p, ok)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("rocksdb", t.TempDir()); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
