package store

import (
	"bytes"
	"context"

	badger "github.com/dgraph-io/badger/v2"
)

type entry struct {
	key []byte
	val []byte
}

type keepFn func(txn *badger.Txn, key []byte) bool

// page reads up to limit entries under prefix that sort after the given key.
// Each page is its own short read transaction so producers never hold one
// open while a consumer is busy.
func (s *Persister) page(prefix, after []byte, limit int, keep keepFn) ([]entry, error) {
	entries := make([]entry, 0, limit)
	err := s.Store.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: limit})
		defer it.Close()

		start := prefix
		if after != nil {
			start = after
		}

		for it.Seek(start); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if after != nil && bytes.Equal(key, after) {
				continue
			}
			if keep != nil && !keep(txn, key) {
				continue
			}

			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entries = append(entries, entry{key: key, val: val})
			if len(entries) == limit {
				break
			}
		}
		return nil
	})
	return entries, err
}

// iterate calls fn for every entry under prefix until fn returns false,
// ctx is done or the prefix is exhausted
func (s *Persister) iterate(ctx context.Context, prefix []byte, keep keepFn, fn func(e entry) bool) error {
	var after []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		entries, err := s.page(prefix, after, pageSize, keep)
		if err != nil {
			return err
		}

		for _, e := range entries {
			if !fn(e) {
				return nil
			}
		}

		if len(entries) < pageSize {
			return nil
		}
		after = entries[len(entries)-1].key
	}
}

// count keys under prefix without reading values
func (s *Persister) count(prefix []byte) (int, error) {
	count := 0
	err := s.Store.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	return err == nil, err
}
