package refindex

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/accent/pkg/kv"
)

// keyPrefix is the kv namespace for mirrored reference tables.
const keyPrefix = "ref"

// Prefix returns the kv prefix holding the entries of one training run.
func Prefix(runID string) kv.Key {
	return kv.Key{keyPrefix, runID}
}

func entryKey(runID string, seq int) kv.Key {
	return kv.Key{keyPrefix, runID, fmt.Sprintf("%08d", seq)}
}

// SaveKV mirrors the index into store under Prefix(runID), replacing any
// previous entries for that run. Keys carry a zero-padded sequence number so
// List returns them in insertion order.
func (x *Index) SaveKV(ctx context.Context, store kv.Store, runID string) error {
	if err := store.DeletePrefix(ctx, Prefix(runID)); err != nil {
		return fmt.Errorf("refindex: clear %s: %w", Prefix(runID), err)
	}
	batch := make([]kv.Entry, len(x.entries))
	for i, e := range x.entries {
		data, err := msgpack.Marshal(e)
		if err != nil {
			return err
		}
		batch[i] = kv.Entry{Key: entryKey(runID, i), Value: data}
	}
	return store.BatchSet(ctx, batch)
}

// LoadKV reads the entries of runID back from store.
func LoadKV(ctx context.Context, store kv.Store, runID string) (*Index, error) {
	var entries []Entry
	for item, err := range store.List(ctx, Prefix(runID)) {
		if err != nil {
			return nil, err
		}
		var e Entry
		if err := msgpack.Unmarshal(item.Value, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFormat, item.Key, err)
		}
		entries = append(entries, e)
	}
	return FromEntries(entries), nil
}
