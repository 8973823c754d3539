// Package refindex maps training samples to the clusters they were assigned
// to, and answers "which samples share cluster c" in training order.
//
// Lookup never ranks samples within a cluster; results come back in the
// order the samples were added.
package refindex

import (
	"errors"
	"fmt"
)

var (
	// ErrLengthMismatch is returned by Build when ids and clusters differ in
	// length.
	ErrLengthMismatch = errors.New("refindex: ids and clusters differ in length")

	// ErrFormat is returned for malformed reference tables.
	ErrFormat = errors.New("refindex: malformed reference table")
)

// Entry pairs a sample identifier with its cluster id.
type Entry struct {
	ID      string `msgpack:"id" json:"filename"`
	Cluster int    `msgpack:"cluster" json:"cluster"`
}

// Index is an ordered, read-only list of entries.
type Index struct {
	entries []Entry
	byID    map[string]int
}

// Build pairs ids[i] with clusters[i], preserving order.
func Build(ids []string, clusters []int) (*Index, error) {
	if len(ids) != len(clusters) {
		return nil, fmt.Errorf("%w: %d ids, %d clusters", ErrLengthMismatch, len(ids), len(clusters))
	}
	entries := make([]Entry, len(ids))
	for i := range ids {
		entries[i] = Entry{ID: ids[i], Cluster: clusters[i]}
	}
	return FromEntries(entries), nil
}

// FromEntries builds an Index over a copy of entries.
func FromEntries(entries []Entry) *Index {
	idx := &Index{
		entries: append([]Entry(nil), entries...),
		byID:    make(map[string]int, len(entries)),
	}
	for i, e := range idx.entries {
		if _, dup := idx.byID[e.ID]; !dup {
			idx.byID[e.ID] = i
		}
	}
	return idx
}

// Len returns the number of entries.
func (x *Index) Len() int { return len(x.entries) }

// Entries returns a copy of all entries in insertion order.
func (x *Index) Entries() []Entry { return append([]Entry(nil), x.entries...) }

// Lookup returns up to limit ids assigned to cluster, in insertion order.
// A limit <= 0 returns all of them. Unknown clusters yield an empty slice.
func (x *Index) Lookup(cluster, limit int) []string {
	out := []string{}
	for _, e := range x.entries {
		if e.Cluster != cluster {
			continue
		}
		out = append(out, e.ID)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ClusterOf returns the cluster recorded for id. Duplicate ids report the
// first occurrence.
func (x *Index) ClusterOf(id string) (int, bool) {
	i, ok := x.byID[id]
	if !ok {
		return 0, false
	}
	return x.entries[i].Cluster, true
}

// MaxCluster returns the largest cluster id, or -1 for an empty index.
func (x *Index) MaxCluster() int {
	maxID := -1
	for _, e := range x.entries {
		maxID = max(maxID, e.Cluster)
	}
	return maxID
}

// MinCluster returns the smallest cluster id, or 0 for an empty index.
func (x *Index) MinCluster() int {
	if len(x.entries) == 0 {
		return 0
	}
	minID := x.entries[0].Cluster
	for _, e := range x.entries[1:] {
		minID = min(minID, e.Cluster)
	}
	return minID
}

// Counts returns the number of entries per cluster for clusters 0..k-1.
// Entries outside that range are ignored.
func (x *Index) Counts(k int) []int {
	counts := make([]int, max(k, 0))
	for _, e := range x.entries {
		if e.Cluster >= 0 && e.Cluster < k {
			counts[e.Cluster]++
		}
	}
	return counts
}

// Validate checks that every cluster id lies in [0, k).
func (x *Index) Validate(k int) error {
	for i, e := range x.entries {
		if e.Cluster < 0 || e.Cluster >= k {
			return fmt.Errorf("refindex: entry %d (%s) has cluster %d outside [0, %d)", i, e.ID, e.Cluster, k)
		}
	}
	return nil
}
