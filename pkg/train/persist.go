package train

import (
	"context"
	"errors"
	"fmt"

	"github.com/haivivi/accent/pkg/accent"
	"github.com/haivivi/accent/pkg/artifact"
	"github.com/haivivi/accent/pkg/kv"
	"github.com/haivivi/accent/pkg/storage"
)

// Persist writes res as a matched artifact pair and returns the stored
// model. When mirror is non-nil the reference table is also written to it
// under the model's run id.
func Persist(ctx context.Context, store storage.FileStore, paths artifact.Paths, res *Result, mirror kv.Store) (*artifact.Model, error) {
	if res == nil || res.Model == nil || res.Index == nil {
		return nil, errors.New("train: nothing to persist")
	}
	m := artifact.NewModel(res.Model, accent.Spec(), res.Seed, len(res.Files))
	pair := artifact.Pair{Model: m, Index: res.Index}
	if err := artifact.Save(ctx, store, paths, pair); err != nil {
		return nil, err
	}
	if mirror != nil {
		if err := res.Index.SaveKV(ctx, mirror, m.RunID); err != nil {
			return nil, fmt.Errorf("mirror reference table: %w", err)
		}
	}
	return m, nil
}
