// Package eligibility answers whether a requester may mint, by looking the
// identity up in the record store. Read-only; it never writes.
package eligibility

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/mikelord007/Atrium-mint/internal/records"
)

// ErrEmptyIdentity is returned before any store call when the identity is blank.
var ErrEmptyIdentity = errors.New("identity is required")

// Result distinguishes the two normal outcomes of a lookup. NotFound is not
// an error; it is Found=false.
type Result struct {
	Found  bool
	Record records.Record
}

type Resolver struct {
	store records.Store
	group singleflight.Group
}

func NewResolver(store records.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks the identity up after normalization. Store failures pass
// through typed so callers can tell retryable transport errors from
// authorization or malformed-response failures. Concurrent resolutions for
// the same identity are collapsed into one store call. The shared call runs
// detached from whichever caller happened to initiate it; each caller waits
// under its own context, so one caller hanging up cannot fail the others.
func (r *Resolver) Resolve(ctx context.Context, identity string) (Result, error) {
	normalized := records.NormalizeIdentity(identity)
	if normalized == "" {
		return Result{}, ErrEmptyIdentity
	}

	lookupCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(normalized, func() (interface{}, error) {
		rec, err := r.store.Lookup(lookupCtx, normalized)
		if err != nil {
			return nil, err
		}
		return *rec, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, records.ErrNotFound) {
				return Result{Found: false}, nil
			}
			return Result{}, res.Err
		}
		return Result{Found: true, Record: res.Val.(records.Record)}, nil
	}
}
