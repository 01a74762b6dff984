package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/idlink/internal/ir"
	"github.com/roach88/idlink/internal/store"
)

// MaxLinkHops bounds the linked_id walk from a candidate to its primary.
//
// A consistent store never needs more than one hop. The bound only matters
// for hand-edited or corrupted data, where a cyclic or very long chain is
// treated as broken.
const MaxLinkHops = 8

// Resolution is the result of resolving match candidates to primaries.
type Resolution struct {
	// Primaries holds each distinct reachable primary once,
	// in cluster order (CreatedAt, then ID).
	Primaries []ir.Contact

	// Dropped holds candidate ids whose chain was broken: a missing or
	// soft-deleted target, a cycle, or more than MaxLinkHops hops.
	Dropped []int64
}

// PrimaryIDs returns the ids of r.Primaries in order.
func (r Resolution) PrimaryIDs() []int64 {
	ids := make([]int64, len(r.Primaries))
	for i, p := range r.Primaries {
		ids[i] = p.ID
	}
	return ids
}

// Resolve finds the distinct primaries reachable from candidates.
//
// Candidates are deduplicated by id. Broken chains are not errors; the
// candidate is reported in Dropped and contributes no primary. Only store
// failures are returned as errors.
func Resolve(ctx context.Context, contacts Contacts, candidates []ir.Contact) (Resolution, error) {
	res := Resolution{Primaries: []ir.Contact{}, Dropped: []int64{}}

	var seenCandidates OrderedSet[int64]
	primaries := make(map[int64]ir.Contact)

	for _, cand := range candidates {
		if !seenCandidates.Add(cand.ID) {
			continue
		}

		primary, ok, err := walkToPrimary(ctx, contacts, cand)
		if err != nil {
			return Resolution{}, err
		}
		if !ok {
			res.Dropped = append(res.Dropped, cand.ID)
			continue
		}
		primaries[primary.ID] = primary
	}

	for _, p := range primaries {
		res.Primaries = append(res.Primaries, p)
	}
	sortClusterOrder(res.Primaries)
	return res, nil
}

// walkToPrimary follows linked_id from c. ok is false when the chain breaks.
func walkToPrimary(ctx context.Context, contacts Contacts, c ir.Contact) (ir.Contact, bool, error) {
	visited := map[int64]struct{}{c.ID: {}}
	cur := c

	for hops := 0; ; hops++ {
		if cur.IsPrimary() {
			return cur, true, nil
		}
		if cur.LinkedID == nil || hops >= MaxLinkHops {
			return ir.Contact{}, false, nil
		}

		next := *cur.LinkedID
		if _, loop := visited[next]; loop {
			return ir.Contact{}, false, nil
		}
		visited[next] = struct{}{}

		target, err := contacts.FindByID(ctx, next)
		if errors.Is(err, store.ErrNotFound) {
			return ir.Contact{}, false, nil
		}
		if err != nil {
			return ir.Contact{}, false, fmt.Errorf("resolve contact %d: %w", c.ID, err)
		}
		cur = target
	}
}

// sortClusterOrder sorts contacts by CreatedAt, then ID.
func sortClusterOrder(contacts []ir.Contact) {
	slices.SortFunc(contacts, func(a, b ir.Contact) int {
		if a.Before(b) {
			return -1
		}
		if b.Before(a) {
			return 1
		}
		return 0
	})
}
