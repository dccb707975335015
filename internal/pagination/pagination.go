// Package pagination implements the Enumerator shared by Accounts, Entries
// and API keys (spec.md §4.5): one ordering/paging policy, applied the same
// way regardless of entity kind, stabilized by a secondary key so that
// concurrent appends never cause a row to be skipped or returned twice.
package pagination

import (
	"sort"

	"github.com/google/uuid"

	"github.com/coreledger/ledgerd/internal/errs"
	"github.com/coreledger/ledgerd/internal/storage"
)

// Sort orders items in place. Callers supply a stable comparator that
// already breaks ties by a secondary key (typically id), satisfying the
// "stabilized by (primaryKey, id)" requirement of spec.md §4.5.
func Sort[T any](items []T, less func(i, j int) bool) {
	sort.SliceStable(items, less)
}

// Slice applies skip/continuation-token paging and max-results bounding to
// an already-ordered, already-filtered slice, producing the page shape
// shared across every Enumerate call. Supplying both Skip and
// ContinuationToken is Invalid per spec.md §4.5.
func Slice[T any](items []T, page storage.Page, idOf func(T) uuid.UUID) (storage.PageResult[T], error) {
	if page.ContinuationToken != nil && page.Skip != 0 {
		return storage.PageResult[T]{}, errs.ErrInvalid
	}

	total := len(items)
	start := page.Skip
	if page.ContinuationToken != nil {
		tokenID, err := uuid.Parse(*page.ContinuationToken)
		if err != nil {
			return storage.PageResult[T]{}, errs.ErrInvalid
		}
		start = total // default: token's row is gone, scan is exhausted from here
		for i, it := range items {
			if idOf(it) == tokenID {
				start = i + 1
				break
			}
		}
	}
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}

	max := page.MaxResults
	if max <= 0 || max > 1000 {
		max = 1000
	}
	end := start + max
	if end > total {
		end = total
	}

	objects := items[start:end]
	remaining := total - end
	if remaining < 0 {
		remaining = 0
	}

	result := storage.PageResult[T]{
		TotalRecords:     total,
		Objects:          objects,
		RecordsRemaining: remaining,
		EndOfResults:     remaining == 0,
	}
	if !result.EndOfResults && len(objects) > 0 {
		lastID := idOf(objects[len(objects)-1]).String()
		result.ContinuationToken = &lastID
	}
	return result, nil
}

// ValidateMaxResults accepts 0 (meaning "use the default", as Slice does)
// and 1-1000, returning errs.ErrInvalid for a negative value or one above
// 1000 rather than silently clamping, for callers (the HTTP layer) that must
// reject an out-of-range value instead of defaulting it.
func ValidateMaxResults(maxResults int) error {
	if maxResults < 0 || maxResults > 1000 {
		return errs.ErrInvalid
	}
	return nil
}
