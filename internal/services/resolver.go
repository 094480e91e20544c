package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/epeers/datamart/internal/cache"
	derr "github.com/epeers/datamart/internal/errors"
	"github.com/epeers/datamart/internal/repository"
	"github.com/epeers/datamart/internal/util"
)

// symbolPattern is the canonical form symbols are normalized into before
// lookup: upper-case ticker, optional class/share suffixes.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,11}$`)

// Resolver maps natural keys (symbol, timestamp) to surrogate dimension IDs.
// All concurrency safety comes from the store's uniqueness constraints plus
// the repository's conditional upserts; the resolver holds no lock across a
// store round-trip.
type Resolver struct {
	dimRepo *repository.DimensionRepository
	cache   *cache.ResolutionCache
}

// NewResolver creates a new Resolver
func NewResolver(dimRepo *repository.DimensionRepository, c *cache.ResolutionCache) *Resolver {
	return &Resolver{dimRepo: dimRepo, cache: c}
}

// NormalizeSymbol canonicalizes a raw symbol (trim, upper-case) and rejects
// malformed input before it can reach the store.
func NormalizeSymbol(raw string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if symbol == "" {
		return "", fmt.Errorf("%w: empty symbol", derr.ErrResolutionFailed)
	}
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("%w: malformed symbol %q", derr.ErrResolutionFailed, raw)
	}
	return symbol, nil
}

// ResolveSecurity returns the surrogate ID for a symbol, creating the
// dimension row on first reference. Concurrent calls for the same new
// symbol all return the same ID; the losing inserter re-reads rather than
// surfacing the conflict.
func (r *Resolver) ResolveSecurity(ctx context.Context, rawSymbol string) (int64, error) {
	symbol, err := NormalizeSymbol(rawSymbol)
	if err != nil {
		return 0, err
	}

	if id, ok := r.cache.GetSecurityID(symbol); ok {
		return id, nil
	}

	id, err := r.dimRepo.InsertOrFetchSecurity(ctx, symbol)
	if err != nil {
		return 0, err
	}
	r.cache.SetSecurityID(symbol, id)
	return id, nil
}

// ResolveTime returns the surrogate ID for an instant, creating the
// decomposed dim_time row on first reference. The instant is stored UTC;
// zero timestamps are rejected.
func (r *Resolver) ResolveTime(ctx context.Context, ts time.Time) (int64, error) {
	if ts.IsZero() {
		return 0, fmt.Errorf("%w: zero timestamp", derr.ErrResolutionFailed)
	}

	utc := ts.UTC()
	if id, ok := r.cache.GetTimeID(utc); ok {
		return id, nil
	}

	id, err := r.dimRepo.InsertOrFetchTime(ctx, util.DecomposeTime(ts))
	if err != nil {
		return 0, err
	}
	r.cache.SetTimeID(utc, id)
	return id, nil
}
