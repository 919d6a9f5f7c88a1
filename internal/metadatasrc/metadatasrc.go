// Package metadatasrc fetches the kde-projects metadata repository
// (dependency-data files, per-project metadata.yaml) that
// internal/kdeprojects and internal/depgraph consume, retrying with
// backoff and falling back to whatever is already on disk if every
// attempt fails.
package metadatasrc

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/hashicorp/go-getter"

	"github.com/kdebuilder/kdebuilder/internal/kdeerr"
)

// Fetcher fetches a URL-or-path source into dst, kept as an interface
// so tests and --pretend runs can substitute a no-op.
type Fetcher interface {
	Fetch(ctx context.Context, src, dst string) error
}

// GetterFetcher is the real implementation, backed by go-getter's
// Detector-based client (handles plain paths, git URLs, and http(s)
// tarballs uniformly).
type GetterFetcher struct{}

func (GetterFetcher) Fetch(ctx context.Context, src, dst string) error {
	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		return kdeerr.Wrap(err, "fetching metadata source "+src)
	}
	return nil
}

// Options configures an Update.
type Options struct {
	MaxElapsed time.Duration // zero means backoff.DefaultMaxElapsedTime
}

// Update fetches src into dst, retrying transient failures with
// exponential backoff. If every attempt fails and dst already has
// usable content (checked by the caller-supplied hasLocalCopy), the
// failure is swallowed and Update returns (false, nil) — recovered
// locally. A fetch failure with no local copy available is
// fatal and returned as a Runtime error.
func Update(ctx context.Context, f Fetcher, src, dst string, hasLocalCopy func() bool, opts Options) (fetched bool, err error) {
	b := backoff.NewExponentialBackOff()
	if opts.MaxElapsed > 0 {
		b.MaxElapsedTime = opts.MaxElapsed
	}

	op := func() error {
		return f.Fetch(ctx, src, dst)
	}

	fetchErr := backoff.Retry(op, b)
	if fetchErr == nil {
		return true, nil
	}

	if hasLocalCopy != nil && hasLocalCopy() {
		return false, nil
	}
	return false, kdeerr.Wrap(fetchErr, "metadata source unavailable and no local copy exists: "+src)
}
