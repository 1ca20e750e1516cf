package cache

import (
	"context"
	"time"
)

// Generation identifies one lifetime of the cache contents. Invalidate starts
// a new generation; entries written for an older one are never read again.
type Generation int64

// ReportCache holds rendered read models such as the stock report and party
// statements. Writers call Invalidate after every committed command.
//
// Get reports the generation it looked in. A caller that missed builds the
// value and passes that generation to Set, so a value read before a
// concurrent commit cannot outlive the commit's Invalidate.
type ReportCache interface {
	Get(ctx context.Context, key string, dest any) (Generation, bool, error)
	Set(ctx context.Context, gen Generation, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string, _ any) (Generation, bool, error) {
	return 0, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ Generation, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context) error {
	return nil
}
