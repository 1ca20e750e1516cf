package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

type sample struct {
	OnHand int `json:"on_hand"`
}

func TestNoopCacheNeverHits(t *testing.T) {
	var c ReportCache = NoopReportCache{}
	ctx := context.Background()
	if err := c.Set(ctx, 0, "stock", sample{OnHand: 3}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got sample
	_, hit, err := c.Get(ctx, "stock", &got)
	if err != nil || hit {
		t.Fatalf("expected miss, got hit=%t err=%v", hit, err)
	}
}

func TestRedisCacheRoundTripAndInvalidate(t *testing.T) {
	addr := os.Getenv("SHOPLEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set SHOPLEDGER_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisReportCache(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	var got sample
	gen, hit, err := c.Get(ctx, "stock", &got)
	if err != nil || hit {
		t.Fatalf("expected miss on a fresh generation, got hit=%t err=%v", hit, err)
	}
	if err := c.Set(ctx, gen, "stock", sample{OnHand: 7}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, hit, err = c.Get(ctx, "stock", &got)
	if err != nil || !hit || got.OnHand != 7 {
		t.Fatalf("expected hit with 7, got hit=%t value=%+v err=%v", hit, got, err)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, hit, err = c.Get(ctx, "stock", &got)
	if err != nil || hit {
		t.Fatalf("expected miss after invalidate, got hit=%t err=%v", hit, err)
	}
}

func TestRedisCacheDropsValueBuiltBeforeInvalidate(t *testing.T) {
	addr := os.Getenv("SHOPLEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set SHOPLEDGER_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	c := NewRedisReportCache(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })

	var got sample
	gen, hit, err := c.Get(ctx, "statement:customer:cus-1", &got)
	if err != nil || hit {
		t.Fatalf("expected miss, got hit=%t err=%v", hit, err)
	}
	// A commit lands between the miss and the write of the stale value.
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if err := c.Set(ctx, gen, "statement:customer:cus-1", sample{OnHand: 1}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, hit, err = c.Get(ctx, "statement:customer:cus-1", &got)
	if err != nil || hit {
		t.Fatalf("expected stale value to stay hidden, got hit=%t value=%+v err=%v", hit, got, err)
	}
}
