// Command blogauth-loadtest drives the Redis token store and rate limiter
// with concurrent callers and reports latency and correctness counters.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OmorFaruk63/blogauth"
	"github.com/OmorFaruk63/blogauth/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		tokens      = flag.Int("tokens", 20000, "number of tokens to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "limiter operations")
		keys        = flag.Int("keys", 1000, "distinct limiter keys")
		limit       = flag.Int("limit", 2, "limiter budget per key and window")
		window      = flag.Duration("window", time.Minute, "limiter window")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "blogauth-lt", "key prefix")
	)
	flag.Parse()

	if *tokens <= 0 || *concurrency <= 0 || *ops <= 0 || *keys <= 0 || *limit <= 0 {
		fmt.Fprintln(os.Stderr, "tokens, concurrency, ops, keys and limit must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := redisstore.NewTokenStore(client, *prefix)
	limiter := redisstore.NewRateLimiter(client, *prefix+":rl")

	seeded := make([]blogauth.Token, *tokens)
	fmt.Printf("seeding %d tokens...\n", *tokens)
	startSeed := time.Now()
	now := time.Now()
	for i := range seeded {
		seeded[i] = blogauth.Token{
			Identifier: fmt.Sprintf("user-%d@load.test", i),
			Hash:       hashFor(i),
			ExpiresAt:  now.Add(time.Hour),
			CreatedAt:  now,
		}
		if err := store.SaveToken(ctx, seeded[i]); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	consumeStats, consumed := runConsumePhase(ctx, store, seeded, *concurrency)
	limitStats, granted := runLimiterPhase(ctx, limiter, *ops, *keys, *limit, *window, *concurrency)

	fmt.Println("---- results ----")
	printStats("consume", consumeStats)
	printStats("limiter", limitStats)

	ok := true
	if consumed != int64(len(seeded)) {
		fmt.Printf("FAIL consume: %d tokens redeemed, want exactly %d\n", consumed, len(seeded))
		ok = false
	}
	if maxGrants := int64(*keys * *limit); granted > maxGrants {
		fmt.Printf("FAIL limiter: %d grants, budget is %d\n", granted, maxGrants)
		ok = false
	}
	if !ok {
		os.Exit(1)
	}
}

// runConsumePhase presents every token twice from random workers. Exactly
// one presentation per token may succeed.
func runConsumePhase(ctx context.Context, store *redisstore.TokenStore, seeded []blogauth.Token, concurrency int) (phaseStats, int64) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		consumed  int64
		total     = 2 * len(seeded)
		latencies = make([]time.Duration, 0, total)
		mu        sync.Mutex
	)

	order := rand.Perm(total)
	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= total {
					return
				}
				tok := seeded[order[i]%len(seeded)]
				t0 := time.Now()
				_, err := store.ConsumeToken(ctx, tok.Identifier, tok.Hash)
				d := time.Since(t0)
				switch {
				case err == nil:
					atomic.AddInt64(&consumed, 1)
				case errors.Is(err, blogauth.ErrTokenNotFound):
				default:
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures), consumed
}

func runLimiterPhase(ctx context.Context, limiter *redisstore.RateLimiter, ops, keys, limit int, window time.Duration, concurrency int) (phaseStats, int64) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		granted   int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				key := fmt.Sprintf("verify:user-%d@load.test", r.Intn(keys))
				t0 := time.Now()
				ok, err := limiter.Allow(ctx, key, limit, window)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else if ok {
					atomic.AddInt64(&granted, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures), granted
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func hashFor(i int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("load-token-%d", i)))
	return hex.EncodeToString(sum[:])
}
