// Command edgetill-loadtest measures scan and validation throughput of
// an engine backed by an in-memory sqlite store and a miniredis session
// vault. No external services are required.
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	edgetill "github.com/edgetill/edgetill"
)

func main() {
	var (
		barcodes    = flag.Int("barcodes", 10000, "number of distinct barcodes to scan")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (scan + validate)")
	)
	flag.Parse()

	if *barcodes <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "barcodes, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
		os.Exit(1)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		fmt.Fprintf(os.Stderr, "key generation failed: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig(key)

	engine, err := edgetill.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStorePath(":memory:").
		WithIdentityProvider(identityStub{}).
		WithAuthority(authorityStub{}).
		WithPublisher(ledgerStub{}).
		WithConnectivity(edgetill.StaticProbe(true)).
		Build(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	if _, err := engine.Login(ctx, edgetill.Credentials{Account: "bench", Secret: "bench"}); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}

	scanStats := runPhase(*ops, *concurrency, func(r *mrand.Rand) error {
		code := fmt.Sprintf("code-%d", r.Intn(*barcodes))
		_, err := engine.RecordScan(ctx, code)
		return err
	})

	validateStats := runPhase(*ops, *concurrency, func(_ *mrand.Rand) error {
		verdict, err := engine.ValidateSession(ctx)
		if err == nil && !verdict.Valid {
			return fmt.Errorf("session invalid: %s", verdict.Reason)
		}
		return err
	})

	fmt.Println("---- results ----")
	printStats("scan", scanStats)
	printStats("validate", validateStats)

	snapshot := engine.MetricsSnapshot()
	fmt.Printf("scans recorded: %d (placeholders %d)\n",
		snapshot.Counters[edgetill.MetricScanRecorded],
		snapshot.Counters[edgetill.MetricScanPlaceholder])
}

func loadConfig(key []byte) edgetill.Config {
	var cfg edgetill.Config
	cfg.Session.VaultKey = key
	cfg.Session.DefaultTTL = time.Hour
	cfg.Session.RefreshInterval = time.Hour
	cfg.Session.RedisPrefix = "bench"
	cfg.Business.BusinessID = "biz-bench"
	cfg.Sync.MaxRetries = 3
	cfg.Sync.Interval = time.Hour
	cfg.Sync.BackoffBase = time.Second
	cfg.Sync.BackoffMax = time.Minute
	cfg.Remote.Timeout = 5 * time.Second
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

type phaseStats struct {
	total     time.Duration
	failures  int64
	latencies []time.Duration
}

func runPhase(ops, concurrency int, op func(*mrand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}

				opStart := time.Now()
				err := op(r)
				elapsed := time.Since(opStart)

				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	return phaseStats{
		total:     time.Since(start),
		failures:  failures,
		latencies: latencies,
	}
}

func printStats(name string, stats phaseStats) {
	ops := len(stats.latencies)
	fmt.Printf("%s: %d ops in %s (%.0f ops/sec), %d failures\n",
		name, ops, stats.total.Round(time.Millisecond),
		float64(ops)/stats.total.Seconds(), stats.failures)
	if ops == 0 {
		return
	}

	sorted := append([]time.Duration(nil), stats.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	fmt.Printf("  p50=%s p95=%s p99=%s max=%s\n",
		percentile(sorted, 0.50),
		percentile(sorted, 0.95),
		percentile(sorted, 0.99),
		sorted[len(sorted)-1])
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * q)
	return sorted[idx]
}

type identityStub struct{}

func (identityStub) Login(_ context.Context, creds edgetill.Credentials) (edgetill.Identity, error) {
	return edgetill.Identity{
		AccountID:       "acct-" + creds.Account,
		ExternalAddress: "addr-" + creds.Account,
		Token:           "bench-token",
		ExpiresAt:       time.Now().Add(time.Hour),
	}, nil
}

func (identityStub) Refresh(_ context.Context, token string) (string, error) {
	return token, nil
}

type authorityStub struct{}

func (authorityStub) GetRole(_ context.Context, _ string) (edgetill.Role, error) {
	return edgetill.RoleOperator, nil
}

func (authorityStub) CheckPermission(_ context.Context, _, _ string, _ edgetill.Action) (bool, error) {
	return true, nil
}

type ledgerStub struct{}

func (ledgerStub) Publish(_ context.Context, payload []byte) (string, error) {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
