package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goLearn "github.com/MrEthical07/goLearn"
	"github.com/MrEthical07/goLearn/apitest"
	"github.com/MrEthical07/goLearn/tokenstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		clients     = flag.Int("clients", 50, "number of signed-in clients")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "requests per phase")
		expireEvery = flag.Duration("expire-every", 20*time.Millisecond, "access token expiry interval during the storm phase")
		refreshLag  = flag.Duration("refresh-delay", 5*time.Millisecond, "server-side delay of every refresh call")
		store       = flag.String("store", "memory", "token store backend: memory or redis")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gl-lt", "redis token key prefix")
		burst       = flag.Int("burst", 100, "concurrent requests on one client after a single expiry")
	)
	flag.Parse()

	if *clients <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "clients, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	srv := apitest.New(apitest.WithRefreshRotation())
	defer srv.Close()
	srv.SetRefreshDelay(*refreshLag)
	fmt.Printf("fake backend at %s\n", srv.URL)

	var rdb redis.UniversalClient
	if *store == "redis" {
		var cleanup func()
		rdb, cleanup = openRedis(*redisAddr)
		defer cleanup()
	}

	pool := make([]*goLearn.Client, *clients)
	fmt.Printf("signing in %d clients...\n", *clients)
	startLogin := time.Now()
	for i := range pool {
		b := goLearn.New().
			WithBaseURL(srv.URL).
			WithHTTPClient(srv.Client()).
			WithLatencyHistograms(true)
		if rdb != nil {
			b.WithTokenStore(tokenstore.NewRedis(rdb, *prefix, fmt.Sprintf("client-%d", i), 0))
		}
		c, err := b.Build()
		if err != nil {
			fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()
		if _, err := c.Login(ctx, apitest.LearnerEmail, apitest.Password); err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		pool[i] = c
	}
	fmt.Printf("signed in in %s\n", time.Since(startLogin).Round(time.Millisecond))

	steady := runPhase(ctx, pool, *ops, *concurrency)

	burstStats, burstRefreshes := runBurst(ctx, srv, pool[0], *burst)

	refreshBefore := srv.RefreshCalls()
	stop := make(chan struct{})
	var expirations atomic.Int64
	go func() {
		t := time.NewTicker(*expireEvery)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				srv.ExpireAll()
				expirations.Add(1)
			case <-stop:
				return
			}
		}
	}()
	storm := runPhase(ctx, pool, *ops, *concurrency)
	close(stop)
	refreshCalls := srv.RefreshCalls() - refreshBefore

	var replays, coalesced, signOuts uint64
	for _, c := range pool {
		m := c.Metrics()
		replays += m.Value(goLearn.MetricReplay)
		coalesced += m.Value(goLearn.MetricRefreshCoalesced)
		signOuts += m.Value(goLearn.MetricSignOut)
	}

	fmt.Println("---- results ----")
	printStats("steady", steady)
	printStats("storm", storm)
	printStats("burst", burstStats)
	fmt.Printf("burst: requests=%d refresh_calls=%d\n", *burst, burstRefreshes)
	fmt.Printf("storm: expirations=%d refresh_calls=%d replays=%d coalesced=%d sign_outs=%d\n",
		expirations.Load(), refreshCalls, replays, coalesced, signOuts)
	if *burst > 0 && burstRefreshes != 1 {
		fmt.Fprintf(os.Stderr, "burst produced %d refresh calls, want 1\n", burstRefreshes)
		os.Exit(1)
	}
	if limit := expirations.Load() * int64(len(pool)); refreshCalls > limit {
		fmt.Fprintf(os.Stderr, "refresh calls %d exceed one per client per expiry (%d)\n", refreshCalls, limit)
		os.Exit(1)
	}
}

func openRedis(addr string) (redis.UniversalClient, func()) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{mr.Addr()},
		})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{addr},
	})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }
}

// runBurst expires every token once and releases n requests on a single client at the same
// moment. It returns the latencies and the number of refresh calls the backend saw.
func runBurst(ctx context.Context, srv *apitest.Server, c *goLearn.Client, n int) (phaseStats, int64) {
	if n <= 0 {
		return phaseStats{}, 0
	}
	before := srv.RefreshCalls()
	srv.ExpireAll()

	var (
		wg        sync.WaitGroup
		failures  int64
		latencies = make([]time.Duration, n)
		start     = make(chan struct{})
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			t0 := time.Now()
			if _, err := c.CurrentUser(ctx); err != nil {
				atomic.AddInt64(&failures, 1)
			}
			latencies[i] = time.Since(t0)
		}(i)
	}
	t0 := time.Now()
	close(start)
	wg.Wait()
	return computeStats(time.Since(t0), latencies, failures), srv.RefreshCalls() - before
}

func runPhase(ctx context.Context, pool []*goLearn.Client, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
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
				c := pool[r.Intn(len(pool))]
				t0 := time.Now()
				var err error
				if i%4 == 0 {
					_, err = c.ListEnrollments(ctx, goLearn.ListOptions{Limit: 10})
				} else {
					_, err = c.CurrentUser(ctx)
				}
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
