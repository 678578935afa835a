// hubauth-loadtest fires concurrent wrong-password logins at a set of
// accounts and checks that the lockout threshold holds under contention,
// then measures successful login latency.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/swahilipot/hubauth"
	"github.com/swahilipot/hubauth/account"
	"github.com/swahilipot/hubauth/memstore"
	"github.com/swahilipot/hubauth/sqlstore"
)

const loadPassword = "load-test-password"

type outcomeCounts struct {
	credentials atomic.Int64
	justLocked  atomic.Int64
	locked      atomic.Int64
	other       atomic.Int64
}

func main() {
	var (
		accounts    = flag.Int("accounts", 50, "number of target accounts")
		attempts    = flag.Int("attempts", 40, "wrong-password attempts per account")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		logins      = flag.Int("logins", 2000, "successful logins in the latency phase")
		store       = flag.String("store", "memory", "account store: memory or sqlite")
		dsn         = flag.String("dsn", "file:hubauth-loadtest?mode=memory&cache=shared", "sqlite dsn when -store=sqlite")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		bcryptCost  = flag.Int("bcrypt-cost", 4, "bcrypt cost for seeded accounts")
	)
	flag.Parse()

	if *accounts <= 0 || *attempts <= 0 || *concurrency <= 0 || *logins < 0 {
		fmt.Fprintln(os.Stderr, "accounts, attempts and concurrency must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	client, cleanup, err := redisClient(*redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	accountStore, closeStore, err := openStore(ctx, *store, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	cfg := hubauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("hubauth-loadtest-signing-key-0123456789")
	cfg.Password.BcryptCost = *bcryptCost
	cfg.Password.UpgradeOnLogin = false
	// Keep the upstream limiter out of the way; lockout is what is measured.
	cfg.RateLimit.Login = hubauth.RateRule{Limit: 1 << 30, Window: time.Minute}
	cfg.RateLimit.Signup = hubauth.RateRule{Limit: 1 << 30, Window: time.Minute}

	engine, err := hubauth.New().
		WithConfig(cfg).
		WithAccountStore(accountStore).
		WithRedis(client).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d accounts (%s store)...\n", *accounts*2, *store)
	startSeed := time.Now()
	targets := make([]string, *accounts)
	healthy := make([]string, *accounts)
	for i := 0; i < *accounts; i++ {
		targets[i] = fmt.Sprintf("target-%d@load.example", i)
		healthy[i] = fmt.Sprintf("healthy-%d@load.example", i)
		for _, email := range []string{targets[i], healthy[i]} {
			if _, err := engine.Signup(ctx, hubauth.SignupInput{Email: email, Password: loadPassword, FullName: "Load Test"}); err != nil {
				fmt.Fprintf(os.Stderr, "signup %s: %v\n", email, err)
				os.Exit(1)
			}
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	counts, lockStats := runLockoutPhase(ctx, engine, targets, *attempts, *concurrency)
	violations := checkLockout(ctx, engine, targets, counts, cfg.Lockout.Threshold, *attempts)

	loginStats := runLoginPhase(ctx, engine, healthy, *logins, *concurrency)

	fmt.Println("---- results ----")
	printStats("failed-login", lockStats)
	printStats("login", loginStats)
	fmt.Printf("outcomes: credentials=%d just_locked=%d locked=%d other=%d\n",
		counts.credentials.Load(), counts.justLocked.Load(), counts.locked.Load(), counts.other.Load())
	if violations > 0 {
		fmt.Printf("lockout invariant: FAIL (%d accounts)\n", violations)
		os.Exit(1)
	}
	fmt.Println("lockout invariant: ok")
}

func redisClient(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func openStore(ctx context.Context, kind, dsn string) (account.Store, func(), error) {
	switch kind {
	case "memory":
		return memstore.NewAccounts(), func() {}, nil
	case "sqlite":
		db, err := sqlstore.Open(ctx, sqlstore.Config{Dialect: sqlstore.SQLite, DSN: dsn})
		if err != nil {
			return nil, nil, err
		}
		return db.Accounts(), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", kind)
	}
}

// runLockoutPhase spreads attempts*len(targets) wrong-password logins
// across the workers, interleaving accounts so each one sees contention.
func runLockoutPhase(ctx context.Context, engine *hubauth.Engine, targets []string, attempts, concurrency int) (*outcomeCounts, phaseStats) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		counts    = &outcomeCounts{}
		total     = attempts * len(targets)
		latencies = make([]time.Duration, 0, total)
		mu        sync.Mutex
	)

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
				email := targets[i%len(targets)]
				t0 := time.Now()
				_, err := engine.Login(ctx, email, "definitely-wrong")
				d := time.Since(t0)

				var locked *hubauth.LockedError
				switch {
				case errors.As(err, &locked) && locked.JustLocked:
					counts.justLocked.Add(1)
				case errors.As(err, &locked):
					counts.locked.Add(1)
				case errors.Is(err, hubauth.ErrInvalidCredentials):
					counts.credentials.Add(1)
				default:
					counts.other.Add(1)
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return counts, computeStats(time.Since(start), latencies, failures)
}

// checkLockout verifies that no account answered more than threshold-1
// plain credential failures and that every target is now locked against
// the correct password.
func checkLockout(ctx context.Context, engine *hubauth.Engine, targets []string, counts *outcomeCounts, threshold, attempts int) int {
	violations := 0
	if attempts >= threshold {
		want := int64(len(targets) * (threshold - 1))
		if got := counts.credentials.Load(); got != want {
			fmt.Printf("credential failures = %d, want %d\n", got, want)
			violations++
		}
	}
	for _, email := range targets {
		_, err := engine.Login(ctx, email, loadPassword)
		locked := errors.Is(err, hubauth.ErrAccountLocked)
		if attempts >= threshold && !locked {
			fmt.Printf("%s: correct password accepted after %d failures (err=%v)\n", email, attempts, err)
			violations++
		}
	}
	return violations
}

func runLoginPhase(ctx context.Context, engine *hubauth.Engine, emails []string, ops, concurrency int) phaseStats {
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
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := engine.Login(ctx, emails[i%len(emails)], loadPassword)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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
	return samples[(len(samples)-1)*p/100]
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
