package hubauth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"

	"github.com/swahilipot/hubauth/account"
	"github.com/swahilipot/hubauth/memstore"
)

const testPassword = "correct-horse-battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	kind  string
	to    string
	token string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

func (n *recordingNotifier) add(m sentMail) error {
	n.mu.Lock()
	n.sent = append(n.sent, m)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) SendVerification(_ context.Context, to, _, token string) error {
	return n.add(sentMail{kind: "verification", to: to, token: token})
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, to, _, token string) error {
	return n.add(sentMail{kind: "reset", to: to, token: token})
}

func (n *recordingNotifier) SendPasswordChanged(_ context.Context, to, _ string) error {
	return n.add(sentMail{kind: "changed", to: to})
}

// last returns the most recent mail of kind, failing the test when none was
// sent.
func (n *recordingNotifier) last(t *testing.T, kind string) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i]
		}
	}
	t.Fatalf("no %s mail sent", kind)
	return sentMail{}
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if m.kind == kind {
			c++
		}
	}
	return c
}

type testEnv struct {
	engine   *Engine
	accounts *memstore.Accounts
	sessions *memstore.Sessions
	redis    *miniredis.Miniredis
	clock    *testClock
	mail     *recordingNotifier
}

type envOption func(*envOptions)

type envOptions struct {
	mutate   func(*Config)
	sessions bool
	noRedis  bool
	wrap     func(*memstore.Accounts) account.Store
}

func withConfig(fn func(*Config)) envOption {
	return func(o *envOptions) { o.mutate = fn }
}

func withSessions() envOption {
	return func(o *envOptions) { o.sessions = true }
}

// withAccountWrapper puts wrap between the engine and the memstore accounts.
func withAccountWrapper(wrap func(*memstore.Accounts) account.Store) envOption {
	return func(o *envOptions) { o.wrap = wrap }
}

func withoutRedis() envOption {
	return func(o *envOptions) { o.noRedis = true }
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.RefreshKey = []byte("fedcba9876543210fedcba9876543210")
	cfg.Password.BcryptCost = 4
	cfg.Signup.ReservedEmails = []string{"Admin@Hub.example"}
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	var o envOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := testConfig()
	if o.mutate != nil {
		o.mutate(&cfg)
	}

	env := &testEnv{
		accounts: memstore.NewAccounts(),
		clock:    &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		mail:     &recordingNotifier{},
	}

	var store account.Store = env.accounts
	if o.wrap != nil {
		store = o.wrap(env.accounts)
	}

	b := New().
		WithConfig(cfg).
		WithAccountStore(store).
		WithNotifier(env.mail).
		WithClock(env.clock.Now).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	if o.sessions {
		env.sessions = memstore.NewSessions()
		b.WithSessionStore(env.sessions)
	}
	if !o.noRedis {
		env.redis = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: env.redis.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		b.WithRedis(client)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) signup(t *testing.T, email string) *SignupResult {
	t.Helper()
	res, err := env.engine.Signup(context.Background(), SignupInput{
		Email:      email,
		Password:   testPassword,
		FullName:   "Amani Njoroge",
		Department: "Programs",
	})
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return res
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate totp code: %v", err)
	}
	return code
}

// enableTOTP walks an account through setup and enable and returns the
// secret.
func (env *testEnv) enableTOTP(t *testing.T, accountID int64) string {
	t.Helper()
	ctx := context.Background()
	setup, err := env.engine.SetupTOTP(ctx, accountID)
	if err != nil {
		t.Fatalf("setup totp: %v", err)
	}
	if err := env.engine.EnableTOTP(ctx, accountID, totpCode(t, setup.Secret, env.clock.Now())); err != nil {
		t.Fatalf("enable totp: %v", err)
	}
	// Move to the next step so the enabling code is not reused by callers.
	env.clock.Advance(30 * time.Second)
	return setup.Secret
}
