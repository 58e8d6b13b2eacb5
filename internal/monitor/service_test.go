package monitor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aleister1102/postwatch/internal/config"
	"github.com/aleister1102/postwatch/internal/datastore"
	"github.com/aleister1102/postwatch/internal/metrics"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/aleister1102/postwatch/internal/registry"
	"github.com/aleister1102/postwatch/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const patchNotesFingerprint = "cfff1a766577066b41dc42f925ec0c75d87583ebb52312cb254b0871da3b8f81"

var patchNotes = models.Candidate{
	Title: "Patch Notes v2",
	Link:  "https://site/posts/2",
	Image: "https://site/img/2.png",
}

type fakeCrawler struct {
	mu         sync.Mutex
	candidates []models.Candidate
	err        error
	calls      int
	during     func()
}

func (c *fakeCrawler) Crawl(context.Context, string) ([]models.Candidate, error) {
	c.mu.Lock()
	c.calls++
	during := c.during
	candidates, err := c.candidates, c.err
	c.mu.Unlock()

	if during != nil {
		during()
	}
	return candidates, err
}

func (c *fakeCrawler) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type sentPost struct {
	Config      models.MonitorConfig
	Candidate   models.Candidate
	Fingerprint string
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentPost
	deliver bool
}

func (n *fakeNotifier) Dispatch(_ context.Context, cfg models.MonitorConfig, c models.Candidate, fp string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentPost{Config: cfg, Candidate: c, Fingerprint: fp})
	return n.deliver
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeResolver struct {
	invalid map[string]bool
	err     error
}

func (r *fakeResolver) ResolveDestination(_ context.Context, _ string, destination string) error {
	if r.err != nil {
		return r.err
	}
	if r.invalid[destination] {
		return models.ErrInvalidDestination
	}
	return nil
}

type harness struct {
	service  *Service
	store    *datastore.SQLiteStore
	crawler  *fakeCrawler
	notifier *fakeNotifier
	resolver *fakeResolver
	metrics  *metrics.Metrics
}

func newHarness(t *testing.T, dbPath string, cfg config.SchedulerConfig) *harness {
	t.Helper()
	if dbPath == "" {
		dbPath = filepath.Join(t.TempDir(), "postwatch.db")
	}
	store, err := datastore.NewSQLiteStore(dbPath, 1000, zerolog.Nop())
	require.NoError(t, err)

	h := &harness{
		store:    store,
		crawler:  &fakeCrawler{candidates: []models.Candidate{patchNotes}},
		notifier: &fakeNotifier{deliver: true},
		resolver: &fakeResolver{invalid: map[string]bool{"voice-channel": true}},
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
	}
	reg := registry.New(store, zerolog.Nop())
	h.service = NewService(cfg, reg, h.crawler, h.notifier, h.resolver, h.metrics, zerolog.Nop())

	t.Cleanup(func() {
		_ = h.service.Stop(context.Background())
		_ = store.Close()
	})
	return h
}

func registerInput(name string) RegisterInput {
	return RegisterInput{
		TenantID:    "guild-1",
		Name:        name,
		URL:         "https://site/board",
		Destination: "chan-1",
	}
}

func requireConfigError(t *testing.T, err error, sentinel error) {
	t.Helper()
	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, sentinel)
}

func TestService_Register(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	ctx := context.Background()

	cfg, err := h.service.Register(ctx, registerInput(" news "))

	require.NoError(t, err)
	assert.Equal(t, "news", cfg.Name)
	assert.Equal(t, models.DefaultIntervalMillis, cfg.IntervalMillis)
	assert.Nil(t, cfg.LastFingerprint)

	stored, err := h.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "https://site/board", stored[0].URL)

	snap := h.service.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, scheduler.StateScheduled, snap[0].State)
	assert.Equal(t, 5*time.Minute, snap[0].Interval)
}

func TestService_RegisterClampsInterval(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())

	in := registerInput("fast")
	in.IntervalMillis = 1000
	cfg, err := h.service.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.MinIntervalMillis, cfg.IntervalMillis)

	in = registerInput("slow")
	in.IntervalMillis = 2 * models.MaxIntervalMillis
	cfg, err = h.service.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, models.MaxIntervalMillis, cfg.IntervalMillis)
}

func TestService_RegisterErrors(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	ctx := context.Background()
	_, err := h.service.Register(ctx, registerInput("news"))
	require.NoError(t, err)

	t.Run("duplicate", func(t *testing.T) {
		_, err := h.service.Register(ctx, registerInput("news"))
		requireConfigError(t, err, models.ErrDuplicateName)
	})

	t.Run("invalid input", func(t *testing.T) {
		for _, in := range []RegisterInput{
			{TenantID: "guild-1", Name: "", URL: "https://site/", Destination: "chan-1"},
			{TenantID: "guild-1", Name: "x", URL: "ftp://site/file", Destination: "chan-1"},
			{TenantID: "guild-1", Name: "x", URL: "not a url", Destination: "chan-1"},
			{TenantID: "guild-1", Name: "x", URL: "https://site/", Destination: ""},
			{TenantID: "", Name: "x", URL: "https://site/", Destination: "chan-1"},
		} {
			_, err := h.service.Register(ctx, in)
			requireConfigError(t, err, models.ErrInvalidInput)
		}
	})

	t.Run("invalid destination", func(t *testing.T) {
		in := registerInput("voice")
		in.Destination = "voice-channel"
		_, err := h.service.Register(ctx, in)
		requireConfigError(t, err, models.ErrInvalidDestination)
		_, exists := h.service.Get("guild-1", "voice")
		assert.False(t, exists)
	})

	t.Run("destination lookup failure", func(t *testing.T) {
		h.resolver.err = errors.New("gateway down")
		defer func() { h.resolver.err = nil }()
		_, err := h.service.Register(ctx, registerInput("other"))
		requireConfigError(t, err, models.ErrInvalidDestination)
	})

	assert.Len(t, h.service.List("guild-1"), 1)
}

func TestService_Remove(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	ctx := context.Background()
	_, err := h.service.Register(ctx, registerInput("news"))
	require.NoError(t, err)

	require.NoError(t, h.service.Remove(ctx, "guild-1", "news"))

	assert.Empty(t, h.service.List("guild-1"))
	assert.Empty(t, h.service.Snapshot())
	stored, err := h.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	requireConfigError(t, h.service.Remove(ctx, "guild-1", "news"), models.ErrNotFound)
}

func TestService_ListIsPerTenantAndSorted(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	ctx := context.Background()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := h.service.Register(ctx, registerInput(name))
		require.NoError(t, err)
	}
	other := registerInput("alpha")
	other.TenantID = "guild-2"
	_, err := h.service.Register(ctx, other)
	require.NoError(t, err)

	list := h.service.List("guild-1")
	require.Len(t, list, 3)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, []string{list[0].Name, list[1].Name, list[2].Name})
	assert.Len(t, h.service.List("guild-2"), 1)
	assert.Empty(t, h.service.List("guild-3"))
}

func TestService_Update(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	ctx := context.Background()
	_, err := h.service.Register(ctx, registerInput("news"))
	require.NoError(t, err)

	interval := int64(10 * 60_000)
	updated, err := h.service.Update(ctx, UpdateInput{TenantID: "guild-1", Name: "news", IntervalMillis: &interval})
	require.NoError(t, err)
	assert.Equal(t, interval, updated.IntervalMillis)

	state, ok := h.service.scheduler.State(updated.Key())
	require.True(t, ok)
	assert.Equal(t, 10*time.Minute, state.Interval)
	assert.Len(t, h.service.Snapshot(), 1)

	bad := "voice-channel"
	_, err = h.service.Update(ctx, UpdateInput{TenantID: "guild-1", Name: "news", Destination: &bad})
	requireConfigError(t, err, models.ErrInvalidDestination)

	_, err = h.service.Update(ctx, UpdateInput{TenantID: "guild-1", Name: "news"})
	requireConfigError(t, err, models.ErrInvalidInput)

	_, err = h.service.Update(ctx, UpdateInput{TenantID: "guild-1", Name: "missing", IntervalMillis: &interval})
	requireConfigError(t, err, models.ErrNotFound)

	stored, err := h.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, interval, stored[0].IntervalMillis)
}

func TestService_TickDispatchesOnceThenDedups(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	ctx := context.Background()
	cfg, err := h.service.Register(ctx, registerInput("news"))
	require.NoError(t, err)

	h.service.RunTick(ctx, cfg.Key())

	require.Equal(t, 1, h.notifier.count())
	sent := h.notifier.sent[0]
	assert.Equal(t, patchNotes, sent.Candidate)
	assert.Equal(t, patchNotesFingerprint, sent.Fingerprint)

	got, _ := h.service.Get("guild-1", "news")
	require.NotNil(t, got.LastFingerprint)
	assert.Equal(t, patchNotesFingerprint, *got.LastFingerprint)

	stored, err := h.store.List(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored[0].LastFingerprint)
	assert.Equal(t, patchNotesFingerprint, *stored[0].LastFingerprint)

	h.service.RunTick(ctx, cfg.Key())
	h.service.RunTick(ctx, cfg.Key())
	assert.Equal(t, 1, h.notifier.count())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues(metrics.TickUnchanged)))
}

func TestService_TickNewPostAfterChange(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	ctx := context.Background()
	cfg, err := h.service.Register(ctx, registerInput("news"))
	require.NoError(t, err)

	h.service.RunTick(ctx, cfg.Key())
	h.crawler.mu.Lock()
	h.crawler.candidates = []models.Candidate{{Title: "Patch Notes v3", Link: "https://site/posts/3"}, patchNotes}
	h.crawler.mu.Unlock()
	h.service.RunTick(ctx, cfg.Key())

	require.Equal(t, 2, h.notifier.count())
	assert.Equal(t, "Patch Notes v3", h.notifier.sent[1].Candidate.Title)
}

func TestService_TickDeliveryFailureStillAdvances(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	h.notifier.deliver = false
	ctx := context.Background()
	cfg, err := h.service.Register(ctx, registerInput("news"))
	require.NoError(t, err)

	h.service.RunTick(ctx, cfg.Key())
	h.service.RunTick(ctx, cfg.Key())

	assert.Equal(t, 1, h.notifier.count(), "no second attempt for the same post")
	got, _ := h.service.Get("guild-1", "news")
	require.NotNil(t, got.LastFingerprint)
	assert.Equal(t, patchNotesFingerprint, *got.LastFingerprint)
}

func TestService_TickSkipsOnFetchErrorAndEmpty(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	ctx := context.Background()
	cfg, err := h.service.Register(ctx, registerInput("news"))
	require.NoError(t, err)

	h.crawler.err = &models.FetchError{URL: cfg.URL, Phase: "static", Err: errors.New("timeout")}
	h.service.RunTick(ctx, cfg.Key())

	h.crawler.err = nil
	h.crawler.candidates = []models.Candidate{}
	h.service.RunTick(ctx, cfg.Key())

	assert.Equal(t, 0, h.notifier.count())
	got, _ := h.service.Get("guild-1", "news")
	assert.Nil(t, got.LastFingerprint)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues(metrics.TickFetchError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues(metrics.TickEmpty)))

	state, ok := h.service.scheduler.State(cfg.Key())
	require.True(t, ok)
	assert.Equal(t, scheduler.StateScheduled, state.State, "failures never disable the schedule")
}

func TestService_TickDiscardedWhenRemovedMidFlight(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	ctx := context.Background()
	cfg, err := h.service.Register(ctx, registerInput("news"))
	require.NoError(t, err)

	h.crawler.during = func() {
		require.NoError(t, h.service.Remove(ctx, "guild-1", "news"))
	}
	h.service.RunTick(ctx, cfg.Key())

	assert.Equal(t, 0, h.notifier.count())
	stored, err := h.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestService_TickDiscardedWhenReplacedMidFlight(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	ctx := context.Background()
	cfg, err := h.service.Register(ctx, registerInput("news"))
	require.NoError(t, err)

	h.crawler.during = func() {
		require.NoError(t, h.service.Remove(ctx, "guild-1", "news"))
		_, err := h.service.Register(ctx, registerInput("news"))
		require.NoError(t, err)
	}
	h.service.RunTick(ctx, cfg.Key())

	assert.Equal(t, 0, h.notifier.count())
	got, ok := h.service.Get("guild-1", "news")
	require.True(t, ok)
	assert.Nil(t, got.LastFingerprint, "stale tick never writes into the new lineage")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues(metrics.TickStale)))
}

func TestService_TickForUnknownKey(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	h.service.RunTick(context.Background(), models.MonitorKey{TenantID: "guild-1", Name: "ghost"})

	assert.Equal(t, 0, h.crawler.callCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TicksTotal.WithLabelValues(metrics.TickMissing)))
}

func TestService_RecoveryMatchesLiveRegistration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "postwatch.db")
	ctx := context.Background()

	live := newHarness(t, dbPath, config.NewDefaultSchedulerConfig())
	inputs := []RegisterInput{registerInput("alpha"), registerInput("beta"), registerInput("gamma")}
	inputs[1].IntervalMillis = 15 * 60_000
	inputs[2].TenantID = "guild-2"
	for _, in := range inputs {
		_, err := live.service.Register(ctx, in)
		require.NoError(t, err)
	}
	live.service.RunTick(ctx, models.MonitorKey{TenantID: "guild-1", Name: "alpha"})
	liveSnapshot := live.service.Snapshot()
	require.NoError(t, live.service.Stop(ctx))

	restarted := newHarness(t, dbPath, config.NewDefaultSchedulerConfig())
	restored, err := restarted.service.Recover(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, restored)
	assert.Equal(t, liveSnapshot, restarted.service.Snapshot())

	alpha, ok := restarted.service.Get("guild-1", "alpha")
	require.True(t, ok)
	require.NotNil(t, alpha.LastFingerprint)
	assert.Equal(t, patchNotesFingerprint, *alpha.LastFingerprint)

	restarted.service.RunTick(ctx, alpha.Key())
	assert.Equal(t, 0, restarted.notifier.count(), "no duplicate notification across restarts")

	again, err := restarted.service.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again, "recovering twice does not duplicate jobs")
	assert.Len(t, restarted.service.Snapshot(), 3)
}

func TestService_RunOnRegister(t *testing.T) {
	cfg := config.NewDefaultSchedulerConfig()
	cfg.RunOnRegister = true
	h := newHarness(t, "", cfg)

	_, err := h.service.Register(context.Background(), registerInput("news"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.notifier.count() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestService_Status(t *testing.T) {
	h := newHarness(t, "", config.NewDefaultSchedulerConfig())
	ctx := context.Background()
	_, err := h.service.Register(ctx, registerInput("news"))
	require.NoError(t, err)

	status := h.service.Status("guild-1")
	require.Len(t, status, 1)
	assert.Equal(t, "news", status[0].Config.Name)
	assert.Equal(t, scheduler.StateScheduled, status[0].Job.State)
}
