package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"ratelimit-gateway/middleware/ratelimit"
	"ratelimit-gateway/middleware/ratelimit/domain"
	"ratelimit-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("proxy error: %v", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	local := infra.NewMemoryWindowStore(
		infra.WithMaxEntries(cfg.rateMaxEntries),
		infra.WithCleanupEvery(cfg.rateCleanupInterval),
	)

	var store domain.WindowCounter = local
	if cfg.rateDistributed {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateRedisAddr,
			Password: cfg.rateRedisPassword,
			DB:       cfg.rateRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			// o contador distribuído tem failover para o local; não derruba o boot
			log.Printf("redis window ping error (failing open to local until it recovers): %v", err)
		}

		remote := infra.NewRedisWindowStore(
			rdb,
			infra.WithWindowPrefix(cfg.rateRedisPrefix),
			infra.WithCallTimeout(cfg.rateRedisTimeout),
		)
		store = infra.NewFailoverStore(remote, local)
	}

	var statsStore domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	local.StartJanitor(ctx)

	h := http.Handler(proxy)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	})(h)
	if cfg.rateEnabled {
		h = ratelimit.Middleware(ratelimit.Options{
			Store:              store,
			Stats:              statsStore,
			Policy:             domain.Policy{Limit: cfg.rateLimit, Window: cfg.rateWindow},
			Rules:              cfg.rateRules,
			Strategy:           cfg.rateKeyStrategy,
			TrustXForwardedFor: cfg.trustXFF,
			ExcludePaths:       cfg.rateExcludePaths,
			RejectStatus:       http.StatusTooManyRequests,
		})(h)
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("gateway listening on %s -> %s", cfg.listenAddr, target)
	log.Printf("rate: enabled=%v limit=%d window=%s strategy=%q trustXFF=%v rules=%d excluded=%d",
		cfg.rateEnabled, cfg.rateLimit, cfg.rateWindow, cfg.rateKeyStrategy, cfg.trustXFF, len(cfg.rateRules), len(cfg.rateExcludePaths))
	log.Printf("rate-store: distributed=%v redisAddr=%q maxEntries=%d cleanupEvery=%s",
		cfg.rateDistributed, cfg.rateRedisAddr, local.MaxEntries(), local.CleanupEvery())
	log.Printf("rate-stats: enabled=%v redisAddr=%q bucket=%q ttl=%s trackKeys=%v", cfg.rateStatsEnabled, cfg.rateStatsRedisAddr, cfg.rateStatsBucket, cfg.rateStatsTTL, cfg.rateStatsTrackKeys)
	log.Printf("concurrency: max=%d acquireTimeout=%s", cfg.concurrencyMax, cfg.concurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

type config struct {
	listenAddr  string
	upstreamURL string

	rateEnabled      bool
	rateLimit        int
	rateWindow       time.Duration
	rateRules        []domain.Rule
	rateKeyStrategy  string
	trustXFF         bool
	rateExcludePaths []string

	rateMaxEntries      int
	rateCleanupInterval time.Duration

	rateDistributed   bool
	rateRedisAddr     string
	rateRedisPassword string
	rateRedisDB       int
	rateRedisTimeout  time.Duration
	rateRedisPrefix   string

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool

	concurrencyMax     int
	concurrencyTimeout time.Duration
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = stringsRequired("UPSTREAM_URL")
	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.rateLimit = getenvIntDefault("RATE_LIMIT", 100)
	// RATE_WINDOW aceita duração Go ("90s", "2m") ou segundos ("60")
	cfg.rateWindow = getenvWindowDefault("RATE_WINDOW", 60*time.Second)

	rules, err := parseRules(os.Getenv("RATE_RULES"))
	if err != nil {
		return config{}, err
	}
	cfg.rateRules = rules

	cfg.rateKeyStrategy = getenvDefault("RATE_KEY_STRATEGY", "ip")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.rateExcludePaths = splitPaths(os.Getenv("RATE_EXCLUDE_PATHS"))

	cfg.rateMaxEntries = getenvIntDefault("RATE_MAX_ENTRIES", infra.DefaultMaxEntries)
	cfg.rateCleanupInterval = getenvDurationDefault("RATE_CLEANUP_INTERVAL", infra.DefaultCleanupEvery)

	cfg.rateDistributed = getenvBoolDefault("RATE_DISTRIBUTED", false)
	cfg.rateRedisAddr = getenvDefault("RATE_REDIS_ADDR", "")
	cfg.rateRedisPassword = os.Getenv("RATE_REDIS_PASSWORD")
	cfg.rateRedisDB = getenvIntDefault("RATE_REDIS_DB", 0)
	cfg.rateRedisTimeout = getenvDurationDefault("RATE_REDIS_TIMEOUT", 500*time.Millisecond)
	cfg.rateRedisPrefix = getenvDefault("RATE_REDIS_PREFIX", "ratelimit:window")

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.rateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.rateLimit <= 0 {
		return config{}, errors.New("RATE_LIMIT must be > 0")
	}
	if cfg.rateWindow <= 0 {
		return config{}, errors.New("RATE_WINDOW must be > 0")
	}
	if cfg.rateMaxEntries < 0 {
		return config{}, errors.New("RATE_MAX_ENTRIES must be >= 0")
	}
	if cfg.rateDistributed && strings.TrimSpace(cfg.rateRedisAddr) == "" {
		return config{}, errors.New("RATE_REDIS_ADDR is required when RATE_DISTRIBUTED=true")
	}
	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}
func stringsRequired(k string) string { return os.Getenv(k) }

// parseRules lê RATE_RULES no formato "pattern=limit/window;pattern=limit/window".
// Ex: "/api/auth/*=5/60s;/api/upload=2/5m"
func parseRules(spec string) ([]domain.Rule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var rules []domain.Rule
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		pattern, policy, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("RATE_RULES: rule %q must be pattern=limit/window", part)
		}
		limitStr, windowStr, ok := strings.Cut(policy, "/")
		if !ok {
			return nil, fmt.Errorf("RATE_RULES: rule %q must be pattern=limit/window", part)
		}

		limit, err := strconv.Atoi(strings.TrimSpace(limitStr))
		if err != nil || limit <= 0 {
			return nil, fmt.Errorf("RATE_RULES: rule %q has invalid limit", part)
		}
		window, err := parseDurationOrSeconds(strings.TrimSpace(windowStr))
		if err != nil || window <= 0 {
			return nil, fmt.Errorf("RATE_RULES: rule %q has invalid window", part)
		}

		rules = append(rules, domain.Rule{
			Pattern: strings.TrimSpace(pattern),
			Policy:  domain.Policy{Limit: limit, Window: window},
		})
	}
	return rules, nil
}

func parseDurationOrSeconds(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return time.Duration(secs) * time.Second, nil
}

func splitPaths(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getenvWindowDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := parseDurationOrSeconds(v)
	if err != nil {
		return def
	}
	return d
}
