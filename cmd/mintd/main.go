// main.go - mintd serves a blind-signature e-cash mint over HTTP.
//
// Usage:
//
//	mintd -config mintd.json
//
// On first start the config file and a random keyset seed are created. The
// seed determines every mint key, so keeping it keeps existing notes valid
// across restarts; spent secrets persist in the badger ledger directory.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ecash/internal/api"
	"ecash/internal/ecash"
	"ecash/internal/group"
	"ecash/internal/logging"
	"ecash/internal/metrics"
	"ecash/internal/storage"
)

const seedSize = 32

func main() {
	configPath := flag.String("config", "mintd.json", "path to the JSON config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "mintd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	auditPath := ""
	if cfg.EnableAudit {
		auditPath = cfg.AuditLogPath
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile, auditPath)
	if err != nil {
		return err
	}
	defer logger.Close()

	g, err := group.ByName(cfg.Curve)
	if err != nil {
		return err
	}
	seed, created, err := loadOrCreateSeed(cfg.SeedFile)
	if err != nil {
		return err
	}
	keyset, err := ecash.DeriveKeyset(g, seed, cfg.Denominations)
	if err != nil {
		return fmt.Errorf("deriving keyset: %w", err)
	}
	logger.Audit("keyset_loaded", map[string]interface{}{
		"id":            keyset.ID(),
		"curve":         g.Name(),
		"denominations": keyset.Denominations(),
		"new_seed":      created,
	})

	ledger, err := storage.OpenBadger(cfg.LedgerDir, cfg.InMemoryLedger, logger.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Error().Err(err).Msg("closing ledger")
		}
	}()
	spent, err := storage.NewCachedSpentSet(ledger, cfg.CacheSize)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	mint := ecash.NewMint(keyset, spent,
		ecash.WithLogger(logger.With().Str("component", "mint").Logger()),
		ecash.WithRecorder(collector),
		ecash.WithSigners(cfg.Signers),
	)

	health := api.NewHealthChecker(api.Version, keyset.ID())
	health.RegisterComponent("ledger", ledger.Ping)

	period, err := cfg.RefillPeriod()
	if err != nil {
		return err
	}
	limiter := api.NewClientRateLimiter(cfg.RateLimitBurst, cfg.RateLimitRefill, period)

	server := api.NewServer(mint,
		api.WithServerLogger(logger.With().Str("component", "api").Logger()),
		api.WithMetrics(collector),
		api.WithRateLimiter(limiter),
		api.WithHealthChecker(health),
		api.WithIssueEnabled(cfg.EnableIssue),
	)
	ready := make(chan struct{}, 1)
	if err := server.Start(cfg.ListenAddr, ready); err != nil {
		return err
	}
	<-ready
	logger.Info().
		Str("addr", server.Addr()).
		Str("keyset", keyset.ID()).
		Str("curve", g.Name()).
		Bool("in_memory_ledger", cfg.InMemoryLedger).
		Bool("issue_enabled", cfg.EnableIssue).
		Msg("mint ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prune := time.NewTicker(time.Minute)
	defer prune.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-prune.C:
			if n := limiter.Prune(10 * time.Minute); n > 0 {
				logger.Debug().Int("clients", n).Msg("pruned idle rate limiters")
			}
		}
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	logger.Info().Interface("metrics", collector.Summary()).Msg("final metrics")
	logger.Audit("mint_stopped", map[string]interface{}{"keyset": keyset.ID()})
	return nil
}

// loadOrCreateSeed reads a hex seed from path, creating one with mode 0600 if
// the file does not exist.
func loadOrCreateSeed(path string) ([]byte, bool, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		seed, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, false, fmt.Errorf("seed file %s: %w", path, err)
		}
		if len(seed) < seedSize {
			return nil, false, fmt.Errorf("seed file %s: need %d bytes, got %d", path, seedSize, len(seed))
		}
		return seed, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("reading seed file: %w", err)
	}

	seed := make([]byte, seedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ecash.ErrEntropy, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, false, fmt.Errorf("creating seed file: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, hex.EncodeToString(seed)); err != nil {
		return nil, false, fmt.Errorf("writing seed file: %w", err)
	}
	return seed, true, nil
}
