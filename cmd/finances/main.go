// Package main reconciles a validator's on-chain finances: staking rewards,
// leader fees, MEV commission claims, vote costs, and SOL transfers, cached
// per epoch in PostgreSQL and mirrored to ClickHouse for analytics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/grod220/validator-finances/internal/addrbook"
	"github.com/grod220/validator-finances/internal/domain"
	"github.com/grod220/validator-finances/internal/dune"
	"github.com/grod220/validator-finances/internal/jito"
	"github.com/grod220/validator-finances/internal/observability"
	"github.com/grod220/validator-finances/internal/reconcile"
	"github.com/grod220/validator-finances/internal/solana"
	"github.com/grod220/validator-finances/internal/storage"
	chstore "github.com/grod220/validator-finances/internal/storage/clickhouse"
	"github.com/grod220/validator-finances/internal/storage/memory"
	"github.com/grod220/validator-finances/internal/storage/migrations"
	pgstore "github.com/grod220/validator-finances/internal/storage/postgres"
)

// Upstream pacing. The public RPC tier throttles aggressively, so each call
// family gets its own limiter.
const (
	rewardCallInterval    = 100 * time.Millisecond
	blockCallInterval     = 50 * time.Millisecond
	signatureCallInterval = 200 * time.Millisecond
)

type options struct {
	rpcEndpoint   string
	postgresDSN   string
	clickhouseDSN string
	useMemory     bool

	voteAccount       string
	identity          string
	withdrawAuthority string
	personalWallet    string

	startEpoch    uint64
	endEpoch      uint64
	noCache       bool
	bootstrapDate string
}

func main() {
	var opts options
	flag.StringVar(&opts.rpcEndpoint, "rpc-endpoint", "", "Solana RPC HTTP endpoint")
	flag.StringVar(&opts.postgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	flag.StringVar(&opts.clickhouseDSN, "clickhouse-dsn", "", "ClickHouse DSN for the analytics mirror (empty to disable)")
	flag.BoolVar(&opts.useMemory, "use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.StringVar(&opts.voteAccount, "vote-account", "", "Validator vote account address")
	flag.StringVar(&opts.identity, "identity", "", "Validator identity address")
	flag.StringVar(&opts.withdrawAuthority, "withdraw-authority", "", "Withdraw authority address")
	flag.StringVar(&opts.personalWallet, "personal-wallet", "", "Operator's personal wallet address (optional)")
	flag.Uint64Var(&opts.startEpoch, "start-epoch", 0, "First epoch to reconcile")
	flag.Uint64Var(&opts.endEpoch, "end-epoch", 0, "Last epoch to reconcile (0 = through current)")
	flag.BoolVar(&opts.noCache, "no-cache", false, "Refetch the whole range, ignoring cached epochs")
	flag.StringVar(&opts.bootstrapDate, "bootstrap-date", "", "Earliest date (YYYY-MM-DD) for the transfer bulk fallback")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger := log.New(os.Stdout, "[finances] ", log.LstdFlags)
	if *verbose {
		logger.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.Handle("/health", observability.HealthHandler())
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling run...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err := run(ctx, logger, opts)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, logger *log.Logger, opts options) error {
	if err := validateOptions(opts); err != nil {
		return err
	}

	rpc := solana.NewHTTPClient(opts.rpcEndpoint,
		solana.WithCallObserver(func(method string, d time.Duration, err error) {
			observability.RecordRPCLatency(method, d.Seconds())
			if err != nil {
				observability.RecordRPCError(method)
			}
		}),
	)

	stores, cleanup, err := openStores(ctx, logger, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	// Secondary source. Without an API key every primary failure simply
	// stays missing; nothing is ever negative-cached.
	var (
		rewardBackfill    reconcile.RewardBackfill
		leaderFeeBackfill reconcile.LeaderFeeBackfill
		voteCostBackfill  reconcile.VoteCostBackfill
		transferBackfill  reconcile.TransferBackfill
	)
	if apiKey := os.Getenv("DUNE_API_KEY"); apiKey != "" {
		duneClient, err := dune.NewClient(apiKey, opts.voteAccount, opts.identity, opts.withdrawAuthority,
			dune.WithQueryObserver(func(query string, d time.Duration, rows int) {
				observability.RecordBulkQuery(query, d.Seconds(), rows)
			}),
		)
		if err != nil {
			return fmt.Errorf("configure dune client: %w", err)
		}
		rewardBackfill = duneClient
		leaderFeeBackfill = duneClient
		voteCostBackfill = duneClient
		transferBackfill = duneClient
		logger.Println("Secondary source enabled (Dune)")
	} else {
		logger.Println("DUNE_API_KEY not set; running without the secondary source")
	}

	book := addrbook.NewStatic()
	if opts.personalWallet != "" {
		book.Add(opts.personalWallet, addrbook.PersonalWallet, "Personal Wallet")
	}

	own := []string{opts.voteAccount, opts.identity, opts.withdrawAuthority}
	tracked := []reconcile.TrackedAccount{
		{Key: "identity", Address: opts.identity},
		{Key: "vote_account", Address: opts.voteAccount},
		{Key: "withdraw_authority", Address: opts.withdrawAuthority},
	}

	runner := reconcile.NewRunner(reconcile.RunnerConfig{
		Chain: rpc,
		Rewards: reconcile.NewRewards(
			stores.Rewards,
			reconcile.RewardRPC{Client: rpc, VoteAccount: opts.voteAccount},
			rewardBackfill,
			rate.NewLimiter(rate.Every(rewardCallInterval), 1),
			logger,
		),
		LeaderFees: reconcile.NewLeaderFees(
			stores.LeaderFees,
			reconcile.LeaderFeeRPC{
				Client:       rpc,
				Identity:     opts.identity,
				BlockLimiter: rate.NewLimiter(rate.Every(blockCallInterval), 1),
			},
			leaderFeeBackfill,
			nil,
			logger,
		),
		MevClaims: reconcile.NewMevClaims(stores.MevClaims, jito.NewClient(), opts.voteAccount, logger),
		VoteCosts: reconcile.NewVoteCosts(stores.VoteCosts, voteCostBackfill, logger),
		Transfers: reconcile.NewTransfers(
			stores.Transfers,
			stores.Cursors,
			rpc,
			transferBackfill,
			tracked,
			own,
			rate.NewLimiter(rate.Every(signatureCallInterval), 1),
			logger,
		),
		Book:           book,
		OwnAddresses:   own,
		PersonalWallet: opts.personalWallet,
		Observer:       observability.NewObserver(observability.DefaultMetrics),
		Logger:         logger,
	})

	result, err := runner.Run(ctx, reconcile.Request{
		StartEpoch:    opts.startEpoch,
		EndEpoch:      opts.endEpoch,
		NoCache:       opts.noCache,
		BootstrapDate: opts.bootstrapDate,
	})
	if err != nil {
		return err
	}

	observability.DefaultMetrics.CurrentEpoch.Set(float64(result.CurrentEpoch))
	observability.DefaultMetrics.LastSuccessfulRun.SetToCurrentTime()

	if opts.clickhouseDSN != "" {
		if err := mirrorFacts(ctx, logger, opts.clickhouseDSN, result); err != nil {
			// The Postgres ledger is the source of truth; a mirror failure
			// does not fail the run.
			logger.Printf("ClickHouse mirror failed: %v", err)
		}
	}

	printReport(result)
	return nil
}

func validateOptions(opts options) error {
	if opts.rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint is required")
	}
	if !opts.useMemory && opts.postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	for name, addr := range map[string]string{
		"--vote-account":       opts.voteAccount,
		"--identity":           opts.identity,
		"--withdraw-authority": opts.withdrawAuthority,
	} {
		if addr == "" {
			return fmt.Errorf("%s is required", name)
		}
		if err := addrbook.ValidateAddress(addr); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	// Wallets must be on-curve; a PDA here would silently misclassify every
	// transfer it touches.
	if opts.personalWallet != "" {
		if err := addrbook.ValidateWallet(opts.personalWallet); err != nil {
			return fmt.Errorf("--personal-wallet: %w", err)
		}
	}
	return nil
}

// openStores selects the storage backend. The returned cleanup is always
// safe to call.
func openStores(ctx context.Context, logger *log.Logger, opts options) (storage.Stores, func(), error) {
	if opts.useMemory {
		transferStore := memory.NewTransferStore()
		return storage.Stores{
			Rewards:    memory.NewRewardStore(),
			LeaderFees: memory.NewLeaderFeeStore(),
			MevClaims:  memory.NewMevClaimStore(),
			VoteCosts:  memory.NewVoteCostStore(),
			Transfers:  transferStore,
			Cursors:    memory.NewCursorStore(transferStore),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, opts.postgresDSN,
		pgstore.WithQueryObserver(func(operation string, d time.Duration, err error) {
			observability.RecordDBQuery("postgres", operation, d.Seconds(), err)
		}),
	)
	if err != nil {
		return storage.Stores{}, func() {}, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return storage.Stores{}, func() {}, fmt.Errorf("run migrations: %w", err)
	}
	logger.Println("PostgreSQL migrations applied")

	return storage.Stores{
		Rewards:    pgstore.NewRewardStore(pool),
		LeaderFees: pgstore.NewLeaderFeeStore(pool),
		MevClaims:  pgstore.NewMevClaimStore(pool),
		VoteCosts:  pgstore.NewVoteCostStore(pool),
		Transfers:  pgstore.NewTransferStore(pool),
		Cursors:    pgstore.NewCursorStore(pool),
	}, pool.Close, nil
}

// mirrorFacts pushes the run's reconciled facts into the analytics mirror.
func mirrorFacts(ctx context.Context, logger *log.Logger, dsn string, res *reconcile.Result) error {
	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	if err != nil {
		return fmt.Errorf("clickhouse migrations: %w", err)
	}
	defer conn.Close()

	var facts []chstore.LedgerFact
	facts = append(facts, chstore.FactsFromRewards(res.Rewards)...)
	facts = append(facts, chstore.FactsFromLeaderFees(res.LeaderFees)...)
	facts = append(facts, chstore.FactsFromMevClaims(res.MevClaims)...)
	facts = append(facts, chstore.FactsFromVoteCosts(res.VoteCosts)...)

	store := chstore.NewLedgerFactsStore(conn)
	if err := store.Mirror(ctx, facts); err != nil {
		return err
	}

	logger.Printf("Mirrored %d facts to ClickHouse", len(facts))
	return nil
}

func printReport(res *reconcile.Result) {
	fmt.Printf("\n=== Validator finances, epochs %d-%d (current %d) ===\n",
		res.StartEpoch, res.EndEpoch, res.CurrentEpoch)

	var rewardTotal uint64
	for _, r := range res.Rewards {
		rewardTotal += r.Lamports
	}
	var feeTotal uint64
	var produced, skipped int
	for _, f := range res.LeaderFees {
		feeTotal += f.FeeLamports
		produced += f.BlocksProduced
		skipped += f.SkippedSlots()
	}
	var mevTotal uint64
	for _, c := range res.MevClaims {
		mevTotal += c.CommissionLamports
	}
	var voteTotal uint64
	for _, v := range res.VoteCosts {
		voteTotal += v.CostLamports
	}

	fmt.Printf("Staking rewards:  %12.4f SOL across %d epochs\n", domain.LamportsToSol(rewardTotal), len(res.Rewards))
	fmt.Printf("Leader fees:      %12.4f SOL (%d blocks produced, %d slots skipped)\n", domain.LamportsToSol(feeTotal), produced, skipped)
	fmt.Printf("MEV commission:   %12.4f SOL across %d epochs\n", domain.LamportsToSol(mevTotal), len(res.MevClaims))
	fmt.Printf("Vote costs:       %12.4f SOL (%d estimated epochs)\n", domain.LamportsToSol(voteTotal), res.VoteCostCounts.Estimated)

	fmt.Printf("\nTransfers (%d total):\n", len(res.Transfers))
	for _, class := range []domain.TransferClass{
		domain.ClassSeeding,
		domain.ClassReimbursement,
		domain.ClassIncentiveDeposit,
		domain.ClassInternalFunding,
		domain.ClassWithdrawal,
		domain.ClassOther,
	} {
		rows := res.Categorized.ByClass[class]
		if len(rows) == 0 {
			continue
		}
		fmt.Printf("  %-22s %4d transfers  %12.4f SOL\n",
			class, len(rows), domain.LamportsToSol(res.Categorized.Total(class)))
	}

	net := int64(rewardTotal) + int64(feeTotal) + int64(mevTotal) - int64(voteTotal)
	fmt.Printf("\nNet earnings:     %12.4f SOL\n", float64(net)/domain.LamportsPerSol)
}
