package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"platformchain/config"
	"platformchain/core/epoch"
	"platformchain/core/fees"
	"platformchain/core/orchestrator"
	"platformchain/core/state"
	"platformchain/core/wire"
	"platformchain/corerpc"
	"platformchain/corerpc/fixtures"
	"platformchain/eventbus"
	"platformchain/mempool"
	"platformchain/observability"
	"platformchain/observability/logging"
	otelinit "platformchain/observability/otel"
	"platformchain/storage"
	"platformchain/storage/trie"
)

const blockInterval = 3 * time.Second

func main() {
	configPath := flag.String("config", "./config.toml", "path to the node configuration file")
	inMemory := flag.Bool("memory", false, "use an in-memory ledger instead of LevelDB (devnet only)")
	flag.Parse()

	logger := logging.Setup("platformd", os.Getenv("PLATFORM_ENV"))

	if err := run(*configPath, *inMemory, logger); err != nil {
		logger.Error("platformd exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, inMemory bool, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		shutdown, err := otelinit.Init(context.Background(), otelinit.Config{
			ServiceName: "platformd",
			Environment: os.Getenv("PLATFORM_ENV"),
			Endpoint:    endpoint,
			Insecure:    true,
			Headers:     otelinit.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	var db storage.Database
	if inMemory {
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open ledger db: %w", err)
		}
		db = ldb
	}
	defer db.Close()

	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		return fmt.Errorf("open state trie: %w", err)
	}
	manager := state.NewManager(tr)
	if _, ok, err := manager.StateVersion(); err != nil {
		return err
	} else if !ok {
		// Fresh ledger: stamp the schema before anything else touches it.
		if err := manager.SetStateVersion(state.StateVersion); err != nil {
			return err
		}
	} else if err := state.EnsureStateVersion(tr, false); err != nil {
		return err
	}

	core, err := dialCore(cfg, logger)
	if err != nil {
		return err
	}
	if core != nil {
		lock, err := core.GetBestChainLock(context.Background())
		if err != nil {
			return fmt.Errorf("probe core chain lock: %w", err)
		}
		logger.Info("core chain observed", "chainlock_height", lock.Height)
	}

	feeTable := fees.Table{
		CreditsPerRead:        cfg.FeePerReadOp,
		CreditsPerWrite:       cfg.FeePerWriteOp,
		CreditsPerHash:        cfg.FeePerHashOp,
		CreditsPerSignature:   cfg.FeePerSignatureOp,
		CreditsPerStorageByte: cfg.FeePerByte,
		CreditsPerDuff:        cfg.CreditsPerDuff,
	}

	orch := orchestrator.New(manager, feeTable, cfg.PlatformVersion, nil, logger)
	orch.MinimumBalancePreCheckVersion = cfg.MinimumBalancePreCheckVersion

	node := &node{
		logger:   logger,
		cfg:      cfg,
		epochs:   epoch.DefaultConfig(),
		orch:     orch,
		bus:      eventbus.New(),
		feeTable: feeTable,
		authKey:  controlSecret(cfg.ValidatorKey),
	}
	node.producer = newBlockProducer("orchestrator", node.bus)
	node.bus.AddProducer(node.producer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: cfg.RPCAddress, Handler: node.routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Info("control surface listening", "addr", cfg.RPCAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("control surface failed", "error", err)
		}
	}()

	node.blockLoop(ctx)
	return nil
}

// dialCore resolves the Core RPC collaborator for the devnet harness: a
// yaml fixture stub when PLATFORM_CORE_FIXTURE points at one, optionally
// discovering the (unused-by-the-stub) endpoint list through the seed DNS
// authority when CorePeerAddress is of the form "seed://fqdn@nameserver".
// A node with neither configured runs without a Core view, which is fine
// for a devnet — STEP itself never talks to Core (spec §1).
func dialCore(cfg *config.Config, logger *slog.Logger) (corerpc.Client, error) {
	if addr := cfg.CorePeerAddress; strings.HasPrefix(addr, "seed://") {
		spec := strings.TrimPrefix(addr, "seed://")
		fqdn, nameserver, ok := strings.Cut(spec, "@")
		if !ok {
			return nil, fmt.Errorf("seed core address must be seed://fqdn@nameserver, got %q", addr)
		}
		endpoints, err := corerpc.SeedResolver{Nameserver: nameserver}.ResolveEndpoints(fqdn)
		if err != nil {
			return nil, fmt.Errorf("resolve core seeds: %w", err)
		}
		logger.Info("core endpoints resolved", "count", len(endpoints), "first", endpoints[0])
	}

	fixturePath := os.Getenv("PLATFORM_CORE_FIXTURE")
	if fixturePath == "" {
		return nil, nil
	}
	fx, err := fixtures.Load(fixturePath)
	if err != nil {
		return nil, err
	}
	return fixtures.NewStub(fx), nil
}

// controlSecret derives the HMAC key guarding the control surface from the
// validator key so a fresh devnet needs no extra secret distribution;
// platformctl derives the same value from the shared config file.
func controlSecret(validatorKeyHex string) []byte {
	sum := sha256.Sum256([]byte("platform-control:" + validatorKeyHex))
	return sum[:]
}

type node struct {
	logger   *slog.Logger
	cfg      *config.Config
	epochs   epoch.Config
	orch     *orchestrator.Orchestrator
	bus      *eventbus.Bus
	producer *blockProducer
	feeTable fees.Table
	authKey  []byte

	mu      sync.Mutex
	pending []*wire.StateTransition
	height  uint64
	epochStartMs uint64
}

// blockLoop drives one ProcessBlock per interval over whatever the pre-screen
// admitted since the last block. Strictly serial across blocks (spec §5).
func (n *node) blockLoop(ctx context.Context) {
	ticker := time.NewTicker(blockInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n.mu.Lock()
			txs := n.pending
			n.pending = nil
			n.height++
			height := n.height
			nowMs := uint64(now.UnixMilli())
			if epoch.IsBoundary(n.epochs, height) || n.epochStartMs == 0 {
				n.epochStartMs = nowMs
			}
			ep := epoch.ForHeight(n.epochs, height, n.epochStartMs)
			n.mu.Unlock()

			if len(txs) == 0 {
				continue
			}
			info := orchestrator.BlockInfo{Height: height, TimeMs: nowMs, Epoch: ep.Index}
			result, err := n.orch.ProcessBlock(ctx, info, txs)
			if err != nil {
				n.logger.Error("block failed, transitions dropped", "height", height, "error", err)
				continue
			}
			for _, tr := range result.Results {
				if tr.Bucket == orchestrator.BucketValid {
					observability.Events().RecordTransition(tr.Event.Action.Kind.String())
				}
			}
			n.producer.publishBlock(result, info)
		}
	}
}

func (n *node) prescreen() *mempool.Prescreen {
	snapshot := n.orch.Ledger()
	deps := orchestrator.DepsFor(snapshot, n.feeTable, n.cfg.PlatformVersion, n.cfg.MinimumBalancePreCheckVersion)
	return mempool.NewPrescreen(deps, nil, 0, 10, 20)
}

func (n *node) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	mux.HandleFunc("/status", n.authenticated(n.handleStatus))
	mux.HandleFunc("/submit", n.authenticated(n.handleSubmit))
	return mux
}

func (n *node) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return n.authKey, nil
		})
		if err != nil || !token.Valid {
			observability.ModuleMetrics().Observe("control", r.URL.Path, http.StatusUnauthorized, time.Since(started))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
		observability.ModuleMetrics().Observe("control", r.URL.Path, http.StatusOK, time.Since(started))
	}
}

func (n *node) handleStatus(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	height := n.height
	queued := len(n.pending)
	n.mu.Unlock()
	resp := map[string]any{
		"height":  height,
		"queued":  queued,
		"root":    n.orch.Ledger().Root().Hex(),
		"version": n.cfg.PlatformVersion,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *node) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		http.Error(w, "body must be hex transition bytes", http.StatusBadRequest)
		return
	}

	check, err := n.prescreen().Check(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := map[string]any{"verdict": check.Verdict.String()}
	if check.DomainErr != nil {
		resp["error"] = check.DomainErr.Error()
	}
	if check.Verdict == mempool.VerdictAdmit {
		tx, err := wire.Decode(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n.mu.Lock()
		n.pending = append(n.pending, tx)
		n.mu.Unlock()
		resp["fee_preview"] = map[string]uint64{
			"processing": check.FeePreview.ProcessingFee,
			"storage":    check.FeePreview.StorageFee,
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// blockProducer adapts the block loop into an eventbus.Producer: block
// results fan out to every subscriber whose filter matches.
type blockProducer struct {
	id  string
	bus *eventbus.Bus

	mu   sync.Mutex
	subs map[string]eventbus.Filter
}

func newBlockProducer(id string, bus *eventbus.Bus) *blockProducer {
	return &blockProducer{id: id, bus: bus, subs: make(map[string]eventbus.Filter)}
}

func (p *blockProducer) ID() string { return p.id }

func (p *blockProducer) AddSubscription(clientSubscriptionID string, filter eventbus.Filter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[clientSubscriptionID] = filter
	return nil
}

func (p *blockProducer) RemoveSubscription(clientSubscriptionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs, clientSubscriptionID)
	return nil
}

// BlockEvent is the payload published after every processed block.
type BlockEvent struct {
	Height        uint64
	Root          string
	ValidCount    int
	InvalidPaid   int
	InvalidUnpaid int
}

func (p *blockProducer) publishBlock(result orchestrator.BlockResult, info orchestrator.BlockInfo) {
	p.bus.Publish(eventbus.Event{ProducerID: p.id, Payload: BlockEvent{
		Height:        info.Height,
		Root:          result.Root.Hex(),
		ValidCount:    result.ValidCount,
		InvalidPaid:   result.PaidCount,
		InvalidUnpaid: result.UnpaidCount,
	}})
}
