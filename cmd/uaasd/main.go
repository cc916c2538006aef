// UaaS indexer daemon.
//
// Usage:
//
//	uaasd [--network=mainnet|testnet|stn] [--config=path] [--datadir=path]
//	uaasd --help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gcash/bchd/chaincfg"
	"github.com/klingon-tech/uaas/config"
	"github.com/klingon-tech/uaas/internal/addrmgr"
	"github.com/klingon-tech/uaas/internal/analyser"
	"github.com/klingon-tech/uaas/internal/blockmgr"
	"github.com/klingon-tech/uaas/internal/collection"
	"github.com/klingon-tech/uaas/internal/dbwriter"
	"github.com/klingon-tech/uaas/internal/log"
	"github.com/klingon-tech/uaas/internal/logic"
	"github.com/klingon-tech/uaas/internal/peer"
	"github.com/klingon-tech/uaas/internal/restapi"
	"github.com/klingon-tech/uaas/internal/store"
	"github.com/klingon-tech/uaas/internal/threadmgr"
	"github.com/klingon-tech/uaas/internal/txstore"
	"github.com/klingon-tech/uaas/internal/utxoset"
	"github.com/klingon-tech/uaas/pkg/types"
)

func main() {
	// ── 1. Load config (defaults → file → flags) ────────────────────────
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Init logger ───────────────────────────────────────────────────
	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log.Logger.Info().Str("network", string(cfg.Network)).Msg("starting uaasd")

	// ── 3. Open the relational store and database writer ───────────────
	db, err := store.Open(cfg.EffectiveDatabaseURL())
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("opening database")
	}
	defer db.Close()

	q := store.NewQueries(db)
	writer := dbwriter.New(q, cfg.Database.Retries, cfg.Database.MsDelay)
	go writer.Run()

	// ── 4. Build components B-G ──────────────────────────────────────────
	utxo := utxoset.New()
	txStore := txstore.New()
	addrMgr := addrmgr.New()

	params := networkParams(cfg.Network)
	defs := make([]collection.Definition, 0, len(cfg.Collections))
	for _, cc := range cfg.Collections {
		def := collection.Definition{Name: cc.Name, TrackDescendants: cc.TrackDescendants, LockingScriptRegex: cc.Regex}
		if cc.Address != "" {
			pattern, err := collection.AddressToLockingScriptRegex(cc.Address, params)
			if err != nil {
				log.Logger.Fatal().Err(err).Str("name", cc.Name).Msg("decoding collection address")
			}
			def.LockingScriptRegex = pattern
		}
		defs = append(defs, def)
	}
	collections, err := collection.NewRegistry(defs, cfg.DynamicConfigFile)
	if err != nil {
		log.Logger.Fatal().Err(err).Msg("building collection registry")
	}
	if err := collections.LoadFromStore(q); err != nil {
		log.Logger.Fatal().Err(err).Msg("loading dynamic monitors")
	}

	var startHash types.Hash
	if cfg.Net.StartBlockHash != "" {
		startHash, err = types.HexToHash(cfg.Net.StartBlockHash)
		if err != nil {
			log.Logger.Fatal().Err(err).Msg("invalid start block hash")
		}
	}
	blockMgr := blockmgr.New(startHash, cfg.Net.StartBlockHeight, cfg.Net.SaveBlocks, cfg.Net.BlockFile)
	if cfg.Net.StartupLoadFromDatabase {
		if err := loadStartupState(q, blockMgr, txStore, utxo); err != nil {
			log.Logger.Warn().Err(err).Msg("loading startup state from database")
		}
	}

	a := analyser.New(utxo, txStore, collections)

	// ── 5. Build Logic and wire the REST + peer + thread-manager layer ──
	l := logic.New(blockMgr, a, addrMgr, writer, cfg.Orphan.Detect)

	restEvents := make(chan threadmgr.RestEvent, 64)
	tm := threadmgr.NewManager(restEvents)

	api := restapi.New(restEvents)
	go func() {
		if err := api.Run(cfg.REST.Addr); err != nil {
			log.Logger.Error().Err(err).Msg("REST server exited")
		}
	}()

	tm.ConfigureDialing(cfg.Net.IPs, cfg.Net.Port, cfg.UserAgent, timeoutDuration(cfg.Net.TimeoutPeriod), params)
	for _, ip := range cfg.Net.IPs {
		conn, err := peer.NewConnection(ip, cfg.Net.Port, cfg.UserAgent, timeoutDuration(cfg.Net.TimeoutPeriod), tm.PeerEvents(), params)
		if err != nil {
			log.Logger.Warn().Err(err).Str("ip", ip).Msg("failed to connect to peer")
			continue
		}
		tm.Tracker().Add(ip, &threadmgr.PeerHandle{IP: ip, Status: threadmgr.Started, Conn: conn})
	}

	// ── 6. Signal handling / graceful shutdown ──────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		tm.Tracker().StopAll()
		l.Stop()
		if err := blockMgr.Close(); err != nil {
			log.Logger.Warn().Err(err).Msg("closing block file")
		}
		os.Exit(0)
	}()

	tm.Run(l)
}

// loadStartupState seeds the Block Manager's header chain, the Tx Store's
// confirmed/mempool hash sets, and the Utxo Set's index from persisted rows
// (§6 startup_load_from_database; §4.F setup()'s "optionally loads
// confirmed-tx hashes" to skip a full rescan on fast restarts).
func loadStartupState(q *store.Queries, bm *blockmgr.Manager, txStore *txstore.Store, utxo *utxoset.Set) error {
	headers, err := q.AllBlockHeaders()
	if err != nil {
		return fmt.Errorf("loading block headers: %w", err)
	}
	bm.LoadHeaders(headers)

	confirmed, err := q.AllConfirmedTxHashes()
	if err != nil {
		return fmt.Errorf("loading confirmed tx hashes: %w", err)
	}
	txStore.LoadConfirmed(confirmed)

	mempool, err := q.AllMempoolTxHashes()
	if err != nil {
		return fmt.Errorf("loading mempool tx hashes: %w", err)
	}
	txStore.LoadMempool(mempool)

	utxoRows, err := q.AllUtxoEntries()
	if err != nil {
		return fmt.Errorf("loading utxo entries: %w", err)
	}
	utxo.Load(utxoRows)

	return nil
}

// networkParams maps the configured network selector to its bchd chain
// parameters, used to decode collection addresses and build peer handshakes.
func networkParams(network config.NetworkType) *chaincfg.Params {
	switch network {
	case config.Testnet:
		return &chaincfg.TestNet3Params
	case config.STN:
		return &chaincfg.TestNet3Params
	default:
		return &chaincfg.MainNetParams
	}
}

func timeoutDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
