package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/latticenet/core/pkg/cell"
	"github.com/latticenet/core/pkg/config"
	"github.com/latticenet/core/pkg/consensus"
	"github.com/latticenet/core/pkg/crypto"
	"github.com/latticenet/core/pkg/peer"
	"github.com/latticenet/core/pkg/state"
	"github.com/latticenet/core/pkg/store"
	"github.com/latticenet/core/pkg/util"
)

func main() {
	cfg := config.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.LogFile)

	kp, err := loadOrCreateIdentity(cfg.SeedPath)
	if err != nil {
		sugar.Fatalw("identity_load_failed", "err", err)
	}
	sugar.Infow("identity_loaded", "address", cell.AddressFromAccountKey(kp.AccountKey()).String())

	raw, err := store.Open(cfg.StorePath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "err", err)
	}
	defer raw.Close()
	cs := store.NewCellStore(raw)

	rootPath := cfg.StorePath + ".root"
	p, err := loadOrCreatePeer(cs, rootPath, kp, cfg)
	if err != nil {
		sugar.Fatalw("peer_bootstrap_failed", "err", err)
	}
	sugar.Infow("peer_ready", "states", len(p.States), "results", len(p.Results))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := store.NewChannelSink(256)
	go func() {
		for n := range sink.C() {
			sugar.Debugw("novelty_announced", "hash", n.Hash.String(), "tag", fmt.Sprintf("%T", n.Cell))
		}
	}()

	metrics := util.NewMetrics()
	if cfg.MetricsAddr != "" {
		metrics.Serve(ctx, cfg.MetricsAddr)
		sugar.Infow("metrics_listening", "addr", cfg.MetricsAddr)
	}

	var clock util.Clock = util.RealClock{}

	for {
		select {
		case <-ctx.Done():
			sugar.Info("shutting_down")
			if _, err := p.PersistState(cs, sink); err != nil {
				sugar.Errorw("final_persist_failed", "err", err)
			}
			return
		case now := <-clock.After(cfg.MergeInterval):
			ts := now.UnixMilli()
			p = p.UpdateTimestamp(ts)

			block := consensus.Block{Timestamp: ts, PeerKey: kp.AccountKey(), Transactions: cell.EmptyVector}
			p = p.ProposeBlock(block)

			// No remote peers wired up yet: a single-node devnet merges
			// only against its own proposal, which a full stake share
			// finalizes immediately.
			appliedBefore := len(p.Results)
			merged, err := p.MergeBeliefs(ts, p.LatestState(), cs, func(msg string) { sugar.Info(msg) })
			metrics.MergeRounds.Inc()
			if err != nil {
				sugar.Errorw("merge_failed", "err", err)
				continue
			}
			p = merged
			for _, br := range p.Results[appliedBefore:] {
				for _, tr := range br.TxResults {
					metrics.JuiceUsedTotal.Add(float64(tr.JuiceUsed))
				}
			}
			metrics.ConsensusPoint.Set(float64(len(p.Results)))
			metrics.AccountCount.Set(float64(p.LatestState().Accounts.Count()))

			rootHash, err := p.PersistState(cs, sink)
			if err != nil {
				sugar.Errorw("persist_failed", "err", err)
				continue
			}
			if err := writeRootPointer(rootPath, rootHash); err != nil {
				sugar.Errorw("root_pointer_write_failed", "err", err)
			}
			sugar.Debugw("merge_round",
				"consensus_point", len(p.Results),
				"root", rootHash.String(),
				"now", now.Format(time.RFC3339))
		}
	}
}

// loadOrCreateIdentity loads a peer's Ed25519 seed from seedPath, or
// generates and persists a fresh one if the file does not exist.
func loadOrCreateIdentity(seedPath string) (*crypto.KeyPair, error) {
	seed, err := os.ReadFile(seedPath)
	if err == nil {
		return crypto.FromSeed(seed)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	kp, err := crypto.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(seedPath), 0755); err != nil {
		return nil, fmt.Errorf("seed directory: %w", err)
	}
	if err := os.WriteFile(seedPath, kp.Seed(), 0600); err != nil {
		return nil, fmt.Errorf("write seed: %w", err)
	}
	return kp, nil
}

// loadOrCreatePeer restores a Peer from the root hash recorded at
// rootPath, or bootstraps a fresh one from cfg.Genesis if no root is
// recorded yet.
func loadOrCreatePeer(cs *store.CellStore, rootPath string, kp *crypto.KeyPair, cfg config.Config) (peer.Peer, error) {
	if hash, ok, err := readRootPointer(rootPath); err != nil {
		return peer.Peer{}, err
	} else if ok {
		p, ok, err := peer.Restore(cs, hash, kp)
		if err != nil {
			return peer.Peer{}, fmt.Errorf("restore from %s: %w", hash, err)
		}
		if ok {
			return p, nil
		}
	}

	table := cfg.Genesis
	if len(table) == 0 {
		table = []state.StakeEntry{{
			Owner:   cell.AddressFromAccountKey(kp.AccountKey()),
			Balance: state.Gold,
			Stake:   1,
		}}
	}
	genesis := state.Genesis(table, cfg.GenesisTimestamp)
	return peer.Create(kp, genesis), nil
}

func readRootPointer(path string) (cell.Hash, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cell.Hash{}, false, nil
		}
		return cell.Hash{}, false, err
	}
	decoded, err := hex.DecodeString(string(raw))
	if err != nil || len(decoded) != 32 {
		return cell.Hash{}, false, fmt.Errorf("root pointer %s is malformed", path)
	}
	var h cell.Hash
	copy(h[:], decoded)
	return h, true, nil
}

func writeRootPointer(path string, h cell.Hash) error {
	return os.WriteFile(path, []byte(h.String()), 0644)
}
