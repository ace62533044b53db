// Package walker implements the chain walker (C5): a background task
// that advances a cached masterchain tip, fans out into shard-chain DAG
// traversal bounded by the previous masterchain's shards edge, matches
// transactions against the pending-message registry, and expires
// messages by chain time.
package walker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rcrowley/go-metrics"

	"github.com/broxus/ton-subwalk/internal/chain"
	"github.com/broxus/ton-subwalk/internal/control"
	"github.com/broxus/ton-subwalk/internal/fetch"
	"github.com/broxus/ton-subwalk/internal/logging"
	"github.com/broxus/ton-subwalk/internal/registry"
)

const lastMcBlockTTL = 10 * time.Second

var (
	metricStepLatency = metrics.NewRegisteredTimer("walker.make_blocks_step", metrics.DefaultRegistry)
	metricPending     = metrics.NewRegisteredGauge("walker.pending_count", metrics.DefaultRegistry)
)

// Walker owns the cached masterchain tip and drives make_blocks_step in
// a loop, waking whenever the registry's pending counter transitions
// from zero to positive.
type Walker struct {
	fetcher  *fetch.Fetcher
	registry *registry.Registry
	control  control.NodeTcpRpc

	tip atomic.Pointer[chain.StoredMcBlock]
}

func New(fetcher *fetch.Fetcher, reg *registry.Registry, ctl control.NodeTcpRpc) *Walker {
	return &Walker{fetcher: fetcher, registry: reg, control: ctl}
}

func (w *Walker) loadTip() *chain.StoredMcBlock {
	return w.tip.Load()
}

func (w *Walker) storeTip(tip *chain.StoredMcBlock) {
	w.tip.Store(tip)
}

// Run is the walker's main loop (spec §4.5). It returns when ctx is
// canceled — Go has no weak references, so cancellation is the explicit
// substitute for the source's weak-upgrade-returns-none exit condition
// (spec §9).
func (w *Walker) Run(ctx context.Context) {
	for {
		armed := w.registry.Arm()

		if w.registry.Count() > 0 {
			for {
				more, err := w.makeBlocksStep(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logging.Warn("make_blocks_step failed", "err", err)
					continue
				}
				if !more {
					break
				}
			}
		}

		select {
		case <-armed:
		case <-ctx.Done():
			return
		}
	}
}

// makeBlocksStep advances the cached tip by exactly one masterchain
// block and returns whether pending messages remain (spec §4.5).
func (w *Walker) makeBlocksStep(ctx context.Context) (bool, error) {
	start := time.Now()
	defer func() { metricStepLatency.UpdateSince(start) }()

	tip, err := w.getLastMcBlock(ctx)
	if err != nil {
		return false, fmt.Errorf("walker: get last mc block: %w", err)
	}

	nextMc, err := w.fetcher.GetNextBlock(ctx, tip.Data.ID())
	if err != nil {
		return false, fmt.Errorf("walker: get next mc block: %w", err)
	}

	shardTops, err := nextMc.ShardBlocks()
	if err != nil {
		return false, fmt.Errorf("walker: read shard blocks: %w", err)
	}
	nextMcUtime := nextMc.ReadInfo()

	type shardResult struct {
		shard  chain.ShardIdent
		blocks []*chain.BlockStuff
		err    error
	}

	results := make(chan shardResult, len(shardTops))
	var wg sync.WaitGroup
	for shard, top := range shardTops {
		shard, top := shard, top
		wg.Add(1)
		go func() {
			defer wg.Done()
			blocks, err := w.walkShard(ctx, top, tip.ShardsEdge)
			results <- shardResult{shard: shard, blocks: blocks, err: err}
		}()
	}
	go func() { wg.Wait(); close(results) }()

	perShard := make(map[chain.ShardIdent][]*chain.BlockStuff, len(shardTops))
	for r := range results {
		if r.err != nil {
			return false, fmt.Errorf("walker: walk shard %s: %w", r.shard, r.err)
		}
		perShard[r.shard] = r.blocks
	}

	shards := make([]chain.ShardIdent, 0, len(perShard))
	for shard := range perShard {
		shards = append(shards, shard)
	}
	sort.Slice(shards, func(i, j int) bool {
		if shards[i].Workchain != shards[j].Workchain {
			return shards[i].Workchain < shards[j].Workchain
		}
		return shards[i].Shard < shards[j].Shard
	})

	for _, shard := range shards {
		for _, block := range perShard[shard] {
			w.processBlock(block, shard.Workchain)
		}
	}
	w.processBlock(nextMc, chain.MasterchainID)

	w.registry.RemoveExpired(nextMcUtime)
	metricPending.Update(w.registry.Count())

	newEdge, err := nextMc.ShardBlocksSeqNo()
	if err != nil {
		return false, fmt.Errorf("walker: reduce shards edge: %w", err)
	}
	w.storeTip(&chain.StoredMcBlock{
		GenUtime:   nextMcUtime,
		Data:       nextMc,
		ShardsEdge: chain.NewEdge(newEdge),
	})

	return w.registry.Count() > 0, nil
}

// walkShard performs the backward DFS over one shard's block DAG,
// starting at top and stopping once the previous edge says a block was
// already included at or before the previous masterchain height (spec
// §4.5 step 4, §9 "shard-intersect fallback").
func (w *Walker) walkShard(ctx context.Context, top chain.BlockIdExt, previousEdge chain.Edge) ([]*chain.BlockStuff, error) {
	type stamped struct {
		genUtime uint32
		block    *chain.BlockStuff
	}

	stack := []chain.BlockIdExt{top}
	var collected []stamped

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		block, err := w.fetcher.GetBlock(ctx, id)
		if err != nil {
			return nil, err
		}
		brief := block.ReadBriefInfo()
		collected = append(collected, stamped{genUtime: brief.GenUtime, block: block})

		if previousEdge.IsBefore(brief.Prev1) {
			stack = append(stack, brief.Prev1)
		}
		if brief.Prev2 != nil && previousEdge.IsBefore(*brief.Prev2) {
			stack = append(stack, *brief.Prev2)
		}
	}

	sort.Slice(collected, func(i, j int) bool {
		if collected[i].genUtime != collected[j].genUtime {
			return collected[i].genUtime < collected[j].genUtime
		}
		return collected[i].block.ID().SeqNo < collected[j].block.ID().SeqNo
	})

	out := make([]*chain.BlockStuff, len(collected))
	for i, s := range collected {
		out[i] = s.block
	}
	return out, nil
}

// processBlock scans one block's account-blocks for in-message hashes
// matching pending entries in workchain's bucket, delivering a match for
// each hit (spec §4.5 "process_block").
func (w *Walker) processBlock(block *chain.BlockStuff, workchain int32) {
	for _, accountBlock := range block.AccountBlocks() {
		for _, tx := range accountBlock.Transactions {
			if tx.Tx.InMsg == nil {
				continue
			}
			w.registry.Match(workchain, accountBlock.Address, tx.Tx.InMsg.Hash, chain.TransactionWithHash{
				Hash: tx.Hash,
				Data: tx.Tx,
			})
		}
	}
}

// getLastMcBlock returns the cached tip if it is still fresh, otherwise
// asks the control channel for the node's current stats and installs a
// freshly fetched tip (spec §4.5 step 1).
func (w *Walker) getLastMcBlock(ctx context.Context) (*chain.StoredMcBlock, error) {
	if tip := w.loadTip(); tip != nil {
		if time.Unix(int64(tip.GenUtime), 0).Add(lastMcBlockTTL).After(time.Now()) {
			return tip, nil
		}
	}

	stats, err := w.control.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_stats: %w", err)
	}
	if stats.Status != control.StatusRunning {
		return nil, fmt.Errorf("node is not running (status=%s)", stats.Status)
	}

	block, err := w.fetcher.GetBlock(ctx, stats.LastMcBlock)
	if err != nil {
		return nil, fmt.Errorf("fetch last mc block: %w", err)
	}

	seqNos, err := block.ShardBlocksSeqNo()
	if err != nil {
		return nil, err
	}

	tip := &chain.StoredMcBlock{
		GenUtime:   block.ReadInfo(),
		Data:       block,
		ShardsEdge: chain.NewEdge(seqNos),
	}
	w.storeTip(tip)
	return tip, nil
}

// Bootstrap installs an already-known masterchain tip without going
// through getLastMcBlock, useful for tests and for Run's very first
// iteration when the caller already resolved the genesis tip.
func (w *Walker) Bootstrap(tip *chain.StoredMcBlock) {
	w.storeTip(tip)
}
