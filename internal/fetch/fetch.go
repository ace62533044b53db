// Package fetch implements the block fetcher (C3): retrieving the next
// masterchain block and arbitrary shard/masterchain blocks by id, each
// with its own capped-exponential retry policy, backed by a small LRU
// cache so repeated lookups of a block already seen (e.g. by more than
// one shard-walk branch) skip the network.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/broxus/ton-subwalk/internal/chain"
	"github.com/broxus/ton-subwalk/internal/udprpc"
)

const blockCacheSize = 256

// Fetcher retrieves blocks over a resolved UDP RPC session.
type Fetcher struct {
	session *udprpc.NodeUdpRpc
	cache   *lru.Cache
}

func New(session *udprpc.NodeUdpRpc) (*Fetcher, error) {
	cache, err := lru.New(blockCacheSize)
	if err != nil {
		return nil, fmt.Errorf("fetch: build block cache: %w", err)
	}
	return &Fetcher{session: session, cache: cache}, nil
}

// GetNextBlock retrieves the block immediately following prevID,
// blocking with capped-exponential backoff until the peer has produced
// it (spec §4.3).
func (f *Fetcher) GetNextBlock(ctx context.Context, prevID chain.BlockIdExt) (*chain.BlockStuff, error) {
	timeouts := udprpc.BlockTimeouts
	var attempt uint64

	for {
		query := chain.DownloadNextBlockFullQuery{PrevBlockID: prevID}.Encode()
		answer, err := f.session.RldpQuery(ctx, query, attempt)
		if err != nil {
			return nil, fmt.Errorf("fetch: get_next_block rldp query: %w", err)
		}

		if answer != nil {
			full, err := chain.DecodeDataFull(answer)
			if err != nil {
				return nil, fmt.Errorf("fetch: get_next_block decode: %w", err)
			}
			if full.Found {
				block, err := chain.DecodeBlock(full.Block, full.BlockID)
				if err != nil {
					return nil, fmt.Errorf("fetch: get_next_block decode block: %w", err)
				}
				f.cache.Add(block.ID(), block)
				return block, nil
			}
		}

		if err := timeouts.SleepAndUpdate(ctx); err != nil {
			return nil, err
		}
		attempt++
	}
}

// GetBlock retrieves a specific block by id: stage A polls over ADNL
// until the peer reports it prepared, stage B downloads it over RLDP
// (spec §4.3).
func (f *Fetcher) GetBlock(ctx context.Context, id chain.BlockIdExt) (*chain.BlockStuff, error) {
	if cached, ok := f.cache.Get(id); ok {
		return cached.(*chain.BlockStuff), nil
	}

	prepareTimeouts := udprpc.BlockTimeouts
	for {
		query := chain.PrepareBlockQuery{BlockID: id}.Encode()
		answer, err := f.session.AdnlQuery(ctx, query, 1000*time.Millisecond)
		if errors.Is(err, udprpc.ErrTimeout) {
			// Transport timeout: retry with backoff, never surfaced
			// (spec §7).
			if err := prepareTimeouts.SleepAndUpdate(ctx); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch: get_block prepare query: %w", err)
		}
		prepared, err := chain.DecodePrepared(answer)
		if err != nil {
			return nil, fmt.Errorf("fetch: get_block decode prepared: %w", err)
		}
		if prepared.Found {
			break
		}
		if err := prepareTimeouts.SleepAndUpdate(ctx); err != nil {
			return nil, err
		}
	}

	downloadTimeouts := udprpc.BlockTimeouts
	var attempt uint64
	for {
		query := chain.RpcDownloadBlockQuery{BlockID: id}.Encode()
		answer, err := f.session.RldpQuery(ctx, query, attempt)
		if err != nil {
			return nil, fmt.Errorf("fetch: get_block download query: %w", err)
		}
		if answer != nil {
			block, err := chain.DecodeBlock(answer, id)
			if err != nil {
				return nil, fmt.Errorf("fetch: get_block decode block: %w", err)
			}
			f.cache.Add(block.ID(), block)
			return block, nil
		}
		if err := downloadTimeouts.SleepAndUpdate(ctx); err != nil {
			return nil, err
		}
		attempt++
	}
}
