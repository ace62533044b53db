package chain

import "sort"

// Edge is the "shards edge" from spec §3: for each shard, the sequence
// number of the shard-top block that was already included by a given
// masterchain height. It bounds backward shard-DAG traversal.
type Edge map[ShardIdent]uint32

// NewEdge builds an Edge from a shard->seqno snapshot (e.g. one produced by
// BlockStuff.ShardBlocksSeqNo).
func NewEdge(seqNos map[ShardIdent]uint32) Edge {
	e := make(Edge, len(seqNos))
	for shard, seqNo := range seqNos {
		e[shard] = seqNo
	}
	return e
}

// IsBefore reports whether id lies strictly after this edge in its shard:
// true means the walker should visit id (and then consider its parents).
//
// Lookup prefers an exact shard match. On miss (a post-split/merge block),
// any intersecting shard is accepted; candidates are visited in a
// deterministic order (sorted by shard key) so traversal is reproducible
// across runs, per spec §9.
func (e Edge) IsBefore(id BlockIdExt) bool {
	if topSeqNo, ok := e[id.ShardIdent]; ok {
		return topSeqNo < id.SeqNo
	}

	shards := make([]ShardIdent, 0, len(e))
	for shard := range e {
		shards = append(shards, shard)
	}
	sort.Slice(shards, func(i, j int) bool {
		if shards[i].Workchain != shards[j].Workchain {
			return shards[i].Workchain < shards[j].Workchain
		}
		return shards[i].Shard < shards[j].Shard
	})

	for _, shard := range shards {
		if shard.Intersects(id.ShardIdent) {
			return e[shard] < id.SeqNo
		}
	}
	return false
}

// StoredMcBlock is the cached "last masterchain block": the value swapped
// in atomically by the walker after each completed step.
type StoredMcBlock struct {
	GenUtime   uint32
	Data       *BlockStuff
	ShardsEdge Edge
}
