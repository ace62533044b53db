package chain

import "fmt"

// Address is a workchain-qualified account address.
type Address struct {
	Workchain int32
	Account   AccountID
}

// Message is the minimal view of a TON message the registry needs: whether
// it is an external-in message, and its destination.
type Message struct {
	ExternalIn bool
	Dst        *Address
	Body       []byte
}

// SerializeForHash returns the bytes whose hash is the message's identity
// for matching purposes. The real wire format (a BOC-serialized cell) is
// out of scope; callers get a stable hash over the message body and
// destination, which is all the engine needs to correlate a send with the
// transaction that consumes it.
func (m *Message) SerializeForHash() []byte {
	out := make([]byte, 0, len(m.Body)+37)
	if m.Dst != nil {
		var wc [4]byte
		wc[0] = byte(m.Dst.Workchain >> 24)
		wc[1] = byte(m.Dst.Workchain >> 16)
		wc[2] = byte(m.Dst.Workchain >> 8)
		wc[3] = byte(m.Dst.Workchain)
		out = append(out, wc[:]...)
		out = append(out, m.Dst.Account[:]...)
	}
	out = append(out, m.Body...)
	return out
}

// InMsg is the inbound message reference carried by a Transaction.
type InMsg struct {
	Hash MessageHash
}

// Transaction is the minimal decoded transaction the walker needs to
// deliver to a matched waiter.
type Transaction struct {
	Account AccountID
	LT      uint64
	InMsg   *InMsg
}

// TransactionWithHash pairs a transaction with the hash of its own cell —
// the value delivered to a resolved send_message call.
type TransactionWithHash struct {
	Hash TxHash
	Data Transaction
}

// AccountTransaction is one entry inside an account block: the cell hash of
// the transaction plus its decoded form.
type AccountTransaction struct {
	Hash TxHash
	Tx   Transaction
}

// AccountBlock groups every transaction touching one account within a
// block, in the order they appear in the block's account-blocks section.
type AccountBlock struct {
	Address      AccountID
	Transactions []AccountTransaction
}

// BriefInfo is the subset of a block header needed to continue a DAG walk:
// generation time and up to two previous block ids.
type BriefInfo struct {
	GenUtime uint32
	Prev1    BlockIdExt
	Prev2    *BlockIdExt
}

// BlockStuff is an opaque decoded block. It is immutable once constructed.
type BlockStuff struct {
	id            BlockIdExt
	genUtime      uint32
	prev1         BlockIdExt
	prev2         *BlockIdExt
	accountBlocks []AccountBlock
	shardBlocks   map[ShardIdent]BlockIdExt // masterchain blocks only
}

// NewBlockStuff builds a BlockStuff from already-decoded fields. The
// fetcher (internal/fetch) is responsible for turning wire bytes into
// these fields via chain.DecodeBlock.
func NewBlockStuff(id BlockIdExt, genUtime uint32, prev1 BlockIdExt, prev2 *BlockIdExt, accountBlocks []AccountBlock, shardBlocks map[ShardIdent]BlockIdExt) *BlockStuff {
	return &BlockStuff{
		id:            id,
		genUtime:      genUtime,
		prev1:         prev1,
		prev2:         prev2,
		accountBlocks: accountBlocks,
		shardBlocks:   shardBlocks,
	}
}

func (b *BlockStuff) ID() BlockIdExt { return b.id }

// ReadBriefInfo mirrors the source's read_brief_info view.
func (b *BlockStuff) ReadBriefInfo() BriefInfo {
	return BriefInfo{GenUtime: b.genUtime, Prev1: b.prev1, Prev2: b.prev2}
}

// ReadInfo mirrors the source's read_info view (generation time only).
func (b *BlockStuff) ReadInfo() (genUtime uint32) { return b.genUtime }

// AccountBlocks mirrors the source's extra().read_account_blocks() view.
func (b *BlockStuff) AccountBlocks() []AccountBlock { return b.accountBlocks }

// IsMasterchain reports whether this block carries shard-tops information.
func (b *BlockStuff) IsMasterchain() bool { return b.id.Workchain == MasterchainID }

// ShardBlocks returns the latest shard block id per shard, as recorded in
// this masterchain block. Only valid when IsMasterchain() is true.
func (b *BlockStuff) ShardBlocks() (map[ShardIdent]BlockIdExt, error) {
	if !b.IsMasterchain() {
		return nil, fmt.Errorf("chain: ShardBlocks called on a non-masterchain block")
	}
	return b.shardBlocks, nil
}

// ShardBlocksSeqNo reduces ShardBlocks to just the sequence numbers, the
// form the shards edge is stored in.
func (b *BlockStuff) ShardBlocksSeqNo() (map[ShardIdent]uint32, error) {
	shards, err := b.ShardBlocks()
	if err != nil {
		return nil, err
	}
	out := make(map[ShardIdent]uint32, len(shards))
	for shard, id := range shards {
		out[shard] = id.SeqNo
	}
	return out, nil
}
