package chain

import (
	"encoding/binary"
	"fmt"
)

// EncodeBlock and DecodeBlock are the two halves of this repo's stand-in
// block wire format (see wire.go for why there is one). EncodeBlock is
// used by test doubles that play the role of a TON node; DecodeBlock is
// used by internal/fetch once RLDP/ADNL hands back raw bytes.

func EncodeBlock(b *BlockStuff) []byte {
	buf := make([]byte, 0, 256)

	var genUtime [4]byte
	binary.BigEndian.PutUint32(genUtime[:], b.genUtime)
	buf = append(buf, genUtime[:]...)

	buf = putBlockID(buf, b.prev1)
	if b.prev2 != nil {
		buf = append(buf, 1)
		buf = putBlockID(buf, *b.prev2)
	} else {
		buf = append(buf, 0)
	}

	if b.shardBlocks != nil {
		buf = append(buf, 1)
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(b.shardBlocks)))
		buf = append(buf, n[:]...)
		for shard, id := range b.shardBlocks {
			var wc [4]byte
			binary.BigEndian.PutUint32(wc[:], uint32(shard.Workchain))
			buf = append(buf, wc[:]...)
			var sh [8]byte
			binary.BigEndian.PutUint64(sh[:], shard.Shard)
			buf = append(buf, sh[:]...)
			buf = putBlockID(buf, id)
		}
	} else {
		buf = append(buf, 0)
	}

	var nAccounts [4]byte
	binary.BigEndian.PutUint32(nAccounts[:], uint32(len(b.accountBlocks)))
	buf = append(buf, nAccounts[:]...)
	for _, ab := range b.accountBlocks {
		buf = append(buf, ab.Address[:]...)
		var nTx [4]byte
		binary.BigEndian.PutUint32(nTx[:], uint32(len(ab.Transactions)))
		buf = append(buf, nTx[:]...)
		for _, tx := range ab.Transactions {
			buf = append(buf, tx.Hash[:]...)
			buf = append(buf, tx.Tx.Account[:]...)
			var lt [8]byte
			binary.BigEndian.PutUint64(lt[:], tx.Tx.LT)
			buf = append(buf, lt[:]...)
			if tx.Tx.InMsg != nil {
				buf = append(buf, 1)
				buf = append(buf, tx.Tx.InMsg.Hash[:]...)
			} else {
				buf = append(buf, 0)
			}
		}
	}
	return buf
}

// DecodeBlock parses bytes produced by EncodeBlock into a BlockStuff
// carrying the externally supplied id (mirroring BlockStuff::new(block,
// block_id) in the source: the id comes from the PrepareBlock/
// DownloadNextBlockFull response, not from the block payload itself).
func DecodeBlock(buf []byte, id BlockIdExt) (*BlockStuff, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("chain: truncated block header")
	}
	genUtime := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]

	prev1, rest, err := getBlockID(buf)
	if err != nil {
		return nil, fmt.Errorf("chain: decode prev1: %w", err)
	}
	buf = rest

	if len(buf) < 1 {
		return nil, fmt.Errorf("chain: truncated prev2 flag")
	}
	var prev2 *BlockIdExt
	hasPrev2 := buf[0]
	buf = buf[1:]
	if hasPrev2 != 0 {
		p2, rest, err := getBlockID(buf)
		if err != nil {
			return nil, fmt.Errorf("chain: decode prev2: %w", err)
		}
		prev2 = &p2
		buf = rest
	}

	if len(buf) < 1 {
		return nil, fmt.Errorf("chain: truncated shard-blocks flag")
	}
	hasShards := buf[0]
	buf = buf[1:]
	var shardBlocks map[ShardIdent]BlockIdExt
	if hasShards != 0 {
		if len(buf) < 4 {
			return nil, fmt.Errorf("chain: truncated shard-blocks count")
		}
		n := binary.BigEndian.Uint32(buf[:4])
		buf = buf[4:]
		shardBlocks = make(map[ShardIdent]BlockIdExt, n)
		for i := uint32(0); i < n; i++ {
			if len(buf) < 12 {
				return nil, fmt.Errorf("chain: truncated shard key")
			}
			wc := int32(binary.BigEndian.Uint32(buf[0:4]))
			shard := binary.BigEndian.Uint64(buf[4:12])
			buf = buf[12:]
			blkID, rest, err := getBlockID(buf)
			if err != nil {
				return nil, fmt.Errorf("chain: decode shard top: %w", err)
			}
			buf = rest
			shardBlocks[ShardIdent{Workchain: wc, Shard: shard}] = blkID
		}
	}

	if len(buf) < 4 {
		return nil, fmt.Errorf("chain: truncated account-blocks count")
	}
	nAccounts := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	accountBlocks := make([]AccountBlock, 0, nAccounts)
	for i := uint32(0); i < nAccounts; i++ {
		if len(buf) < 32+4 {
			return nil, fmt.Errorf("chain: truncated account block")
		}
		var addr AccountID
		copy(addr[:], buf[:32])
		buf = buf[32:]
		nTx := binary.BigEndian.Uint32(buf[:4])
		buf = buf[4:]

		txs := make([]AccountTransaction, 0, nTx)
		for j := uint32(0); j < nTx; j++ {
			if len(buf) < 32+32+8+1 {
				return nil, fmt.Errorf("chain: truncated transaction")
			}
			var hash TxHash
			copy(hash[:], buf[:32])
			buf = buf[32:]
			var account AccountID
			copy(account[:], buf[:32])
			buf = buf[32:]
			lt := binary.BigEndian.Uint64(buf[:8])
			buf = buf[8:]
			hasInMsg := buf[0]
			buf = buf[1:]
			var inMsg *InMsg
			if hasInMsg != 0 {
				if len(buf) < 32 {
					return nil, fmt.Errorf("chain: truncated in_msg hash")
				}
				var h MessageHash
				copy(h[:], buf[:32])
				buf = buf[32:]
				inMsg = &InMsg{Hash: h}
			}
			txs = append(txs, AccountTransaction{
				Hash: hash,
				Tx:   Transaction{Account: account, LT: lt, InMsg: inMsg},
			})
		}
		accountBlocks = append(accountBlocks, AccountBlock{Address: addr, Transactions: txs})
	}

	return NewBlockStuff(id, genUtime, prev1, prev2, accountBlocks, shardBlocks), nil
}
