package chain

import (
	"encoding/binary"
	"fmt"
)

// This file implements the small wire encoding used for the three queries
// the block fetcher issues (PrepareBlock, RpcDownloadBlock,
// DownloadNextBlockFull) and their responses. The real TON TL schema for
// these calls is explicitly out of scope (spec §1); what matters here is
// that encoding and decoding agree and that malformed input is reported as
// a permanent parse error rather than silently accepted.

func putBlockID(buf []byte, id BlockIdExt) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(id.Workchain))
	buf = append(buf, tmp[:]...)
	var shard [8]byte
	binary.BigEndian.PutUint64(shard[:], id.Shard)
	buf = append(buf, shard[:]...)
	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], id.SeqNo)
	buf = append(buf, seq[:]...)
	buf = append(buf, id.RootHash[:]...)
	buf = append(buf, id.FileHash[:]...)
	return buf
}

const blockIDSize = 4 + 8 + 4 + 32 + 32

func getBlockID(buf []byte) (BlockIdExt, []byte, error) {
	if len(buf) < blockIDSize {
		return BlockIdExt{}, nil, fmt.Errorf("chain: short buffer for block id")
	}
	var id BlockIdExt
	id.Workchain = int32(binary.BigEndian.Uint32(buf[0:4]))
	id.Shard = binary.BigEndian.Uint64(buf[4:12])
	id.SeqNo = binary.BigEndian.Uint32(buf[12:16])
	copy(id.RootHash[:], buf[16:48])
	copy(id.FileHash[:], buf[48:80])
	return id, buf[80:], nil
}

// PrepareBlockQuery asks a peer whether it has a specific block ready to
// download over RLDP.
type PrepareBlockQuery struct {
	BlockID BlockIdExt
}

func (q PrepareBlockQuery) Encode() []byte {
	return putBlockID(make([]byte, 0, blockIDSize), q.BlockID)
}

// Prepared is the response to PrepareBlockQuery.
type Prepared struct {
	Found bool
}

func DecodePrepared(buf []byte) (Prepared, error) {
	if len(buf) < 1 {
		return Prepared{}, fmt.Errorf("chain: empty Prepared response")
	}
	return Prepared{Found: buf[0] != 0}, nil
}

func (p Prepared) Encode() []byte {
	if p.Found {
		return []byte{1}
	}
	return []byte{0}
}

// RpcDownloadBlockQuery requests the raw bytes of a known block over RLDP.
type RpcDownloadBlockQuery struct {
	BlockID BlockIdExt
}

func (q RpcDownloadBlockQuery) Encode() []byte {
	return putBlockID(make([]byte, 0, blockIDSize), q.BlockID)
}

// DownloadNextBlockFullQuery requests the block immediately following
// PrevBlockID, if the peer has produced it yet.
type DownloadNextBlockFullQuery struct {
	PrevBlockID BlockIdExt
}

func (q DownloadNextBlockFullQuery) Encode() []byte {
	return putBlockID(make([]byte, 0, blockIDSize), q.PrevBlockID)
}

// DataFull is the response to DownloadNextBlockFullQuery.
type DataFull struct {
	Found   bool
	BlockID BlockIdExt
	Block   []byte
}

func DecodeDataFull(buf []byte) (DataFull, error) {
	if len(buf) < 1 {
		return DataFull{}, fmt.Errorf("chain: empty DataFull response")
	}
	if buf[0] == 0 {
		return DataFull{Found: false}, nil
	}
	id, rest, err := getBlockID(buf[1:])
	if err != nil {
		return DataFull{}, fmt.Errorf("chain: decode DataFull: %w", err)
	}
	if len(rest) < 4 {
		return DataFull{}, fmt.Errorf("chain: truncated DataFull payload")
	}
	n := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint32(len(rest)) < n {
		return DataFull{}, fmt.Errorf("chain: truncated DataFull block bytes")
	}
	return DataFull{Found: true, BlockID: id, Block: append([]byte(nil), rest[:n]...)}, nil
}

func EncodeDataFull(d DataFull) []byte {
	if !d.Found {
		return []byte{0}
	}
	buf := make([]byte, 0, 1+blockIDSize+4+len(d.Block))
	buf = append(buf, 1)
	buf = putBlockID(buf, d.BlockID)
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(d.Block)))
	buf = append(buf, n[:]...)
	buf = append(buf, d.Block...)
	return buf
}
