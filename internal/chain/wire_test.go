package chain

import "testing"

func sampleBlockID(seq uint32) BlockIdExt {
	id := BlockIdExt{ShardIdent: ShardIdent{Workchain: MasterchainID, Shard: 0x8000000000000000}, SeqNo: seq}
	id.RootHash[0] = byte(seq)
	id.FileHash[0] = byte(seq + 1)
	return id
}

func TestPreparedRoundTrip(t *testing.T) {
	for _, found := range []bool{true, false} {
		p := Prepared{Found: found}
		decoded, err := DecodePrepared(p.Encode())
		if err != nil {
			t.Fatalf("DecodePrepared: %v", err)
		}
		if decoded != p {
			t.Fatalf("round trip Found=%v got %v", found, decoded)
		}
	}
}

func TestDecodePreparedEmptyIsError(t *testing.T) {
	if _, err := DecodePrepared(nil); err == nil {
		t.Fatalf("expected error decoding empty Prepared payload")
	}
}

func TestDataFullRoundTripEmpty(t *testing.T) {
	encoded := EncodeDataFull(DataFull{Found: false})
	decoded, err := DecodeDataFull(encoded)
	if err != nil {
		t.Fatalf("DecodeDataFull: %v", err)
	}
	if decoded.Found {
		t.Fatalf("decoded.Found = true, want false")
	}
}

func TestDataFullRoundTripFound(t *testing.T) {
	id := sampleBlockID(7)
	block := []byte{1, 2, 3, 4, 5}
	encoded := EncodeDataFull(DataFull{Found: true, BlockID: id, Block: block})

	decoded, err := DecodeDataFull(encoded)
	if err != nil {
		t.Fatalf("DecodeDataFull: %v", err)
	}
	if !decoded.Found || decoded.BlockID != id {
		t.Fatalf("decoded id mismatch: %+v", decoded)
	}
	if string(decoded.Block) != string(block) {
		t.Fatalf("decoded block = %v, want %v", decoded.Block, block)
	}
}

func TestDataFullTruncatedIsParseError(t *testing.T) {
	id := sampleBlockID(1)
	encoded := EncodeDataFull(DataFull{Found: true, BlockID: id, Block: []byte{9, 9, 9}})
	truncated := encoded[:len(encoded)-2]
	if _, err := DecodeDataFull(truncated); err == nil {
		t.Fatalf("expected parse error on truncated DataFull payload")
	}
}

func TestQueryEncodeDecodeBlockID(t *testing.T) {
	id := sampleBlockID(42)
	q := PrepareBlockQuery{BlockID: id}.Encode()

	decoded, rest, err := getBlockID(q)
	if err != nil {
		t.Fatalf("getBlockID: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("unexpected trailing bytes: %d", len(rest))
	}
	if decoded != id {
		t.Fatalf("decoded id = %+v, want %+v", decoded, id)
	}
}
