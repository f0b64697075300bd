package storage

import (
	"encoding/binary"
	"fmt"
)

func encodeSeq(id uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], id)
	return k[:]
}

func decodeSeq(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("sequence value has %d bytes, want 8", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
