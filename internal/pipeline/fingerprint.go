package pipeline

import (
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/listenupapp/restalign/internal/rests"
)

// Fingerprint returns a stable BLAKE2b-256 digest of the run inputs.
// Two requests with the same sequences and options share a fingerprint.
func Fingerprint(req Request) string {
	h, _ := blake2b.New256(nil) // only fails for keys longer than 64 bytes

	writeSequence(h, req.A)
	writeSequence(h, req.B)
	writeFloat(h, req.Epsilon)
	writeBool(h, req.ConvertUnits)
	writeBool(h, req.Coalesce)
	writeString(h, req.Reference)

	return hex.EncodeToString(h.Sum(nil))
}

func writeSequence(h hash.Hash, seq rests.Sequence) {
	writeString(h, seq.Label)
	writeString(h, string(seq.Unit))
	writeUint(h, uint64(len(seq.Intervals)))
	for _, iv := range seq.Intervals {
		writeFloat(h, iv.Start)
		writeFloat(h, iv.End)
	}
}

func writeString(h hash.Hash, s string) {
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}

func writeFloat(h hash.Hash, v float64) {
	writeUint(h, math.Float64bits(v))
}

func writeBool(h hash.Hash, b bool) {
	if b {
		h.Write([]byte{1})
		return
	}
	h.Write([]byte{0})
}

func writeUint(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}
