package head

import (
	"crypto/sha256"

	"github.com/rmourey26/hydra-sim/txmodel"
)

func sha256Sum(b []byte) [32]byte {
	return sha256.Sum256(b)
}

func inputSet(ins []txmodel.TxInput) map[txmodel.TxInput]struct{} {
	out := make(map[txmodel.TxInput]struct{}, len(ins))
	for _, in := range ins {
		out[in] = struct{}{}
	}
	return out
}

func subsetOf(small, big map[txmodel.TxInput]struct{}) bool {
	for k := range small {
		if _, ok := big[k]; !ok {
			return false
		}
	}
	return true
}

func unionInto(dst map[txmodel.TxInput]struct{}, src map[txmodel.TxInput]struct{}) {
	for k := range src {
		dst[k] = struct{}{}
	}
}

func removeFrom(dst map[txmodel.TxInput]struct{}, rm map[txmodel.TxInput]struct{}) {
	for k := range rm {
		delete(dst, k)
	}
}

func cloneInputSet(src map[txmodel.TxInput]struct{}) map[txmodel.TxInput]struct{} {
	out := make(map[txmodel.TxInput]struct{}, len(src))
	for k := range src {
		out[k] = struct{}{}
	}
	return out
}

func cloneRefSet(src map[txmodel.TxRef]struct{}) map[txmodel.TxRef]struct{} {
	out := make(map[txmodel.TxRef]struct{}, len(src))
	for k := range src {
		out[k] = struct{}{}
	}
	return out
}
