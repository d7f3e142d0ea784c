package model

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"
)

// ToggleWishlist removes productID when present and appends it otherwise.
// The input slice is not modified.  Applying it twice with the same id
// restores the original list.
func ToggleWishlist(list []uint64, productID uint64) []uint64 {
	out := make([]uint64, 0, len(list)+1)
	found := false
	for _, id := range list {
		if id == productID {
			found = true
			continue
		}
		out = append(out, id)
	}
	if !found {
		out = append(out, productID)
	}
	return out
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewReceiptID returns RCP-<YYYYMMDD>-<8 random base-36 chars>.  Receipt
// ids are advisory; collisions are not checked.
func NewReceiptID(now time.Time) (string, error) {
	return newReceiptID(now, rand.Reader)
}

func newReceiptID(now time.Time, r io.Reader) (string, error) {
	buf := make([]byte, 8)
	limit := big.NewInt(int64(len(base36)))
	for i := range buf {
		n, err := rand.Int(r, limit)
		if err != nil {
			return "", fmt.Errorf("receipt id: %w", err)
		}
		buf[i] = base36[n.Int64()]
	}
	return fmt.Sprintf("RCP-%s-%s", now.UTC().Format("20060102"), buf), nil
}
