package utils

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

const refAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Reference prefixes.
const (
	BookingRefPrefix = "CRS"
	OrderRefPrefix   = "ORD"
)

// RefGenerator produces human-readable unique references:
// prefix + last 8 digits of the millisecond clock + 8 random [A-Z0-9].
// The random tail carries the uniqueness; the clock part only keeps
// references roughly sortable.
type RefGenerator struct {
	prefix string
	now    func() time.Time
	rand   io.Reader
}

// NewRefGenerator returns a generator backed by the system clock and crypto/rand.
func NewRefGenerator(prefix string) *RefGenerator {
	return &RefGenerator{prefix: prefix, now: time.Now, rand: rand.Reader}
}

// WithClock replaces the clock.
func (g *RefGenerator) WithClock(now func() time.Time) *RefGenerator {
	g.now = now
	return g
}

// WithRand replaces the randomness source.
func (g *RefGenerator) WithRand(r io.Reader) *RefGenerator {
	g.rand = r
	return g
}

// Next returns a new reference.
func (g *RefGenerator) Next() (string, error) {
	ms := g.now().UnixMilli() % 100_000_000
	tail := make([]byte, 0, 8)
	buf := make([]byte, 16)
	for len(tail) < 8 {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", fmt.Errorf("reference entropy: %w", err)
		}
		for _, b := range buf {
			// 252 = 7*36; reject the rest to keep the draw uniform
			if b >= 252 {
				continue
			}
			tail = append(tail, refAlphabet[int(b)%len(refAlphabet)])
			if len(tail) == 8 {
				break
			}
		}
	}
	return fmt.Sprintf("%s%08d%s", g.prefix, ms, tail), nil
}
