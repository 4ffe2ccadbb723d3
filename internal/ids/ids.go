// Package ids generates identifiers for stored entities.
package ids

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces new unique identifiers.
type Generator interface {
	NewID(prefix string) string
}

// UUIDGenerator issues random (crypto/rand backed) v4 UUIDs with a type prefix,
// e.g. "ord_1b4e28ba-2fa1-11d2-883f-0016d3cca427".
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Sequence issues predictable ids ("ord_1", "ord_2", ...) for tests.
type Sequence struct {
	n atomic.Int64
}

func (s *Sequence) NewID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, s.n.Add(1))
}
