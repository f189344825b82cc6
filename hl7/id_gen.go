package hl7

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// controlIDGenerator hands out message control ids from an atomic counter seeded with a
// random start value, so ids of concurrent senders never collide within a process.
type controlIDGenerator struct {
	id atomic.Uint32
}

func newControlIDGenerator() *controlIDGenerator {
	inst := &controlIDGenerator{}
	var buf [4]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return inst
	}
	inst.id.Store(binary.LittleEndian.Uint32(buf[:]))

	return inst
}

func (g *controlIDGenerator) next() string {
	return fmt.Sprintf("%010d", g.id.Add(1))
}

var (
	genInst  *controlIDGenerator
	initOnce sync.Once
)

// GenerateControlID returns a unique 10-digit message control id for MSH-10.
func GenerateControlID() string {
	initOnce.Do(func() {
		genInst = newControlIDGenerator()
	})

	return genInst.next()
}
