package mllpclient

import (
	"cmp"
	"net"
	"slices"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-hl7/logger"
	"github.com/benbjohnson/clock"
	"github.com/puzpuzpuz/xsync/v3"
)

// socketEntry is a pooled socket. lastUsed holds unix nanoseconds of the last use.
type socketEntry struct {
	id        string
	conn      net.Conn
	lastUsed  atomic.Int64
	destroyed atomic.Bool
}

// destroy closes the socket once.
func (e *socketEntry) destroy() bool {
	if !e.destroyed.CompareAndSwap(false, true) {
		return false
	}
	_ = e.conn.Close()

	return true
}

// socketPool is the registry of live sockets owned by one channel.
//
// Sockets are keyed by an id generated by the channel. When the pool grows above its ceiling
// the least recently used sockets are evicted.
type socketPool struct {
	sockets *xsync.MapOf[string, *socketEntry]
	clock   clock.Clock
	logger  logger.Logger
}

func newSocketPool(l logger.Logger, clk clock.Clock) *socketPool {
	return &socketPool{
		sockets: xsync.NewMapOf[string, *socketEntry](),
		clock:   clk,
		logger:  l,
	}
}

// Add stores conn under id, replacing and closing any other socket held under id.
//
// An existing entry that was already destroyed is kept unless force is true. Returns whether
// conn was stored.
func (p *socketPool) Add(id string, conn net.Conn, force bool) bool {
	entry := &socketEntry{id: id, conn: conn}
	entry.lastUsed.Store(p.clock.Now().UnixNano())

	var replaced *socketEntry
	stored := true
	p.sockets.Compute(id, func(old *socketEntry, loaded bool) (*socketEntry, bool) {
		if !loaded {
			return entry, false
		}
		if old.destroyed.Load() && !force {
			stored = false
			return old, false
		}
		if old.conn != conn {
			replaced = old
		}

		return entry, false
	})

	if replaced != nil {
		replaced.destroy()
	}

	if !stored {
		p.logger.Debug("skip adding socket over a destroyed entry", "socketID", id)
	}

	return stored
}

// Destroy closes the socket of id but keeps its entry until Remove.
func (p *socketPool) Destroy(id string) {
	if entry, ok := p.sockets.Load(id); ok {
		entry.destroy()
	}
}

// Remove destroys the socket of id and deletes its entry. Removing an unknown id is a no-op.
func (p *socketPool) Remove(id string) bool {
	entry, ok := p.sockets.LoadAndDelete(id)
	if !ok {
		return false
	}
	entry.destroy()

	return true
}

// RemoveAll destroys and deletes every socket, returning the number of entries removed.
func (p *socketPool) RemoveAll() int {
	count := 0
	for _, id := range p.IDs() {
		if p.Remove(id) {
			count++
		}
	}

	return count
}

// Touch refreshes the last-used timestamp of id.
func (p *socketPool) Touch(id string) bool {
	entry, ok := p.sockets.Load(id)
	if !ok {
		return false
	}
	entry.lastUsed.Store(p.clock.Now().UnixNano())

	return true
}

// Get returns the socket of id if it is pooled and not destroyed.
func (p *socketPool) Get(id string) (net.Conn, bool) {
	entry, ok := p.sockets.Load(id)
	if !ok || entry.destroyed.Load() {
		return nil, false
	}

	return entry.conn, true
}

// LastUsed returns the last-used time of id.
func (p *socketPool) LastUsed(id string) (time.Time, bool) {
	entry, ok := p.sockets.Load(id)
	if !ok {
		return time.Time{}, false
	}

	return time.Unix(0, entry.lastUsed.Load()), true
}

// Len returns the number of pooled entries.
func (p *socketPool) Len() int {
	return p.sockets.Size()
}

// IDs returns the ids of all pooled entries.
func (p *socketPool) IDs() []string {
	ids := make([]string, 0, p.sockets.Size())
	p.sockets.Range(func(id string, _ *socketEntry) bool {
		ids = append(ids, id)
		return true
	})

	return ids
}

// EnforceCeiling evicts the least recently used sockets while the pool holds more than
// maxConnections entries. At least one entry is always kept.
//
// Returns the evicted ids, oldest first.
func (p *socketPool) EnforceCeiling(maxConnections int) []string {
	size := p.Len()
	if maxConnections < 1 || size <= maxConnections {
		return nil
	}

	excess := size - maxConnections

	type usage struct {
		id       string
		lastUsed int64
	}
	entries := make([]usage, 0, size)
	p.sockets.Range(func(id string, entry *socketEntry) bool {
		entries = append(entries, usage{id: id, lastUsed: entry.lastUsed.Load()})
		return true
	})
	slices.SortFunc(entries, func(a, b usage) int {
		return cmp.Compare(a.lastUsed, b.lastUsed)
	})

	// never evict the last entry
	excess = min(excess, len(entries)-1)
	if excess <= 0 {
		return nil
	}

	evicted := make([]string, 0, excess)
	for _, entry := range entries[:excess] {
		if p.Remove(entry.id) {
			evicted = append(evicted, entry.id)
		}
	}

	if len(evicted) > 0 {
		p.logger.Debug("evicted least recently used sockets", "count", len(evicted), "maxConnections", maxConnections)
	}

	return evicted
}
