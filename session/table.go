package session

import (
	gonet "net"
	"sort"
	"sync"
	"time"
)

// Table holds at most one Connection per peer address.
//
// Any goroutine may read. Writes are reserved to a single owner; the table
// does not enforce that, the lock only keeps readers consistent.
type Table struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

func NewTable() *Table {
	return &Table{conns: map[string]*Connection{}}
}

func key(addr gonet.Addr) string {
	return addr.String()
}

// Lookup returns a copy of the connection for addr.
func (t *Table) Lookup(addr gonet.Addr) (Connection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.conns[key(addr)]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

func (t *Table) Has(addr gonet.Addr) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.conns[key(addr)]
	return ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// Snapshot returns copies of all connections, ordered by address.
func (t *Table) Snapshot() []Connection {
	t.mu.RLock()
	out := make([]Connection, 0, len(t.conns))
	for _, c := range t.conns {
		out = append(out, *c)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Addr.String() < out[j].Addr.String()
	})
	return out
}

// Put stores c under its address, replacing any previous entry.
func (t *Table) Put(c *Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[key(c.Addr)] = c
}

// Remove deletes and returns the entry for addr.
func (t *Table) Remove(addr gonet.Addr) (*Connection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[key(addr)]
	if ok {
		delete(t.conns, key(addr))
	}
	return c, ok
}

// Mutate runs fn on the entry for addr while holding the write lock. It
// reports false without calling fn if there is no entry.
func (t *Table) Mutate(addr gonet.Addr, fn func(*Connection) error) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[key(addr)]
	if !ok {
		return false, nil
	}
	return true, fn(c)
}

// Expired returns the addresses of entries not seen since deadline.
func (t *Table) Expired(deadline time.Time) []*gonet.UDPAddr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*gonet.UDPAddr
	for _, c := range t.conns {
		if c.LastSeen.Before(deadline) {
			out = append(out, c.Addr)
		}
	}
	return out
}
