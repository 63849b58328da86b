package session

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	gonet "net"
	"time"

	"github.com/pkg/errors"

	"badc0de.net/pkg/go-raknet/protocol"
)

var (
	// ErrInvalidTransition is returned when a handshake step arrives out of
	// order. The connection is left untouched.
	ErrInvalidTransition = errors.New("invalid connection state transition")

	// ErrMTUTooSmall is returned by Negotiate when the resulting MTU would
	// be below protocol.MinMTU.
	ErrMTUTooSmall = errors.New("mtu below minimum")

	// ErrGUIDMismatch is returned by Negotiate when a peer that already
	// negotiated repeats the step under another client GUID.
	ErrGUIDMismatch = errors.New("client guid differs from negotiated one")
)

// State is the handshake progress of a single peer.
type State int

const (
	Unconnected State = iota
	Connected
	FullyConnected
	Disconnected
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "Unconnected"
	case Connected:
		return "Connected"
	case FullyConnected:
		return "FullyConnected"
	case Disconnected:
		return "Disconnected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Connection is a peer, keyed by its address.
type Connection struct {
	GUID       uint64
	ClientGUID uint64
	Addr       *gonet.UDPAddr
	MTU        uint16
	State      State

	// Negotiated is set once OpenConnectionRequest2 was answered.
	Negotiated bool

	Created  time.Time
	LastSeen time.Time
}

// New creates an Unconnected connection with a random GUID.
func New(addr *gonet.UDPAddr) *Connection {
	now := time.Now()
	return &Connection{
		GUID:     NewGUID(),
		Addr:     addr,
		State:    Unconnected,
		Created:  now,
		LastSeen: now,
	}
}

// NewGUID returns a random 64-bit identifier.
func NewGUID() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(errors.Wrap(err, "reading random guid"))
	}
	return binary.BigEndian.Uint64(b[:])
}

func (c *Connection) transitionError(to State) error {
	return errors.Wrapf(ErrInvalidTransition, "%s: %s -> %s", c.Addr, c.State, to)
}

// Open accepts the first handshake step with the measured MTU.
func (c *Connection) Open(mtu uint16) error {
	if c.State != Unconnected {
		return c.transitionError(Connected)
	}
	c.MTU = mtu
	c.State = Connected
	return nil
}

// Reopen takes a repeated first handshake step from a client still probing
// for its MTU.
func (c *Connection) Reopen(mtu uint16) error {
	if c.State != Connected || c.Negotiated {
		return c.transitionError(Connected)
	}
	c.MTU = mtu
	return nil
}

// Negotiate accepts the second handshake step. The MTU becomes the least of
// the advertised value, the probed value and max, and must not fall below
// protocol.MinMTU. Once negotiated, the step may only be repeated with the
// same client GUID.
func (c *Connection) Negotiate(mtu, max uint16, clientGUID uint64) error {
	if c.State != Connected {
		return c.transitionError(Connected)
	}
	if c.Negotiated && clientGUID != c.ClientGUID {
		return errors.Wrapf(ErrGUIDMismatch, "%s: got %d, have %d", c.Addr, clientGUID, c.ClientGUID)
	}
	n := c.MTU
	if mtu < n {
		n = mtu
	}
	if max < n {
		n = max
	}
	if n < protocol.MinMTU {
		return errors.Wrapf(ErrMTUTooSmall, "%s: %d", c.Addr, n)
	}
	c.MTU = n
	c.ClientGUID = clientGUID
	c.Negotiated = true
	return nil
}

// Confirm completes the handshake.
func (c *Connection) Confirm() error {
	if c.State != Connected || !c.Negotiated {
		return c.transitionError(FullyConnected)
	}
	c.State = FullyConnected
	return nil
}

// Close is valid from any state.
func (c *Connection) Close() {
	c.State = Disconnected
}

// Touch records activity at t.
func (c *Connection) Touch(t time.Time) {
	c.LastSeen = t
}

func (c Connection) String() string {
	return fmt.Sprintf("%s guid=%d client_guid=%d mtu=%d %s", c.Addr, c.GUID, c.ClientGUID, c.MTU, c.State)
}
