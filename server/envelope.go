package server

import (
	gonet "net"

	"badc0de.net/pkg/go-raknet/session"
)

// Datagram is a payload and the peer it came from or goes to.
type Datagram struct {
	Addr    *gonet.UDPAddr
	Payload []byte
}

type envelopeKind int

const (
	// inbound carries a datagram from a peer, tag byte included.
	inbound envelopeKind = iota
	// outbound carries an application payload to a peer.
	outbound
	// promote hands a connection that passed the first handshake step to the
	// registry.
	promote
	// evict asks the registry to drop a peer.
	evict
)

func (k envelopeKind) String() string {
	switch k {
	case inbound:
		return "inbound"
	case outbound:
		return "outbound"
	case promote:
		return "promote"
	case evict:
		return "evict"
	}
	return "invalid"
}

// envelope moves work between the socket, the stream and the registry.
// Only the fields relevant to kind are set.
type envelope struct {
	kind     envelopeKind
	datagram Datagram
	conn     *session.Connection
}
