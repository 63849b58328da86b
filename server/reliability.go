package server

import (
	"github.com/golang/glog"

	"badc0de.net/pkg/go-raknet/protocol"
	"badc0de.net/pkg/go-raknet/session"
)

// Reliability is handed the datagrams of the reliability layer: frame sets
// (0x80-0x8f), ACK and NACK receipts. It runs on the registry goroutine and
// must not block.
//
// Datagrams it returns are sent as they are.
type Reliability interface {
	HandleDatagram(c session.Connection, id protocol.PacketID, b []byte) []Datagram
}

// discardReliability is used when no reliability layer is configured.
type discardReliability struct{}

func (discardReliability) HandleDatagram(c session.Connection, id protocol.PacketID, b []byte) []Datagram {
	glog.V(2).Infof("%s: no reliability layer; dropping %d byte datagram 0x%02x", c.Addr, len(b), byte(id))
	return nil
}
