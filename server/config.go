package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"badc0de.net/pkg/go-raknet/protocol"
)

// Config tunes a Listener. The zero value of every field selects a default.
type Config struct {
	// GUID identifies the server. 0 picks a random one.
	GUID uint64

	// Descriptor is advertised in pongs. nil uses DefaultDescriptor.
	Descriptor *Descriptor

	// MaxMTU caps the negotiated MTU.
	MaxMTU uint16

	// QueueSize is the capacity of each internal channel.
	QueueSize int

	// IdleTimeout evicts peers that have been silent for that long. A
	// negative value disables eviction.
	IdleTimeout time.Duration

	// ReuseAddr sets SO_REUSEADDR where supported.
	ReuseAddr bool

	// Registerer receives the listener's metrics. nil leaves them
	// unregistered.
	Registerer prometheus.Registerer

	// Reliability receives frame sets and receipts from connected peers.
	// nil discards them.
	Reliability Reliability
}

const (
	defaultQueueSize   = 1024
	defaultIdleTimeout = 10 * time.Second
)

func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.MaxMTU == 0 || out.MaxMTU > protocol.MaxMTU {
		out.MaxMTU = protocol.MaxMTU
	}
	if out.QueueSize <= 0 {
		out.QueueSize = defaultQueueSize
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = defaultIdleTimeout
	}
	if out.Reliability == nil {
		out.Reliability = discardReliability{}
	}
	return out
}
