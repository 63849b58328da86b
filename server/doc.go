// Package server implements the listening side of RakNet: the offline
// handshake that takes a client from its first ping to a fully connected
// peer, and a datagram stream for everything that follows.
//
// A Listener runs as three cooperating goroutines. The socket reader
// answers pings and rejects incompatible clients without touching any
// shared state. Everything else is handed to the registry, which owns the
// connection table and produces replies. The socket writer sends whatever
// the registry gives it.
//
//	l, err := server.Bind(":19132", &server.Config{})
//	...
//	l.Start()
//	defer l.Close()
//	for addr, payload := range l.Incoming(ctx) {
//		...
//	}
package server
