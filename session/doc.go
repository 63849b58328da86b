// Package session tracks the handshake state of RakNet peers.
//
// A Connection moves from Unconnected through Connected to FullyConnected,
// and ends Disconnected. The Table keys connections by peer address.
package session
