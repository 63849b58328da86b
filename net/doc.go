// Package net implements the byte-level primitives of the RakNet wire format.
//
// This includes a message (a single datagram composed by the server or taken
// apart after receipt), the 24-bit unsigned integer used by the protocol, and
// the encodings for strings, the handshake marker and peer addresses.
package net
