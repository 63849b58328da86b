// Package protocol defines the RakNet packet catalog and the codec that maps
// packets to datagrams.
//
// Every packet describes itself as an ordered list of fields, each with a
// wire kind. Encode and Decode interpret that list; there is no per-packet
// serialization code.
package protocol
