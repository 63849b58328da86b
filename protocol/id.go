package protocol

import "fmt"

// PacketID is the leading byte of every datagram.
type PacketID byte

const (
	IDConnectedPing             PacketID = 0x00
	IDUnconnectedPing           PacketID = 0x01
	IDUnconnectedPingOpen       PacketID = 0x02
	IDConnectedPong             PacketID = 0x03
	IDOpenConnectionRequest1    PacketID = 0x05
	IDOpenConnectionReply1      PacketID = 0x06
	IDOpenConnectionRequest2    PacketID = 0x07
	IDOpenConnectionReply2      PacketID = 0x08
	IDConnectionRequest         PacketID = 0x09
	IDConnectionRequestAccepted PacketID = 0x10
	IDNewIncomingConnection     PacketID = 0x13
	IDDisconnect                PacketID = 0x15
	IDIncompatibleProtocol      PacketID = 0x19
	IDUnconnectedPong           PacketID = 0x1c
	IDGamePacket                PacketID = 0xfe
	IDNACK                      PacketID = 0xa0
	IDACK                       PacketID = 0xc0

	IDUnknown PacketID = 0xff
)

// Frame set datagrams of the reliability layer carry IDs in this range.
const (
	IDFrameSetMin PacketID = 0x80
	IDFrameSetMax PacketID = 0x8f
)

var idNames = map[PacketID]string{
	IDConnectedPing:             "ConnectedPing",
	IDUnconnectedPing:           "UnconnectedPing",
	IDUnconnectedPingOpen:       "UnconnectedPingOpenConnections",
	IDConnectedPong:             "ConnectedPong",
	IDOpenConnectionRequest1:    "OpenConnectionRequest1",
	IDOpenConnectionReply1:      "OpenConnectionReply1",
	IDOpenConnectionRequest2:    "OpenConnectionRequest2",
	IDOpenConnectionReply2:      "OpenConnectionReply2",
	IDConnectionRequest:         "ConnectionRequest",
	IDConnectionRequestAccepted: "ConnectionRequestAccepted",
	IDNewIncomingConnection:     "NewIncomingConnection",
	IDDisconnect:                "Disconnect",
	IDIncompatibleProtocol:      "IncompatibleProtocol",
	IDUnconnectedPong:           "UnconnectedPong",
	IDGamePacket:                "GamePacket",
	IDNACK:                      "NACK",
	IDACK:                       "ACK",
	IDUnknown:                   "Unknown",
}

// ParseID maps a leading byte to a known PacketID. Bytes outside the
// catalog map to IDUnknown.
func ParseID(b byte) PacketID {
	if _, ok := idNames[PacketID(b)]; ok {
		return PacketID(b)
	}
	return IDUnknown
}

func (id PacketID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return fmt.Sprintf("PacketID(0x%02x)", byte(id))
}

// IsFrameSet reports whether b starts a datagram of the reliability layer.
func IsFrameSet(b byte) bool {
	return PacketID(b) >= IDFrameSetMin && PacketID(b) <= IDFrameSetMax
}

// IsUnconnected reports whether id is handled by the connectionless
// handshake path rather than by an established session.
func IsUnconnected(id PacketID) bool {
	switch id {
	case IDUnconnectedPing, IDUnconnectedPingOpen,
		IDOpenConnectionRequest1, IDOpenConnectionRequest2,
		IDConnectionRequest, IDNewIncomingConnection, IDDisconnect:
		return true
	}
	return false
}
