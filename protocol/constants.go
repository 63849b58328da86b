package protocol

// ProtocolVersion is the only RakNet protocol version the server accepts.
const ProtocolVersion byte = 11

// Magic is the offline message marker. Every unconnected packet carries it.
var Magic = [16]byte{
	0x00, 0xff, 0xff, 0x00, 0xfe, 0xfe, 0xfe, 0xfe,
	0xfd, 0xfd, 0xfd, 0xfd, 0x12, 0x34, 0x56, 0x78,
}

const (
	// UDPHeaderSize is the IPv4 header plus the UDP header. Clients count it
	// when they advertise an MTU.
	UDPHeaderSize = 20 + 8

	MinMTU = 576
	MaxMTU = 1492
)
