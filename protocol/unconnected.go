package protocol

import (
	gonet "net"
)

// UnconnectedPing asks a server for its descriptor without opening a
// connection. With OpenConnections set it is sent as ID 0x02, which servers
// only answer while they have free slots.
type UnconnectedPing struct {
	Time            int64
	Magic           [16]byte
	ClientGUID      int64
	OpenConnections bool
}

func (p *UnconnectedPing) ID() PacketID {
	if p.OpenConnections {
		return IDUnconnectedPingOpen
	}
	return IDUnconnectedPing
}

func (p *UnconnectedPing) Fields() []Field {
	return []Field{
		Int64("time", &p.Time),
		MagicField("magic", &p.Magic),
		Int64("client_guid", &p.ClientGUID),
	}
}

// UnconnectedPong answers an UnconnectedPing with the server descriptor.
type UnconnectedPong struct {
	Time       int64
	ServerGUID int64
	Magic      [16]byte
	MOTD       string
}

func (p *UnconnectedPong) ID() PacketID { return IDUnconnectedPong }

func (p *UnconnectedPong) Fields() []Field {
	return []Field{
		Int64("time", &p.Time),
		Int64("server_guid", &p.ServerGUID),
		MagicField("magic", &p.Magic),
		String("motd", &p.MOTD),
	}
}

// OpenConnectionRequest1 starts the handshake. The client pads the datagram
// to the MTU it wants to try; MTU is measured from the datagram, not read.
type OpenConnectionRequest1 struct {
	Magic    [16]byte
	Protocol uint8
	MTU      uint16
}

func (p *OpenConnectionRequest1) ID() PacketID { return IDOpenConnectionRequest1 }

func (p *OpenConnectionRequest1) Fields() []Field {
	return []Field{
		MagicField("magic", &p.Magic),
		Uint8("protocol", &p.Protocol),
		MTU("mtu", &p.MTU),
	}
}

type OpenConnectionReply1 struct {
	Magic      [16]byte
	ServerGUID uint64
	Security   bool
	MTU        uint16
}

func (p *OpenConnectionReply1) ID() PacketID { return IDOpenConnectionReply1 }

func (p *OpenConnectionReply1) Fields() []Field {
	return []Field{
		MagicField("magic", &p.Magic),
		Uint64("server_guid", &p.ServerGUID),
		Bool("security", &p.Security),
		Uint16("mtu", &p.MTU),
	}
}

// OpenConnectionRequest2 echoes the server address the client dialed and
// the MTU it settled on.
type OpenConnectionRequest2 struct {
	Magic         [16]byte
	ServerAddress *gonet.UDPAddr
	MTU           uint16
	ClientGUID    uint64
}

func (p *OpenConnectionRequest2) ID() PacketID { return IDOpenConnectionRequest2 }

func (p *OpenConnectionRequest2) Fields() []Field {
	return []Field{
		MagicField("magic", &p.Magic),
		Addr("server_address", &p.ServerAddress),
		Uint16("mtu", &p.MTU),
		Uint64("client_guid", &p.ClientGUID),
	}
}

// OpenConnectionReply2 tells the client the address the server sees it
// from, which lets it detect NAT.
type OpenConnectionReply2 struct {
	Magic         [16]byte
	ServerGUID    uint64
	ClientAddress *gonet.UDPAddr
	MTU           uint16
	Encryption    bool
}

func (p *OpenConnectionReply2) ID() PacketID { return IDOpenConnectionReply2 }

func (p *OpenConnectionReply2) Fields() []Field {
	return []Field{
		MagicField("magic", &p.Magic),
		Uint64("server_guid", &p.ServerGUID),
		Addr("client_address", &p.ClientAddress),
		Uint16("mtu", &p.MTU),
		Bool("encryption", &p.Encryption),
	}
}

// IncompatibleProtocol rejects an OpenConnectionRequest1 carrying a protocol
// version other than ProtocolVersion.
type IncompatibleProtocol struct {
	Protocol   uint8
	Magic      [16]byte
	ServerGUID uint64
}

func (p *IncompatibleProtocol) ID() PacketID { return IDIncompatibleProtocol }

func (p *IncompatibleProtocol) Fields() []Field {
	return []Field{
		Uint8("protocol", &p.Protocol),
		MagicField("magic", &p.Magic),
		Uint64("server_guid", &p.ServerGUID),
	}
}
