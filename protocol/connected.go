package protocol

import (
	gonet "net"
)

// This file contains the session control packets exchanged once the
// open connection requests succeeded.

type ConnectedPing struct {
	Time int64
}

func (p *ConnectedPing) ID() PacketID { return IDConnectedPing }

func (p *ConnectedPing) Fields() []Field {
	return []Field{Int64("time", &p.Time)}
}

type ConnectedPong struct {
	PingTime int64
	PongTime int64
}

func (p *ConnectedPong) ID() PacketID { return IDConnectedPong }

func (p *ConnectedPong) Fields() []Field {
	return []Field{
		Int64("ping_time", &p.PingTime),
		Int64("pong_time", &p.PongTime),
	}
}

type ConnectionRequest struct {
	ClientGUID uint64
	Time       int64
	Security   bool
}

func (p *ConnectionRequest) ID() PacketID { return IDConnectionRequest }

func (p *ConnectionRequest) Fields() []Field {
	return []Field{
		Uint64("client_guid", &p.ClientGUID),
		Int64("time", &p.Time),
		Bool("security", &p.Security),
	}
}

type ConnectionRequestAccepted struct {
	ClientAddress *gonet.UDPAddr
	SystemIndex   uint16
	RequestTime   int64
	Time          int64
}

func (p *ConnectionRequestAccepted) ID() PacketID { return IDConnectionRequestAccepted }

func (p *ConnectionRequestAccepted) Fields() []Field {
	return []Field{
		Addr("client_address", &p.ClientAddress),
		Uint16("system_index", &p.SystemIndex),
		Int64("request_time", &p.RequestTime),
		Int64("time", &p.Time),
	}
}

// NewIncomingConnection is the client's confirmation. It acknowledges the
// server address the client used and its own address as the server saw it.
type NewIncomingConnection struct {
	ServerAddress *gonet.UDPAddr
	ClientAddress *gonet.UDPAddr
	RequestTime   int64
	Time          int64
}

func (p *NewIncomingConnection) ID() PacketID { return IDNewIncomingConnection }

func (p *NewIncomingConnection) Fields() []Field {
	return []Field{
		Addr("server_address", &p.ServerAddress),
		Addr("client_address", &p.ClientAddress),
		Int64("request_time", &p.RequestTime),
		Int64("time", &p.Time),
	}
}

type Disconnect struct{}

func (p *Disconnect) ID() PacketID { return IDDisconnect }

func (p *Disconnect) Fields() []Field { return nil }
