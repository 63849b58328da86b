package protocol

// New allocates an empty packet for id, or returns nil if id has no
// schema (game packets, receipts, Unknown).
func New(id PacketID) Packet {
	switch id {
	case IDConnectedPing:
		return &ConnectedPing{}
	case IDUnconnectedPing:
		return &UnconnectedPing{}
	case IDUnconnectedPingOpen:
		return &UnconnectedPing{OpenConnections: true}
	case IDConnectedPong:
		return &ConnectedPong{}
	case IDOpenConnectionRequest1:
		return &OpenConnectionRequest1{}
	case IDOpenConnectionReply1:
		return &OpenConnectionReply1{}
	case IDOpenConnectionRequest2:
		return &OpenConnectionRequest2{}
	case IDOpenConnectionReply2:
		return &OpenConnectionReply2{}
	case IDConnectionRequest:
		return &ConnectionRequest{}
	case IDConnectionRequestAccepted:
		return &ConnectionRequestAccepted{}
	case IDNewIncomingConnection:
		return &NewIncomingConnection{}
	case IDDisconnect:
		return &Disconnect{}
	case IDIncompatibleProtocol:
		return &IncompatibleProtocol{}
	case IDUnconnectedPong:
		return &UnconnectedPong{}
	}
	return nil
}
