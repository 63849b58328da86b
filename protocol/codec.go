package protocol

import (
	gonet "net"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	tnet "badc0de.net/pkg/go-raknet/net"
)

var (
	ErrUnknownPacket = errors.New("unknown packet")
	ErrEmptyDatagram = errors.New("empty datagram")
)

// Kind selects the wire encoding of a single field.
type Kind int

const (
	KindBool Kind = iota
	KindUint8
	KindInt8
	KindUint16
	KindInt16
	KindUint24
	KindUint32
	KindInt32
	KindUint64
	KindInt64
	KindString
	KindMagic
	KindAddr

	// KindMTU is never read from the wire. On decode it consumes whatever is
	// left of the datagram and yields the datagram size as the client
	// would count it (UDPHeaderSize included). On encode it pads the
	// datagram with zeroes up to that size. It must be the last field.
	KindMTU
)

var kindNames = [...]string{
	"bool", "uint8", "int8", "uint16", "int16", "uint24", "uint32", "int32",
	"uint64", "int64", "string", "magic", "addr", "mtu",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Field binds a name and a wire kind to a pointer into a packet struct.
type Field struct {
	Name  string
	Kind  Kind
	Value interface{}
}

func Bool(name string, v *bool) Field           { return Field{name, KindBool, v} }
func Uint8(name string, v *uint8) Field         { return Field{name, KindUint8, v} }
func Int8(name string, v *int8) Field           { return Field{name, KindInt8, v} }
func Uint16(name string, v *uint16) Field       { return Field{name, KindUint16, v} }
func Int16(name string, v *int16) Field         { return Field{name, KindInt16, v} }
func Uint24(name string, v *tnet.Uint24) Field  { return Field{name, KindUint24, v} }
func Uint32(name string, v *uint32) Field       { return Field{name, KindUint32, v} }
func Int32(name string, v *int32) Field         { return Field{name, KindInt32, v} }
func Uint64(name string, v *uint64) Field       { return Field{name, KindUint64, v} }
func Int64(name string, v *int64) Field         { return Field{name, KindInt64, v} }
func String(name string, v *string) Field       { return Field{name, KindString, v} }
func MagicField(name string, v *[16]byte) Field { return Field{name, KindMagic, v} }
func Addr(name string, v **gonet.UDPAddr) Field { return Field{name, KindAddr, v} }
func MTU(name string, v *uint16) Field          { return Field{name, KindMTU, v} }

// Packet is a record with a fixed tag and an ordered field schema.
//
// Fields must return pointers into the receiver so that Decode can fill it
// in.
type Packet interface {
	ID() PacketID
	Fields() []Field
}

// Encode writes the packet's tag followed by each field in order.
//
// Magic fields always carry the protocol marker regardless of their value.
func Encode(p Packet) ([]byte, error) {
	msg := tnet.NewMessage()
	if err := msg.WriteByte(byte(p.ID())); err != nil {
		return nil, err
	}
	for _, f := range p.Fields() {
		if err := encodeField(msg, f); err != nil {
			return nil, errors.Wrapf(err, "encoding %s field %q", p.ID(), f.Name)
		}
	}
	glog.V(3).Infof("encoded %s: % x", p.ID(), msg.Bytes())
	return msg.Bytes(), nil
}

// Decode fills p from body, which must not include the tag byte.
//
// On error p may be partially filled and must be discarded.
func Decode(p Packet, body []byte) error {
	datagramLen := len(body) + 1
	msg := tnet.NewMessageBytes(body)
	for _, f := range p.Fields() {
		if err := decodeField(msg, f, datagramLen); err != nil {
			return errors.Wrapf(err, "decoding %s field %q", p.ID(), f.Name)
		}
	}
	if msg.Len() > 0 {
		glog.V(3).Infof("%s: %d trailing bytes ignored", p.ID(), msg.Len())
	}
	return nil
}

// Parse decodes a complete datagram into a fresh packet of the type named by
// its first byte.
func Parse(datagram []byte) (Packet, error) {
	if len(datagram) == 0 {
		return nil, ErrEmptyDatagram
	}
	id := ParseID(datagram[0])
	p := New(id)
	if p == nil {
		return nil, errors.Wrapf(ErrUnknownPacket, "id 0x%02x", datagram[0])
	}
	if err := Decode(p, datagram[1:]); err != nil {
		return nil, err
	}
	return p, nil
}

func encodeField(msg *tnet.Message, f Field) error {
	switch f.Kind {
	case KindBool:
		return msg.WriteBool(*f.Value.(*bool))
	case KindUint8:
		return msg.WriteUint8(*f.Value.(*uint8))
	case KindInt8:
		return msg.WriteInt8(*f.Value.(*int8))
	case KindUint16:
		return msg.WriteUint16(*f.Value.(*uint16))
	case KindInt16:
		return msg.WriteInt16(*f.Value.(*int16))
	case KindUint24:
		return msg.WriteUint24(*f.Value.(*tnet.Uint24))
	case KindUint32:
		return msg.WriteUint32(*f.Value.(*uint32))
	case KindInt32:
		return msg.WriteInt32(*f.Value.(*int32))
	case KindUint64:
		return msg.WriteUint64(*f.Value.(*uint64))
	case KindInt64:
		return msg.WriteInt64(*f.Value.(*int64))
	case KindString:
		return msg.WriteRakString(*f.Value.(*string))
	case KindMagic:
		return msg.WriteMagic(Magic)
	case KindAddr:
		return msg.WriteAddr(*f.Value.(**gonet.UDPAddr))
	case KindMTU:
		target := int(*f.Value.(*uint16)) - UDPHeaderSize
		if pad := target - msg.Len(); pad > 0 {
			_, err := msg.Write(make([]byte, pad))
			return err
		}
		return nil
	}
	return errors.Errorf("unsupported field kind %d", f.Kind)
}

func decodeField(msg *tnet.Message, f Field, datagramLen int) (err error) {
	switch f.Kind {
	case KindBool:
		*f.Value.(*bool), err = msg.ReadBool()
	case KindUint8:
		*f.Value.(*uint8), err = msg.ReadUint8()
	case KindInt8:
		*f.Value.(*int8), err = msg.ReadInt8()
	case KindUint16:
		*f.Value.(*uint16), err = msg.ReadUint16()
	case KindInt16:
		*f.Value.(*int16), err = msg.ReadInt16()
	case KindUint24:
		*f.Value.(*tnet.Uint24), err = msg.ReadUint24()
	case KindUint32:
		*f.Value.(*uint32), err = msg.ReadUint32()
	case KindInt32:
		*f.Value.(*int32), err = msg.ReadInt32()
	case KindUint64:
		*f.Value.(*uint64), err = msg.ReadUint64()
	case KindInt64:
		*f.Value.(*int64), err = msg.ReadInt64()
	case KindString:
		*f.Value.(*string), err = msg.ReadRakString()
	case KindMagic:
		*f.Value.(*[16]byte), err = msg.ReadMagic()
	case KindAddr:
		*f.Value.(**gonet.UDPAddr), err = msg.ReadAddr()
	case KindMTU:
		size := datagramLen + UDPHeaderSize
		if size > 0xFFFF {
			size = 0xFFFF
		}
		*f.Value.(*uint16) = uint16(size)
		msg.Next(msg.Len())
	default:
		err = errors.Errorf("unsupported field kind %d", f.Kind)
	}
	return err
}
