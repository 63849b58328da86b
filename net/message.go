package net

import (
	"bytes"
	"encoding/binary"
	"io"
	gonet "net"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Address family markers written in front of an encoded address.
const (
	AddrFamilyIPv4 = 4
	AddrFamilyIPv6 = 6
)

var (
	// ErrShortString is returned when a string's length prefix claims more
	// bytes than remain in the message.
	ErrShortString = errors.New("string length prefix exceeds remaining bytes")

	// ErrStringTooLong is returned when a string does not fit a 16-bit length prefix.
	ErrStringTooLong = errors.New("string longer than 65535 bytes")
)

// Message is a single datagram being composed or taken apart.
//
// All multi-byte integers are big-endian, with the exception of Uint24 which
// is little-endian on the wire.
type Message struct {
	bytes.Buffer
}

func NewMessage() *Message {
	return &Message{Buffer: bytes.Buffer{}}
}

// NewMessageBytes wraps b for reading. The message takes ownership of b.
func NewMessageBytes(b []byte) *Message {
	return &Message{Buffer: *bytes.NewBuffer(b)}
}

func (msg *Message) Read(b []byte) (int, error) {
	n, err := msg.Buffer.Read(b)
	glog.V(3).Infof("read %d bytes", n)
	return n, err
}

func (msg *Message) WriteBool(v bool) error {
	if v {
		return msg.WriteByte(1)
	}
	return msg.WriteByte(0)
}

func (msg *Message) ReadBool() (bool, error) {
	b, err := msg.ReadUint8()
	if err != nil {
		return false, err
	}
	return b == 1, nil
}

func (msg *Message) WriteUint8(v uint8) error {
	return msg.WriteByte(v)
}

func (msg *Message) ReadUint8() (uint8, error) {
	b, err := msg.ReadByte()
	if err != nil {
		return 0, errors.Wrap(io.ErrUnexpectedEOF, "reading byte")
	}
	return b, nil
}

func (msg *Message) WriteInt8(v int8) error {
	return msg.WriteByte(byte(v))
}

func (msg *Message) ReadInt8() (int8, error) {
	b, err := msg.ReadUint8()
	return int8(b), err
}

// writeFixed and readFixed handle every fixed-width big-endian integer.
func (msg *Message) writeFixed(v interface{}) error {
	return binary.Write(msg, binary.BigEndian, v)
}

func (msg *Message) readFixed(v interface{}) error {
	if err := binary.Read(msg, binary.BigEndian, v); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return errors.Wrapf(err, "reading %d byte integer", binary.Size(v))
	}
	return nil
}

func (msg *Message) WriteUint16(v uint16) error { return msg.writeFixed(v) }
func (msg *Message) WriteInt16(v int16) error   { return msg.writeFixed(v) }
func (msg *Message) WriteUint32(v uint32) error { return msg.writeFixed(v) }
func (msg *Message) WriteInt32(v int32) error   { return msg.writeFixed(v) }
func (msg *Message) WriteUint64(v uint64) error { return msg.writeFixed(v) }
func (msg *Message) WriteInt64(v int64) error   { return msg.writeFixed(v) }

func (msg *Message) ReadUint16() (v uint16, err error) { err = msg.readFixed(&v); return }
func (msg *Message) ReadInt16() (v int16, err error)   { err = msg.readFixed(&v); return }
func (msg *Message) ReadUint32() (v uint32, err error) { err = msg.readFixed(&v); return }
func (msg *Message) ReadInt32() (v int32, err error)   { err = msg.readFixed(&v); return }
func (msg *Message) ReadUint64() (v uint64, err error) { err = msg.readFixed(&v); return }
func (msg *Message) ReadInt64() (v int64, err error)   { err = msg.readFixed(&v); return }

// WriteUint24 writes v as three little-endian bytes.
func (msg *Message) WriteUint24(v Uint24) error {
	b := v.LittleEndian()
	_, err := msg.Write(b[:])
	return err
}

func (msg *Message) ReadUint24() (Uint24, error) {
	var b [3]byte
	if _, err := io.ReadFull(msg, b[:]); err != nil {
		return 0, errors.Wrap(io.ErrUnexpectedEOF, "reading uint24")
	}
	return Uint24FromLittleEndian(b), nil
}

// WriteRakString writes a big-endian 16-bit byte count followed by the bytes
// of s. No terminator is written.
func (msg *Message) WriteRakString(s string) error {
	if len(s) > 0xFFFF {
		return ErrStringTooLong
	}
	if err := msg.WriteUint16(uint16(len(s))); err != nil {
		return errors.Wrap(err, "writing string size")
	}

	n, err := msg.Buffer.WriteString(s)
	if err != nil {
		return errors.Wrap(err, "writing string")
	}
	if n != len(s) {
		return errors.New("writing string: not all was written")
	}
	return nil
}

func (msg *Message) ReadRakString() (string, error) {
	sz, err := msg.ReadUint16()
	if err != nil {
		return "", errors.Wrap(err, "reading string size")
	}
	if int(sz) > msg.Len() {
		return "", errors.Wrapf(ErrShortString, "want %d bytes, have %d", sz, msg.Len())
	}
	return string(msg.Next(int(sz))), nil
}

// WriteMagic writes the passed marker verbatim.
func (msg *Message) WriteMagic(magic [16]byte) error {
	_, err := msg.Write(magic[:])
	return err
}

// ReadMagic reads exactly 16 bytes. The marker is not validated here.
func (msg *Message) ReadMagic() ([16]byte, error) {
	var magic [16]byte
	if _, err := io.ReadFull(msg, magic[:]); err != nil {
		return magic, errors.Wrap(io.ErrUnexpectedEOF, "reading magic")
	}
	return magic, nil
}

// WriteAddr writes the address family, four address octets and the
// big-endian port.
//
// Only the IPv4 form of the octets is ever written. An address without an
// IPv4 form is announced as family 6 and written as 0.0.0.0.
func (msg *Message) WriteAddr(addr *gonet.UDPAddr) error {
	var ip4 gonet.IP
	var port int
	if addr != nil {
		ip4 = addr.IP.To4()
		port = addr.Port
	}

	family := byte(AddrFamilyIPv4)
	if ip4 == nil {
		family = AddrFamilyIPv6
		ip4 = gonet.IPv4zero.To4()
	}
	if err := msg.WriteByte(family); err != nil {
		return err
	}
	if _, err := msg.Write(ip4); err != nil {
		return err
	}
	return msg.WriteUint16(uint16(port))
}

// ReadAddr reads an address written by WriteAddr. The family byte is
// consumed but does not change how many octets are read.
func (msg *Message) ReadAddr() (*gonet.UDPAddr, error) {
	family, err := msg.ReadUint8()
	if err != nil {
		return nil, errors.Wrap(err, "reading address family")
	}
	var ip [4]byte
	if _, err := io.ReadFull(msg, ip[:]); err != nil {
		return nil, errors.Wrap(io.ErrUnexpectedEOF, "reading address octets")
	}
	port, err := msg.ReadUint16()
	if err != nil {
		return nil, errors.Wrap(err, "reading address port")
	}
	glog.V(3).Infof("address family %d", family)
	return &gonet.UDPAddr{
		IP:   gonet.IPv4(ip[0], ip[1], ip[2], ip[3]),
		Port: int(port),
	}, nil
}
