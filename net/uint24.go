package net

// Uint24 is an unsigned integer three bytes wide.
//
// The value lives in a uint32 whose top byte is always zero. All arithmetic
// wraps modulo 2^24, so Uint24Max.Add(1) is 0.
type Uint24 uint32

const (
	Uint24Min Uint24 = 0
	Uint24Max Uint24 = 0x00FFFFFF
)

// NewUint24 masks off the top byte of v.
func NewUint24(v uint32) Uint24 {
	return Uint24(v & uint32(Uint24Max))
}

func (u Uint24) Uint32() uint32 { return uint32(u) }

func (u Uint24) Add(v Uint24) Uint24 { return NewUint24(uint32(u) + uint32(v)) }
func (u Uint24) Sub(v Uint24) Uint24 { return NewUint24(uint32(u) - uint32(v)) }
func (u Uint24) Mul(v Uint24) Uint24 { return NewUint24(uint32(u) * uint32(v)) }

// Div panics on a zero divisor, like the native integer types.
func (u Uint24) Div(v Uint24) Uint24 { return NewUint24(uint32(u) / uint32(v)) }
func (u Uint24) Rem(v Uint24) Uint24 { return NewUint24(uint32(u) % uint32(v)) }

func (u Uint24) And(v Uint24) Uint24 { return NewUint24(uint32(u) & uint32(v)) }
func (u Uint24) Or(v Uint24) Uint24  { return NewUint24(uint32(u) | uint32(v)) }
func (u Uint24) Xor(v Uint24) Uint24 { return NewUint24(uint32(u) ^ uint32(v)) }
func (u Uint24) Not() Uint24         { return NewUint24(^uint32(u)) }

func (u Uint24) Shl(n uint) Uint24 { return NewUint24(uint32(u) << n) }
func (u Uint24) Shr(n uint) Uint24 { return NewUint24(uint32(u) >> n) }

// SwapBytes reverses the order of the three bytes.
func (u Uint24) SwapBytes() Uint24 {
	return Uint24FromBigEndian(u.LittleEndian())
}

func (u Uint24) BigEndian() [3]byte {
	return [3]byte{byte(u >> 16), byte(u >> 8), byte(u)}
}

func (u Uint24) LittleEndian() [3]byte {
	return [3]byte{byte(u), byte(u >> 8), byte(u >> 16)}
}

func Uint24FromBigEndian(b [3]byte) Uint24 {
	return Uint24(uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]))
}

func Uint24FromLittleEndian(b [3]byte) Uint24 {
	return Uint24(uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0]))
}
