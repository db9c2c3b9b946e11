package mp4

import "encoding/binary"

// Box building helpers. Boxes are assembled by concatenation; every
// helper returns a fresh slice, so built boxes are safe to reuse.

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func i16(v int16) []byte { return u16(uint16(v)) }

// fixed32 renders a 16.16 fixed-point value.
func fixed32(v uint32) []byte { return u32(v << 16) }

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// mkbox wraps payload parts in a size+type header.
func mkbox(typ string, parts ...[]byte) []byte {
	payload := concat(parts...)
	out := make([]byte, 0, 8+len(payload))
	out = append(out, u32(uint32(8+len(payload)))...)
	out = append(out, typ[:4]...)
	return append(out, payload...)
}

// fullbox wraps payload parts in a size+type+version+flags header.
func fullbox(typ string, version byte, flags uint32, parts ...[]byte) []byte {
	vf := u32(flags & 0x00FFFFFF)
	vf[0] = version
	return mkbox(typ, append([][]byte{vf}, parts...)...)
}

// descriptor renders an MPEG-4 descriptor with an expandable length field.
// Payloads here are always short enough for a single length byte.
func descriptor(tag byte, parts ...[]byte) []byte {
	payload := concat(parts...)
	out := make([]byte, 0, 2+len(payload))
	out = append(out, tag, byte(len(payload)))
	return append(out, payload...)
}

// matrixIdentity is the unity transformation matrix used by mvhd and tkhd.
var matrixIdentity = concat(
	u32(0x00010000), u32(0), u32(0),
	u32(0), u32(0x00010000), u32(0),
	u32(0), u32(0), u32(0x40000000),
)
