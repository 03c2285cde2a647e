package data

import "github.com/rinzlerlabs/picomodbus/common"

// BitsResponseBytes serialises a read coils or read discrete inputs response
// body from a packed bitfield.
func BitsResponseBytes(bf *Bitfield, quantity uint16) []byte {
	byteCount := BitByteCount(int(quantity))
	body := make([]byte, 1+byteCount)
	body[0] = byte(byteCount)
	copy(body[1:], bf[:byteCount])
	// Trailing bits of the final byte must be zero on the wire.
	if rem := int(quantity) % 8; rem != 0 {
		body[byteCount] &= byte(1<<uint(rem)) - 1
	}
	return body
}

// RegistersResponseBytes serialises a read holding or input registers
// response body.
func RegistersResponseBytes(values []uint16) []byte {
	body := make([]byte, 1+2*len(values))
	body[0] = byte(2 * len(values))
	for i, v := range values {
		body[1+2*i] = byte(v >> 8)
		body[2+2*i] = byte(v)
	}
	return body
}

// ParseBitsResponse decodes a read coils or read discrete inputs response
// body on the client side, returning exactly quantity values.
func ParseBitsResponse(b []byte, quantity uint16) ([]bool, error) {
	if len(b) < 1 {
		return nil, common.ErrInvalidResponse
	}
	byteCount := int(b[0])
	if byteCount != BitByteCount(int(quantity)) || len(b) != 1+byteCount {
		return nil, common.ErrByteCountMismatch
	}
	values := make([]bool, quantity)
	for i := range values {
		values[i] = b[1+i/8]&(1<<uint(i%8)) != 0
	}
	return values, nil
}

// ParseRegistersResponse decodes a read holding or input registers response
// body on the client side, returning exactly quantity values.
func ParseRegistersResponse(b []byte, quantity uint16) ([]uint16, error) {
	if len(b) < 1 {
		return nil, common.ErrInvalidResponse
	}
	byteCount := int(b[0])
	if byteCount != 2*int(quantity) || len(b) != 1+byteCount {
		return nil, common.ErrByteCountMismatch
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = uint16(b[1+2*i])<<8 | uint16(b[2+2*i])
	}
	return values, nil
}
