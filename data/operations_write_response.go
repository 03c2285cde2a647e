package data

import "github.com/rinzlerlabs/picomodbus/common"

// WriteSingleResponseBytes echoes a single write request body.
func WriteSingleResponseBytes(offset, value uint16) []byte {
	return []byte{
		byte(offset >> 8),
		byte(offset),
		byte(value >> 8),
		byte(value),
	}
}

// WriteMultipleResponseBytes serialises a write multiple response body.
func WriteMultipleResponseBytes(offset, quantity uint16) []byte {
	return []byte{
		byte(offset >> 8),
		byte(offset),
		byte(quantity >> 8),
		byte(quantity),
	}
}

// ParseWriteSingleResponse decodes the echoed body of function codes 5 and 6
// on the client side.
func ParseWriteSingleResponse(b []byte) (offset, value uint16, err error) {
	if len(b) != 4 {
		return 0, 0, common.ErrInvalidResponse
	}
	offset = uint16(b[0])<<8 | uint16(b[1])
	value = uint16(b[2])<<8 | uint16(b[3])
	return offset, value, nil
}

// ParseWriteMultipleResponse decodes the body of function codes 15 and 16
// responses on the client side.
func ParseWriteMultipleResponse(b []byte) (offset, quantity uint16, err error) {
	if len(b) != 4 {
		return 0, 0, common.ErrInvalidResponse
	}
	offset = uint16(b[0])<<8 | uint16(b[1])
	quantity = uint16(b[2])<<8 | uint16(b[3])
	return offset, quantity, nil
}
