package data

import (
	"github.com/rinzlerlabs/picomodbus/common"
	"go.uber.org/zap/zapcore"
)

// Wire values of a single coil write.
const (
	CoilOn  uint16 = 0xFF00
	CoilOff uint16 = 0x0000
)

func NewWriteSingleCoilRequest(offset uint16, value bool) *WriteSingleCoilRequest {
	return &WriteSingleCoilRequest{Offset: offset, Value: value}
}

type WriteSingleCoilRequest struct {
	Offset uint16
	Value  bool
}

func (r *WriteSingleCoilRequest) Bytes() []byte {
	value := CoilOff
	if r.Value {
		value = CoilOn
	}
	return []byte{
		byte(r.Offset >> 8),
		byte(r.Offset),
		byte(value >> 8),
		byte(value),
	}
}

func (r *WriteSingleCoilRequest) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint16("Offset", r.Offset)
	encoder.AddBool("Value", r.Value)
	return nil
}

func NewWriteSingleRegisterRequest(offset, value uint16) *WriteSingleRegisterRequest {
	return &WriteSingleRegisterRequest{Offset: offset, Value: value}
}

type WriteSingleRegisterRequest struct {
	Offset uint16
	Value  uint16
}

func (r *WriteSingleRegisterRequest) Bytes() []byte {
	return []byte{
		byte(r.Offset >> 8),
		byte(r.Offset),
		byte(r.Value >> 8),
		byte(r.Value),
	}
}

func (r *WriteSingleRegisterRequest) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint16("Offset", r.Offset)
	encoder.AddUint16("Value", r.Value)
	return nil
}

func NewWriteMultipleCoilsRequest(offset uint16, values []bool) *WriteMultipleCoilsRequest {
	return &WriteMultipleCoilsRequest{Offset: offset, Values: values}
}

type WriteMultipleCoilsRequest struct {
	Offset uint16
	Values []bool
}

func (r *WriteMultipleCoilsRequest) Bytes() []byte {
	byteCount := BitByteCount(len(r.Values))
	body := make([]byte, 5+byteCount)
	body[0] = byte(r.Offset >> 8)
	body[1] = byte(r.Offset)
	body[2] = byte(len(r.Values) >> 8)
	body[3] = byte(len(r.Values))
	body[4] = byte(byteCount)
	for i, v := range r.Values {
		if v {
			body[5+i/8] |= 1 << uint(i%8)
		}
	}
	return body
}

func (r *WriteMultipleCoilsRequest) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint16("Offset", r.Offset)
	encoder.AddInt("Count", len(r.Values))
	return nil
}

func NewWriteMultipleRegistersRequest(offset uint16, values []uint16) *WriteMultipleRegistersRequest {
	return &WriteMultipleRegistersRequest{Offset: offset, Values: values}
}

type WriteMultipleRegistersRequest struct {
	Offset uint16
	Values []uint16
}

func (r *WriteMultipleRegistersRequest) Bytes() []byte {
	body := make([]byte, 5+2*len(r.Values))
	body[0] = byte(r.Offset >> 8)
	body[1] = byte(r.Offset)
	body[2] = byte(len(r.Values) >> 8)
	body[3] = byte(len(r.Values))
	body[4] = byte(2 * len(r.Values))
	for i, v := range r.Values {
		body[5+2*i] = byte(v >> 8)
		body[6+2*i] = byte(v)
	}
	return body
}

func (r *WriteMultipleRegistersRequest) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint16("Offset", r.Offset)
	encoder.AddInt("Count", len(r.Values))
	return nil
}

// ParseWriteSingleRequest decodes the body shared by function codes 5 and 6
// on the server side. The value is returned raw; coil semantics are checked
// by the caller.
func ParseWriteSingleRequest(b []byte) (offset, value uint16, err error) {
	if len(b) != 4 {
		return 0, 0, common.ErrInvalidResponse
	}
	offset = uint16(b[0])<<8 | uint16(b[1])
	value = uint16(b[2])<<8 | uint16(b[3])
	return offset, value, nil
}

// ParseWriteMultipleCoilsRequest decodes a write multiple coils request body
// on the server side, validating the byte count against the quantity.
func ParseWriteMultipleCoilsRequest(b []byte) (offset, quantity uint16, values *Bitfield, err error) {
	if len(b) < 6 {
		return 0, 0, nil, common.ErrInvalidResponse
	}
	offset = uint16(b[0])<<8 | uint16(b[1])
	quantity = uint16(b[2])<<8 | uint16(b[3])
	byteCount := int(b[4])
	if err := WriteMultipleCoils.CheckQuantity(quantity); err != nil {
		return 0, 0, nil, err
	}
	if byteCount != BitByteCount(int(quantity)) || len(b) != 5+byteCount {
		return 0, 0, nil, common.ErrByteCountMismatch
	}
	values = &Bitfield{}
	copy(values[:], b[5:])
	return offset, quantity, values, nil
}

// ParseWriteMultipleRegistersRequest decodes a write multiple registers
// request body on the server side, validating the byte count against the
// quantity.
func ParseWriteMultipleRegistersRequest(b []byte) (offset uint16, values []uint16, err error) {
	if len(b) < 7 {
		return 0, nil, common.ErrInvalidResponse
	}
	offset = uint16(b[0])<<8 | uint16(b[1])
	quantity := uint16(b[2])<<8 | uint16(b[3])
	byteCount := int(b[4])
	if err := WriteMultipleRegisters.CheckQuantity(quantity); err != nil {
		return 0, nil, err
	}
	if byteCount != 2*int(quantity) || len(b) != 5+byteCount {
		return 0, nil, common.ErrByteCountMismatch
	}
	values = make([]uint16, quantity)
	for i := range values {
		values[i] = uint16(b[5+2*i])<<8 | uint16(b[6+2*i])
	}
	return offset, values, nil
}
