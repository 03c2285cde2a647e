package data

import (
	"github.com/rinzlerlabs/picomodbus/common"
	"go.uber.org/zap/zapcore"
)

func readRequestBytes(offset, count uint16) []byte {
	return []byte{
		byte(offset >> 8),
		byte(offset),
		byte(count >> 8),
		byte(count),
	}
}

func NewReadCoilsRequest(offset, count uint16) *ReadCoilsRequest {
	return &ReadCoilsRequest{Offset: offset, Count: count}
}

type ReadCoilsRequest struct {
	Offset uint16
	Count  uint16
}

func (r *ReadCoilsRequest) Bytes() []byte {
	return readRequestBytes(r.Offset, r.Count)
}

func (r *ReadCoilsRequest) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint16("Offset", r.Offset)
	encoder.AddUint16("Count", r.Count)
	return nil
}

func NewReadDiscreteInputsRequest(offset, count uint16) *ReadDiscreteInputsRequest {
	return &ReadDiscreteInputsRequest{Offset: offset, Count: count}
}

type ReadDiscreteInputsRequest struct {
	Offset uint16
	Count  uint16
}

func (r *ReadDiscreteInputsRequest) Bytes() []byte {
	return readRequestBytes(r.Offset, r.Count)
}

func (r *ReadDiscreteInputsRequest) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint16("Offset", r.Offset)
	encoder.AddUint16("Count", r.Count)
	return nil
}

func NewReadHoldingRegistersRequest(offset, count uint16) *ReadHoldingRegistersRequest {
	return &ReadHoldingRegistersRequest{Offset: offset, Count: count}
}

type ReadHoldingRegistersRequest struct {
	Offset uint16
	Count  uint16
}

func (r *ReadHoldingRegistersRequest) Bytes() []byte {
	return readRequestBytes(r.Offset, r.Count)
}

func (r *ReadHoldingRegistersRequest) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint16("Offset", r.Offset)
	encoder.AddUint16("Count", r.Count)
	return nil
}

func NewReadInputRegistersRequest(offset, count uint16) *ReadInputRegistersRequest {
	return &ReadInputRegistersRequest{Offset: offset, Count: count}
}

type ReadInputRegistersRequest struct {
	Offset uint16
	Count  uint16
}

func (r *ReadInputRegistersRequest) Bytes() []byte {
	return readRequestBytes(r.Offset, r.Count)
}

func (r *ReadInputRegistersRequest) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddUint16("Offset", r.Offset)
	encoder.AddUint16("Count", r.Count)
	return nil
}

// ParseReadRequest decodes the shared body of function codes 1 through 4 on
// the server side.
func ParseReadRequest(b []byte) (offset, count uint16, err error) {
	if len(b) != 4 {
		return 0, 0, common.ErrInvalidResponse
	}
	offset = uint16(b[0])<<8 | uint16(b[1])
	count = uint16(b[2])<<8 | uint16(b[3])
	return offset, count, nil
}
