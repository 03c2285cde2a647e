package data

import (
	"fmt"
	"strings"

	"github.com/rinzlerlabs/picomodbus/common"
	"go.uber.org/zap/zapcore"
)

// MaxPDULength is one function code byte plus at most 252 bytes of body.
const MaxPDULength = 253

type ProtocolDataUnit struct {
	Function FunctionCode
	Data     []byte
}

func (pdu *ProtocolDataUnit) Bytes() []byte {
	// 1 byte for the function plus the data
	data := make([]byte, 1+len(pdu.Data))
	data[0] = byte(pdu.Function)
	copy(data[1:], pdu.Data)
	return data
}

func (pdu *ProtocolDataUnit) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("Function", pdu.Function.String())
	encoder.AddString("Data", EncodeToString(pdu.Data))
	return nil
}

func NewProtocolDataUnitFromBytes(data []byte) (*ProtocolDataUnit, error) {
	if len(data) < 2 || len(data) > MaxPDULength {
		return nil, common.ErrInvalidResponse
	}
	return &ProtocolDataUnit{
		Function: FunctionCode(data[0]),
		Data:     data[1:],
	}, nil
}

// NewExceptionResponse builds the exception rendition of a request PDU.
func NewExceptionResponse(f FunctionCode, e common.Exception) *ProtocolDataUnit {
	return &ProtocolDataUnit{
		Function: f.Exception(),
		Data:     []byte{byte(e)},
	}
}

func EncodeToString(data []byte) string {
	var builder strings.Builder
	for i, b := range data {
		if i > 0 {
			builder.WriteString(" ")
		}
		builder.WriteString(fmt.Sprintf("%02X", b))
	}
	return builder.String()
}
