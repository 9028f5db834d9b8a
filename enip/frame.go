// Package enip implements the EtherNet/IP encapsulation layer: the fixed
// encapsulation header, the Common Packet Format item list it wraps, and
// the discovery payloads (List Identity, List Services, List Interfaces).
// It carries no CIP semantics of its own — that lives in package cip.
package enip

import (
	"encoding/binary"
	"fmt"
)

// Command is an EtherNet/IP encapsulation command code (§2).
type Command uint16

// Encapsulation commands this stack accepts.
const (
	CmdNOP               Command = 0x0000
	CmdListServices      Command = 0x0004
	CmdListIdentity      Command = 0x0063
	CmdListInterfaces    Command = 0x0064
	CmdRegisterSession   Command = 0x0065
	CmdUnRegisterSession Command = 0x0066
	CmdSendRRData        Command = 0x006F
	CmdSendUnitData      Command = 0x0070
	CmdIndicateStatus    Command = 0x0072
	CmdCancel            Command = 0x0073

	// CmdLegacyUnknown is an undocumented command code (0x0001) some older
	// scanners emit; §9 Open Question decides to acknowledge it rather
	// than reject it, matching how real gateways stay interoperable with
	// aging masters.
	CmdLegacyUnknown Command = 0x0001
)

// Status is an encapsulation-layer status code, distinct from a CIP general
// status (§2 "Status").
type Status uint32

// Encapsulation status codes.
const (
	StatusSuccess          Status = 0x00
	StatusInvalidCommand   Status = 0x01
	StatusNoMemory         Status = 0x02
	StatusIncorrectData    Status = 0x03
	StatusInvalidSession   Status = 0x64
	StatusInvalidLength    Status = 0x65
	StatusInvalidProtocol  Status = 0x69
)

const headerLen = 24

// Header is the 24-byte encapsulation header prefixing every ENIP message.
type Header struct {
	Command       Command
	Length        uint16 // length of the data following this header
	SessionHandle uint32
	Status        Status
	SenderContext uint64 // opaque, echoed verbatim in the reply
	Options       uint32
}

// DecodeHeader parses the fixed 24-byte header from the front of raw.
func DecodeHeader(raw []byte) (Header, error) {
	if len(raw) < headerLen {
		return Header{}, fmt.Errorf("enip: header needs %d bytes, got %d", headerLen, len(raw))
	}
	return Header{
		Command:       Command(binary.LittleEndian.Uint16(raw[0:2])),
		Length:        binary.LittleEndian.Uint16(raw[2:4]),
		SessionHandle: binary.LittleEndian.Uint32(raw[4:8]),
		Status:        Status(binary.LittleEndian.Uint32(raw[8:12])),
		SenderContext: binary.LittleEndian.Uint64(raw[12:20]),
		Options:       binary.LittleEndian.Uint32(raw[20:24]),
	}, nil
}

// Encode serializes h to its 24-byte wire form.
func (h Header) Encode() []byte {
	buf := make([]byte, headerLen)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(h.Command))
	binary.LittleEndian.PutUint16(buf[2:4], h.Length)
	binary.LittleEndian.PutUint32(buf[4:8], h.SessionHandle)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.Status))
	binary.LittleEndian.PutUint64(buf[12:20], h.SenderContext)
	binary.LittleEndian.PutUint32(buf[20:24], h.Options)
	return buf
}

// Message is a fully decoded encapsulation frame: header plus payload.
type Message struct {
	Header Header
	Data   []byte
}

// DecodeMessage parses one full frame (header + Header.Length bytes of
// payload) from the front of raw, returning the message and the number of
// bytes consumed — callers on a stream transport use the consumed count to
// find the next frame.
func DecodeMessage(raw []byte) (Message, int, error) {
	h, err := DecodeHeader(raw)
	if err != nil {
		return Message{}, 0, err
	}
	total := headerLen + int(h.Length)
	if len(raw) < total {
		return Message{}, 0, fmt.Errorf("enip: truncated frame: need %d bytes, have %d", total, len(raw))
	}
	return Message{Header: h, Data: raw[headerLen:total]}, total, nil
}

// Encode serializes the message, computing Length from len(Data).
func (m Message) Encode() []byte {
	m.Header.Length = uint16(len(m.Data))
	out := m.Header.Encode()
	return append(out, m.Data...)
}

// Reply builds the response frame for a request, echoing SessionHandle and
// SenderContext and carrying status and data.
func (m Message) Reply(status Status, data []byte) Message {
	return Message{
		Header: Header{
			Command:       m.Header.Command,
			SessionHandle: m.Header.SessionHandle,
			Status:        status,
			SenderContext: m.Header.SenderContext,
		},
		Data: data,
	}
}
