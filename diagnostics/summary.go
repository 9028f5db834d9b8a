package diagnostics

import (
	"fmt"
	"sort"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/enip"
)

// Summary tallies a capture's traffic mix, grounded on cipdip's
// pcap.PCAPSummary but trimmed to the fields this stack's own decoders can
// actually populate without re-deriving CIP-message classification logic
// that already lives in package cip.
type Summary struct {
	TotalFrames int
	ByCommand   map[enip.Command]int
	ByService   map[byte]int // CIP service byte, request form (reply bit cleared)
	Requests    int
	Replies     int
	DecodeFail  int
}

// Summarize walks frames and produces traffic counts. DecodeFail counts
// SendRRData/SendUnitData frames whose embedded CIP request/reply couldn't
// even be pulled out of the CPF envelope — a strong signal of a malformed
// capture or an unsupported CPF item shape, not a CIP-level rejection
// (which the device would have encoded as a normal status byte).
func Summarize(frames []Frame) Summary {
	s := Summary{
		ByCommand: make(map[enip.Command]int),
		ByService: make(map[byte]int),
	}
	for _, f := range frames {
		s.TotalFrames++
		s.ByCommand[f.Message.Header.Command]++

		if f.Message.Header.Command != enip.CmdSendRRData && f.Message.Header.Command != enip.CmdSendUnitData {
			continue
		}
		payload, err := embeddedPayload(f)
		if err != nil {
			s.DecodeFail++
			continue
		}
		if len(payload) == 0 {
			continue
		}
		service := payload[0]
		if service&0x80 != 0 {
			s.Replies++
			service &^= 0x80
		} else {
			s.Requests++
		}
		s.ByService[service]++
	}
	return s
}

func embeddedPayload(f Frame) ([]byte, error) {
	_, _, items, err := enip.DecodeItems(f.Message.Data)
	if err != nil {
		return nil, err
	}
	if f.Message.Header.Command == enip.CmdSendRRData {
		return enip.UnconnectedData(items)
	}
	_, _, payload, err := enip.ConnectedData(items)
	return payload, err
}

// serviceNames labels the service codes this stack implements (§4.5, §4.6);
// anything else prints as a bare hex code.
var serviceNames = map[byte]string{
	cip.SvcGetAttributeAll:     "GetAttributeAll",
	cip.SvcSetAttributeList:    "SetAttributeList",
	cip.SvcReset:               "Reset",
	cip.SvcMultipleService:     "MultipleServicePacket",
	cip.SvcGetAttributeSingle:  "GetAttributeSingle",
	cip.SvcSetAttributeSingle:  "SetAttributeSingle",
	cip.SvcReadTag:             "ReadTag",
	cip.SvcWriteTag:            "WriteTag",
	cip.SvcUnconnectedSend:     "ReadTagFragmented/UnconnectedSend", // same code, disambiguated by target class
	cip.SvcWriteTagFragmented:  "WriteTagFragmented",
	cip.SvcGetInstanceAttrList: "GetInstanceAttributeList",
}

// ServiceName returns a human label for a CIP service byte, falling back to
// its hex code when this stack doesn't implement that service.
func ServiceName(service byte) string {
	if name, ok := serviceNames[service]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", service)
}

// TopServices lists the n most frequent CIP services seen, most frequent
// first, breaking ties by service code for a stable order.
func (s Summary) TopServices(n int) []byte {
	codes := make([]byte, 0, len(s.ByService))
	for c := range s.ByService {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		if s.ByService[codes[i]] == s.ByService[codes[j]] {
			return codes[i] < codes[j]
		}
		return s.ByService[codes[i]] > s.ByService[codes[j]]
	})
	if len(codes) > n {
		codes = codes[:n]
	}
	return codes
}
