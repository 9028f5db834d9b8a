// Package diagnostics replays captured EtherNet/IP traffic offline through
// this stack's own frame codec, for protocol conformance debugging: does a
// capture decode cleanly, and does re-dispatching its requests against a
// live object model reproduce the captured reply's status. Grounded on
// tonylturner-cipdip's internal/pcap package, generalized from that
// project's byte-level protocol reimplementation to wrap this stack's own
// enip/cip decoders instead of duplicating them.
package diagnostics

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/industrialgo/cipstack/enip"
)

// portExplicit and portIO mirror §2's well-known TCP/UDP ports: 44818 for
// explicit messaging, 2222 for I/O.
const (
	portExplicit = 44818
	portIO       = 2222
)

// Frame is one decoded EtherNet/IP encapsulation message pulled from a
// capture, with the transport metadata a reader needs to make sense of it.
type Frame struct {
	Timestamp time.Time
	Transport string // "tcp" or "udp"
	SrcIP     string
	DstIP     string
	SrcPort   uint16
	DstPort   uint16
	Message   enip.Message
	Raw       []byte // full encapsulation frame, header included
}

// ExtractFrames opens an offline capture file and decodes every EtherNet/IP
// encapsulation frame carried on TCP or UDP traffic to/from the well-known
// ports, in capture order. TCP payload is reassembled per 4-tuple stream
// before frame decoding, since a single capture segment routinely splits (or
// coalesces) encapsulation frames.
func ExtractFrames(pcapFile string) ([]Frame, error) {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: open capture: %w", err)
	}
	defer handle.Close()

	var frames []Frame
	streams := make(map[string][]byte)
	source := gopacket.NewPacketSource(handle, handle.LinkType())

	for packet := range source.Packets() {
		ts := captureTimestamp(packet)
		src, dst := networkEndpoints(packet)

		if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
			tcp := tcpLayer.(*layers.TCP)
			if !isEnipPort(uint16(tcp.SrcPort), uint16(tcp.DstPort)) || len(tcp.Payload) == 0 {
				continue
			}
			key := fmt.Sprintf("%s:%d->%s:%d", src, tcp.SrcPort, dst, tcp.DstPort)
			streams[key] = append(streams[key], tcp.Payload...)
			decoded, remaining := drainFrames(streams[key], ts, "tcp", src, dst, uint16(tcp.SrcPort), uint16(tcp.DstPort))
			frames = append(frames, decoded...)
			streams[key] = remaining
			continue
		}

		if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
			udp := udpLayer.(*layers.UDP)
			if !isEnipPort(uint16(udp.SrcPort), uint16(udp.DstPort)) || len(udp.Payload) == 0 {
				continue
			}
			decoded, _ := drainFrames(udp.Payload, ts, "udp", src, dst, uint16(udp.SrcPort), uint16(udp.DstPort))
			frames = append(frames, decoded...)
		}
	}

	return frames, nil
}

// drainFrames decodes as many complete encapsulation frames as buf holds,
// returning the leftover bytes of a frame still awaiting more segments.
func drainFrames(buf []byte, ts time.Time, transport, srcIP, dstIP string, srcPort, dstPort uint16) ([]Frame, []byte) {
	var out []Frame
	offset := 0
	for {
		msg, n, err := enip.DecodeMessage(buf[offset:])
		if err != nil {
			break
		}
		raw := make([]byte, n)
		copy(raw, buf[offset:offset+n])
		out = append(out, Frame{
			Timestamp: ts, Transport: transport,
			SrcIP: srcIP, DstIP: dstIP, SrcPort: srcPort, DstPort: dstPort,
			Message: msg, Raw: raw,
		})
		offset += n
	}
	if offset == 0 {
		return out, buf
	}
	remaining := make([]byte, len(buf)-offset)
	copy(remaining, buf[offset:])
	return out, remaining
}

func isEnipPort(src, dst uint16) bool {
	return src == portExplicit || dst == portExplicit || src == portIO || dst == portIO
}

func captureTimestamp(packet gopacket.Packet) time.Time {
	if packet.Metadata() != nil {
		return packet.Metadata().Timestamp
	}
	return time.Time{}
}

func networkEndpoints(packet gopacket.Packet) (src, dst string) {
	net := packet.NetworkLayer()
	if net == nil {
		return "", ""
	}
	s, d := net.NetworkFlow().Endpoints()
	return s.String(), d.String()
}

// UnconnectedPayload extracts the raw CIP request/reply bytes carried in a
// SendRRData frame's unconnected-data CPF item, the shape Replay feeds to
// cip.Dispatcher.DispatchRaw.
func UnconnectedPayload(f Frame) ([]byte, error) {
	if f.Message.Header.Command != enip.CmdSendRRData {
		return nil, fmt.Errorf("diagnostics: frame is command 0x%04X, not SendRRData", f.Message.Header.Command)
	}
	_, _, items, err := enip.DecodeItems(f.Message.Data)
	if err != nil {
		return nil, err
	}
	return enip.UnconnectedData(items)
}
