package diagnostics

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/industrialgo/cipstack/cip"
	"github.com/industrialgo/cipstack/device"
	"github.com/industrialgo/cipstack/enip"
)

func buildENIPTCPPacket(t *testing.T, srcIP, dstIP string, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP,
		SrcIP: net.ParseIP(srcIP).To4(), DstIP: net.ParseIP(dstIP).To4(),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort),
		Seq: 1, ACK: true, Window: 14600,
	}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		t.Fatalf("serialize tcp packet: %v", err)
	}
	return buf.Bytes()
}

func writeCapture(t *testing.T, packets ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.pcap")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pcap: %v", err)
	}
	defer file.Close()

	writer := pcapgo.NewWriter(file)
	if err := writer.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("write pcap header: %v", err)
	}
	for i, packet := range packets {
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(1700000000, int64(i)*int64(time.Millisecond)),
			CaptureLength: len(packet),
			Length:        len(packet),
		}
		if err := writer.WritePacket(ci, packet); err != nil {
			t.Fatalf("write packet: %v", err)
		}
	}
	return path
}

func registerSessionFrame(session uint32) []byte {
	msg := enip.Message{Header: enip.Header{Command: enip.CmdRegisterSession, SessionHandle: session}, Data: []byte{0x01, 0x00, 0x00, 0x00}}
	return msg.Encode()
}

func sendRRDataFrame(session uint32, cipPayload []byte) []byte {
	items := enip.EncodeItems(0, 0, enip.WrapUnconnectedReply(cipPayload))
	// WrapUnconnectedReply's shape (null address + unconnected-data item)
	// serves requests and replies alike; only the CIP service byte's high
	// bit tells them apart.
	msg := enip.Message{Header: enip.Header{Command: enip.CmdSendRRData, SessionHandle: session}, Data: items}
	return msg.Encode()
}

func TestExtractFramesTCPSingleFrame(t *testing.T) {
	payload := registerSessionFrame(7)
	pkt := buildENIPTCPPacket(t, "10.0.0.1", "10.0.0.2", 12000, 44818, payload)
	path := writeCapture(t, pkt)

	frames, err := ExtractFrames(path)
	if err != nil {
		t.Fatalf("ExtractFrames: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Message.Header.Command != enip.CmdRegisterSession {
		t.Fatalf("command = 0x%04X, want RegisterSession", frames[0].Message.Header.Command)
	}
	if frames[0].SrcPort != 12000 || frames[0].DstPort != 44818 {
		t.Fatalf("unexpected ports: src=%d dst=%d", frames[0].SrcPort, frames[0].DstPort)
	}
}

func TestExtractFramesTCPReassembly(t *testing.T) {
	payload := registerSessionFrame(9)
	part1, part2 := payload[:10], payload[10:]
	pkt1 := buildENIPTCPPacket(t, "10.0.0.1", "10.0.0.2", 12002, 44818, part1)
	pkt2 := buildENIPTCPPacket(t, "10.0.0.1", "10.0.0.2", 12002, 44818, part2)
	path := writeCapture(t, pkt1, pkt2)

	frames, err := ExtractFrames(path)
	if err != nil {
		t.Fatalf("ExtractFrames: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 reassembled frame, got %d", len(frames))
	}
	if len(frames[0].Raw) != len(payload) {
		t.Fatalf("raw length = %d, want %d", len(frames[0].Raw), len(payload))
	}
}

func TestSummarizeCountsCommandsAndServices(t *testing.T) {
	getAttrReq := []byte{cip.SvcGetAttributeSingle, 0x02, 0x20, 0x01, 0x24, 0x01}
	getAttrResp := []byte{cip.SvcGetAttributeSingle | 0x80, 0x00, byte(cip.StatusSuccess), 0x00}

	frames := []Frame{
		{Message: enip.Message{Header: enip.Header{Command: enip.CmdSendRRData, SessionHandle: 1},
			Data: enip.EncodeItems(0, 0, enip.WrapUnconnectedReply(getAttrReq))}},
		{Message: enip.Message{Header: enip.Header{Command: enip.CmdSendRRData, SessionHandle: 1},
			Data: enip.EncodeItems(0, 0, enip.WrapUnconnectedReply(getAttrResp))}},
	}

	sum := Summarize(frames)
	if sum.TotalFrames != 2 {
		t.Fatalf("TotalFrames = %d, want 2", sum.TotalFrames)
	}
	if sum.Requests != 1 || sum.Replies != 1 {
		t.Fatalf("Requests=%d Replies=%d, want 1/1", sum.Requests, sum.Replies)
	}
	if sum.ByService[cip.SvcGetAttributeSingle] != 2 {
		t.Fatalf("ByService[GetAttributeSingle] = %d, want 2", sum.ByService[cip.SvcGetAttributeSingle])
	}
	if ServiceName(cip.SvcGetAttributeSingle) != "GetAttributeSingle" {
		t.Fatalf("ServiceName mismatch: %s", ServiceName(cip.SvcGetAttributeSingle))
	}
}

func TestReplayMatchesReproducedStatus(t *testing.T) {
	dev := device.New(device.Config{Identity: device.DefaultIdentity()})
	dev.Tags.Declare("Speed", cip.TypeDINT, 1)

	// A Get-Attribute-Single on the identity object's vendor attribute
	// always succeeds against a freshly built device, so a captured
	// success reply should replay as a match.
	req := []byte{cip.SvcGetAttributeSingle, 0x03, 0x20, byte(cip.ClassIdentity), 0x24, 0x01, 0x30, 0x01}
	observed := dev.Dispatcher.DispatchRaw(req)
	if observed[2] != byte(cip.StatusSuccess) {
		t.Fatalf("fixture request itself failed: status 0x%02X", observed[2])
	}

	reqFrame := Frame{Message: enip.Message{
		Header: enip.Header{Command: enip.CmdSendRRData, SessionHandle: 5},
		Data:   enip.EncodeItems(0, 0, enip.WrapUnconnectedReply(req)),
	}}
	replyPayload := append([]byte{req[0] | 0x80}, observed[1:]...)
	replyFrame := Frame{Message: enip.Message{
		Header: enip.Header{Command: enip.CmdSendRRData, SessionHandle: 5},
		Data:   enip.EncodeItems(0, 0, enip.WrapUnconnectedReply(replyPayload)),
	}}

	results := Replay(dev.Dispatcher, []Frame{reqFrame, replyFrame})
	if len(results) != 1 {
		t.Fatalf("expected 1 replay result, got %d", len(results))
	}
	if !results[0].Matched {
		t.Fatalf("expected captured and observed status to match, got captured=0x%02X observed=0x%02X",
			results[0].CapturedStatus, results[0].ObservedStatus)
	}
}
