package server

import (
	"context"
	"net"
	"time"

	"github.com/industrialgo/cipstack/enip"
)

// ServeUDP answers datagram-per-request List Identity/List Services/List
// Interfaces discovery broadcasts on host, one goroutine per datagram,
// mirroring the teacher's serveUDP/handleUDPRequest split (§2 "UDP
// discovery is a datagram-per-request affair with no session state").
func (s *Server) ServeUDP(ctx context.Context, host string) error {
	addr, err := net.ResolveUDPAddr("udp4", host)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 0x8000)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		datagram := append([]byte(nil), buf[:n]...)
		go s.handleUDPDatagram(conn, datagram, from)
	}
}

func (s *Server) handleUDPDatagram(conn *net.UDPConn, dt []byte, from *net.UDPAddr) {
	msg, _, err := enip.DecodeMessage(dt)
	if err != nil {
		return
	}

	var reply enip.Message
	switch msg.Header.Command {
	case enip.CmdListIdentity:
		reply = msg.Reply(enip.StatusSuccess, s.listIdentityPayload())
	case enip.CmdListServices:
		reply = msg.Reply(enip.StatusSuccess, s.listServicesPayload())
	case enip.CmdListInterfaces:
		reply = msg.Reply(enip.StatusSuccess, []byte{0, 0})
	default:
		reply = msg.Reply(enip.StatusInvalidCommand, nil)
	}

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.WriteToUDP(reply.Encode(), from)
}
