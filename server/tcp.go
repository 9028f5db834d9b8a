package server

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/industrialgo/cipstack/device"
	"github.com/industrialgo/cipstack/enip"
)

// Server owns a device object model and serves it over TCP (explicit
// messaging, one goroutine per connection) and UDP (discovery), matching
// the teacher's Serve/handleRequest/serveUDP split.
type Server struct {
	Device   *device.Device
	Sessions *SessionTable
	Identity IdentityAdvertiser
	Timeout  time.Duration
	Faults   *Faults

	closed chan struct{}
	log    zerolog.Logger
}

// IdentityAdvertiser answers List Identity/List Services discovery
// requests without server needing to know device's internal layout.
type IdentityAdvertiser interface {
	Identity() enip.Identity
}

// New builds a Server around dev, defaulting the idle-connection timeout to
// 60 seconds as the teacher's PLC.Timeout does.
func New(dev *device.Device, adv IdentityAdvertiser) *Server {
	return &Server{
		Device:   dev,
		Sessions: NewSessionTable(),
		Identity: adv,
		Timeout:  60 * time.Second,
		Faults:   NewFaults(),
		closed:   make(chan struct{}),
		log:      log.With().Str("component", "server").Logger(),
	}
}

// Serve accepts TCP connections on host until ctx is canceled, running each
// on its own goroutine.
func (s *Server) Serve(ctx context.Context, host string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", host)
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", host).Msg("listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Error().Err(err).Msg("accept failed")
				return err
			}
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	clog := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()

	var handle uint32
	defer func() {
		if handle != 0 {
			s.Sessions.Unregister(handle)
		}
	}()

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		conn.SetReadDeadline(time.Now().Add(s.Timeout))
		n, err := conn.Read(tmp)
		if err != nil {
			return
		}
		buf = append(buf, tmp[:n]...)

		for {
			msg, consumed, err := enip.DecodeMessage(buf)
			if err != nil {
				break // need more bytes
			}
			buf = buf[consumed:]

			reply, unregister := s.handleMessage(clog, msg, &handle)
			if reply != nil {
				if _, err := conn.Write(reply.Encode()); err != nil {
					return
				}
			}
			if unregister {
				return
			}
		}
	}
}

func (s *Server) handleMessage(clog zerolog.Logger, msg enip.Message, handle *uint32) (*enip.Message, bool) {
	switch msg.Header.Command {
	case enip.CmdNOP:
		return nil, false

	case enip.CmdRegisterSession:
		reply := registerSession(s.Sessions, msg)
		*handle = reply.Header.SessionHandle
		return &reply, false

	case enip.CmdUnRegisterSession:
		reply := msg.Reply(enip.StatusSuccess, nil)
		return &reply, true

	case enip.CmdListIdentity:
		reply := msg.Reply(enip.StatusSuccess, s.listIdentityPayload())
		return &reply, false

	case enip.CmdListServices:
		reply := msg.Reply(enip.StatusSuccess, s.listServicesPayload())
		return &reply, false

	case enip.CmdListInterfaces:
		reply := msg.Reply(enip.StatusSuccess, []byte{0, 0})
		return &reply, false

	case enip.CmdLegacyUnknown:
		reply := msg.Reply(enip.StatusSuccess, nil)
		return &reply, false

	case enip.CmdSendRRData, enip.CmdSendUnitData:
		if !s.Sessions.Valid(msg.Header.SessionHandle) {
			reply := msg.Reply(enip.StatusInvalidSession, nil)
			return &reply, false
		}
		if !s.Faults.Enabled() {
			// Administrative disable (§4.7, §8 scenario 5): drop the request
			// on the floor so the client observes an I/O timeout, not a
			// service error.
			return nil, false
		}
		if delay := s.Faults.ForcedDelay(); delay > 0 {
			time.Sleep(delay)
		}
		reply := s.handleRRData(msg)
		return &reply, false

	default:
		clog.Debug().Uint16("command", uint16(msg.Header.Command)).Msg("unsupported command")
		reply := msg.Reply(enip.StatusInvalidCommand, nil)
		return &reply, false
	}
}

func (s *Server) handleRRData(msg enip.Message) enip.Message {
	_, _, items, err := enip.DecodeItems(msg.Data)
	if err != nil {
		return msg.Reply(enip.StatusIncorrectData, nil)
	}
	unconn, err := enip.UnconnectedData(items)
	if err != nil {
		return msg.Reply(enip.StatusIncorrectData, nil)
	}
	respBody := s.Device.Dispatcher.DispatchRaw(unconn)
	respBody = applyInducedStatus(respBody, s.Faults.InducedStatus())
	return msg.Reply(enip.StatusSuccess, enip.EncodeItems(0, 0, enip.WrapUnconnectedReply(respBody)))
}

func (s *Server) listIdentityPayload() []byte {
	id := s.Identity.Identity()
	return enip.EncodeItems(0, 0, []enip.Item{id.Item()})
}

func (s *Server) listServicesPayload() []byte {
	entry := enip.DefaultServiceEntry()
	return enip.EncodeItems(0, 0, []enip.Item{entry.Item()})
}
