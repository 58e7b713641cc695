// Package command carries tunnel service commands as opaque messages over
// the local IPC channel between the CLI and the daemon.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	ipc "github.com/james-barrow/golang-ipc"
	"github.com/sirupsen/logrus"

	"github.com/skycoin/skywire-utilities/pkg/logging"

	"github.com/tunfence/tunfence/pkg/vpn"
)

const (
	// StartMessageType is the IPC message type carrying a START command.
	StartMessageType = 71

	// StopMessageType is the IPC message type carrying a STOP command.
	StopMessageType = 72
)

// connectPollInterval paces the wait for the IPC handshake.
const connectPollInterval = 50 * time.Millisecond

var (
	// ErrDaemonUnreachable is returned when the daemon's IPC channel does
	// not come up within the send timeout.
	ErrDaemonUnreachable = errors.New("tunfence daemon is unreachable")

	// ErrUnknownCommand is returned when asked to send a command with no
	// wire encoding.
	ErrUnknownCommand = errors.New("unknown command")
)

// Handler consumes decoded commands.
type Handler interface {
	HandleCommand(cmd vpn.Command)
}

// Server receives opaque command messages from the CLI and dispatches
// them to the handler. Unknown message types are logged and ignored.
type Server struct {
	log  logrus.FieldLogger
	name string
	h    Handler
}

// NewServer instantiates a command Server on the named IPC channel.
func NewServer(log logrus.FieldLogger, name string, h Handler) *Server {
	if log == nil {
		log = logging.MustGetLogger("command_server")
	}
	return &Server{
		log:  log,
		name: name,
		h:    h,
	}
}

// ListenAndServe reads command messages until ctx is cancelled. Each
// recognized command is acknowledged by echoing its message type.
func (s *Server) ListenAndServe(ctx context.Context) error {
	sv, err := ipc.StartServer(s.name, nil)
	if err != nil {
		return fmt.Errorf("failed to start IPC command server: %w", err)
	}
	go func() {
		<-ctx.Done()
		sv.Close()
	}()

	for {
		m, err := sv.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read IPC command: %w", err)
		}
		if m == nil || m.MsgType < 0 {
			// Internal golang-ipc status traffic.
			continue
		}

		cmd, ok := decode(m.MsgType)
		if !ok {
			s.log.WithField("msg_type", m.MsgType).Warn("Ignoring unknown command message.")
			continue
		}

		s.log.WithField("command", cmd.String()).Debug("Command received.")
		s.h.HandleCommand(cmd)

		if err := sv.Write(m.MsgType, []byte("")); err != nil {
			s.log.WithError(err).Debug("Failed to acknowledge command.")
		}
	}
}

// Send delivers one command to the daemon over the named IPC channel and
// waits for its acknowledgement.
func Send(name string, cmd vpn.Command, timeout time.Duration) error {
	msgType, ok := encode(cmd)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownCommand, int(cmd))
	}

	cc, err := ipc.StartClient(name, nil)
	if err != nil {
		return fmt.Errorf("failed to open IPC channel: %w", err)
	}
	defer cc.Close()

	deadline := time.Now().Add(timeout)
	for cc.StatusCode() != ipc.Connected {
		if time.Now().After(deadline) {
			return ErrDaemonUnreachable
		}
		time.Sleep(connectPollInterval)
	}

	if err := cc.Write(msgType, []byte("")); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd, err)
	}

	// The read below unblocks with an error once the timer closes the
	// channel, so an unresponsive daemon cannot hang the CLI.
	timer := time.AfterFunc(time.Until(deadline), func() { cc.Close() })
	defer timer.Stop()

	for {
		m, err := cc.Read()
		if err != nil {
			return fmt.Errorf("failed waiting for acknowledgement of %s: %w", cmd, err)
		}
		if m != nil && m.MsgType == msgType {
			return nil
		}
	}
}

func decode(msgType int) (vpn.Command, bool) {
	switch msgType {
	case StartMessageType:
		return vpn.CommandStart, true
	case StopMessageType:
		return vpn.CommandStop, true
	default:
		return 0, false
	}
}

func encode(cmd vpn.Command) (int, bool) {
	switch cmd {
	case vpn.CommandStart:
		return StartMessageType, true
	case vpn.CommandStop:
		return StopMessageType, true
	default:
		return 0, false
	}
}
