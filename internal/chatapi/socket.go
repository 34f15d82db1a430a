package chatapi

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/devaloi/chatrooms/internal/domain"
)

const (
	// Time allowed to write a frame to the service.
	writeWait = 10 * time.Second

	// How long Close waits for the service to answer a close frame.
	closeGrace = 2 * time.Second

	// Inbound and outbound queue depth.
	queueSize = 256
)

// ErrSocketClosed is returned by Send once the socket has closed.
var ErrSocketClosed = errors.New("chatapi: socket closed")

// SocketState is the lifecycle position of a RoomSocket.
type SocketState int32

// Socket states.
const (
	Connecting SocketState = iota
	Open
	Closed
)

func (s SocketState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// RoomSocket is a live room connection whose handshake runs in the
// background. Opened and Done report lifecycle changes; Messages delivers
// inbound frames until the socket ends.
type RoomSocket struct {
	url    string
	dialer *websocket.Dialer
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state    atomic.Int32
	opened   chan struct{}
	done     chan struct{}
	incoming chan domain.Message
	outgoing chan []byte

	closeOnce sync.Once

	mu             sync.Mutex
	err            error
	closedByCaller bool
}

func newRoomSocket(target string, d *websocket.Dialer, l zerolog.Logger) *RoomSocket {
	ctx, cancel := context.WithCancel(context.Background())
	s := &RoomSocket{
		url:      target,
		dialer:   d,
		log:      l,
		ctx:      ctx,
		cancel:   cancel,
		opened:   make(chan struct{}),
		done:     make(chan struct{}),
		incoming: make(chan domain.Message, queueSize),
		outgoing: make(chan []byte, queueSize),
	}
	go s.run()
	return s
}

// URL returns the socket's target.
func (s *RoomSocket) URL() string { return s.url }

// State returns the current lifecycle state.
func (s *RoomSocket) State() SocketState { return SocketState(s.state.Load()) }

// Opened is closed when the handshake succeeds.
func (s *RoomSocket) Opened() <-chan struct{} { return s.opened }

// Done is closed when the socket has ended, however that happened.
func (s *RoomSocket) Done() <-chan struct{} { return s.done }

// Messages delivers inbound chat frames. It is closed when the socket ends.
func (s *RoomSocket) Messages() <-chan domain.Message { return s.incoming }

// Err returns why the socket ended. It is nil while the socket is live and
// after a Close by the caller.
func (s *RoomSocket) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Wait blocks until the socket is open, has failed, or ctx is done.
func (s *RoomSocket) Wait(ctx context.Context) error {
	select {
	case <-s.opened:
		return nil
	case <-s.done:
		select {
		case <-s.opened:
			return nil
		default:
		}
		if err := s.Err(); err != nil {
			return err
		}
		return ErrSocketClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send queues a frame. Frames sent while connecting go out once the
// socket opens.
func (s *RoomSocket) Send(msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	select {
	case <-s.done:
		return ErrSocketClosed
	case <-s.ctx.Done():
		return ErrSocketClosed
	default:
	}
	select {
	case s.outgoing <- data:
		return nil
	case <-s.done:
		return ErrSocketClosed
	case <-s.ctx.Done():
		return ErrSocketClosed
	}
}

// Close cancels a pending handshake or closes an open connection, and
// waits for the socket to finish. Safe to call more than once.
func (s *RoomSocket) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closedByCaller = true
		s.mu.Unlock()
		s.cancel()
	})
	<-s.done
	return nil
}

func (s *RoomSocket) run() {
	defer close(s.done)
	defer close(s.incoming)

	conn, resp, err := s.dialer.DialContext(s.ctx, s.url, nil)
	if err != nil {
		if resp != nil {
			err = errors.Wrapf(err, "dial %s: status %d", s.url, resp.StatusCode)
		} else {
			err = errors.Wrapf(err, "dial %s", s.url)
		}
		s.finish(err)
		return
	}
	s.state.Store(int32(Open))
	close(s.opened)
	s.log.Debug().Str("url", s.url).Msg("socket open")

	readDone := make(chan struct{})
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		s.writePump(conn, readDone)
	}()

	err = s.readLoop(conn)
	close(readDone)
	s.cancel()
	conn.Close()
	<-writeDone
	s.finish(err)
}

func (s *RoomSocket) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := domain.DecodeMessage(data)
		if err != nil {
			s.log.Warn().Err(err).Msg("skipping undecodable frame")
			continue
		}
		select {
		case s.incoming <- msg:
		case <-s.ctx.Done():
		}
	}
}

func (s *RoomSocket) writePump(conn *websocket.Conn, readDone <-chan struct{}) {
	for {
		select {
		case data := <-s.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug().Err(err).Msg("write failed")
				conn.Close()
				return
			}
		case <-readDone:
			return
		case <-s.ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			select {
			case <-readDone:
			case <-time.After(closeGrace):
				conn.Close()
			}
			return
		}
	}
}

func (s *RoomSocket) finish(err error) {
	s.mu.Lock()
	if s.closedByCaller {
		err = nil
	}
	s.err = err
	s.mu.Unlock()
	s.state.Store(int32(Closed))
	if err != nil {
		s.log.Debug().Err(err).Msg("socket closed")
	}
}
