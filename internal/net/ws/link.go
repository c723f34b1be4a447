package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	closeWait  = time.Second
	sendBuffer = 64
)

var (
	// ErrLinkClosed is returned by Send once the link is closing.
	ErrLinkClosed = errors.New("ws: link closed")
	// ErrBacklogFull is returned by Send when the peer is not draining its
	// outbound queue.
	ErrBacklogFull = errors.New("ws: outbound backlog full")
)

// Link queues outbound frames for a single writer goroutine. Send never
// waits on the peer, so a slow client cannot stall the caller.
type Link struct {
	conn     *websocket.Conn
	outbound chan []byte

	closeOnce   sync.Once
	closing     chan struct{}
	closeCode   int
	closeReason string
	done        chan struct{}
}

// newLink starts the writer for conn.
func newLink(conn *websocket.Conn) *Link {
	l := &Link{
		conn:     conn,
		outbound: make(chan []byte, sendBuffer),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.writePump()
	return l
}

// Send queues one text frame.
func (l *Link) Send(data []byte) error {
	select {
	case <-l.closing:
		return ErrLinkClosed
	default:
	}
	select {
	case l.outbound <- data:
		return nil
	default:
		return ErrBacklogFull
	}
}

// Close sends a normal closure and drops the connection.
func (l *Link) Close() error {
	return l.CloseWith(websocket.CloseNormalClosure, "")
}

// CloseWith asks the writer to flush queued frames, send a close frame with
// code and reason, and drop the connection. Only the first call has effect.
func (l *Link) CloseWith(code int, reason string) error {
	l.closeOnce.Do(func() {
		l.closeCode = code
		l.closeReason = reason
		close(l.closing)
	})
	return nil
}

// Done is closed once the writer has released the connection.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

func (l *Link) writePump() {
	defer close(l.done)
	for {
		select {
		case data := <-l.outbound:
			if err := l.write(data); err != nil {
				l.abort()
				return
			}
		case <-l.closing:
			l.flush()
			message := websocket.FormatCloseMessage(l.closeCode, l.closeReason)
			l.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeWait))
			l.conn.Close()
			return
		}
	}
}

func (l *Link) write(data []byte) error {
	if err := l.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return l.conn.WriteMessage(websocket.TextMessage, data)
}

// flush writes whatever is still queued, giving up on the first error.
func (l *Link) flush() {
	for {
		select {
		case data := <-l.outbound:
			if err := l.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// abort drops the connection after a failed write. Later sends fail.
func (l *Link) abort() {
	l.closeOnce.Do(func() {
		close(l.closing)
	})
	l.conn.Close()
}

// keepAlive pings the peer every interval until the link closes. A failed
// ping closes the link, which unblocks the reader.
func (l *Link) keepAlive(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				l.CloseWith(websocket.CloseGoingAway, "ping failed")
				return
			}
		}
	}
}
