package ws

import (
	"context"
	"errors"
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"sharedspace/server"
	"sharedspace/server/internal/net/proto"
	"sharedspace/server/internal/session"
	"sharedspace/server/logging"
	"sharedspace/server/logging/network"
)

const (
	defaultRateLimit       = 60
	defaultRateBurst       = 120
	defaultPongWait        = 60 * time.Second
	defaultMaxMessageBytes = 64 << 10
)

type HandlerConfig struct {
	Logger    *log.Logger
	Publisher logging.Publisher
	// RateLimit is the sustained inbound messages per second allowed per link.
	RateLimit       rate.Limit
	RateBurst       int
	PongWait        time.Duration
	MaxMessageBytes int64
}

func (cfg HandlerConfig) normalized() HandlerConfig {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessageBytes
	}
	return cfg
}

type Handler struct {
	hub      *server.Hub
	cfg      HandlerConfig
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	cfg = cfg.normalized()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		cfg:      cfg,
		logger:   cfg.Logger,
		upgrader: upgrader,
	}
}

// Handle upgrades the request and runs the connection until the peer goes
// away. The participant id is bound to the connection at join and every
// later message is attributed to it.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	link := newLink(conn)
	go link.keepAlive(h.cfg.PongWait * 9 / 10)

	conn.SetReadLimit(h.cfg.MaxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	s := &connSession{
		handler:   h,
		link:      link,
		limiter:   rate.NewLimiter(h.cfg.RateLimit, h.cfg.RateBurst),
		publisher: logging.WithFields(h.cfg.Publisher, map[string]any{"remoteAddr": r.RemoteAddr}),
	}
	s.run(r.Context())
}

// connSession is the read side of one connection.
type connSession struct {
	handler   *Handler
	link      *Link
	limiter   *rate.Limiter
	publisher logging.Publisher
	id        string
}

func (s *connSession) run(ctx context.Context) {
	hub := s.handler.hub
	defer func() {
		if s.id != "" {
			hub.Disconnect(context.Background(), s.id, server.ReasonClosed)
		}
		s.link.Close()
		<-s.link.Done()
	}()

	for {
		_, payload, err := s.link.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.handler.logger.Printf("read failed for %s: %v", s.actorLabel(), err)
			}
			return
		}
		if !s.dispatch(ctx, payload) {
			return
		}
	}
}

// dispatch handles one inbound frame and reports whether the connection
// should keep reading.
func (s *connSession) dispatch(ctx context.Context, payload []byte) bool {
	hub := s.handler.hub
	pub := s.publisher

	if !s.limiter.Allow() {
		network.RateLimited(ctx, pub, s.actor(), network.RateLimitedPayload{MessageBytes: len(payload)})
		return s.reply(proto.Error{Message: "too many messages", Code: proto.CodeRateLimited})
	}

	// Unknown types are skipped before decoding so their fields are never
	// checked against the known message shapes.
	if kind := proto.PeekType(payload); kind != "" && !proto.IsClientType(kind) {
		network.UnknownMessage(ctx, pub, s.actor(), network.UnknownMessagePayload{MessageType: kind})
		return true
	}

	msg, err := proto.Decode(payload)
	if err != nil {
		network.MalformedMessage(ctx, pub, s.actor(), network.MalformedMessagePayload{Error: err.Error(), Bytes: len(payload)})
		return s.reply(proto.Error{Message: "malformed message", Code: proto.CodeMalformed})
	}

	if msg.Type == proto.TypeJoin {
		if s.id != "" {
			return s.reply(proto.Error{Message: server.ErrAlreadyJoined.Error(), Code: proto.CodeAlreadyJoined})
		}
		participant, err := hub.Join(ctx, msg.Name, s.link)
		if err != nil {
			if errors.Is(err, session.ErrCapacityExceeded) {
				s.link.CloseWith(websocket.CloseTryAgainLater, "room full")
			}
			return false
		}
		s.id = participant.ID
		return true
	}

	if s.id == "" {
		return s.reply(proto.Error{Message: server.ErrNotJoined.Error(), Code: proto.CodeNotJoined})
	}

	switch msg.Type {
	case proto.TypeMove, proto.TypeMoveUpdate:
		err = hub.HandleMove(ctx, s.id, msg)
	case proto.TypeFoodEaten:
		err = hub.HandleFoodEaten(ctx, s.id, msg)
	case proto.TypeLeave:
		hub.Disconnect(ctx, s.id, server.ReasonLeave)
		s.id = ""
		return false
	case proto.TypeSignal:
		err = hub.HandleSignal(ctx, s.id, msg.TargetID, msg.Signal)
	case proto.TypeRename:
		_, err = hub.Rename(ctx, s.id, msg.Name)
		if errors.Is(err, session.ErrInvalidName) {
			return s.reply(proto.Error{Message: "name must not be blank", Code: proto.CodeInvalidName})
		}
	case proto.TypeDraw:
		if msg.Start != nil && msg.End != nil {
			err = hub.HandleDraw(ctx, s.id, *msg.Start, *msg.End)
		}
	default:
		network.UnknownMessage(ctx, pub, s.actor(), network.UnknownMessagePayload{MessageType: msg.Type})
		return true
	}

	if errors.Is(err, server.ErrNotJoined) {
		// Removed by a failed broadcast while this frame was in flight.
		s.id = ""
		return false
	}
	return true
}

// reply sends a direct response on the link.
func (s *connSession) reply(msg proto.Outbound) bool {
	data, err := proto.Encode(msg)
	if err != nil {
		s.handler.logger.Printf("failed to encode %s for %s: %v", msg.MessageType(), s.actorLabel(), err)
		return true
	}
	return s.link.Send(data) == nil
}

func (s *connSession) actor() logging.EntityRef {
	if s.id == "" {
		return logging.EntityRef{Kind: logging.EntityKindLink}
	}
	return logging.ParticipantRef(s.id)
}

func (s *connSession) actorLabel() string {
	if s.id == "" {
		return "unjoined link"
	}
	return s.id
}
