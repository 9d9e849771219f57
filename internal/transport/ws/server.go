package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/ingest"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/repository"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/internal/timeline"
	"github.com/cwrk-planet/chat-service/internal/translate"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type ChatSvc interface {
	Send(ctx context.Context, req service.SendRequest) (service.SendResult, error)
}

type LanguageSvc interface {
	Language(ctx context.Context, userID string) (string, error)
}

type Deps struct {
	Hub      *Hub
	Feed     repository.Feed
	Resolver ingest.Resolver
	Chat     ChatSvc
	Users    LanguageSvc
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	feed     repository.Feed
	resolver ingest.Resolver
	chatSvc  ChatSvc
	userSvc  LanguageSvc
	log      *slog.Logger
	metrics  *metrics.Metrics

	pingEvery time.Duration
}

func NewServer(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	hub := d.Hub
	if hub == nil {
		hub = NewHub()
	}
	return &Server{
		hub:      hub,
		feed:     d.Feed,
		resolver: d.Resolver,
		chatSvc:  d.Chat,
		userSvc:  d.Users,
		log:      log,
		metrics:  d.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// SetPingEvery overrides the keepalive interval.
func (s *Server) SetPingEvery(d time.Duration) {
	if d > 0 {
		s.pingEvery = d
	}
}

// viewer resolves the identity from the query string. lang falls back to
// the language stored for the user.
func (s *Server) viewer(r *http.Request) (domain.Viewer, error) {
	q := r.URL.Query()
	v := domain.Viewer{
		ID:   strings.TrimSpace(q.Get("user_id")),
		Name: strings.TrimSpace(q.Get("name")),
	}
	if v.ID == "" {
		return v, domain.ErrMissingSender
	}

	if lang := strings.TrimSpace(q.Get("lang")); lang != "" {
		code, err := translate.NormalizeLanguage(lang)
		if err != nil {
			return v, err
		}
		v.Language = code
		return v, nil
	}
	if s.userSvc != nil {
		lang, err := s.userSvc.Language(r.Context(), v.ID)
		if err != nil {
			s.log.Warn("ws: language lookup failed", "user", v.ID, "err", err)
		}
		v.Language = lang
	}
	return v, nil
}

// WS endpoint: GET /ws?user_id=...&name=...&lang=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.viewer(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrMissingSender) {
			status = http.StatusUnauthorized
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", "err", err)
		return
	}

	// the session outlives the handshake request context
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	c := newWsConn(conn, viewer.ID)
	ing := ingest.New(s.feed, s.resolver, viewer,
		ingest.WithLogger(s.log),
		ingest.WithMetrics(s.metrics),
		ingest.WithErrorHandler(func(chatID string, err error) {
			_ = c.Send(errorMessage("feed for chat " + chatID + " failed: " + err.Error()))
		}),
	)

	s.hub.Add(c)
	s.metrics.Sessions(s.hub.Count())
	s.log.Debug("ws session opened", "user", viewer.ID, "lang", viewer.Language)

	go s.writeLoop(ctx, c, ing)
	s.readLoop(ctx, c, ing, viewer)

	_ = ing.Close()
	s.hub.Remove(c)
	s.metrics.Sessions(s.hub.Count())
	if err := c.Close(); err != nil {
		s.log.Debug("ws close failed", "user", viewer.ID, "err", err)
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn, ing *ingest.Ingestor, viewer domain.Viewer) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.Send(errorMessage("invalid frame"))
			continue
		}

		switch msg.Type {
		case TypeOpen:
			var p OpenPayload
			if decode(msg.Payload, &p) != nil {
				_ = c.Send(errorMessage("invalid open payload"))
				continue
			}
			if err := ing.Open(ctx, strings.TrimSpace(p.ChatID)); err != nil {
				s.log.Warn("ws open failed", "user", viewer.ID, "chat", p.ChatID, "err", err)
				_ = c.Send(errorMessage("open failed"))
			}
		case TypeClose:
			_ = ing.Open(ctx, "")
		case TypeSend:
			var p SendPayload
			if decode(msg.Payload, &p) != nil {
				_ = c.Send(errorMessage("invalid send payload"))
				continue
			}
			s.send(ctx, c, ing, viewer, p)
		default:
			// ignore
		}
	}
}

func (s *Server) send(ctx context.Context, c *wsConn, ing *ingest.Ingestor, viewer domain.Viewer, p SendPayload) {
	text := strings.TrimSpace(p.Text)
	if text == "" {
		_ = c.Send(errorMessage(domain.ErrEmptyMessage.Error()))
		return
	}
	if p.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			_ = c.Send(errorMessage("cannot allocate message id"))
			return
		}
		p.ID = id.String()
	}

	chatID := ing.ChatID()
	ts := time.Now().UnixMilli()
	if chatID != "" {
		// оптимистично показываем сообщение до подтверждения из фида
		_ = ing.AppendLocal(domain.Message{
			ID:           p.ID,
			SenderID:     viewer.ID,
			SenderName:   viewer.Name,
			CreatedAt:    ts,
			OriginalText: text,
		})
	}

	contacts := make([]domain.Contact, 0, len(p.Contacts))
	for _, ct := range p.Contacts {
		contacts = append(contacts, domain.Contact{ID: ct.ID, Name: ct.Name})
	}
	res, err := s.chatSvc.Send(ctx, service.SendRequest{
		ChatID:    chatID,
		ID:        p.ID,
		Sender:    viewer,
		Contacts:  contacts,
		Text:      text,
		Timestamp: ts,
	})
	if err != nil {
		s.log.Warn("ws chat send failed", "user", viewer.ID, "chat", chatID, "err", err)
		_ = c.Send(errorMessage(err.Error()))
		return
	}

	if chatID == "" {
		if err := ing.Open(ctx, res.ChatID); err != nil {
			s.log.Warn("ws open new chat failed", "user", viewer.ID, "chat", res.ChatID, "err", err)
		}
	}
	_ = c.Send(Message{Type: TypeSendAck, Payload: SendAckPayload{ChatID: res.ChatID, MsgID: res.MessageID}})
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn, ing *ingest.Ingestor) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case st := <-ing.Updates():
			if err := c.Send(timelineMessage(st)); err != nil {
				s.log.Debug("ws send timeline failed", "user", c.userID, "err", err)
			}
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// --- helpers ---

func timelineMessage(st timeline.State) Message {
	items := make([]MessageItem, 0, len(st.Messages))
	for _, m := range st.Messages {
		items = append(items, MessageItem{
			ID:                 m.ID,
			SenderID:           m.SenderID,
			SenderName:         m.SenderName,
			CreatedAt:          m.CreatedAt,
			Original:           m.OriginalText,
			Text:               m.ResolvedText,
			TranslatedFrom:     m.TranslatedFrom,
			TranslatedFromName: translate.LanguageName(m.TranslatedFrom),
			Pending:            m.Pending,
		})
	}
	return Message{Type: TypeTimeline, Payload: TimelinePayload{ChatID: st.ChatID, Messages: items}}
}

func errorMessage(msg string) Message {
	return Message{Type: TypeError, Payload: ErrorPayload{Message: msg}}
}

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

type wsConn struct {
	conn      *websocket.Conn
	userID    string
	sendMu    sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, userID string) *wsConn {
	return &wsConn{
		conn:   c,
		userID: userID,
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) UserID() string { return c.userID }
