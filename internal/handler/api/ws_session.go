package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
	domrepo "TradeCast/internal/domain/repository"
	"TradeCast/internal/usecase"
	xhttp "TradeCast/pkg/http"
	xlogger "TradeCast/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// outbound is every message the server pushes to a page.
type outbound struct {
	Type      string                   `json:"type"`
	Session   string                   `json:"session,omitempty"`
	Envelope  *models.ForecastEnvelope `json:"envelope,omitempty"`
	Products  []models.CatalogEntry    `json:"products,omitempty"`
	Countries []models.CatalogEntry    `json:"countries,omitempty"`
	Error     *models.ErrorPayload     `json:"error,omitempty"`
}

// selection is the current value of every control on one page.
type selection models.ForecastRequest

func (s selection) complete() bool {
	return s.Product != "" && s.Country != "" && s.Direction != ""
}

// WSHandler serves interactive sessions: each control change is a versioned
// forecast request and only the newest result reaches the page.
type WSHandler struct {
	logger   *xlogger.Logger
	runner   Runner
	catalog  domrepo.Catalog
	upgrader websocket.Upgrader
}

func NewWSHandler(logger *xlogger.Logger, runner Runner, catalog domrepo.Catalog, allowOrigins []string) *WSHandler {
	return &WSHandler{
		logger:  logger,
		runner:  runner,
		catalog: catalog,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowOrigins),
		},
	}
}

func (h *WSHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/forecast", h.Serve)
}

func originChecker(allow []string) func(r *http.Request) bool {
	if len(allow) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allow {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

type wsSession struct {
	id    string
	h     *WSHandler
	conn  *websocket.Conn
	send  chan outbound
	done  chan struct{}
	state selection
	log   *xlogger.Logger
}

// Serve upgrades the connection and runs the session until the page goes away.
func (h *WSHandler) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}

	id := uuid.NewString()
	s := &wsSession{
		id:    id,
		h:     h,
		conn:  conn,
		send:  make(chan outbound, sendBuffer),
		done:  make(chan struct{}),
		state: selection{Yearly: "auto", Weekly: "auto"},
		log:   h.logger.With(xlogger.String("session", id)),
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	go s.writePump()
	s.push(outbound{Type: "session", Session: id})
	s.log.Info("websocket session opened", xlogger.String("remote", c.RealIP()))
	s.readPump(ctx)
	s.log.Info("websocket session closed")
	return nil
}

func (s *wsSession) readPump(ctx context.Context) {
	defer func() {
		close(s.done)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", xlogger.Error(err))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.pushError(domain.InvalidFilter("trigger", "malformed message"))
			continue
		}
		s.handle(ctx, msg)
	}
}

func (s *wsSession) handle(ctx context.Context, msg inbound) {
	fn, ok := triggers[msg.Trigger]
	if !ok {
		s.pushError(domain.InvalidFilter("trigger", "unknown trigger "+msg.Trigger))
		return
	}

	// A control change supersedes whatever is in flight, even when the new
	// value is rejected below.
	var v int64
	if msg.Trigger != TriggerPageLoad {
		var err error
		if v, err = s.h.runner.Issue(ctx, s.id); err != nil {
			s.pushError(err)
			return
		}
	}

	run, err := fn(ctx, s, msg)
	if err != nil {
		s.pushError(err)
		return
	}
	if run {
		s.forecast(ctx, msg.Trigger, v)
	}
}

// forecast submits the current selection under version v, issuing one first
// when v is zero.
func (s *wsSession) forecast(ctx context.Context, trigger string, v int64) {
	req := models.ForecastRequest(s.state)
	req.Session = s.id
	if verrs := xhttp.ValidateStruct(ctx, &req); len(verrs) > 0 {
		s.pushError(domain.InvalidFilter(verrs[0].Field, verrs[0].Message))
		return
	}

	if v == 0 {
		var err error
		if v, err = s.h.runner.Issue(ctx, s.id); err != nil {
			s.pushError(err)
			return
		}
	}
	job := usecase.Job{
		Session:   s.id,
		Version:   v,
		Trigger:   trigger,
		Transport: "ws",
		Filter:    req.Filter(),
		Horizon:   req.Periods(),
		Config:    req.FitConfig(),
		Deliver: func(env *models.ForecastEnvelope) {
			if usecase.IsSuperseded(env) {
				return
			}
			s.push(outbound{Type: "forecast", Envelope: env})
		},
	}
	// Submit blocks under backpressure; the read loop waits with it so a
	// flood of control events cannot queue unbounded work.
	if err := s.h.runner.Submit(ctx, job); err != nil {
		s.pushError(domain.DataSource("submit forecast", err))
	}
}

func (s *wsSession) sendCatalog(ctx context.Context) error {
	products, err := s.h.catalog.ListProducts(ctx)
	if err != nil {
		return domain.DataSource("list products", err)
	}
	countries, err := s.h.catalog.ListCountries(ctx)
	if err != nil {
		return domain.DataSource("list countries", err)
	}
	s.push(outbound{Type: "catalog", Products: products, Countries: countries})
	return nil
}

func (s *wsSession) pushError(err error) {
	s.push(outbound{Type: "error", Error: usecase.NewErrorPayload(err)})
}

// push never blocks past the session's lifetime.
func (s *wsSession) push(msg outbound) {
	select {
	case s.send <- msg:
	case <-s.done:
	}
}

func (s *wsSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.log.Warn("websocket write failed", xlogger.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ xhttp.Handler = (*WSHandler)(nil)
