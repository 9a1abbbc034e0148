package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	marketdata "autotrader/internal/domain/entity/marketdata"
	interfaces "autotrader/internal/domain/interfaces"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	readTimeout      = time.Minute
	readLimit        = 1 << 20
)

var ErrStreamNotConnected = errors.New("quote stream not connected")

// controlMessage subscribes or unsubscribes streams on a live connection.
type controlMessage struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// streamMessage is either a bookTicker update or a control response.
type streamMessage struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s" validate:"required"`
	BidPrice string `json:"b" validate:"required,numeric"`
	BidQty   string `json:"B" validate:"required,numeric"`
	AskPrice string `json:"a" validate:"required,numeric"`
	AskQty   string `json:"A" validate:"required,numeric"`

	ID    *int64 `json:"id,omitempty"`
	Error *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error,omitempty"`
}

// Stream delivers best bid/ask updates from the bookTicker websocket. It
// keeps one connection, reconnecting with capped exponential backoff and
// resubscribing every registered symbol.
type Stream struct {
	url      string
	dialer   websocket.Dialer
	logger   *logrus.Entry
	validate *validator.Validate
	backoff  func(attempt int) time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	handlers map[string]interfaces.QuoteHandler

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Int64
}

var _ interfaces.QuoteStream = (*Stream)(nil)

// NewStream creates a stream for the raw websocket endpoint, for example
// wss://stream.binance.com:9443/ws.
func NewStream(endpoint string, logger *logrus.Logger) (*Stream, error) {
	if endpoint == "" {
		return nil, errors.New("stream endpoint is required")
	}
	return &Stream{
		url: endpoint,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		logger:   logger.WithField("component", "binance_stream"),
		validate: validator.New(),
		backoff:  reconnectDelay,
		now:      time.Now,
		handlers: make(map[string]interfaces.QuoteHandler),
	}, nil
}

func streamName(symbol string) string {
	return strings.ToLower(symbol) + "@bookTicker"
}

// Subscribe registers handler for symbol. When connected the subscription is
// sent at once, otherwise on the next connect.
func (s *Stream) Subscribe(ctx context.Context, symbol string, handler interfaces.QuoteHandler) error {
	if symbol == "" || handler == nil {
		return errors.New("subscribe requires symbol and handler")
	}
	symbol = strings.ToUpper(symbol)
	s.mu.Lock()
	s.handlers[symbol] = handler
	s.mu.Unlock()

	err := s.send(ctx, "SUBSCRIBE", []string{streamName(symbol)})
	if err == nil || errors.Is(err, ErrStreamNotConnected) {
		return nil
	}
	s.mu.Lock()
	delete(s.handlers, symbol)
	s.mu.Unlock()
	return fmt.Errorf("subscribe %s: %w", symbol, err)
}

// Unsubscribe drops the handler of symbol and unsubscribes when connected.
// A later reconnect does not resubscribe it.
func (s *Stream) Unsubscribe(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(symbol)
	s.mu.Lock()
	delete(s.handlers, symbol)
	s.mu.Unlock()

	err := s.send(ctx, "UNSUBSCRIBE", []string{streamName(symbol)})
	if err == nil || errors.Is(err, ErrStreamNotConnected) {
		return nil
	}
	return fmt.Errorf("unsubscribe %s: %w", symbol, err)
}

// Symbols lists the registered symbols.
func (s *Stream) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.handlers))
	for symbol := range s.handlers {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Run keeps the connection alive until ctx is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	s.logger.WithField("endpoint", s.url).Info("quote stream started")
	defer s.logger.Info("quote stream stopped")

	attempt := 0
	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			attempt = 0
		}
		delay := s.backoff(attempt)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
		}).Warn("quote stream disconnected, reconnecting")
		attempt++

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails. connected reports whether the
// dial succeeded.
func (s *Stream) session(ctx context.Context) (connected bool, err error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial quote stream: %s: %w", resp.Status, err)
		}
		return false, fmt.Errorf("dial quote stream: %w", err)
	}
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
	})

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		_ = conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = conn.Close()
	})
	defer stop()

	symbols := s.Symbols()
	if len(symbols) > 0 {
		streams := make([]string, len(symbols))
		for i, symbol := range symbols {
			streams[i] = streamName(symbol)
		}
		if err := s.send(ctx, "SUBSCRIBE", streams); err != nil {
			return true, fmt.Errorf("resubscribe: %w", err)
		}
	}
	s.logger.WithField("symbols", len(symbols)).Info("quote stream connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read quote stream: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		s.dispatch(data)
	}
}

func (s *Stream) send(ctx context.Context, method string, streams []string) error {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return ErrStreamNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(controlMessage{Method: method, Params: streams, ID: s.nextID.Add(1)})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Stream) dispatch(data []byte) {
	quote, ok, err := s.decode(data)
	if err != nil {
		s.logger.WithError(err).Warn("skip stream message")
		return
	}
	if !ok {
		return
	}
	s.mu.RLock()
	handler := s.handlers[quote.Symbol]
	s.mu.RUnlock()
	if handler == nil {
		return
	}
	handler(quote)
}

// decode parses a stream message. ok is false for control responses.
func (s *Stream) decode(data []byte) (marketdata.Quote, bool, error) {
	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return marketdata.Quote{}, false, fmt.Errorf("decode stream message: %w", err)
	}
	if msg.ID != nil {
		if msg.Error != nil {
			return marketdata.Quote{}, false, fmt.Errorf("control request %d failed: %d %s", *msg.ID, msg.Error.Code, msg.Error.Msg)
		}
		return marketdata.Quote{}, false, nil
	}
	if err := s.validate.Struct(&msg); err != nil {
		return marketdata.Quote{}, false, fmt.Errorf("invalid book ticker: %w", err)
	}
	quote := marketdata.Quote{
		Symbol:     strings.ToUpper(msg.Symbol),
		ReceivedAt: s.now(),
	}
	var err error
	if quote.BidPrice, err = decimal.NewFromString(msg.BidPrice); err != nil {
		return marketdata.Quote{}, false, err
	}
	if quote.BidQty, err = decimal.NewFromString(msg.BidQty); err != nil {
		return marketdata.Quote{}, false, err
	}
	if quote.AskPrice, err = decimal.NewFromString(msg.AskPrice); err != nil {
		return marketdata.Quote{}, false, err
	}
	if quote.AskQty, err = decimal.NewFromString(msg.AskQty); err != nil {
		return marketdata.Quote{}, false, err
	}
	return quote, true, nil
}
