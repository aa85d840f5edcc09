package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

/*
 * NATS-backed change feed.
 *
 * The CDC publisher emits one message per row change on subjects of the form
 * <prefix>.<table>.<operation>, e.g. "cdc.bottles.update", with a JSON body
 * {"new": {...}, "old": {...}}. Table and operation come from the subject so
 * the body stays a plain record pair.
 *
 * A malformed message is dropped with a warning; the subscription keeps
 * running. Reconnects are delegated to the NATS client.
 *
 * Shutdown ordering: Close signals quit so no handler is blocked sending
 * into events, drains the connection, and only the connection's closed
 * callback (which runs after the last handler has returned) closes the
 * events channel.
 */

// NATSSourceConfig configures the NATS change-feed subscription.
type NATSSourceConfig struct {
	URL           string
	SubjectPrefix string
	Buffer        int
}

// NATSSource consumes change events from a NATS subject tree.
type NATSSource struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	events chan Event
	log    *slog.Logger

	// quit stops handlers from delivering once Close has been called.
	quit      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type natsEnvelope struct {
	New map[string]any `json:"new"`
	Old map[string]any `json:"old"`
}

// NewNATSSource connects to NATS and subscribes to <prefix>.> .
func NewNATSSource(cfg NATSSourceConfig, log *slog.Logger) (*NATSSource, error) {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "cdc"
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}

	s := &NATSSource{
		events: make(chan Event, cfg.Buffer),
		quit:   make(chan struct{}),
		log:    log,
	}

	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("change feed disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("change feed reconnected", "url", nc.ConnectedUrl())
		}),
		// With unlimited reconnects the closed callback fires only on
		// explicit shutdown, after every in-flight handler has returned,
		// so this is the one safe place to close the events channel.
		nats.ClosedHandler(func(_ *nats.Conn) {
			close(s.events)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	s.conn = conn

	subject := cfg.SubjectPrefix + ".>"
	sub, err := conn.Subscribe(subject, s.handle(cfg.SubjectPrefix))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	s.sub = sub

	log.Info("change feed subscribed", "subject", subject)
	return s, nil
}

// handle parses one CDC message. Subject layout: <prefix>.<table>.<op>.
func (s *NATSSource) handle(prefix string) nats.MsgHandler {
	return func(msg *nats.Msg) {
		rest := strings.TrimPrefix(msg.Subject, prefix+".")
		parts := strings.Split(rest, ".")
		if len(parts) != 2 {
			s.log.Warn("dropping change event with malformed subject", "subject", msg.Subject)
			return
		}

		op := Op(parts[1])
		if op != OpInsert && op != OpUpdate {
			s.log.Warn("dropping change event with unknown operation", "subject", msg.Subject)
			return
		}

		var env natsEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			s.log.Warn("dropping undecodable change event", "subject", msg.Subject, "error", err)
			return
		}

		select {
		case s.events <- Event{Table: parts[0], Op: op, New: env.New, Old: env.Old}:
		case <-s.quit:
		}
	}
}

// Events implements Source.
func (s *NATSSource) Events() <-chan Event { return s.events }

// Close unblocks any handler mid-delivery, drains the connection, and lets
// the closed callback shut the events channel once every handler is done.
func (s *NATSSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		if err := s.conn.Drain(); err != nil {
			s.closeErr = err
			s.conn.Close()
		}
	})
	return s.closeErr
}
