package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/arena-go/internal/dto"
)

const sessionEventBufferSize = 16

// Session event kinds.
const (
	SessionEventOpened    = "opened"
	SessionEventNavigated = "navigated"
	SessionEventPhase     = "phase"
	SessionEventVerdict   = "verdict"
	SessionEventClosed    = "closed"
)

// SessionEvents fans session lifecycle events out to local subscribers and to
// other gateway nodes over redis and NATS.
type SessionEvents interface {
	Publish(ctx context.Context, event dto.SessionEventResponse)
	Subscribe(userID uint) (<-chan dto.SessionEventResponse, func())
	Start(ctx context.Context)
}

type sessionEvents struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *sessionEventBroker
	nodeID       string
}

type sessionEventEnvelope struct {
	Source string                   `json:"source"`
	Event  dto.SessionEventResponse `json:"event"`
}

type sessionEventBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.SessionEventResponse]struct{}
}

// NewSessionEvents constructs the event fan-out. Either transport may be nil.
func NewSessionEvents(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) SessionEvents {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":sessions"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".sessions"
	}

	return &sessionEvents{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "session_events").Logger(),
		broker: &sessionEventBroker{
			subscribers: make(map[uint]map[chan dto.SessionEventResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *sessionEvents) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *sessionEvents) Publish(ctx context.Context, event dto.SessionEventResponse) {
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	s.broker.broadcast(event)

	payload, err := json.Marshal(sessionEventEnvelope{Source: s.nodeID, Event: event})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode session event")
		return
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish session event to redis")
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish session event to nats")
		}
	}
}

func (s *sessionEvents) Subscribe(userID uint) (<-chan dto.SessionEventResponse, func()) {
	channel := make(chan dto.SessionEventResponse, sessionEventBufferSize)
	s.broker.subscribe(userID, channel)

	var once sync.Once
	return channel, func() {
		once.Do(func() { s.broker.unsubscribe(userID, channel) })
	}
}

func (s *sessionEvents) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("session event redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *sessionEvents) consumeNATS(ctx context.Context) {
	// No queue group: each node delivers to its own subscribers.
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats session subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain session nats subscription")
		}
	}()
}

func (s *sessionEvents) handleEvent(payload []byte) {
	var envelope sessionEventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid session event payload")
		return
	}
	if envelope.Source == s.nodeID {
		return
	}
	s.broker.broadcast(envelope.Event)
}

func (b *sessionEventBroker) subscribe(userID uint, ch chan dto.SessionEventResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.SessionEventResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *sessionEventBroker) unsubscribe(userID uint, ch chan dto.SessionEventResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *sessionEventBroker) broadcast(event dto.SessionEventResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[event.UserID] {
		select {
		case ch <- event:
		default:
		}
	}
}
