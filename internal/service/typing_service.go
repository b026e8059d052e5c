package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"office-service/internal/config"
)

// TypingService coordinates ephemeral typing indicators. Nothing here is
// persisted: a TYPING_START is broadcast at most once per debounce window per
// typer, a local silence timer auto-broadcasts TYPING_STOP, and the viewer
// side keeps its own expiry so a dropped stop event still clears.
type TypingService struct {
	publisher EventPublisher
	logger    *zap.Logger

	debounce      time.Duration
	silenceWindow time.Duration
	remoteExpiry  time.Duration

	mu            sync.Mutex
	lastBroadcast map[string]time.Time   // conv+user -> last TYPING_START
	silenceTimers map[string]*time.Timer // conv+user -> auto-stop timer
	silenceGens   map[string]uint64      // conv+user -> current timer generation
	closed        bool

	viewersMu sync.Mutex
	viewers   map[string]map[uuid.UUID]time.Time // convKey -> userID -> expiry
}

func NewTypingService(publisher EventPublisher, cfg config.TypingConfig, logger *zap.Logger) *TypingService {
	return &TypingService{
		publisher:     publisher,
		logger:        logger,
		debounce:      cfg.Debounce,
		silenceWindow: cfg.SilenceWindow,
		remoteExpiry:  cfg.RemoteExpiry,
		lastBroadcast: make(map[string]time.Time),
		silenceTimers: make(map[string]*time.Timer),
		silenceGens:   make(map[string]uint64),
		viewers:       make(map[string]map[uuid.UUID]time.Time),
	}
}

func typerKey(convKey string, userID uuid.UUID) string {
	return fmt.Sprintf("%s|%s", convKey, userID)
}

// Notify is called on every keystroke. It broadcasts at most once per
// debounce window and re-arms the silence timer each time.
func (s *TypingService) Notify(ctx context.Context, convKey string, userID uuid.UUID) {
	key := typerKey(convKey, userID)
	now := time.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	broadcast := now.Sub(s.lastBroadcast[key]) >= s.debounce
	if broadcast {
		s.lastBroadcast[key] = now
	}

	if timer, ok := s.silenceTimers[key]; ok {
		timer.Stop()
	}
	// Each re-arm bumps the generation; a stale timer that already fired and
	// is waiting on the lock sees the mismatch and backs off.
	gen := s.silenceGens[key] + 1
	s.silenceGens[key] = gen
	s.silenceTimers[key] = time.AfterFunc(s.silenceWindow, func() {
		s.autoStop(convKey, userID, gen)
	})
	s.mu.Unlock()

	if broadcast {
		s.publish(ctx, convKey, Event{Type: EventTypingStart, UserID: userID.String()})
	}
}

// Stop is called explicitly on send. Safe to call when already stopped.
func (s *TypingService) Stop(ctx context.Context, convKey string, userID uuid.UUID) {
	key := typerKey(convKey, userID)

	s.mu.Lock()
	timer, active := s.silenceTimers[key]
	if active {
		timer.Stop()
		delete(s.silenceTimers, key)
	}
	delete(s.silenceGens, key)
	delete(s.lastBroadcast, key)
	s.mu.Unlock()

	if active {
		s.publish(ctx, convKey, Event{Type: EventTypingStop, UserID: userID.String()})
	}
}

// autoStop fires after the silence window with no further keystrokes. The
// generation check discards a timer that lost the lock race to a fresh Notify.
func (s *TypingService) autoStop(convKey string, userID uuid.UUID, gen uint64) {
	key := typerKey(convKey, userID)

	s.mu.Lock()
	if s.silenceGens[key] != gen {
		s.mu.Unlock()
		return
	}
	delete(s.silenceTimers, key)
	delete(s.silenceGens, key)
	delete(s.lastBroadcast, key)
	s.mu.Unlock()

	s.publish(context.Background(), convKey, Event{Type: EventTypingStop, UserID: userID.String()})
}

// HandleRemote applies a received typing event to the viewer-side set.
func (s *TypingService) HandleRemote(convKey string, userID uuid.UUID, typing bool) {
	s.viewersMu.Lock()
	defer s.viewersMu.Unlock()

	if typing {
		if s.viewers[convKey] == nil {
			s.viewers[convKey] = make(map[uuid.UUID]time.Time)
		}
		s.viewers[convKey][userID] = time.Now().Add(s.remoteExpiry)
		return
	}

	if set, ok := s.viewers[convKey]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(s.viewers, convKey)
		}
	}
}

// ActiveTypers returns the currently displayed typers, pruning anyone whose
// expiry elapsed without a stop event.
func (s *TypingService) ActiveTypers(convKey string) []uuid.UUID {
	s.viewersMu.Lock()
	defer s.viewersMu.Unlock()

	set, ok := s.viewers[convKey]
	if !ok {
		return nil
	}

	now := time.Now()
	typers := make([]uuid.UUID, 0, len(set))
	for userID, expiry := range set {
		if now.After(expiry) {
			delete(set, userID)
			continue
		}
		typers = append(typers, userID)
	}
	if len(set) == 0 {
		delete(s.viewers, convKey)
	}
	return typers
}

// DetachConversation drops local typing state for a conversation, cancelling
// any pending silence timers. Called when the viewer switches away.
func (s *TypingService) DetachConversation(convKey string, userID uuid.UUID) {
	key := typerKey(convKey, userID)

	s.mu.Lock()
	if timer, ok := s.silenceTimers[key]; ok {
		timer.Stop()
		delete(s.silenceTimers, key)
	}
	delete(s.silenceGens, key)
	delete(s.lastBroadcast, key)
	s.mu.Unlock()
}

// Close cancels every pending timer. No broadcasts fire after Close.
func (s *TypingService) Close() {
	s.mu.Lock()
	s.closed = true
	for key, timer := range s.silenceTimers {
		timer.Stop()
		delete(s.silenceTimers, key)
		delete(s.silenceGens, key)
	}
	s.mu.Unlock()
}

func (s *TypingService) publish(ctx context.Context, convKey string, event Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ConversationChannel(convKey), event); err != nil {
		s.logger.Debug("typing broadcast failed", zap.Error(err))
	}
}
