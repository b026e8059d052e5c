package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"office-service/internal/domain"
	"office-service/internal/repository"
	"office-service/internal/response"
)

// PresenceService merges the two presence axes: the sticky stored status and
// the live join set fed by websocket connects/disconnects. A member shows as
// available only when both say so.
type PresenceService struct {
	repo      *repository.PresenceRepository
	publisher EventPublisher
	logger    *zap.Logger

	mu     sync.RWMutex
	joined map[uuid.UUID]map[uuid.UUID]int // workspaceID -> userID -> connection count

	degradedMu sync.RWMutex
	degraded   bool
}

func NewPresenceService(
	repo *repository.PresenceRepository,
	publisher EventPublisher,
	logger *zap.Logger,
) *PresenceService {
	return &PresenceService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		joined:    make(map[uuid.UUID]map[uuid.UUID]int),
	}
}

// SetStatus updates the sticky status and broadcasts the change. The status
// survives the user closing their tab; only an explicit change moves it.
func (s *PresenceService) SetStatus(ctx context.Context, userID, workspaceID uuid.UUID, status domain.PresenceStatus) error {
	if !domain.ValidPresenceStatus(status) {
		return response.NewAppError(response.ErrCodeValidation, "Invalid presence status", string(status))
	}

	if err := s.repo.SetStatus(ctx, userID, workspaceID, status); err != nil {
		return response.NewAppError(response.ErrCodeInternal, "Failed to update status", err.Error())
	}

	s.broadcast(ctx, workspaceID, Event{
		Type:    EventUserStatus,
		UserID:  userID.String(),
		Payload: map[string]interface{}{"status": status},
	})
	return nil
}

func (s *PresenceService) GetStatus(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error) {
	presence, err := s.repo.GetStatus(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewAppError(response.ErrCodeNotFound, "User presence not found", "")
	}
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to get status", err.Error())
	}
	return presence, nil
}

// HandleJoin registers one live connection for the user. Only the 0->1
// transition broadcasts a join; extra tabs just bump the count.
func (s *PresenceService) HandleJoin(ctx context.Context, userID, workspaceID uuid.UUID) {
	s.mu.Lock()
	if s.joined[workspaceID] == nil {
		s.joined[workspaceID] = make(map[uuid.UUID]int)
	}
	s.joined[workspaceID][userID]++
	first := s.joined[workspaceID][userID] == 1
	s.mu.Unlock()

	if first {
		s.broadcast(ctx, workspaceID, Event{Type: EventPresenceJoin, UserID: userID.String()})
	}
}

// HandleLeave drops one live connection; the last one broadcasts a leave.
// The stored status is deliberately left untouched.
func (s *PresenceService) HandleLeave(ctx context.Context, userID, workspaceID uuid.UUID) {
	s.mu.Lock()
	last := false
	if users, ok := s.joined[workspaceID]; ok {
		users[userID]--
		if users[userID] <= 0 {
			delete(users, userID)
			last = true
			if len(users) == 0 {
				delete(s.joined, workspaceID)
			}
		}
	}
	s.mu.Unlock()

	if last {
		// Stamp last_seen so "away since" survives the disconnect. Best
		// effort: the leave broadcast matters more than the timestamp.
		if err := s.repo.TouchLastSeen(ctx, userID); err != nil {
			s.logger.Warn("failed to record last seen", zap.Error(err))
		}
		s.broadcast(ctx, workspaceID, Event{Type: EventPresenceLeave, UserID: userID.String()})
	}
}

// IsJoined reports whether the user holds at least one live connection.
func (s *PresenceService) IsJoined(userID, workspaceID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if users, ok := s.joined[workspaceID]; ok {
		return users[userID] > 0
	}
	return false
}

// JoinedUsers returns the current live member set for a workspace.
func (s *PresenceService) JoinedUsers(workspaceID uuid.UUID) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(s.joined[workspaceID]))
	for userID := range s.joined[workspaceID] {
		users = append(users, userID)
	}
	return users
}

// WorkspacePresence returns the merged view for every member with a stored
// status, plus joined members who never set one.
func (s *PresenceService) WorkspacePresence(ctx context.Context, workspaceID uuid.UUID) ([]domain.MemberPresence, error) {
	statuses, err := s.repo.GetWorkspaceStatuses(ctx, workspaceID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load presence", err.Error())
	}

	seen := make(map[uuid.UUID]bool, len(statuses))
	members := make([]domain.MemberPresence, 0, len(statuses))
	for _, p := range statuses {
		joined := s.IsJoined(p.UserID, workspaceID)
		members = append(members, domain.MemberPresence{
			UserID:    p.UserID,
			Status:    p.Status,
			IsJoined:  joined,
			Available: joined && p.Status != domain.PresenceStatusOffline,
			LastSeen:  p.LastSeen,
		})
		seen[p.UserID] = true
	}

	// Joined users without a stored status row show as joined but offline:
	// the conjunction keeps them unavailable until they pick a status.
	for _, userID := range s.JoinedUsers(workspaceID) {
		if !seen[userID] {
			members = append(members, domain.MemberPresence{
				UserID:   userID,
				Status:   domain.PresenceStatusOffline,
				IsJoined: true,
			})
		}
	}

	return members, nil
}

// SetDegraded flags the realtime path as unreliable. Clients receiving a
// degraded sync must treat members as unknown-online, not offline.
func (s *PresenceService) SetDegraded(degraded bool) {
	s.degradedMu.Lock()
	s.degraded = degraded
	s.degradedMu.Unlock()
}

func (s *PresenceService) Degraded() bool {
	s.degradedMu.RLock()
	defer s.degradedMu.RUnlock()
	return s.degraded
}

func (s *PresenceService) broadcast(ctx context.Context, workspaceID uuid.UUID, event Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, PresenceChannel(workspaceID.String()), event); err != nil {
		s.logger.Warn("presence broadcast failed", zap.Error(err))
		s.SetDegraded(true)
		return
	}
	s.SetDegraded(false)
}
