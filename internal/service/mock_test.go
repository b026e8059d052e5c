package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"office-service/internal/domain"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Channel string
	Event   Event
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Channel: channel, Event: event})
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []recordedEvent
	for _, e := range p.events {
		if e.Event.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// failingPublisher simulates a broken fanout.
type failingPublisher struct{}

func (p *failingPublisher) Publish(ctx context.Context, channel string, event Event) error {
	return errors.New("pubsub down")
}

// MockMessageRepository is a mock implementation of MessageRepository
type MockMessageRepository struct {
	CreateMessageFunc    func(ctx context.Context, message *domain.ChatMessage) error
	GetMessageByIDFunc   func(ctx context.Context, messageID uuid.UUID) (*domain.ChatMessage, error)
	GetHistoryFunc       func(ctx context.Context, conv domain.Conversation, limit int, before *time.Time) ([]domain.ChatMessage, error)
	GetMessagesAfterFunc func(ctx context.Context, conv domain.Conversation, after time.Time, limit int) ([]domain.ChatMessage, error)
	CountAfterFunc       func(ctx context.Context, conv domain.Conversation, after time.Time, excludeSender uuid.UUID) (int64, error)
}

func (m *MockMessageRepository) CreateMessage(ctx context.Context, message *domain.ChatMessage) error {
	if m.CreateMessageFunc != nil {
		return m.CreateMessageFunc(ctx, message)
	}
	return nil
}

func (m *MockMessageRepository) GetMessageByID(ctx context.Context, messageID uuid.UUID) (*domain.ChatMessage, error) {
	if m.GetMessageByIDFunc != nil {
		return m.GetMessageByIDFunc(ctx, messageID)
	}
	return nil, nil
}

func (m *MockMessageRepository) GetHistory(ctx context.Context, conv domain.Conversation, limit int, before *time.Time) ([]domain.ChatMessage, error) {
	if m.GetHistoryFunc != nil {
		return m.GetHistoryFunc(ctx, conv, limit, before)
	}
	return nil, nil
}

func (m *MockMessageRepository) GetMessagesAfter(ctx context.Context, conv domain.Conversation, after time.Time, limit int) ([]domain.ChatMessage, error) {
	if m.GetMessagesAfterFunc != nil {
		return m.GetMessagesAfterFunc(ctx, conv, after, limit)
	}
	return nil, nil
}

func (m *MockMessageRepository) CountAfter(ctx context.Context, conv domain.Conversation, after time.Time, excludeSender uuid.UUID) (int64, error) {
	if m.CountAfterFunc != nil {
		return m.CountAfterFunc(ctx, conv, after, excludeSender)
	}
	return 0, nil
}

// MockChannelRepository is a mock implementation of ChannelRepository
type MockChannelRepository struct {
	CreateChannelFunc      func(ctx context.Context, channel *domain.ChatChannel) error
	GetChannelByIDFunc     func(ctx context.Context, channelID uuid.UUID) (*domain.ChatChannel, error)
	GetVisibleChannelsFunc func(ctx context.Context, workspaceID uuid.UUID, departmentID *uuid.UUID) ([]domain.ChatChannel, error)
	UpsertMemberFunc       func(ctx context.Context, channelID, userID uuid.UUID) error
	GetMemberFunc          func(ctx context.Context, channelID, userID uuid.UUID) (*domain.ChannelMember, error)
	UpdateLastReadFunc     func(ctx context.Context, channelID, userID uuid.UUID) error
}

func (m *MockChannelRepository) CreateChannel(ctx context.Context, channel *domain.ChatChannel) error {
	if m.CreateChannelFunc != nil {
		return m.CreateChannelFunc(ctx, channel)
	}
	return nil
}

func (m *MockChannelRepository) GetChannelByID(ctx context.Context, channelID uuid.UUID) (*domain.ChatChannel, error) {
	if m.GetChannelByIDFunc != nil {
		return m.GetChannelByIDFunc(ctx, channelID)
	}
	return &domain.ChatChannel{ChannelID: channelID}, nil
}

func (m *MockChannelRepository) GetVisibleChannels(ctx context.Context, workspaceID uuid.UUID, departmentID *uuid.UUID) ([]domain.ChatChannel, error) {
	if m.GetVisibleChannelsFunc != nil {
		return m.GetVisibleChannelsFunc(ctx, workspaceID, departmentID)
	}
	return nil, nil
}

func (m *MockChannelRepository) UpsertMember(ctx context.Context, channelID, userID uuid.UUID) error {
	if m.UpsertMemberFunc != nil {
		return m.UpsertMemberFunc(ctx, channelID, userID)
	}
	return nil
}

func (m *MockChannelRepository) GetMember(ctx context.Context, channelID, userID uuid.UUID) (*domain.ChannelMember, error) {
	if m.GetMemberFunc != nil {
		return m.GetMemberFunc(ctx, channelID, userID)
	}
	return nil, nil
}

func (m *MockChannelRepository) UpdateLastRead(ctx context.Context, channelID, userID uuid.UUID) error {
	if m.UpdateLastReadFunc != nil {
		return m.UpdateLastReadFunc(ctx, channelID, userID)
	}
	return nil
}

// MockProfileRepository is a mock implementation of ProfileRepository
type MockProfileRepository struct {
	GetProfileFunc func(ctx context.Context, userID uuid.UUID) (*domain.StaffProfile, error)
	AddPointsFunc  func(ctx context.Context, userID uuid.UUID, points int) error
	SaveLayoutFunc func(ctx context.Context, userID uuid.UUID, layout datatypes.JSON) error
}

func (m *MockProfileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.StaffProfile, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockProfileRepository) AddPoints(ctx context.Context, userID uuid.UUID, points int) error {
	if m.AddPointsFunc != nil {
		return m.AddPointsFunc(ctx, userID, points)
	}
	return nil
}

func (m *MockProfileRepository) SaveLayout(ctx context.Context, userID uuid.UUID, layout datatypes.JSON) error {
	if m.SaveLayoutFunc != nil {
		return m.SaveLayoutFunc(ctx, userID, layout)
	}
	return nil
}
