package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"office-service/internal/domain"
	"office-service/internal/repository"
	"office-service/internal/response"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type MessageService interface {
	GetHistory(ctx context.Context, userID uuid.UUID, conv domain.Conversation, limit int, before *time.Time) ([]domain.ChatMessage, error)
	SyncConversation(ctx context.Context, userID uuid.UUID, conv domain.Conversation, since time.Time, limit int) ([]domain.ChatMessage, error)
	SendMessage(ctx context.Context, senderID uuid.UUID, conv domain.Conversation, content string, fileKey, fileName *string, fileSize *int64) (*domain.ChatMessage, error)
	GetAttachment(ctx context.Context, userID, messageID uuid.UUID) (*domain.ChatMessage, error)
	GetUnreadCount(ctx context.Context, userID, channelID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, channelID uuid.UUID) error
	GetVisibleChannels(ctx context.Context, workspaceID uuid.UUID, departmentID *uuid.UUID) ([]domain.ChatChannel, error)
	CreateChannel(ctx context.Context, workspaceID, createdBy uuid.UUID, name string, departmentID *uuid.UUID) (*domain.ChatChannel, error)
}

type messageService struct {
	messageRepo repository.MessageRepository
	channelRepo repository.ChannelRepository
	publisher   EventPublisher
	logger      *zap.Logger
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	channelRepo repository.ChannelRepository,
	publisher EventPublisher,
	logger *zap.Logger,
) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		channelRepo: channelRepo,
		publisher:   publisher,
		logger:      logger,
	}
}

func (s *messageService) GetHistory(ctx context.Context, userID uuid.UUID, conv domain.Conversation, limit int, before *time.Time) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	if conv.ChannelID != nil {
		if _, err := s.channelRepo.GetChannelByID(ctx, *conv.ChannelID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, response.NewAppError(response.ErrCodeNotFound, "Channel not found", "")
			}
			return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load channel", err.Error())
		}
		// Opening a channel implies membership; read state hangs off this row.
		if err := s.channelRepo.UpsertMember(ctx, *conv.ChannelID, userID); err != nil {
			s.logger.Warn("failed to upsert channel member", zap.Error(err))
		}
	}

	messages, err := s.messageRepo.GetHistory(ctx, conv, limit, before)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load messages", err.Error())
	}
	return messages, nil
}

// SyncConversation reconciles a client catching up after a reconnect: the
// newest history window merged with everything created since the last message
// the client saw. Copies fetched twice collapse by id.
func (s *messageService) SyncConversation(ctx context.Context, userID uuid.UUID, conv domain.Conversation, since time.Time, limit int) ([]domain.ChatMessage, error) {
	history, err := s.GetHistory(ctx, userID, conv, limit, nil)
	if err != nil {
		return nil, err
	}
	if since.IsZero() {
		return MergeMessages(history), nil
	}

	recent, err := s.messageRepo.GetMessagesAfter(ctx, conv, since, maxHistoryLimit)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load messages", err.Error())
	}
	return MergeMessages(history, recent), nil
}

func (s *messageService) SendMessage(ctx context.Context, senderID uuid.UUID, conv domain.Conversation, content string, fileKey, fileName *string, fileSize *int64) (*domain.ChatMessage, error) {
	if strings.TrimSpace(content) == "" && fileKey == nil {
		return nil, response.NewAppError(response.ErrCodeValidation, "Message content is empty", "")
	}

	message := &domain.ChatMessage{
		SenderID: senderID,
		Content:  content,
		FileKey:  fileKey,
		FileName: fileName,
		FileSize: fileSize,
	}

	if conv.ChannelID != nil {
		message.ChannelID = conv.ChannelID
	} else {
		recipient := otherParty(conv, senderID)
		if recipient == nil {
			return nil, response.NewAppError(response.ErrCodeValidation, "Sender is not part of this conversation", "")
		}
		if *recipient == senderID {
			return nil, response.NewAppError(response.ErrCodeValidation, "Cannot message yourself", "")
		}
		message.RecipientID = recipient
	}

	if err := s.messageRepo.CreateMessage(ctx, message); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to send message", err.Error())
	}

	// Fan out after the row is durable. The sender reconciles its optimistic
	// echo against the returned row by id, so a lost broadcast only affects
	// other viewers until their next fetch.
	if s.publisher != nil {
		event := Event{
			Type:      EventMessageNew,
			MessageID: message.MessageID.String(),
			UserID:    senderID.String(),
			Payload: map[string]interface{}{
				"conversation": conv.Key(),
				"content":      message.Content,
				"fileKey":      message.FileKey,
				"fileName":     message.FileName,
				"fileSize":     message.FileSize,
				"createdAt":    message.CreatedAt,
			},
		}
		if err := s.publisher.Publish(ctx, ConversationChannel(conv.Key()), event); err != nil {
			s.logger.Warn("message broadcast failed",
				zap.String("messageId", message.MessageID.String()),
				zap.Error(err))
		}
	}

	return message, nil
}

// otherParty resolves the DM peer for senderID, or nil if the sender is not
// one of the two participants.
func otherParty(conv domain.Conversation, senderID uuid.UUID) *uuid.UUID {
	if conv.UserA == nil || conv.UserB == nil {
		return nil
	}
	switch senderID {
	case *conv.UserA:
		return conv.UserB
	case *conv.UserB:
		return conv.UserA
	}
	return nil
}

// GetAttachment loads a file message for download. DM attachments are only
// visible to the two participants.
func (s *messageService) GetAttachment(ctx context.Context, userID, messageID uuid.UUID) (*domain.ChatMessage, error) {
	message, err := s.messageRepo.GetMessageByID(ctx, messageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewAppError(response.ErrCodeNotFound, "Message not found", "")
	}
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load message", err.Error())
	}
	if message.FileKey == nil {
		return nil, response.NewAppError(response.ErrCodeNotFound, "Message has no attachment", "")
	}
	if message.RecipientID != nil && userID != message.SenderID && userID != *message.RecipientID {
		return nil, response.NewAppError(response.ErrCodeForbidden, "Not a participant in this conversation", "")
	}
	return message, nil
}

func (s *messageService) GetUnreadCount(ctx context.Context, userID, channelID uuid.UUID) (int64, error) {
	member, err := s.channelRepo.GetMember(ctx, channelID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, response.NewAppError(response.ErrCodeInternal, "Failed to load membership", err.Error())
	}

	count, err := s.messageRepo.CountAfter(ctx, domain.ChannelConversation(channelID), member.LastReadAt, userID)
	if err != nil {
		return 0, response.NewAppError(response.ErrCodeInternal, "Failed to count unread", err.Error())
	}
	return count, nil
}

func (s *messageService) MarkRead(ctx context.Context, userID, channelID uuid.UUID) error {
	if err := s.channelRepo.UpdateLastRead(ctx, channelID, userID); err != nil {
		return response.NewAppError(response.ErrCodeInternal, "Failed to update read state", err.Error())
	}
	return nil
}

func (s *messageService) GetVisibleChannels(ctx context.Context, workspaceID uuid.UUID, departmentID *uuid.UUID) ([]domain.ChatChannel, error) {
	channels, err := s.channelRepo.GetVisibleChannels(ctx, workspaceID, departmentID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load channels", err.Error())
	}
	return channels, nil
}

func (s *messageService) CreateChannel(ctx context.Context, workspaceID, createdBy uuid.UUID, name string, departmentID *uuid.UUID) (*domain.ChatChannel, error) {
	if strings.TrimSpace(name) == "" {
		return nil, response.NewAppError(response.ErrCodeValidation, "Channel name is required", "")
	}

	channel := &domain.ChatChannel{
		WorkspaceID:  workspaceID,
		Name:         name,
		DepartmentID: departmentID,
		CreatedBy:    createdBy,
	}
	if err := s.channelRepo.CreateChannel(ctx, channel); err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to create channel", err.Error())
	}
	return channel, nil
}

// MergeMessages reconciles history, realtime and optimistic copies of a
// conversation: duplicates collapse by id and the result is ordered by
// creation time. First occurrence wins so an optimistic echo is replaced
// in place rather than duplicated.
func MergeMessages(sets ...[]domain.ChatMessage) []domain.ChatMessage {
	seen := make(map[uuid.UUID]bool)
	var merged []domain.ChatMessage
	for _, set := range sets {
		for _, msg := range set {
			if seen[msg.MessageID] {
				continue
			}
			seen[msg.MessageID] = true
			merged = append(merged, msg)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}
