package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"office-service/internal/domain"
)

type MessageRepository interface {
	CreateMessage(ctx context.Context, message *domain.ChatMessage) error
	GetMessageByID(ctx context.Context, messageID uuid.UUID) (*domain.ChatMessage, error)
	GetHistory(ctx context.Context, conv domain.Conversation, limit int, before *time.Time) ([]domain.ChatMessage, error)
	GetMessagesAfter(ctx context.Context, conv domain.Conversation, after time.Time, limit int) ([]domain.ChatMessage, error)
	CountAfter(ctx context.Context, conv domain.Conversation, after time.Time, excludeSender uuid.UUID) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) CreateMessage(ctx context.Context, message *domain.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) GetMessageByID(ctx context.Context, messageID uuid.UUID) (*domain.ChatMessage, error) {
	var message domain.ChatMessage
	err := r.db.WithContext(ctx).First(&message, "message_id = ?", messageID).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// conversationScope builds the filter for either side of the channel/DM split.
// DM messages match both directions of the pair and must have channel unset.
func conversationScope(conv domain.Conversation) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if conv.ChannelID != nil {
			return db.Where("channel_id = ?", conv.ChannelID)
		}
		return db.Where("channel_id IS NULL").
			Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
				conv.UserA, conv.UserB, conv.UserB, conv.UserA)
	}
}

func (r *messageRepository) GetHistory(ctx context.Context, conv domain.Conversation, limit int, before *time.Time) ([]domain.ChatMessage, error) {
	query := r.db.WithContext(ctx).Scopes(conversationScope(conv))
	if before != nil {
		query = query.Where("created_at < ?", before)
	}

	// Fetch the newest window, then return it in ascending render order.
	var messages []domain.ChatMessage
	err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *messageRepository) GetMessagesAfter(ctx context.Context, conv domain.Conversation, after time.Time, limit int) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	err := r.db.WithContext(ctx).Scopes(conversationScope(conv)).
		Where("created_at > ?", after).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) CountAfter(ctx context.Context, conv domain.Conversation, after time.Time, excludeSender uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ChatMessage{}).
		Scopes(conversationScope(conv)).
		Where("created_at > ? AND sender_id <> ?", after, excludeSender).
		Count(&count).Error
	return count, err
}
