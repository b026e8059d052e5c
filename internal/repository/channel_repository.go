package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"office-service/internal/domain"
)

type ChannelRepository interface {
	CreateChannel(ctx context.Context, channel *domain.ChatChannel) error
	GetChannelByID(ctx context.Context, channelID uuid.UUID) (*domain.ChatChannel, error)
	GetVisibleChannels(ctx context.Context, workspaceID uuid.UUID, departmentID *uuid.UUID) ([]domain.ChatChannel, error)
	UpsertMember(ctx context.Context, channelID, userID uuid.UUID) error
	GetMember(ctx context.Context, channelID, userID uuid.UUID) (*domain.ChannelMember, error)
	UpdateLastRead(ctx context.Context, channelID, userID uuid.UUID) error
}

type channelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) CreateChannel(ctx context.Context, channel *domain.ChatChannel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

func (r *channelRepository) GetChannelByID(ctx context.Context, channelID uuid.UUID) (*domain.ChatChannel, error) {
	var channel domain.ChatChannel
	err := r.db.WithContext(ctx).First(&channel, "channel_id = ?", channelID).Error
	if err != nil {
		return nil, err
	}
	return &channel, nil
}

// GetVisibleChannels returns the channels a member can see: the general
// channel, department-less channels and those matching their department.
func (r *channelRepository) GetVisibleChannels(ctx context.Context, workspaceID uuid.UUID, departmentID *uuid.UUID) ([]domain.ChatChannel, error) {
	query := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if departmentID != nil {
		query = query.Where("is_general = true OR department_id IS NULL OR department_id = ?", departmentID)
	} else {
		query = query.Where("is_general = true OR department_id IS NULL")
	}

	var channels []domain.ChatChannel
	err := query.Order("is_general DESC, name ASC").Find(&channels).Error
	return channels, err
}

func (r *channelRepository) UpsertMember(ctx context.Context, channelID, userID uuid.UUID) error {
	member := &domain.ChannelMember{
		ChannelID: channelID,
		UserID:    userID,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(member).Error
}

func (r *channelRepository) GetMember(ctx context.Context, channelID, userID uuid.UUID) (*domain.ChannelMember, error) {
	var member domain.ChannelMember
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *channelRepository) UpdateLastRead(ctx context.Context, channelID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&domain.ChannelMember{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Update("last_read_at", time.Now()).Error
}
