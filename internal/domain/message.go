package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatChannel is a named, many-party topic. Direct messages have no channel row;
// they are addressed by recipient on the message itself.
type ChatChannel struct {
	ChannelID    uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"channelId"`
	WorkspaceID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"workspaceId"`
	Name         string         `gorm:"type:varchar(100);not null" json:"name"`
	IsGeneral    bool           `gorm:"default:false" json:"isGeneral"`
	DepartmentID *uuid.UUID     `gorm:"type:uuid;index" json:"departmentId,omitempty"`
	CreatedBy    uuid.UUID      `gorm:"type:uuid;not null" json:"createdBy"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

func (ChatChannel) TableName() string {
	return "chat_channels"
}

func (ch *ChatChannel) BeforeCreate(tx *gorm.DB) error {
	if ch.ChannelID == uuid.Nil {
		ch.ChannelID = uuid.New()
	}
	return nil
}

// ChannelMember carries per-user read state for a channel.
type ChannelMember struct {
	MemberID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"memberId"`
	ChannelID  uuid.UUID `gorm:"type:uuid;not null;index:idx_channel_user" json:"channelId"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_channel_user" json:"userId"`
	JoinedAt   time.Time `gorm:"autoCreateTime" json:"joinedAt"`
	LastReadAt time.Time `gorm:"autoCreateTime" json:"lastReadAt"`
}

func (ChannelMember) TableName() string {
	return "channel_members"
}

func (m *ChannelMember) BeforeCreate(tx *gorm.DB) error {
	if m.MemberID == uuid.Nil {
		m.MemberID = uuid.New()
	}
	return nil
}

// ChatMessage is append-only. Exactly one of ChannelID and RecipientID is set:
// channel message XOR direct message.
type ChatMessage struct {
	MessageID   uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"messageId"`
	SenderID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"senderId"`
	ChannelID   *uuid.UUID `gorm:"type:uuid;index:idx_messages_channel_created" json:"channelId,omitempty"`
	RecipientID *uuid.UUID `gorm:"type:uuid;index" json:"recipientId,omitempty"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	FileKey     *string    `gorm:"type:text" json:"fileKey,omitempty"`
	FileName    *string    `gorm:"type:varchar(255)" json:"fileName,omitempty"`
	FileSize    *int64     `gorm:"type:bigint" json:"fileSize,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index:idx_messages_channel_created" json:"createdAt"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.MessageID == uuid.Nil {
		m.MessageID = uuid.New()
	}
	return nil
}

// Conversation identifies either a channel or a two-party DM. DM keys are
// normalized so both parties derive the same key regardless of direction.
type Conversation struct {
	ChannelID *uuid.UUID
	// DM participants, set only when ChannelID is nil.
	UserA *uuid.UUID
	UserB *uuid.UUID
}

// ChannelConversation builds a channel-backed conversation.
func ChannelConversation(channelID uuid.UUID) Conversation {
	return Conversation{ChannelID: &channelID}
}

// DirectConversation builds a DM conversation; participant order does not matter.
func DirectConversation(a, b uuid.UUID) Conversation {
	if strings.Compare(a.String(), b.String()) > 0 {
		a, b = b, a
	}
	return Conversation{UserA: &a, UserB: &b}
}

// IsDirect reports whether the conversation is a two-party DM.
func (c Conversation) IsDirect() bool {
	return c.ChannelID == nil
}

// Key returns the stable routing key used for realtime fanout and
// subscription bookkeeping.
func (c Conversation) Key() string {
	if c.ChannelID != nil {
		return fmt.Sprintf("channel:%s", c.ChannelID)
	}
	return fmt.Sprintf("dm:%s:%s", c.UserA, c.UserB)
}
