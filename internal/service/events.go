package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event types carried over the realtime fanout.
const (
	EventMessageNew    = "MESSAGE_NEW"
	EventUserStatus    = "USER_STATUS"
	EventPresenceJoin  = "PRESENCE_JOIN"
	EventPresenceLeave = "PRESENCE_LEAVE"
	EventTypingStart   = "TYPING_START"
	EventTypingStop    = "TYPING_STOP"
	EventGameMatched   = "GAME_MATCHED"
	EventGameInvite    = "GAME_INVITE"
	EventGameDeclined  = "GAME_DECLINED"
	EventGameMove      = "GAME_MOVE"
	EventGameOver      = "GAME_OVER"
	EventTaskTimer     = "TASK_TIMER"
)

// Event is the envelope published to redis and forwarded to websocket clients.
type Event struct {
	Type      string                 `json:"type"`
	UserID    string                 `json:"userId,omitempty"`
	MessageID string                 `json:"messageId,omitempty"`
	GameID    string                 `json:"gameId,omitempty"`
	TaskID    string                 `json:"taskId,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// EventPublisher fans events out to every service instance. The websocket hub
// subscribes on the other end and forwards to connected clients.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event Event) error
}

// Redis channel names per fanout scope.
func ConversationChannel(convKey string) string {
	return fmt.Sprintf("conv:%s", convKey)
}

// ConversationFromChannel recovers the conversation key from a fanout channel
// name; false for presence and per-user channels.
func ConversationFromChannel(channel string) (string, bool) {
	return strings.CutPrefix(channel, "conv:")
}

func PresenceChannel(workspaceID string) string {
	return fmt.Sprintf("presence:workspace:%s", workspaceID)
}

func UserChannel(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

type redisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher wraps the redis client. A nil client degrades to a no-op
// so single-instance deployments and tests run without redis.
func NewRedisPublisher(client *redis.Client, logger *zap.Logger) EventPublisher {
	return &redisPublisher{client: client, logger: logger}
}

func (p *redisPublisher) Publish(ctx context.Context, channel string, event Event) error {
	if p.client == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("channel", channel),
			zap.String("type", event.Type),
			zap.Error(err))
		return err
	}
	return nil
}
