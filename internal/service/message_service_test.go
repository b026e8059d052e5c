package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"office-service/internal/domain"
	"office-service/internal/response"
)

func newTestMessageService(msgRepo *MockMessageRepository, chRepo *MockChannelRepository, pub EventPublisher) MessageService {
	return NewMessageService(msgRepo, chRepo, pub, zap.NewNop())
}

func TestMessageService_SendMessage_EmptyRejected(t *testing.T) {
	svc := newTestMessageService(&MockMessageRepository{}, &MockChannelRepository{}, &recordingPublisher{})

	_, err := svc.SendMessage(context.Background(), uuid.New(),
		domain.ChannelConversation(uuid.New()), "   ", nil, nil, nil)
	assertAppErrorCode(t, err, response.ErrCodeValidation)
}

func TestMessageService_SendMessage_AttachmentOnlyAllowed(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestMessageService(&MockMessageRepository{}, &MockChannelRepository{}, pub)

	fileKey := "office/attachments/ws/2026/09/logo.png"
	fileName := "logo.png"
	fileSize := int64(2048)
	msg, err := svc.SendMessage(context.Background(), uuid.New(),
		domain.ChannelConversation(uuid.New()), "", &fileKey, &fileName, &fileSize)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if msg.FileKey == nil || *msg.FileKey != fileKey {
		t.Errorf("expected file key kept, got %v", msg.FileKey)
	}
}

func TestMessageService_SendMessage_DMSelfRejected(t *testing.T) {
	svc := newTestMessageService(&MockMessageRepository{}, &MockChannelRepository{}, &recordingPublisher{})

	me := uuid.New()
	_, err := svc.SendMessage(context.Background(), me,
		domain.DirectConversation(me, me), "hi", nil, nil, nil)
	assertAppErrorCode(t, err, response.ErrCodeValidation)
}

func TestMessageService_SendMessage_SenderMustBeParticipant(t *testing.T) {
	svc := newTestMessageService(&MockMessageRepository{}, &MockChannelRepository{}, &recordingPublisher{})

	outsider := uuid.New()
	_, err := svc.SendMessage(context.Background(), outsider,
		domain.DirectConversation(uuid.New(), uuid.New()), "hi", nil, nil, nil)
	assertAppErrorCode(t, err, response.ErrCodeValidation)
}

func TestMessageService_SendMessage_DMAddressesPeer(t *testing.T) {
	var created *domain.ChatMessage
	msgRepo := &MockMessageRepository{
		CreateMessageFunc: func(ctx context.Context, message *domain.ChatMessage) error {
			message.MessageID = uuid.New()
			message.CreatedAt = time.Now()
			created = message
			return nil
		},
	}
	pub := &recordingPublisher{}
	svc := newTestMessageService(msgRepo, &MockChannelRepository{}, pub)

	me := uuid.New()
	peer := uuid.New()
	conv := domain.DirectConversation(me, peer)

	msg, err := svc.SendMessage(context.Background(), me, conv, "hello", nil, nil, nil)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if created == nil {
		t.Fatal("expected message persisted")
	}
	if msg.RecipientID == nil || *msg.RecipientID != peer {
		t.Errorf("expected recipient %v, got %v", peer, msg.RecipientID)
	}
	if msg.ChannelID != nil {
		t.Errorf("DM must not carry a channel id, got %v", msg.ChannelID)
	}

	events := pub.ofType(EventMessageNew)
	if len(events) != 1 {
		t.Fatalf("expected 1 MESSAGE_NEW event, got %d", len(events))
	}
	if events[0].Channel != ConversationChannel(conv.Key()) {
		t.Errorf("published on wrong channel: %s", events[0].Channel)
	}
	if events[0].Event.MessageID != msg.MessageID.String() {
		t.Errorf("event must carry the persisted id for echo reconciliation")
	}
}

func TestMessageService_SendMessage_BroadcastFailureIsNotFatal(t *testing.T) {
	msgRepo := &MockMessageRepository{
		CreateMessageFunc: func(ctx context.Context, message *domain.ChatMessage) error {
			message.MessageID = uuid.New()
			return nil
		},
	}
	svc := newTestMessageService(msgRepo, &MockChannelRepository{}, &failingPublisher{})

	msg, err := svc.SendMessage(context.Background(), uuid.New(),
		domain.ChannelConversation(uuid.New()), "hello", nil, nil, nil)
	if err != nil {
		t.Fatalf("expected persisted message despite broken fanout, got %v", err)
	}
	if msg == nil {
		t.Fatal("expected message returned")
	}
}

func TestMessageService_GetHistory_ClampsLimit(t *testing.T) {
	var gotLimit int
	msgRepo := &MockMessageRepository{
		GetHistoryFunc: func(ctx context.Context, conv domain.Conversation, limit int, before *time.Time) ([]domain.ChatMessage, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	svc := newTestMessageService(msgRepo, &MockChannelRepository{}, &recordingPublisher{})
	conv := domain.DirectConversation(uuid.New(), uuid.New())

	if _, err := svc.GetHistory(context.Background(), uuid.New(), conv, 0, nil); err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if gotLimit != 50 {
		t.Errorf("expected default limit 50, got %d", gotLimit)
	}

	if _, err := svc.GetHistory(context.Background(), uuid.New(), conv, 500, nil); err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if gotLimit != 100 {
		t.Errorf("expected limit clamped to 100, got %d", gotLimit)
	}
}

func TestMessageService_GetHistory_UnknownChannel(t *testing.T) {
	chRepo := &MockChannelRepository{
		GetChannelByIDFunc: func(ctx context.Context, channelID uuid.UUID) (*domain.ChatChannel, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := newTestMessageService(&MockMessageRepository{}, chRepo, &recordingPublisher{})

	_, err := svc.GetHistory(context.Background(), uuid.New(),
		domain.ChannelConversation(uuid.New()), 50, nil)
	assertAppErrorCode(t, err, response.ErrCodeNotFound)
}

func TestMessageService_GetHistory_RegistersMembership(t *testing.T) {
	var upserted bool
	chRepo := &MockChannelRepository{
		UpsertMemberFunc: func(ctx context.Context, channelID, userID uuid.UUID) error {
			upserted = true
			return nil
		},
	}
	svc := newTestMessageService(&MockMessageRepository{}, chRepo, &recordingPublisher{})

	if _, err := svc.GetHistory(context.Background(), uuid.New(),
		domain.ChannelConversation(uuid.New()), 50, nil); err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if !upserted {
		t.Error("expected channel membership upserted on open")
	}
}

func TestMessageService_SyncConversation_MergesWindowAndTail(t *testing.T) {
	conv := domain.DirectConversation(uuid.New(), uuid.New())
	base := time.Now().Add(-time.Hour)
	shared := domain.ChatMessage{MessageID: uuid.New(), Content: "b", CreatedAt: base.Add(2 * time.Minute)}

	msgRepo := &MockMessageRepository{
		GetHistoryFunc: func(ctx context.Context, c domain.Conversation, limit int, before *time.Time) ([]domain.ChatMessage, error) {
			return []domain.ChatMessage{
				{MessageID: uuid.New(), Content: "a", CreatedAt: base.Add(time.Minute)},
				shared,
			}, nil
		},
		GetMessagesAfterFunc: func(ctx context.Context, c domain.Conversation, after time.Time, limit int) ([]domain.ChatMessage, error) {
			return []domain.ChatMessage{
				shared,
				{MessageID: uuid.New(), Content: "c", CreatedAt: base.Add(3 * time.Minute)},
			}, nil
		},
	}
	svc := newTestMessageService(msgRepo, &MockChannelRepository{}, &recordingPublisher{})

	messages, err := svc.SyncConversation(context.Background(), uuid.New(), conv, base, 50)
	if err != nil {
		t.Fatalf("SyncConversation() error = %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages after dedup, got %d", len(messages))
	}
	for i := 1; i < len(messages); i++ {
		if messages[i].CreatedAt.Before(messages[i-1].CreatedAt) {
			t.Fatal("expected merged messages ordered by creation time")
		}
	}
	if messages[1].MessageID != shared.MessageID {
		t.Error("expected the overlapping message kept exactly once")
	}
}

func TestMessageService_SyncConversation_NoCursorIsHistoryOnly(t *testing.T) {
	var afterCalled bool
	msgRepo := &MockMessageRepository{
		GetHistoryFunc: func(ctx context.Context, c domain.Conversation, limit int, before *time.Time) ([]domain.ChatMessage, error) {
			return []domain.ChatMessage{{MessageID: uuid.New(), Content: "a", CreatedAt: time.Now()}}, nil
		},
		GetMessagesAfterFunc: func(ctx context.Context, c domain.Conversation, after time.Time, limit int) ([]domain.ChatMessage, error) {
			afterCalled = true
			return nil, nil
		},
	}
	svc := newTestMessageService(msgRepo, &MockChannelRepository{}, &recordingPublisher{})

	messages, err := svc.SyncConversation(context.Background(), uuid.New(),
		domain.DirectConversation(uuid.New(), uuid.New()), time.Time{}, 50)
	if err != nil {
		t.Fatalf("SyncConversation() error = %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if afterCalled {
		t.Error("first sync has no cursor and must not query the tail")
	}
}

func TestMessageService_GetAttachment(t *testing.T) {
	sender := uuid.New()
	recipient := uuid.New()
	fileKey := "office/attachments/ws/2026/09/report.pdf"

	store := map[uuid.UUID]*domain.ChatMessage{}
	dmFile := &domain.ChatMessage{MessageID: uuid.New(), SenderID: sender, RecipientID: &recipient, FileKey: &fileKey}
	textOnly := &domain.ChatMessage{MessageID: uuid.New(), SenderID: sender, RecipientID: &recipient, Content: "hi"}
	channelFile := &domain.ChatMessage{MessageID: uuid.New(), SenderID: sender, FileKey: &fileKey}
	for _, m := range []*domain.ChatMessage{dmFile, textOnly, channelFile} {
		store[m.MessageID] = m
	}

	msgRepo := &MockMessageRepository{
		GetMessageByIDFunc: func(ctx context.Context, messageID uuid.UUID) (*domain.ChatMessage, error) {
			if m, ok := store[messageID]; ok {
				return m, nil
			}
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := newTestMessageService(msgRepo, &MockChannelRepository{}, &recordingPublisher{})
	ctx := context.Background()

	_, err := svc.GetAttachment(ctx, sender, uuid.New())
	assertAppErrorCode(t, err, response.ErrCodeNotFound)

	_, err = svc.GetAttachment(ctx, sender, textOnly.MessageID)
	assertAppErrorCode(t, err, response.ErrCodeNotFound)

	// DM attachments stay between the two participants
	_, err = svc.GetAttachment(ctx, uuid.New(), dmFile.MessageID)
	assertAppErrorCode(t, err, response.ErrCodeForbidden)

	for _, participant := range []uuid.UUID{sender, recipient} {
		msg, err := svc.GetAttachment(ctx, participant, dmFile.MessageID)
		if err != nil {
			t.Fatalf("GetAttachment() error = %v", err)
		}
		if msg.FileKey == nil || *msg.FileKey != fileKey {
			t.Errorf("expected file key returned, got %v", msg.FileKey)
		}
	}

	if _, err := svc.GetAttachment(ctx, uuid.New(), channelFile.MessageID); err != nil {
		t.Errorf("channel attachments are workspace-visible, got %v", err)
	}
}

func TestMessageService_GetUnreadCount_NoMembershipIsZero(t *testing.T) {
	chRepo := &MockChannelRepository{
		GetMemberFunc: func(ctx context.Context, channelID, userID uuid.UUID) (*domain.ChannelMember, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := newTestMessageService(&MockMessageRepository{}, chRepo, &recordingPublisher{})

	count, err := svc.GetUnreadCount(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("GetUnreadCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 for non-member, got %d", count)
	}
}

func TestMessageService_GetUnreadCount_FromLastRead(t *testing.T) {
	lastRead := time.Now().Add(-time.Hour)
	me := uuid.New()
	chRepo := &MockChannelRepository{
		GetMemberFunc: func(ctx context.Context, channelID, userID uuid.UUID) (*domain.ChannelMember, error) {
			return &domain.ChannelMember{ChannelID: channelID, UserID: userID, LastReadAt: lastRead}, nil
		},
	}
	msgRepo := &MockMessageRepository{
		CountAfterFunc: func(ctx context.Context, conv domain.Conversation, after time.Time, excludeSender uuid.UUID) (int64, error) {
			if !after.Equal(lastRead) {
				t.Errorf("expected count from last_read_at, got %v", after)
			}
			if excludeSender != me {
				t.Errorf("own messages must not count as unread")
			}
			return 7, nil
		},
	}
	svc := newTestMessageService(msgRepo, chRepo, &recordingPublisher{})

	count, err := svc.GetUnreadCount(context.Background(), me, uuid.New())
	if err != nil {
		t.Fatalf("GetUnreadCount() error = %v", err)
	}
	if count != 7 {
		t.Errorf("expected 7, got %d", count)
	}
}

func TestMessageService_CreateChannel_NameRequired(t *testing.T) {
	svc := newTestMessageService(&MockMessageRepository{}, &MockChannelRepository{}, &recordingPublisher{})

	_, err := svc.CreateChannel(context.Background(), uuid.New(), uuid.New(), "  ", nil)
	assertAppErrorCode(t, err, response.ErrCodeValidation)
}
