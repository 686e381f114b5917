package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wanderlink/internal/model"
)

// testStore creates a Store over an in-memory SQLite database.
func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return New(db)
}

// seedPair creates one traveler and one local guide and returns their ids.
func seedPair(t *testing.T, s *Store) (string, string) {
	t.Helper()
	traveler := &model.User{Email: "ana@example.com", FullName: "Ana Traveler", Role: model.RoleTraveler, IsActive: true}
	local := &model.User{Email: "bruno@example.com", FullName: "Bruno Guide", Role: model.RoleLocal, IsActive: true, AvatarURL: "https://cdn.example.com/bruno.png"}
	if err := s.CreateUser(traveler); err != nil {
		t.Fatalf("create traveler: %v", err)
	}
	if err := s.CreateUser(local); err != nil {
		t.Fatalf("create local: %v", err)
	}
	return traveler.ID, local.ID
}

func TestCreateConversation_SeedsInitialMessage(t *testing.T) {
	s := testStore(t)
	travelerID, localID := seedPair(t, s)

	conv, created, err := s.CreateConversation(travelerID, localID, "Hi! Are you free next week?")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if !created {
		t.Error("Expected created=true for a new pair")
	}
	if conv.LastMessageContent != "Hi! Are you free next week?" {
		t.Errorf("Summary content = %q", conv.LastMessageContent)
	}
	if conv.LastMessageSenderID != travelerID {
		t.Errorf("Summary sender = %q, want traveler", conv.LastMessageSenderID)
	}

	msgs, total, err := s.ListMessages(conv.ID, 50, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if total != 1 || len(msgs) != 1 {
		t.Fatalf("Expected 1 seeded message, got total=%d len=%d", total, len(msgs))
	}
	if msgs[0].Content != "Hi! Are you free next week?" {
		t.Errorf("Initial message content = %q", msgs[0].Content)
	}
	if msgs[0].Status != model.StatusSent {
		t.Errorf("Initial message status = %q, want sent", msgs[0].Status)
	}
}

func TestCreateConversation_IdempotentPerPair(t *testing.T) {
	s := testStore(t)
	travelerID, localID := seedPair(t, s)

	first, _, err := s.CreateConversation(travelerID, localID, "Hello")
	if err != nil {
		t.Fatalf("first CreateConversation: %v", err)
	}
	second, created, err := s.CreateConversation(travelerID, localID, "Hello again")
	if err != nil {
		t.Fatalf("second CreateConversation: %v", err)
	}
	if created {
		t.Error("Expected created=false for an existing active pair")
	}
	if second.ID != first.ID {
		t.Errorf("Expected the existing conversation %s, got %s", first.ID, second.ID)
	}
}

func TestCreateMessage_UpdatesSummary(t *testing.T) {
	s := testStore(t)
	travelerID, localID := seedPair(t, s)
	conv, _, _ := s.CreateConversation(travelerID, localID, "Hello")

	msg, err := s.CreateMessage(conv.ID, localID, "Sure, what do you want to see?", model.MessageTypeText)
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("Expected generated message id")
	}

	got, err := s.FindConversation(conv.ID)
	if err != nil {
		t.Fatalf("FindConversation: %v", err)
	}
	if got.LastMessageContent != "Sure, what do you want to see?" {
		t.Errorf("Summary content = %q", got.LastMessageContent)
	}
	if got.LastMessageSenderID != localID {
		t.Errorf("Summary sender = %q, want local", got.LastMessageSenderID)
	}
	if !got.LastMessageAt.Equal(msg.CreatedAt) {
		t.Errorf("Summary timestamp = %v, want %v", got.LastMessageAt, msg.CreatedAt)
	}
}

func TestCreateMessage_TruncatesSummaryTo100Runes(t *testing.T) {
	s := testStore(t)
	travelerID, localID := seedPair(t, s)
	conv, _, _ := s.CreateConversation(travelerID, localID, "Hello")

	long := strings.Repeat("あ", 150)
	if _, err := s.CreateMessage(conv.ID, travelerID, long, model.MessageTypeText); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	got, _ := s.FindConversation(conv.ID)
	if runes := []rune(got.LastMessageContent); len(runes) != 100 {
		t.Errorf("Summary length = %d runes, want 100", len(runes))
	}
	if !strings.HasPrefix(long, got.LastMessageContent) {
		t.Error("Summary is not a prefix of the original content")
	}
}

func TestMarkMessagesRead_SkipsOwnAndAlreadyRead(t *testing.T) {
	s := testStore(t)
	travelerID, localID := seedPair(t, s)
	conv, _, _ := s.CreateConversation(travelerID, localID, "Hello")

	incoming, _ := s.CreateMessage(conv.ID, localID, "From the guide", model.MessageTypeText)
	own, _ := s.CreateMessage(conv.ID, travelerID, "From myself", model.MessageTypeText)

	now := time.Now()
	count, err := s.MarkMessagesRead(conv.ID, travelerID, []string{incoming.ID, own.ID}, now)
	if err != nil {
		t.Fatalf("MarkMessagesRead: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 transition, got %d", count)
	}

	var ownRow model.Message
	if err := s.db.First(&ownRow, "id = ?", own.ID).Error; err != nil {
		t.Fatalf("reload own message: %v", err)
	}
	if ownRow.Status != model.StatusSent {
		t.Errorf("Own message status = %q, self-read must be rejected", ownRow.Status)
	}

	// Second call is a no-op: nothing left to transition.
	count, err = s.MarkMessagesRead(conv.ID, travelerID, []string{incoming.ID, own.ID}, now)
	if err != nil {
		t.Fatalf("second MarkMessagesRead: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected idempotent second call, got %d transitions", count)
	}
}

func TestMarkMessagesRead_EmptyList(t *testing.T) {
	s := testStore(t)
	count, err := s.MarkMessagesRead("whatever", "reader", nil, time.Now())
	if err != nil {
		t.Fatalf("MarkMessagesRead: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 transitions for empty list, got %d", count)
	}
}

func TestMarkMessagesDelivered_DoesNotRegressRead(t *testing.T) {
	s := testStore(t)
	travelerID, localID := seedPair(t, s)
	conv, _, _ := s.CreateConversation(travelerID, localID, "Hello")

	read, _ := s.CreateMessage(conv.ID, localID, "Seen already", model.MessageTypeText)
	pending, _ := s.CreateMessage(conv.ID, localID, "Still pending", model.MessageTypeText)
	if _, err := s.MarkMessagesRead(conv.ID, travelerID, []string{read.ID}, time.Now()); err != nil {
		t.Fatalf("MarkMessagesRead: %v", err)
	}

	count, err := s.MarkMessagesDelivered(conv.ID, travelerID, time.Now())
	if err != nil {
		t.Fatalf("MarkMessagesDelivered: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 delivery transition, got %d", count)
	}

	var readRow, pendingRow model.Message
	s.db.First(&readRow, "id = ?", read.ID)
	s.db.First(&pendingRow, "id = ?", pending.ID)
	if readRow.Status != model.StatusRead {
		t.Errorf("Read message regressed to %q", readRow.Status)
	}
	if pendingRow.Status != model.StatusDelivered {
		t.Errorf("Pending message status = %q, want delivered", pendingRow.Status)
	}
	if pendingRow.DeliveredAt == nil {
		t.Error("Expected delivered_at to be set")
	}
}

func TestListMessages_PageIsOldestFirst(t *testing.T) {
	s := testStore(t)
	travelerID, localID := seedPair(t, s)
	conv, _, _ := s.CreateConversation(travelerID, localID, "first")

	// Space out created_at so ordering is deterministic on SQLite.
	base := time.Now()
	for i, content := range []string{"second", "third", "fourth"} {
		msg := &model.Message{
			ID:             content,
			ConversationID: conv.ID,
			SenderID:       localID,
			Content:        content,
			MessageType:    model.MessageTypeText,
			Status:         model.StatusSent,
			CreatedAt:      base.Add(time.Duration(i+1) * time.Minute),
		}
		if err := s.db.Create(msg).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	msgs, total, err := s.ListMessages(conv.ID, 2, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if total != 4 {
		t.Errorf("Expected total 4, got %d", total)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected page of 2, got %d", len(msgs))
	}
	if msgs[0].Content != "third" || msgs[1].Content != "fourth" {
		t.Errorf("Expected newest page [third fourth] oldest-first, got [%s %s]", msgs[0].Content, msgs[1].Content)
	}
}

func TestEditMessage_WithinWindow(t *testing.T) {
	s := testStore(t)
	travelerID, localID := seedPair(t, s)
	conv, _, _ := s.CreateConversation(travelerID, localID, "Hello")
	msg, _ := s.CreateMessage(conv.ID, travelerID, "Typo here", model.MessageTypeText)

	edited, err := s.EditMessage(conv.ID, msg.ID, travelerID, "Fixed now", time.Now())
	if err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if edited.Content != "Fixed now" || !edited.IsEdited || edited.EditedAt == nil {
		t.Errorf("Edit not applied: %+v", edited)
	}
}

func TestEditMessage_WindowExpired(t *testing.T) {
	s := testStore(t)
	travelerID, localID := seedPair(t, s)
	conv, _, _ := s.CreateConversation(travelerID, localID, "Hello")
	msg, _ := s.CreateMessage(conv.ID, travelerID, "Old message", model.MessageTypeText)

	_, err := s.EditMessage(conv.ID, msg.ID, travelerID, "Too late", time.Now().Add(EditWindow+time.Minute))
	if !errors.Is(err, ErrEditWindowExpired) {
		t.Errorf("Expected ErrEditWindowExpired, got %v", err)
	}
}

func TestEditMessage_OnlySender(t *testing.T) {
	s := testStore(t)
	travelerID, localID := seedPair(t, s)
	conv, _, _ := s.CreateConversation(travelerID, localID, "Hello")
	msg, _ := s.CreateMessage(conv.ID, travelerID, "Mine", model.MessageTypeText)

	_, err := s.EditMessage(conv.ID, msg.ID, localID, "Hijacked", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for non-sender edit, got %v", err)
	}
}

func TestListConversations_ArchiveAndUnread(t *testing.T) {
	s := testStore(t)
	travelerID, localID := seedPair(t, s)

	conv, _, _ := s.CreateConversation(travelerID, localID, "Hello")
	s.CreateMessage(conv.ID, localID, "Unread one", model.MessageTypeText)
	s.CreateMessage(conv.ID, localID, "Unread two", model.MessageTypeText)

	summaries, total, err := s.ListConversations(travelerID, 20, 0)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if total != 1 || len(summaries) != 1 {
		t.Fatalf("Expected 1 conversation, got total=%d len=%d", total, len(summaries))
	}
	if summaries[0].UnreadCount != 2 {
		t.Errorf("Unread count = %d, want 2", summaries[0].UnreadCount)
	}

	// Archiving hides the thread for the traveler only.
	if err := s.ArchiveConversation(conv.ID, travelerID); err != nil {
		t.Fatalf("ArchiveConversation: %v", err)
	}
	_, total, err = s.ListConversations(travelerID, 20, 0)
	if err != nil {
		t.Fatalf("ListConversations after archive: %v", err)
	}
	if total != 0 {
		t.Errorf("Expected archived conversation hidden from traveler, total=%d", total)
	}
	_, total, err = s.ListConversations(localID, 20, 0)
	if err != nil {
		t.Fatalf("ListConversations for local: %v", err)
	}
	if total != 1 {
		t.Errorf("Expected conversation still visible to local, total=%d", total)
	}
}

func TestArchiveConversation_NonParticipant(t *testing.T) {
	s := testStore(t)
	travelerID, localID := seedPair(t, s)
	conv, _, _ := s.CreateConversation(travelerID, localID, "Hello")

	if err := s.ArchiveConversation(conv.ID, "someone-else"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for non-participant, got %v", err)
	}
}

func TestFindConversation_NotFound(t *testing.T) {
	s := testStore(t)
	if _, err := s.FindConversation("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
