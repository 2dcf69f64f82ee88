package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Djiouwairia/RED-Product/internal/models"
)

func setupMessageServiceTest(t *testing.T) (IMessageService, IUserService, func()) {
	db, cleanup := setupServicesDB(t, "message_service")
	policy := newAdminOnlyPolicy()
	users := NewUserService(db, policy, testPasswordPolicy(), new(mockTokenManager), nil, "")
	messages := NewMessageService(db, policy)
	return messages, users, cleanup
}

func TestMessageService_SendValidation(t *testing.T) {
	messages, users, cleanup := setupMessageServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	alice := insertTestUser(t, users, "alice@example.com", false)
	bob := insertTestUser(t, users, "bob@example.com", false)

	msg, err := messages.Send(ctx, alice, SendMessageInput{
		RecipientID: bob.ID.Hex(), Subject: "Hi", Body: "Hello Bob",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, msg.Status)
	assert.Nil(t, msg.ReadAt)
	assert.Equal(t, alice.ID, msg.SenderID)

	// Missing subject/body.
	_, err = messages.Send(ctx, alice, SendMessageInput{RecipientID: bob.ID.Hex()})
	assert.True(t, IsValidationError(err))

	// Recipient must exist.
	_, err = messages.Send(ctx, alice, SendMessageInput{
		RecipientID: "ffffffffffffffffffffffff", Subject: "x", Body: "y",
	})
	assert.True(t, IsValidationError(err))
}

func TestMessageService_SendToSelf(t *testing.T) {
	messages, users, cleanup := setupMessageServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	alice := insertTestUser(t, users, "alice@example.com", false)

	note, err := messages.Send(ctx, alice, SendMessageInput{
		RecipientID: alice.ID.Hex(), Subject: "note", Body: "to myself",
	})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, note.SenderID)
	assert.Equal(t, alice.ID, note.RecipientID)

	// The self-message appears exactly once in the union listing.
	all, err := messages.List(ctx, alice, MessageScopeAll)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, note.ID, all[0].ID)

	// The sender is also the recipient, so retrieval fires the receipt.
	got, err := messages.Get(ctx, alice, note.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, got.Status)
	require.NotNil(t, got.ReadAt)
}

func TestMessageService_ReadReceiptOnRecipientGet(t *testing.T) {
	messages, users, cleanup := setupMessageServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	alice := insertTestUser(t, users, "alice@example.com", false)
	bob := insertTestUser(t, users, "bob@example.com", false)
	carol := insertTestUser(t, users, "carol@example.com", false)

	msg, err := messages.Send(ctx, alice, SendMessageInput{
		RecipientID: bob.ID.Hex(), Subject: "Hi", Body: "Hello Bob",
	})
	require.NoError(t, err)

	// The sender reading their own message does not fire the receipt.
	seenBySender, err := messages.Get(ctx, alice, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, seenBySender.Status)
	assert.Nil(t, seenBySender.ReadAt)

	// A third party is rejected outright.
	_, err = messages.Get(ctx, carol, msg.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// The recipient's first retrieval stamps read + read_at.
	first, err := messages.Get(ctx, bob, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, first.Status)
	require.NotNil(t, first.ReadAt)

	// A second retrieval leaves the stamp untouched.
	second, err := messages.Get(ctx, bob, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, second.Status)
	require.NotNil(t, second.ReadAt)
	assert.Equal(t, first.ReadAt.UnixNano(), second.ReadAt.UnixNano())
}

func TestMessageService_ConcurrentReadsStampOnce(t *testing.T) {
	messages, users, cleanup := setupMessageServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	alice := insertTestUser(t, users, "alice@example.com", false)
	bob := insertTestUser(t, users, "bob@example.com", false)

	msg, err := messages.Send(ctx, alice, SendMessageInput{
		RecipientID: bob.ID.Hex(), Subject: "race", Body: "only one receipt",
	})
	require.NoError(t, err)

	const readers = 10
	var wg sync.WaitGroup
	results := make([]*models.Message, readers)
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = messages.Get(ctx, bob, msg.ID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < readers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i].ReadAt)
		assert.Equal(t, models.MessageStatusRead, results[i].Status)
	}
	// Every reader must observe the same single stamp.
	stamp := results[0].ReadAt.UnixNano()
	for i := 1; i < readers; i++ {
		assert.Equal(t, stamp, results[i].ReadAt.UnixNano())
	}
}

func TestMessageService_MarkRead(t *testing.T) {
	messages, users, cleanup := setupMessageServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	alice := insertTestUser(t, users, "alice@example.com", false)
	bob := insertTestUser(t, users, "bob@example.com", false)

	msg, err := messages.Send(ctx, alice, SendMessageInput{
		RecipientID: bob.ID.Hex(), Subject: "Hi", Body: "body",
	})
	require.NoError(t, err)

	// The sender cannot mark the message read.
	_, err = messages.MarkRead(ctx, alice, msg.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	read, err := messages.MarkRead(ctx, bob, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, read.Status)
	require.NotNil(t, read.ReadAt)

	// Idempotent: a repeat succeeds and keeps the original stamp.
	again, err := messages.MarkRead(ctx, bob, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, read.ReadAt.UnixNano(), again.ReadAt.UnixNano())
}

func TestMessageService_Archive(t *testing.T) {
	messages, users, cleanup := setupMessageServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	alice := insertTestUser(t, users, "alice@example.com", false)
	bob := insertTestUser(t, users, "bob@example.com", false)
	carol := insertTestUser(t, users, "carol@example.com", false)

	msg, err := messages.Send(ctx, alice, SendMessageInput{
		RecipientID: bob.ID.Hex(), Subject: "Hi", Body: "body",
	})
	require.NoError(t, err)

	// Third parties may not archive, admin or not.
	_, err = messages.Archive(ctx, carol, msg.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// The recipient reads first, then the sender archives: read_at survives.
	read, err := messages.MarkRead(ctx, bob, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)

	archived, err := messages.Archive(ctx, alice, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusArchived, archived.Status)
	require.NotNil(t, archived.ReadAt)
	assert.Equal(t, read.ReadAt.UnixNano(), archived.ReadAt.UnixNano())

	// Terminal: archiving again is a no-op, and mark-read cannot resurrect it.
	again, err := messages.Archive(ctx, bob, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusArchived, again.Status)

	still, err := messages.MarkRead(ctx, bob, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusArchived, still.Status)

	// Archiving straight from sent leaves read_at unset.
	msg2, err := messages.Send(ctx, alice, SendMessageInput{
		RecipientID: bob.ID.Hex(), Subject: "unread", Body: "never opened",
	})
	require.NoError(t, err)
	archived2, err := messages.Archive(ctx, bob, msg2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusArchived, archived2.Status)
	assert.Nil(t, archived2.ReadAt)
}

func TestMessageService_ListScopesAndStats(t *testing.T) {
	messages, users, cleanup := setupMessageServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	alice := insertTestUser(t, users, "alice@example.com", false)
	bob := insertTestUser(t, users, "bob@example.com", false)
	carol := insertTestUser(t, users, "carol@example.com", false)

	send := func(from, to *models.User, subject string) *models.Message {
		m, err := messages.Send(ctx, from, SendMessageInput{
			RecipientID: to.ID.Hex(), Subject: subject, Body: "b",
		})
		require.NoError(t, err)
		return m
	}
	m1 := send(alice, bob, "one")
	send(bob, alice, "two")
	send(carol, bob, "three")

	inbox, err := messages.List(ctx, bob, MessageScopeReceived)
	require.NoError(t, err)
	assert.Len(t, inbox, 2)

	sent, err := messages.List(ctx, bob, MessageScopeSent)
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	all, err := messages.List(ctx, bob, MessageScopeAll)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = messages.List(ctx, bob, MessageScope("bogus"))
	assert.True(t, IsValidationError(err))

	// Bob reads one, archives another; the counters must line up.
	_, err = messages.MarkRead(ctx, bob, m1.ID)
	require.NoError(t, err)
	inbox2, err := messages.List(ctx, bob, MessageScopeReceived)
	require.NoError(t, err)
	// Archive the unread one from carol.
	var carolMsgID = inbox2[0].ID
	if inbox2[0].ID == m1.ID {
		carolMsgID = inbox2[1].ID
	}
	_, err = messages.Archive(ctx, bob, carolMsgID)
	require.NoError(t, err)

	stats, err := messages.Statistics(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Received)
	assert.Equal(t, int64(1), stats.Sent)
	assert.Equal(t, int64(0), stats.Unread)
	assert.Equal(t, int64(1), stats.Archived)

	unread, err := messages.UnreadCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	pending, err := messages.Unread(ctx, alice)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.MessageStatusSent, pending[0].Status, "listing unread must not fire the read receipt")
}

func TestMessageService_Delete(t *testing.T) {
	messages, users, cleanup := setupMessageServiceTest(t)
	defer cleanup()
	ctx := context.Background()

	alice := insertTestUser(t, users, "alice@example.com", false)
	bob := insertTestUser(t, users, "bob@example.com", false)
	carol := insertTestUser(t, users, "carol@example.com", false)

	msg, err := messages.Send(ctx, alice, SendMessageInput{
		RecipientID: bob.ID.Hex(), Subject: "gone", Body: "soon",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, messages.Delete(ctx, carol, msg.ID), ErrForbidden)
	require.NoError(t, messages.Delete(ctx, bob, msg.ID))

	_, err = messages.Get(ctx, alice, msg.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}
