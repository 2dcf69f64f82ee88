package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Djiouwairia/RED-Product/internal/authz"
	"github.com/Djiouwairia/RED-Product/internal/db"
	"github.com/Djiouwairia/RED-Product/internal/models"
)

// MessageScope selects which side of the inbox a listing covers.
type MessageScope string

const (
	MessageScopeAll      MessageScope = "all"
	MessageScopeSent     MessageScope = "sent"
	MessageScopeReceived MessageScope = "received"
)

// SendMessageInput carries the fields accepted when sending a message.
type SendMessageInput struct {
	RecipientID string `json:"recipient_id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}

// IMessageService defines the interface for the user-to-user message inbox.
type IMessageService interface {
	Send(ctx context.Context, actor *models.User, input SendMessageInput) (*models.Message, error)
	List(ctx context.Context, actor *models.User, scope MessageScope) ([]models.Message, error)
	Get(ctx context.Context, actor *models.User, messageID primitive.ObjectID) (*models.Message, error)
	MarkRead(ctx context.Context, actor *models.User, messageID primitive.ObjectID) (*models.Message, error)
	Archive(ctx context.Context, actor *models.User, messageID primitive.ObjectID) (*models.Message, error)
	Delete(ctx context.Context, actor *models.User, messageID primitive.ObjectID) error
	Unread(ctx context.Context, actor *models.User) ([]models.Message, error)
	UnreadCount(ctx context.Context, actor *models.User) (int64, error)
	Statistics(ctx context.Context, actor *models.User) (*models.MessageStats, error)
}

// messageService implements IMessageService.
type messageService struct {
	db     *mongo.Database
	policy authz.Policy
}

// NewMessageService creates a new MessageService.
func NewMessageService(database *mongo.Database, policy authz.Policy) IMessageService {
	return &messageService{db: database, policy: policy}
}

// Send delivers a message from the actor to an existing recipient. Sending to
// oneself is allowed; the message then appears once in the "all" listing and
// the usual read receipt applies.
func (s *messageService) Send(ctx context.Context, actor *models.User, input SendMessageInput) (*models.Message, error) {
	fields := make(map[string]string)

	recipientID, err := primitive.ObjectIDFromHex(strings.TrimSpace(input.RecipientID))
	if err != nil {
		fields["recipient_id"] = "invalid recipient id"
	}
	input.Subject = strings.TrimSpace(input.Subject)
	if input.Subject == "" {
		fields["subject"] = "subject cannot be blank"
	}
	if strings.TrimSpace(input.Body) == "" {
		fields["body"] = "body cannot be blank"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	count, err := s.db.Collection(db.UsersCollection).CountDocuments(ctx, bson.M{"_id": recipientID})
	if err != nil {
		return nil, fmt.Errorf("error checking recipient %s: %w", recipientID.Hex(), err)
	}
	if count == 0 {
		return nil, NewValidationError("recipient_id", "recipient does not exist")
	}

	msg := &models.Message{
		ID:          primitive.NewObjectID(),
		SenderID:    actor.ID,
		RecipientID: recipientID,
		Subject:     input.Subject,
		Body:        input.Body,
		Status:      models.MessageStatusSent,
		SentAt:      time.Now().UTC(),
	}

	if _, err := s.db.Collection(db.MessagesCollection).InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("error inserting message from %s to %s: %w", actor.ID.Hex(), recipientID.Hex(), err)
	}
	return msg, nil
}

// List returns the actor's messages, newest first. Admins get no wider view;
// participation is the only thing that matters here.
func (s *messageService) List(ctx context.Context, actor *models.User, scope MessageScope) ([]models.Message, error) {
	var filter bson.M
	switch scope {
	case MessageScopeSent:
		filter = bson.M{"sender_id": actor.ID}
	case MessageScopeReceived:
		filter = bson.M{"recipient_id": actor.ID}
	case MessageScopeAll, "":
		filter = bson.M{"$or": []bson.M{
			{"sender_id": actor.ID},
			{"recipient_id": actor.ID},
		}}
	default:
		return nil, NewValidationError("scope", fmt.Sprintf("unknown scope %q", scope))
	}

	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: -1}})
	cursor, err := s.db.Collection(db.MessagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

// Get retrieves a single message. When the recipient retrieves a message that
// is still in the sent state, the read receipt fires as part of the same
// operation: a single FindOneAndUpdate stamps status and read_at, so exactly
// one of any number of concurrent retrievals performs the transition.
func (s *messageService) Get(ctx context.Context, actor *models.User, messageID primitive.ObjectID) (*models.Message, error) {
	collection := s.db.Collection(db.MessagesCollection)

	now := time.Now().UTC()
	filter := bson.M{"_id": messageID, "recipient_id": actor.ID, "status": models.MessageStatusSent}
	update := bson.M{"$set": bson.M{"status": models.MessageStatusRead, "read_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg models.Message
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&msg)
	if err == nil {
		return &msg, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("error retrieving message %s: %w", messageID.Hex(), err)
	}

	// Not an unread message addressed to the actor: plain read path.
	err = collection.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error retrieving message %s: %w", messageID.Hex(), err)
	}
	if !s.policy.CanReadMessage(actor, &msg) {
		return nil, ErrForbidden
	}
	return &msg, nil
}

// MarkRead explicitly fires the read receipt. Only the recipient may do it;
// repeating it on an already-read message is a no-op.
func (s *messageService) MarkRead(ctx context.Context, actor *models.User, messageID primitive.ObjectID) (*models.Message, error) {
	msg, err := s.find(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if actor.ID != msg.RecipientID {
		return nil, ErrForbidden
	}
	if !s.policy.CanMarkRead(actor, msg) {
		// Already read or archived: idempotent success.
		return msg, nil
	}

	collection := s.db.Collection(db.MessagesCollection)
	now := time.Now().UTC()
	filter := bson.M{"_id": messageID, "status": models.MessageStatusSent}
	update := bson.M{"$set": bson.M{"status": models.MessageStatusRead, "read_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Message
	err = collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Lost the race to another mark-read: fetch the final state.
			return s.find(ctx, messageID)
		}
		return nil, fmt.Errorf("error marking message %s read: %w", messageID.Hex(), err)
	}
	return &updated, nil
}

// Archive moves a message to the terminal archived state. Either participant
// may archive; read_at, if set, is preserved.
func (s *messageService) Archive(ctx context.Context, actor *models.User, messageID primitive.ObjectID) (*models.Message, error) {
	msg, err := s.find(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanArchive(actor, msg) {
		return nil, ErrForbidden
	}
	if msg.Status == models.MessageStatusArchived {
		return msg, nil
	}

	collection := s.db.Collection(db.MessagesCollection)
	update := bson.M{"$set": bson.M{"status": models.MessageStatusArchived}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Message
	err = collection.FindOneAndUpdate(ctx, bson.M{"_id": messageID}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error archiving message %s: %w", messageID.Hex(), err)
	}
	return &updated, nil
}

// Delete removes a message permanently. Either participant may delete.
func (s *messageService) Delete(ctx context.Context, actor *models.User, messageID primitive.ObjectID) error {
	msg, err := s.find(ctx, messageID)
	if err != nil {
		return err
	}
	if !s.policy.CanReadMessage(actor, msg) {
		return ErrForbidden
	}

	result, err := s.db.Collection(db.MessagesCollection).DeleteOne(ctx, bson.M{"_id": messageID})
	if err != nil {
		return fmt.Errorf("error deleting message %s: %w", messageID.Hex(), err)
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Unread returns the messages awaiting the actor, newest first. Retrieving
// the list does not fire read receipts; only Get and MarkRead do.
func (s *messageService) Unread(ctx context.Context, actor *models.User) ([]models.Message, error) {
	filter := bson.M{
		"recipient_id": actor.ID,
		"status":       models.MessageStatusSent,
	}
	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: -1}})
	cursor, err := s.db.Collection(db.MessagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query unread messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []models.Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode unread messages: %w", err)
	}
	return messages, nil
}

// UnreadCount returns the number of messages awaiting the actor.
func (s *messageService) UnreadCount(ctx context.Context, actor *models.User) (int64, error) {
	count, err := s.db.Collection(db.MessagesCollection).CountDocuments(ctx, bson.M{
		"recipient_id": actor.ID,
		"status":       models.MessageStatusSent,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// Statistics returns the actor's message counters. Archived counts messages
// the actor participated in, on either side.
func (s *messageService) Statistics(ctx context.Context, actor *models.User) (*models.MessageStats, error) {
	collection := s.db.Collection(db.MessagesCollection)

	received, err := collection.CountDocuments(ctx, bson.M{"recipient_id": actor.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to count received messages: %w", err)
	}
	sent, err := collection.CountDocuments(ctx, bson.M{"sender_id": actor.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to count sent messages: %w", err)
	}
	unread, err := s.UnreadCount(ctx, actor)
	if err != nil {
		return nil, err
	}
	archived, err := collection.CountDocuments(ctx, bson.M{
		"status": models.MessageStatusArchived,
		"$or": []bson.M{
			{"sender_id": actor.ID},
			{"recipient_id": actor.ID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count archived messages: %w", err)
	}

	return &models.MessageStats{
		Received: received,
		Sent:     sent,
		Unread:   unread,
		Archived: archived,
	}, nil
}

func (s *messageService) find(ctx context.Context, messageID primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	err := s.db.Collection(db.MessagesCollection).FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding message %s: %w", messageID.Hex(), err)
	}
	return &msg, nil
}
