package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Djiouwairia/RED-Product/internal/auth"
	"github.com/Djiouwairia/RED-Product/internal/authz"
	"github.com/Djiouwairia/RED-Product/internal/db"
	"github.com/Djiouwairia/RED-Product/internal/models"
	"github.com/Djiouwairia/RED-Product/internal/tasks"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// dummyHash is compared against when the email is unknown, so that failed
// logins take the same time whether or not the account exists.
var dummyHash, _ = auth.HashPassword("timing-equalizer")

// RegisterInput carries the fields accepted at signup.
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// UpdateProfileInput carries the mutable profile fields.
type UpdateProfileInput struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// IUserService defines the interface for user account operations.
// This allows for easier mocking in tests.
type IUserService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, input UpdateProfileInput) (*models.User, error)
	ListUsers(ctx context.Context, actor *models.User) ([]models.PublicUser, error)
	ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword, newPassword2 string) error
	SetPassword(ctx context.Context, userID primitive.ObjectID, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	CreateSuperuser(ctx context.Context, providedSecret string, input RegisterInput) (*models.User, error)
	DeleteUserCascade(ctx context.Context, actor *models.User, userID primitive.ObjectID) error
}

// userService implements IUserService.
type userService struct {
	db          *mongo.Database
	policy      authz.Policy
	pwPolicy    *auth.PasswordPolicy
	tokens      auth.ITokenManager
	taskClient  tasks.IClient
	setupSecret string
}

// NewUserService creates a new UserService. taskClient may be nil when the
// worker is not running (password reset emails are then skipped with a log line).
func NewUserService(database *mongo.Database, policy authz.Policy, pwPolicy *auth.PasswordPolicy, tokens auth.ITokenManager, taskClient tasks.IClient, setupSecret string) IUserService {
	return &userService{
		db:          database,
		policy:      policy,
		pwPolicy:    pwPolicy,
		tokens:      tokens,
		taskClient:  taskClient,
		setupSecret: setupSecret,
	}
}

func (s *userService) validateRegisterInput(input *RegisterInput) error {
	fields := make(map[string]string)

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Username = strings.TrimSpace(input.Username)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)

	if input.Username == "" {
		fields["username"] = "username is required"
	}
	if input.FirstName == "" {
		fields["first_name"] = "first_name is required"
	}
	if input.LastName == "" {
		fields["last_name"] = "last_name is required"
	}
	if !emailPattern.MatchString(input.Email) {
		fields["email"] = "enter a valid email address"
	}
	if input.Password != input.Password2 {
		fields["password2"] = "the two password fields do not match"
	} else if reasons := s.pwPolicy.Validate(input.Password); len(reasons) > 0 {
		fields["password"] = strings.Join(reasons, "; ")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Register creates a new regular (non-admin) account. Email and username are
// unique; the unique indexes are the final arbiter when two signups race.
func (s *userService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if err := s.validateRegisterInput(&input); err != nil {
		return nil, err
	}
	return s.insertUser(ctx, input, false)
}

func (s *userService) insertUser(ctx context.Context, input RegisterInput, superuser bool) (*models.User, error) {
	collection := s.db.Collection(db.UsersCollection)

	// Pre-check for a friendlier error on the common path. The unique index
	// still catches concurrent inserts below.
	count, err := collection.CountDocuments(ctx, bson.M{"email": input.Email})
	if err != nil {
		return nil, fmt.Errorf("error checking email uniqueness for %s: %w", input.Email, err)
	}
	if count > 0 {
		return nil, ErrEmailExists
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser := &models.User{
		ID:           primitive.NewObjectID(),
		Email:        input.Email,
		Username:     input.Username,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: hash,
		IsAdmin:      superuser,
		IsStaff:      superuser,
		IsSuperuser:  superuser,
		IsActive:     true,
		DateJoined:   time.Now().UTC(),
	}

	// A fresh _id per attempt lets an id collision heal on retry; an email or
	// username collision keeps failing and is converted after the last attempt.
	insertErr := db.Try(func() error {
		newUser.ID = primitive.NewObjectID()
		_, err := collection.InsertOne(ctx, newUser)
		return err
	})
	if insertErr != nil {
		if mongo.IsDuplicateKeyError(insertErr) {
			if strings.Contains(insertErr.Error(), "username_1") {
				return nil, ErrUsernameExists
			}
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("error inserting user %s: %w", input.Email, insertErr)
	}

	return newUser, nil
}

// Authenticate verifies the email/password pair. Unknown email, wrong
// password and deactivated account all yield ErrInvalidCredentials.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Burn a comparison anyway.
			auth.CheckPasswordHash(password, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindByEmail finds a user by their (lowercased) email address.
// Returns mongo.ErrNoDocuments if not found.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(db.UsersCollection)
	filter := bson.M{"email": strings.ToLower(email)}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindByID finds a user by their ID.
func (s *userService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(db.UsersCollection)

	err := collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID.Hex(), err)
	}
	return &user, nil
}

// UpdateProfile updates the user's own mutable fields. Nil pointers leave the
// corresponding field untouched.
func (s *userService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, input UpdateProfileInput) (*models.User, error) {
	set := bson.M{}
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, NewValidationError("username", "username cannot be blank")
		}
		set["username"] = username
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if !emailPattern.MatchString(email) {
			return nil, NewValidationError("email", "enter a valid email address")
		}
		set["email"] = email
	}
	if input.FirstName != nil {
		set["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		set["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if len(set) == 0 {
		return s.FindByID(ctx, userID)
	}

	collection := s.db.Collection(db.UsersCollection)
	result, err := collection.UpdateByID(ctx, userID, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), "username_1") {
				return nil, ErrUsernameExists
			}
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("error updating profile for user %s: %w", userID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return s.FindByID(ctx, userID)
}

// ListUsers returns the user directory. Admins see every account; everyone
// else sees only their own record.
func (s *userService) ListUsers(ctx context.Context, actor *models.User) ([]models.PublicUser, error) {
	collection := s.db.Collection(db.UsersCollection)

	filter := bson.M{}
	if !s.policy.CanListAllUsers(actor) {
		filter["_id"] = actor.ID
	}

	opts := options.Find().
		SetProjection(bson.M{"_id": 1, "email": 1, "username": 1, "first_name": 1, "last_name": 1}).
		SetSort(bson.D{{Key: "date_joined", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.PublicUser{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

// ChangePassword verifies the current password and the confirmation before
// setting a new one.
func (s *userService) ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword, newPassword2 string) error {
	if newPassword != newPassword2 {
		return NewValidationError("new_password2", "the two password fields do not match")
	}
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(oldPassword, user.PasswordHash) {
		return NewValidationError("old_password", "current password is incorrect")
	}
	return s.SetPassword(ctx, userID, newPassword)
}

// SetPassword replaces the stored hash unconditionally. Used by the change
// and reset flows after their respective checks.
func (s *userService) SetPassword(ctx context.Context, userID primitive.ObjectID, newPassword string) error {
	if reasons := s.pwPolicy.Validate(newPassword); len(reasons) > 0 {
		return NewValidationError("password", strings.Join(reasons, "; "))
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password for user %s: %w", userID.Hex(), err)
	}

	collection := s.db.Collection(db.UsersCollection)
	result, err := collection.UpdateByID(ctx, userID, bson.M{"$set": bson.M{"password": hash}})
	if err != nil {
		return fmt.Errorf("error updating password for user %s: %w", userID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// RequestPasswordReset issues a reset token and enqueues the email. It
// returns nil whether or not the address matches an account, so the endpoint
// cannot be used to probe which emails are registered.
func (s *userService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	token, err := s.tokens.IssuePasswordResetToken(user)
	if err != nil {
		return fmt.Errorf("failed to issue reset token for user %s: %w", user.ID.Hex(), err)
	}

	if s.taskClient == nil {
		log.Printf("No task client configured; dropping password reset email for %s", user.Email)
		return nil
	}

	task, err := tasks.NewPasswordResetEmailTask(user.Email, user.Username, token)
	if err != nil {
		return fmt.Errorf("failed to build reset email task: %w", err)
	}
	if _, err := s.taskClient.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue reset email for %s: %w", user.Email, err)
	}
	return nil
}

// CreateSuperuser creates the first admin account. It is guarded by the setup
// secret and refuses to run once any superuser exists.
func (s *userService) CreateSuperuser(ctx context.Context, providedSecret string, input RegisterInput) (*models.User, error) {
	if s.setupSecret == "" || providedSecret != s.setupSecret {
		return nil, ErrForbidden
	}

	collection := s.db.Collection(db.UsersCollection)
	count, err := collection.CountDocuments(ctx, bson.M{"is_superuser": true})
	if err != nil {
		return nil, fmt.Errorf("error counting superusers: %w", err)
	}
	if count > 0 {
		return nil, ErrSuperuserExists
	}

	if err := s.validateRegisterInput(&input); err != nil {
		return nil, err
	}

	user, err := s.insertUser(ctx, input, true)
	if err != nil {
		return nil, err
	}
	log.Printf("Initial superuser %s created", user.Email)
	return user, nil
}

// DeleteUserCascade removes a user together with their hotels and all
// messages they sent or received. Only admins may delete accounts, and an
// admin cannot delete their own account.
func (s *userService) DeleteUserCascade(ctx context.Context, actor *models.User, userID primitive.ObjectID) error {
	if !actor.AdminClass() {
		return ErrForbidden
	}
	if actor.ID == userID {
		return NewValidationError("id", "an admin cannot delete their own account")
	}

	collection := s.db.Collection(db.UsersCollection)
	result, err := collection.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return fmt.Errorf("db error deleting user %s: %w", userID.Hex(), err)
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}

	if _, err := s.db.Collection(db.HotelsCollection).DeleteMany(ctx, bson.M{"owner_id": userID}); err != nil {
		return fmt.Errorf("db error deleting hotels for user %s: %w", userID.Hex(), err)
	}

	messageFilter := bson.M{"$or": []bson.M{
		{"sender_id": userID},
		{"recipient_id": userID},
	}}
	if _, err := s.db.Collection(db.MessagesCollection).DeleteMany(ctx, messageFilter); err != nil {
		return fmt.Errorf("db error deleting messages for user %s: %w", userID.Hex(), err)
	}

	log.Printf("User %s deleted by admin %s (hotels and messages cascaded)", userID.Hex(), actor.ID.Hex())
	return nil
}
