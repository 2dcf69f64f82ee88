package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registered for image.Decode
	"io"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Djiouwairia/RED-Product/internal/config"
	"github.com/Djiouwairia/RED-Product/internal/email"
)

// Task types handled by the worker.
const (
	TypePasswordResetEmail = "email:password_reset"
	TypeImageProcess       = "image:process"
)

// IClient is the narrow slice of asynq.Client the services need for
// enqueueing. It allows mocking in tests.
type IClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewClient builds an asynq client sharing the connection settings of rdb.
func NewClient(rdb *redis.Client) *asynq.Client {
	opts := rdb.Options()
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// HotelImageApplier is the hook back into the hotel registry used by the
// image worker. Kept narrow so this package does not depend on the services.
type HotelImageApplier interface {
	ApplyProcessedImage(ctx context.Context, hotelID primitive.ObjectID, s3Key string) error
}

// --- Payloads and constructors ---

// PasswordResetEmailPayload carries everything the worker needs to compose
// the reset email.
type PasswordResetEmailPayload struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// NewPasswordResetEmailTask builds the task enqueued when a user requests a
// password reset.
func NewPasswordResetEmailTask(emailAddr, username, token string) (*asynq.Task, error) {
	payload, err := json.Marshal(PasswordResetEmailPayload{Email: emailAddr, Username: username, Token: token})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal password reset payload: %w", err)
	}
	return asynq.NewTask(TypePasswordResetEmail, payload, asynq.Queue("default")), nil
}

// ImageProcessPayload identifies the uploaded hotel image to normalize.
type ImageProcessPayload struct {
	S3Key   string `json:"s3_key"`
	HotelID string `json:"hotel_id"`
}

// NewImageProcessTask builds the task enqueued after a hotel image upload.
func NewImageProcessTask(s3Key string, hotelID primitive.ObjectID) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageProcessPayload{S3Key: s3Key, HotelID: hotelID.Hex()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image process payload: %w", err)
	}
	return asynq.NewTask(TypeImageProcess, payload, asynq.Queue("images")), nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor holds the dependencies needed by task handlers.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
	s3Client    *s3.Client
	hotels      HotelImageApplier
}

func NewTaskProcessor(cfg *config.Config, emailSender email.Sender, s3Client *s3.Client, hotels HotelImageApplier) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		emailSender: emailSender,
		s3Client:    s3Client,
		hotels:      hotels,
	}
}

// SetupServer configures an Asynq server and its handler mux. The caller
// runs it with srv.Run(mux) and stops it with srv.Shutdown().
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	opts := rdb.Options()
	serverOpt := asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"default": 5,
				"images":  3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePasswordResetEmail, processor.HandlePasswordResetEmailTask)
	mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
	log.Println("Registered background task handlers")

	return srv, mux
}

// HandlePasswordResetEmailTask composes and sends the password reset email.
func (p *TaskProcessor) HandlePasswordResetEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload PasswordResetEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal password reset payload: %v: %w", err, asynq.SkipRetry)
	}

	resetLink := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(p.cfg.FrontendBaseURL, "/"), payload.Token)
	subject := "Reset your password"

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@red-product.example"
		log.Printf("Warning: SMTP_FROM_ADDRESS not configured, using fallback %s for email to %s", fromAddress, payload.Email)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.Email))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(fmt.Sprintf("Hello %s,\r\n\r\n", payload.Username))
	sb.WriteString("We received a request to reset the password for your account.\r\n")
	sb.WriteString("Follow this link to choose a new password:\r\n\r\n")
	sb.WriteString(resetLink + "\r\n\r\n")
	sb.WriteString("If you did not request this, you can safely ignore this email.\r\n")

	if err := p.emailSender.Send(ctx, []string{payload.Email}, subject, []byte(sb.String())); err != nil {
		log.Printf("Password reset email to %s failed (will retry): %v", payload.Email, err)
		return err
	}

	log.Printf("Password reset email sent to %s", payload.Email)
	return nil
}

// HandleImageProcessTask normalizes an uploaded hotel image: enforces the
// size limit, downsizes to the configured max dimension, re-encodes as JPEG
// and stamps the hotel document with the final key.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image process payload: %v: %w", err, asynq.SkipRetry)
	}

	hotelID, err := primitive.ObjectIDFromHex(payload.HotelID)
	if err != nil {
		log.Printf("Invalid HotelID in image task payload: %s", payload.HotelID)
		return fmt.Errorf("invalid hotel ID in payload: %w", asynq.SkipRetry)
	}

	log.Printf("Processing image task: S3Key=%s, HotelID=%s", payload.S3Key, payload.HotelID)

	getObjectOutput, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.S3Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("S3 object %s not found, likely upload failed or key incorrect", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download image from S3: %w", err)
	}
	defer getObjectOutput.Body.Close()

	imgData, err := io.ReadAll(getObjectOutput.Body)
	if err != nil {
		return fmt.Errorf("failed to read image data for %s: %w", payload.S3Key, err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image %s exceeds max size (%d > %d bytes), skipping", payload.S3Key, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxDim := uint(p.cfg.ImageMaxDimension)
	needsResize := uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim

	processedData := imgData
	contentType := aws.ToString(getObjectOutput.ContentType)

	if needsResize {
		resizedImg := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized image %s: %w", payload.S3Key, err)
		}
		processedData = buf.Bytes()
		contentType = "image/jpeg"
		log.Printf("Resized image %s to %dx%d", payload.S3Key, resizedImg.Bounds().Dx(), resizedImg.Bounds().Dy())

		_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.cfg.AwsS3Bucket),
			Key:         aws.String(payload.S3Key),
			Body:        bytes.NewReader(processedData),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return fmt.Errorf("failed to upload processed image %s: %w", payload.S3Key, err)
		}
	}

	if err := p.hotels.ApplyProcessedImage(ctx, hotelID, payload.S3Key); err != nil {
		return fmt.Errorf("failed to update hotel %s with processed image: %w", payload.HotelID, err)
	}

	log.Printf("Image task processed successfully: Key=%s, HotelID=%s", payload.S3Key, payload.HotelID)
	return nil
}
