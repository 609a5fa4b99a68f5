package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yoganurrahman/moolai-gym-api/internal/logger"
	"github.com/yoganurrahman/moolai-gym-api/internal/metrics"
)

// Event kinds emitted by the core. Consumers (audit, push, email) read
// them off the queue; the core never depends on delivery succeeding.
const (
	EventGrantCreated       = "grant.created"
	EventGrantDebited       = "grant.debited"
	EventGrantCredited      = "grant.credited"
	EventBookingConfirmed   = "booking.confirmed"
	EventBookingWaitlisted  = "booking.waitlisted"
	EventBookingPromoted    = "booking.promoted"
	EventBookingCancelled   = "booking.cancelled"
	EventWaitlistSkipped    = "booking.waitlist_skipped"
	EventCheckinRecorded    = "checkin.recorded"
	EventSubscriptionRenews = "subscription.renewed"
	EventSubscriptionFailed = "subscription.failed"
)

const (
	eventQueue       = "events"
	emailQueue       = "emails"
	emailFailedQueue = "emails:failed"
)

type Event struct {
	Kind       string                 `json:"kind"`
	UserID     int                    `json:"user_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

type EmailJob struct {
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// RecipientSource resolves a user id to the address the member-facing
// emails go to. Satisfied by the user repository.
type RecipientSource interface {
	Recipient(ctx context.Context, id int) (email, name string, err error)
}

type Service struct {
	redis      *redis.Client
	recipients RecipientSource
	from       string
	fromName   string
	smtpHost   string
	smtpPort   string
	smtpUser   string
	smtpPass   string
}

func New(fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass, redisAddr string, recipients RecipientSource) *Service {
	return &Service{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
		recipients: recipients,
		from:       fromEmail,
		fromName:   fromName,
		smtpHost:   smtpHost,
		smtpPort:   smtpPort,
		smtpUser:   smtpUser,
		smtpPass:   smtpPass,
	}
}

// Publish queues a domain event. Failures are logged and swallowed:
// booking, check-in, and billing correctness never depends on the
// notification path.
func (s *Service) Publish(ctx context.Context, kind string, userID int, payload map[string]interface{}) {
	event := Event{
		Kind:       kind,
		UserID:     userID,
		Payload:    payload,
		OccurredAt: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Errorf("Failed to marshal event %s: %v", kind, err)
		return
	}

	if err := s.redis.LPush(ctx, eventQueue, data).Err(); err != nil {
		logger.Errorf("Failed to queue event %s for user %d: %v", kind, userID, err)
		return
	}

	logger.Debug("Event queued", "kind", kind, "user_id", userID)
}

func (s *Service) Send(ctx context.Context, to, name, subject, body string) error {
	job := EmailJob{
		To:      to,
		Name:    name,
		Subject: subject,
		Body:    body,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Failed to marshal email job: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, emailQueue, data).Err(); err != nil {
		logger.Errorf("Failed to queue email to %s: %v", to, err)
		return err
	}

	logger.Infof("Email queued: %s to %s", subject, to)
	return nil
}

// Start drains both queues until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	logger.Info("Notification service started")

	depth := time.NewTicker(30 * time.Second)
	defer depth.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Notification service stopped")
			return
		case <-depth.C:
			metrics.SetEmailQueueDepth(s.QueueLength(ctx))
		default:
			s.processNextEmail(ctx)
			s.processNextEvent(ctx)
		}
	}
}

func (s *Service) processNextEvent(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, time.Second, eventQueue).Result()
	if err != nil {
		return
	}

	var event Event
	if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
		logger.Errorf("Bad event data: %v", err)
		return
	}

	logger.Info("Domain event", "kind", event.Kind, "user_id", event.UserID, "payload", event.Payload)
	s.dispatchEvent(ctx, event)
}

// dispatchEvent turns the member-facing events into queued emails.
// Everything else stays audit-only.
func (s *Service) dispatchEvent(ctx context.Context, event Event) {
	if s.recipients == nil {
		return
	}

	switch event.Kind {
	case EventBookingConfirmed, EventBookingPromoted, EventSubscriptionFailed:
	default:
		return
	}

	email, name, err := s.recipients.Recipient(ctx, event.UserID)
	if err != nil {
		logger.Errorf("No recipient for user %d: %v", event.UserID, err)
		return
	}

	switch event.Kind {
	case EventBookingConfirmed:
		_ = s.SendBookingConfirmation(ctx, email, name,
			payloadString(event.Payload, "class_name"), payloadTime(event.Payload, "starts_at"))
	case EventBookingPromoted:
		_ = s.SendWaitlistPromotion(ctx, email, name,
			payloadString(event.Payload, "class_name"), payloadTime(event.Payload, "starts_at"))
	case EventSubscriptionFailed:
		_ = s.SendRenewalFailed(ctx, email, name, payloadString(event.Payload, "package_ref"))
	}
}

func payloadString(payload map[string]interface{}, key string) string {
	v, _ := payload[key].(string)
	return v
}

// payloadTime reads a timestamp that went through JSON, where time.Time
// values arrive as RFC 3339 strings.
func payloadTime(payload map[string]interface{}, key string) time.Time {
	raw, _ := payload[key].(string)
	t, _ := time.Parse(time.RFC3339, raw)
	return t
}

func (s *Service) processNextEmail(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, time.Second, emailQueue).Result()
	if err != nil {
		return
	}

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad email data: %v", err)
		return
	}

	job.Tries++
	logger.Infof("Sending email to %s (attempt %d)", job.To, job.Tries)
	if err := s.sendNow(job); err != nil {
		logger.Errorf("Failed to send email to %s: %v", job.To, err)

		if job.Tries < 3 {
			time.Sleep(5 * time.Second)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), emailQueue, data)
			logger.Infof("Retrying email to %s (attempt %d)", job.To, job.Tries+1)
		} else {
			logger.Errorf("Email to %s failed after 3 attempts", job.To)
			s.saveFailed(job, err)
		}
		return
	}

	logger.Infof("Email sent successfully to %s", job.To)
}

func (s *Service) sendNow(job EmailJob) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.from)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.smtpUser != "" && s.smtpPass != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	}

	addr := s.smtpHost + ":" + s.smtpPort
	return smtp.SendMail(addr, auth, s.from, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(job EmailJob, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), emailFailedQueue, data)
	logger.Errorf("Email moved to failed queue: %s", job.To)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, emailQueue).Result()
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}

func (s *Service) SendBookingConfirmation(ctx context.Context, email, name, className string, when time.Time) error {
	subject := "Booking Confirmed - " + className
	body := fmt.Sprintf(`Hi %s,

Your class booking is confirmed!

Class: %s
Time: %s

See you at the gym!

- Moolai Gym Team`, name, className, when.Format("Jan 2, 2006 at 3:04 PM"))

	return s.Send(ctx, email, name, subject, body)
}

func (s *Service) SendWaitlistPromotion(ctx context.Context, email, name, className string, when time.Time) error {
	subject := "You're In! - " + className
	body := fmt.Sprintf(`Hi %s,

A spot opened up and your waitlisted booking is now confirmed:

Class: %s
Time: %s

See you soon!

- Moolai Gym Team`, name, className, when.Format("Jan 2, 2006 at 3:04 PM"))

	return s.Send(ctx, email, name, subject, body)
}

func (s *Service) SendRenewalFailed(ctx context.Context, email, name, packageName string) error {
	subject := "Membership Renewal Failed"
	body := fmt.Sprintf(`Hi %s,

We could not process the renewal payment for your %s subscription.
Auto-renewal has been stopped; your current membership stays valid
until its expiry date. Please update your payment method and
re-subscribe at the front desk or in the app.

- Moolai Gym Team`, name, packageName)

	return s.Send(ctx, email, name, subject, body)
}
