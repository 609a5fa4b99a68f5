package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMocked(t *testing.T) (*Service, redismock.ClientMock) {
	client, mock := redismock.NewClientMock()
	svc := &Service{
		redis:    client,
		from:     "noreply@moolaigym.com",
		fromName: "Moolai Gym",
		smtpHost: "localhost",
		smtpPort: "1025",
	}
	return svc, mock
}

func TestPublish_QueuesEvent(t *testing.T) {
	svc, mock := newMocked(t)

	mock.CustomMatch(func(expected, actual []interface{}) error {
		if !regexp.MustCompile(`.*booking\.promoted.*`).MatchString(fmt.Sprintf("%s", actual[2])) {
			return fmt.Errorf("args not match, expectation regular: '.*booking\\.promoted.*', but gave: '%s'", actual[2])
		}
		return nil
	}).ExpectLPush(eventQueue, `.*booking\.promoted.*`).SetVal(1)

	svc.Publish(context.Background(), EventBookingPromoted, 12, map[string]interface{}{
		"booking_id": 5,
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_RedisErrorIsSwallowed(t *testing.T) {
	svc, mock := newMocked(t)

	mock.Regexp().ExpectLPush(eventQueue, `.*`).SetErr(assert.AnError)

	// Must not panic or propagate.
	svc.Publish(context.Background(), EventCheckinRecorded, 3, nil)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSend_QueuesEmailJob(t *testing.T) {
	svc, mock := newMocked(t)

	job := EmailJob{}
	mock.CustomMatch(func(expected, actual []interface{}) error {
		require.Len(t, actual, 3)
		return json.Unmarshal(actual[2].([]byte), &job)
	}).ExpectLPush(emailQueue, "ignored").SetVal(1)

	err := svc.Send(context.Background(), "m@moolaigym.com", "Member", "Subject", "Body")
	require.NoError(t, err)

	assert.Equal(t, "m@moolaigym.com", job.To)
	assert.Equal(t, "Subject", job.Subject)
	assert.WithinDuration(t, time.Now(), job.Created, time.Minute)
}

func TestSendBookingConfirmation_BuildsBody(t *testing.T) {
	svc, mock := newMocked(t)

	var payload string
	mock.CustomMatch(func(expected, actual []interface{}) error {
		payload = string(actual[2].([]byte))
		return nil
	}).ExpectLPush(emailQueue, "ignored").SetVal(1)

	when := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	err := svc.SendBookingConfirmation(context.Background(), "m@moolaigym.com", "Ayu", "Yoga Flow", when)
	require.NoError(t, err)

	assert.Contains(t, payload, "Yoga Flow")
	assert.Contains(t, payload, "Mar 10, 2025")
}

type stubRecipients struct {
	email string
	name  string
	err   error
}

func (s stubRecipients) Recipient(ctx context.Context, id int) (string, string, error) {
	return s.email, s.name, s.err
}

func TestDispatchEvent_BookingConfirmedQueuesEmail(t *testing.T) {
	svc, mock := newMocked(t)
	svc.recipients = stubRecipients{email: "ayu@moolaigym.com", name: "Ayu"}

	var payload string
	mock.CustomMatch(func(expected, actual []interface{}) error {
		payload = string(actual[2].([]byte))
		return nil
	}).ExpectLPush(emailQueue, "ignored").SetVal(1)

	svc.dispatchEvent(context.Background(), Event{
		Kind:   EventBookingConfirmed,
		UserID: 12,
		Payload: map[string]interface{}{
			"booking_id": 5,
			"class_name": "Yoga Flow",
			"starts_at":  "2025-03-10T18:00:00Z",
		},
	})

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, payload, "ayu@moolaigym.com")
	assert.Contains(t, payload, "Yoga Flow")
	assert.Contains(t, payload, "Mar 10, 2025")
}

func TestDispatchEvent_PromotionQueuesEmail(t *testing.T) {
	svc, mock := newMocked(t)
	svc.recipients = stubRecipients{email: "ayu@moolaigym.com", name: "Ayu"}

	var payload string
	mock.CustomMatch(func(expected, actual []interface{}) error {
		payload = string(actual[2].([]byte))
		return nil
	}).ExpectLPush(emailQueue, "ignored").SetVal(1)

	svc.dispatchEvent(context.Background(), Event{
		Kind:   EventBookingPromoted,
		UserID: 12,
		Payload: map[string]interface{}{
			"class_name": "Spin Class",
			"starts_at":  "2025-03-11T07:00:00Z",
		},
	})

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, payload, "You're In!")
	assert.Contains(t, payload, "Spin Class")
}

func TestDispatchEvent_SubscriptionFailureQueuesEmail(t *testing.T) {
	svc, mock := newMocked(t)
	svc.recipients = stubRecipients{email: "ayu@moolaigym.com", name: "Ayu"}

	var payload string
	mock.CustomMatch(func(expected, actual []interface{}) error {
		payload = string(actual[2].([]byte))
		return nil
	}).ExpectLPush(emailQueue, "ignored").SetVal(1)

	svc.dispatchEvent(context.Background(), Event{
		Kind:   EventSubscriptionFailed,
		UserID: 12,
		Payload: map[string]interface{}{
			"package_ref": "gold-monthly",
		},
	})

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, payload, "Renewal Failed")
	assert.Contains(t, payload, "gold-monthly")
}

func TestDispatchEvent_AuditOnlyKindQueuesNothing(t *testing.T) {
	svc, mock := newMocked(t)
	svc.recipients = stubRecipients{email: "ayu@moolaigym.com", name: "Ayu"}

	svc.dispatchEvent(context.Background(), Event{Kind: EventGrantDebited, UserID: 12})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchEvent_UnknownRecipientSwallowed(t *testing.T) {
	svc, mock := newMocked(t)
	svc.recipients = stubRecipients{err: assert.AnError}

	svc.dispatchEvent(context.Background(), Event{Kind: EventBookingConfirmed, UserID: 99})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueLength(t *testing.T) {
	svc, mock := newMocked(t)

	mock.ExpectLLen(emailQueue).SetVal(4)

	assert.Equal(t, int64(4), svc.QueueLength(context.Background()))
}
