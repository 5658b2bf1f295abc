package email

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codr1/quicksight-invitations/internal/config"
	"github.com/codr1/quicksight-invitations/internal/quicksight"
	"github.com/codr1/quicksight-invitations/internal/ratelimit"
)

type sentMessage struct {
	recipient string
	subject   string
	body      string
	sender    string
}

type fakeEmailSender struct {
	mu            sync.Mutex
	sent          []sentMessage
	sendFromCalls int32
	inFlight      int32
	maxInFlight   int32
	fail          map[string]error
	block         bool
	ctxErrCh      chan error
}

func newFakeEmailSender() *fakeEmailSender {
	return &fakeEmailSender{
		fail:     map[string]error{},
		ctxErrCh: make(chan error, 8),
	}
}

func (f *fakeEmailSender) Send(ctx context.Context, recipient, subject, body string) error {
	return f.SendFrom(ctx, recipient, subject, body, "")
}

func (f *fakeEmailSender) SendFrom(ctx context.Context, recipient, subject, body, sender string) error {
	atomic.AddInt32(&f.sendFromCalls, 1)
	current := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.maxInFlight)
		if current <= peak || atomic.CompareAndSwapInt32(&f.maxInFlight, peak, current) {
			break
		}
	}

	if err, ok := f.fail[recipient]; ok {
		return err
	}

	if f.block {
		<-ctx.Done()
		f.ctxErrCh <- ctx.Err()
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Millisecond):
	}

	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{recipient: recipient, subject: subject, body: body, sender: sender})
	f.mu.Unlock()
	return nil
}

func invitedUsers(n int) []quicksight.InvitedUser {
	users := make([]quicksight.InvitedUser, 0, n)
	for i := 0; i < n; i++ {
		name := string(rune('a' + i))
		users = append(users, quicksight.InvitedUser{
			UserName:      name,
			Email:         name + "@example.com",
			InvitationURL: "https://example.com/invite/" + name,
		})
	}
	return users
}

func TestSendInvitations(t *testing.T) {
	sender := newFakeEmailSender()

	err := SendInvitations(context.Background(), sender, invitedUsers(3), InvitationOptions{
		SourceEmail: "invites@example.com",
		Project:     "acme-qs",
	})
	if err != nil {
		t.Fatalf("SendInvitations() error = %v", err)
	}

	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(sender.sent))
	}
	recipients := make([]string, 0, len(sender.sent))
	for _, msg := range sender.sent {
		recipients = append(recipients, msg.recipient)
		if msg.sender != "invites@example.com" {
			t.Errorf("sender = %q", msg.sender)
		}
		if msg.subject != InvitationSubject {
			t.Errorf("subject = %q", msg.subject)
		}
		if !strings.Contains(msg.body, "Account name: acme-qs") {
			t.Errorf("body missing project:\n%s", msg.body)
		}
	}
	sort.Strings(recipients)
	want := []string{"a@example.com", "b@example.com", "c@example.com"}
	for i := range want {
		if recipients[i] != want[i] {
			t.Fatalf("recipients = %v, want %v", recipients, want)
		}
	}
	if peak := atomic.LoadInt32(&sender.maxInFlight); peak != 1 {
		t.Errorf("default concurrency should be 1, saw %d in flight", peak)
	}
}

func TestSendInvitationsRespectsConcurrency(t *testing.T) {
	sender := newFakeEmailSender()

	err := SendInvitations(context.Background(), sender, invitedUsers(8), InvitationOptions{
		SourceEmail: "invites@example.com",
		Concurrency: 3,
	})
	if err != nil {
		t.Fatalf("SendInvitations() error = %v", err)
	}
	if peak := atomic.LoadInt32(&sender.maxInFlight); peak > 3 {
		t.Fatalf("expected at most 3 sends in flight, saw %d", peak)
	}
	if len(sender.sent) != 8 {
		t.Fatalf("expected 8 messages, got %d", len(sender.sent))
	}
}

type frozenClock struct{ now time.Time }

func (c frozenClock) Now() time.Time { return c.now }

func TestSendInvitationsPacesSends(t *testing.T) {
	sender := newFakeEmailSender()
	var sleeps int32
	limiter := ratelimit.New(&ratelimit.Config{
		MaxPerSecond: 1,
		Clock:        frozenClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		Sleep: func(ctx context.Context, d time.Duration) error {
			atomic.AddInt32(&sleeps, 1)
			return ctx.Err()
		},
	})

	err := SendInvitations(context.Background(), sender, invitedUsers(4), InvitationOptions{
		SourceEmail: "invites@example.com",
		Limiter:     limiter,
	})
	if err != nil {
		t.Fatalf("SendInvitations() error = %v", err)
	}
	if len(sender.sent) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(sender.sent))
	}
	if got := atomic.LoadInt32(&sleeps); got != 3 {
		t.Fatalf("expected every send after the first to wait, got %d waits", got)
	}
}

func TestSendInvitationsSourceValidation(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr error
	}{
		{"missing", "", config.ErrSourceEmailRequired},
		{"blank", "  ", config.ErrSourceEmailRequired},
		{"invalid", "invites@", config.ErrSourceEmailInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newFakeEmailSender()
			err := SendInvitations(context.Background(), sender, invitedUsers(1), InvitationOptions{SourceEmail: tt.source})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SendInvitations() error = %v, want %v", err, tt.wantErr)
			}
			if atomic.LoadInt32(&sender.sendFromCalls) != 0 {
				t.Fatal("no email should be sent with an invalid source")
			}
		})
	}
}

func TestSendInvitationsReturnsFirstError(t *testing.T) {
	sender := newFakeEmailSender()
	sendErr := errors.New("message rejected")
	sender.fail["b@example.com"] = sendErr

	err := SendInvitations(context.Background(), sender, invitedUsers(4), InvitationOptions{
		SourceEmail: "invites@example.com",
	})
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected send error, got %v", err)
	}
	if !strings.Contains(err.Error(), "b@example.com") {
		t.Errorf("error should name the recipient: %v", err)
	}
	if calls := atomic.LoadInt32(&sender.sendFromCalls); calls != 2 {
		t.Errorf("expected sends to stop after the failure, got %d calls", calls)
	}
}

func TestSendInvitations_ContextCanceledStopsSend(t *testing.T) {
	sender := newFakeEmailSender()
	sender.block = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- SendInvitations(ctx, sender, invitedUsers(1), InvitationOptions{
			SourceEmail: "invites@example.com",
			Timeout:     time.Minute,
		})
	}()

	deadline := time.After(time.Second)
	for atomic.LoadInt32(&sender.sendFromCalls) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected invitation send to start")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected SendInvitations to return after cancellation")
	}
}

func TestSendInvitationsTimeout(t *testing.T) {
	sender := newFakeEmailSender()
	sender.block = true

	err := SendInvitations(context.Background(), sender, invitedUsers(1), InvitationOptions{
		SourceEmail: "invites@example.com",
		Timeout:     20 * time.Millisecond,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSendInvitationsRequiresSender(t *testing.T) {
	if err := SendInvitations(context.Background(), nil, invitedUsers(1), InvitationOptions{SourceEmail: "invites@example.com"}); err == nil {
		t.Fatal("expected error without a sender")
	}
}
