package email

import (
	"strings"
	"testing"
)

func TestBuildInvitationEmail(t *testing.T) {
	msg := BuildInvitationEmail(InvitationDetails{
		Username:      "ana",
		Email:         "ana@example.com",
		InvitationURL: "https://quicksight.aws.amazon.com/invite/ana",
		Project:       "acme-qs",
	})

	if msg.Subject != "Quicksight Analytics Invite Link" {
		t.Errorf("subject = %q", msg.Subject)
	}
	for _, want := range []string{
		"Username: ana",
		"Email: ana@example.com",
		"https://quicksight.aws.amazon.com/invite/ana",
		"Account name: acme-qs",
	} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Body)
		}
	}
}

func TestBuildInvitationEmailUsernameFallback(t *testing.T) {
	msg := BuildInvitationEmail(InvitationDetails{Email: "bo@example.com"})
	if !strings.Contains(msg.Body, "Username: bo@example.com") {
		t.Errorf("expected username to fall back to email:\n%s", msg.Body)
	}
}
