package email

import (
	"fmt"
	"strings"
)

const InvitationSubject = "Quicksight Analytics Invite Link"

type Message struct {
	Subject string
	Body    string
}

type InvitationDetails struct {
	Username      string
	Email         string
	InvitationURL string
	Project       string
}

func BuildInvitationEmail(details InvitationDetails) Message {
	username := strings.TrimSpace(details.Username)
	if username == "" {
		username = strings.TrimSpace(details.Email)
	}

	lines := []string{
		"Dear Customer,",
		"",
		"You have been invited to access the QuickSight analytics portal.",
		"",
		"You will need your username and email to sign up for the first time:",
		fmt.Sprintf("Username: %s", username),
		fmt.Sprintf("Email: %s", strings.TrimSpace(details.Email)),
		"",
		"You can click on the link below to accept the invitation:",
		strings.TrimSpace(details.InvitationURL),
		"",
		"After signing up (setting up a new password), you will need your username or email and the account name to access QuickSight.",
		fmt.Sprintf("Account name: %s", strings.TrimSpace(details.Project)),
	}

	return Message{
		Subject: InvitationSubject,
		Body:    strings.Join(lines, "\n"),
	}
}
