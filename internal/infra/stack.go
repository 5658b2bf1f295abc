// Package infra defines the CDK stack that provisions the SES sender identity
// used for QuickSight invitation emails.
package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsses"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/codr1/quicksight-invitations/internal/config"
)

const (
	// SenderEmailContextKey is the CDK context key holding the sender address.
	SenderEmailContextKey = "invitationSenderEmail"
	// SenderEmailEnv is consulted when the context key is unset.
	SenderEmailEnv = "INVITATION_SENDER_EMAIL"

	EmailIdentityID = "invitationEmailer"
	SenderOutputID  = "InvitationSenderEmail"
)

var (
	ErrSenderEmailRequired = errors.New("invitation sender email is required")
	ErrSenderEmailInvalid  = errors.New("invitation sender email is invalid")
)

type SesStackProps struct {
	awscdk.StackProps
	SenderEmail string
}

// ValidateSenderEmail normalizes and checks the address to verify in SES.
func ValidateSenderEmail(sender string) (string, error) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return "", ErrSenderEmailRequired
	}
	if !config.ValidSenderAddress(sender) {
		return "", fmt.Errorf("%w: %q", ErrSenderEmailInvalid, sender)
	}
	return sender, nil
}

// NewSesStack adds a stack holding one verifiable SES email identity. The
// sender is validated before anything is added to scope.
func NewSesStack(scope constructs.Construct, id string, props *SesStackProps) (awscdk.Stack, error) {
	var sprops awscdk.StackProps
	var sender string
	if props != nil {
		sprops = props.StackProps
		sender = props.SenderEmail
	}

	sender, err := ValidateSenderEmail(sender)
	if err != nil {
		return nil, err
	}

	stack := awscdk.NewStack(scope, jsii.String(id), &sprops)

	// Verifiable email identity to send out email invitations to join QuickSight
	identity := awsses.NewEmailIdentity(stack, jsii.String(EmailIdentityID), &awsses.EmailIdentityProps{
		Identity: awsses.Identity_Email(jsii.String(sender)),
	})

	awscdk.NewCfnOutput(stack, jsii.String(SenderOutputID), &awscdk.CfnOutputProps{
		Value:       identity.EmailIdentityName(),
		Description: jsii.String("Verified SES sender for QuickSight invitation emails"),
	})

	return stack, nil
}

// SenderEmailFromContext resolves the sender address from CDK context,
// falling back to the environment.
func SenderEmailFromContext(scope constructs.Construct) string {
	if value, ok := scope.Node().TryGetContext(jsii.String(SenderEmailContextKey)).(string); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(os.Getenv(SenderEmailEnv))
}

// EnvFromDefaults builds the stack environment from the CDK CLI's resolved
// account and region. Nil leaves the stack environment-agnostic.
func EnvFromDefaults() *awscdk.Environment {
	account := os.Getenv("CDK_DEFAULT_ACCOUNT")
	region := os.Getenv("CDK_DEFAULT_REGION")
	if account == "" && region == "" {
		return nil
	}
	env := &awscdk.Environment{}
	if account != "" {
		env.Account = jsii.String(account)
	}
	if region != "" {
		env.Region = jsii.String(region)
	}
	return env
}
