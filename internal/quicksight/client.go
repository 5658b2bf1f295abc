package quicksight

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/quicksight"
	"github.com/aws/aws-sdk-go-v2/service/quicksight/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"

	"github.com/codr1/quicksight-invitations/internal/config"
)

// IdentityRegion is the region QuickSight users are registered in.
const IdentityRegion = "us-east-1"

const defaultNamespace = "default"

// ErrRegisterFailed marks RegisterUser responses with a non-201 status.
var ErrRegisterFailed = errors.New("request to register quicksight user failed")

// ErrMissingUser marks RegisterUser responses without user details.
var ErrMissingUser = errors.New("register user response does not contain the user details")

// ErrMissingInvitationURL marks RegisterUser responses without an invitation URL.
var ErrMissingInvitationURL = errors.New("invitation URL is missing from the response")

// ErrMissingAccount marks caller identity responses without an account ID.
var ErrMissingAccount = errors.New("caller identity does not contain an account id")

// ErrUserExists marks errors returned when the user is already registered.
var ErrUserExists = errors.New("quicksight user already exists")

// ErrThrottled marks errors returned when QuickSight throttles requests.
var ErrThrottled = errors.New("quicksight throttling")

// ErrAccessDenied marks errors returned when the caller lacks QuickSight permissions.
var ErrAccessDenied = errors.New("quicksight access denied")

type registerUserAPI interface {
	RegisterUser(ctx context.Context, params *quicksight.RegisterUserInput, optFns ...func(*quicksight.Options)) (*quicksight.RegisterUserOutput, error)
}

type callerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Client registers QuickSight users for the caller's account.
type Client struct {
	quicksight registerUserAPI
	sts        callerIdentityAPI
	namespace  string
}

// NewClient creates a client from an AWS config. The QuickSight client is
// pinned to IdentityRegion regardless of the config's region.
func NewClient(awsCfg aws.Config) *Client {
	qsCfg := awsCfg.Copy()
	qsCfg.Region = IdentityRegion

	return &Client{
		quicksight: quicksight.NewFromConfig(qsCfg),
		sts:        sts.NewFromConfig(awsCfg),
		namespace:  defaultNamespace,
	}
}

// AccountID returns the AWS account of the calling credentials.
func (c *Client) AccountID(ctx context.Context) (string, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", err)
	}
	account := aws.ToString(out.Account)
	if account == "" {
		return "", ErrMissingAccount
	}
	return account, nil
}

// RegisterUsers registers every invitee in order and stops at the first failure.
func (c *Client) RegisterUsers(ctx context.Context, invitees []config.Invitee) ([]InvitedUser, error) {
	log.Debug().Msg("Fetching account ID for QuickSight API calls")
	accountID, err := c.AccountID(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]InvitedUser, 0, len(invitees))
	for _, invitee := range invitees {
		user, err := c.registerUser(ctx, accountID, invitee)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", invitee.EmailAddress, err)
		}
		users = append(users, user)
	}
	return users, nil
}

func (c *Client) registerUser(ctx context.Context, accountID string, invitee config.Invitee) (InvitedUser, error) {
	role := invitee.ResolvedRole()
	log.Debug().
		Str("email", invitee.EmailAddress).
		Str("role", string(role)).
		Msg("Registering QuickSight user")

	out, err := c.quicksight.RegisterUser(ctx, &quicksight.RegisterUserInput{
		IdentityType: types.IdentityTypeQuicksight,
		Email:        aws.String(invitee.EmailAddress),
		UserRole:     types.UserRole(role),
		AwsAccountId: aws.String(accountID),
		Namespace:    aws.String(c.namespace),
		UserName:     aws.String(invitee.ResolvedUsername()),
	})
	if err != nil {
		return InvitedUser{}, mapQuickSightError(err)
	}

	if out.Status != http.StatusCreated {
		return InvitedUser{}, fmt.Errorf("%w: status %d", ErrRegisterFailed, out.Status)
	}
	if out.User == nil {
		return InvitedUser{}, ErrMissingUser
	}
	invitationURL := aws.ToString(out.UserInvitationUrl)
	if invitationURL == "" {
		return InvitedUser{}, ErrMissingInvitationURL
	}

	return newInvitedUser(out.User, invitationURL), nil
}

func mapQuickSightError(err error) error {
	var exists *types.ResourceExistsException
	if errors.As(err, &exists) {
		return fmt.Errorf("%w: %v", ErrUserExists, err)
	}
	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return fmt.Errorf("%w: %v", ErrThrottled, err)
	}
	var denied *types.AccessDeniedException
	if errors.As(err, &denied) {
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("quicksight %s: %w", apiErr.ErrorCode(), err)
	}
	return err
}
