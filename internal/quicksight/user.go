package quicksight

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/quicksight/types"
	"github.com/rs/zerolog/log"
)

// InvitedUser is a registered QuickSight user along with its invitation link.
// PrincipalId is omitted.
type InvitedUser struct {
	Arn                                 string `json:"Arn,omitempty"`
	UserName                            string `json:"UserName"`
	Email                               string `json:"Email"`
	Role                                string `json:"Role,omitempty"`
	IdentityType                        string `json:"IdentityType,omitempty"`
	Active                              bool   `json:"Active"`
	CustomPermissionsName               string `json:"CustomPermissionsName,omitempty"`
	ExternalLoginFederationProviderType string `json:"ExternalLoginFederationProviderType,omitempty"`
	ExternalLoginFederationProviderURL  string `json:"ExternalLoginFederationProviderUrl,omitempty"`
	ExternalLoginID                     string `json:"ExternalLoginId,omitempty"`
	InvitationURL                       string `json:"InvitationUrl"`
}

func newInvitedUser(user *types.User, invitationURL string) InvitedUser {
	return InvitedUser{
		Arn:                                 aws.ToString(user.Arn),
		UserName:                            aws.ToString(user.UserName),
		Email:                               aws.ToString(user.Email),
		Role:                                string(user.Role),
		IdentityType:                        string(user.IdentityType),
		Active:                              user.Active,
		CustomPermissionsName:               aws.ToString(user.CustomPermissionsName),
		ExternalLoginFederationProviderType: aws.ToString(user.ExternalLoginFederationProviderType),
		ExternalLoginFederationProviderURL:  aws.ToString(user.ExternalLoginFederationProviderUrl),
		ExternalLoginID:                     aws.ToString(user.ExternalLoginId),
		InvitationURL:                       invitationURL,
	}
}

// WriteInvitations writes users as indented JSON to path and returns the
// absolute path written.
func WriteInvitations(path string, users []InvitedUser) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}
	if users == nil {
		users = []InvitedUser{}
	}

	data, err := json.MarshalIndent(users, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode invitations: %w", err)
	}

	log.Info().Str("path", absPath).Msg("Writing invitation links to file")
	if err := os.WriteFile(absPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write invitations: %w", err)
	}
	return absPath, nil
}
