// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfigNotFound      = errors.New("config file not found")
	ErrConfigMalformed     = errors.New("config file is malformed")
	ErrConfigSchema        = errors.New("config does not match schema")
	ErrSourceEmailRequired = errors.New("missing source email address to send emails from")
	ErrSourceEmailInvalid  = errors.New("source email address is invalid")
)

var (
	inviteeEmailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	senderEmailPattern  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,7}$`)
)

// Role is a QuickSight user role.
type Role string

const (
	RoleAuthor           Role = "AUTHOR"
	RoleAdmin            Role = "ADMIN"
	RoleReader           Role = "READER"
	RoleRestrictedAuthor Role = "RESTRICTED_AUTHOR"
	RoleRestrictedReader Role = "RESTRICTED_READER"

	DefaultRole = RoleAdmin
)

// Roles lists every role accepted in the invitee file.
func Roles() []Role {
	return []Role{RoleAuthor, RoleAdmin, RoleReader, RoleRestrictedAuthor, RoleRestrictedReader}
}

func (r Role) Valid() bool {
	for _, role := range Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// Invitee is one entry of the invitee file.
type Invitee struct {
	EmailAddress   string `yaml:"email_address" json:"email_address"`
	Username       string `yaml:"username,omitempty" json:"username,omitempty"`
	QuickSightRole Role   `yaml:"quicksight_role,omitempty" json:"quicksight_role,omitempty"`
}

func (i Invitee) Validate() error {
	if i.EmailAddress == "" {
		return fmt.Errorf("email_address is required")
	}
	if !inviteeEmailPattern.MatchString(i.EmailAddress) {
		return fmt.Errorf("email_address %q is not a valid email", i.EmailAddress)
	}
	if i.QuickSightRole != "" && !i.QuickSightRole.Valid() {
		return fmt.Errorf("quicksight_role %q is not one of %v", i.QuickSightRole, Roles())
	}
	return nil
}

// ResolvedUsername falls back to the email address when no username is set.
func (i Invitee) ResolvedUsername() string {
	if name := strings.TrimSpace(i.Username); name != "" {
		return name
	}
	return i.EmailAddress
}

func (i Invitee) ResolvedRole() Role {
	if i.QuickSightRole == "" {
		return DefaultRole
	}
	return i.QuickSightRole
}

// ValidSenderAddress reports whether s can be used as an SES sender address.
func ValidSenderAddress(s string) bool {
	return senderEmailPattern.MatchString(s)
}

// LoadEnv loads dir/.env when present.
func LoadEnv(dir string) error {
	envPath := filepath.Join(dir, ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

// LoadInvitees reads and validates the invitee file. The file is a JSON array
// unless it has a .yaml or .yml extension.
func LoadInvitees(path string) ([]Invitee, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	invitees, err := decodeInvitees(absPath, data)
	if err != nil {
		return nil, err
	}

	for idx, invitee := range invitees {
		if err := invitee.Validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrConfigSchema, idx, err)
		}
	}

	return invitees, nil
}

func decodeInvitees(path string, data []byte) ([]Invitee, error) {
	var invitees []Invitee

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &invitees); err != nil {
			var typeErr *yaml.TypeError
			if errors.As(err, &typeErr) {
				return nil, fmt.Errorf("%w: %v", ErrConfigSchema, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrConfigMalformed, err)
		}
	default:
		if err := json.Unmarshal(data, &invitees); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				return nil, fmt.Errorf("%w: %v", ErrConfigSchema, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrConfigMalformed, err)
		}
	}

	return invitees, nil
}
