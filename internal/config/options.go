package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultConfigFile        = "config.json"
	DefaultAWSProfile        = "default"
	DefaultOutputFile        = "invitation-links-output.json"
	DefaultQuickSightProject = "qs"
)

// StaticCredentials are optional long-lived keys loaded from the environment.
type StaticCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

func (c StaticCredentials) Set() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Options configures a register-quicksight-users run.
type Options struct {
	ConfigFile        string
	AWSProfile        string
	Verbose           bool
	OutputFile        string
	SendEmail         bool
	QuickSightProject string
	SourceEmail       string
	Concurrency       int
	SendRate          float64 // SES sends per second; 0 disables pacing

	Credentials StaticCredentials // Loaded from environment
}

// DefaultOptions seeds options from the environment.
func DefaultOptions() Options {
	return Options{
		ConfigFile:        DefaultConfigFile,
		AWSProfile:        GetEnv("AWS_PROFILE", DefaultAWSProfile),
		OutputFile:        DefaultOutputFile,
		QuickSightProject: GetEnv("QUICKSIGHT_PROJECT", DefaultQuickSightProject),
		SourceEmail:       GetEnv("INVITATION_SOURCE_EMAIL", ""),
		Concurrency:       GetEnvAsInt("INVITATION_CONCURRENCY", 1),
		SendRate:          GetEnvAsFloat("INVITATION_SEND_RATE", 1),
		Credentials: StaticCredentials{
			AccessKeyID:     os.Getenv("INVITATION_AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("INVITATION_AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("INVITATION_AWS_SESSION_TOKEN"),
		},
	}
}

func (o *Options) Validate() error {
	if strings.TrimSpace(o.ConfigFile) == "" {
		return fmt.Errorf("config file is required")
	}
	if strings.TrimSpace(o.OutputFile) == "" {
		return fmt.Errorf("output file is required")
	}
	if o.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", o.Concurrency)
	}
	if o.SendRate < 0 {
		return fmt.Errorf("send rate must not be negative, got %g", o.SendRate)
	}
	if o.SendEmail {
		return ValidateSourceEmail(o.SourceEmail)
	}
	return nil
}

// ValidateSourceEmail checks the address invitations are sent from.
func ValidateSourceEmail(source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return ErrSourceEmailRequired
	}
	if !ValidSenderAddress(source) {
		return fmt.Errorf("%w: %q", ErrSourceEmailInvalid, source)
	}
	return nil
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func GetEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func GetEnvAsFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
