// cmd/register-quicksight-users/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/quicksight-invitations/internal/awsutil"
	"github.com/codr1/quicksight-invitations/internal/config"
	"github.com/codr1/quicksight-invitations/internal/email"
	"github.com/codr1/quicksight-invitations/internal/quicksight"
	"github.com/codr1/quicksight-invitations/internal/ratelimit"
)

func parseFlags(args []string) (config.Options, error) {
	opts := config.DefaultOptions()

	fs := flag.NewFlagSet("register-quicksight-users", flag.ContinueOnError)
	fs.StringVar(&opts.ConfigFile, "f", opts.ConfigFile, "path to configuration file")
	fs.StringVar(&opts.ConfigFile, "config-file", opts.ConfigFile, "path to configuration file")
	fs.StringVar(&opts.AWSProfile, "p", opts.AWSProfile, "AWS profile to be used for the API calls")
	fs.StringVar(&opts.AWSProfile, "aws-profile", opts.AWSProfile, "AWS profile to be used for the API calls")
	fs.BoolVar(&opts.Verbose, "v", false, "debug log output")
	fs.BoolVar(&opts.Verbose, "verbose", false, "debug log output")
	fs.StringVar(&opts.OutputFile, "o", opts.OutputFile, "path to invitation links output file")
	fs.StringVar(&opts.OutputFile, "output-file", opts.OutputFile, "path to invitation links output file")
	fs.BoolVar(&opts.SendEmail, "s", false, "send email invite via SES")
	fs.BoolVar(&opts.SendEmail, "send-email", false, "send email invite via SES")
	fs.StringVar(&opts.QuickSightProject, "q", opts.QuickSightProject, "QuickSight project (account) name")
	fs.StringVar(&opts.QuickSightProject, "quicksight-project", opts.QuickSightProject, "QuickSight project (account) name")
	fs.StringVar(&opts.SourceEmail, "e", opts.SourceEmail, "source email address for sending out invitation emails")
	fs.StringVar(&opts.SourceEmail, "source-email", opts.SourceEmail, "source email address for sending out invitation emails")
	fs.Float64Var(&opts.SendRate, "send-rate", opts.SendRate, "maximum invitation emails sent per second (0 disables pacing)")
	fs.IntVar(&opts.Concurrency, "concurrency", opts.Concurrency, "number of invitation emails sent in parallel")

	if err := fs.Parse(args); err != nil {
		return config.Options{}, err
	}
	return opts, nil
}

func setupLogger(verbose bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

type registrar interface {
	RegisterUsers(ctx context.Context, invitees []config.Invitee) ([]quicksight.InvitedUser, error)
}

// deps holds the AWS-facing constructors used by run.
type deps struct {
	loadAWSConfig func(ctx context.Context, profile string, creds config.StaticCredentials) (aws.Config, error)
	newRegistrar  func(awsCfg aws.Config) registrar
	newSender     func(awsCfg aws.Config, source string, tags map[string]string) (email.EmailSender, error)
}

func defaultDeps() deps {
	return deps{
		loadAWSConfig: awsutil.LoadConfig,
		newRegistrar: func(awsCfg aws.Config) registrar {
			return quicksight.NewClient(awsCfg)
		},
		newSender: func(awsCfg aws.Config, source string, tags map[string]string) (email.EmailSender, error) {
			client, err := email.NewSESClient(awsCfg, source, tags)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
	}
}

func run(ctx context.Context, opts config.Options, d deps) error {
	invitees, err := config.LoadInvitees(opts.ConfigFile)
	if err != nil {
		return err
	}
	log.Debug().Int("invitees", len(invitees)).Msg("Configuration schema is valid")

	log.Info().Str("profile", opts.AWSProfile).Msg("AWS profile being used")
	awsCfg, err := d.loadAWSConfig(ctx, opts.AWSProfile, opts.Credentials)
	if err != nil {
		return err
	}

	users, err := d.newRegistrar(awsCfg).RegisterUsers(ctx, invitees)
	if err != nil {
		return err
	}

	if _, err := quicksight.WriteInvitations(opts.OutputFile, users); err != nil {
		return err
	}

	if !opts.SendEmail {
		return nil
	}

	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Msg("Sending QuickSight invitation email(s) to the registered users via SES")
	sender, err := d.newSender(awsCfg, opts.SourceEmail, map[string]string{"invitation_run": runID})
	if err != nil {
		return err
	}
	return email.SendInvitations(ctx, sender, users, email.InvitationOptions{
		SourceEmail: opts.SourceEmail,
		Project:     opts.QuickSightProject,
		Concurrency: opts.Concurrency,
		Limiter:     ratelimit.New(&ratelimit.Config{MaxPerSecond: opts.SendRate}),
	})
}

func main() {
	start := time.Now()

	if err := config.LoadEnv("."); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	setupLogger(opts.Verbose)

	if err := opts.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid options")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, defaultDeps()); err != nil {
		log.Error().Err(err).Msg("Registering QuickSight users failed")
		stop()
		os.Exit(1)
	}

	log.Info().Dur("elapsed", time.Since(start)).Msg("Total time elapsed")
}
