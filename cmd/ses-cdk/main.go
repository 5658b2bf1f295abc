// cmd/ses-cdk/main.go
package main

import (
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/quicksight-invitations/internal/config"
	"github.com/codr1/quicksight-invitations/internal/infra"
)

const stackName = "SesCdkStack"

func setupLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// stdout carries the cloud assembly handshake for the CDK CLI.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func main() {
	setupLogger()

	if err := config.LoadEnv("."); err != nil {
		log.Fatal().Err(err).Msg("Failed to load environment")
	}

	defer jsii.Close()

	app := awscdk.NewApp(nil)

	sender := infra.SenderEmailFromContext(app)
	_, err := infra.NewSesStack(app, stackName, &infra.SesStackProps{
		StackProps: awscdk.StackProps{
			Env: infra.EnvFromDefaults(),
		},
		SenderEmail: sender,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("context_key", infra.SenderEmailContextKey).
			Str("env", infra.SenderEmailEnv).
			Msg("Set the invitation sender email before deploying")
		jsii.Close()
		os.Exit(1)
	}

	log.Info().Str("stack", stackName).Str("sender", sender).Msg("Synthesizing SES identity stack")
	app.Synth(nil)
}
