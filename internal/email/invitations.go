package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/quicksight-invitations/internal/config"
	"github.com/codr1/quicksight-invitations/internal/quicksight"
	"github.com/codr1/quicksight-invitations/internal/ratelimit"
)

const invitationEmailTimeout = 10 * time.Second

// InvitationOptions controls a batch of invitation emails.
type InvitationOptions struct {
	SourceEmail string
	Project     string
	Concurrency int
	Timeout     time.Duration
	Limiter     *ratelimit.Limiter // Paces sends; nil sends unpaced
}

// SendInvitations emails every user their invitation link from the source
// address. The first failure cancels outstanding sends and is returned.
func SendInvitations(ctx context.Context, client EmailSender, users []quicksight.InvitedUser, opts InvitationOptions) error {
	if client == nil {
		return fmt.Errorf("email sender is required")
	}
	if err := config.ValidateSourceEmail(opts.SourceEmail); err != nil {
		log.Error().Err(err).Msg("Source email address is invalid, please check")
		return err
	}
	source := strings.TrimSpace(opts.SourceEmail)

	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = invitationEmailTimeout
	}

	log.Debug().Str("project", opts.Project).Msg("Sending QuickSight invitations")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, user := range users {
		user := user // per-iteration copy (go directive < 1.22)
		g.Go(func() error {
			if err := opts.Limiter.Wait(gctx); err != nil {
				return err
			}
			message := BuildInvitationEmail(InvitationDetails{
				Username:      user.UserName,
				Email:         user.Email,
				InvitationURL: user.InvitationURL,
				Project:       opts.Project,
			})

			sendCtx, cancel := newEmailContext(gctx, timeout)
			defer cancel()
			if err := client.SendFrom(sendCtx, user.Email, message.Subject, message.Body, source); err != nil {
				return fmt.Errorf("send invitation to %s: %w", user.Email, err)
			}
			log.Info().Str("recipient", user.Email).Msg("Successfully sent invitation email")
			return nil
		})
	}

	return g.Wait()
}
