package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/diagnoseapp/accountsec/internal/models"
)

// AWSSESEmailService sends account security emails using AWS SES.
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendActivationLink mails the registration confirmation link.
func (s *AWSSESEmailService) SendActivationLink(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := fmt.Sprintf("%s/auth/confirm/%s", s.baseURL, token)

	textBody := fmt.Sprintf(`Confirm Your Account

Thank you for creating an account. To activate it, open the link below:

%s

This link will expire on %s.

Didn't create this account?
If you didn't sign up, you can ignore this email. The account will stay inactive.

This is an automated message. Please do not reply to this email.
`, link, expiresAt.Format("02.01.2006 15:04 MST"))

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body>
    <h1>Confirm Your Account</h1>
    <p>Thank you for creating an account. To activate it, click the link below:</p>
    <p><a href="%s">Confirm account</a></p>
    <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
    <p><strong>Security notice:</strong> this link will expire on %s.</p>
    <p>If you didn't sign up, you can ignore this email. The account will stay inactive.</p>
    <p>This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`, link, link, expiresAt.Format("02.01.2006 15:04 MST"))

	return s.send(ctx, email, "Confirm your account", htmlBody, textBody)
}

// SendPasswordReset mails the password reset link.
func (s *AWSSESEmailService) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)

	textBody := fmt.Sprintf(`Reset Your Password

A password reset was requested for your account. To choose a new password, open the link below:

%s

This link will expire on %s and can be used once.

Didn't request this?
If you didn't ask for a password reset, you can ignore this email. Your password will not change.

This is an automated message. Please do not reply to this email.
`, link, expiresAt.Format("02.01.2006 15:04 MST"))

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body>
    <h1>Reset Your Password</h1>
    <p>A password reset was requested for your account. To choose a new password, click the link below:</p>
    <p><a href="%s">Reset password</a></p>
    <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
    <p><strong>Security notice:</strong> this link will expire on %s and can be used once.</p>
    <p>If you didn't ask for a password reset, you can ignore this email. Your password will not change.</p>
    <p>This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`, link, link, expiresAt.Format("02.01.2006 15:04 MST"))

	return s.send(ctx, email, "Reset your password", htmlBody, textBody)
}

// SendPasswordChanged mails a notice that the account password was changed.
func (s *AWSSESEmailService) SendPasswordChanged(ctx context.Context, email string) error {
	textBody := `Your Password Was Changed

The password for your account was just changed. All active sessions have been signed out.

If this was you, no action is needed.

If this wasn't you, use the password recovery form immediately or contact support.

This is an automated message. Please do not reply to this email.
`

	htmlBody := `
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body>
    <h1>Your Password Was Changed</h1>
    <p>The password for your account was just changed. All active sessions have been signed out.</p>
    <p>If this was you, no action is needed.</p>
    <p><strong>If this wasn't you</strong>, use the password recovery form immediately or contact support.</p>
    <p>This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`

	return s.send(ctx, email, "Your password was changed", htmlBody, textBody)
}

// SendAccountBlocked mails a notice that accounts under the email were
// blocked after repeated verification failures.
func (s *AWSSESEmailService) SendAccountBlocked(ctx context.Context, email string, until time.Time) error {
	var untilText string
	if models.IsPermanentBlock(until) {
		untilText = "permanently, until support restores access"
	} else {
		untilText = fmt.Sprintf("until %s", until.Format("02.01.2006"))
	}

	textBody := fmt.Sprintf(`Your Account Was Blocked

Too many failed verification attempts were made for your account, so it has been blocked %s.

If this was you, please contact support to restore access.

If this wasn't you, someone may be trying to take over your account. Contact support as soon as possible.

This is an automated message. Please do not reply to this email.
`, untilText)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body>
    <h1>Your Account Was Blocked</h1>
    <p>Too many failed verification attempts were made for your account, so it has been blocked %s.</p>
    <p>If this was you, please contact support to restore access.</p>
    <p><strong>If this wasn't you</strong>, someone may be trying to take over your account. Contact support as soon as possible.</p>
    <p>This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`, untilText)

	return s.send(ctx, email, "Your account was blocked", htmlBody, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, email, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("subject", subject),
		slog.String("message_id", *result.MessageId))

	return nil
}
