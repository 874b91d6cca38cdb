package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/finmail/backend/src/config"
	"github.com/username/finmail/backend/src/logger"
)

const mailgunSendTimeout = 20 * time.Second

// EmailService covers the three outbound mails the app sends: account
// verification, password reset, and the digest telling a user how many
// freshly ingested transactions were extracted with low confidence.
type EmailService interface {
	SendVerificationEmail(toEmail, username, token string) error
	SendPasswordResetEmail(toEmail, username, token string) error
	SendReviewDigestEmail(toEmail, username string, pendingReview int) error
}

// NewEmailService picks the provider from config. Incomplete provider
// configuration falls back to the logging mock rather than failing startup.
func NewEmailService() EmailService {
	if config.Cfg == nil {
		slog.Error("Configuration (config.Cfg) is nil. Email service will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete, falling back to MockEmailService")
			return newMockEmailService()
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:                       mg,
			senderEmail:              config.Cfg.SenderEmail,
			senderName:               config.Cfg.SenderName,
			verificationEmailBaseURL: config.Cfg.VerificationEmailBaseURL,
			passwordResetBaseURL:     config.Cfg.PasswordResetBaseURL,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete, falling back to MockEmailService")
			return newMockEmailService()
		}
		return &SMTPEmailService{
			server:                   config.Cfg.SMTPServer,
			port:                     config.Cfg.SMTPPort,
			user:                     config.Cfg.SMTPUser,
			password:                 config.Cfg.SMTPPassword,
			senderEmail:              config.Cfg.SenderEmail,
			verificationEmailBaseURL: config.Cfg.VerificationEmailBaseURL,
			passwordResetBaseURL:     config.Cfg.PasswordResetBaseURL,
		}
	default:
		logger.L.Info("Defaulting to MockEmailService")
		return newMockEmailService()
	}
}

type SMTPEmailService struct {
	server                   string
	port                     int
	user                     string
	password                 string
	senderEmail              string
	verificationEmailBaseURL string
	passwordResetBaseURL     string
}

func (s *SMTPEmailService) send(toEmail, subject, body string) error {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n",
		s.senderEmail, toEmail, subject)
	message := headers + "\r\n" + body
	auth := smtp.PlainAuth("", s.user, s.password, s.server)
	addr := fmt.Sprintf("%s:%d", s.server, s.port)
	if err := smtp.SendMail(addr, auth, s.senderEmail, []string{toEmail}, []byte(message)); err != nil {
		logger.L.Error("Failed to send email via SMTP", "error", err, "to", toEmail, "subject", subject)
		return fmt.Errorf("smtp send failed: %w", err)
	}
	logger.L.Info("Email sent via SMTP", "to", toEmail, "subject", subject)
	return nil
}

func (s *SMTPEmailService) SendVerificationEmail(toEmail, username, token string) error {
	verificationLink := fmt.Sprintf("%s?token=%s", s.verificationEmailBaseURL, token)
	body := fmt.Sprintf(`Hi %s,

Welcome to FinMail! Please verify your email address by opening the link below:
%s

If you did not create an account using this email address, please ignore this email.

Thanks,
The FinMail Team`, username, verificationLink)
	return s.send(toEmail, "Verify Your Email Address for FinMail", body)
}

func (s *SMTPEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	resetLink := fmt.Sprintf("%s?token=%s", s.passwordResetBaseURL, token)
	body := fmt.Sprintf(`Hi %s,

You requested a password reset for your FinMail account.
Please open the following link to reset your password:
%s

If you did not request a password reset, please ignore this email. This link will expire in %s.

Thanks,
The FinMail Team`, username, resetLink, config.Cfg.PasswordResetTokenExpiry.String())
	return s.send(toEmail, "Password Reset Request for FinMail", body)
}

func (s *SMTPEmailService) SendReviewDigestEmail(toEmail, username string, pendingReview int) error {
	body := fmt.Sprintf(`Hi %s,

%d recently imported transaction(s) were extracted with low confidence and need a quick review in your FinMail dashboard.

Thanks,
The FinMail Team`, username, pendingReview)
	return s.send(toEmail, "Transactions waiting for your review on FinMail", body)
}

type MailgunEmailService struct {
	mg                       mailgun.Mailgun
	senderEmail              string
	senderName               string
	verificationEmailBaseURL string
	passwordResetBaseURL     string
}

func (s *MailgunEmailService) send(message *mailgun.Message, toEmail string) error {
	ctx, cancel := context.WithTimeout(context.Background(), mailgunSendTimeout)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send email via Mailgun", "error", err, "to", toEmail, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.L.Info("Email sent via Mailgun", "to", toEmail, "id", id, "mailgunResp", resp)
	return nil
}

func (s *MailgunEmailService) from() string {
	return fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
}

func (s *MailgunEmailService) SendVerificationEmail(toEmail, username, token string) error {
	verificationLink := fmt.Sprintf("%s?token=%s", s.verificationEmailBaseURL, token)

	plainTextBody := fmt.Sprintf(`Hi %s,

Welcome to FinMail! Please verify your email address by clicking the link below:
%s

If you did not create an account using this email address, please ignore this email.

Thanks,
The FinMail Team`, username, verificationLink)

	htmlBody := fmt.Sprintf(`
	<html>
		<body style="font-family: Arial, sans-serif; line-height: 1.6;">
			<p>Hi %s,</p>
			<p>Welcome to FinMail! Please verify your email address by clicking the link below:</p>
			<p><a href="%s" target="_blank" style="color: #1a73e8; text-decoration: none; font-weight: bold; padding: 10px 15px; border: 1px solid #1a73e8; border-radius: 4px; background-color: #e8f0fe;">Verify Email Address</a></p>
			<p>If the button above doesn't work, you can copy and paste the following URL into your browser's address bar:</p>
			<p><a href="%s" target="_blank" style="color: #1a73e8;">%s</a></p>
			<p>If you did not create an account using this email address, please ignore this email.</p>
			<p>Thanks,<br>The FinMail Team</p>
		</body>
	</html>`, username, verificationLink, verificationLink, verificationLink)

	message := s.mg.NewMessage(s.from(), "Verify Your Email Address for FinMail", plainTextBody, toEmail)
	message.SetHtml(htmlBody)
	message.AddTag("email-verification")
	return s.send(message, toEmail)
}

func (s *MailgunEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	resetLink := fmt.Sprintf("%s?token=%s", s.passwordResetBaseURL, token)
	expiry := config.Cfg.PasswordResetTokenExpiry.String()

	plainTextBody := fmt.Sprintf(`Hi %s,

You requested a password reset for your FinMail account.
Please click the following link to reset your password:
%s

If you did not request a password reset, please ignore this email. This link will expire in %s.

Thanks,
The FinMail Team`, username, resetLink, expiry)

	htmlBody := fmt.Sprintf(`
	<html>
		<body style="font-family: Arial, sans-serif; line-height: 1.6;">
			<p>Hi %s,</p>
			<p>You requested a password reset for your FinMail account. Please click the button below to reset your password:</p>
			<p><a href="%s" target="_blank" style="color: #1a73e8; text-decoration: none; font-weight: bold; padding: 10px 15px; border: 1px solid #1a73e8; border-radius: 4px; background-color: #e8f0fe;">Reset Password</a></p>
			<p>If the button above doesn't work, copy and paste this link into your browser:</p>
			<p><a href="%s" target="_blank" style="color: #1a73e8;">%s</a></p>
			<p>If you did not request this reset, please ignore this email. This link will expire in %s.</p>
			<p>Thanks,<br>The FinMail Team</p>
		</body>
	</html>`, username, resetLink, resetLink, resetLink, expiry)

	message := s.mg.NewMessage(s.from(), "Password Reset Request for FinMail", plainTextBody, toEmail)
	message.SetHtml(htmlBody)
	message.AddTag("password-reset")
	return s.send(message, toEmail)
}

func (s *MailgunEmailService) SendReviewDigestEmail(toEmail, username string, pendingReview int) error {
	plainTextBody := fmt.Sprintf(`Hi %s,

%d recently imported transaction(s) were extracted with low confidence and need a quick review in your FinMail dashboard.

Thanks,
The FinMail Team`, username, pendingReview)

	message := s.mg.NewMessage(s.from(), "Transactions waiting for your review on FinMail", plainTextBody, toEmail)
	message.AddTag("review-digest")
	return s.send(message, toEmail)
}

type MockEmailService struct {
	VerificationEmailBaseURL string
	PasswordResetBaseURL     string
}

func newMockEmailService() *MockEmailService {
	return &MockEmailService{
		VerificationEmailBaseURL: config.Cfg.VerificationEmailBaseURL,
		PasswordResetBaseURL:     config.Cfg.PasswordResetBaseURL,
	}
}

func (m *MockEmailService) SendVerificationEmail(toEmail, username, token string) error {
	verificationLink := fmt.Sprintf("%s?token=%s", m.VerificationEmailBaseURL, token)
	logger.L.Info("MockEmailService: would send verification email",
		"to", toEmail, "username", username, "verificationLink", verificationLink)
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	resetLink := fmt.Sprintf("%s?token=%s", m.PasswordResetBaseURL, token)
	expiry := "unknown"
	if config.Cfg != nil {
		expiry = config.Cfg.PasswordResetTokenExpiry.String()
	}
	logger.L.Info("MockEmailService: would send password reset email",
		"to", toEmail, "username", username, "resetLink", resetLink, "expiresIn", expiry)
	return nil
}

func (m *MockEmailService) SendReviewDigestEmail(toEmail, username string, pendingReview int) error {
	logger.L.Info("MockEmailService: would send review digest email",
		"to", toEmail, "username", username, "pendingReview", pendingReview)
	return nil
}
