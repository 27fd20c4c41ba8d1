package email

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
)

// Service builds and sends every workflow email. All user-supplied values are
// HTML-escaped before being interpolated into a message body.
type Service struct {
	sender      Sender
	frontendURL string
	logger      zerolog.Logger
}

func NewService(sender Sender, frontendURL string, logger zerolog.Logger) *Service {
	return &Service{
		sender:      sender,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

func (s *Service) send(ctx context.Context, msg Message) error {
	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.Error().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("email delivery failed")
		return err
	}
	return nil
}

func layout(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: system-ui, -apple-system, sans-serif; line-height: 1.6; color: #1f2937; }
.container { max-width: 600px; margin: 0 auto; padding: 40px 20px; }
.header { color: #1a365d; margin-bottom: 24px; }
.button { display: inline-block; background-color: #1a365d; color: white; padding: 14px 28px; text-decoration: none; border-radius: 8px; margin: 24px 0; }
.box { background-color: #f9fafb; border: 1px solid #e5e7eb; padding: 16px; border-radius: 8px; margin: 16px 0; }
.warning { background-color: #fef3c7; border: 1px solid #f59e0b; padding: 16px; border-radius: 8px; margin: 16px 0; }
.success { background-color: #d1fae5; border: 1px solid #22c55e; padding: 16px; border-radius: 8px; margin: 16px 0; }
.footer { margin-top: 40px; padding-top: 20px; border-top: 1px solid #e5e7eb; color: #6b7280; font-size: 14px; }
</style>
</head>
<body>
<div class="container">
<h1 class="header">%s</h1>
%s
<div class="footer"><p>EK-SMS - School Management System</p></div>
</div>
</body>
</html>`, title, body)
}

func esc(v string) string { return html.EscapeString(v) }

func (s *Service) ApplicantVerification(ctx context.Context, to, applicantName, schoolName, token string) error {
	url := s.frontendURL + "/register/verify?token=" + token
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Thank you for submitting a registration application for <strong>%s</strong> on EK-SMS.</p>
<p>Please verify your email address by clicking the button below:</p>
<a href="%s" class="button">Verify Email</a>
<p>Or copy and paste this link into your browser:</p>
<p style="word-break: break-all; color: #3b82f6;">%s</p>
<p><strong>This link expires in 72 hours.</strong></p>
<p>If you didn't submit this application, you can safely ignore this email.</p>`,
		esc(applicantName), esc(schoolName), url, url)
	return s.send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("Verify your EK-SMS application for %s", esc(schoolName)),
		HTML:    layout("Verify Your Email", body),
	})
}

func (s *Service) PrincipalConfirmation(ctx context.Context, to, principalName, schoolName, applicantName, applicantRole, city, country, designatedAdmin, token string) error {
	url := s.frontendURL + "/register/confirm-principal?token=" + token
	body := fmt.Sprintf(`<p>Dear %s,</p>
<p><strong>%s</strong> has submitted a registration application for <strong>%s</strong> on EK-SMS, a school management platform.</p>
<p>As the Principal/Head Teacher, your confirmation is required to proceed.</p>
<div class="box">
<p><strong>Application Summary:</strong></p>
<ul>
<li><strong>School:</strong> %s</li>
<li><strong>Location:</strong> %s, %s</li>
<li><strong>Submitted by:</strong> %s (%s)</li>
<li><strong>Designated Admin:</strong> %s</li>
</ul>
</div>
<p>If you authorize this registration, please click below:</p>
<a href="%s" class="button">Confirm Application</a>
<p>Or copy and paste this link into your browser:</p>
<p style="word-break: break-all; color: #3b82f6;">%s</p>
<p><strong>This link expires in 72 hours.</strong></p>
<p>If you did not authorize this application or have concerns, please ignore this email or contact us at support@eksms.dev.</p>`,
		esc(principalName), esc(applicantName), esc(schoolName), esc(schoolName),
		esc(city), esc(country), esc(applicantName), esc(applicantRole),
		esc(designatedAdmin), url, url)
	return s.send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("Please confirm EK-SMS registration for %s", esc(schoolName)),
		HTML:    layout("Principal Confirmation Required", body),
	})
}

// VerificationReminder covers both the applicant and principal paths; the
// link target differs per token type.
func (s *Service) VerificationReminder(ctx context.Context, to, recipientName, schoolName, path, token string, hoursRemaining int) error {
	url := s.frontendURL + path + "?token=" + token
	body := fmt.Sprintf(`<p>Hello %s,</p>
<div class="warning"><strong>Your verification link expires in %d hours!</strong></div>
<p>You have a pending registration application for <strong>%s</strong> that still needs confirmation.</p>
<p>Please verify now to continue with the application:</p>
<a href="%s" class="button">Verify Now</a>
<p>If you no longer wish to register, you can ignore this email.</p>`,
		esc(recipientName), hoursRemaining, esc(schoolName), url)
	return s.send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("Reminder: Verify your EK-SMS application for %s", esc(schoolName)),
		HTML:    layout("Reminder: Verify Your Email", body),
	})
}

func (s *Service) ApplicationExpired(ctx context.Context, to, applicantName, schoolName string) error {
	url := s.frontendURL + "/register"
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your registration application for <strong>%s</strong> has expired because it was not verified within 72 hours.</p>
<p>If you still wish to register your school on EK-SMS, you can submit a new application:</p>
<a href="%s" class="button">Start New Application</a>`,
		esc(applicantName), esc(schoolName), url)
	return s.send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("Your EK-SMS application for %s has expired", esc(schoolName)),
		HTML:    layout("Application Expired", body),
	})
}

func (s *Service) ApplicationUnderReview(ctx context.Context, to, applicantName, schoolName string, applicationID common.UUID) error {
	url := s.frontendURL + "/register/status?id=" + applicationID.String()
	body := fmt.Sprintf(`<p>Hello %s,</p>
<div class="success"><strong>Great news!</strong> Your application for <strong>%s</strong> has been verified and is now under review by our team.</div>
<p>We will review your application and get back to you within 2-3 business days.</p>
<p>You can check your application status at any time:</p>
<a href="%s" class="button">Check Status</a>`,
		esc(applicantName), esc(schoolName), url)
	return s.send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("Your EK-SMS application for %s is under review", esc(schoolName)),
		HTML:    layout("Application Under Review", body),
	})
}

func (s *Service) MoreInfoRequested(ctx context.Context, to, applicantName, schoolName, adminMessage string, applicationID common.UUID) error {
	url := s.frontendURL + "/register/respond?id=" + applicationID.String()
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Thank you for your application to register <strong>%s</strong> on EK-SMS.</p>
<p>Our team needs some additional information to process your application:</p>
<div class="box">%s</div>
<p>Please reply to this email or click below to provide the requested information:</p>
<a href="%s" class="button">Respond to Request</a>
<p>If you have questions, please contact us at support@eksms.dev.</p>`,
		esc(applicantName), esc(schoolName), esc(adminMessage), url)
	return s.send(ctx, Message{
		To:      to,
		Subject: "Additional information needed for your EK-SMS application",
		HTML:    layout("Additional Information Needed", body),
	})
}

func (s *Service) ApplicationApproved(ctx context.Context, to, adminName, schoolName, adminEmail, tempPassword string) error {
	loginURL := s.frontendURL + "/login"
	body := fmt.Sprintf(`<div class="success"><strong>Congratulations!</strong> Your application for <strong>%s</strong> has been approved.</div>
<p>Dear %s,</p>
<p>Your school is now registered on EK-SMS. Here are your login credentials:</p>
<div class="box">
<p><strong>Login URL:</strong> <a href="%s">%s</a></p>
<p><strong>Email:</strong> %s</p>
<p><strong>Temporary Password:</strong> <code>%s</code></p>
</div>
<div class="warning"><strong>Important:</strong> You will be required to change your password on first login.</div>
<a href="%s" class="button">Log In Now</a>
<p>If you need help getting started, contact support@eksms.dev.</p>`,
		esc(schoolName), esc(adminName), loginURL, loginURL, esc(adminEmail), esc(tempPassword), loginURL)
	return s.send(ctx, Message{
		To:      to,
		Subject: "Welcome to EK-SMS! Your school is approved",
		HTML:    layout("Welcome to EK-SMS!", body),
	})
}

func (s *Service) ApplicationRejected(ctx context.Context, to, applicantName, schoolName, reason string) error {
	body := fmt.Sprintf(`<p>Hello %s,</p>
<p>Thank you for your interest in EK-SMS. After reviewing your application for <strong>%s</strong>, we're unable to approve it at this time.</p>
<div class="box"><p><strong>Reason:</strong></p><p>%s</p></div>
<p>If you believe this decision was made in error or if you can address the above concerns, you may submit a new application after 30 days.</p>
<p>If you have questions, please contact us at support@eksms.dev.</p>`,
		esc(applicantName), esc(schoolName), esc(reason))
	return s.send(ctx, Message{
		To:      to,
		Subject: "Update on your EK-SMS application",
		HTML:    layout("Update on Your EK-SMS Application", body),
	})
}
