package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
)

// EmailClient handles email operations
type EmailClient struct {
	smtpHost     string
	smtpPort     string
	smtpUsername string
	smtpPassword string
	fromEmail    string
	fromName     string
}

// NewEmailClient creates a new email client
func NewEmailClient(smtpHost, smtpPort, username, password, fromEmail, fromName string) *EmailClient {
	return &EmailClient{
		smtpHost:     smtpHost,
		smtpPort:     smtpPort,
		smtpUsername: username,
		smtpPassword: password,
		fromEmail:    fromEmail,
		fromName:     fromName,
	}
}

// EmailData represents data for email templates
type EmailData struct {
	RecipientName string
	Body          string
	Link          string
	Data          map[string]interface{}
}

// SendEmail sends a plain text email
func (e *EmailClient) SendEmail(to, subject, body string) error {
	from := fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", from, to, subject, body))

	auth := smtp.PlainAuth("", e.smtpUsername, e.smtpPassword, e.smtpHost)
	addr := fmt.Sprintf("%s:%s", e.smtpHost, e.smtpPort)

	if err := smtp.SendMail(addr, auth, e.fromEmail, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendHTMLEmail sends an HTML email
func (e *EmailClient) SendHTMLEmail(to, subject, htmlBody string) error {
	from := fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n", from, to, subject, htmlBody))

	auth := smtp.PlainAuth("", e.smtpUsername, e.smtpPassword, e.smtpHost)
	addr := fmt.Sprintf("%s:%s", e.smtpHost, e.smtpPort)

	if err := smtp.SendMail(addr, auth, e.fromEmail, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send HTML email: %w", err)
	}
	return nil
}

// Email templates
const (
	verificationEmailTemplate = `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #2196F3; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .button { background-color: #2196F3; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; }
        .footer { padding: 20px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Verify Your Work Email</h1>
        </div>
        <div class="content">
            <p>Hi,</p>
            <p>Click the button below to confirm this email and join your company's carpool group. The link expires in 24 hours.</p>
            <p style="text-align: center; margin: 25px 0;">
                <a class="button" href="{{.Link}}">Verify Email</a>
            </p>
            <p>If you didn't request this, you can ignore this message.</p>
        </div>
        <div class="footer">
            <p>&copy; 2026 TransitLab. All rights reserved.</p>
        </div>
    </div>
</body>
</html>
`

	walletNoticeTemplate = `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #FF9800; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .footer { padding: 20px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Wallet Notice</h1>
        </div>
        <div class="content">
            <p>Hi,</p>
            <p>{{.Body}}</p>
        </div>
        <div class="footer">
            <p>&copy; 2026 TransitLab. All rights reserved.</p>
        </div>
    </div>
</body>
</html>
`

	rideReceiptTemplate = `
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #4CAF50; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background-color: #f9f9f9; }
        .receipt { background-color: white; padding: 15px; margin: 15px 0; border-radius: 5px; }
        .footer { padding: 20px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Ride Receipt</h1>
        </div>
        <div class="content">
            <p>Hi,</p>
            <p>Thanks for riding with us. Here's your receipt:</p>
            <div class="receipt">
                {{range $key, $value := .Data}}
                <div style="display: flex; justify-content: space-between; padding: 5px 0;">
                    <span>{{$key}}</span>
                    <span>{{$value}}</span>
                </div>
                {{end}}
            </div>
        </div>
        <div class="footer">
            <p>&copy; 2026 TransitLab. All rights reserved.</p>
        </div>
    </div>
</body>
</html>
`
)

// SendVerificationEmail sends the carpool email verification link
func (e *EmailClient) SendVerificationEmail(to, link string) error {
	tmpl, err := template.New("verification").Parse(verificationEmailTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, EmailData{Link: link}); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return e.SendHTMLEmail(to, "Verify your work email", body.String())
}

// SendWalletNotice sends a wallet lifecycle message (suspension, limit
// warning, auto-refill disabled)
func (e *EmailClient) SendWalletNotice(to, subject, message string) error {
	tmpl, err := template.New("wallet").Parse(walletNoticeTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, EmailData{Body: message}); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return e.SendHTMLEmail(to, subject, body.String())
}

// SendRideReceiptEmail sends the settled fare breakdown after a ride
func (e *EmailClient) SendRideReceiptEmail(to string, receiptDetails map[string]interface{}) error {
	tmpl, err := template.New("receipt").Parse(rideReceiptTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, EmailData{Data: receiptDetails}); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return e.SendHTMLEmail(to, "Your Ride Receipt", body.String())
}
