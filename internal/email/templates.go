package email

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

const otpSubject = "MicroNest - Email Verification OTP"

type otpData struct {
	Name          string
	Code          string
	ExpiryMinutes int
}

var otpHTML = htmltemplate.Must(htmltemplate.New("otp_html").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Email Verification - MicroNest</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1>MicroNest</h1>
    <p>Hello {{.Name}}!</p>
    <p>To complete your registration, please use the verification code below:</p>
    <div style="background: #52B788; color: white; padding: 20px; text-align: center; font-size: 24px; font-weight: bold; letter-spacing: 5px;">{{.Code}}</div>
    <p>This code will expire in {{.ExpiryMinutes}} minutes.</p>
    <p>If you didn't request this verification, please ignore this email.</p>
    <p>Best regards,<br>The MicroNest Team</p>
  </div>
</body>
</html>`))

var otpText = texttemplate.Must(texttemplate.New("otp_text").Parse(`Email Verification - MicroNest

Hello {{.Name}}!

To complete your registration, please use the verification code below:

{{.Code}}

This code will expire in {{.ExpiryMinutes}} minutes.

If you didn't request this verification, please ignore this email.

Best regards,
The MicroNest Team
`))

// NewOTPMessage renders the verification email carrying code.
func NewOTPMessage(to, name, code string, ttl time.Duration) (*Message, error) {
	if strings.TrimSpace(name) == "" {
		name = "User"
	}
	data := otpData{Name: name, Code: code, ExpiryMinutes: int(ttl.Minutes())}

	var html, text bytes.Buffer
	if err := otpHTML.Execute(&html, data); err != nil {
		return nil, err
	}
	if err := otpText.Execute(&text, data); err != nil {
		return nil, err
	}

	return &Message{
		To:       to,
		Subject:  otpSubject,
		HTMLBody: html.String(),
		TextBody: text.String(),
	}, nil
}
