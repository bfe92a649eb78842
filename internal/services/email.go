package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/huangang/soundvault/pkg/logger"
)

const verifyEmailSubject = "Please verify your email address"

type EmailService struct {
	configSvc *SystemConfigService
	send      func(cfg *EmailConfig, to []string, subject, body string) error
}

type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	AppURL   string
}

func NewEmailService(db *gorm.DB) *EmailService {
	s := &EmailService{configSvc: NewSystemConfigService(db)}
	s.send = s.sendEmail
	return s
}

// GetConfig reads the email group of system configs.
func (s *EmailService) GetConfig() *EmailConfig {
	config := &EmailConfig{Port: 587}

	configs, err := s.configSvc.GetByGroup("email")
	if err != nil {
		logger.Warnf("[Email] Failed to load email config: %v", err)
		return config
	}

	for _, c := range configs {
		switch c.Key {
		case "email_enabled":
			config.Enabled = c.Value == "true"
		case "email_smtp_host":
			config.Host = c.Value
		case "email_smtp_port":
			if port, err := strconv.Atoi(c.Value); err == nil && port > 0 {
				config.Port = port
			}
		case "email_username":
			config.Username = c.Value
		case "email_password":
			config.Password = c.Value
		case "email_from":
			config.From = c.Value
		case "email_use_tls":
			config.UseTLS = c.Value == "true"
		case "email_app_url":
			config.AppURL = strings.TrimRight(c.Value, "/")
		}
	}

	return config
}

// Process delivers a mail task. It is the processor behind the mail queue and worker.
func (s *EmailService) Process(_ context.Context, task *MailTask) error {
	switch task.Type {
	case TaskTypeVerifyEmail:
		return s.SendVerifyEmail(task.Email, task.Name)
	default:
		logger.Warnf("[Email] Unknown mail task type %q dropped", task.Type)
		return nil
	}
}

// SendVerifyEmail asks a newly registered user to confirm its address.
// It does nothing while email delivery is disabled.
func (s *EmailService) SendVerifyEmail(to, name string) error {
	config := s.GetConfig()
	if !config.Enabled || config.Host == "" || to == "" {
		return nil
	}
	return s.send(config, []string{to}, verifyEmailSubject, buildVerifyEmailBody(config.AppURL, name))
}

func buildVerifyEmailBody(appURL, name string) string {
	var sb strings.Builder

	greeting := "Hello"
	if name = strings.TrimSpace(name); name != "" {
		greeting += " " + html.EscapeString(name)
	}

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<p>%s,</p>", greeting))
	sb.WriteString("<p>Thanks for signing up to SoundVault. Please verify your email address to finish setting up your account.</p>")
	if appURL != "" {
		sb.WriteString(fmt.Sprintf("<p><a href=\"%s\">Open SoundVault</a></p>", html.EscapeString(appURL)))
	}
	sb.WriteString("<hr><p style=\"color: #888; font-size: 12px;\">If you did not create this account you can ignore this email.</p>")
	sb.WriteString("</body></html>")

	return sb.String()
}

func (s *EmailService) sendEmail(config *EmailConfig, to []string, subject, body string) error {
	from := config.From
	if from == "" {
		from = config.Username
	}

	headers := [][2]string{
		{"From", from},
		{"To", strings.Join(to, ",")},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var message strings.Builder
	for _, h := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	var auth smtp.Auth
	if config.Username != "" && config.Password != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	var err error
	if config.UseTLS {
		err = s.sendEmailTLS(config, addr, auth, from, to, message.String())
	} else {
		err = smtp.SendMail(addr, auth, from, to, []byte(message.String()))
	}

	if err != nil {
		logger.Warnf("[Email] Failed to send email: %v", err)
		return err
	}

	logger.Infof("[Email] Sent %q to %v", subject, to)
	return nil
}

func (s *EmailService) sendEmailTLS(config *EmailConfig, addr string, auth smtp.Auth, from string, to []string, message string) error {
	tlsConfig := &tls.Config{
		ServerName: config.Host,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, config.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}

	if _, err = w.Write([]byte(message)); err != nil {
		return err
	}

	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
