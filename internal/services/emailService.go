package services

import (
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

const (
	defaultSMTPHost = "smtp.gmail.com"
	defaultSMTPPort = 587
)

type EmailService interface {
	SendEmail(to, subject, msg string) error
}

type emailService struct {
	from     string
	host     string
	port     int
	username string
	password string
}

func NewEmailService() EmailService {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		host = defaultSMTPHost
	}
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil || port == 0 {
		port = defaultSMTPPort
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = os.Getenv("SMTP_USERNAME")
	}

	return &emailService{
		from:     from,
		host:     host,
		port:     port,
		username: os.Getenv("SMTP_USERNAME"),
		password: os.Getenv("SMTP_PASSWORD"),
	}
}

func (e *emailService) SendEmail(to, subject, msg string) error {
	m := gomail.NewMessage()

	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", msg)

	d := gomail.NewDialer(e.host, e.port, e.username, e.password)

	if err := d.DialAndSend(m); err != nil {
		log.Error().Err(err).Str("to", to).Str("subject", subject).Msg("Failed to send email")
		return err
	}
	log.Debug().Str("to", to).Str("subject", subject).Msg("Email sent")
	return nil
}

// sendEmailAsync delivers a notification email without holding up the request.
func sendEmailAsync(email EmailService, to, subject, body string) {
	if email == nil || to == "" {
		return
	}
	go func() {
		if err := email.SendEmail(to, subject, body); err != nil {
			log.Warn().Err(err).Str("to", to).Msg("Notification email not delivered")
		}
	}()
}
