package email

import (
	"fmt"
	"net/smtp"
	"os"
)

// Config carries the SMTP credentials. It is assembled once at startup and
// passed to whichever module sends mail, instead of each send re-reading
// process environment.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

// ConfigFromEnv builds the mail configuration from SMTP_* variables.
func ConfigFromEnv() Config {
	return Config{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     os.Getenv("SMTP_PORT"),
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	}
}

type EmailService struct {
	cfg Config
}

func NewEmailService(cfg Config) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendVerificationEmail mails the 6-digit code to a freshly registered user.
// The code expires 15 minutes after issue.
func (e *EmailService) SendVerificationEmail(to, code string) error {
	subject := "Potvrdite Vašu Email Adresu - Studio LeFlow"
	body := fmt.Sprintf(`Dobrodošli u Studio LeFlow zajednicu!

Hvala što ste se registrovali. Da biste završili registraciju, unesite sledeći verifikacioni kod:

    %s

Ovaj kod ističe za 15 minuta.

Ako niste kreirali nalog, ignorišite ovaj email.

---
Studio LeFlow - Profesionalna Muzička Produkcija
`, code)

	return e.send(to, subject, body)
}

// SendContactNotice forwards a contact-form submission to the studio inbox.
func (e *EmailService) SendContactNotice(to, service, name, fromEmail, phone, preferredDate, message string) error {
	subject := "Novi upit - " + service
	body := fmt.Sprintf(`Novi upit sa Studio LeFlow sajta

Usluga: %s
Ime: %s
Email: %s
Telefon: %s
`, service, name, fromEmail, phone)

	if preferredDate != "" {
		body += fmt.Sprintf("Željeni termin: %s\n", preferredDate)
	}

	body += fmt.Sprintf(`Poruka:
%s

---
Poslato automatski sa Studio LeFlow sajta
`, message)

	return e.send(to, subject, body)
}

func (e *EmailService) send(to, subject, body string) error {
	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", e.cfg.From, to, subject, body)

	auth := smtp.PlainAuth("", e.cfg.User, e.cfg.Password, e.cfg.Host)
	addr := fmt.Sprintf("%s:%s", e.cfg.Host, e.cfg.Port)

	err := smtp.SendMail(addr, auth, e.cfg.From, []string{to}, []byte(message))
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
