package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/mkellner/curator/internal/config"
	"github.com/mkellner/curator/internal/logger"
)

// Mailer sends auth-failure notifications over SMTP. Delivery is
// best-effort: failures are logged, never propagated, so a broken
// mail server cannot change cycle outcomes.
type Mailer struct {
	cfg      config.NotifyConfig
	log      *logger.Logger
	sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg config.NotifyConfig, log *logger.Logger) *Mailer {
	return &Mailer{
		cfg:      cfg,
		log:      log.WithComponent("notify"),
		sendFunc: smtp.SendMail,
	}
}

// Enabled reports whether a mail host is configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.SMTPHost != ""
}

// NotifyAuthFailure emails the operator that the catalog credentials
// were rejected and the playlist will go stale until they act.
func (m *Mailer) NotifyAuthFailure(ctx context.Context, cause error) {
	if !m.Enabled() {
		m.log.Warn("auth failure notification skipped, no smtp host configured", "cause", cause)
		return
	}

	subject := "Playlist refresh halted: catalog authorization expired"
	body := fmt.Sprintf(
		"The catalog provider rejected the stored credentials at %s.\r\n\r\n"+
			"Cause: %v\r\n\r\n"+
			"Daily refreshes will keep failing until the user token is renewed.\r\n",
		time.Now().Format(time.RFC1123), cause)

	if err := m.send(subject, body); err != nil {
		m.log.Error("failed to send auth failure notification", "error", err)
		return
	}
	m.log.Info("auth failure notification sent", "to", m.cfg.To)
}

func (m *Mailer) send(subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)
	}

	to := strings.Split(m.cfg.To, ",")
	for i := range to {
		to[i] = strings.TrimSpace(to[i])
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return m.sendFunc(addr, auth, m.cfg.From, to, []byte(msg.String()))
}
