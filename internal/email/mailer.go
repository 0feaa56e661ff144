package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/metrics"
)

type Kind string

const (
	KindConfirmation    Kind = "confirmation"
	KindResetPassword   Kind = "reset_password"
	KindUnlock          Kind = "unlock"
	KindInvitation      Kind = "invitation"
	KindPasswordChanged Kind = "password_changed"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "confirmation"}}<p>Welcome {{.Name}}!</p>
<p>You can confirm your account email through the link below:</p>
<p><a href="{{.Link}}">Confirm my account</a></p>{{end}}

{{define "reset_password"}}<p>Hello {{.Name}}!</p>
<p>Someone has requested a link to change your password. You can do this through the link below (valid for {{.ValidFor}}).</p>
<p><a href="{{.Link}}">Change my password</a></p>
<p>If you didn't request this, please ignore this email. Your password won't change until you access the link above and create a new one.</p>{{end}}

{{define "unlock"}}<p>Hello {{.Name}}!</p>
<p>Your account has been locked due to an excessive number of unsuccessful sign in attempts.</p>
<p>Click the link below to unlock your account:</p>
<p><a href="{{.Link}}">Unlock my account</a></p>{{end}}

{{define "invitation"}}<p>Hello {{.Name}}!</p>
<p>{{if .Inviter}}{{.Inviter}} has invited you{{else}}You have been invited{{end}} to create an account. Accept the invitation through the link below{{if .ValidFor}} (valid for {{.ValidFor}}){{end}}.</p>
<p><a href="{{.Link}}">Accept invitation</a></p>
<p>If you don't want to accept the invitation, please ignore this email.</p>{{end}}

{{define "password_changed"}}<p>Hello {{.Name}}!</p>
<p>We're contacting you to notify you that your password has been changed.</p>{{end}}
`))

var subjects = map[Kind]string{
	KindConfirmation:    "Confirmation instructions",
	KindResetPassword:   "Reset password instructions",
	KindUnlock:          "Unlock instructions",
	KindInvitation:      "Invitation instructions",
	KindPasswordChanged: "Password changed",
}

type message struct {
	Name     string
	Link     string
	Inviter  string
	ValidFor string
}

// Mailer renders the transactional auth emails and hands them to a Sender.
type Mailer struct {
	sender  Sender
	baseURL string
	logger  *slog.Logger
}

func NewMailer(sender Sender, baseURL string, logger *slog.Logger) *Mailer {
	return &Mailer{
		sender:  sender,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("component", "mailer"),
	}
}

func (m *Mailer) ConfirmationInstructions(ctx context.Context, to, name, rawToken string) error {
	return m.send(ctx, KindConfirmation, to, message{Name: greeting(name, to), Link: m.link("/auth/confirmation", rawToken)})
}

func (m *Mailer) ResetPasswordInstructions(ctx context.Context, to, name, rawToken string, validFor time.Duration) error {
	return m.send(ctx, KindResetPassword, to, message{
		Name:     greeting(name, to),
		Link:     m.link("/reset-password", rawToken),
		ValidFor: humanize(validFor),
	})
}

func (m *Mailer) UnlockInstructions(ctx context.Context, to, name, rawToken string) error {
	return m.send(ctx, KindUnlock, to, message{Name: greeting(name, to), Link: m.link("/auth/unlock", rawToken)})
}

func (m *Mailer) InvitationInstructions(ctx context.Context, to, name, inviter, rawToken string, validFor time.Duration) error {
	return m.send(ctx, KindInvitation, to, message{
		Name:     greeting(name, to),
		Link:     m.link("/accept-invitation", rawToken),
		Inviter:  inviter,
		ValidFor: humanize(validFor),
	})
}

func (m *Mailer) PasswordChanged(ctx context.Context, to, name string) error {
	return m.send(ctx, KindPasswordChanged, to, message{Name: greeting(name, to)})
}

func (m *Mailer) send(ctx context.Context, kind Kind, to string, msg message) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, string(kind), msg); err != nil {
		return fmt.Errorf("render %s email: %w", kind, err)
	}

	if err := m.sender.Send(ctx, Message{Kind: kind, To: to, Subject: subjects[kind], HTML: body.String()}); err != nil {
		metrics.EmailsSentTotal.WithLabelValues(string(kind), "error").Inc()
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	metrics.EmailsSentTotal.WithLabelValues(string(kind), "sent").Inc()
	m.logger.DebugContext(ctx, "email sent", "kind", kind)
	return nil
}

func (m *Mailer) link(path, rawToken string) string {
	return m.baseURL + path + "?token=" + url.QueryEscape(rawToken)
}

func greeting(name, email string) string {
	if name != "" {
		return name
	}
	return email
}

func humanize(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d%(24*time.Hour) == 0:
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	case d%time.Hour == 0:
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	default:
		return d.String()
	}
}
