// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"codeberg.org/inw/serpback/internal/i18n"
	"codeberg.org/inw/serpback/internal/models"
	"codeberg.org/inw/serpback/internal/services/email"
	"github.com/a-h/templ"
)

// UserLookup resolves the recipient of an event.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// MailSink renders events into localized mails and sends them.
type MailSink struct {
	sender      email.Sender
	users       UserLookup
	frontendURL string
}

// NewMailSink creates a MailSink. Links in the mails point to frontendURL.
func NewMailSink(sender email.Sender, users UserLookup, frontendURL string) *MailSink {
	return &MailSink{
		sender:      sender,
		users:       users,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
	}
}

// Publish implements Sink.
func (s *MailSink) Publish(ctx context.Context, ev Event) error {
	user, err := s.users.GetUserByID(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("loading recipient %d: %w", ev.UserID, err)
	}

	msg, err := s.BuildMessage(ctx, ev, user.Email)
	if err != nil {
		return err
	}

	return s.sender.Send(ctx, msg)
}

// BuildMessage renders the mail for ev in the event's locale.
func (s *MailSink) BuildMessage(ctx context.Context, ev Event, to string) (email.Message, error) {
	ctx = i18n.WithLocaleString(ctx, ev.Locale)

	var prefix string
	var data map[string]any
	switch ev.Kind {
	case EventRegistrationCreated:
		prefix = "registration"
		data = map[string]any{
			"Link":  s.frontendURL + "/confirm/" + ev.Token,
			"Hours": int(math.Round(ev.ValidFor().Hours())),
		}
	case EventPasswordResetInitiated:
		prefix = "password_reset"
		data = map[string]any{
			"Link":    s.frontendURL + "/reset/" + ev.Token,
			"Minutes": int(math.Round(ev.ValidFor().Minutes())),
		}
	default:
		return email.Message{}, fmt.Errorf("unsupported event kind %q", ev.Kind)
	}

	greeting := i18n.TData(ctx, "greeting", map[string]any{"Login": ev.Login})
	body := i18n.TData(ctx, prefix+"_body", data)
	signature := i18n.T(ctx, "signature")

	var htmlBody strings.Builder
	component := mailComponent(greeting, body, data["Link"].(string), i18n.T(ctx, prefix+"_action"), signature)
	if err := component.Render(ctx, &htmlBody); err != nil {
		return email.Message{}, fmt.Errorf("rendering mail: %w", err)
	}

	return email.Message{
		To:      to,
		Subject: i18n.T(ctx, prefix+"_subject"),
		Text:    greeting + "\n\n" + body + "\n\n" + signature + "\n",
		HTML:    htmlBody.String(),
	}, nil
}

func mailComponent(greeting, body, link, action, signature string) templ.Component {
	parts := []templ.Component{templ.Raw("<!DOCTYPE html><html><body>"), paragraph(greeting)}
	for _, para := range strings.Split(body, "\n\n") {
		if para != link {
			parts = append(parts, paragraph(para))
		}
	}
	parts = append(parts,
		actionLink(templ.URL(link), action),
		paragraph(signature),
		templ.Raw("</body></html>"),
	)
	return templ.Join(parts...)
}

func paragraph(text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<p>"+templ.EscapeString(text)+"</p>")
		return err
	})
}

func actionLink(href templ.SafeURL, text string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<p><a href="`+templ.EscapeString(string(href))+`">`+templ.EscapeString(text)+"</a></p>")
		return err
	})
}
