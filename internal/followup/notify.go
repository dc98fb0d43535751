package followup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/slack-go/slack"
	"github.com/zulandar/pipedesk/internal/config"
	"gopkg.in/gomail.v2"
)

// Notifier delivers a digest to one destination.
type Notifier interface {
	Notify(ctx context.Context, d *Digest) error
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, d *Digest) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds a notifier for every destination configured.
func FromConfig(cfg config.FollowupConfig) (Multi, error) {
	var m Multi
	if cfg.SlackWebhookURL != "" {
		m = append(m, NewSlack(cfg.SlackWebhookURL))
	}
	if cfg.DiscordWebhookURL != "" {
		n, err := NewDiscord(cfg.DiscordWebhookURL)
		if err != nil {
			return nil, err
		}
		m = append(m, n)
	}
	if cfg.SMTP.Enabled() {
		m = append(m, NewEmail(cfg.SMTP))
	}
	return m, nil
}

// Slack posts digests to an incoming webhook.
type Slack struct {
	url  string
	post func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewSlack returns a Slack notifier for the webhook URL.
func NewSlack(webhookURL string) *Slack {
	return &Slack{url: webhookURL, post: slack.PostWebhookContext}
}

// Notify implements Notifier.
func (s *Slack) Notify(ctx context.Context, d *Digest) error {
	msg := &slack.WebhookMessage{
		Text: d.Title,
		Attachments: []slack.Attachment{{
			Color: d.Color(),
			Text:  d.Body,
		}},
	}
	if err := s.post(ctx, s.url, msg); err != nil {
		return fmt.Errorf("followup: slack: %w", err)
	}
	return nil
}

// webhookExecutor abstracts the discordgo call we use, enabling test mocks.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts digests to a channel webhook.
type Discord struct {
	id      string
	token   string
	session webhookExecutor
}

// NewDiscord returns a Discord notifier for a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscord(webhookURL string) (*Discord, error) {
	id, token, err := parseDiscordWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	s, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("followup: discord session: %w", err)
	}
	return &Discord{id: id, token: token, session: s}, nil
}

// Notify implements Notifier.
func (n *Discord) Notify(ctx context.Context, d *Digest) error {
	params := &discordgo.WebhookParams{
		Content: d.Title,
		Embeds: []*discordgo.MessageEmbed{{
			Title:       d.Title,
			Description: d.Body,
			Color:       parseHexColor(d.Color()),
		}},
	}
	if _, err := n.session.WebhookExecute(n.id, n.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("followup: discord: %w", err)
	}
	return nil
}

func parseDiscordWebhook(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("followup: discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("followup: discord webhook url %q has no /webhooks/<id>/<token>", raw)
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	hex = strings.TrimPrefix(hex, "#")
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}

// Email sends digests over SMTP.
type Email struct {
	cfg  config.SMTPConfig
	send func(m *gomail.Message) error
}

// NewEmail returns an Email notifier dialing the configured server.
func NewEmail(cfg config.SMTPConfig) *Email {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Email{cfg: cfg, send: func(m *gomail.Message) error { return dialer.DialAndSend(m) }}
}

// Notify implements Notifier. The SMTP exchange does not observe ctx.
func (e *Email) Notify(_ context.Context, d *Digest) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.cfg.From)
	m.SetHeader("To", e.cfg.To...)
	m.SetHeader("Subject", "Pipedesk: "+d.Title)
	m.SetBody("text/plain", d.Body)
	if err := e.send(m); err != nil {
		return fmt.Errorf("followup: email: %w", err)
	}
	return nil
}
