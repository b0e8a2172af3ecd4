package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/monocle-dev/staffing/internal/events"
	"golang.org/x/sync/errgroup"
)

type DiscordWebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbed struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Color       int                   `json:"color"`
	Fields      []DiscordWebhookField `json:"fields"`
	Footer      *DiscordFooter        `json:"footer,omitempty"`
	Timestamp   string                `json:"timestamp"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

type DiscordWebhookRequest struct {
	Username  string         `json:"username"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []DiscordEmbed `json:"embeds"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []SlackField `json:"fields"`
	Footer    string       `json:"footer"`
	Timestamp int64        `json:"ts"`
}

type SlackWebhookRequest struct {
	Username    string            `json:"username"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments"`
}

const (
	ColorGreen  = 65280    // #00FF00 - members attached or restored
	ColorOrange = 16753920 // #FFA500 - pivot updated or synced
	ColorRed    = 16711680 // #FF0000 - members detached

	Username = "Staffing"

	webhookTimeout = 10 * time.Second
)

// Notifier posts assignment changes to Slack and Discord incoming webhooks.
type Notifier struct {
	SlackURL   string
	DiscordURL string
	Client     *http.Client
}

func NewNotifier(slackURL, discordURL string) *Notifier {
	return &Notifier{
		SlackURL:   slackURL,
		DiscordURL: discordURL,
		Client:     &http.Client{Timeout: webhookTimeout},
	}
}

func (n *Notifier) Enabled() bool {
	return n.SlackURL != "" || n.DiscordURL != ""
}

// Publish sends the change in the background. Failures are only logged.
func (n *Notifier) Publish(ctx context.Context, change events.Change) {
	if !n.Enabled() || change.Empty() {
		return
	}

	go func() {
		if err := n.Send(context.WithoutCancel(ctx), change); err != nil {
			log.Printf("Failed to send webhook notification for project %d: %v", change.ProjectID, err)
		}
	}()
}

// Send posts the change to every configured webhook concurrently and returns
// the first failure.
func (n *Notifier) Send(ctx context.Context, change events.Change) error {
	g, ctx := errgroup.WithContext(ctx)

	if n.DiscordURL != "" {
		g.Go(func() error {
			if err := n.sendDiscordWebhook(ctx, discordPayload(change)); err != nil {
				return fmt.Errorf("discord: %w", err)
			}
			return nil
		})
	}

	if n.SlackURL != "" {
		g.Go(func() error {
			if err := n.sendSlackWebhook(ctx, slackPayload(change)); err != nil {
				return fmt.Errorf("slack: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func title(change events.Change) string {
	switch change.Kind {
	case events.KindAttached:
		return "Members assigned"
	case events.KindDetached:
		return "Members unassigned"
	case events.KindRestored:
		return "Assignments restored"
	case events.KindUpdated:
		return "Assignment updated"
	default:
		return "Assignments synced"
	}
}

func color(change events.Change) int {
	switch change.Kind {
	case events.KindAttached, events.KindRestored:
		return ColorGreen
	case events.KindDetached:
		return ColorRed
	default:
		return ColorOrange
	}
}

func projectLabel(change events.Change) string {
	if change.ProjectName != "" {
		return change.ProjectName
	}
	return fmt.Sprintf("#%d", change.ProjectID)
}

func formatIDs(ids []uint) string {
	if len(ids) == 0 {
		return "None"
	}

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("#%d", id))
	}
	return strings.Join(parts, ", ")
}

func actorLabel(change events.Change) string {
	if change.Actor == "" {
		return "Unknown"
	}
	return change.Actor
}

func discordPayload(change events.Change) DiscordWebhookRequest {
	return DiscordWebhookRequest{
		Username: Username,
		Embeds: []DiscordEmbed{
			{
				Title:       "**" + strings.ToUpper(title(change)) + "**",
				Description: fmt.Sprintf("Assignments of **%s** changed.", projectLabel(change)),
				Color:       color(change),
				Fields: []DiscordWebhookField{
					{Name: "Attached", Value: formatIDs(change.Attached), Inline: true},
					{Name: "Detached", Value: formatIDs(change.Detached), Inline: true},
					{Name: "Updated", Value: formatIDs(change.Updated), Inline: true},
					{Name: "Restored", Value: formatIDs(change.Restored), Inline: true},
					{Name: "By", Value: actorLabel(change), Inline: true},
				},
				Footer: &DiscordFooter{
					Text: fmt.Sprintf("Project: %s | Staffing", projectLabel(change)),
				},
				Timestamp: change.At.Format(time.RFC3339),
			},
		},
	}
}

func slackPayload(change events.Change) SlackWebhookRequest {
	slackColor := "warning"
	switch color(change) {
	case ColorGreen:
		slackColor = "good"
	case ColorRed:
		slackColor = "danger"
	}

	return SlackWebhookRequest{
		Username:  Username,
		IconEmoji: ":busts_in_silhouette:",
		Text:      "*" + strings.ToUpper(title(change)) + "*",
		Attachments: []SlackAttachment{
			{
				Color: slackColor,
				Title: fmt.Sprintf("Assignments of '%s' changed", projectLabel(change)),
				Text:  fmt.Sprintf("%s by %s", title(change), actorLabel(change)),
				Fields: []SlackField{
					{Title: "Attached", Value: formatIDs(change.Attached), Short: true},
					{Title: "Detached", Value: formatIDs(change.Detached), Short: true},
					{Title: "Updated", Value: formatIDs(change.Updated), Short: true},
					{Title: "Restored", Value: formatIDs(change.Restored), Short: true},
				},
				Footer:    fmt.Sprintf("Project: %s", projectLabel(change)),
				Timestamp: change.At.Unix(),
			},
		},
	}
}

func (n *Notifier) post(ctx context.Context, webhookURL string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func (n *Notifier) sendDiscordWebhook(ctx context.Context, payload DiscordWebhookRequest) error {
	return n.post(ctx, n.DiscordURL, payload)
}

func (n *Notifier) sendSlackWebhook(ctx context.Context, payload SlackWebhookRequest) error {
	return n.post(ctx, n.SlackURL, payload)
}
