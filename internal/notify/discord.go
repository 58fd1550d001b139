package notify

import (
	"context"
	"fmt"
	"net/http"
)

// Embed colours per event.
var discordColors = map[string]int{
	EventOpportunity: 0x2ecc71,
	EventSummary:     0x3498db,
	EventError:       0xe74c3c,
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title  string         `json:"title"`
	Color  int            `json:"color,omitempty"`
	Fields []discordField `json:"fields,omitempty"`
	Footer *struct {
		Text string `json:"text"`
	} `json:"footer,omitempty"`
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

// DiscordSender posts alerts to a Discord webhook as a single embed.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender. A nil client gets a 10s timeout.
func NewDiscordSender(webhookURL string, client *http.Client) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, client: defaultClient(client)}
}

// Send posts a. Discord answers 204 on success.
func (d *DiscordSender) Send(ctx context.Context, a Alert) error {
	embed := discordEmbed{Title: a.Title, Color: discordColors[a.Event]}
	for _, f := range a.Fields {
		embed.Fields = append(embed.Fields, discordField{Name: f.Name, Value: f.Value, Inline: len(f.Value) <= 24})
	}
	if a.Footer != "" {
		embed.Footer = &struct {
			Text string `json:"text"`
		}{Text: a.Footer}
	}
	payload := discordPayload{Username: "arbscan", Embeds: []discordEmbed{embed}}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns "discord".
func (d *DiscordSender) Name() string { return "discord" }
