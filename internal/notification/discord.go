package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"
)

const maxDescriptionLen = 1800

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Discord posts batch outcomes to Discord webhooks. An empty URL disables
// that kind of notification.
type Discord struct {
	ErrorURL   string
	SuccessURL string
	Client     *http.Client
}

func NewDiscord(errorURL, successURL string) *Discord {
	return &Discord{
		ErrorURL:   errorURL,
		SuccessURL: successURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *Discord) send(url string, embed DiscordEmbed) error {
	if url == "" {
		return nil
	}
	if len(embed.Description) > maxDescriptionLen {
		cut := maxDescriptionLen
		for cut > 0 && !utf8.RuneStart(embed.Description[cut]) {
			cut--
		}
		embed.Description = embed.Description[:cut] + "\n…"
	}
	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	resp, err := d.Client.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}
	return nil
}

func (d *Discord) SendError(message string) error {
	return d.send(d.ErrorURL, DiscordEmbed{
		Title:       "🚨 Error Notification",
		Description: message,
		Color:       16711680, // Red color
	})
}

func (d *Discord) SendSuccess(message string) error {
	return d.send(d.SuccessURL, DiscordEmbed{
		Title:       "✅ Success Notification",
		Description: message,
		Color:       65280, // Green color
	})
}

// SendBatchSummary reports a finished batch: to the error webhook when any
// region failed, to the success webhook otherwise.
func (d *Discord) SendBatchSummary(summary string, failed int) error {
	if failed > 0 {
		return d.SendError(fmt.Sprintf("Crop yield cleaning finished with %d failed regions.\n\n%s", failed, summary))
	}
	return d.SendSuccess(fmt.Sprintf("Crop yield cleaning finished.\n\n%s", summary))
}
