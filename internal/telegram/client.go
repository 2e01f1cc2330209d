// Package telegram sends run summaries and failure alerts via the Telegram
// Bot API. Messages use MarkdownV2, so every dynamic value is escaped before
// interpolation, and delivery retries with a linearly growing backoff.
package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// RunSummary is the per-client digest posted after an analysis run.
type RunSummary struct {
	ClientName     string
	InsightCount   int
	TopOpportunity string
	Degraded       bool
	Duration       time.Duration
}

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendSummary posts a run summary to the configured chat.
func (c *Client) SendSummary(summary RunSummary) error {
	return c.send(formatSummary(summary))
}

// SendError posts a run failure alert to the configured chat.
func (c *Client) SendError(clientName string, runErr error) error {
	message := fmt.Sprintf("âš ï¸ *Analysis run failed*\n\nClient: %s\nError: %s",
		escapeMarkdownV2(clientName), escapeMarkdownV2(runErr.Error()))
	return c.send(message)
}

func (c *Client) send(message string) error {
	msg := tgbotapi.NewMessage(c.chatID, message)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatSummary renders a run summary as MarkdownV2.
func formatSummary(summary RunSummary) string {
	statusEmoji := "âœ…"
	statusLine := "Full analysis"
	if summary.Degraded {
		statusEmoji = "âš ï¸"
		statusLine = "Degraded \\(fallback insights\\)"
	}

	message := fmt.Sprintf("%s *TV Spot Insights: %s*\n\n", statusEmoji, escapeMarkdownV2(summary.ClientName))
	message += fmt.Sprintf("ðŸ“Š Insights: %d\n", summary.InsightCount)
	if summary.TopOpportunity != "" {
		message += fmt.Sprintf("ðŸŽ¯ Top opportunity: %s\n", escapeMarkdownV2(summary.TopOpportunity))
	}
	message += fmt.Sprintf("ðŸ”Ž Mode: %s\n", statusLine)
	message += fmt.Sprintf("â± Runtime: %s\n", escapeMarkdownV2(formatDuration(summary.Duration)))
	return message
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	result := ""
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			result += "\\" + string(char)
		default:
			result += string(char)
		}
	}
	return result
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if hours := int(d.Hours()); hours >= 1 {
		return fmt.Sprintf("%dh", hours)
	}
	if mins := int(d.Minutes()); mins >= 1 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
