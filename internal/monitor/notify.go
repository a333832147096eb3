package monitor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spondex/internal/shared"
)

// telegramMessageLimit is the Bot API's maximum message length.
const telegramMessageLimit = 4096

// Notifier delivers monitoring reports through the configured channels.
type Notifier struct {
	cfg        shared.NotificationConfig
	httpClient *http.Client
	smtpAddr   string
}

// NewNotifier creates a Notifier from the notification config.
func NewNotifier(cfg shared.NotificationConfig) *Notifier {
	timeout := time.Duration(cfg.Telegram.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		smtpAddr:   "localhost:25",
	}
}

// Notify sends the report through every enabled channel when alerts exist
// (or unconditionally when force is set). Per-channel failures are joined
// so one broken channel never hides another's error.
func (n *Notifier) Notify(alerts []Alert, body string, force bool) error {
	var errs []error
	if err := n.sendTelegram(alerts, body, force); err != nil {
		errs = append(errs, fmt.Errorf("telegram: %w", err))
	}
	if err := n.sendMail(alerts, body, force); err != nil {
		errs = append(errs, fmt.Errorf("email: %w", err))
	}
	return errors.Join(errs...)
}

// subscriberState is the on-disk subscriber store fed by /start messages.
type subscriberState struct {
	ChatIDs      []string `json:"chat_ids"`
	LastUpdateID *int64   `json:"last_update_id"`
}

func loadSubscriberState(path string) (subscriberState, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return subscriberState{}, nil
	}
	if err != nil {
		return subscriberState{}, fmt.Errorf("failed to read subscriber store: %w", err)
	}

	var state subscriberState
	if err := json.Unmarshal(raw, &state); err != nil {
		return subscriberState{}, fmt.Errorf("subscriber store %s is corrupted: %w", path, err)
	}
	return state, nil
}

// writeSubscriberState persists the store atomically via a temp file rename
// so a crash mid-write never corrupts the subscriber list.
func writeSubscriberState(path string, state subscriberState) error {
	sort.Strings(state.ChatIDs)
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode subscriber store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create subscriber store directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write subscriber store: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace subscriber store: %w", err)
	}
	return nil
}

// truncateForTelegram bounds a message to the Bot API limit.
func truncateForTelegram(message string) string {
	if len(message) <= telegramMessageLimit {
		return message
	}
	return message[:telegramMessageLimit-3] + "..."
}

// uniqueStrings preserves first-seen order while dropping repeats.
func uniqueStrings(values []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (n *Notifier) telegramEndpoint(token, method string) string {
	base := strings.TrimSuffix(n.cfg.Telegram.APIBase, "/")
	if base == "" {
		base = "https://api.telegram.org"
	}
	return fmt.Sprintf("%s/bot%s/%s", base, token, method)
}

// PollSubscribers refreshes the subscriber store from pending bot updates.
// Private chats that sent /start are added; other updates are consumed and
// discarded.
func (n *Notifier) PollSubscribers() error {
	cfg := n.cfg.Telegram
	if !cfg.Enabled || cfg.SubscriberStore == "" {
		return nil
	}
	token, err := shared.RequireEnv(cfg.TokenEnv)
	if err != nil {
		return fmt.Errorf("bot token env %s: %w", cfg.TokenEnv, err)
	}

	state, err := loadSubscriberState(cfg.SubscriberStore)
	if err != nil {
		return err
	}
	state, err = n.pollUpdates(token, state)
	if err != nil {
		return err
	}
	return writeSubscriberState(cfg.SubscriberStore, state)
}

func (n *Notifier) pollUpdates(token string, state subscriberState) (subscriberState, error) {
	query := url.Values{"timeout": {"0"}}
	if state.LastUpdateID != nil {
		query.Set("offset", strconv.FormatInt(*state.LastUpdateID+1, 10))
	}

	resp, err := n.httpClient.Get(n.telegramEndpoint(token, "getUpdates") + "?" + query.Encode())
	if err != nil {
		return state, fmt.Errorf("failed to poll updates: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		OK     bool `json:"ok"`
		Result []struct {
			UpdateID int64 `json:"update_id"`
			Message  *struct {
				Text string `json:"text"`
				Chat struct {
					ID   int64  `json:"id"`
					Type string `json:"type"`
				} `json:"chat"`
			} `json:"message"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return state, fmt.Errorf("failed to decode updates: %w", err)
	}
	if !payload.OK {
		return state, fmt.Errorf("telegram API error on getUpdates: %w", shared.ErrAPIRequest)
	}

	ids := map[string]bool{}
	for _, id := range state.ChatIDs {
		ids[id] = true
	}
	for _, update := range payload.Result {
		if state.LastUpdateID == nil || update.UpdateID > *state.LastUpdateID {
			id := update.UpdateID
			state.LastUpdateID = &id
		}
		message := update.Message
		if message == nil || message.Chat.Type != "private" {
			continue
		}
		if strings.TrimSpace(message.Text) != "/start" {
			continue
		}
		ids[strconv.FormatInt(message.Chat.ID, 10)] = true
	}

	state.ChatIDs = state.ChatIDs[:0]
	for id := range ids {
		state.ChatIDs = append(state.ChatIDs, id)
	}
	sort.Strings(state.ChatIDs)
	return state, nil
}

func (n *Notifier) sendTelegram(alerts []Alert, body string, force bool) error {
	cfg := n.cfg.Telegram
	if !cfg.Enabled {
		return nil
	}
	if !force && len(alerts) == 0 {
		return nil
	}

	token, err := shared.RequireEnv(cfg.TokenEnv)
	if err != nil {
		return fmt.Errorf("bot token env %s: %w", cfg.TokenEnv, err)
	}

	chatIDs := append([]string{}, cfg.ChatIDs...)
	if cfg.SubscriberStore != "" {
		state, err := loadSubscriberState(cfg.SubscriberStore)
		if err != nil {
			return err
		}
		if cfg.PollUpdates {
			if state, err = n.pollUpdates(token, state); err != nil {
				return err
			}
			if err := writeSubscriberState(cfg.SubscriberStore, state); err != nil {
				return err
			}
		}
		chatIDs = append(chatIDs, state.ChatIDs...)
	}

	chatIDs = uniqueStrings(chatIDs)
	if len(chatIDs) == 0 {
		return fmt.Errorf("no telegram chat ids configured: %w", shared.ErrInvalidConfig)
	}

	text := truncateForTelegram(body)
	endpoint := n.telegramEndpoint(token, "sendMessage")
	for _, chatID := range chatIDs {
		payload, err := json.Marshal(map[string]any{
			"chat_id":                  chatID,
			"text":                     text,
			"disable_web_page_preview": true,
		})
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}

		resp, err := n.httpClient.Post(endpoint, "application/json", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to send to chat %s: %w", chatID, err)
		}

		var result struct {
			OK          bool   `json:"ok"`
			Description string `json:"description"`
		}
		decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&result)
		resp.Body.Close()
		if decodeErr != nil {
			return fmt.Errorf("failed to decode sendMessage response: %w", decodeErr)
		}
		if !result.OK {
			return fmt.Errorf("telegram rejected message for chat %s: %s: %w", chatID, result.Description, shared.ErrAPIRequest)
		}
	}
	return nil
}

// buildMailMessage renders an RFC 5322 message for the report.
func buildMailMessage(cfg shared.MailConfig, alerts []Alert, body string) []byte {
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "Spondex Monitor"
	}
	tail := "Report"
	if len(alerts) > 0 {
		tail = "Alerts"
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", cfg.Sender)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(cfg.Recipients, ", "))
	if len(cfg.CC) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(cfg.CC, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s %s\r\n", prefix, tail)
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.Bytes()
}

func (n *Notifier) sendMail(alerts []Alert, body string, force bool) error {
	cfg := n.cfg.Mail
	if !cfg.Enabled {
		return nil
	}
	if !force && len(alerts) == 0 {
		return nil
	}

	recipients := uniqueStrings(append(append([]string{}, cfg.Recipients...), cfg.CC...))
	if len(recipients) == 0 {
		return fmt.Errorf("no mail recipients configured: %w", shared.ErrInvalidConfig)
	}

	message := buildMailMessage(cfg, alerts, body)
	if err := smtp.SendMail(n.smtpAddr, nil, cfg.Sender, recipients, message); err != nil {
		return fmt.Errorf("mail delivery failed: %w", err)
	}
	return nil
}
