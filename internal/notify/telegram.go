// Package notify is the Telegram Bot API side channel. Everything
// here is best effort: failures are logged and reported to the
// caller, never to the signaling path.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/domain"
)

const defaultAPIBase = "https://api.telegram.org"

type Bot struct {
	token   string
	apiBase string
	client  *http.Client
}

func New(token string) *Bot {
	return &Bot{
		token:   token,
		apiBase: defaultAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *Bot) IsConfigured() bool {
	return b != nil && b.token != ""
}

func (b *Bot) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", b.apiBase, b.token, method)
}

type apiResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

func (b *Bot) get(ctx context.Context, method string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.methodURL(method)+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	return b.do(req, method, out)
}

func (b *Bot) post(ctx context.Context, method string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.methodURL(method), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req, method, out)
}

func (b *Bot) do(req *http.Request, method string, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram %s: status %d", method, resp.StatusCode)
	}
	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	if !api.OK {
		return fmt.Errorf("telegram %s: not ok", method)
	}
	if out != nil {
		if err := json.Unmarshal(api.Result, out); err != nil {
			return fmt.Errorf("telegram %s: %w", method, err)
		}
	}
	return nil
}

// SendMessage sends an HTML-formatted message to the chat.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if !b.IsConfigured() {
		return fmt.Errorf("bot token not configured")
	}
	body := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	return b.post(ctx, "sendMessage", body, nil)
}

// NotifyUserJoined tells the user they joined a voice chat room.
func (b *Bot) NotifyUserJoined(ctx context.Context, userID int64, userName, roomID string) error {
	text := fmt.Sprintf("🎙 <b>Вы присоединились к голосовому чату</b>\n\nКомната: <code>%s</code>\nПользователь: %s", roomID, userName)
	return b.SendMessage(ctx, userID, text)
}

// NotifyParticipantList sends the room's participant list to the user.
func (b *Bot) NotifyParticipantList(ctx context.Context, userID int64, roomID string, participants []domain.Participant) error {
	var text string
	if len(participants) == 0 {
		text = fmt.Sprintf("📋 <b>Участники комнаты %s</b>\n\nВ комнате пока никого нет.", roomID)
	} else {
		var lines bytes.Buffer
		for _, p := range participants {
			username := p.Info.Username
			if username == "" {
				username = "N/A"
			}
			fmt.Fprintf(&lines, "• %s %s (@%s)\n", p.Info.FirstName, p.Info.LastName, username)
		}
		text = fmt.Sprintf("📋 <b>Участники комнаты %s</b>\n\n%s\nВсего участников: %d", roomID, lines.String(), len(participants))
	}
	return b.SendMessage(ctx, userID, text)
}

type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type ProfilePhotos struct {
	TotalCount int           `json:"total_count"`
	Photos     [][]PhotoSize `json:"photos"`
}

// GetUserProfilePhotos fetches the user's first profile photo set.
// https://core.telegram.org/bots/api#getuserprofilephotos
func (b *Bot) GetUserProfilePhotos(ctx context.Context, userID int64) (*ProfilePhotos, error) {
	if !b.IsConfigured() {
		return nil, fmt.Errorf("bot token not configured")
	}
	params := url.Values{}
	params.Set("user_id", fmt.Sprint(userID))
	params.Set("limit", "1")
	var photos ProfilePhotos
	if err := b.get(ctx, "getUserProfilePhotos", params, &photos); err != nil {
		return nil, err
	}
	return &photos, nil
}

// GetFileURL resolves a file id into a download URL.
// https://core.telegram.org/bots/api#getfile
func (b *Bot) GetFileURL(ctx context.Context, fileID string) (string, error) {
	if !b.IsConfigured() {
		return "", fmt.Errorf("bot token not configured")
	}
	params := url.Values{}
	params.Set("file_id", fileID)
	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := b.get(ctx, "getFile", params, &file); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/file/bot%s/%s", b.apiBase, b.token, file.FilePath), nil
}

// Dispatch runs the notification in the background and logs the
// outcome; nothing escapes this boundary.
func Dispatch(name string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Warn().Err(err).Str("module", "notify").Str("notification", name).Msg("notification failed")
		}
	}()
}
