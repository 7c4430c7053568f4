package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"cipcagent/internal/domain"
)

const (
	telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	maxTelegramBody      = 64 << 10
)

const (
	telegramWelcome = `👋 Welcome to CIPC Agent!

I'm your assistant for compliance management.

Commands:
/login COMPANY_ID - request a magic link
/status - show your last login request
/help - show this help

Example: /login 2023/123456/07`

	telegramHelp = `📚 CIPC Agent Help

/start - show the welcome message
/login COMPANY_ID - request dashboard access
/status - show your last login request
/help - show this help

Magic links are single use. Do not share them.`

	telegramLoginUsage = `❌ Missing Company ID

Please provide your Company Registration Number.

Example: /login 2023/123456/07`

	telegramLoginSent = `✅ Magic Link Sent!

Your magic link has been sent to this chat. Do not share it with anyone.`

	telegramLoginFailed = "❌ We could not send your magic link right now. Please try again shortly."

	telegramNoSession = `❌ No Active Session

You need to login first.

Use: /login COMPANY_ID`

	telegramUnknown = "🤔 I didn't understand that command. Use /help to see what I can do."
)

type LoginService interface {
	Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error)
}

// ChatSender delivers bot replies; channel.Dispatcher satisfies it.
type ChatSender interface {
	Send(ctx context.Context, ch domain.Channel, contact, message string) error
}

// TelegramBot answers bot commands posted by Telegram's webhook. Every
// update that parses is acknowledged with 200 so Telegram does not redeliver.
type TelegramBot struct {
	Svc   LoginService
	Reply ChatSender
	// Secret, when set, must match the secret_token registered with setWebhook.
	Secret string

	mu       sync.Mutex
	lastSeen map[int64]string // chat id -> company id of the last /login
}

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

type telegramAck struct {
	OK      bool   `json:"ok"`
	Command string `json:"command,omitempty"`
}

func (b *TelegramBot) Register(m *mux.Router) {
	m.HandleFunc("/v1/telegram/webhook", b.handleUpdate).Methods(http.MethodPost)
}

func (b *TelegramBot) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if b.Secret != "" {
		got := r.Header.Get(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(b.Secret)) != 1 {
			writeError(w, http.StatusUnauthorized, ErrInvalidSignature)
			return
		}
	}

	var upd telegramUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTelegramBody)).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidJSON)
		return
	}
	if upd.Message == nil || strings.TrimSpace(upd.Message.Text) == "" {
		writeJSON(w, http.StatusOK, telegramAck{OK: true})
		return
	}

	chatID := upd.Message.Chat.ID
	cmd, arg := parseCommand(upd.Message.Text)
	log := slog.With("chat_id", chatID, "command", cmd, "update_id", upd.UpdateID, "request_id", RequestIDFrom(r.Context()))

	var reply string
	switch cmd {
	case "start":
		reply = telegramWelcome
	case "help":
		reply = telegramHelp
	case "status":
		reply = b.status(chatID)
	case "login":
		reply = b.login(r.Context(), log, chatID, arg)
	default:
		reply = telegramUnknown
	}

	if reply != "" {
		if err := b.Reply.Send(r.Context(), domain.ChannelTelegram, strconv.FormatInt(chatID, 10), reply); err != nil {
			log.Error("telegram reply failed", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, telegramAck{OK: true, Command: cmd})
}

func (b *TelegramBot) login(ctx context.Context, log *slog.Logger, chatID int64, companyID string) string {
	if companyID == "" {
		return telegramLoginUsage
	}
	b.remember(chatID, companyID)

	resp, err := b.Svc.Login(ctx, domain.LoginRequest{
		SubjectID: companyID,
		Contact:   strconv.FormatInt(chatID, 10),
		Channel:   string(domain.ChannelTelegram),
	})
	switch {
	case errors.Is(err, domain.ErrUnsupportedChannel):
		log.Warn("telegram login requested but telegram channel is not configured")
		return telegramLoginFailed
	case err != nil:
		log.Error("telegram login failed", "err", err, "subject_id", companyID)
		return telegramLoginFailed
	case !resp.Delivered:
		return telegramLoginFailed
	}
	return telegramLoginSent
}

func (b *TelegramBot) status(chatID int64) string {
	b.mu.Lock()
	company, ok := b.lastSeen[chatID]
	b.mu.Unlock()
	if !ok {
		return telegramNoSession
	}
	return "📊 Status for " + company + "\n\nA magic link was requested from this chat. Open it for your full compliance dashboard."
}

func (b *TelegramBot) remember(chatID int64, companyID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastSeen == nil {
		b.lastSeen = make(map[int64]string)
	}
	b.lastSeen[chatID] = companyID
}

// parseCommand splits "/login@CipcBot 2023/123456/07" into ("login",
// "2023/123456/07"). The leading slash is optional; unknown input yields
// ("unknown", "").
func parseCommand(text string) (string, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "unknown", ""
	}
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "start", "help", "status":
		if len(fields) == 1 {
			return cmd, ""
		}
	case "login":
		switch len(fields) {
		case 1:
			return cmd, ""
		case 2:
			return cmd, fields[1]
		}
	}
	return "unknown", ""
}
