package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/julianbeese/immo_search/internal/domain"
)

// Notifier sends messages via Telegram
type Notifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
}

// NewNotifier creates a new Telegram notifier
func NewNotifier(botToken string, chatID int64, enabled bool) (*Notifier, error) {
	if !enabled || botToken == "" {
		return &Notifier{enabled: false}, nil
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &Notifier{
		bot:     bot,
		chatID:  chatID,
		enabled: true,
	}, nil
}

// NewNotifierFromController creates a notifier using an existing BotController
func NewNotifierFromController(controller *BotController) *Notifier {
	if controller == nil || !controller.IsEnabled() {
		return &Notifier{enabled: false}
	}
	return &Notifier{
		bot:     controller.GetBot(),
		chatID:  controller.GetChatID(),
		enabled: true,
	}
}

// NotifyNewListing sends a notification about a new listing
func (n *Notifier) NotifyNewListing(ctx context.Context, record *domain.PropertyRecord) error {
	if !n.enabled {
		return nil
	}
	return n.send("🏠 <b>Nouvelle annonce !</b>\n\n" + formatListing(record))
}

// NotifyVisitRequested confirms that a visit request was sent
func (n *Notifier) NotifyVisitRequested(ctx context.Context, record *domain.PropertyRecord, req *domain.VisitRequest) error {
	if !n.enabled {
		return nil
	}

	text := fmt.Sprintf(
		"✅ <b>Demande de visite envoyée</b>\n\n"+
			"<b>%s</b>\n"+
			"📍 %s\n"+
			"🆔 <code>%s</code>",
		escapeHTML(record.Title),
		escapeHTML(locationLine(record)),
		escapeHTML(req.ID),
	)
	if req.Status == domain.VisitStatusPending {
		text += "\n\n<i>Hors ligne : la demande sera transmise plus tard.</i>"
	}
	return n.send(text)
}

// NotifyAlreadyRequested tells the user a visit was already requested for a listing
func (n *Notifier) NotifyAlreadyRequested(ctx context.Context, record *domain.PropertyRecord) error {
	if !n.enabled {
		return nil
	}

	text := fmt.Sprintf(
		"ℹ️ <b>Demande déjà envoyée</b>\n\n"+
			"Vous avez déjà demandé une visite pour <b>%s</b>.",
		escapeHTML(record.Title),
	)
	return n.send(text)
}

// NotifyError sends an error notification to the admin
func (n *Notifier) NotifyError(ctx context.Context, errMsg string) error {
	if !n.enabled {
		return nil
	}
	return n.send(fmt.Sprintf("⚠️ <b>Erreur</b>\n\n%s", escapeHTML(errMsg)))
}

// IsEnabled returns whether the notifier is enabled
func (n *Notifier) IsEnabled() bool {
	return n.enabled
}

// SendRawMessage sends a raw HTML message
func (n *Notifier) SendRawMessage(ctx context.Context, text string) error {
	if !n.enabled {
		return nil
	}
	return n.send(text)
}

func (n *Notifier) send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	_, err := n.bot.Send(msg)
	return err
}

// formatListing creates a formatted message body for a listing
func formatListing(r *domain.PropertyRecord) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("<b>%s</b>\n", escapeHTML(r.Title)))
	if loc := locationLine(r); loc != "" {
		sb.WriteString(fmt.Sprintf("📍 %s\n", escapeHTML(loc)))
	}
	sb.WriteString("\n")

	// Key facts
	if r.Price != nil {
		sb.WriteString(fmt.Sprintf("💰 <b>%s €</b> / mois\n", formatNumber(*r.Price)))
	}
	if r.Surface != nil {
		sb.WriteString(fmt.Sprintf("📐 %s m²\n", formatNumber(*r.Surface)))
	}
	if r.Pieces != nil {
		sb.WriteString(fmt.Sprintf("🚪 %s pièces", formatNumber(*r.Pieces)))
		if r.Bedrooms != nil {
			sb.WriteString(fmt.Sprintf(", %s chambres", formatNumber(*r.Bedrooms)))
		}
		sb.WriteString("\n")
	} else if r.Bedrooms != nil {
		sb.WriteString(fmt.Sprintf("🛏 %s chambres\n", formatNumber(*r.Bedrooms)))
	}
	if r.Type != "" {
		sb.WriteString(fmt.Sprintf("🏷 %s\n", escapeHTML(r.Type)))
	}

	if len(r.Features) > 0 {
		sb.WriteString(fmt.Sprintf("✨ %s\n", escapeHTML(strings.Join(r.Features, ", "))))
	}

	sb.WriteString(fmt.Sprintf("\n🆔 <code>%s</code>", escapeHTML(r.ID)))
	return sb.String()
}

func locationLine(r *domain.PropertyRecord) string {
	switch {
	case r.Address != "" && r.City != "":
		return r.Address + ", " + r.City
	case r.City != "":
		return r.City
	}
	return r.Address
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

// escapeHTML escapes HTML special characters for Telegram
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
