package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/julianbeese/immo_search/internal/domain"
	"github.com/julianbeese/immo_search/internal/filter"
	"github.com/julianbeese/immo_search/internal/session"
)

// Browser is the listing session the chat commands operate on
type Browser interface {
	Load(ctx context.Context, rentType domain.RentType) (session.LoadResult, error)
	Results(state domain.FilterState) []domain.PropertyRecord
	RequestVisit(ctx context.Context, id string) (*domain.VisitRequest, error)
	HasRequested(id string) bool
	AdvanceImage(id string, direction int) (int, string)
	CurrentImage(id string) (int, string)
	RentType() domain.RentType
	Info() session.Info
}

// BotController handles Telegram commands and keeps the chat's filter state
type BotController struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
	logger  *slog.Logger

	browser  Browser
	defaults domain.FilterState
	pageSize int

	mu     sync.Mutex
	state  domain.FilterState
	cursor int

	// Callbacks
	onStatusRequest func() string
}

// NewBotController creates a new bot controller with command handling
func NewBotController(botToken string, chatID int64, enabled bool) (*BotController, error) {
	if !enabled || botToken == "" {
		return &BotController{enabled: false, logger: slog.Default(), pageSize: 5}, nil
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &BotController{
		bot:      bot,
		chatID:   chatID,
		enabled:  true,
		logger:   slog.Default(),
		pageSize: 5,
	}, nil
}

// SetBrowser attaches the session the commands operate on. defaults is the
// filter state restored by /reset.
func (c *BotController) SetBrowser(browser Browser, defaults domain.FilterState, pageSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.browser = browser
	c.defaults = defaults
	c.state = defaults
	c.cursor = 0
	if pageSize > 0 {
		c.pageSize = pageSize
	}
}

// SetLogger sets the logger used for command handling
func (c *BotController) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetCallbacks sets the callback appended to /status
func (c *BotController) SetCallbacks(onStatus func() string) {
	c.onStatusRequest = onStatus
}

// StartCommandListener starts listening for Telegram commands
func (c *BotController) StartCommandListener(ctx context.Context) {
	if !c.enabled {
		return
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := c.bot.GetUpdatesChan(u)

	go func() {
		defer c.bot.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case update := <-updates:
				if update.Message == nil || !update.Message.IsCommand() {
					continue
				}

				// Only respond to authorized chat
				if update.Message.Chat.ID != c.chatID {
					continue
				}

				c.handleCommand(ctx, update.Message)
			}
		}
	}()
}

func (c *BotController) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	c.logger.Debug("command received", "command", msg.Command(), "args", msg.CommandArguments())

	response := c.respond(ctx, msg.Command(), msg.CommandArguments())
	if response == "" {
		return
	}

	reply := tgbotapi.NewMessage(c.chatID, response)
	reply.ParseMode = tgbotapi.ModeHTML
	if _, err := c.bot.Send(reply); err != nil {
		c.logger.Error("reply failed", "command", msg.Command(), "error", err)
	}
}

// respond computes the reply to a command. An empty reply means the
// outcome was already reported through the notifier.
func (c *BotController) respond(ctx context.Context, command, args string) string {
	args = strings.TrimSpace(args)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser == nil && command != "start" && command != "help" {
		return "⏳ Chargement en cours, réessayez dans un instant."
	}

	switch command {
	case "start", "help":
		return helpMessage()
	case "status":
		return c.statusMessage()
	case "search":
		c.state.Search = args
		c.cursor = 0
		return c.resultsMessage()
	case "filter":
		if args == "" {
			return describeFilters(c.state)
		}
		next, err := filter.ParseAssignments(c.state, splitAssignments(args))
		if err != nil {
			return "❌ " + escapeHTML(err.Error())
		}
		c.state = next
		c.cursor = 0
		return c.resultsMessage()
	case "reset":
		if args == "" {
			c.state = c.defaults
		} else {
			for _, field := range strings.Fields(args) {
				if !c.state.Reset(strings.ToLower(field)) {
					return "❌ Champ inconnu : " + escapeHTML(field)
				}
			}
		}
		c.cursor = 0
		return "♻️ Filtres réinitialisés.\n\n" + c.resultsMessage()
	case "rent":
		return c.switchRentType(ctx, args)
	case "list":
		c.cursor = 0
		return c.resultsMessage()
	case "show":
		return c.moveCursor(0)
	case "next":
		return c.moveCursor(1)
	case "prev":
		return c.moveCursor(-1)
	case "photo":
		direction := 1
		if args == "-" || args == "prev" {
			direction = -1
		}
		return c.cycleImage(direction)
	case "visit":
		return c.requestVisit(ctx, args)
	default:
		return "Commande inconnue. Utilisez /help pour la liste des commandes."
	}
}

func (c *BotController) switchRentType(ctx context.Context, args string) string {
	var rentType domain.RentType
	if args == "" {
		rentType = domain.RentSeasonal
		if c.browser.RentType() == domain.RentSeasonal {
			rentType = domain.RentLongTerm
		}
	} else {
		rt, ok := domain.ParseRentType(args)
		if !ok {
			return "❌ Type de location inconnu : " + escapeHTML(args) + "\nValeurs possibles : longue, saison"
		}
		rentType = rt
	}

	res, err := c.browser.Load(ctx, rentType)
	if err != nil {
		c.logger.Error("load failed", "rent_type", rentType, "error", err)
		return "❌ Chargement impossible : " + escapeHTML(err.Error())
	}
	c.cursor = 0

	header := fmt.Sprintf("🔄 <b>%s</b> : %d annonces (%s)", rentTypeLabel(rentType), res.Count, sourceLabel(res.Source))
	return header + "\n\n" + c.resultsMessage()
}

func (c *BotController) moveCursor(step int) string {
	results := c.browser.Results(c.state)
	if len(results) == 0 {
		return noResultsMessage
	}
	n := len(results)
	c.cursor = ((c.cursor+step)%n + n) % n
	return c.card(results[c.cursor], c.cursor, n)
}

func (c *BotController) cycleImage(direction int) string {
	results := c.browser.Results(c.state)
	if len(results) == 0 {
		return noResultsMessage
	}
	if c.cursor >= len(results) {
		c.cursor = 0
	}
	record := results[c.cursor]
	c.browser.AdvanceImage(record.ID, direction)
	return c.card(record, c.cursor, len(results))
}

func (c *BotController) requestVisit(ctx context.Context, id string) string {
	if id == "" {
		results := c.browser.Results(c.state)
		if len(results) == 0 {
			return noResultsMessage
		}
		if c.cursor >= len(results) {
			c.cursor = 0
		}
		id = results[c.cursor].ID
	}

	_, err := c.browser.RequestVisit(ctx, id)
	switch {
	case err == nil, errors.Is(err, domain.ErrAlreadyRequested):
		return ""
	case errors.Is(err, domain.ErrUnknownProperty):
		return "❌ Annonce inconnue : <code>" + escapeHTML(id) + "</code>"
	default:
		c.logger.Error("visit request failed", "property_id", id, "error", err)
		return "❌ Échec de la demande de visite : " + escapeHTML(err.Error())
	}
}

const noResultsMessage = "😕 Aucune annonce ne correspond à vos critères.\n/reset pour réinitialiser les filtres."

func (c *BotController) resultsMessage() string {
	results := c.browser.Results(c.state)
	if len(results) == 0 {
		return noResultsMessage
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔎 <b>%d annonces</b>\n\n", len(results)))
	for i, r := range results {
		if i == c.pageSize {
			sb.WriteString(fmt.Sprintf("… et %d autres\n", len(results)-c.pageSize))
			break
		}
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, escapeHTML(r.Title)))
		if r.Price != nil {
			sb.WriteString(fmt.Sprintf(" · %s €", formatNumber(*r.Price)))
		}
		if r.City != "" {
			sb.WriteString(" · " + escapeHTML(r.City))
		}
		if c.browser.HasRequested(r.ID) {
			sb.WriteString(" ✅")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n/show pour afficher une annonce, /next et /prev pour parcourir.")
	return sb.String()
}

func (c *BotController) card(r domain.PropertyRecord, pos, total int) string {
	idx, image := c.browser.CurrentImage(r.ID)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%d/%d</b>\n\n", pos+1, total))
	sb.WriteString(formatListing(&r))
	sb.WriteString(fmt.Sprintf("\n🖼 %d/%d %s", idx+1, r.ImageCount(), escapeHTML(image)))
	if c.browser.HasRequested(r.ID) {
		sb.WriteString("\n\n✅ Visite déjà demandée")
	} else {
		sb.WriteString("\n\n/visit pour demander une visite")
	}
	return sb.String()
}

func helpMessage() string {
	return `🏠 <b>Commandes</b>

/search [texte] - Recherche libre
/filter clé=valeur ... - Modifier les filtres (sans argument : filtres actifs)
/reset [champ ...] - Réinitialiser les filtres
/rent [longue|saison] - Changer le type de location
/list - Liste des résultats
/show, /next, /prev - Parcourir les annonces
/photo [-] - Photo suivante ou précédente
/visit [id] - Demander une visite
/status - État de la session
/help - Cette aide

Clés : ` + strings.Join(filter.AssignmentKeys, ", ")
}

func (c *BotController) statusMessage() string {
	info := c.browser.Info()

	status := fmt.Sprintf(`🏠 <b>Statut</b>

<b>Location :</b> %s
<b>Source :</b> %s
<b>Annonces :</b> %d
<b>Demandes envoyées :</b> %d`,
		rentTypeLabel(info.RentType), sourceLabel(info.Source), info.Count, info.Requested)
	if !info.LoadedAt.IsZero() {
		status += "\n<b>Mise à jour :</b> " + info.LoadedAt.Format("02/01 15:04")
	}

	if c.onStatusRequest != nil {
		status += "\n\n" + c.onStatusRequest()
	}

	return status
}

// describeFilters lists the active criteria of state
func describeFilters(state domain.FilterState) string {
	var lines []string
	add := func(key, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("• %s = %s", key, escapeHTML(value)))
		}
	}
	num := func(v *float64) string {
		if v == nil {
			return ""
		}
		return formatNumber(*v)
	}

	add("search", state.Search)
	add("localisation", state.Localisation)
	add("type", state.Type)
	add("price_max", num(state.PriceMax))
	add("surface_min", num(state.SurfaceMin))
	add("surface_max", num(state.SurfaceMax))
	add("rooms_min", num(state.RoomsMin))
	add("bedrooms_min", num(state.BedroomsMin))
	add("feature1", state.Feature1)
	add("feature2", state.Feature2)
	add("rent_type", string(state.RentType))
	if state.RadiusEnabled {
		add("radius", formatNumber(state.RadiusKm)+" km")
	}
	add("sort", string(state.Sort))

	if len(lines) == 0 {
		return "Aucun filtre actif."
	}
	return "🎛 <b>Filtres actifs</b>\n\n" + strings.Join(lines, "\n")
}

// splitAssignments splits "k=v k2=two words" into assignments, gluing
// tokens without '=' to the previous value
func splitAssignments(args string) []string {
	var out []string
	for _, tok := range strings.Fields(args) {
		if !strings.Contains(tok, "=") && len(out) > 0 {
			out[len(out)-1] += " " + tok
			continue
		}
		out = append(out, tok)
	}
	return out
}

func rentTypeLabel(rt domain.RentType) string {
	switch rt {
	case domain.RentLongTerm:
		return "Longue durée"
	case domain.RentSeasonal:
		return "Saisonnière"
	}
	return "-"
}

func sourceLabel(src session.Source) string {
	switch src {
	case session.SourceBackend:
		return "en ligne"
	case session.SourceCache:
		return "cache local"
	case session.SourceSample:
		return "exemples"
	}
	return "aucune"
}

// GetBot returns the underlying bot API for notifications
func (c *BotController) GetBot() *tgbotapi.BotAPI {
	return c.bot
}

// GetChatID returns the configured chat ID
func (c *BotController) GetChatID() int64 {
	return c.chatID
}

// IsEnabled returns whether the controller is enabled
func (c *BotController) IsEnabled() bool {
	return c.enabled
}
