package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"linkstash/internal/config"
	"linkstash/internal/domain"
	"linkstash/internal/storage"
)

const welcomeMessage = "Welcome to linkstash! Send me a link or a note and I'll keep it for you.\n\n" +
	"/list shows what you saved\n/delete <id> removes an item"

// Sender is the outgoing part of the Telegram API the handler uses.
// *tgbot.Bot implements it.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *tgbot.SendPhotoParams) (*models.Message, error)
}

// Observer fills in link previews for saved items.
type Observer interface {
	Observe(ctx context.Context, item domain.SavedItem) (domain.SavedItem, error)
	ObserveAll(ctx context.Context, items []domain.SavedItem) []domain.SavedItem
}

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot       *tgbot.Bot
	sender    Sender
	repo      storage.Repository
	observer  Observer
	listLimit int
	log       logrus.FieldLogger
}

// NewHandler creates a new bot handler instance connected to Telegram.
func NewHandler(cfg config.Config, repo storage.Repository, observer Observer, logger logrus.FieldLogger) (*Handler, error) {
	h := newHandler(nil, repo, observer, cfg.ListLimit, logger)

	b, err := tgbot.New(cfg.TelegramBotToken, tgbot.WithDefaultHandler(h.defaultHandler))
	if err != nil {
		h.log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	h.bot = b
	h.sender = b

	h.registerHandlers()
	h.log.Info("Telegram bot handler initialized")
	return h, nil
}

func newHandler(sender Sender, repo storage.Repository, observer Observer, listLimit int, logger logrus.FieldLogger) *Handler {
	return &Handler{
		sender:    sender,
		repo:      repo,
		observer:  observer,
		listLimit: listLimit,
		log:       logger.WithField("component", "bot_handler"),
	}
}

// registerHandlers sets up the command handlers. Any other text goes to the
// default handler and is saved.
func (h *Handler) registerHandlers() {
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.onUpdate(h.handleStart))
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/list", tgbot.MatchTypeExact, h.onUpdate(h.handleList))
	h.bot.RegisterHandler(tgbot.HandlerTypeMessageText, "/delete", tgbot.MatchTypePrefix, h.onUpdate(h.handleDelete))
	h.log.Info("Registered /start, /list and /delete command handlers")
}

// Start begins polling for updates from Telegram.
// This function blocks until the context is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info("Starting Telegram bot polling...")
	h.bot.Start(ctx)
	h.log.Info("Telegram bot polling stopped.")
}

// message is the part of an update the handlers act on.
type message struct {
	chatID int64
	userID int64
	text   string
}

func (h *Handler) onUpdate(fn func(ctx context.Context, msg message)) tgbot.HandlerFunc {
	return func(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		fn(ctx, message{
			chatID: update.Message.Chat.ID,
			userID: update.Message.From.ID,
			text:   update.Message.Text,
		})
	}
}

func (h *Handler) defaultHandler(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	h.onUpdate(h.handleSave)(ctx, b, update)
}

func (h *Handler) handleStart(ctx context.Context, msg message) {
	h.log.WithField("user_id", msg.userID).Info("Received /start command")
	h.reply(ctx, msg.chatID, welcomeMessage)
}

// handleSave stores the text as a note or link. Links are resolved right
// away and answered with their preview.
func (h *Handler) handleSave(ctx context.Context, msg message) {
	content := strings.TrimSpace(msg.text)
	if content == "" {
		return
	}

	item := domain.NewItem(msg.userID, content)
	log := h.log.WithFields(logrus.Fields{
		"user_id": msg.userID,
		"item_id": item.ID,
		"kind":    item.Kind,
	})

	if err := h.repo.SaveItem(ctx, item); err != nil {
		log.WithError(err).Error("Failed to save item")
		h.reply(ctx, msg.chatID, "Sorry, I couldn't save that. Please try again.")
		return
	}

	if item.Kind == domain.KindText {
		h.reply(ctx, msg.chatID, fmt.Sprintf("Saved note %s", ShortID(item.ID)))
		return
	}

	resolved, err := h.observer.Observe(ctx, item)
	if err != nil {
		log.WithError(err).Warn("Preview backfill failed")
		resolved = item
	}
	h.sendItem(ctx, msg.chatID, resolved)
}

// handleList shows the newest items. Links still missing an image get
// another backfill attempt first.
func (h *Handler) handleList(ctx context.Context, msg message) {
	log := h.log.WithField("user_id", msg.userID)

	items, err := h.repo.GetItemsByUser(ctx, msg.userID)
	if err != nil {
		log.WithError(err).Error("Failed to list items")
		h.reply(ctx, msg.chatID, "Sorry, I couldn't load your items.")
		return
	}
	if len(items) == 0 {
		h.reply(ctx, msg.chatID, "Nothing saved yet. Send me a link or a note.")
		return
	}

	total := len(items)
	if total > h.listLimit {
		items = items[:h.listLimit]
	}
	items = h.observer.ObserveAll(ctx, items)

	for _, item := range items {
		h.sendItem(ctx, msg.chatID, item)
	}
	if total > len(items) {
		h.reply(ctx, msg.chatID, fmt.Sprintf("Showing %d of %d items.", len(items), total))
	}
	log.WithField("item_count", len(items)).Info("Listed items")
}

func (h *Handler) handleDelete(ctx context.Context, msg message) {
	prefix := strings.TrimSpace(strings.TrimPrefix(msg.text, "/delete"))
	if prefix == "" {
		h.reply(ctx, msg.chatID, "Usage: /delete <id>")
		return
	}

	log := h.log.WithFields(logrus.Fields{"user_id": msg.userID, "id_prefix": prefix})

	item, err := h.repo.FindItem(ctx, msg.userID, prefix)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.reply(ctx, msg.chatID, fmt.Sprintf("No item with id %s.", prefix))
		return
	case errors.Is(err, storage.ErrAmbiguousPrefix):
		h.reply(ctx, msg.chatID, fmt.Sprintf("More than one item starts with %s, use a longer id.", prefix))
		return
	case err != nil:
		log.WithError(err).Error("Failed to look up item")
		h.reply(ctx, msg.chatID, "Sorry, something went wrong.")
		return
	}

	if err := h.repo.DeleteItem(ctx, msg.userID, item.ID); err != nil {
		log.WithError(err).Error("Failed to delete item")
		h.reply(ctx, msg.chatID, "Sorry, something went wrong.")
		return
	}
	h.reply(ctx, msg.chatID, fmt.Sprintf("Deleted %s", ShortID(item.ID)))
}

// sendItem sends a photo with caption when the item has image bytes and a
// text placeholder otherwise.
func (h *Handler) sendItem(ctx context.Context, chatID int64, item domain.SavedItem) {
	if !item.HasImage() {
		h.reply(ctx, chatID, Placeholder(item))
		return
	}

	_, err := h.sender.SendPhoto(ctx, &tgbot.SendPhotoParams{
		ChatID: chatID,
		Photo: &models.InputFileUpload{
			Filename: ShortID(item.ID) + ".png",
			Data:     bytes.NewReader(item.ImageData),
		},
		Caption: Caption(item),
	})
	if err != nil {
		h.log.WithError(err).WithField("item_id", item.ID).Warn("Failed to send photo, falling back to text")
		h.reply(ctx, chatID, Placeholder(item))
	}
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string) {
	_, err := h.sender.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send message")
	}
}
