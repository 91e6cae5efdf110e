package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"CatalogBot/internal/category"
	"CatalogBot/internal/chain"
	"CatalogBot/internal/metrics"
	"CatalogBot/internal/session"
	"CatalogBot/internal/telegram"
	"CatalogBot/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// EndCapture is the text an admin sends to finish a description with no content.
const EndCapture = "."

const captureTimeout = 10 * time.Second

// API is the part of *tgbotapi.BotAPI the handlers use.
type API interface {
	telegram.Bot
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type UpdateHandler struct {
	api        API
	categories *category.Repository
	chains     *chain.Repository
	sessions   *session.Store
	collector  *chain.Collector
	isAdmin    func(int64) bool
	texts      Texts
	metrics    *metrics.Collector
	logger     *zap.Logger
}

type Option func(*UpdateHandler)

func WithTexts(texts Texts) Option {
	return func(h *UpdateHandler) { h.texts = texts }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(h *UpdateHandler) { h.metrics = c }
}

// WithGroupWindow overrides how long album parts are awaited.
func WithGroupWindow(window time.Duration) Option {
	return func(h *UpdateHandler) {
		h.collector = chain.NewCollector(window, h.captureUnit)
	}
}

func NewUpdateHandler(
	api API,
	categories *category.Repository,
	chains *chain.Repository,
	sessions *session.Store,
	isAdmin func(int64) bool,
	logger *zap.Logger,
	opts ...Option,
) *UpdateHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &UpdateHandler{
		api:        api,
		categories: categories,
		chains:     chains,
		sessions:   sessions,
		isAdmin:    isAdmin,
		texts:      DefaultTexts(),
		logger:     logger,
	}
	h.collector = chain.NewCollector(chain.DefaultGroupWindow, h.captureUnit)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Flush delivers albums still waiting for more parts.
func (h *UpdateHandler) Flush() {
	h.collector.Flush()
}

func (h *UpdateHandler) HandleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, update)
		}
	}
}

func (h *UpdateHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.count("callback")
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		if update.Message.From == nil || update.Message.From.IsBot {
			return
		}
		h.count("message")
		h.handleMessage(ctx, update.Message)
	}
}

func (h *UpdateHandler) count(kind string) {
	if h.metrics != nil {
		h.metrics.Updates.WithLabelValues(kind).Inc()
	}
}

func (h *UpdateHandler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	h.logger.Debug("message received",
		zap.Int64("chat_id", chatID),
		zap.Int64("user_id", msg.From.ID),
		zap.String("text", msg.Text))

	if msg.IsCommand() && msg.Command() == "start" {
		h.sessions.EndFlow(chatID)
		h.showMainMenu(ctx, chatID, msg.From.ID)
		return
	}

	state, _ := h.sessions.State(chatID)
	if state != session.StateIdle && !h.isAdmin(msg.From.ID) {
		h.sessions.EndFlow(chatID)
		state = session.StateIdle
	}

	switch state {
	case session.StateAwaitingName:
		h.receiveName(ctx, msg)
	case session.StateAwaitingRename:
		h.receiveRename(ctx, msg)
	case session.StateCapturingNew, session.StateCapturingDescription:
		if msg.MediaGroupID == "" && strings.TrimSpace(msg.Text) == EndCapture {
			h.finishCapture(ctx, chatID, msg.From.ID, true)
			return
		}
		h.collector.Add(msg)
	default:
		h.showMainMenu(ctx, chatID, msg.From.ID)
	}
}

func (h *UpdateHandler) receiveName(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	name := strings.TrimSpace(msg.Text)
	if name == "" {
		h.sendText(chatID, h.texts.GetName, nil)
		return
	}

	data := h.sessions.Update(chatID, func(d *session.Data) { d.Name = name })
	if err := h.chains.Start(ctx, chain.SessionKey(chatID, msg.From.ID)); err != nil {
		h.logger.Error("failed to start capture", zap.Int64("chat_id", chatID), zap.Error(err))
		h.sessions.EndFlow(chatID)
		h.sendText(chatID, h.texts.ErrorSaving, nil)
		return
	}
	h.sessions.SetState(chatID, session.StateCapturingNew)
	kb := CreateSaveDescriptionKeyboard(data.CategoryID, h.texts)
	h.sendText(chatID, h.texts.GetDescription, &kb)
}

func (h *UpdateHandler) receiveRename(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	data, _ := h.sessions.Data(chatID)
	h.sessions.EndFlow(chatID)

	if _, err := h.categories.Rename(ctx, data.CategoryID, strings.TrimSpace(msg.Text)); err != nil {
		h.logger.Warn("rename failed", zap.String("category_id", data.CategoryID), zap.Error(err))
		h.sendText(chatID, h.texts.ErrorUpdating, nil)
		return
	}
	h.sendText(chatID, h.texts.NameUpdated, nil)
	h.showCategory(ctx, chatID, msg.From.ID, data.CategoryID)
}

// captureUnit receives one message or one complete album from the collector.
func (h *UpdateHandler) captureUnit(messages []*tgbotapi.Message) {
	first := messages[0]
	chatID, userID := first.Chat.ID, first.From.ID

	if state, _ := h.sessions.State(chatID); !state.Capturing() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()

	if _, err := h.chains.Capture(ctx, chain.SessionKey(chatID, userID), messages); err != nil {
		if errors.Is(err, chain.ErrUnsupported) {
			h.sendText(chatID, h.texts.Unsupported, nil)
			return
		}
		h.logger.Error("failed to capture message",
			zap.Int64("chat_id", chatID),
			zap.Int("messages", len(messages)),
			zap.Error(err))
		h.sendText(chatID, h.texts.ErrorSaving, nil)
	}
}

// finishCapture ends the chat's capture session. With discard the captured
// segments are dropped and the description is saved empty.
func (h *UpdateHandler) finishCapture(ctx context.Context, chatID, userID int64, discard bool) {
	state, _ := h.sessions.State(chatID)
	data, _ := h.sessions.Data(chatID)
	if !state.Capturing() {
		return
	}

	h.collector.Flush()
	segments := h.chains.Finish(ctx, chain.SessionKey(chatID, userID))
	if discard {
		segments = []models.Segment{}
	}
	h.sessions.EndFlow(chatID)

	switch state {
	case session.StateCapturingNew:
		created, err := h.categories.AddCategory(ctx, data.CategoryID, data.Name, segments)
		if err != nil {
			h.logger.Error("failed to add category",
				zap.String("parent_id", data.CategoryID),
				zap.String("name", data.Name),
				zap.Error(err))
			h.sendText(chatID, h.texts.ErrorSaving, nil)
			return
		}
		h.logger.Info("category added", zap.String("id", created.ID), zap.String("parent_id", created.ParentID))
		h.sendText(chatID, h.texts.CategorySaved, nil)
		h.showCategory(ctx, chatID, userID, created.ParentID)

	case session.StateCapturingDescription:
		if _, err := h.categories.SetDescription(ctx, data.CategoryID, segments); err != nil {
			h.logger.Error("failed to update description", zap.String("category_id", data.CategoryID), zap.Error(err))
			h.sendText(chatID, h.texts.ErrorUpdating, nil)
			return
		}
		h.sendText(chatID, h.texts.DescriptionUpdated, nil)
		h.showCategory(ctx, chatID, userID, data.CategoryID)
	}
}

func (h *UpdateHandler) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID
	userID := query.From.ID

	cb, err := ParseCallback(query.Data)
	if err != nil {
		h.logger.Warn("bad callback", zap.String("data", query.Data), zap.Error(err))
		h.answer(query.ID, "")
		return
	}

	if cb.Kind == KindControl && !h.isAdmin(userID) {
		h.answer(query.ID, h.texts.NotAllowed)
		return
	}
	h.answer(query.ID, "")

	switch cb.Kind {
	case KindCategory:
		h.showCategory(ctx, chatID, userID, cb.ID)
	case KindPage:
		h.turnPage(ctx, query.Message, userID, cb.ID, cb.Page)
	case KindControl:
		h.handleControl(ctx, query.Message, userID, cb)
	}
}

func (h *UpdateHandler) handleControl(ctx context.Context, msg *tgbotapi.Message, userID int64, cb Callback) {
	chatID := msg.Chat.ID

	switch cb.Action {
	case ActionMenu:
		h.editMarkup(chatID, msg.MessageID, CreateControlKeyboard(cb.ID, h.texts))

	case ActionAddMain, ActionAddSub:
		parentID := cb.ID
		if cb.Action == ActionAddMain {
			parentID = models.RootID
		}
		h.startFlow(chatID, session.StateAwaitingName, parentID)
		h.sendText(chatID, h.texts.GetName, nil)

	case ActionRename:
		h.startFlow(chatID, session.StateAwaitingRename, cb.ID)
		h.sendText(chatID, h.texts.GetNewName, nil)

	case ActionDescription:
		if err := h.chains.Start(ctx, chain.SessionKey(chatID, userID)); err != nil {
			h.logger.Error("failed to start capture", zap.Int64("chat_id", chatID), zap.Error(err))
			h.sendText(chatID, h.texts.ErrorUpdating, nil)
			return
		}
		h.startFlow(chatID, session.StateCapturingDescription, cb.ID)
		kb := CreateSaveDescriptionKeyboard(cb.ID, h.texts)
		h.sendText(chatID, h.texts.GetNewDescription, &kb)

	case ActionSave:
		h.finishCapture(ctx, chatID, userID, false)

	case ActionReorder:
		h.showReorder(ctx, msg, cb.ID)

	case ActionUp, ActionDown:
		offset := -1
		if cb.Action == ActionDown {
			offset = 1
		}
		c, ok := h.categories.GetCategory(ctx, cb.ID)
		if !ok {
			h.sendText(chatID, h.texts.ErrorFound, nil)
			return
		}
		if err := h.categories.Shift(ctx, cb.ID, offset); err != nil {
			h.logger.Warn("shift failed", zap.String("category_id", cb.ID), zap.Error(err))
			h.sendText(chatID, h.texts.ErrorUpdating, nil)
			return
		}
		h.showReorder(ctx, msg, c.ParentID)

	case ActionDelete:
		kb := CreateDeleteKeyboard(cb.ID, h.texts)
		h.sendText(chatID, h.texts.SaveSubcategories, &kb)

	case ActionKeepSubs, ActionDeleteSubs:
		h.deleteCategory(ctx, msg, userID, cb.ID, cb.Action == ActionKeepSubs)

	case ActionCancelDelete:
		h.deleteMessage(chatID, msg.MessageID)
		h.sendText(chatID, h.texts.DeleteCanceled, nil)

	default:
		h.logger.Warn("unknown control action", zap.String("action", string(cb.Action)))
	}
}

func (h *UpdateHandler) deleteCategory(ctx context.Context, msg *tgbotapi.Message, userID int64, id string, saveChildren bool) {
	chatID := msg.Chat.ID
	c, ok := h.categories.GetCategory(ctx, id)
	if !ok {
		h.sendText(chatID, h.texts.ErrorFound, nil)
		return
	}
	hadChildren := len(h.categories.Subcategories(ctx, id)) > 0

	if err := h.categories.DeleteCategory(ctx, id, saveChildren); err != nil {
		h.logger.Error("failed to delete category", zap.String("category_id", id), zap.Error(err))
		h.sendText(chatID, h.texts.ErrorUpdating, nil)
		return
	}
	h.logger.Info("category deleted", zap.String("id", id), zap.Bool("save_children", saveChildren))

	h.deleteMessage(chatID, msg.MessageID)
	text := h.texts.Deleted
	if hadChildren {
		text = h.texts.DeletedWithSubs
		if saveChildren {
			text = h.texts.DeletedKeepSubs
		}
	}
	h.sendText(chatID, text, nil)
	h.showCategory(ctx, chatID, userID, c.ParentID)
}

func (h *UpdateHandler) showMainMenu(ctx context.Context, chatID, userID int64) {
	admin := h.isAdmin(userID)
	mains := h.categories.MainCategories(ctx)
	if len(mains) == 0 && !admin {
		h.sendText(chatID, h.texts.ErrorMenu, nil)
		return
	}
	data, _ := h.sessions.Data(chatID)
	kb := CreateCategoryKeyboard(nil, mains, data.PageOf(models.RootID), admin, h.texts)
	h.sendText(chatID, h.texts.Menu, &kb)
}

// showCategory replays the category's description with its keyboard
// attached to the last message.
func (h *UpdateHandler) showCategory(ctx context.Context, chatID, userID int64, id string) {
	if id == models.RootID || id == "" {
		h.showMainMenu(ctx, chatID, userID)
		return
	}

	c, ok := h.categories.GetCategory(ctx, id)
	if !ok {
		h.sendText(chatID, h.texts.ErrorFound, nil)
		h.showMainMenu(ctx, chatID, userID)
		return
	}

	children := h.categories.Subcategories(ctx, id)
	data, _ := h.sessions.Data(chatID)
	kb := CreateCategoryKeyboard(c, children, data.PageOf(id), h.isAdmin(userID), h.texts)

	if len(c.Description) == 0 {
		h.sendText(chatID, c.Name, &kb)
		return
	}

	bot := &lastSent{Bot: h.api}
	err := chain.Replay(ctx, telegram.NewSender(bot, chatID), c.Description, &kb)
	if h.metrics != nil {
		h.metrics.ObserveReplay(err)
	}
	if err != nil {
		h.logger.Error("failed to replay description", zap.String("category_id", id), zap.Error(err))
		h.sendText(chatID, c.Name, &kb)
		return
	}
	h.remember(chatID, bot.messageID)
}

// lastSent records the id of the last message sent through it. Replay puts
// the keyboard on its final message.
type lastSent struct {
	telegram.Bot
	messageID int
}

func (l *lastSent) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := l.Bot.Send(c)
	if err == nil {
		l.messageID = msg.MessageID
	}
	return msg, err
}

// startFlow enters state for categoryID. Navigation memory survives.
func (h *UpdateHandler) startFlow(chatID int64, state session.State, categoryID string) {
	h.sessions.SetState(chatID, state)
	h.sessions.Update(chatID, func(d *session.Data) {
		d.CategoryID = categoryID
		d.Name = ""
	})
}

// remember makes messageID the chat's live keyboard and strips the keyboard
// from the message that held it before.
func (h *UpdateHandler) remember(chatID int64, messageID int) {
	var previous int
	h.sessions.Update(chatID, func(d *session.Data) {
		previous = d.LastMessageID
		d.LastMessageID = messageID
	})
	if previous != 0 && previous != messageID {
		h.editMarkup(chatID, previous, tgbotapi.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
		})
	}
}

func (h *UpdateHandler) turnPage(ctx context.Context, msg *tgbotapi.Message, userID int64, parentID string, page int) {
	var current *models.Category
	var children []*models.Category
	if parentID == models.RootID {
		children = h.categories.MainCategories(ctx)
	} else {
		c, ok := h.categories.GetCategory(ctx, parentID)
		if !ok {
			h.sendText(msg.Chat.ID, h.texts.ErrorFound, nil)
			return
		}
		current = c
		children = h.categories.Subcategories(ctx, parentID)
	}
	h.sessions.Update(msg.Chat.ID, func(d *session.Data) { d.SetPage(parentID, page) })
	h.editMarkup(msg.Chat.ID, msg.MessageID, CreateCategoryKeyboard(current, children, page, h.isAdmin(userID), h.texts))
}

func (h *UpdateHandler) showReorder(ctx context.Context, msg *tgbotapi.Message, parentID string) {
	c, ok := h.categories.GetCategory(ctx, parentID)
	if !ok {
		h.sendText(msg.Chat.ID, h.texts.ErrorFound, nil)
		return
	}
	children := h.categories.Subcategories(ctx, parentID)
	h.editMarkup(msg.Chat.ID, msg.MessageID, CreateReorderKeyboard(c, children, h.texts))
}

func (h *UpdateHandler) sendText(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	sent, err := h.api.Send(msg)
	if err != nil {
		h.logger.Error("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if markup != nil {
		h.remember(chatID, sent.MessageID)
	}
}

func (h *UpdateHandler) editMarkup(chatID int64, messageID int, markup tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, markup)
	if _, err := h.api.Request(edit); err != nil {
		h.logger.Warn("failed to edit keyboard", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *UpdateHandler) deleteMessage(chatID int64, messageID int) {
	h.sessions.Update(chatID, func(d *session.Data) {
		if d.LastMessageID == messageID {
			d.LastMessageID = 0
		}
	})
	if _, err := h.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		h.logger.Debug("failed to delete message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *UpdateHandler) answer(queryID, text string) {
	if _, err := h.api.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		h.logger.Debug("failed to answer callback", zap.Error(err))
	}
}
