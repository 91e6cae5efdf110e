package telegram

import (
	"context"
	"errors"
	"testing"

	"CatalogBot/internal/chain"
	"CatalogBot/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	sent   []tgbotapi.Chattable
	groups []tgbotapi.MediaGroupConfig
	err    error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, b.err
}

func (b *fakeBot) SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
	b.groups = append(b.groups, config)
	return nil, b.err
}

func markup() *tgbotapi.InlineKeyboardMarkup {
	m := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Back", "cat:root")),
	)
	return &m
}

func TestSendText(t *testing.T) {
	bot := &fakeBot{}
	s := NewSender(bot, 42)

	require.NoError(t, s.SendText(context.Background(), "hello", markup()))
	require.Len(t, bot.sent, 1)

	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Equal(t, *markup(), msg.ReplyMarkup)
}

func TestSendMedia(t *testing.T) {
	bot := &fakeBot{}
	s := NewSender(bot, 7)
	ctx := context.Background()

	require.NoError(t, s.SendMedia(ctx, chain.MediaItem{Type: models.ContentTypePhoto, DataID: "p", Caption: "cap"}, nil))
	require.NoError(t, s.SendMedia(ctx, chain.MediaItem{Type: models.ContentTypeSticker, DataID: "s"}, markup()))
	require.NoError(t, s.SendMedia(ctx, chain.MediaItem{Type: models.ContentTypeVideoNote, DataID: "n"}, nil))

	photo, ok := bot.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, "cap", photo.Caption)
	assert.Equal(t, tgbotapi.ModeHTML, photo.ParseMode)
	assert.Equal(t, tgbotapi.FileID("p"), photo.File)
	assert.Nil(t, photo.ReplyMarkup)

	sticker, ok := bot.sent[1].(tgbotapi.StickerConfig)
	require.True(t, ok)
	assert.NotNil(t, sticker.ReplyMarkup)

	_, ok = bot.sent[2].(tgbotapi.VideoNoteConfig)
	assert.True(t, ok)

	err := s.SendMedia(ctx, chain.MediaItem{Type: models.ContentTypeText}, nil)
	assert.ErrorIs(t, err, chain.ErrUnsupported)
}

func TestSendMediaGroup(t *testing.T) {
	bot := &fakeBot{}
	s := NewSender(bot, 7)

	items := []chain.MediaItem{
		{Type: models.ContentTypePhoto, DataID: "p"},
		{Type: models.ContentTypeDocument, DataID: "d", Caption: "album"},
	}
	require.NoError(t, s.SendMediaGroup(context.Background(), items))
	require.Len(t, bot.groups, 1)
	require.Len(t, bot.groups[0].Media, 2)

	last, ok := bot.groups[0].Media[1].(tgbotapi.InputMediaDocument)
	require.True(t, ok)
	assert.Equal(t, "album", last.Caption)
	assert.Equal(t, tgbotapi.ModeHTML, last.ParseMode)

	err := s.SendMediaGroup(context.Background(), []chain.MediaItem{{Type: models.ContentTypeSticker, DataID: "s"}})
	assert.ErrorIs(t, err, chain.ErrUnsupported)
}

func TestReplayThroughSender(t *testing.T) {
	bot := &fakeBot{}
	s := NewSender(bot, 1)
	segments := []models.Segment{
		models.NewMediaGroupSegment([]models.ContentType{models.ContentTypePhoto, models.ContentTypePhoto}, []string{"a", "b"}, ""),
	}

	require.NoError(t, chain.Replay(context.Background(), s, segments, markup()))
	assert.Len(t, bot.groups, 1)
	require.Len(t, bot.sent, 1)
	assert.Equal(t, chain.Placeholder, bot.sent[0].(tgbotapi.MessageConfig).Text)
}

func TestSendError(t *testing.T) {
	boom := errors.New("telegram down")
	s := NewSender(&fakeBot{err: boom}, 1)
	assert.ErrorIs(t, s.SendText(context.Background(), "x", nil), boom)
}

func TestFormattingSurvivesReplay(t *testing.T) {
	captured, err := chain.Classify([]*tgbotapi.Message{{
		MessageID: 1,
		Text:      "opening hours",
		Entities:  []tgbotapi.MessageEntity{{Type: "bold", Offset: 0, Length: 7}},
	}})
	require.NoError(t, err)

	bot := &fakeBot{}
	require.NoError(t, chain.Replay(context.Background(), NewSender(bot, 1), []models.Segment{captured}, nil))
	require.Len(t, bot.sent, 1)

	msg := bot.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, "<b>opening</b> hours", msg.Text)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
}
