// Package telegram replays captured segments through the Bot API. Segment
// text is Telegram HTML and is sent with the HTML parse mode.
package telegram

import (
	"context"
	"fmt"

	"CatalogBot/internal/chain"
	"CatalogBot/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot is the part of *tgbotapi.BotAPI the sender needs.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

type Sender struct {
	bot    Bot
	chatID int64
}

var _ chain.Sender = (*Sender)(nil)

func NewSender(bot Bot, chatID int64) *Sender {
	return &Sender{bot: bot, chatID: chatID}
}

func attach(base *tgbotapi.BaseChat, markup *tgbotapi.InlineKeyboardMarkup) {
	if markup != nil {
		base.ReplyMarkup = *markup
	}
}

func (s *Sender) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.bot.Send(c); err != nil {
		return fmt.Errorf("send to %d: %w", s.chatID, err)
	}
	return nil
}

func (s *Sender) SendText(ctx context.Context, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	attach(&msg.BaseChat, markup)
	return s.send(ctx, msg)
}

func (s *Sender) SendMedia(ctx context.Context, item chain.MediaItem, markup *tgbotapi.InlineKeyboardMarkup) error {
	file := tgbotapi.FileID(item.DataID)

	switch item.Type {
	case models.ContentTypePhoto:
		photo := tgbotapi.NewPhoto(s.chatID, file)
		photo.Caption = item.Caption
		photo.ParseMode = tgbotapi.ModeHTML
		attach(&photo.BaseChat, markup)
		return s.send(ctx, photo)
	case models.ContentTypeVideo:
		video := tgbotapi.NewVideo(s.chatID, file)
		video.Caption = item.Caption
		video.ParseMode = tgbotapi.ModeHTML
		attach(&video.BaseChat, markup)
		return s.send(ctx, video)
	case models.ContentTypeDocument:
		document := tgbotapi.NewDocument(s.chatID, file)
		document.Caption = item.Caption
		document.ParseMode = tgbotapi.ModeHTML
		attach(&document.BaseChat, markup)
		return s.send(ctx, document)
	case models.ContentTypeVoice:
		voice := tgbotapi.NewVoice(s.chatID, file)
		voice.Caption = item.Caption
		voice.ParseMode = tgbotapi.ModeHTML
		attach(&voice.BaseChat, markup)
		return s.send(ctx, voice)
	case models.ContentTypeSticker:
		sticker := tgbotapi.NewSticker(s.chatID, file)
		attach(&sticker.BaseChat, markup)
		return s.send(ctx, sticker)
	case models.ContentTypeVideoNote:
		note := tgbotapi.NewVideoNote(s.chatID, 0, file)
		attach(&note.BaseChat, markup)
		return s.send(ctx, note)
	}
	return fmt.Errorf("%w: cannot send %q as media", chain.ErrUnsupported, item.Type)
}

func (s *Sender) SendMediaGroup(ctx context.Context, items []chain.MediaItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	media := make([]interface{}, 0, len(items))
	for _, item := range items {
		file := tgbotapi.FileID(item.DataID)
		switch item.Type {
		case models.ContentTypePhoto:
			m := tgbotapi.NewInputMediaPhoto(file)
			m.Caption = item.Caption
			m.ParseMode = tgbotapi.ModeHTML
			media = append(media, m)
		case models.ContentTypeVideo:
			m := tgbotapi.NewInputMediaVideo(file)
			m.Caption = item.Caption
			m.ParseMode = tgbotapi.ModeHTML
			media = append(media, m)
		case models.ContentTypeDocument:
			m := tgbotapi.NewInputMediaDocument(file)
			m.Caption = item.Caption
			m.ParseMode = tgbotapi.ModeHTML
			media = append(media, m)
		default:
			return fmt.Errorf("%w: %q cannot be part of an album", chain.ErrUnsupported, item.Type)
		}
	}

	if _, err := s.bot.SendMediaGroup(tgbotapi.NewMediaGroup(s.chatID, media)); err != nil {
		return fmt.Errorf("send album to %d: %w", s.chatID, err)
	}
	return nil
}
