package chain

import (
	"errors"
	"fmt"

	"CatalogBot/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var ErrUnsupported = errors.New("unsupported message kind")

// payload returns the content type of message and the file id it carries.
// Photos resolve to their largest size.
func payload(message *tgbotapi.Message) (models.ContentType, string, error) {
	switch {
	case len(message.Photo) > 0:
		return models.ContentTypePhoto, message.Photo[len(message.Photo)-1].FileID, nil
	case message.Video != nil:
		return models.ContentTypeVideo, message.Video.FileID, nil
	case message.Document != nil:
		return models.ContentTypeDocument, message.Document.FileID, nil
	case message.Sticker != nil:
		return models.ContentTypeSticker, message.Sticker.FileID, nil
	case message.VideoNote != nil:
		return models.ContentTypeVideoNote, message.VideoNote.FileID, nil
	case message.Voice != nil:
		return models.ContentTypeVoice, message.Voice.FileID, nil
	case message.Text != "":
		return models.ContentTypeText, "", nil
	}
	return "", "", fmt.Errorf("%w: message %d", ErrUnsupported, message.MessageID)
}

// Classify turns one delivered unit into a segment. Two or more messages form
// a media group whose text is the first caption found; a single message keeps
// its caption or body as text. Text is kept as Telegram HTML.
func Classify(messages []*tgbotapi.Message) (models.Segment, error) {
	switch len(messages) {
	case 0:
		return models.Segment{}, fmt.Errorf("%w: nothing to classify", ErrUnsupported)
	case 1:
		msg := messages[0]
		contentType, dataID, err := payload(msg)
		if err != nil {
			return models.Segment{}, err
		}
		text := HTML(msg.Caption, msg.CaptionEntities)
		if msg.Caption == "" {
			text = HTML(msg.Text, msg.Entities)
		}
		if contentType == models.ContentTypeText {
			return models.NewTextSegment(text), nil
		}
		return models.NewMediaSegment(contentType, dataID, text), nil
	}

	types := make([]models.ContentType, 0, len(messages))
	ids := make([]string, 0, len(messages))
	caption := ""
	for _, msg := range messages {
		contentType, dataID, err := payload(msg)
		if err != nil {
			return models.Segment{}, err
		}
		types = append(types, contentType)
		ids = append(ids, dataID)
		if caption == "" && msg.Caption != "" {
			caption = HTML(msg.Caption, msg.CaptionEntities)
		}
	}
	return models.NewMediaGroupSegment(types, ids, caption), nil
}
