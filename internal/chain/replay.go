package chain

import (
	"context"
	"fmt"

	"CatalogBot/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Placeholder is the body sent when a message must exist only to carry markup.
const Placeholder = "__"

type MediaItem struct {
	Type    models.ContentType
	DataID  string
	Caption string
}

// Sender delivers replayed segments to one chat. A nil markup sends none.
type Sender interface {
	SendText(ctx context.Context, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	SendMedia(ctx context.Context, item MediaItem, markup *tgbotapi.InlineKeyboardMarkup) error
	SendMediaGroup(ctx context.Context, items []MediaItem) error
}

func captionable(t models.ContentType) bool {
	switch t {
	case models.ContentTypePhoto, models.ContentTypeVideo, models.ContentTypeDocument, models.ContentTypeVoice:
		return true
	}
	return false
}

func mediaItem(seg models.Segment) MediaItem {
	item := MediaItem{Type: seg.ContentType(), DataID: seg.DataID()}
	if captionable(item.Type) {
		item.Caption = seg.Text
	}
	return item
}

// groupItems puts the segment's text on the last item of the album.
func groupItems(seg models.Segment) []MediaItem {
	items := make([]MediaItem, len(seg.DataIDs))
	for i, id := range seg.DataIDs {
		items[i] = MediaItem{Type: seg.ContentTypes[i], DataID: id}
	}
	if len(items) > 0 {
		items[len(items)-1].Caption = seg.Text
	}
	return items
}

// Replay sends segments in order. Only the last one carries markup; when it
// is an album, which cannot hold markup, a placeholder message follows with
// it. Replay stops at the first failed send.
func Replay(ctx context.Context, sender Sender, segments []models.Segment, markup *tgbotapi.InlineKeyboardMarkup) error {
	for i, seg := range segments {
		if err := seg.Validate(); err != nil {
			return fmt.Errorf("replay segment %d: %w", i, err)
		}
	}

	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		last := i == len(segments)-1

		var err error
		switch {
		case seg.IsMediaGroup:
			err = sender.SendMediaGroup(ctx, groupItems(seg))
			if err == nil && last && markup != nil {
				err = sender.SendText(ctx, Placeholder, markup)
			}
		case seg.ContentType() == models.ContentTypeText:
			switch {
			case last && seg.Text == "":
				err = sender.SendText(ctx, Placeholder, markup)
			case last:
				err = sender.SendText(ctx, seg.Text, markup)
			case seg.Text != "":
				err = sender.SendText(ctx, seg.Text, nil)
			}
		case last:
			err = sender.SendMedia(ctx, mediaItem(seg), markup)
		default:
			err = sender.SendMedia(ctx, mediaItem(seg), nil)
		}
		if err != nil {
			return fmt.Errorf("replay segment %d: %w", i, err)
		}
	}
	return nil
}
