package chain

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"CatalogBot/internal/storage/memory"
	"CatalogBot/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textMessage(id int, text string) *tgbotapi.Message {
	return &tgbotapi.Message{MessageID: id, Text: text}
}

func photoMessage(id int, group, caption string, fileIDs ...string) *tgbotapi.Message {
	sizes := make([]tgbotapi.PhotoSize, len(fileIDs))
	for i, f := range fileIDs {
		sizes[i] = tgbotapi.PhotoSize{FileID: f, Width: 100 * (i + 1)}
	}
	return &tgbotapi.Message{MessageID: id, MediaGroupID: group, Caption: caption, Photo: sizes}
}

func documentMessage(id int, group, caption, fileID string) *tgbotapi.Message {
	return &tgbotapi.Message{MessageID: id, MediaGroupID: group, Caption: caption, Document: &tgbotapi.Document{FileID: fileID}}
}

func newTestRepository(t *testing.T, ttl time.Duration) *Repository {
	t.Helper()
	store, err := memory.New(ttl, nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return NewRepository(store, nil)
}

func TestClassifySingle(t *testing.T) {
	tests := []struct {
		name    string
		message *tgbotapi.Message
		want    models.Segment
	}{
		{
			name:    "text",
			message: textMessage(1, "hello"),
			want:    models.NewTextSegment("hello"),
		},
		{
			name:    "photo uses largest size",
			message: photoMessage(1, "", "look", "small", "medium", "large"),
			want:    models.NewMediaSegment(models.ContentTypePhoto, "large", "look"),
		},
		{
			name:    "video",
			message: &tgbotapi.Message{Video: &tgbotapi.Video{FileID: "v"}},
			want:    models.NewMediaSegment(models.ContentTypeVideo, "v", ""),
		},
		{
			name:    "sticker",
			message: &tgbotapi.Message{Sticker: &tgbotapi.Sticker{FileID: "s"}},
			want:    models.NewMediaSegment(models.ContentTypeSticker, "s", ""),
		},
		{
			name:    "video note",
			message: &tgbotapi.Message{VideoNote: &tgbotapi.VideoNote{FileID: "n"}},
			want:    models.NewMediaSegment(models.ContentTypeVideoNote, "n", ""),
		},
		{
			name:    "voice with caption",
			message: &tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "o"}, Caption: "listen"},
			want:    models.NewMediaSegment(models.ContentTypeVoice, "o", "listen"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify([]*tgbotapi.Message{tt.message})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyUnsupported(t *testing.T) {
	_, err := Classify(nil)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Classify([]*tgbotapi.Message{{MessageID: 3, Location: &tgbotapi.Location{}}})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestClassifyMediaGroup(t *testing.T) {
	got, err := Classify([]*tgbotapi.Message{
		photoMessage(1, "g", "", "p1-small", "p1"),
		photoMessage(2, "g", "second caption", "p2"),
		documentMessage(3, "g", "third caption", "d3"),
	})
	require.NoError(t, err)

	assert.True(t, got.IsMediaGroup)
	assert.Equal(t, []models.ContentType{models.ContentTypePhoto, models.ContentTypePhoto, models.ContentTypeDocument}, got.ContentTypes)
	assert.Equal(t, []string{"p1", "p2", "d3"}, got.DataIDs)
	assert.Equal(t, "second caption", got.Text)
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t, time.Minute)
	key := SessionKey(10, 20)
	assert.Equal(t, "10:20", key)

	require.NoError(t, r.Append(ctx, key, models.NewTextSegment("stale")))
	require.NoError(t, r.Start(ctx, key))

	seg, err := r.Capture(ctx, key, []*tgbotapi.Message{textMessage(1, "hello")})
	require.NoError(t, err)
	assert.Equal(t, models.NewTextSegment("hello"), seg)

	got := r.Finish(ctx, key)
	require.Len(t, got, 1)
	rec := got[0].Record()
	assert.Nil(t, rec.DataID)
	assert.Equal(t, "text", rec.ContentType)
	require.NotNil(t, rec.Text)
	assert.Equal(t, "hello", *rec.Text)

	assert.Empty(t, r.Finish(ctx, key))
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t, 30*time.Millisecond)
	key := SessionKey(1, 1)

	require.NoError(t, r.Start(ctx, key))
	require.NoError(t, r.Append(ctx, key, models.NewTextSegment("gone soon")))
	time.Sleep(80 * time.Millisecond)

	got := r.Finish(ctx, key)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAppendRejectsInvalid(t *testing.T) {
	r := newTestRepository(t, time.Minute)
	err := r.Append(context.Background(), "k", models.Segment{})
	assert.Error(t, err)
}

type sent struct {
	kind   string
	text   string
	items  []MediaItem
	markup *tgbotapi.InlineKeyboardMarkup
}

type recordingSender struct {
	calls  []sent
	failAt int
}

var errSend = errors.New("send failed")

func (s *recordingSender) record(c sent) error {
	s.calls = append(s.calls, c)
	if s.failAt > 0 && len(s.calls) == s.failAt {
		return errSend
	}
	return nil
}

func (s *recordingSender) SendText(_ context.Context, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	return s.record(sent{kind: "text", text: text, markup: markup})
}

func (s *recordingSender) SendMedia(_ context.Context, item MediaItem, markup *tgbotapi.InlineKeyboardMarkup) error {
	return s.record(sent{kind: string(item.Type), text: item.Caption, items: []MediaItem{item}, markup: markup})
}

func (s *recordingSender) SendMediaGroup(_ context.Context, items []MediaItem) error {
	return s.record(sent{kind: "group", items: items})
}

func testMarkup() *tgbotapi.InlineKeyboardMarkup {
	m := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Back", "cat:root")),
	)
	return &m
}

func TestReplayEmpty(t *testing.T) {
	s := &recordingSender{}
	require.NoError(t, Replay(context.Background(), s, nil, testMarkup()))
	assert.Empty(t, s.calls)
}

func TestReplaySingleText(t *testing.T) {
	s := &recordingSender{}
	markup := testMarkup()
	require.NoError(t, Replay(context.Background(), s, []models.Segment{models.NewTextSegment("hello")}, markup))

	require.Len(t, s.calls, 1)
	assert.Equal(t, "text", s.calls[0].kind)
	assert.Equal(t, "hello", s.calls[0].text)
	assert.Same(t, markup, s.calls[0].markup)
}

func TestReplayMarkupOnLastOnly(t *testing.T) {
	s := &recordingSender{}
	markup := testMarkup()
	segments := []models.Segment{
		models.NewTextSegment("one"),
		models.NewMediaSegment(models.ContentTypePhoto, "p", "two"),
		models.NewTextSegment("three"),
	}
	require.NoError(t, Replay(context.Background(), s, segments, markup))

	require.Len(t, s.calls, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{s.calls[0].text, s.calls[1].text, s.calls[2].text})
	assert.Nil(t, s.calls[0].markup)
	assert.Nil(t, s.calls[1].markup)
	assert.Same(t, markup, s.calls[2].markup)
}

func TestReplaySkipsEmptyTextMidSequence(t *testing.T) {
	s := &recordingSender{}
	segments := []models.Segment{
		models.NewTextSegment(""),
		models.NewTextSegment(""),
	}
	require.NoError(t, Replay(context.Background(), s, segments, nil))

	require.Len(t, s.calls, 1)
	assert.Equal(t, Placeholder, s.calls[0].text)
}

func TestReplayTerminalMediaGroup(t *testing.T) {
	group := models.NewMediaGroupSegment(
		[]models.ContentType{models.ContentTypePhoto, models.ContentTypeVideo},
		[]string{"p", "v"}, "album")

	t.Run("with markup", func(t *testing.T) {
		s := &recordingSender{}
		markup := testMarkup()
		require.NoError(t, Replay(context.Background(), s, []models.Segment{group}, markup))

		require.Len(t, s.calls, 2)
		assert.Equal(t, "group", s.calls[0].kind)
		assert.Equal(t, []MediaItem{
			{Type: models.ContentTypePhoto, DataID: "p"},
			{Type: models.ContentTypeVideo, DataID: "v", Caption: "album"},
		}, s.calls[0].items)
		assert.Equal(t, "text", s.calls[1].kind)
		assert.Equal(t, Placeholder, s.calls[1].text)
		assert.Same(t, markup, s.calls[1].markup)
	})

	t.Run("without markup", func(t *testing.T) {
		s := &recordingSender{}
		require.NoError(t, Replay(context.Background(), s, []models.Segment{group}, nil))
		require.Len(t, s.calls, 1)
	})
}

func TestReplayCaptions(t *testing.T) {
	s := &recordingSender{}
	segments := []models.Segment{
		models.NewMediaSegment(models.ContentTypeSticker, "s", "ignored"),
		models.NewMediaSegment(models.ContentTypeDocument, "d", ""),
	}
	require.NoError(t, Replay(context.Background(), s, segments, testMarkup()))

	require.Len(t, s.calls, 2)
	assert.Equal(t, "", s.calls[0].text)
	// Media keeps an empty caption rather than the text placeholder.
	assert.Equal(t, "", s.calls[1].text)
	assert.NotNil(t, s.calls[1].markup)
}

func TestReplayStopsOnError(t *testing.T) {
	s := &recordingSender{failAt: 2}
	segments := []models.Segment{
		models.NewTextSegment("a"),
		models.NewTextSegment("b"),
		models.NewTextSegment("c"),
	}
	err := Replay(context.Background(), s, segments, nil)
	assert.ErrorIs(t, err, errSend)
	assert.Len(t, s.calls, 2)
}

func TestReplayRejectsInvalidBeforeSending(t *testing.T) {
	s := &recordingSender{}
	segments := []models.Segment{models.NewTextSegment("ok"), {}}
	assert.Error(t, Replay(context.Background(), s, segments, nil))
	assert.Empty(t, s.calls)
}

func TestCollector(t *testing.T) {
	var mu sync.Mutex
	var units [][]*tgbotapi.Message
	done := make(chan struct{}, 4)
	c := NewCollector(30*time.Millisecond, func(msgs []*tgbotapi.Message) {
		mu.Lock()
		units = append(units, msgs)
		mu.Unlock()
		done <- struct{}{}
	})

	c.Add(photoMessage(12, "album", "", "b"))
	c.Add(textMessage(20, "alone"))
	c.Add(photoMessage(11, "album", "cap", "a"))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("collector did not emit")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, units, 2)
	assert.Equal(t, "alone", units[0][0].Text)
	require.Len(t, units[1], 2)
	assert.Equal(t, 11, units[1][0].MessageID)
	assert.Equal(t, 12, units[1][1].MessageID)
}

func TestCollectorFlush(t *testing.T) {
	var got [][]*tgbotapi.Message
	c := NewCollector(time.Hour, func(msgs []*tgbotapi.Message) { got = append(got, msgs) })

	c.Add(photoMessage(1, "g", "", "a"))
	c.Add(photoMessage(2, "g", "", "b"))
	c.Flush()

	require.Len(t, got, 1)
	assert.Len(t, got[0], 2)
}

func TestFlushWaitsForReleasedAlbum(t *testing.T) {
	started := make(chan struct{})
	proceed := make(chan struct{})
	var handled atomic.Bool
	c := NewCollector(10*time.Millisecond, func(msgs []*tgbotapi.Message) {
		close(started)
		<-proceed
		handled.Store(true)
	})

	c.Add(photoMessage(1, "g", "", "a"))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("album was not released")
	}

	flushed := make(chan struct{})
	go func() {
		c.Flush()
		close(flushed)
	}()

	select {
	case <-flushed:
		t.Fatal("Flush returned while the album was still being handled")
	case <-time.After(50 * time.Millisecond):
	}

	close(proceed)
	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("Flush did not return")
	}
	assert.True(t, handled.Load())
}

func TestHTML(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		entities []tgbotapi.MessageEntity
		want     string
	}{
		{"plain text is escaped", "a<b & c", nil, "a&lt;b &amp; c"},
		{"bold", "make it bold", []tgbotapi.MessageEntity{{Type: "bold", Offset: 8, Length: 4}}, "make it <b>bold</b>"},
		{
			name:     "nested",
			text:     "bold italic",
			entities: []tgbotapi.MessageEntity{{Type: "italic", Offset: 5, Length: 6}, {Type: "bold", Offset: 0, Length: 11}},
			want:     "<b>bold <i>italic</i></b>",
		},
		{
			name:     "offsets count utf-16 units",
			text:     "😀 bold",
			entities: []tgbotapi.MessageEntity{{Type: "bold", Offset: 3, Length: 4}},
			want:     "😀 <b>bold</b>",
		},
		{
			name:     "link",
			text:     "see docs",
			entities: []tgbotapi.MessageEntity{{Type: "text_link", Offset: 4, Length: 4, URL: "https://x.y/?a=1&b=2"}},
			want:     `see <a href="https://x.y/?a=1&amp;b=2">docs</a>`,
		},
		{
			name:     "pre with language",
			text:     "x := 1",
			entities: []tgbotapi.MessageEntity{{Type: "pre", Offset: 0, Length: 6, Language: "go"}},
			want:     `<pre><code class="language-go">x := 1</code></pre>`,
		},
		{
			name:     "crossing entity dropped",
			text:     "abcdef",
			entities: []tgbotapi.MessageEntity{{Type: "bold", Offset: 0, Length: 4}, {Type: "italic", Offset: 2, Length: 4}},
			want:     "<b>abcd</b>ef",
		},
		{
			name:     "unrendered and out of range entities ignored",
			text:     "@bot hi",
			entities: []tgbotapi.MessageEntity{{Type: "mention", Offset: 0, Length: 4}, {Type: "bold", Offset: 5, Length: 10}},
			want:     "@bot hi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTML(tt.text, tt.entities))
		})
	}
}

func TestClassifyKeepsFormatting(t *testing.T) {
	body := textMessage(1, "big news")
	body.Entities = []tgbotapi.MessageEntity{{Type: "bold", Offset: 0, Length: 3}}
	got, err := Classify([]*tgbotapi.Message{body})
	require.NoError(t, err)
	assert.Equal(t, models.NewTextSegment("<b>big</b> news"), got)

	captioned := photoMessage(2, "", "look here", "p")
	captioned.CaptionEntities = []tgbotapi.MessageEntity{{Type: "italic", Offset: 5, Length: 4}}
	got, err = Classify([]*tgbotapi.Message{captioned})
	require.NoError(t, err)
	assert.Equal(t, "look <i>here</i>", got.Text)

	first := photoMessage(3, "g", "", "a")
	second := photoMessage(4, "g", "album", "b")
	second.CaptionEntities = []tgbotapi.MessageEntity{{Type: "underline", Offset: 0, Length: 5}}
	got, err = Classify([]*tgbotapi.Message{first, second})
	require.NoError(t, err)
	assert.Equal(t, "<u>album</u>", got.Text)
}
