package chain

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// HTML renders text with its formatting entities as Telegram HTML, the form
// captured segments keep so a replay with HTML parse mode looks like the
// original. Entity offsets count UTF-16 code units. Entities that cross
// instead of nesting are dropped.
func HTML(text string, entities []tgbotapi.MessageEntity) string {
	if len(entities) == 0 {
		return html.EscapeString(text)
	}

	units := utf16.Encode([]rune(text))
	sorted := append([]tgbotapi.MessageEntity(nil), entities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Offset != sorted[j].Offset {
			return sorted[i].Offset < sorted[j].Offset
		}
		return sorted[i].Length > sorted[j].Length
	})

	var b strings.Builder
	pos := 0
	flush := func(to int) {
		if to > pos {
			b.WriteString(html.EscapeString(string(utf16.Decode(units[pos:to]))))
			pos = to
		}
	}

	type tag struct {
		end   int
		close string
	}
	var open []tag
	closeUntil := func(limit int) {
		for len(open) > 0 && open[len(open)-1].end <= limit {
			top := open[len(open)-1]
			flush(top.end)
			b.WriteString(top.close)
			open = open[:len(open)-1]
		}
	}

	for _, e := range sorted {
		end := e.Offset + e.Length
		if e.Offset < 0 || e.Length <= 0 || end > len(units) {
			continue
		}
		start, stop, ok := entityTags(e)
		if !ok {
			continue
		}
		closeUntil(e.Offset)
		if len(open) > 0 && end > open[len(open)-1].end {
			continue
		}
		flush(e.Offset)
		b.WriteString(start)
		open = append(open, tag{end: end, close: stop})
	}
	closeUntil(len(units))
	flush(len(units))
	return b.String()
}

func entityTags(e tgbotapi.MessageEntity) (string, string, bool) {
	switch e.Type {
	case "bold":
		return "<b>", "</b>", true
	case "italic":
		return "<i>", "</i>", true
	case "underline":
		return "<u>", "</u>", true
	case "strikethrough":
		return "<s>", "</s>", true
	case "spoiler":
		return "<tg-spoiler>", "</tg-spoiler>", true
	case "code":
		return "<code>", "</code>", true
	case "pre":
		if e.Language != "" {
			return `<pre><code class="language-` + html.EscapeString(e.Language) + `">`, "</code></pre>", true
		}
		return "<pre>", "</pre>", true
	case "blockquote":
		return "<blockquote>", "</blockquote>", true
	case "text_link":
		return `<a href="` + html.EscapeString(e.URL) + `">`, "</a>", true
	case "text_mention":
		if e.User != nil {
			return fmt.Sprintf(`<a href="tg://user?id=%d">`, e.User.ID), "</a>", true
		}
	}
	return "", "", false
}
