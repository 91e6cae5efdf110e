package bot

import (
	"fmt"

	"CatalogBot/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// PageSize is how many subcategory buttons fit on one page.
const PageSize = 4

func pageCount(n int) int {
	if n == 0 {
		return 1
	}
	return (n + PageSize - 1) / PageSize
}

// CreateCategoryKeyboard lists one page of children of current, with
// navigation and, for admins, the control entry.
func CreateCategoryKeyboard(current *models.Category, children []*models.Category, page int, isAdmin bool, texts Texts) tgbotapi.InlineKeyboardMarkup {
	currentID := models.RootID
	if current != nil {
		currentID = current.ID
	}

	pages := pageCount(len(children))
	page = min(max(page, 1), pages)
	start := (page - 1) * PageSize
	stop := min(start+PageSize, len(children))

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range children[start:stop] {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.Name, categoryData(c.ID)),
		))
	}

	if pages > 1 {
		prev, next := " ", " "
		prevData, nextData := string(KindNoop), string(KindNoop)
		if page > 1 {
			prev, prevData = "◀️", pageData(currentID, page-1)
		}
		if page < pages {
			next, nextData = "▶️", pageData(currentID, page+1)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(prev, prevData),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d / %d", page, pages), string(KindNoop)),
			tgbotapi.NewInlineKeyboardButtonData(next, nextData),
		))
	}

	if isAdmin {
		if current == nil {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(texts.BtnAddMain, controlData(ActionAddMain, models.RootID)),
			))
		} else {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(texts.BtnControl, controlData(ActionMenu, currentID)),
			))
		}
	}

	if current != nil {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(texts.BtnBack, categoryData(current.ParentID)),
		))
	}

	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CreateReorderKeyboard shows every child with move buttons.
func CreateReorderKeyboard(current *models.Category, children []*models.Category, texts Texts) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, c := range children {
		up, upData := " ", string(KindNoop)
		down, downData := " ", string(KindNoop)
		if i > 0 {
			up, upData = "🔼", controlData(ActionUp, c.ID)
		}
		if i < len(children)-1 {
			down, downData = "🔽", controlData(ActionDown, c.ID)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.Name, categoryData(c.ID)),
			tgbotapi.NewInlineKeyboardButtonData(up, upData),
			tgbotapi.NewInlineKeyboardButtonData(down, downData),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(texts.BtnReorderDone, categoryData(current.ID)),
	))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func CreateControlKeyboard(id string, texts Texts) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(texts.BtnAddSub, controlData(ActionAddSub, id))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(texts.BtnRename, controlData(ActionRename, id))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(texts.BtnDescription, controlData(ActionDescription, id))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(texts.BtnReorder, controlData(ActionReorder, id))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(texts.BtnDelete, controlData(ActionDelete, id))),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(texts.BtnBack, categoryData(id))),
	)
}

func CreateDeleteKeyboard(id string, texts Texts) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(texts.BtnKeepSubs, controlData(ActionKeepSubs, id)),
			tgbotapi.NewInlineKeyboardButtonData(texts.BtnDeleteSubs, controlData(ActionDeleteSubs, id)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(texts.BtnCancelDelete, controlData(ActionCancelDelete, id)),
		),
	)
}

func CreateSaveDescriptionKeyboard(id string, texts Texts) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(texts.BtnSaveDescription, controlData(ActionSave, id)),
		),
	)
}
