package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"CatalogBot/pkg/models"
)

// Callback data layouts, all well under Telegram's 64 byte limit:
//
//	cat:<id>               open a category ("root" is the main menu)
//	page:<parent>:<n>      show page n of parent's subcategories
//	ctl:<action>:<id>      admin control on category id
//	noop                   inert label button
type CallbackKind string

const (
	KindCategory CallbackKind = "cat"
	KindPage     CallbackKind = "page"
	KindControl  CallbackKind = "ctl"
	KindNoop     CallbackKind = "noop"
)

type Action string

const (
	ActionMenu         Action = "menu"
	ActionAddMain      Action = "main"
	ActionAddSub       Action = "sub"
	ActionRename       Action = "name"
	ActionDescription  Action = "description"
	ActionReorder      Action = "reorder"
	ActionUp           Action = "up"
	ActionDown         Action = "down"
	ActionDelete       Action = "delete"
	ActionKeepSubs     Action = "save_subs"
	ActionDeleteSubs   Action = "delete_subs"
	ActionCancelDelete Action = "cancel_delete"
	ActionSave         Action = "save"
)

var ErrBadCallback = errors.New("malformed callback data")

type Callback struct {
	Kind   CallbackKind
	Action Action
	ID     string
	Page   int
}

func categoryData(id string) string {
	return string(KindCategory) + ":" + id
}

func pageData(parentID string, page int) string {
	return fmt.Sprintf("%s:%s:%d", KindPage, parentID, page)
}

func controlData(action Action, id string) string {
	return fmt.Sprintf("%s:%s:%s", KindControl, action, id)
}

func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, ":")
	switch CallbackKind(parts[0]) {
	case KindNoop:
		return Callback{Kind: KindNoop}, nil
	case KindCategory:
		if len(parts) == 2 && parts[1] != "" {
			return Callback{Kind: KindCategory, ID: parts[1]}, nil
		}
	case KindPage:
		if len(parts) == 3 && parts[1] != "" {
			page, err := strconv.Atoi(parts[2])
			if err == nil && page > 0 {
				return Callback{Kind: KindPage, ID: parts[1], Page: page}, nil
			}
		}
	case KindControl:
		if len(parts) == 3 && parts[1] != "" {
			id := parts[2]
			if id == "" {
				id = models.RootID
			}
			return Callback{Kind: KindControl, Action: Action(parts[1]), ID: id}, nil
		}
	}
	return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
}
