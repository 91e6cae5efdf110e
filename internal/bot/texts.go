package bot

// Texts holds every user-facing string so deployments can reword them.
type Texts struct {
	Menu               string
	ErrorMenu          string
	ErrorFound         string
	GetName            string
	GetDescription     string
	GetNewName         string
	GetNewDescription  string
	NameUpdated        string
	DescriptionUpdated string
	CategorySaved      string
	ErrorSaving        string
	ErrorUpdating      string
	Unsupported        string
	NotAllowed         string
	SaveSubcategories  string
	DeletedWithSubs    string
	DeletedKeepSubs    string
	Deleted            string
	DeleteCanceled     string

	BtnControl         string
	BtnBack            string
	BtnAddMain         string
	BtnAddSub          string
	BtnRename          string
	BtnDescription     string
	BtnReorder         string
	BtnReorderDone     string
	BtnDelete          string
	BtnSaveDescription string
	BtnKeepSubs        string
	BtnDeleteSubs      string
	BtnCancelDelete    string
}

func DefaultTexts() Texts {
	return Texts{
		Menu:               "Hi, select a category",
		ErrorMenu:          "Main categories not found",
		ErrorFound:         "Category not found",
		GetName:            "Send the name of the new category",
		GetDescription:     "Now send the description. It may be several messages with media. Press the button when done or send \".\" to leave it empty",
		GetNewName:         "Send the new name",
		GetNewDescription:  "Send the new description, then press the button. Send \".\" to clear it",
		NameUpdated:        "Name updated!",
		DescriptionUpdated: "Description updated!",
		CategorySaved:      "Category successfully added",
		ErrorSaving:        "Category was not saved, please try again",
		ErrorUpdating:      "Update was not applied, please try again",
		Unsupported:        "This kind of message cannot be part of a description",
		NotAllowed:         "Only admins can do that",
		SaveSubcategories:  "Keep the subcategories?",
		DeletedWithSubs:    "Category deleted with its subcategories",
		DeletedKeepSubs:    "Category deleted, its subcategories moved one level up",
		Deleted:            "Category deleted",
		DeleteCanceled:     "Deletion canceled",

		BtnControl:         "⚙️ Control",
		BtnBack:            "⬅️ Back",
		BtnAddMain:         "➕ Add category",
		BtnAddSub:          "➕ Add subcategory",
		BtnRename:          "✏️ Change name",
		BtnDescription:     "📝 Change description",
		BtnReorder:         "↕️ Reorder subcategories",
		BtnReorderDone:     "✅ Done",
		BtnDelete:          "🗑 Delete category",
		BtnSaveDescription: "💾 Save description",
		BtnKeepSubs:        "Yes",
		BtnDeleteSubs:      "No",
		BtnCancelDelete:    "Cancel deleting",
	}
}
