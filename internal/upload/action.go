package upload

import "strings"

// RowAction is the mutation a row applies to the store.
type RowAction int

const (
	AddOnly RowAction = iota
	ChangeOnly
	AddOrChange
	Delete
)

var actionNames = map[RowAction]string{
	AddOnly:     "ADD_ONLY",
	ChangeOnly:  "CHANGE_ONLY",
	AddOrChange: "ADD_OR_CHANGE",
	Delete:      "DELETE",
}

// String returns the action as it is written in the action column.
func (a RowAction) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "UNKNOWN"
}

// Verb is the lower case phrase used in diagnostics.
func (a RowAction) Verb() string {
	switch a {
	case ChangeOnly:
		return "change"
	case AddOrChange:
		return "add or change"
	case Delete:
		return "delete"
	default:
		return "add"
	}
}

// MarshalText renders the action by name.
func (a RowAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseRowAction matches action column text case-insensitively.
func ParseRowAction(text string) (RowAction, bool) {
	text = strings.TrimSpace(text)
	for action, name := range actionNames {
		if strings.EqualFold(text, name) {
			return action, true
		}
	}
	return AddOnly, false
}

// ResolveAction returns the action of a content row. Without an action
// column every row is an add.
func ResolveAction(s Sheet, row int, layout *Layout) (RowAction, bool) {
	if layout.ActionIndex < 0 {
		return AddOnly, true
	}
	return ParseRowAction(cellText(s, row, layout.ActionIndex))
}

func actionList() string {
	return "ADD_ONLY, CHANGE_ONLY, ADD_OR_CHANGE or DELETE"
}
