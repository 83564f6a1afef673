package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type EssentialItem string

const (
	MEDICAL_ITEM EssentialItem = "Medical"
	FOOD_ITEM    EssentialItem = "Food"
	CLOTHES_ITEM EssentialItem = "Clothes"
	TOOLS_ITEM   EssentialItem = "Tools"
)

var EssentialItemNameMap = map[EssentialItem]bool{
	MEDICAL_ITEM: true,
	FOOD_ITEM:    true,
	CLOTHES_ITEM: true,
	TOOLS_ITEM:   true,
}

func (item EssentialItem) Valid() bool {
	return EssentialItemNameMap[item]
}

// EssentialItems is persisted as a JSON array. Supabase stores it in a text[]
// column, sqlite in a text column.
type EssentialItems []EssentialItem

func (items EssentialItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}

	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (items *EssentialItems) Scan(src interface{}) error {
	var raw []byte

	switch v := src.(type) {
	case nil:
		*items = EssentialItems{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for essential items", src)
	}

	if len(raw) == 0 {
		*items = EssentialItems{}
		return nil
	}
	return json.Unmarshal(raw, items)
}

func (EssentialItems) GormDataType() string {
	return "text"
}

// ParseEssentialItems converts raw names into items, rejecting unknown ones.
func ParseEssentialItems(names []string) (EssentialItems, error) {
	items := EssentialItems{}
	for _, name := range names {
		item := EssentialItem(name)
		if !item.Valid() {
			return nil, NewValidationError(fmt.Sprintf("unknown essential item '%v'", name))
		}
		items = append(items, item)
	}
	return items, nil
}
