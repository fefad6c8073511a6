package domain

import (
	"fmt"
	"strings"
)

// ItemType enumerates the illustrations produced for every kit.
type ItemType string

const (
	ItemCharacter   ItemType = "character"
	ItemExpressions ItemType = "expressions"
	ItemTopper      ItemType = "topper"
	ItemTags        ItemType = "tags"
	ItemStickers    ItemType = "stickers"
	ItemInvitation  ItemType = "invitation"
	ItemAgeNumber   ItemType = "age_number"
	ItemPanel       ItemType = "panel"
)

// KitSize is the number of items attempted by a full run.
const KitSize = 8

// ItemTypes returns the canonical generation order.
func ItemTypes() []ItemType {
	return []ItemType{
		ItemCharacter,
		ItemExpressions,
		ItemTopper,
		ItemTags,
		ItemStickers,
		ItemInvitation,
		ItemAgeNumber,
		ItemPanel,
	}
}

// Valid reports whether t is one of the eight kit item types.
func (t ItemType) Valid() bool {
	for _, known := range ItemTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// ParseItemType normalizes user input into a known item type.
func ParseItemType(raw string) (ItemType, error) {
	t := ItemType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownItemType, raw)
	}
	return t, nil
}

// KitItemSpec pairs an item type with its display label.
type KitItemSpec struct {
	Type  ItemType
	Label string
}

// AspectRatio is the framing directive passed to the image model.
type AspectRatio string

const (
	AspectSquare AspectRatio = "1:1"
	AspectWide   AspectRatio = "16:9"
)

// Style selects the rendering look of every illustration.
type Style string

const (
	StyleCartoon Style = "cartoon"
	StylePixar   Style = "pixar"
)

// Valid reports whether s is a supported style.
func (s Style) Valid() bool {
	return s == StyleCartoon || s == StylePixar
}

// ParseStyle maps free-form input to a style, defaulting to cartoon.
func ParseStyle(raw string) Style {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(StylePixar), "3d":
		return StylePixar
	default:
		return StyleCartoon
	}
}

// Tone selects the mood of every illustration.
type Tone string

const (
	ToneCute        Tone = "cute"
	ToneAdventurous Tone = "adventurous"
	ToneMagical     Tone = "magical"
	ToneFun         Tone = "fun"
)

// Valid reports whether t is a supported tone.
func (t Tone) Valid() bool {
	switch t {
	case ToneCute, ToneAdventurous, ToneMagical, ToneFun:
		return true
	}
	return false
}

// ParseTone maps free-form input to a tone, defaulting to cute.
func ParseTone(raw string) Tone {
	t := Tone(strings.ToLower(strings.TrimSpace(raw)))
	if t.Valid() {
		return t
	}
	return ToneCute
}
