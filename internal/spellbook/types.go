package spellbook

import (
	"encoding/json"
	"fmt"
)

// Variant is a single combo ("variant" in Commander Spellbook terms): a set
// of cards plus the steps and outcomes of playing them together.
type Variant struct {
	ID          string       `json:"id"`
	Identity    string       `json:"identity"`
	Description string       `json:"description"`
	Uses        []CardUse    `json:"uses"`
	Requires    []Requisite  `json:"requires"`
	Produces    []Production `json:"produces"`
	Missing     []CardUse    `json:"missing"`
	Bracket     FlexString   `json:"bracket"`
}

// CardUse names one card a variant uses.
type CardUse struct {
	Card     NamedRef `json:"card"`
	Quantity int      `json:"quantity"`
}

// Requisite is a non-card prerequisite (board state, mana available, ...).
type Requisite struct {
	Template NamedRef `json:"template"`
}

// Production is one outcome a variant produces (e.g. "Infinite mana").
type Production struct {
	Feature NamedRef `json:"feature"`
}

// NamedRef is the common {name: ...} sub-object the API nests everywhere.
type NamedRef struct {
	Name string `json:"name"`
}

// VariantList is the paged search envelope for GET /variants.
type VariantList struct {
	Count   int       `json:"count"`
	Results []Variant `json:"results"`
}

// ComboMatches is the payload of POST /find-my-combos/: combos fully
// playable with the supplied cards, and combos missing exactly one card.
type ComboMatches struct {
	Included       []Variant `json:"included"`
	AlmostIncluded []Variant `json:"almost_included"`
}

// findMyCombosEnvelope is the wire shape around ComboMatches.
type findMyCombosEnvelope struct {
	Results ComboMatches `json:"results"`
}

// BracketEstimate is the payload of POST /estimate-bracket/.
type BracketEstimate struct {
	Bracket         FlexString                   `json:"bracket"`
	TwoCardCombos   []Variant                    `json:"two_card_combos"`
	CombosByBracket map[string][]json.RawMessage `json:"combos_by_bracket"`
}

// cardListEnvelope is the wire shape of the decklist parsing endpoints.
// Entries arrive either as bare strings or as {name}/{card} objects.
type cardListEnvelope struct {
	Cards []deckCard `json:"cards"`
}

type deckCard struct {
	name string
}

func (d *deckCard) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.name = s
		return nil
	}
	var obj struct {
		Name string `json:"name"`
		Card string `json:"card"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("card list entry: %w", err)
	}
	if obj.Name != "" {
		d.name = obj.Name
	} else {
		d.name = obj.Card
	}
	return nil
}

// FlexString decodes a JSON string or number into a string. The API is not
// consistent about bracket values, so both shapes are accepted.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}
