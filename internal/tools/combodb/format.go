package combodb

import (
	"fmt"
	"strings"

	"github.com/tolarian/tutor/internal/spellbook"
)

// comboPermalink is the public page for a combo, built from its variant ID.
const comboPermalink = "https://commanderspellbook.com/combo/%s/"

// bracketNames maps Commander bracket numbers to their official names.
var bracketNames = map[string]string{
	"1": "Exhibition",
	"2": "Core",
	"3": "Upgraded",
	"4": "Optimized",
	"5": "cEDH",
}

// FormatCombo renders a combo as markdown: cards used, color identity,
// prerequisites, the steps, the results, and a Spellbook permalink. Missing
// cards are listed when the variant came from a near-miss match.
func FormatCombo(v *spellbook.Variant) string {
	lines := []string{"## Combo #" + v.ID}

	if len(v.Uses) > 0 {
		lines = append(lines, "", "**Cards:**")
		for _, u := range v.Uses {
			entry := "- " + u.Card.Name
			if u.Quantity > 1 {
				entry += fmt.Sprintf(" (x%d)", u.Quantity)
			}
			lines = append(lines, entry)
		}
	}
	if len(v.Missing) > 0 {
		lines = append(lines, "", "**Missing:**")
		for _, m := range v.Missing {
			lines = append(lines, "- "+m.Card.Name)
		}
	}
	if v.Identity != "" {
		lines = append(lines, "", "**Color Identity:** "+v.Identity)
	}
	if len(v.Requires) > 0 {
		lines = append(lines, "", "**Prerequisites:**")
		for _, r := range v.Requires {
			lines = append(lines, "- "+r.Template.Name)
		}
	}
	if v.Description != "" {
		lines = append(lines, "", "**Steps:**", v.Description)
	}
	if len(v.Produces) > 0 {
		lines = append(lines, "", "**Results:**")
		for _, p := range v.Produces {
			lines = append(lines, "- "+p.Feature.Name)
		}
	}
	if v.Bracket != "" {
		lines = append(lines, "", "**Bracket:** "+bracketLabel(string(v.Bracket)))
	}
	if v.ID != "" {
		lines = append(lines, "", fmt.Sprintf("[View on Commander Spellbook]("+comboPermalink+")", v.ID))
	}

	return strings.Join(lines, "\n")
}

// FormatComboList renders a heading plus every combo, separated by rules.
func FormatComboList(heading string, combos []spellbook.Variant) string {
	lines := []string{heading, ""}
	for i := range combos {
		lines = append(lines, FormatCombo(&combos[i]), "", "---", "")
	}
	return strings.Join(lines, "\n")
}

// bracketLabel attaches the official bracket name to its number when known.
func bracketLabel(bracket string) string {
	if name, ok := bracketNames[bracket]; ok {
		return fmt.Sprintf("%s (%s)", bracket, name)
	}
	return bracket
}
