package carddb

import (
	"fmt"
	"strings"

	"github.com/tolarian/tutor/internal/scryfall"
)

// FormatCard renders the most useful card fields as compact markdown:
// name + cost, type line, oracle text, stats, printing, Commander legality,
// prices, and a Scryfall link.
func FormatCard(c *scryfall.Card) string {
	var lines []string

	header := "## " + c.Name
	if c.ManaCost != "" {
		header += " " + c.ManaCost
	}
	lines = append(lines, header)

	if c.TypeLine != "" {
		lines = append(lines, "**"+c.TypeLine+"**")
	}
	if c.OracleText != "" {
		lines = append(lines, "", c.OracleText)
	}
	if c.Power != "" && c.Toughness != "" {
		lines = append(lines, "", fmt.Sprintf("**P/T:** %s/%s", c.Power, c.Toughness))
	}
	if c.Loyalty != "" {
		lines = append(lines, "", "**Starting Loyalty:** "+c.Loyalty)
	}
	if c.SetName != "" {
		rarity := c.Rarity
		if rarity != "" {
			rarity = strings.ToUpper(rarity[:1]) + rarity[1:]
		}
		lines = append(lines, "", fmt.Sprintf("*%s (%s)*", c.SetName, rarity))
	}

	commander := c.Legalities["commander"]
	if commander == "" {
		commander = "unknown"
	}
	lines = append(lines, "", "**Commander Legal:** "+commander)

	if price := formatPrices(c.Prices); price != "" {
		lines = append(lines, "**Price:** "+price)
	}
	if c.ScryfallURI != "" {
		lines = append(lines, "", fmt.Sprintf("[View on Scryfall](%s)", c.ScryfallURI))
	}

	return strings.Join(lines, "\n")
}

// formatPrices joins the available USD price points, foil marked as such.
func formatPrices(p scryfall.Prices) string {
	var parts []string
	if p.USD != "" {
		parts = append(parts, "$"+p.USD)
	}
	if p.USDFoil != "" {
		parts = append(parts, "$"+p.USDFoil+" foil")
	}
	return strings.Join(parts, " / ")
}

// FormatRulings renders a card's rulings with their publication dates.
func FormatRulings(cardName string, rulings []scryfall.Ruling) string {
	if len(rulings) == 0 {
		return fmt.Sprintf("**No rulings found for %s.**\n\nThis card has no official rulings or clarifications.", cardName)
	}

	lines := []string{fmt.Sprintf("## Rulings for %s", cardName), ""}
	for _, r := range rulings {
		date := r.PublishedAt
		if date == "" {
			date = "Unknown date"
		}
		lines = append(lines, fmt.Sprintf("**%s** (%s)", date, sourceLabel(r.Source)))
		lines = append(lines, "> "+r.Comment, "")
	}
	return strings.Join(lines, "\n")
}

// sourceLabel expands Scryfall's ruling source codes.
func sourceLabel(source string) string {
	if source == "wotc" {
		return "Wizards of the Coast"
	}
	return strings.ToUpper(source)
}
