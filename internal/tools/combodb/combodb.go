// Package combodb provides the Commander Spellbook-backed combo tools:
//
//   - "spellbook_search_combos"           — search combos by text query.
//   - "spellbook_find_combos_for_cards"   — combos playable with given cards.
//   - "spellbook_get_combo"               — one combo by its Spellbook ID.
//   - "spellbook_find_combos_in_decklist" — combos inside a full decklist.
//   - "spellbook_estimate_bracket"        — Commander bracket estimate.
package combodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tolarian/tutor/internal/cardmatch"
	"github.com/tolarian/tutor/internal/spellbook"
	"github.com/tolarian/tutor/internal/tools"
	"github.com/tolarian/tutor/internal/upstream"
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

const formatJSON = "json"

type searchCombosArgs struct {
	Query         string `json:"query"`
	ColorIdentity string `json:"color_identity,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Format        string `json:"response_format,omitempty"`
}

type findCombosArgs struct {
	Cards  []string `json:"cards"`
	Format string   `json:"response_format,omitempty"`
}

type getComboArgs struct {
	ComboID string `json:"combo_id"`
	Format  string `json:"response_format,omitempty"`
}

type decklistArgs struct {
	DecklistURL  string `json:"decklist_url,omitempty"`
	DecklistText string `json:"decklist_text,omitempty"`
	Format       string `json:"response_format,omitempty"`
}

// Handlers holds the combo tool handlers bound to a Spellbook client.
type Handlers struct {
	client *spellbook.Client
}

// NewHandlers creates combo database handlers backed by client.
func NewHandlers(client *spellbook.Client) *Handlers {
	return &Handlers{client: client}
}

func (h *Handlers) searchCombos(ctx context.Context, args string) (string, error) {
	var a searchCombosArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("combodb: search_combos: failed to parse arguments: %w", err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return "", fmt.Errorf("combodb: search_combos: query must not be empty")
	}
	limit := clampLimit(a.Limit)

	list, err := h.client.SearchVariants(ctx, a.Query, a.ColorIdentity, limit)
	if err != nil {
		return "", describeUpstream("search_combos", err)
	}

	combos := list.Results
	if len(combos) > limit {
		combos = combos[:limit]
	}

	if a.Format == formatJSON {
		return encodeJSON("search_combos", map[string]any{"count": list.Count, "combos": combos})
	}
	if len(combos) == 0 {
		return fmt.Sprintf("**Found 0 combos** for query %q.", a.Query), nil
	}
	heading := fmt.Sprintf("**Found %d combos** (showing %d)", list.Count, len(combos))
	return FormatComboList(heading, combos), nil
}

func (h *Handlers) findCombosForCards(ctx context.Context, args string) (string, error) {
	var a findCombosArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("combodb: find_combos_for_cards: failed to parse arguments: %w", err)
	}
	if len(a.Cards) == 0 {
		return "", fmt.Errorf("combodb: find_combos_for_cards: cards must not be empty")
	}

	matches, err := h.client.FindMyCombos(ctx, a.Cards)
	if err != nil {
		return "", describeUpstream("find_combos_for_cards", err)
	}

	// The API occasionally returns combos using cards the caller never
	// supplied; re-check every match against the actual pool so only
	// playable combos are reported as such.
	included := matches.Included[:0:0]
	for _, v := range matches.Included {
		if cardmatch.Covers(a.Cards, variantCardNames(&v)) {
			included = append(included, v)
		}
	}

	if a.Format == formatJSON {
		return encodeJSON("find_combos_for_cards", map[string]any{
			"included":        included,
			"almost_included": matches.AlmostIncluded,
		})
	}
	return formatMatches(included, matches.AlmostIncluded), nil
}

func (h *Handlers) getCombo(ctx context.Context, args string) (string, error) {
	var a getComboArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("combodb: get_combo: failed to parse arguments: %w", err)
	}
	if strings.TrimSpace(a.ComboID) == "" {
		return "", fmt.Errorf("combodb: get_combo: combo_id must not be empty")
	}

	combo, err := h.client.Variant(ctx, a.ComboID)
	if errors.Is(err, upstream.ErrNotFound) {
		return "", fmt.Errorf("combodb: get_combo: no combo has ID %q", a.ComboID)
	}
	if err != nil {
		return "", describeUpstream("get_combo", err)
	}

	if a.Format == formatJSON {
		return encodeJSON("get_combo", combo)
	}
	return FormatCombo(combo), nil
}

func (h *Handlers) findCombosInDecklist(ctx context.Context, args string) (string, error) {
	var a decklistArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("combodb: find_combos_in_decklist: failed to parse arguments: %w", err)
	}

	cards, err := h.resolveDecklist(ctx, &a)
	if err != nil {
		return "", fmt.Errorf("combodb: find_combos_in_decklist: %w", err)
	}

	matches, err := h.client.FindMyCombos(ctx, cards)
	if err != nil {
		return "", describeUpstream("find_combos_in_decklist", err)
	}

	if a.Format == formatJSON {
		return encodeJSON("find_combos_in_decklist", map[string]any{
			"deck_size":       len(cards),
			"included":        matches.Included,
			"almost_included": matches.AlmostIncluded,
		})
	}
	header := fmt.Sprintf("Parsed **%d cards** from the decklist.\n\n", len(cards))
	return header + formatMatches(matches.Included, matches.AlmostIncluded), nil
}

func (h *Handlers) estimateBracket(ctx context.Context, args string) (string, error) {
	var a struct {
		decklistArgs
		Cards []string `json:"cards,omitempty"`
	}
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("combodb: estimate_bracket: failed to parse arguments: %w", err)
	}

	cards := a.Cards
	if len(cards) == 0 {
		var err error
		cards, err = h.resolveDecklist(ctx, &a.decklistArgs)
		if err != nil {
			return "", fmt.Errorf("combodb: estimate_bracket: %w", err)
		}
	}

	est, err := h.client.EstimateBracket(ctx, cards)
	if err != nil {
		return "", describeUpstream("estimate_bracket", err)
	}

	if a.Format == formatJSON {
		return encodeJSON("estimate_bracket", est)
	}

	lines := []string{"## Bracket Estimate", ""}
	lines = append(lines, "**Estimated Bracket:** "+bracketLabel(string(est.Bracket)))
	lines = append(lines, fmt.Sprintf("**Two-Card Combos:** %d", len(est.TwoCardCombos)))
	if len(est.CombosByBracket) > 0 {
		lines = append(lines, "", "**Combos by Bracket:**")
		for _, b := range []string{"1", "2", "3", "4", "5"} {
			if combos, ok := est.CombosByBracket[b]; ok {
				lines = append(lines, fmt.Sprintf("- Bracket %s: %d", bracketLabel(b), len(combos)))
			}
		}
	}
	if len(est.TwoCardCombos) > 0 {
		lines = append(lines, "", "---", "", FormatComboList("**Two-card combos found:**", est.TwoCardCombos))
	}
	return strings.Join(lines, "\n"), nil
}

// resolveDecklist turns the url-or-text decklist arguments into card names.
// Exactly one of the two sources must be set.
func (h *Handlers) resolveDecklist(ctx context.Context, a *decklistArgs) ([]string, error) {
	hasURL := strings.TrimSpace(a.DecklistURL) != ""
	hasText := strings.TrimSpace(a.DecklistText) != ""
	switch {
	case hasURL && hasText:
		return nil, fmt.Errorf("provide either decklist_url or decklist_text, not both")
	case !hasURL && !hasText:
		return nil, fmt.Errorf("provide decklist_url or decklist_text")
	}

	var (
		cards []string
		err   error
	)
	if hasURL {
		cards, err = h.client.CardListFromURL(ctx, a.DecklistURL)
	} else {
		cards, err = h.client.CardListFromText(ctx, a.DecklistText)
	}
	if err != nil {
		return nil, describeUpstream("parse_decklist", err)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("the decklist parsed to zero cards")
	}
	return cards, nil
}

// variantCardNames lists the card names a variant uses.
func variantCardNames(v *spellbook.Variant) []string {
	names := make([]string, 0, len(v.Uses))
	for _, u := range v.Uses {
		names = append(names, u.Card.Name)
	}
	return names
}

// formatMatches renders find-my-combos output: playable combos first, then
// near-misses with the card each one lacks.
func formatMatches(included, almostIncluded []spellbook.Variant) string {
	var sections []string

	if len(included) == 0 {
		sections = append(sections, "**No complete combos found** with the supplied cards.")
	} else {
		heading := fmt.Sprintf("**%d complete combos** can be played with these cards:", len(included))
		sections = append(sections, FormatComboList(heading, included))
	}

	if len(almostIncluded) > 0 {
		heading := fmt.Sprintf("**%d combos are one card away:**", len(almostIncluded))
		sections = append(sections, FormatComboList(heading, almostIncluded))
	}

	return strings.Join(sections, "\n\n")
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	}
	return limit
}

func encodeJSON(op string, v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("combodb: %s: encode result: %w", op, err)
	}
	return string(out), nil
}

// describeUpstream turns pipeline errors into messages a user can act on.
func describeUpstream(op string, err error) error {
	var se *upstream.StatusError
	if errors.As(err, &se) {
		if se.Message != "" {
			return fmt.Errorf("combodb: %s: Commander Spellbook rejected the request (HTTP %d): %s", op, se.Status, se.Message)
		}
		return fmt.Errorf("combodb: %s: Commander Spellbook returned HTTP %d", op, se.Status)
	}
	var pe *upstream.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("combodb: %s: Commander Spellbook sent an unreadable response: %w", op, pe)
	}
	return fmt.Errorf("combodb: %s: %w", op, err)
}

// Tools returns the combo database tools ready for registration.
func Tools(client *spellbook.Client) []tools.Tool {
	h := NewHandlers(client)

	formatParam := map[string]any{
		"type":        "string",
		"enum":        []string{"markdown", "json"},
		"description": "Output format; markdown (default) or json.",
	}

	return []tools.Tool{
		{
			Definition: tools.Definition{
				Name:        "spellbook_search_combos",
				Title:       "Search MTG Combos",
				Description: "Search the Commander Spellbook combo database. Accepts free text or query syntax like card:\"Thassa's Oracle\" or result:infinite. Use color_identity to restrict results to a commander's colors.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Search query, e.g. 'infinite mana' or card:\"Demonic Consultation\".",
						},
						"color_identity": map[string]any{
							"type":        "string",
							"description": "Optional WUBRG color identity filter, e.g. 'UB' or 'wubrg'.",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of results to return (1-50, default 10).",
						},
						"response_format": formatParam,
					},
					"required": []string{"query"},
				},
				ReadOnly:   true,
				Idempotent: true,
				OpenWorld:  true,
			},
			Handler: h.searchCombos,
		},
		{
			Definition: tools.Definition{
				Name:        "spellbook_find_combos_for_cards",
				Title:       "Find Combos for Cards",
				Description: "Given a list of card names, find the combos that can be played using only those cards, plus combos that are exactly one card short. Card names tolerate typos and punctuation differences.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"cards": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "Card names to match combos against, e.g. [\"Thassa's Oracle\", \"Demonic Consultation\"].",
						},
						"response_format": formatParam,
					},
					"required": []string{"cards"},
				},
				ReadOnly:   true,
				Idempotent: true,
				OpenWorld:  true,
			},
			Handler: h.findCombosForCards,
		},
		{
			Definition: tools.Definition{
				Name:        "spellbook_get_combo",
				Title:       "Get Combo by ID",
				Description: "Fetch one combo by its Commander Spellbook variant ID, with full cards, prerequisites, steps, and results.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"combo_id": map[string]any{
							"type":        "string",
							"description": "Spellbook variant ID, e.g. '450-3120'.",
						},
						"response_format": formatParam,
					},
					"required": []string{"combo_id"},
				},
				ReadOnly:   true,
				Idempotent: true,
				OpenWorld:  true,
			},
			Handler: h.getCombo,
		},
		{
			Definition: tools.Definition{
				Name:        "spellbook_find_combos_in_decklist",
				Title:       "Find Combos in a Decklist",
				Description: "Parse a decklist from a URL (Moxfield, Archidekt, Deckstats, ...) or pasted text, then report every combo the deck contains and every combo it is one card away from.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"decklist_url": map[string]any{
							"type":        "string",
							"description": "URL of a public decklist. Mutually exclusive with decklist_text.",
						},
						"decklist_text": map[string]any{
							"type":        "string",
							"description": "Pasted decklist, one card per line; quantity prefixes like '1x' are accepted.",
						},
						"response_format": formatParam,
					},
				},
				ReadOnly:   true,
				Idempotent: true,
				OpenWorld:  true,
			},
			Handler: h.findCombosInDecklist,
		},
		{
			Definition: tools.Definition{
				Name:        "spellbook_estimate_bracket",
				Title:       "Estimate Commander Bracket",
				Description: "Estimate the Commander bracket (1 Exhibition to 5 cEDH) of a deck from its cards or a decklist, including the combos driving the estimate.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"cards": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "Card names making up the deck. Alternative to decklist_url/decklist_text.",
						},
						"decklist_url": map[string]any{
							"type":        "string",
							"description": "URL of a public decklist.",
						},
						"decklist_text": map[string]any{
							"type":        "string",
							"description": "Pasted decklist, one card per line.",
						},
						"response_format": formatParam,
					},
				},
				ReadOnly:   true,
				Idempotent: true,
				OpenWorld:  true,
			},
			Handler: h.estimateBracket,
		},
	}
}
