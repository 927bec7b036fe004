// Package carddb provides the Scryfall-backed card database tools:
//
//   - "scryfall_search_cards" — full-text search using Scryfall syntax.
//   - "scryfall_get_card"     — single card lookup by exact or fuzzy name.
//   - "scryfall_random_card"  — a random card, optionally filtered.
//   - "scryfall_get_rulings"  — official rulings for a card.
//
// All handlers are safe for concurrent use; the underlying client paces
// requests so Scryfall's spacing guidance holds however the host schedules
// tool calls.
package carddb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tolarian/tutor/internal/scryfall"
	"github.com/tolarian/tutor/internal/tools"
	"github.com/tolarian/tutor/internal/upstream"
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

// formatJSON is the response_format value selecting raw JSON output.
// Anything else (including empty) selects markdown.
const formatJSON = "json"

// searchCardsArgs is the JSON-decoded input for "scryfall_search_cards".
type searchCardsArgs struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Order  string `json:"order,omitempty"`
	Format string `json:"response_format,omitempty"`
}

// getCardArgs is the JSON-decoded input for "scryfall_get_card".
type getCardArgs struct {
	Name    string `json:"name"`
	Fuzzy   *bool  `json:"fuzzy,omitempty"` // nil means true
	SetCode string `json:"set_code,omitempty"`
	Format  string `json:"response_format,omitempty"`
}

// randomCardArgs is the JSON-decoded input for "scryfall_random_card".
type randomCardArgs struct {
	Query  string `json:"query,omitempty"`
	Format string `json:"response_format,omitempty"`
}

// getRulingsArgs is the JSON-decoded input for "scryfall_get_rulings".
type getRulingsArgs struct {
	CardName string `json:"card_name"`
}

// Handlers holds the card database tool handlers bound to a Scryfall client.
type Handlers struct {
	client *scryfall.Client
}

// NewHandlers creates card database handlers backed by client.
func NewHandlers(client *scryfall.Client) *Handlers {
	return &Handlers{client: client}
}

func (h *Handlers) searchCards(ctx context.Context, args string) (string, error) {
	var a searchCardsArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("carddb: search_cards: failed to parse arguments: %w", err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return "", fmt.Errorf("carddb: search_cards: query must not be empty")
	}
	limit := clampLimit(a.Limit)

	list, err := h.client.SearchCards(ctx, a.Query, a.Order)
	if errors.Is(err, upstream.ErrNotFound) {
		// Scryfall answers an empty search with 404; that is a valid
		// zero-result outcome, not a failure.
		list = &scryfall.CardList{Data: []scryfall.Card{}}
	} else if err != nil {
		return "", describeUpstream("search_cards", err)
	}

	cards := list.Data
	if len(cards) > limit {
		cards = cards[:limit]
	}
	total := list.TotalCards
	if total < len(cards) {
		total = len(cards)
	}

	if a.Format == formatJSON {
		out, err := json.MarshalIndent(map[string]any{"total": total, "cards": cards}, "", "  ")
		if err != nil {
			return "", fmt.Errorf("carddb: search_cards: encode result: %w", err)
		}
		return string(out), nil
	}

	lines := []string{fmt.Sprintf("**Found %d cards** (showing %d)", total, len(cards)), ""}
	for i := range cards {
		lines = append(lines, FormatCard(&cards[i]), "", "---", "")
	}
	return strings.Join(lines, "\n"), nil
}

func (h *Handlers) getCard(ctx context.Context, args string) (string, error) {
	var a getCardArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("carddb: get_card: failed to parse arguments: %w", err)
	}
	if strings.TrimSpace(a.Name) == "" {
		return "", fmt.Errorf("carddb: get_card: name must not be empty")
	}
	fuzzy := a.Fuzzy == nil || *a.Fuzzy

	card, err := h.client.NamedCard(ctx, a.Name, fuzzy, a.SetCode)
	if errors.Is(err, upstream.ErrNotFound) {
		if fuzzy {
			return "", fmt.Errorf("carddb: get_card: no card matches %q, even fuzzily; check the spelling", a.Name)
		}
		return "", fmt.Errorf("carddb: get_card: no card is named exactly %q; try fuzzy matching", a.Name)
	}
	if err != nil {
		return "", describeUpstream("get_card", err)
	}

	if a.Format == formatJSON {
		out, err := json.MarshalIndent(card, "", "  ")
		if err != nil {
			return "", fmt.Errorf("carddb: get_card: encode result: %w", err)
		}
		return string(out), nil
	}
	return FormatCard(card), nil
}

func (h *Handlers) randomCard(ctx context.Context, args string) (string, error) {
	var a randomCardArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("carddb: random_card: failed to parse arguments: %w", err)
	}

	card, err := h.client.RandomCard(ctx, a.Query)
	if errors.Is(err, upstream.ErrNotFound) {
		return "", fmt.Errorf("carddb: random_card: no card matches filter %q", a.Query)
	}
	if err != nil {
		return "", describeUpstream("random_card", err)
	}

	if a.Format == formatJSON {
		out, err := json.MarshalIndent(card, "", "  ")
		if err != nil {
			return "", fmt.Errorf("carddb: random_card: encode result: %w", err)
		}
		return string(out), nil
	}
	return FormatCard(card), nil
}

func (h *Handlers) getRulings(ctx context.Context, args string) (string, error) {
	var a getRulingsArgs
	if err := json.Unmarshal([]byte(args), &a); err != nil {
		return "", fmt.Errorf("carddb: get_rulings: failed to parse arguments: %w", err)
	}
	if strings.TrimSpace(a.CardName) == "" {
		return "", fmt.Errorf("carddb: get_rulings: card_name must not be empty")
	}

	// Rulings are keyed by Scryfall card ID, so resolve the name first.
	card, err := h.client.NamedCard(ctx, a.CardName, true, "")
	if errors.Is(err, upstream.ErrNotFound) {
		return "", fmt.Errorf("carddb: get_rulings: could not find card %q", a.CardName)
	}
	if err != nil {
		return "", describeUpstream("get_rulings", err)
	}

	rulings, err := h.client.Rulings(ctx, card.ID)
	if err != nil {
		return "", describeUpstream("get_rulings", err)
	}
	return FormatRulings(card.Name, rulings), nil
}

// clampLimit applies the default and bounds for result limits.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	}
	return limit
}

// describeUpstream turns pipeline errors into messages a user can act on.
func describeUpstream(op string, err error) error {
	var se *upstream.StatusError
	if errors.As(err, &se) {
		if se.Message != "" {
			return fmt.Errorf("carddb: %s: Scryfall rejected the request (HTTP %d): %s", op, se.Status, se.Message)
		}
		return fmt.Errorf("carddb: %s: Scryfall returned HTTP %d", op, se.Status)
	}
	var pe *upstream.ParseError
	if errors.As(err, &pe) {
		return fmt.Errorf("carddb: %s: Scryfall sent an unreadable response: %w", op, pe)
	}
	return fmt.Errorf("carddb: %s: %w", op, err)
}

// Tools returns the card database tools ready for registration.
func Tools(client *scryfall.Client) []tools.Tool {
	h := NewHandlers(client)
	return []tools.Tool{
		{
			Definition: tools.Definition{
				Name:        "scryfall_search_cards",
				Title:       "Search MTG Cards on Scryfall",
				Description: "Search Magic: The Gathering cards using Scryfall syntax. Operators: c:/color:, id:/identity: (color identity), t:/type:, o:/oracle: (rules text), cmc:/mv:, pow:/tou:, r:/rarity:, is:commander. Example: 'c:blue t:creature pow>=4'.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Scryfall search query, e.g. 'id:simic t:legendary' or 'o:\"draw a card\" cmc<=2'.",
						},
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of results to return (1-50, default 10).",
						},
						"order": map[string]any{
							"type":        "string",
							"description": "Sort order: name, released, set, rarity, color, usd, cmc, power, toughness, or edhrec.",
						},
						"response_format": map[string]any{
							"type":        "string",
							"enum":        []string{"markdown", "json"},
							"description": "Output format; markdown (default) for readable text, json for raw data.",
						},
					},
					"required": []string{"query"},
				},
				ReadOnly:   true,
				Idempotent: true,
				OpenWorld:  true,
			},
			Handler: h.searchCards,
		},
		{
			Definition: tools.Definition{
				Name:        "scryfall_get_card",
				Title:       "Get MTG Card by Name",
				Description: "Look up a single Magic: The Gathering card by name. Faster than searching when the name is known; fuzzy matching (default) tolerates typos and partial names.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name": map[string]any{
							"type":        "string",
							"description": "Card name to look up, e.g. 'Lightning Bolt' or 'Rhystic Study'.",
						},
						"fuzzy": map[string]any{
							"type":        "boolean",
							"description": "Allow fuzzy matching for typos and partial names (default true).",
						},
						"set_code": map[string]any{
							"type":        "string",
							"description": "Optional set code to pin a specific printing, e.g. 'mh2' or 'cmr'.",
						},
						"response_format": map[string]any{
							"type":        "string",
							"enum":        []string{"markdown", "json"},
							"description": "Output format; markdown (default) or json.",
						},
					},
					"required": []string{"name"},
				},
				ReadOnly:   true,
				Idempotent: true,
				OpenWorld:  true,
			},
			Handler: h.getCard,
		},
		{
			Definition: tools.Definition{
				Name:        "scryfall_random_card",
				Title:       "Get Random MTG Card",
				Description: "Fetch a random Magic: The Gathering card, optionally filtered by a Scryfall query. Good for discovery and deckbuilding inspiration.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Optional Scryfall query to restrict the random pool, e.g. 't:creature c:red'.",
						},
						"response_format": map[string]any{
							"type":        "string",
							"enum":        []string{"markdown", "json"},
							"description": "Output format; markdown (default) or json.",
						},
					},
				},
				ReadOnly:   true,
				Idempotent: false, // different card every call
				OpenWorld:  true,
			},
			Handler: h.randomCard,
		},
		{
			Definition: tools.Definition{
				Name:        "scryfall_get_rulings",
				Title:       "Get MTG Card Rulings",
				Description: "Fetch the official Wizards of the Coast rulings for a card. Useful for clarifying complex interactions.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"card_name": map[string]any{
							"type":        "string",
							"description": "Name of the card to get rulings for (fuzzy matched).",
						},
					},
					"required": []string{"card_name"},
				},
				ReadOnly:   true,
				Idempotent: true,
				OpenWorld:  true,
			},
			Handler: h.getRulings,
		},
	}
}
