package scryfall

// Card is the subset of a Scryfall card object that the tool layer shapes
// into summaries. Scryfall returns many more fields; anything not listed
// here is dropped at decode time.
type Card struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	ManaCost      string            `json:"mana_cost"`
	TypeLine      string            `json:"type_line"`
	OracleText    string            `json:"oracle_text"`
	Power         string            `json:"power"`
	Toughness     string            `json:"toughness"`
	Loyalty       string            `json:"loyalty"`
	Colors        []string          `json:"colors"`
	ColorIdentity []string          `json:"color_identity"`
	SetName       string            `json:"set_name"`
	SetCode       string            `json:"set"`
	Rarity        string            `json:"rarity"`
	Legalities    map[string]string `json:"legalities"`
	Prices        Prices            `json:"prices"`
	EDHRecRank    int               `json:"edhrec_rank"`
	ScryfallURI   string            `json:"scryfall_uri"`
}

// Prices holds the price points Scryfall reports as strings (or null).
type Prices struct {
	USD     string `json:"usd"`
	USDFoil string `json:"usd_foil"`
}

// CardList is Scryfall's paged list envelope for card searches.
type CardList struct {
	TotalCards int    `json:"total_cards"`
	HasMore    bool   `json:"has_more"`
	Data       []Card `json:"data"`
}

// Ruling is a single official ruling attached to a card.
type Ruling struct {
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	Comment     string `json:"comment"`
}

// RulingList is Scryfall's list envelope for rulings.
type RulingList struct {
	Data []Ruling `json:"data"`
}
