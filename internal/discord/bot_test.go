package discord

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestExtractQuestion(t *testing.T) {
	t.Parallel()

	const botID = "bot-1"

	tests := []struct {
		name    string
		content string
		guildID string
		want    string
		wantOK  bool
	}{
		{
			name:    "mention with question",
			content: "<@bot-1> what does Lightning Bolt do?",
			guildID: "guild-1",
			want:    "what does Lightning Bolt do?",
			wantOK:  true,
		},
		{
			name:    "nickname mention",
			content: "<@!bot-1> price of Mana Crypt",
			guildID: "guild-1",
			want:    "price of Mana Crypt",
			wantOK:  true,
		},
		{
			name:    "mention mid-message",
			content: "hey <@bot-1> can Thoracle win here?",
			guildID: "guild-1",
			want:    "hey  can Thoracle win here?",
			wantOK:  true,
		},
		{
			name:    "prefix",
			content: "!mtg search t:goblin",
			guildID: "guild-1",
			want:    "search t:goblin",
			wantOK:  true,
		},
		{
			name:    "unaddressed guild message ignored",
			content: "anyone up for a game tonight?",
			guildID: "guild-1",
			wantOK:  false,
		},
		{
			name:    "direct message always handled",
			content: "how does cascade work?",
			guildID: "",
			want:    "how does cascade work?",
			wantOK:  true,
		},
		{
			name:    "bare mention ignored",
			content: "<@bot-1>",
			guildID: "guild-1",
			wantOK:  false,
		},
		{
			name:    "empty prefix ignored",
			content: "!mtg ",
			guildID: "guild-1",
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msg := &discordgo.Message{Content: tt.content, GuildID: tt.guildID}
			got, ok := extractQuestion(msg, botID, "!mtg ")
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("question = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	short := "fits fine"
	if got := truncate(short, maxMessageLength); got != short {
		t.Errorf("short message modified: %q", got)
	}

	long := strings.Repeat("a", maxMessageLength+500)
	got := truncate(long, maxMessageLength)
	if len(got) > maxMessageLength {
		t.Errorf("truncated message is %d chars, limit %d", len(got), maxMessageLength)
	}
	if !strings.HasSuffix(got, "(truncated)") {
		t.Errorf("truncation marker missing: %q", got[len(got)-30:])
	}

	// A multi-byte rune straddling the cut must not be split.
	long = strings.Repeat("é", maxMessageLength)
	got = truncate(long, maxMessageLength)
	if !strings.HasSuffix(strings.TrimSuffix(got, "\n… (truncated)"), "é") {
		t.Error("cut landed inside a rune")
	}
}

func TestNew_RequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("expected an error for an empty token")
	}
}
