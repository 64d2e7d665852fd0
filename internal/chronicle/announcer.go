package chronicle

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"hearthrealm/internal/game"
)

// Announcer posts world tick summaries to a Discord channel.
type Announcer struct {
	session *discordgo.Session
	channel string
}

// NewAnnouncer returns nil, nil when token or channel is empty.
func NewAnnouncer(token, channel string) (*Announcer, error) {
	token, channel = strings.TrimSpace(token), strings.TrimSpace(channel)
	if token == "" || channel == "" {
		return nil, nil
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &Announcer{session: s, channel: channel}, nil
}

func (a *Announcer) Announce(rep game.TickReport) error {
	if a == nil {
		return nil
	}
	_, err := a.session.ChannelMessageSend(a.channel, TickSummary(rep))
	return err
}

func (a *Announcer) Close() error {
	if a == nil {
		return nil
	}
	return a.session.Close()
}

// TickSummary renders a tick report as a short chat message.
func TickSummary(rep game.TickReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** has begun.\n", rep.Calendar)
	var births, deaths, starved, moved int
	for _, st := range rep.Settlements {
		births += st.Life.Births
		deaths += st.Life.Deaths
		starved += st.Starved
		moved += st.Emigrated
		if !st.FullyFed {
			fmt.Fprintf(&b, "Food ran short in %s: %d went hungry.\n", st.Name, st.Hungry)
		}
	}
	fmt.Fprintf(&b, "Births %d, deaths %d", births, deaths)
	if starved > 0 {
		fmt.Fprintf(&b, " (%d starved)", starved)
	}
	if moved > 0 {
		fmt.Fprintf(&b, ", %d villagers moved away", moved)
	}
	b.WriteString(".")
	if rep.PetitionsApproved > 0 {
		fmt.Fprintf(&b, "\n%d petition(s) granted by default.", rep.PetitionsApproved)
	}
	return b.String()
}
