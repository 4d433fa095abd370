package room

import (
	"errors"
	"fmt"
	"time"

	"cardroom-server/internal/cards"
)

const (
	MaxPlayers = 4
	HandSize   = 13
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Kind separates four-seat card rooms from free-form chat rooms. Both live
// in the same store and share the registry.
type Kind string

const (
	KindCard Kind = "card"
	KindChat Kind = "chat"
)

var ErrInvariant = errors.New("room invariant violated")

type Player struct {
	Name   string       `json:"name"`
	ConnID string       `json:"connection_id"`
	Hand   []cards.Card `json:"hand"`
	Ready  bool         `json:"ready"`
}

type Play struct {
	ConnID string     `json:"connection_id"`
	Card   cards.Card `json:"card"`
}

// Room is the authoritative state of one game. Players is kept in seating
// order, which is also the turn order.
type Room struct {
	Name        string       `json:"name"`
	Kind        Kind         `json:"kind"`
	Players     []Player     `json:"players"`
	Deck        []cards.Card `json:"deck_remainder"`
	Played      []Play       `json:"played_cards"`
	CurrentTurn string       `json:"current_turn,omitempty"`
	Round       int          `json:"round"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// PlayerPublic is what other connections may see of a player. Connection ids
// are never exposed and the hand is only filled in for its owner.
type PlayerPublic struct {
	Name  string       `json:"name"`
	Hand  []cards.Card `json:"hand,omitempty"`
	Ready bool         `json:"ready"`
}

func New(name string, kind Kind, now time.Time) *Room {
	return &Room{
		Name:      name,
		Kind:      kind,
		Players:   []Player{},
		Deck:      []cards.Card{},
		Played:    []Play{},
		Status:    StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Seat returns the seating index of conn, or -1.
func (r *Room) Seat(conn string) int {
	for i := range r.Players {
		if r.Players[i].ConnID == conn {
			return i
		}
	}
	return -1
}

func (r *Room) PlayerByConn(conn string) *Player {
	if i := r.Seat(conn); i >= 0 {
		return &r.Players[i]
	}
	return nil
}

func (r *Room) PlayerByName(name string) *Player {
	for i := range r.Players {
		if r.Players[i].Name == name {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) Full() bool {
	return r.Kind == KindCard && len(r.Players) >= MaxPlayers
}

func (r *Room) Names() []string {
	names := make([]string, len(r.Players))
	for i, p := range r.Players {
		names[i] = p.Name
	}
	return names
}

func (r *Room) ConnIDs() []string {
	ids := make([]string, len(r.Players))
	for i, p := range r.Players {
		ids[i] = p.ConnID
	}
	return ids
}

// Public renders the player list for viewer. Pass "" to hide every hand.
func (r *Room) Public(viewer string) []PlayerPublic {
	out := make([]PlayerPublic, len(r.Players))
	for i, p := range r.Players {
		out[i] = PlayerPublic{Name: p.Name, Ready: p.Ready}
		if viewer != "" && p.ConnID == viewer {
			out[i].Hand = append([]cards.Card(nil), p.Hand...)
		}
	}
	return out
}

func (r *Room) AllReady() bool {
	if len(r.Players) < MaxPlayers {
		return false
	}
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// NextSeat returns the connection seated after conn, wrapping around.
// Vacated seats are gone from Players, so the cycle shrinks with them.
func (r *Room) NextSeat(conn string) string {
	if len(r.Players) == 0 {
		return ""
	}
	i := r.Seat(conn)
	if i < 0 {
		return r.Players[0].ConnID
	}
	return r.Players[(i+1)%len(r.Players)].ConnID
}

// RemovePlayer unseats conn and returns the removed player and the seat it
// held. The player's cards go back to the end of the deck remainder.
func (r *Room) RemovePlayer(conn string) (Player, int, bool) {
	i := r.Seat(conn)
	if i < 0 {
		return Player{}, -1, false
	}
	p := r.Players[i]
	r.Players = append(r.Players[:i:i], r.Players[i+1:]...)
	r.Deck = append(r.Deck, p.Hand...)
	return p, i, true
}

func (r *Room) HandsEmpty() bool {
	for _, p := range r.Players {
		if len(p.Hand) > 0 {
			return false
		}
	}
	return true
}

// CardCount sums seated hands, the undealt remainder and the played pile.
func (r *Room) CardCount() int {
	n := len(r.Deck) + len(r.Played)
	for _, p := range r.Players {
		n += len(p.Hand)
	}
	return n
}

func (r *Room) allCards() [][]cards.Card {
	piles := make([][]cards.Card, 0, len(r.Players)+2)
	for _, p := range r.Players {
		piles = append(piles, p.Hand)
	}
	piles = append(piles, r.Deck)
	played := make([]cards.Card, len(r.Played))
	for i, p := range r.Played {
		played[i] = p.Card
	}
	return append(piles, played)
}

// Validate checks the structural invariants every committed room must hold.
func (r *Room) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvariant)
	}

	names := make(map[string]bool, len(r.Players))
	conns := make(map[string]bool, len(r.Players))
	for _, p := range r.Players {
		if names[p.Name] {
			return fmt.Errorf("%w: duplicate name %q", ErrInvariant, p.Name)
		}
		if conns[p.ConnID] {
			return fmt.Errorf("%w: duplicate connection %q", ErrInvariant, p.ConnID)
		}
		names[p.Name] = true
		conns[p.ConnID] = true
	}

	if r.Kind == KindChat {
		return nil
	}

	if len(r.Players) > MaxPlayers {
		return fmt.Errorf("%w: %d players seated", ErrInvariant, len(r.Players))
	}
	if r.Status == StatusPlaying && r.Seat(r.CurrentTurn) < 0 {
		return fmt.Errorf("%w: current turn %q is not seated", ErrInvariant, r.CurrentTurn)
	}
	if n := r.CardCount(); n != cards.DeckSize {
		return fmt.Errorf("%w: %d cards in room", ErrInvariant, n)
	}
	if !cards.Unique(r.allCards()...) {
		return fmt.Errorf("%w: duplicate cards", ErrInvariant)
	}
	return nil
}
