package cards

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidCard = errors.New("INVALID_CARD: Card not recognised")

type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

var suitSymbol = map[Suit]string{
	Spades:   "♠",
	Hearts:   "♥",
	Diamonds: "♦",
	Clubs:    "♣",
}

// ASCII letters accepted from clients that cannot type the symbols.
var suitLetter = map[string]Suit{
	"S": Spades,
	"H": Hearts,
	"D": Diamonds,
	"C": Clubs,
}

func (s Suit) String() string {
	return suitSymbol[s]
}

type Rank int

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

var rankString = map[Rank]string{
	Ace:   "A",
	Two:   "2",
	Three: "3",
	Four:  "4",
	Five:  "5",
	Six:   "6",
	Seven: "7",
	Eight: "8",
	Nine:  "9",
	Ten:   "10",
	Jack:  "J",
	Queen: "Q",
	King:  "K",
}

var weights = map[Rank]int{
	Two:   2,
	Three: 3,
	Four:  4,
	Five:  5,
	Six:   6,
	Seven: 7,
	Eight: 8,
	Nine:  9,
	Ten:   10,
	Jack:  10,
	Queen: 10,
	King:  10,
	Ace:   14,
}

func (r Rank) String() string {
	return rankString[r]
}

// Card is an immutable (rank, suit) pair. It encodes to JSON as its display
// string, e.g. "10♠".
type Card struct {
	Rank Rank
	Suit Suit
}

func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Weight is the scoring value of the card. Play validation does not use it.
func (c Card) Weight() int {
	return weights[c.Rank]
}

func (c Card) Valid() bool {
	_, okRank := rankString[c.Rank]
	_, okSuit := suitSymbol[c.Suit]
	return okRank && okSuit
}

func (c Card) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: rank %d suit %d", ErrInvalidCard, c.Rank, c.Suit)
	}
	return json.Marshal(c.String())
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCard, string(data))
	}
	parsed, err := ParseCard(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard reads a display string such as "10♠" or "Q♦". "T" is accepted
// for ten and S/H/D/C for the suits.
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Card{}, ErrInvalidCard
	}

	var suit Suit
	found := false
	for st, sym := range suitSymbol {
		if strings.HasSuffix(s, sym) {
			suit = st
			s = strings.TrimSuffix(s, sym)
			found = true
			break
		}
	}
	if !found {
		last := strings.ToUpper(s[len(s)-1:])
		st, ok := suitLetter[last]
		if !ok {
			return Card{}, fmt.Errorf("%w: %q", ErrInvalidCard, s)
		}
		suit = st
		s = s[:len(s)-1]
	}

	s = strings.ToUpper(s)
	if s == "T" {
		s = "10"
	}
	for rank, str := range rankString {
		if str == s {
			return Card{Rank: rank, Suit: suit}, nil
		}
	}
	return Card{}, fmt.Errorf("%w: rank %q", ErrInvalidCard, s)
}

func Contains(hand []Card, card Card) bool {
	return IndexOf(hand, card) >= 0
}

func IndexOf(hand []Card, card Card) int {
	for i, c := range hand {
		if c == card {
			return i
		}
	}
	return -1
}

// Remove returns a new slice without the first occurrence of card and
// reports whether it was found. The input slice is not modified.
func Remove(hand []Card, card Card) ([]Card, bool) {
	i := IndexOf(hand, card)
	if i < 0 {
		return hand, false
	}
	out := make([]Card, 0, len(hand)-1)
	out = append(out, hand[:i]...)
	out = append(out, hand[i+1:]...)
	return out, true
}

// Unique reports whether no card appears twice across all the given piles.
func Unique(piles ...[]Card) bool {
	seen := make(map[Card]bool)
	for _, pile := range piles {
		for _, c := range pile {
			if seen[c] {
				return false
			}
			seen[c] = true
		}
	}
	return true
}
