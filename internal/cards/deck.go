package cards

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

const DeckSize = 52

var ErrInsufficientCards = errors.New("INSUFFICIENT_CARDS: Not enough cards left in the deck")

// Source supplies randomness for shuffling and seat selection. *rand.Rand
// from math/rand/v2 satisfies it.
type Source interface {
	Shuffle(n int, swap func(i, j int))
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }
func (globalSource) IntN(n int) int                    { return rand.IntN(n) }

// DefaultSource delegates to the auto-seeded math/rand/v2 generator and is
// safe for concurrent use.
var DefaultSource Source = globalSource{}

// NewDeck returns the 52 cards in canonical order: suits ♠ ♥ ♦ ♣, ranks A..K.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	suits := []Suit{Spades, Hearts, Diamonds, Clubs}

	for _, suit := range suits {
		for rank := Ace; rank <= King; rank++ {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}

	return deck
}

func NewShuffledDeck(src Source) []Card {
	if src == nil {
		src = DefaultSource
	}
	deck := NewDeck()
	src.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// Deal takes the first n cards. The returned slices do not alias deck.
func Deal(deck []Card, n int) (hand []Card, remainder []Card, err error) {
	if n < 0 || n > len(deck) {
		return nil, deck, fmt.Errorf("%w: want %d, have %d", ErrInsufficientCards, n, len(deck))
	}
	hand = append([]Card(nil), deck[:n]...)
	remainder = append([]Card(nil), deck[n:]...)
	return hand, remainder, nil
}
