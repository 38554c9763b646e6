package models

// Card names referenced by the rules engine. The engine dispatches on the
// definition a command resolves to, never on free-form strings from clients.
const (
	CardMurderer   = "You are the Murderer!"
	CardAccomplice = "You are the Accomplice!"
	CardEscape     = "The Murderer Escapes!"

	CardLookIntoAshes = "Look Into the Ashes"
	CardEscapeDelay   = "Delay the Murderer's Escape!"
	CardOneMore       = "And Then There Was One More..."

	CardAnotherVictim = "Another Victim!"
	CardSweepTable    = "Cards off the Table!"
	CardNotSoFast     = "Not So Fast!"

	CardPoirot        = "Hercule Poirot"
	CardMarple        = "Miss Marple"
	CardPyne          = "Parker Pyne"
	CardTommy         = "Tommy Beresford"
	CardTuppence      = "Tuppence Beresford"
	CardBrent         = "Lady Eileen Brent"
	CardSatterthwaite = "Mr. Satterthwaite"
	CardWildcard      = "Harley Quin"
)

// DefaultCatalog returns the standard card set. Definition ids are stable
// across games so persisted instances stay resolvable.
func DefaultCatalog() []CardDefinition {
	return []CardDefinition{
		// Secrets. The murderer (and, in larger games, the accomplice) is
		// dealt to exactly one player; the rest pad secret sets to three.
		{ID: 1, Name: CardMurderer, Type: CardTypeSecret, Copies: 1},
		{ID: 2, Name: CardAccomplice, Type: CardTypeSecret, Copies: 1},
		{ID: 3, Name: "Secret: Gambling Debts", Type: CardTypeSecret, Copies: 3},
		{ID: 4, Name: "Secret: False Identity", Type: CardTypeSecret, Copies: 3},
		{ID: 5, Name: "Secret: Blackmail Letters", Type: CardTypeSecret, Copies: 3},
		{ID: 6, Name: "Secret: Forged Will", Type: CardTypeSecret, Copies: 3},
		{ID: 7, Name: "Secret: Secret Affair", Type: CardTypeSecret, Copies: 3},
		{ID: 8, Name: "Secret: Stolen Jewels", Type: CardTypeSecret, Copies: 3},

		// Detectives.
		{ID: 10, Name: CardPoirot, Type: CardTypeDetective, Copies: 6},
		{ID: 11, Name: CardMarple, Type: CardTypeDetective, Copies: 6},
		{ID: 12, Name: CardPyne, Type: CardTypeDetective, Copies: 5},
		{ID: 13, Name: CardTommy, Type: CardTypeDetective, Copies: 4},
		{ID: 14, Name: CardTuppence, Type: CardTypeDetective, Copies: 4},
		{ID: 15, Name: CardBrent, Type: CardTypeDetective, Copies: 4},
		{ID: 16, Name: CardSatterthwaite, Type: CardTypeDetective, Copies: 4},
		{ID: 17, Name: CardWildcard, Type: CardTypeDetective, Copies: 3},

		// Events.
		{ID: 20, Name: CardLookIntoAshes, Type: CardTypeEvent, Copies: 3},
		{ID: 21, Name: CardEscapeDelay, Type: CardTypeEvent, Copies: 2},
		{ID: 22, Name: CardOneMore, Type: CardTypeEvent, Copies: 2},

		// Devious.
		{ID: 30, Name: CardAnotherVictim, Type: CardTypeDevious, Copies: 2},
		{ID: 31, Name: CardSweepTable, Type: CardTypeDevious, Copies: 2},

		// Instants.
		{ID: 40, Name: CardNotSoFast, Type: CardTypeInstant, Copies: 8},

		// The end card closing the game when it surfaces from the deck.
		{ID: 50, Name: CardEscape, Type: CardTypeEnd, Copies: 1},
	}
}
