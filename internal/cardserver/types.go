package cardserver

// Song is one cell of a card on the wire, 1-based id within the card.
type Song struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// CardLoad is the engine's card push payload.
type CardLoad struct {
	CardNbr int    `json:"card_nbr"`
	Songs   []Song `json:"songs"`
}

// MiscData carries the display metadata the engine pushes alongside cards.
// NumberOfPlayers travels as a string; deployed clients send it that way.
type MiscData struct {
	PlaylistName    string `json:"playlist_name"`
	NumberOfPlayers string `json:"number_of_players"`
	RefreshFlag     bool   `json:"refresh_flag"`
}

// VotesRequired sets the skip-vote threshold.
type VotesRequired struct {
	VotesRequired int `json:"votes_required"`
}

// WinClaim is a player's assertion that their card has bingo.
type WinClaim struct {
	CardClaimingWin int `json:"card_claiming_win"`
}

// ClearRefresh is a player's acknowledgement of its refresh flag.
type ClearRefresh struct {
	PlayerNbr int `json:"player_nbr"`
}
