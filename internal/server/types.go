package server

// Request and response shapes for the HTTP API. All amounts and prices
// travel as decimal strings; the values exceed what fits in a JSON number.

type RegisterRequest struct {
	Token int `json:"token"`
}

type RegisterResponse struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

type SetPriceRequest struct {
	Price string `json:"price"`
}

type PriceResponse struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
}

type SyntheticPriceResponse struct {
	Price string `json:"price"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

type PlaceBetRequest struct {
	Asset     string `json:"asset"`
	Token     int    `json:"token"`
	Amount    string `json:"amount"`
	Direction string `json:"direction"`
}

type BetResponse struct {
	Account     string `json:"account"`
	Asset       string `json:"asset"`
	EntryPrice  string `json:"entryPrice"`
	StakeToken  string `json:"stakeToken"`
	StakeAmount string `json:"stakeAmount"`
	Direction   string `json:"direction"`
}

type CloseBetResponse struct {
	Account string `json:"account"`
	Payout  string `json:"payout"`
}

type BuyWordRequest struct {
	Token int `json:"token"`
}

type BuyWordResponse struct {
	Account string `json:"account"`
	Word    string `json:"word"`
}

type WordsResponse struct {
	Account string   `json:"account"`
	Words   []string `json:"words"`
	Count   int      `json:"count"`
}

type RegistrationCountResponse struct {
	Count int `json:"count"`
}

type StatusResponse struct {
	Sequence       int64  `json:"sequence"`
	SyntheticPrice string `json:"syntheticPrice"`
	Registrations  int    `json:"registrations"`
	TrackedAssets  int    `json:"trackedAssets"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
