package snapdto

const (
	SiteLichess  = "lichess"
	SiteChessCom = "chess.com"
)

type StartGameRequest struct {
	Site string `json:"site"`
	FEN  string `json:"fen"`
}

type StartGameResponse struct {
	RedirectURL string `json:"redirect_url"`
	Error       string `json:"error,omitempty"`
}
