package scan

import (
	"errors"
	"net/url"

	"github.com/park285/ChessSnap-PDF/pkg/snapdto"
)

var ErrInvalidSite = errors.New("invalid site")

// BuildGameLink maps a validated position encoding to the analysis page of
// the chosen site. Lichess takes the encoding as a path segment, chess.com
// as a query parameter.
func BuildGameLink(site, fen string) (string, error) {
	switch site {
	case snapdto.SiteLichess:
		return "https://lichess.org/editor/" + url.PathEscape(fen), nil
	case snapdto.SiteChessCom:
		return "https://www.chess.com/analysis?fen=" + url.QueryEscape(fen), nil
	default:
		return "", ErrInvalidSite
	}
}
