package snapdto

// ErrorResponse is the bare {error} envelope every endpoint may answer with.
type ErrorResponse struct {
	Error string `json:"error"`
}
