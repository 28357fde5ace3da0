package server

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// ResultResponse describes the files produced by one request.
type ResultResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	ID         string            `json:"id"`
	Selections map[string]string `json:"selections"`
	Files      map[string]string `json:"files"`
}
