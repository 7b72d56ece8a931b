package server

import "quester/tools/websearch"

// AgentQuery is the request body of POST /api/query-agent.
type AgentQuery struct {
	Message               string `json:"message"`
	ThreadID              string `json:"thread_id"`
	IsResponseToInterrupt bool   `json:"is_response_to_interrupt"`
}

// ThreadResponse carries a newly created thread id.
type ThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

// ChatMessage is one visible transcript entry in the state endpoint.
type ChatMessage struct {
	ID      string             `json:"id"`
	Role    string             `json:"role"`
	Content string             `json:"content"`
	Results []websearch.Result `json:"results,omitempty"`
}

// StateResponse is the response of GET /api/state/:thread_id.
type StateResponse struct {
	ThreadID         string        `json:"thread_id"`
	Status           string        `json:"status"`
	PendingInterrupt string        `json:"pending_interrupt,omitempty"`
	Messages         []ChatMessage `json:"messages"`
}

// AuthSignupRequest is the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest is the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a signed JWT.
type TokenResponse struct {
	Token string `json:"token"`
}

// HTTPError is the unified error body.
type HTTPError struct {
	Error string `json:"error"`
}
