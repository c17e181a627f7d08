package models

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

type SearchResponse struct {
	Results      []ServiceItem `json:"results"`
	Total        int           `json:"total"`
	ResponseTime int           `json:"response_time_ms"`
}

type AgentRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	UserInput string `json:"user_input" binding:"required"`
}

// AgentResponse is the full per-turn conversation payload
type AgentResponse struct {
	Intent            string         `json:"intent"`
	Response          string         `json:"response"`
	ConversationState string         `json:"conversation_state"`
	ShowServices      bool           `json:"show_services"`
	Services          []ServiceItem  `json:"services,omitempty"`
	SelectedServices  []ServiceItem  `json:"selected_services,omitempty"`
	OrderSummary      *OrderSummary  `json:"order_summary,omitempty"`
	OrderCreated      *OrderSummary  `json:"order_created,omitempty"`
	Context           *RepairContext `json:"context,omitempty"`
	SessionID         string         `json:"session_id"`
}

// SessionView is the read-only projection of a session's state
type SessionView struct {
	SessionID              string `json:"session_id"`
	UserName               string `json:"user_name,omitempty"`
	ConversationState      string `json:"conversation_state"`
	SuggestedServicesCount int    `json:"suggested_services_count"`
	SelectedServicesCount  int    `json:"selected_services_count"`
	HasPendingOrder        bool   `json:"has_pending_order"`
}
