package models

// Domain models shared by the search engine and the conversation agent.

// CatalogRecord is one row of the repair-service catalog. The catalog is
// loaded once at startup and never mutated afterwards.
type CatalogRecord struct {
	RepairerType   string   `json:"repairer_type"`
	Category       string   `json:"category"`
	GarmentType    string   `json:"garment_type"`
	Service        string   `json:"service"`
	Description    string   `json:"description"`
	Price          float64  `json:"price"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
}

// Match bucket labels, in ranking priority order
const (
	MatchExactService   = "exact_service"
	MatchPartialService = "partial_service"
	MatchDescription    = "description"
	MatchGeneral        = "general"
	MatchSemantic       = "semantic"
)

// MatchSemanticOnly is the match detail used when no search term matched
const MatchSemanticOnly = "semantic_only"

// ServiceItem is the search-result projection of a CatalogRecord. The id is
// synthetic and only meaningful within a single response.
type ServiceItem struct {
	ID              string   `json:"id"`
	Service         string   `json:"service"`
	Description     string   `json:"description"`
	Price           float64  `json:"price"`
	GarmentType     string   `json:"garment_type"`
	RepairerType    string   `json:"repairer_type"`
	EstimatedHours  *float64 `json:"estimated_hours,omitempty"`
	SimilarityScore float64  `json:"similarity_score"`
	MatchType       string   `json:"match_type"`
	MatchDetail     string   `json:"match_detail"`
	SearchTerms     []string `json:"search_terms"`
}

// OrderSummary is immutable once created. A preview has an empty OrderID and
// CreatedAt; finalizing fills both in.
type OrderSummary struct {
	OrderID             string        `json:"order_id"`
	Services            []ServiceItem `json:"services"`
	TotalPrice          float64       `json:"total_price"`
	EstimatedTotalHours *float64      `json:"estimated_total_hours,omitempty"`
	CreatedAt           string        `json:"created_at"`
}

// RepairContext holds the entities extracted from free text. Fields
// accumulate across turns; a later mention never erases an earlier one.
type RepairContext struct {
	GarmentType string `json:"garment_type,omitempty"`
	FabricType  string `json:"fabric_type,omitempty"`
	DamageType  string `json:"damage_type,omitempty"`
}

// Empty reports whether no entity was extracted
func (c RepairContext) Empty() bool {
	return c.GarmentType == "" && c.FabricType == "" && c.DamageType == ""
}

// Merge overlays the non-empty fields of other onto c
func (c *RepairContext) Merge(other RepairContext) {
	if other.GarmentType != "" {
		c.GarmentType = other.GarmentType
	}
	if other.FabricType != "" {
		c.FabricType = other.FabricType
	}
	if other.DamageType != "" {
		c.DamageType = other.DamageType
	}
}

// Phase is the conversation state machine's current named state
type Phase string

const (
	PhaseGreeting       Phase = "greeting"
	PhaseSearching      Phase = "searching"
	PhaseSelecting      Phase = "selecting"
	PhaseManualAddition Phase = "manual_addition"
	PhaseConfirming     Phase = "confirming"
	PhaseCompleted      Phase = "completed"
)

// Intent is the discrete classification of a user utterance
type Intent string

const (
	IntentGreeting              Intent = "greeting"
	IntentRepairRequest         Intent = "repair_request"
	IntentServiceSelection      Intent = "service_selection"
	IntentConfirmation          Intent = "confirmation"
	IntentCancel                Intent = "cancel"
	IntentManualAdditionRequest Intent = "manual_addition_request"
	IntentDeclineAddition       Intent = "decline_addition"
	IntentIntroduceSelf         Intent = "introduce_self"
	IntentUnknown               Intent = "unknown"
)

// HistoryEntry is one turn in a session's append-only conversation log
type HistoryEntry struct {
	Role    string        `json:"role"`
	Content string        `json:"content"`
	Intent  Intent        `json:"intent,omitempty"`
	Context RepairContext `json:"context,omitempty"`
}
