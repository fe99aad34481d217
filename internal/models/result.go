package models

// Conflict describes a divergence between the client's last-known server
// revision and the actual server revision detected at sync time
type Conflict struct {
	ItemID     string        `json:"itemId"`
	Operation  OperationKind `json:"operation"`
	EntityType string        `json:"entityType"`
	EntityID   string        `json:"entityId"`
	Details    string        `json:"details"`
}

// ProcessResult aggregates the outcome of one sync pass
type ProcessResult struct {
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}
