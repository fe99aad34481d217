package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OperationKind identifies which backend mutation a queue item replays
type OperationKind string

const (
	OpWorkOrderStatusUpdate OperationKind = "work_order_status_update"
	OpWorkOrderNoteCreate   OperationKind = "work_order_note_create"
	OpCostEntryCreate       OperationKind = "cost_entry_create"
	OpChecklistReplace      OperationKind = "pm_checklist_replace"
	OpInventoryAdjust       OperationKind = "inventory_adjust"
)

// BlindApplySafe reports whether this operation may still be applied when the
// server revision has moved past the client's last-known revision. Delta and
// field-level writes resolve last-write-wins; a bulk checklist replace would
// silently discard another user's rows, so it is not applied on conflict.
func (k OperationKind) BlindApplySafe() bool {
	return k != OpChecklistReplace
}

// Valid reports whether the kind is a known operation
func (k OperationKind) Valid() bool {
	switch k {
	case OpWorkOrderStatusUpdate, OpWorkOrderNoteCreate, OpCostEntryCreate,
		OpChecklistReplace, OpInventoryAdjust:
		return true
	}
	return false
}

// PayloadError describes a payload that failed validation at enqueue time
type PayloadError struct {
	Field  string
	Reason string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid payload: %s: %s", e.Field, e.Reason)
}

// Payload is the operation-specific data needed to replay a mutation
type Payload interface {
	Kind() OperationKind
	EntityType() string
	EntityID() string
	Validate() error
}

// Work order statuses matching the backend WorkOrderStatus enum
const (
	WorkOrderSubmitted  = "submitted"
	WorkOrderAccepted   = "accepted"
	WorkOrderAssigned   = "assigned"
	WorkOrderInProgress = "in_progress"
	WorkOrderOnHold     = "on_hold"
	WorkOrderCompleted  = "completed"
	WorkOrderCancelled  = "cancelled"
)

var workOrderStatuses = map[string]bool{
	WorkOrderSubmitted:  true,
	WorkOrderAccepted:   true,
	WorkOrderAssigned:   true,
	WorkOrderInProgress: true,
	WorkOrderOnHold:     true,
	WorkOrderCompleted:  true,
	WorkOrderCancelled:  true,
}

// WorkOrderStatusUpdate transitions a work order to a new status
type WorkOrderStatusUpdate struct {
	WorkOrderID string  `json:"workOrderId"`
	Status      string  `json:"status"`
	Note        *string `json:"note,omitempty"`
}

func (p WorkOrderStatusUpdate) Kind() OperationKind { return OpWorkOrderStatusUpdate }
func (p WorkOrderStatusUpdate) EntityType() string  { return "work_orders" }
func (p WorkOrderStatusUpdate) EntityID() string    { return p.WorkOrderID }

func (p WorkOrderStatusUpdate) Validate() error {
	if strings.TrimSpace(p.WorkOrderID) == "" {
		return &PayloadError{Field: "workOrderId", Reason: "must not be empty"}
	}
	if !workOrderStatuses[p.Status] {
		return &PayloadError{Field: "status", Reason: fmt.Sprintf("unknown status %q", p.Status)}
	}
	return nil
}

// WorkOrderNoteCreate attaches a note to a work order, optionally with
// hours worked recorded by the work timer
type WorkOrderNoteCreate struct {
	WorkOrderID string   `json:"workOrderId"`
	Content     string   `json:"content"`
	HoursWorked *float64 `json:"hoursWorked,omitempty"`
}

func (p WorkOrderNoteCreate) Kind() OperationKind { return OpWorkOrderNoteCreate }
func (p WorkOrderNoteCreate) EntityType() string  { return "work_orders" }
func (p WorkOrderNoteCreate) EntityID() string    { return p.WorkOrderID }

func (p WorkOrderNoteCreate) Validate() error {
	if strings.TrimSpace(p.WorkOrderID) == "" {
		return &PayloadError{Field: "workOrderId", Reason: "must not be empty"}
	}
	if strings.TrimSpace(p.Content) == "" {
		return &PayloadError{Field: "content", Reason: "must not be empty"}
	}
	if p.HoursWorked != nil && *p.HoursWorked < 0 {
		return &PayloadError{Field: "hoursWorked", Reason: "must not be negative"}
	}
	return nil
}

// CostEntryCreate records a cost against a work order
type CostEntryCreate struct {
	WorkOrderID string `json:"workOrderId"`
	Description string `json:"description"`
	AmountCents int64  `json:"amountCents"`
}

func (p CostEntryCreate) Kind() OperationKind { return OpCostEntryCreate }
func (p CostEntryCreate) EntityType() string  { return "work_orders" }
func (p CostEntryCreate) EntityID() string    { return p.WorkOrderID }

func (p CostEntryCreate) Validate() error {
	if strings.TrimSpace(p.WorkOrderID) == "" {
		return &PayloadError{Field: "workOrderId", Reason: "must not be empty"}
	}
	if strings.TrimSpace(p.Description) == "" {
		return &PayloadError{Field: "description", Reason: "must not be empty"}
	}
	if p.AmountCents < 0 {
		return &PayloadError{Field: "amountCents", Reason: "must not be negative"}
	}
	return nil
}

// ChecklistItem is one entry in a preventive-maintenance checklist
type ChecklistItem struct {
	ItemID    string  `json:"itemId"`
	Title     string  `json:"title"`
	Condition *int    `json:"condition,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

// ChecklistReplace replaces the full checklist of a PM record in one call.
// Duplicate item ids are collapsed first-occurrence-wins before the payload
// is persisted.
type ChecklistReplace struct {
	PMID  string          `json:"pmId"`
	Items []ChecklistItem `json:"items"`
}

func (p ChecklistReplace) Kind() OperationKind { return OpChecklistReplace }
func (p ChecklistReplace) EntityType() string  { return "preventative_maintenance" }
func (p ChecklistReplace) EntityID() string    { return p.PMID }

func (p ChecklistReplace) Validate() error {
	if strings.TrimSpace(p.PMID) == "" {
		return &PayloadError{Field: "pmId", Reason: "must not be empty"}
	}
	for i, item := range p.Items {
		if strings.TrimSpace(item.ItemID) == "" {
			return &PayloadError{Field: fmt.Sprintf("items[%d].itemId", i), Reason: "must not be empty"}
		}
		if strings.TrimSpace(item.Title) == "" {
			return &PayloadError{Field: fmt.Sprintf("items[%d].title", i), Reason: "must not be empty"}
		}
	}
	return nil
}

// Normalize returns a copy with duplicate item ids removed, keeping the
// first occurrence of each id
func (p ChecklistReplace) Normalize() ChecklistReplace {
	seen := make(map[string]bool, len(p.Items))
	items := make([]ChecklistItem, 0, len(p.Items))
	for _, item := range p.Items {
		if seen[item.ItemID] {
			continue
		}
		seen[item.ItemID] = true
		items = append(items, item)
	}
	return ChecklistReplace{PMID: p.PMID, Items: items}
}

// InventoryAdjust applies a signed quantity delta to an inventory item
type InventoryAdjust struct {
	InventoryItemID string  `json:"inventoryItemId"`
	Delta           int64   `json:"delta"`
	Reason          *string `json:"reason,omitempty"`
}

func (p InventoryAdjust) Kind() OperationKind { return OpInventoryAdjust }
func (p InventoryAdjust) EntityType() string  { return "inventory_items" }
func (p InventoryAdjust) EntityID() string    { return p.InventoryItemID }

func (p InventoryAdjust) Validate() error {
	if strings.TrimSpace(p.InventoryItemID) == "" {
		return &PayloadError{Field: "inventoryItemId", Reason: "must not be empty"}
	}
	if p.Delta == 0 {
		return &PayloadError{Field: "delta", Reason: "must not be zero"}
	}
	return nil
}

// DecodePayload unmarshals a raw payload into its typed form based on the
// operation kind
func DecodePayload(kind OperationKind, raw json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case OpWorkOrderStatusUpdate:
		var v WorkOrderStatusUpdate
		err = json.Unmarshal(raw, &v)
		p = v
	case OpWorkOrderNoteCreate:
		var v WorkOrderNoteCreate
		err = json.Unmarshal(raw, &v)
		p = v
	case OpCostEntryCreate:
		var v CostEntryCreate
		err = json.Unmarshal(raw, &v)
		p = v
	case OpChecklistReplace:
		var v ChecklistReplace
		err = json.Unmarshal(raw, &v)
		p = v
	case OpInventoryAdjust:
		var v InventoryAdjust
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown operation kind: %s", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
	}
	return p, nil
}
