package models_test

import (
	"encoding/json"
	"errors"
	"testing"

	"equipqr/sync-agent/internal/models"

	"github.com/stretchr/testify/require"
)

func TestWorkOrderStatusUpdate_Validate(t *testing.T) {
	valid := models.WorkOrderStatusUpdate{WorkOrderID: "wo-1", Status: models.WorkOrderInProgress}
	require.NoError(t, valid.Validate())

	missing := models.WorkOrderStatusUpdate{Status: models.WorkOrderCompleted}
	err := missing.Validate()
	require.Error(t, err)
	var pe *models.PayloadError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "workOrderId", pe.Field)

	unknown := models.WorkOrderStatusUpdate{WorkOrderID: "wo-1", Status: "exploded"}
	err = unknown.Validate()
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "status", pe.Field)
}

func TestCostEntryCreate_Validate(t *testing.T) {
	valid := models.CostEntryCreate{WorkOrderID: "wo-1", Description: "brake pads", AmountCents: 12500}
	require.NoError(t, valid.Validate())

	negative := models.CostEntryCreate{WorkOrderID: "wo-1", Description: "oops", AmountCents: -1}
	var pe *models.PayloadError
	require.True(t, errors.As(negative.Validate(), &pe))
	require.Equal(t, "amountCents", pe.Field)
}

func TestChecklistReplace_Validate(t *testing.T) {
	invalid := models.ChecklistReplace{
		PMID: "pm-1",
		Items: []models.ChecklistItem{
			{ItemID: "a", Title: "Check oil"},
			{ItemID: "b", Title: ""},
		},
	}
	var pe *models.PayloadError
	require.True(t, errors.As(invalid.Validate(), &pe))
	require.Equal(t, "items[1].title", pe.Field)
}

func TestChecklistReplace_NormalizeKeepsFirstOccurrence(t *testing.T) {
	p := models.ChecklistReplace{
		PMID: "pm-1",
		Items: []models.ChecklistItem{
			{ItemID: "a", Title: "first"},
			{ItemID: "b", Title: "other"},
			{ItemID: "a", Title: "duplicate"},
		},
	}

	normalized := p.Normalize()
	require.Len(t, normalized.Items, 2)
	require.Equal(t, "first", normalized.Items[0].Title)
	require.Equal(t, "b", normalized.Items[1].ItemID)
}

func TestBlindApplySafe(t *testing.T) {
	require.True(t, models.OpWorkOrderStatusUpdate.BlindApplySafe())
	require.True(t, models.OpInventoryAdjust.BlindApplySafe())
	require.False(t, models.OpChecklistReplace.BlindApplySafe())
}

func TestDecodePayload(t *testing.T) {
	raw, err := json.Marshal(models.InventoryAdjust{InventoryItemID: "inv-1", Delta: -2})
	require.NoError(t, err)

	p, err := models.DecodePayload(models.OpInventoryAdjust, raw)
	require.NoError(t, err)
	require.Equal(t, "inventory_items", p.EntityType())
	require.Equal(t, "inv-1", p.EntityID())

	_, err = models.DecodePayload("not_a_kind", raw)
	require.Error(t, err)
}
