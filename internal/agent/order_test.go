package agent

import (
	"strings"
	"testing"

	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPreview(t *testing.T) {
	hoursA := 1.5
	hoursB := 0.5
	services := []models.ServiceItem{
		{Service: "Zipper replacement", Price: 150, EstimatedHours: &hoursA},
		{Service: "Hemming", Price: 80, EstimatedHours: &hoursB},
	}

	preview, err := BuildPreview(services)
	require.NoError(t, err)

	assert.Equal(t, 230.0, preview.TotalPrice)
	require.NotNil(t, preview.EstimatedTotalHours)
	assert.Equal(t, 2.0, *preview.EstimatedTotalHours)

	// A preview is not yet an order
	assert.Empty(t, preview.OrderID)
	assert.Empty(t, preview.CreatedAt)
}

func TestBuildPreview_NoHours(t *testing.T) {
	preview, err := BuildPreview([]models.ServiceItem{
		{Service: "Patch repair", Price: 90},
	})
	require.NoError(t, err)

	assert.Equal(t, 90.0, preview.TotalPrice)
	assert.Nil(t, preview.EstimatedTotalHours)
}

func TestBuildPreview_EmptySelection(t *testing.T) {
	_, err := BuildPreview(nil)
	assert.ErrorIs(t, err, ErrEmptySelection)
}

func TestBuildOrder(t *testing.T) {
	order, err := BuildOrder([]models.ServiceItem{
		{Service: "Hemming", Price: 80},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(order.OrderID, "ORD-"))
	assert.Len(t, order.OrderID, 12)
	assert.Equal(t, strings.ToUpper(order.OrderID), order.OrderID)
	assert.NotEmpty(t, order.CreatedAt)
	assert.Equal(t, 80.0, order.TotalPrice)
}

func TestBuildOrder_UniqueIDs(t *testing.T) {
	services := []models.ServiceItem{{Service: "Hemming", Price: 80}}

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		order, err := BuildOrder(services)
		require.NoError(t, err)
		assert.False(t, seen[order.OrderID], "duplicate order id %s", order.OrderID)
		seen[order.OrderID] = true
	}
}
