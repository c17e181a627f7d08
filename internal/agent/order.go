package agent

import (
	"errors"
	"time"

	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/fikse/fikse-agent/backend/pkg/utils"
)

// ErrEmptySelection is returned when an order build is attempted with no
// selected services.
var ErrEmptySelection = errors.New("cannot build an order from an empty selection")

const orderTimestampLayout = "2006-01-02 15:04:05"

// BuildPreview assembles a tentative order summary for confirmation: totals
// are final but the order id and timestamp are left empty until the user
// confirms.
func BuildPreview(services []models.ServiceItem) (*models.OrderSummary, error) {
	if len(services) == 0 {
		return nil, ErrEmptySelection
	}

	var totalPrice float64
	var totalHours float64
	hasHours := false

	for _, service := range services {
		totalPrice += service.Price
		if service.EstimatedHours != nil {
			totalHours += *service.EstimatedHours
			hasHours = true
		}
	}

	order := &models.OrderSummary{
		Services:   services,
		TotalPrice: totalPrice,
	}
	if hasHours {
		order.EstimatedTotalHours = &totalHours
	}

	return order, nil
}

// BuildOrder finalizes an order: same totals as a preview plus a unique
// generated id and the wall-clock creation timestamp.
func BuildOrder(services []models.ServiceItem) (*models.OrderSummary, error) {
	order, err := BuildPreview(services)
	if err != nil {
		return nil, err
	}

	order.OrderID = utils.GenerateOrderID()
	order.CreatedAt = time.Now().Format(orderTimestampLayout)

	return order, nil
}
