package agent

import (
	"context"
	"errors"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/service"
)

// InventoryClient checks stock with the inventory agent.
type InventoryClient struct {
	c *caller
}

var _ service.InventoryChecker = (*InventoryClient)(nil)

const actionCheckAvailability = "check_availability"

type inventoryBody struct {
	UserID     string   `json:"user_id"`
	Action     string   `json:"action"`
	ProductIDs []string `json:"product_ids"`
}

type availabilityWire struct {
	EstimatedRestock *string `json:"estimated_restock"`
	StockLevel       string  `json:"stock_level"`
	Quantity         uint32  `json:"quantity_available"`
	Available        bool    `json:"available"`
}

type inventoryReply struct {
	Availability map[string]availabilityWire `json:"availability"`
	Error        string                      `json:"error"`
	Success      bool                        `json:"success"`
}

// CheckAvailability returns the stock state of each product. Products
// the agent does not know are reported unavailable.
func (a *InventoryClient) CheckAvailability(ctx context.Context, userID string, productIDs []string) (map[string]service.Availability, error) {
	var reply inventoryReply
	body := inventoryBody{UserID: userID, Action: actionCheckAvailability, ProductIDs: productIDs}
	if err := a.c.post(ctx, "/inventory", body, &reply); err != nil {
		return nil, err
	}
	if !reply.Success {
		msg := reply.Error
		if msg == "" {
			msg = "inventory check failed"
		}
		return nil, common.Unavailable(NameInventory+"/inventory", errors.New(msg))
	}

	out := make(map[string]service.Availability, len(productIDs))
	for _, id := range productIDs {
		w, ok := reply.Availability[id]
		if !ok {
			out[id] = service.Availability{StockLevel: "not_found"}
			continue
		}
		av := service.Availability{
			Available:  w.Available,
			Quantity:   w.Quantity,
			StockLevel: w.StockLevel,
		}
		if w.EstimatedRestock != nil {
			av.EstimatedRestock = *w.EstimatedRestock
		}
		out[id] = av
	}
	return out, nil
}
