package tool

import (
	"context"
	"time"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/repository"
	"github.com/KH-Pua/ai-chatbot/internal/domain/service"
	domaintool "github.com/KH-Pua/ai-chatbot/internal/domain/tool"
	apperrors "github.com/KH-Pua/ai-chatbot/pkg/errors"
)

const OrderStatusToolName = "get_order_status"

const orderNotFoundMessage = "Order not found. Please verify the order ID and email address."

type OrderStatusInput struct {
	OrderID string `json:"orderId" validate:"required,notblank"`
	Email   string `json:"email" validate:"required,email_syntax"`
}

type orderItemView struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

type orderStatusOutput struct {
	Found             bool               `json:"found"`
	OrderID           string             `json:"orderId,omitempty"`
	Status            entity.OrderStatus `json:"status,omitempty"`
	Items             []orderItemView    `json:"items,omitempty"`
	Total             string             `json:"total,omitempty"`
	EstimatedDelivery string             `json:"estimatedDelivery,omitempty"`
	TrackingNumber    string             `json:"trackingNumber,omitempty"`
	Message           string             `json:"message,omitempty"`
}

// NewOrderStatusTool looks orders up by ID and owner email together, so a
// customer can never read someone else's order by guessing an ID.
func NewOrderStatusTool(orders repository.OrderRepository) domaintool.Tool {
	return domaintool.NewTypedTool(
		OrderStatusToolName,
		"Retrieve the status and details of a customer order",
		domaintool.KindRead,
		map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"orderId": map[string]interface{}{
					"type":        "string",
					"description": "The order ID or number",
				},
				"email": map[string]interface{}{
					"type":        "string",
					"format":      "email",
					"description": "Customer email for verification",
				},
			},
			"required": []string{"orderId", "email"},
		},
		func(ctx context.Context, in OrderStatusInput) (*domaintool.Result, error) {
			order, err := orders.FindByIDAndEmail(ctx, in.OrderID, in.Email)
			// "#10001" or "order 10001" as typed by the customer
			if apperrors.IsNotFound(err) {
				if id, ok := service.ExtractOrderID(in.OrderID); ok && id != in.OrderID {
					order, err = orders.FindByIDAndEmail(ctx, id, in.Email)
				}
			}
			if apperrors.IsNotFound(err) {
				return domaintool.JSONResult(orderStatusOutput{Found: false, Message: orderNotFoundMessage})
			}
			if err != nil {
				return nil, err
			}

			out := orderStatusOutput{
				Found:          true,
				OrderID:        order.ID,
				Status:         order.Status,
				Items:          make([]orderItemView, 0, len(order.Items)),
				Total:          service.FormatCurrency(order.TotalCents),
				TrackingNumber: order.TrackingNumber,
			}
			for _, item := range order.Items {
				out.Items = append(out.Items, orderItemView{
					Name:     item.Name,
					Quantity: item.Quantity,
					Price:    service.FormatCurrency(item.PriceCents),
				})
			}
			if order.EstimatedDelivery != nil {
				out.EstimatedDelivery = order.EstimatedDelivery.Format(time.DateOnly)
			}
			return domaintool.JSONResult(out)
		},
	)
}
