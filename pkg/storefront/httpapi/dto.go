// Package httpapi exposes the storefront over HTTP: catalog CRUD, order
// placement, and the audit log read model.
package httpapi

import (
	"encoding/json"
	"strings"

	"github.com/awsomestore/storefront/pkg/storefront/eventlog"
	"github.com/awsomestore/storefront/pkg/storefront/records"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewErrorResponse builds an error body.
func NewErrorResponse(message, code string) ErrorResponse {
	return ErrorResponse{Error: message, Code: code}
}

// ProductRequest is the create/update body for a product.
type ProductRequest struct {
	Name  string  `json:"name" binding:"required"`
	Code  string  `json:"code" binding:"required"`
	Price float64 `json:"price"`
	Model string  `json:"model"`
}

// Product converts the request to the storage shape, carrying id when
// updating.
func (r ProductRequest) Product(id string) records.Product {
	return records.Product{
		ID:    id,
		Name:  r.Name,
		Code:  r.Code,
		Price: r.Price,
		Model: r.Model,
	}
}

// OrderRequest is the body for placing an order.
type OrderRequest struct {
	Email      string   `json:"email" binding:"required"`
	ProductIDs []string `json:"productIds" binding:"required"`
	Payment    string   `json:"payment" binding:"required"`
	Shipping   struct {
		Type    string `json:"type" binding:"required"`
		Carrier string `json:"carrier" binding:"required"`
	} `json:"shipping" binding:"required"`
}

// EventResponse is one audit log entry in the external read shape.
// Identity fields are flattened with the subject-specific detail; the
// storage keys stay internal.
type EventResponse struct {
	Email        string   `json:"email"`
	CreatedAt    int64    `json:"createdAt"`
	EventType    string   `json:"eventType"`
	RequestID    string   `json:"requestId"`
	OrderID      string   `json:"orderId,omitempty"`
	ProductID    string   `json:"productId,omitempty"`
	ProductCodes []string `json:"productCodes,omitempty"`
	Price        float64  `json:"price,omitempty"`
}

// FromEntry converts a stored entry to the read shape.
func FromEntry(e eventlog.Entry) EventResponse {
	resp := EventResponse{
		Email:     e.Email,
		CreatedAt: e.CreatedAt,
		EventType: string(e.EventType),
		RequestID: e.RequestID,
	}

	switch {
	case strings.HasPrefix(e.PartitionKey, eventlog.PartitionKey("order", "")):
		resp.OrderID = e.Info.SubjectID
		var detail struct {
			ProductCodes []string `json:"productCodes"`
		}
		if json.Unmarshal(e.Info.Detail, &detail) == nil {
			resp.ProductCodes = detail.ProductCodes
		}
	case strings.HasPrefix(e.PartitionKey, eventlog.PartitionKey("product", "")):
		resp.ProductID = e.Info.SubjectID
		var detail struct {
			ProductPrice float64 `json:"productPrice"`
		}
		if json.Unmarshal(e.Info.Detail, &detail) == nil {
			resp.Price = detail.ProductPrice
		}
	}
	return resp
}
