package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/awsomestore/storefront/pkg/storefront/event"
	"github.com/awsomestore/storefront/pkg/storefront/eventlog"
	"github.com/awsomestore/storefront/pkg/storefront/orders"
	"github.com/awsomestore/storefront/pkg/storefront/products"
	"github.com/awsomestore/storefront/pkg/storefront/records"
)

// ProductHandler serves the catalog endpoints.
type ProductHandler struct {
	service *products.Service
}

// NewProductHandler wires the catalog endpoints.
func NewProductHandler(service *products.Service) *ProductHandler {
	return &ProductHandler{service: service}
}

// List handles GET /products.
func (h *ProductHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error(), "INTERNAL"))
		return
	}
	c.JSON(http.StatusOK, items)
}

// Get handles GET /products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create handles POST /products.
func (h *ProductHandler) Create(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	created, err := h.service.Create(c.Request.Context(), req.Product(""), userEmail(c), RequestID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Update handles PUT /products/:id.
func (h *ProductHandler) Update(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	updated, err := h.service.Update(c.Request.Context(), req.Product(c.Param("id")), userEmail(c), RequestID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /products/:id.
func (h *ProductHandler) Delete(c *gin.Context) {
	deleted, err := h.service.Delete(c.Request.Context(), c.Param("id"), userEmail(c), RequestID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deleted)
}

// OrderHandler serves the order endpoints.
type OrderHandler struct {
	service *orders.Service
}

// NewOrderHandler wires the order endpoints.
func NewOrderHandler(service *orders.Service) *OrderHandler {
	return &OrderHandler{service: service}
}

// List handles GET /orders. With email and id it returns one order,
// with only email it returns that customer's orders, bare it returns
// everything.
func (h *OrderHandler) List(c *gin.Context) {
	email := c.Query("email")
	id := c.Query("id")
	ctx := c.Request.Context()

	switch {
	case email != "" && id != "":
		o, err := h.service.Get(ctx, email, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	case email != "":
		items, err := h.service.ListByEmail(ctx, email)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	default:
		items, err := h.service.List(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// Create handles POST /orders.
func (h *OrderHandler) Create(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	created, err := h.service.Create(c.Request.Context(), orders.CreateInput{
		Email:      req.Email,
		ProductIDs: req.ProductIDs,
		Payment:    req.Payment,
		Shipping: records.Shipping{
			Type:    req.Shipping.Type,
			Carrier: req.Shipping.Carrier,
		},
		RequestID: RequestID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Delete handles DELETE /orders?email=&id=.
func (h *OrderHandler) Delete(c *gin.Context) {
	email := c.Query("email")
	id := c.Query("id")
	if email == "" || id == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse("email and id are required", "INVALID_REQUEST"))
		return
	}

	if _, err := h.service.Delete(c.Request.Context(), email, id, RequestID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// EventsHandler serves the audit log read model.
type EventsHandler struct {
	store eventlog.Store
}

// NewEventsHandler wires the audit log endpoint.
func NewEventsHandler(store eventlog.Store) *EventsHandler {
	return &EventsHandler{store: store}
}

// List handles GET /orders/events?email=&eventType=.
func (h *EventsHandler) List(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse("email is required", "INVALID_REQUEST"))
		return
	}

	entries, err := h.store.ByEmail(c.Request.Context(), email, event.Type(c.Query("eventType")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error(), "INTERNAL"))
		return
	}

	out := make([]EventResponse, len(entries))
	for i, e := range entries {
		out[i] = FromEntry(e)
	}
	c.JSON(http.StatusOK, out)
}

func respondError(c *gin.Context, err error) {
	if errors.Is(err, records.ErrNotFound) {
		c.JSON(http.StatusNotFound, NewErrorResponse(err.Error(), "NOT_FOUND"))
		return
	}
	c.JSON(http.StatusInternalServerError, NewErrorResponse(err.Error(), "INTERNAL"))
}

func userEmail(c *gin.Context) string {
	return c.GetHeader("X-User-Email")
}
