package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeworks_backend/models"
)

func (a *API) CreateQuotation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewQuotation
		if !bindJSON(c, &input) {
			return
		}
		input.IdempotencyKey = c.GetHeader("Idempotency-Key")
		ctx, finish := a.span(c.Request.Context(), "CreateQuotation")
		quotation, err := models.CreateQuotation(ctx, &input)
		finish(err)
		if err != nil {
			respondError(c, "CreateQuotation", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "quotation": quotation})
	}
}

func (a *API) ListQuotations() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.QuotationFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			respondError(c, "ListQuotations", fmt.Errorf("%w: %v", models.ErrValidation, err))
			return
		}
		quotations, page, err := models.ListQuotations(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "ListQuotations", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "quotations": quotations, "pageInfo": page})
	}
}

func (a *API) GetQuotation() gin.HandlerFunc {
	return func(c *gin.Context) {
		quotation, err := models.GetQuotation(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, "GetQuotation", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "quotation": quotation})
	}
}

func (a *API) DeleteQuotation() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, finish := a.span(c.Request.Context(), "DeleteQuotation")
		quotation, err := models.DeleteQuotation(ctx, c.Param("id"))
		finish(err)
		if err != nil {
			respondError(c, "DeleteQuotation", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "quotation": quotation})
	}
}

func (a *API) AddPayment() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPayment
		if !bindJSON(c, &input) {
			return
		}
		ctx, finish := a.span(c.Request.Context(), "AddPayment")
		quotation, err := models.AddPayment(ctx, c.Param("id"), &input)
		finish(err)
		if err != nil {
			respondError(c, "AddPayment", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "quotation": quotation})
	}
}

// CreateReturn serves both forms: itemName+qty closes the invoice,
// itemReturned/itemsReturned returns lines and keeps it active.
func (a *API) CreateReturn() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewReturn
		if !bindJSON(c, &input) {
			return
		}
		ctx, finish := a.span(c.Request.Context(), "ProcessReturn")
		var (
			record *models.ReturnRecord
			err    error
		)
		if input.Itemized() {
			record, err = models.CreateReturn(ctx, &input)
		} else {
			record, err = models.ProcessReturn(ctx, input.InvoiceId, input.ItemName, input.Qty)
		}
		finish(err)
		if err != nil {
			respondError(c, "CreateReturn", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "return": record})
	}
}

func (a *API) ListReturns() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := models.ListReturns(c.Request.Context(), c.Query("invoiceId"))
		if err != nil {
			respondError(c, "ListReturns", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "returns": records})
	}
}

func (a *API) GetReturn() gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := models.GetReturn(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, "GetReturn", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "return": record})
	}
}
