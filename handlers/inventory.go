package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/mmdatafocus/pipeworks_backend/models/reports"
)

func (a *API) AddStock() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewStock
		if !bindJSON(c, &input) {
			return
		}
		ctx, finish := a.span(c.Request.Context(), "AddStock")
		result, err := models.AddStock(ctx, &input)
		finish(err)
		if err != nil {
			respondError(c, "AddStock", err)
			return
		}
		status := http.StatusCreated
		if result.Merged {
			status = http.StatusOK
		}
		c.JSON(status, gin.H{"success": true, "item": result.Item, "merged": result.Merged})
	}
}

func (a *API) ListItems() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.ItemFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			respondError(c, "ListItems", fmt.Errorf("%w: %v", models.ErrValidation, err))
			return
		}
		items, err := models.ListItems(c.Request.Context(), filter)
		if err != nil {
			respondError(c, "ListItems", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "items": items})
	}
}

func (a *API) DeductStock() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.DeductStockInput
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.DeductStock(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "DeductStock", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"item":      result.Item,
			"partial":   result.Partial(),
			"shortfall": result.Shortfall,
		})
	}
}

func (a *API) GetItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		item, err := models.GetItem(c.Request.Context(), id)
		if err != nil {
			respondError(c, "GetItem", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
	}
}

func (a *API) UpdateItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var input models.NewStock
		if !bindJSON(c, &input) {
			return
		}
		item, err := models.UpdateItem(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "UpdateItem", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
	}
}

func (a *API) DeleteItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		item, err := models.DeleteItem(c.Request.Context(), id)
		if err != nil {
			respondError(c, "DeleteItem", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
	}
}

func (a *API) ListRates() gin.HandlerFunc {
	return func(c *gin.Context) {
		rates, err := models.ListRates(c.Request.Context())
		if err != nil {
			respondError(c, "ListRates", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "rates": rates})
	}
}

func (a *API) UpsertRate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewRate
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.UpsertRate(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "UpsertRate", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "rate": result.Rate, "itemsUpdated": result.ItemsUpdated})
	}
}

func (a *API) ExportRates() gin.HandlerFunc {
	return func(c *gin.Context) {
		wb, err := reports.RateListWorkbook(c.Request.Context())
		if err != nil {
			respondError(c, "ExportRates", err)
			return
		}
		sendWorkbook(c, wb)
	}
}

// ImportRates takes a multipart "file" field holding an xlsx rate list.
func (a *API) ImportRates() gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			respondError(c, "ImportRates", fmt.Errorf("%w: file is required", models.ErrValidation))
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondError(c, "ImportRates", err)
			return
		}
		defer f.Close()

		result, err := reports.ImportRateList(c.Request.Context(), f)
		if err != nil {
			respondError(c, "ImportRates", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
	}
}
