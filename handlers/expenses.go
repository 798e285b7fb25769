package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/mmdatafocus/pipeworks_backend/models/reports"
)

// SaveExpenses is the autosave endpoint: the posted list replaces the month.
func (a *API) SaveExpenses() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewExpenseMonth
		if !bindJSON(c, &input) {
			return
		}
		month, err := models.ReplaceExpenseEntries(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "SaveExpenses", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "expenses": month})
	}
}

func (a *API) GetExpenses() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := models.ResolveExpenseMonth(c.Request.Context(), c.Query("month"))
		if err != nil {
			respondError(c, "GetExpenses", err)
			return
		}
		month, err := models.GetExpenseMonth(c.Request.Context(), key)
		if err != nil {
			respondError(c, "GetExpenses", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "expenses": month})
	}
}

func (a *API) ListExpenseMonths() gin.HandlerFunc {
	return func(c *gin.Context) {
		months, err := models.ListExpenseMonths(c.Request.Context())
		if err != nil {
			respondError(c, "ListExpenseMonths", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "months": months})
	}
}

type closeMonthRequest struct {
	Month string `json:"month"`
}

// CloseExpenseMonth closes the month and archives its workbook. A failed
// archive upload is logged; the month stays closed.
func (a *API) CloseExpenseMonth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req closeMonthRequest
		if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
			return
		}
		ctx, finish := a.span(c.Request.Context(), "CloseExpenseMonth")
		result, err := closeMonth(ctx, req.Month)
		finish(err)
		if err != nil {
			respondError(c, "CloseExpenseMonth", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"month":      result.Month,
			"nextMonth":  result.NextMonth,
			"archiveUri": result.Month.ArchiveUri,
		})
	}
}

func closeMonth(ctx context.Context, month string) (*models.CloseMonthResult, error) {
	key, err := models.ResolveExpenseMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	result, err := models.CloseExpenseMonth(ctx, key)
	if err != nil {
		return nil, err
	}
	uri, err := reports.ArchiveExpenseMonth(ctx, key)
	if err != nil {
		config.LogError(config.GetLogger(), "handlers", "CloseExpenseMonth", "archive", key, err)
	} else if uri != "" {
		result.Month.ArchiveUri = uri
	}
	return result, nil
}

func (a *API) ExportExpenses() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := models.ResolveExpenseMonth(c.Request.Context(), c.Query("month"))
		if err != nil {
			respondError(c, "ExportExpenses", err)
			return
		}
		wb, err := reports.ExpenseMonthWorkbook(c.Request.Context(), key)
		if err != nil {
			respondError(c, "ExportExpenses", err)
			return
		}
		sendWorkbook(c, wb)
	}
}
