package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/mmdatafocus/pipeworks_backend/models/reports"
)

func (a *API) GetSettings() gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := models.GetSettings(c.Request.Context())
		if err != nil {
			respondError(c, "GetSettings", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"settings":     settings,
			"currentMonth": settings.CompanyMonthKey(time.Now()),
		})
	}
}

func (a *API) SaveSettings() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSettings
		if !bindJSON(c, &input) {
			return
		}
		settings, err := models.SaveSettings(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "SaveSettings", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"settings":     settings,
			"currentMonth": settings.CompanyMonthKey(time.Now()),
		})
	}
}

// SalesReport returns one month (default: the current company month), or
// every month in from..to when either bound is given.
func (a *API) SalesReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if from, to := c.Query("from"), c.Query("to"); from != "" || to != "" {
			rows, err := reports.SalesReportHistory(ctx, from, to)
			if err != nil {
				respondError(c, "SalesReport", err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "reports": rows})
			return
		}
		key, err := models.ResolveExpenseMonth(ctx, c.Query("month"))
		if err != nil {
			respondError(c, "SalesReport", err)
			return
		}
		report, err := models.GetSalesReport(ctx, key)
		if err != nil {
			respondError(c, "SalesReport", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
	}
}

func (a *API) ExportSalesReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		wb, err := reports.SalesReportWorkbook(c.Request.Context(), c.Query("from"), c.Query("to"))
		if err != nil {
			respondError(c, "ExportSalesReport", err)
			return
		}
		sendWorkbook(c, wb)
	}
}
