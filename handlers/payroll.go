package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/mmdatafocus/pipeworks_backend/models/reports"
)

func (a *API) CreateEmployee() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewEmployee
		if !bindJSON(c, &input) {
			return
		}
		employee, err := models.CreateEmployee(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "CreateEmployee", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "employee": employee})
	}
}

func (a *API) ListEmployees() gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := c.Query("active") == "true"
		employees, err := models.ListEmployees(c.Request.Context(), activeOnly)
		if err != nil {
			respondError(c, "ListEmployees", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "employees": employees})
	}
}

func (a *API) GetEmployee() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		employee, err := models.GetEmployee(c.Request.Context(), id)
		if err != nil {
			respondError(c, "GetEmployee", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "employee": employee})
	}
}

func (a *API) UpdateEmployee() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var input models.NewEmployee
		if !bindJSON(c, &input) {
			return
		}
		employee, err := models.UpdateEmployee(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "UpdateEmployee", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "employee": employee})
	}
}

func (a *API) PostSalary() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSalaryPayment
		if !bindJSON(c, &input) {
			return
		}
		ctx, finish := a.span(c.Request.Context(), "PostSalaryPayment")
		result, err := models.PostSalaryPayment(ctx, &input)
		finish(err)
		if err != nil {
			respondError(c, "PostSalary", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "salary": result.Record, "advance": result.Advance})
	}
}

func (a *API) AdjustSalary() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.SalaryAdjustment
		if !bindJSON(c, &input) {
			return
		}
		record, err := models.AdjustSalary(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "AdjustSalary", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "salary": record})
	}
}

func (a *API) GetSalaries() gin.HandlerFunc {
	return func(c *gin.Context) {
		year, err := queryInt(c, "year")
		if err != nil {
			respondError(c, "GetSalaries", err)
			return
		}
		records, err := models.GetSalaries(c.Request.Context(), c.Query("month"), year)
		if err != nil {
			respondError(c, "GetSalaries", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "salaries": records})
	}
}

func (a *API) ExportSalaries() gin.HandlerFunc {
	return func(c *gin.Context) {
		year, err := queryInt(c, "year")
		if err != nil {
			respondError(c, "ExportSalaries", err)
			return
		}
		wb, err := reports.SalaryMonthWorkbook(c.Request.Context(), c.Query("month"), year)
		if err != nil {
			respondError(c, "ExportSalaries", err)
			return
		}
		sendWorkbook(c, wb)
	}
}
