package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/mmdatafocus/pipeworks_backend/models/reports"
	"github.com/mmdatafocus/pipeworks_backend/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrOutOfStock):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyProcessed), errors.Is(err, models.ErrMonthClosed):
		return http.StatusConflict
	case errors.Is(err, models.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, utils.ErrLockNotObtained):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes {success:false, message} with the mapped status. Server
// errors are logged and their text is not sent to the client.
func respondError(c *gin.Context, funcName string, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(config.GetLogger(), "handlers", funcName, c.FullPath(), cid, err)
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message, "error": message})
}

// bindJSON decodes the body; binding tag failures are reported per field.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "invalid request",
				"error":   "invalid request",
				"fields":  utils.ProcessValidationErrors(err),
			})
			return false
		}
		respondError(c, "bindJSON", fmt.Errorf("%w: invalid request body: %v", models.ErrValidation, err))
		return false
	}
	return true
}

func paramID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, "paramID", fmt.Errorf("%w: invalid id %q", models.ErrValidation, c.Param("id")))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", models.ErrValidation, key)
	}
	return n, nil
}

func sendWorkbook(c *gin.Context, wb *reports.Workbook) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", wb.Filename))
	c.Data(http.StatusOK, xlsxContentType, wb.Data)
}
