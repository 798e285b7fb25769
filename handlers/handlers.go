package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeworks_backend/middlewares"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	Tracer trace.Tracer
}

func New(tracer trace.Tracer) *API {
	return &API{Tracer: tracer}
}

// span starts a span for a workflow; end it with finish(err).
func (a *API) span(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := a.Tracer.Start(ctx, name)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// Register mounts every route. Everything except /login needs a token;
// destructive and configuration routes need the admin role.
func (a *API) Register(r gin.IRouter) {
	r.POST("/login", a.Login())

	auth := r.Group("/", middlewares.AuthMiddleware())
	admin := auth.Group("/", middlewares.RequireRole(string(models.UserRoleAdmin)))

	auth.GET("/me", a.Me())
	auth.POST("/logout", a.Logout())

	auth.POST("/inventory", a.AddStock())
	auth.GET("/inventory", a.ListItems())
	auth.POST("/items", a.AddStock())
	auth.GET("/items", a.ListItems())
	auth.PATCH("/items", a.DeductStock())
	auth.GET("/items/:id", a.GetItem())
	admin.PUT("/items/:id", a.UpdateItem())
	admin.DELETE("/items/:id", a.DeleteItem())

	auth.GET("/ratelist", a.ListRates())
	admin.POST("/ratelist", a.UpsertRate())
	auth.GET("/ratelist/export", a.ExportRates())
	admin.POST("/ratelist/import", a.ImportRates())

	auth.POST("/quotations", a.CreateQuotation())
	auth.GET("/quotations", a.ListQuotations())
	auth.GET("/quotations/:id", a.GetQuotation())
	admin.DELETE("/quotations/:id", a.DeleteQuotation())
	auth.POST("/quotations/:id/addPayments", a.AddPayment())

	auth.POST("/returns", a.CreateReturn())
	auth.GET("/returns", a.ListReturns())
	auth.GET("/returns/:id", a.GetReturn())

	auth.POST("/employees", a.CreateEmployee())
	auth.GET("/employees", a.ListEmployees())
	auth.GET("/employees/:id", a.GetEmployee())
	admin.PATCH("/employees/:id", a.UpdateEmployee())

	auth.POST("/salaries", a.PostSalary())
	admin.PATCH("/salaries", a.AdjustSalary())
	auth.GET("/salaries", a.GetSalaries())
	auth.GET("/salaries/export", a.ExportSalaries())

	auth.POST("/expenses", a.SaveExpenses())
	auth.GET("/expenses", a.GetExpenses())
	auth.GET("/expenses/months", a.ListExpenseMonths())
	admin.POST("/expenses/close", a.CloseExpenseMonth())
	auth.GET("/expenses/export", a.ExportExpenses())

	auth.GET("/settings", a.GetSettings())
	admin.POST("/settings", a.SaveSettings())

	auth.GET("/reports/sales", a.SalesReport())
	auth.GET("/reports/sales/export", a.ExportSalesReport())

	admin.GET("/internal/ops/outbox", a.ListOutbox())
	admin.POST("/internal/ops/outbox/:id/requeue", a.RequeueOutbox())
}
