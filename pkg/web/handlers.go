package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/services"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	healthService *services.WorkflowHealth
	validator     *validator.Validate
}

func NewAPIHandlers(healthService *services.WorkflowHealth, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		healthService: healthService,
		validator:     validator,
	}
}

// Mount registers the workflow routes under /workflows.
func (h *APIHandlers) Mount(router fiber.Router) {
	w := router.Group("/workflows")
	w.Post("/health/batch", h.BatchAnalyze)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.ImportWorkflow)
	w.Get("/:id/health", h.GetWorkflowHealth)
	w.Get("/:id/health/history", h.GetHealthHistory)
	w.Post("/:id/repair", h.RepairWorkflow)

	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.healthService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

// ImportWorkflow creates or replaces the workflow at :id from a builder document.
func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	body := c.Body()
	if err := validateWorkflowDocument(body); err != nil {
		return badRequest(c, err.Error())
	}

	var workflow models.Workflow
	if err := json.Unmarshal(body, &workflow); err != nil {
		return badRequest(c, "Invalid JSON format: "+err.Error())
	}

	if workflow.ID == "" {
		workflow.ID = id
	}

	if workflow.ID != id {
		return badRequest(c, "Workflow ID in body does not match the path")
	}

	imported, err := h.healthService.Import(c.Context(), &workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(imported)
}

func (h *APIHandlers) GetWorkflowHealth(c fiber.Ctx) error {
	report, err := h.healthService.AnalyzeWorkflowHealth(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) GetHealthHistory(c fiber.Ctx) error {
	id := c.Params("id")

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			return badRequest(c, "Invalid query parameters: limit must be a non-negative integer")
		}

		limit = parsed
	}

	reports, err := h.healthService.HealthHistory(c.Context(), id, limit)
	if err != nil {
		return handleServiceError(c, err)
	}

	if reports == nil {
		reports = []*models.HealthReportSummary{}
	}

	return c.JSON(HealthHistoryResponse{WorkflowID: id, Reports: reports, Count: len(reports)})
}

func (h *APIHandlers) RepairWorkflow(c fiber.Ctx) error {
	var req RepairWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.healthService.RepairWorkflow(c.Context(), c.Params("id"), services.RepairRequest{
		AutoFix:  req.AutoFix,
		IssueIDs: req.IssueIDs,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) BatchAnalyze(c fiber.Ctx) error {
	var req BatchAnalyzeRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	summary, err := h.healthService.BatchAnalyze(c.Context(), services.BatchRequest{
		WorkflowIDs:    req.WorkflowIDs,
		MinHealthScore: req.MinHealthScore,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.healthService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Workflow doctor API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Workflow doctor API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
