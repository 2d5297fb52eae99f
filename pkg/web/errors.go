package web

import (
	"github.com/creditflow/workflowdoctor/pkg/persistence"
	"github.com/creditflow/workflowdoctor/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

const (
	problemValidation = "validation_error"
	problemNotFound   = "workflow_not_found"
	problemInternal   = "internal_error"
)

func writeProblem(c fiber.Ctx, problem *problems.Problem) error {
	return c.Status(problem.Status).JSON(problem, problems.ProblemMediaType)
}

func badRequest(c fiber.Ctx, detail string) error {
	return writeProblem(c, problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType(problemValidation).
		WithDetail(detail))
}

// handleServiceError maps the service error taxonomy onto RFC 7807 problems. Store failures surface as 500
// without leaking the workflow document.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err), persistence.IsInvalidWorkflowID(err):
		return badRequest(c, err.Error())
	case services.IsNotFound(err):
		return writeProblem(c, problems.NewStatusProblem(fiber.StatusNotFound).
			WithInstance(c.Path()).
			WithType(problemNotFound).
			WithDetail("workflow not found"))
	default:
		return writeProblem(c, problems.NewStatusProblem(fiber.StatusInternalServerError).
			WithInstance(c.Path()).
			WithType(problemInternal).
			WithError(err))
	}
}
