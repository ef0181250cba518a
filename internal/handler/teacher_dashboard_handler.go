package handler

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-feedback-dashboard/internal/dto"
	"github.com/noah-isme/gema-feedback-dashboard/internal/service"
	"github.com/noah-isme/gema-feedback-dashboard/internal/utils"
)

// TeacherDashboardHandler exposes the teacher dashboard over HTTP.
type TeacherDashboardHandler struct {
	service  service.TeacherDashboardService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewTeacherDashboardHandler constructs the handler.
func NewTeacherDashboardHandler(service service.TeacherDashboardService, validate *validator.Validate, logger zerolog.Logger) *TeacherDashboardHandler {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &TeacherDashboardHandler{
		service:  service,
		validate: validate,
		logger:   logger.With().Str("component", "teacher_dashboard_handler").Logger(),
	}
}

// Register attaches dashboard routes to the router group. exportMiddleware
// runs in front of the export download only.
func (h *TeacherDashboardHandler) Register(router fiber.Router, exportMiddleware ...fiber.Handler) {
	router.Get("/submissions", h.list)
	router.Get("/summary", h.summary)
	router.Get("/students", h.students)
	router.Get("/students/:studentID", h.detail)

	exportHandlers := append(append([]fiber.Handler{}, exportMiddleware...), h.export)
	router.Get("/export", exportHandlers...)
	router.Post("/refresh", h.refresh)
}

func (h *TeacherDashboardHandler) list(c *fiber.Ctx) error {
	query, err := h.parseQuery(c)
	if err != nil {
		return h.badQuery(c, err)
	}

	list, cacheHit, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return h.fail(c, err, "failed to list submissions")
	}

	message := "submissions retrieved"
	if list.Count == 0 {
		message = "no submissions yet"
	}
	return utils.OK(c, list, message, fiber.Map{"cache_hit": cacheHit, "count": list.Count})
}

func (h *TeacherDashboardHandler) summary(c *fiber.Ctx) error {
	query, err := h.parseQuery(c)
	if err != nil {
		return h.badQuery(c, err)
	}

	summary, cacheHit, err := h.service.Summary(c.UserContext(), query)
	if err != nil {
		return h.fail(c, err, "failed to summarize submissions")
	}

	return utils.OK(c, summary, "summary retrieved", fiber.Map{"cache_hit": cacheHit})
}

func (h *TeacherDashboardHandler) students(c *fiber.Ctx) error {
	query, err := h.parseQuery(c)
	if err != nil {
		return h.badQuery(c, err)
	}

	students, cacheHit, err := h.service.Students(c.UserContext(), query)
	if err != nil {
		return h.fail(c, err, "failed to list students")
	}

	return utils.OK(c, students, "students retrieved", fiber.Map{"cache_hit": cacheHit})
}

func (h *TeacherDashboardHandler) detail(c *fiber.Ctx) error {
	studentID := strings.TrimSpace(c.Params("studentID"))
	if studentID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "student id is required")
	}

	detail, err := h.service.StudentDetail(c.UserContext(), studentID)
	if err != nil {
		return h.fail(c, err, "failed to load student detail")
	}

	message := "latest submission retrieved"
	if detail.HistoryCount > 1 {
		message = "student has " + strconv.Itoa(detail.HistoryCount) + " submissions; showing the latest"
	}
	return utils.OK(c, detail, message, fiber.Map{"history_count": detail.HistoryCount})
}

func (h *TeacherDashboardHandler) export(c *fiber.Ctx) error {
	query, err := h.parseQuery(c)
	if err != nil {
		return h.badQuery(c, err)
	}

	file, err := h.service.Export(c.UserContext(), query)
	if err != nil {
		return h.fail(c, err, "failed to export submissions")
	}

	requestLogger(h.logger, c).Info().Str("filename", file.Filename).Int("rows", file.Rows).Msg("submissions exported")
	c.Attachment(file.Filename)
	c.Set(fiber.HeaderContentType, file.ContentType)
	return c.Status(fiber.StatusOK).Send(file.Content)
}

func (h *TeacherDashboardHandler) refresh(c *fiber.Ctx) error {
	result, err := h.service.Refresh(c.UserContext())
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to refresh submissions")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to refresh submissions")
	}

	return utils.SendSuccess(c, "submissions cache cleared", result)
}

func (h *TeacherDashboardHandler) parseQuery(c *fiber.Ctx) (dto.SubmissionQuery, error) {
	var query dto.SubmissionQuery
	if err := c.QueryParser(&query); err != nil {
		return dto.SubmissionQuery{}, err
	}
	query.StudentID = strings.TrimSpace(query.StudentID)
	query.Sort = strings.TrimSpace(query.Sort)

	if err := h.validate.Struct(query); err != nil {
		return dto.SubmissionQuery{}, err
	}
	return query, nil
}

func (h *TeacherDashboardHandler) badQuery(c *fiber.Ctx, err error) error {
	if isValidationError(err) {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid query", validationDetails(err))
	}
	return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
}

func (h *TeacherDashboardHandler) fail(c *fiber.Ctx, err error, logMessage string) error {
	status, message := errorStatus(err)
	logger := requestLogger(h.logger, c)
	if status >= fiber.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg(logMessage)
	} else {
		logger.Warn().Err(err).Int("status", status).Msg(logMessage)
	}
	return utils.SendError(c, status, message)
}
