package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-feedback-dashboard/internal/cache"
	"github.com/noah-isme/gema-feedback-dashboard/internal/dashboard"
	"github.com/noah-isme/gema-feedback-dashboard/internal/dto"
	"github.com/noah-isme/gema-feedback-dashboard/internal/models"
	"github.com/noah-isme/gema-feedback-dashboard/internal/repository"
)

// ErrInvalidSortMode is returned for an unknown sort value.
var ErrInvalidSortMode = errors.New("invalid sort mode")

// InvalidationBroadcaster tells other replicas that the cache was refreshed.
type InvalidationBroadcaster interface {
	BroadcastInvalidation(ctx context.Context) error
}

// TeacherDashboardService serves the teacher dashboard views. The boolean
// results report whether the data came from the cache.
type TeacherDashboardService interface {
	List(ctx context.Context, query dto.SubmissionQuery) (dto.SubmissionListResponse, bool, error)
	Summary(ctx context.Context, query dto.SubmissionQuery) (dto.SummaryResponse, bool, error)
	Students(ctx context.Context, query dto.SubmissionQuery) (dto.StudentListResponse, bool, error)
	StudentDetail(ctx context.Context, studentID string) (dto.StudentDetailResponse, error)
	Export(ctx context.Context, query dto.SubmissionQuery) (dto.ExportFile, error)
	Refresh(ctx context.Context) (dto.RefreshResponse, error)
}

type teacherDashboardService struct {
	repo        repository.SubmissionRecordRepository
	cache       cache.SubmissionCache
	broadcaster InvalidationBroadcaster
	collection  string
	location    *time.Location
	questions   map[int]string
	sanitizer   *bluemonday.Policy
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewTeacherDashboardService wires the dashboard to its store and cache.
// broadcaster may be nil when only one replica runs.
func NewTeacherDashboardService(repo repository.SubmissionRecordRepository, submissionCache cache.SubmissionCache, broadcaster InvalidationBroadcaster, collection string, location *time.Location, logger zerolog.Logger) TeacherDashboardService {
	if location == nil {
		location = time.UTC
	}
	return &teacherDashboardService{
		repo:        repo,
		cache:       submissionCache,
		broadcaster: broadcaster,
		collection:  collection,
		location:    location,
		questions:   dashboard.DefaultQuestions,
		sanitizer:   bluemonday.StrictPolicy(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-feedback-dashboard/internal/service/teacher_dashboard"),
		logger:      logger.With().Str("component", "teacher_dashboard_service").Logger(),
		now:         time.Now,
	}
}

func (s *teacherDashboardService) List(ctx context.Context, query dto.SubmissionQuery) (dto.SubmissionListResponse, bool, error) {
	table, hit, err := s.view(ctx, query)
	if err != nil {
		return dto.SubmissionListResponse{}, false, err
	}

	items := make([]dto.SubmissionRowResponse, 0, len(table))
	for _, row := range table {
		item := dto.SubmissionRowResponse{
			StudentID:   row.StudentID(),
			SubmittedAt: row.SubmittedAt,
			Model:       row.Record.ModelName(),
		}
		if row.HasTimestamp() {
			createdAt := row.CreatedAt
			item.CreatedAt = &createdAt
		}
		for _, question := range row.Record.Questions() {
			if question.IsPositive() {
				item.PositiveCount++
			}
		}
		items = append(items, item)
	}

	return dto.SubmissionListResponse{Items: items, Count: len(items)}, hit, nil
}

func (s *teacherDashboardService) Summary(ctx context.Context, query dto.SubmissionQuery) (dto.SummaryResponse, bool, error) {
	table, hit, err := s.view(ctx, query)
	if err != nil {
		return dto.SummaryResponse{}, false, err
	}

	summary := dashboard.Summarize(table)
	response := dto.SummaryResponse{
		TotalCount:       summary.TotalCount,
		DistinctStudents: summary.DistinctStudents,
		PositiveCount:    summary.PositiveCount,
		Accuracy:         summary.Accuracy,
		AccuracyLabel:    summary.AccuracyText(),
	}
	if latest := summary.LatestSubmissionText(s.location); latest != "" {
		response.LatestSubmission = &latest
	}

	return response, hit, nil
}

func (s *teacherDashboardService) Students(ctx context.Context, query dto.SubmissionQuery) (dto.StudentListResponse, bool, error) {
	table, hit, err := s.view(ctx, query)
	if err != nil {
		return dto.StudentListResponse{}, false, err
	}

	return dto.StudentListResponse{StudentIDs: dashboard.DistinctStudentIDs(table)}, hit, nil
}

func (s *teacherDashboardService) StudentDetail(ctx context.Context, studentID string) (dto.StudentDetailResponse, error) {
	table, _, err := s.load(ctx)
	if err != nil {
		return dto.StudentDetailResponse{}, err
	}

	row, historyCount, err := dashboard.SelectLatestForStudent(table, studentID)
	if err != nil {
		return dto.StudentDetailResponse{}, err
	}
	if historyCount > 1 {
		s.logger.Debug().Str("student_id", studentID).Int("history_count", historyCount).Msg("showing latest of several submissions")
	}

	questions := make([]dto.QuestionDetail, 0, models.QuestionCount)
	for _, question := range row.Record.Questions() {
		questions = append(questions, dto.QuestionDetail{
			Index:     question.Index,
			Prompt:    s.questions[question.Index],
			Answer:    s.sanitize(question.Answer),
			Guideline: s.sanitize(question.Guideline),
			Feedback:  s.sanitize(question.Feedback),
			Positive:  question.IsPositive(),
		})
	}

	return dto.StudentDetailResponse{
		StudentID:    row.StudentID(),
		SubmittedAt:  row.SubmittedAt,
		Model:        s.stripMarkup(row.Record.ModelName()),
		HistoryCount: historyCount,
		Questions:    questions,
	}, nil
}

func (s *teacherDashboardService) Export(ctx context.Context, query dto.SubmissionQuery) (dto.ExportFile, error) {
	table, _, err := s.view(ctx, query)
	if err != nil {
		return dto.ExportFile{}, err
	}

	content, err := dashboard.ExportCSV(table)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to render export")
		return dto.ExportFile{}, fmt.Errorf("render export: %w", err)
	}

	return dto.ExportFile{
		Filename:    dashboard.ExportFilename(s.now().In(s.location)),
		ContentType: "text/csv; charset=utf-8",
		Content:     content,
		Rows:        len(table),
	}, nil
}

func (s *teacherDashboardService) Refresh(ctx context.Context) (dto.RefreshResponse, error) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to invalidate submissions cache")
		return dto.RefreshResponse{}, fmt.Errorf("invalidate cache: %w", err)
	}

	response := dto.RefreshResponse{RefreshedAt: s.now().UTC()}
	if s.broadcaster != nil {
		if err := s.broadcaster.BroadcastInvalidation(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to broadcast cache invalidation")
		} else {
			response.Broadcast = true
		}
	}

	s.logger.Info().Bool("broadcast", response.Broadcast).Msg("submissions cache refreshed")
	return response, nil
}

// view loads the table and applies the query's filter and sort.
func (s *teacherDashboardService) view(ctx context.Context, query dto.SubmissionQuery) (dashboard.Table, bool, error) {
	mode, err := dashboard.ParseSortMode(query.Sort)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", ErrInvalidSortMode, query.Sort)
	}

	table, hit, err := s.load(ctx)
	if err != nil {
		return nil, false, err
	}

	return dashboard.Sort(dashboard.Filter(table, query.StudentID), mode), hit, nil
}

func (s *teacherDashboardService) load(ctx context.Context) (dashboard.Table, bool, error) {
	ctx, span := s.tracer.Start(ctx, "dashboard.load")
	span.SetAttributes(attribute.String("dashboard.collection", s.collection))
	defer span.End()

	records, hit, err := s.cache.GetOrFetch(ctx, s.collection, func(ctx context.Context) ([]models.SubmissionRecord, error) {
		return s.repo.FetchAll(ctx, s.collection)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_submissions_failed")
		s.logger.Error().Err(err).Str("collection", s.collection).Msg("failed to load submissions")
		return nil, false, err
	}

	span.SetAttributes(
		attribute.Bool("dashboard.cache_hit", hit),
		attribute.Int("dashboard.rows", len(records)),
	)
	return dashboard.Normalize(records, s.location), hit, nil
}

func (s *teacherDashboardService) sanitize(value *string) *string {
	if value == nil {
		return nil
	}
	clean := s.stripMarkup(*value)
	return &clean
}

// stripMarkup drops HTML tags but keeps plain characters such as <, & and "
// that the policy would otherwise return as entities.
func (s *teacherDashboardService) stripMarkup(value string) string {
	return html.UnescapeString(s.sanitizer.Sanitize(value))
}
