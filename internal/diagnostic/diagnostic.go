// Package diagnostic checks that the dashboard can reach its submission
// store and that the rows look the way the dashboard expects.
package diagnostic

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/gema-feedback-dashboard/internal/config"
	"github.com/noah-isme/gema-feedback-dashboard/internal/database"
	"github.com/noah-isme/gema-feedback-dashboard/internal/repository"
	"github.com/noah-isme/gema-feedback-dashboard/internal/supabase"
)

// DefaultSampleSize is how many rows the sample step reads.
const DefaultSampleSize = 5

// Step names in the order they run.
const (
	StepSecrets = "secrets"
	StepConnect = "connect"
	StepSample  = "sample"
	StepSchema  = "schema"
)

const rowSchemaURL = "submission_row.schema.json"

//go:embed schema/submission_row.schema.json
var rowSchemaSource []byte

// Status of a single step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Step is the outcome of one check.
type Step struct {
	Name   string
	Status Status
	Detail string
	Hint   string
	Err    error
}

// Report collects every step that ran.
type Report struct {
	Collection string
	Steps      []Step
	Sample     []map[string]interface{}
}

// Failed reports whether any step failed.
func (r Report) Failed() bool {
	for _, step := range r.Steps {
		if step.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Step returns the named step, if it ran.
func (r Report) Step(name string) (Step, bool) {
	for _, step := range r.Steps {
		if step.Name == name {
			return step, true
		}
	}
	return Step{}, false
}

// Connector opens the submission store selected by the configuration.
type Connector func(ctx context.Context, cfg config.Config) (repository.SubmissionRecordRepository, error)

// Runner executes the diagnostic steps.
type Runner struct {
	connect    Connector
	sampleSize int
	schema     *jsonschema.Schema
	logger     zerolog.Logger
}

// NewRunner compiles the row schema and returns a runner using connect.
func NewRunner(connect Connector, logger zerolog.Logger) (*Runner, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(rowSchemaURL, bytes.NewReader(rowSchemaSource)); err != nil {
		return nil, fmt.Errorf("load row schema: %w", err)
	}
	schema, err := compiler.Compile(rowSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile row schema: %w", err)
	}

	return &Runner{
		connect:    connect,
		sampleSize: DefaultSampleSize,
		schema:     schema,
		logger:     logger.With().Str("component", "diagnostic").Logger(),
	}, nil
}

// Run executes every step. Steps after a failure are reported as skipped.
func (r *Runner) Run(ctx context.Context, cfg config.Config) Report {
	report := Report{Collection: cfg.SubmissionsTable}

	if err := cfg.ValidateStore(); err != nil {
		report.add(r.logger, Step{
			Name:   StepSecrets,
			Status: StatusFailed,
			Err:    err,
			Hint:   "set the missing variables in the environment or a .env file",
		})
		return report.skipRemaining(r.logger, StepConnect, StepSample, StepSchema)
	}
	report.add(r.logger, Step{Name: StepSecrets, Status: StatusPassed, Detail: "store driver " + cfg.StoreDriver})

	repo, err := r.connect(ctx, cfg)
	if err != nil {
		report.add(r.logger, Step{Name: StepConnect, Status: StatusFailed, Err: err, Hint: connectHint(err)})
		return report.skipRemaining(r.logger, StepSample, StepSchema)
	}
	report.add(r.logger, Step{Name: StepConnect, Status: StatusPassed})

	rows, err := repo.Sample(ctx, cfg.SubmissionsTable, r.sampleSize)
	if err != nil {
		report.add(r.logger, Step{Name: StepSample, Status: StatusFailed, Err: err, Hint: fetchHint(cfg.SubmissionsTable, err)})
		return report.skipRemaining(r.logger, StepSchema)
	}
	report.Sample = rows

	if len(rows) == 0 {
		report.add(r.logger, Step{
			Name:   StepSample,
			Status: StatusPassed,
			Detail: "0 rows",
			Hint:   fmt.Sprintf("table %s is reachable but empty; the dashboard will show no submissions until students submit", cfg.SubmissionsTable),
		})
		report.add(r.logger, Step{Name: StepSchema, Status: StatusSkipped, Detail: "no rows to check"})
		return report
	}
	report.add(r.logger, Step{Name: StepSample, Status: StatusPassed, Detail: fmt.Sprintf("%d rows", len(rows))})

	report.add(r.logger, r.checkRows(rows))
	return report
}

func (r *Runner) checkRows(rows []map[string]interface{}) Step {
	var problems []string
	for i, row := range rows {
		if err := r.schema.Validate(row); err != nil {
			problems = append(problems, fmt.Sprintf("row %d: %s", i+1, schemaMessage(err)))
		}
	}

	if len(problems) > 0 {
		return Step{
			Name:   StepSchema,
			Status: StatusFailed,
			Err:    errors.New(strings.Join(problems, "; ")),
			Hint:   "rows need student_id and created_at; answer, guideline and feedback columns must be text",
		}
	}
	return Step{Name: StepSchema, Status: StatusPassed, Detail: fmt.Sprintf("%d rows match", len(rows))}
}

func connectHint(err error) string {
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return "check the store settings"
	}

	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
		return "the service role key was rejected; copy it again from the project API settings"
	}

	var connErr *database.ConnectionError
	if errors.As(err, &connErr) {
		return "check the store URL and that the network allows outbound connections"
	}
	return ""
}

func fetchHint(collection string, err error) string {
	var fetchErr *repository.FetchError
	if !errors.As(err, &fetchErr) {
		return ""
	}

	switch {
	case fetchErr.MissingCollection():
		return fmt.Sprintf("table %s does not exist; check the table name and schema", collection)
	case fetchErr.AccessDenied():
		return fmt.Sprintf("access to %s was denied; use the service role key or add a read policy", collection)
	case fetchErr.Hint != "":
		return fetchErr.Hint
	default:
		return ""
	}
}

func schemaMessage(err error) string {
	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return err.Error()
	}

	leaf := validationErr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	location := leaf.InstanceLocation
	if location == "" {
		location = "/"
	}
	return location + ": " + leaf.Message
}

func (r *Report) add(logger zerolog.Logger, step Step) {
	r.Steps = append(r.Steps, step)

	var event *zerolog.Event
	switch step.Status {
	case StatusFailed:
		event = logger.Error().Err(step.Err)
	case StatusSkipped:
		event = logger.Warn()
	default:
		event = logger.Info()
	}
	if step.Detail != "" {
		event = event.Str("detail", step.Detail)
	}
	if step.Hint != "" {
		event = event.Str("hint", step.Hint)
	}
	event.Str("step", step.Name).Str("status", string(step.Status)).Msg("diagnostic step")
}

func (r Report) skipRemaining(logger zerolog.Logger, names ...string) Report {
	for _, name := range names {
		r.add(logger, Step{Name: name, Status: StatusSkipped, Detail: "previous step failed"})
	}
	return r
}
