package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"demandline/internal/datemath"
	"demandline/internal/engine"
	"demandline/internal/repo"
	"demandline/internal/sequence"
	"demandline/internal/stage"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_sequence"`
	Message string         `json:"message" example:"invalid stage sequence: expected stage 1, but got 3"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Demandline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema-level request validation is a malformed request, not a
			// domain rule violation.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Demandline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerDemands(group, cfg.Engine)
	registerStageRecording(group, cfg.Engine)
	registerPeriods(group, cfg.Engine)
	registerWeekly(group, cfg.Engine)
	registerTimeline(group, cfg.Engine)
	registerStageLegend(group)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var seqErr sequence.InvalidSequenceError
	if errors.As(err, &seqErr) {
		return newAPIError(http.StatusUnprocessableEntity, "invalid_sequence", err.Error(), map[string]any{
			"expected": seqErr.Expected,
			"got":      seqErr.Got,
		})
	}
	var missingErr engine.MissingRequiredFieldError
	if errors.As(err, &missingErr) {
		return newAPIError(http.StatusUnprocessableEntity, "missing_required_field", err.Error(), map[string]any{
			"field": missingErr.Field,
		})
	}
	var conflictErr engine.ConflictError
	if errors.As(err, &conflictErr) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), map[string]any{
			"stage": conflictErr.Stage,
		})
	}
	if errors.Is(err, engine.ErrInvalidDateRange) {
		return newAPIError(http.StatusUnprocessableEntity, "invalid_date_range", err.Error(), nil)
	}
	if errors.Is(err, stage.ErrUnknownStage) {
		return newAPIError(http.StatusBadRequest, "unknown_stage", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func actorID(header string) string {
	if header == "" {
		return "anonymous"
	}
	return header
}

func parseDate(field, value string) (time.Time, huma.StatusError) {
	t, err := datemath.Parse(value)
	if err != nil {
		return time.Time{}, newAPIError(http.StatusBadRequest, "bad_request",
			fmt.Sprintf("%s must be a date in %s", field, datemath.Layout), map[string]any{"field": field})
	}
	return t, nil
}

func parseOptionalDate(field, value string) (*time.Time, huma.StatusError) {
	if value == "" {
		return nil, nil
	}
	t, herr := parseDate(field, value)
	if herr != nil {
		return nil, herr
	}
	return &t, nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Demandline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDemands(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-demand",
		Method:        http.MethodPost,
		Path:          "/demands",
		Summary:       "Create demand",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ActorID string        `header:"X-Actor-Id"`
		Body    DemandRequest `json:"body"`
	}) (*struct {
		Body DemandResponse `json:"body"`
	}, error) {
		opts, herr := demandOptions(input.Body, input.ActorID)
		if herr != nil {
			return nil, herr
		}
		d, err := e.CreateDemand(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandResponse `json:"body"`
		}{Body: demandResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-demands",
		Method:      http.MethodGet,
		Path:        "/demands",
		Summary:     "List demands",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []DemandResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListDemands(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []DemandResponse `json:"body"`
		}{Body: mapDemands(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-demand",
		Method:      http.MethodGet,
		Path:        "/demands/{id}",
		Summary:     "Get demand",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body DemandResponse `json:"body"`
	}, error) {
		d, err := e.Repo.GetDemand(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandResponse `json:"body"`
		}{Body: demandResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-demand",
		Method:      http.MethodPatch,
		Path:        "/demands/{id}",
		Summary:     "Update demand",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID      string        `path:"id"`
		ActorID string        `header:"X-Actor-Id"`
		Body    DemandRequest `json:"body"`
	}) (*struct {
		Body DemandResponse `json:"body"`
	}, error) {
		opts, herr := demandOptions(input.Body, input.ActorID)
		if herr != nil {
			return nil, herr
		}
		opts.ID = input.ID
		d, err := e.UpdateDemand(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DemandResponse `json:"body"`
		}{Body: demandResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-demand",
		Method:      http.MethodDelete,
		Path:        "/demands/{id}",
		Summary:     "Delete demand and all its stage periods",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID      string `path:"id"`
		ActorID string `header:"X-Actor-Id"`
	}) (*struct{}, error) {
		if err := e.DeleteDemand(ctx, input.ID, actorID(input.ActorID)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func demandOptions(body DemandRequest, actor string) (engine.DemandOptions, huma.StatusError) {
	startDate, herr := parseOptionalDate("start_date", body.StartDate)
	if herr != nil {
		return engine.DemandOptions{}, herr
	}
	return engine.DemandOptions{
		ID:             body.ID,
		Name:           body.Name,
		ExternalID:     body.ExternalID,
		FileType:       body.FileType,
		FileSubtype:    body.FileSubtype,
		FileDetail:     body.FileDetail,
		Amount:         body.Amount,
		IOName:         body.IOName,
		StartDate:      startDate,
		DurationMonths: body.DurationMonths,
		ActorID:        actorID(actor),
	}, nil
}

func registerStageRecording(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "record-stage",
		Method:        http.MethodPost,
		Path:          "/demands/{id}/stages",
		Summary:       "Record the demand's next lifecycle stage",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID      string             `path:"id"`
		ActorID string             `header:"X-Actor-Id"`
		Body    RecordStageRequest `json:"body"`
	}) (*struct {
		Body PeriodResponse `json:"body"`
	}, error) {
		start, herr := parseDate("start_date", input.Body.StartDate)
		if herr != nil {
			return nil, herr
		}
		end, herr := parseDate("end_date", input.Body.EndDate)
		if herr != nil {
			return nil, herr
		}
		p, err := e.RecordStage(ctx, input.ID, input.Body.Stage, start, end, actorID(input.ActorID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PeriodResponse `json:"body"`
		}{Body: periodResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-demand-stages",
		Method:      http.MethodGet,
		Path:        "/demands/{id}/stages",
		Summary:     "List the demand's stage periods",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []PeriodResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetDemand(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		periods, err := e.Repo.ListPeriods(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []PeriodResponse `json:"body"`
		}{Body: mapPeriods(periods)}, nil
	})
}

func registerPeriods(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "edit-period-dates",
		Method:      http.MethodPatch,
		Path:        "/periods/{id}/dates",
		Summary:     "Correct a stage period's dates",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID      string           `path:"id"`
		ActorID string           `header:"X-Actor-Id"`
		Body    EditDatesRequest `json:"body"`
	}) (*struct {
		Body PeriodResponse `json:"body"`
	}, error) {
		start, herr := parseDate("start_date", input.Body.StartDate)
		if herr != nil {
			return nil, herr
		}
		end, herr := parseDate("end_date", input.Body.EndDate)
		if herr != nil {
			return nil, herr
		}
		p, err := e.EditPeriodDates(ctx, input.ID, start, end, actorID(input.ActorID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PeriodResponse `json:"body"`
		}{Body: periodResponse(p)}, nil
	})
}

func registerWeekly(api huma.API, e engine.Engine) {
	// Weekly updates answer HTTP 200 with {"success":false,"error":...} for
	// user-correctable failures; real status codes are reserved for missing
	// demands.
	huma.Register(api, huma.Operation{
		OperationID: "update-weekly-dates",
		Method:      http.MethodPost,
		Path:        "/demands/{id}/weekly-dates",
		Summary:     "Update the demand's weekly-report dates",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID      string             `path:"id"`
		ActorID string             `header:"X-Actor-Id"`
		Body    WeeklyDatesRequest `json:"body"`
	}) (*struct {
		Body AjaxResponse `json:"body"`
	}, error) {
		fail := func(msg string) (*struct {
			Body AjaxResponse `json:"body"`
		}, error) {
			return &struct {
				Body AjaxResponse `json:"body"`
			}{Body: AjaxResponse{Success: false, Error: msg}}, nil
		}
		if input.Body.WeeklyStartDate == "" || input.Body.WeeklyEndDate == "" {
			return fail("Missing required fields")
		}
		start, err := datemath.Parse(input.Body.WeeklyStartDate)
		if err != nil {
			return fail("Invalid date format")
		}
		end, err := datemath.Parse(input.Body.WeeklyEndDate)
		if err != nil {
			return fail("Invalid date format")
		}
		if err := e.UpdateWeeklyDates(ctx, input.ID, start, end, actorID(input.ActorID)); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, handleError(err)
			}
			if errors.Is(err, engine.ErrInvalidDateRange) {
				return fail("Start date cannot be after end date")
			}
			return fail(err.Error())
		}
		return &struct {
			Body AjaxResponse `json:"body"`
		}{Body: AjaxResponse{Success: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-weekly-stage",
		Method:      http.MethodPost,
		Path:        "/demands/{id}/weekly-stage",
		Summary:     "Update the demand's weekly-report stage",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID      string             `path:"id"`
		ActorID string             `header:"X-Actor-Id"`
		Body    WeeklyStageRequest `json:"body"`
	}) (*struct {
		Body AjaxResponse `json:"body"`
	}, error) {
		if input.Body.WeeklyStage == "" {
			return &struct {
				Body AjaxResponse `json:"body"`
			}{Body: AjaxResponse{Success: false, Error: "Missing required fields"}}, nil
		}
		if err := e.UpdateWeeklyStage(ctx, input.ID, input.Body.WeeklyStage, actorID(input.ActorID)); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, handleError(err)
			}
			return &struct {
				Body AjaxResponse `json:"body"`
			}{Body: AjaxResponse{Success: false, Error: err.Error()}}, nil
		}
		return &struct {
			Body AjaxResponse `json:"body"`
		}{Body: AjaxResponse{Success: true}}, nil
	})
}

func registerTimeline(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "timeline",
		Method:      http.MethodGet,
		Path:        "/timeline",
		Summary:     "Gantt render model for all demands",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body any `json:"body"`
	}, error) {
		model, err := e.Timeline(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body any `json:"body"`
		}{Body: model}, nil
	})
}

func registerStageLegend(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-stages",
		Method:      http.MethodGet,
		Path:        "/stages",
		Summary:     "Ordered lifecycle stage catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []stage.Stage `json:"body"`
	}, error) {
		return &struct {
			Body []stage.Stage `json:"body"`
		}{Body: stage.All()}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log tail",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit" default:"50"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		items, err := e.Repo.LatestEvents(ctx, limit, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}
