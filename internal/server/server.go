package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"taskraid/internal/apperr"
	"taskraid/internal/domain"
	"taskraid/internal/engine"
	"taskraid/internal/events"
	"taskraid/internal/game"
	"taskraid/internal/review"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Review   review.Service
	BasePath string
	Auth     AuthConfig
	Logger   *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"MEMBER_DEAD"`
	Message string         `json:"message" example:"member m1 is dead"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"member_id\":\"m1\"}"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type output[T any] struct {
	Body T
}

func reply[T any](v T) *output[T] { return &output[T]{Body: v} }

type projectPath struct {
	ProjectID string `path:"project_id"`
}

type taskPath struct {
	ProjectID string `path:"project_id"`
	TaskID    string `path:"task_id"`
}

// New returns an HTTP handler exposing the taskraid API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("server: jwt secret required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return huma.NewError(status, msg, errs...)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(log))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("taskraid API", "0.1.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerProjects(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerBoss(group, cfg.Engine)
	registerCombat(group, cfg.Engine)
	registerReviews(group, cfg.Review)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
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
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
	var details map[string]any
	if len(ae.Metadata) > 0 {
		details = make(map[string]any, len(ae.Metadata))
		for k, v := range ae.Metadata {
			details[k] = v
		}
	}
	status := http.StatusInternalServerError
	switch ae.Kind() {
	case apperr.KindValidation:
		status = http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindPermission:
		status = http.StatusForbidden
	}
	return newAPIError(status, string(ae.Code), ae.Message, details)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <title>taskraid API Docs</title>
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
	}, func(ctx context.Context, _ *struct{}) (*output[map[string]string], error) {
		return reply(map[string]string{"status": "ok"}), nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest
	}) (*output[ProjectResponse], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			ID:          input.Body.ID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			OwnerID:     userID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return projectReply(ctx, e, p)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project with members",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*output[ProjectResponse], error) {
		if _, err := requireMember(ctx, e, input.ProjectID); err != nil {
			return nil, err
		}
		p, err := e.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return projectReply(ctx, e, p)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project (owner only)",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      UpdateProjectRequest
	}) (*output[ProjectResponse], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdateProject(ctx, engine.ProjectUpdateOptions{
			ID:          input.ProjectID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			ActorID:     userID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return projectReply(ctx, e, p)
	})

	huma.Register(api, huma.Operation{
		OperationID: "join-project",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/members",
		Summary:     "Join project",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *projectPath) (*output[domain.Member], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.JoinProject(ctx, input.ProjectID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(m), nil
	})
}

func projectReply(ctx context.Context, e engine.Engine, p domain.Project) (*output[ProjectResponse], error) {
	members, err := e.ListMembers(ctx, p.ID)
	if err != nil {
		return nil, handleError(err)
	}
	return reply(ProjectResponse{Project: p, Members: members}), nil
}

// requireMember returns the caller's user id once membership is confirmed.
func requireMember(ctx context.Context, e engine.Engine, projectID string) (string, huma.StatusError) {
	userID, authErr := userIDFromContext(ctx)
	if authErr != nil {
		return "", authErr
	}
	members, err := e.ListMembers(ctx, projectID)
	if err != nil {
		return "", handleError(err)
	}
	for _, m := range members {
		if m.UserID == userID {
			return userID, nil
		}
	}
	return "", handleError(apperr.New(apperr.CodeNotProjectMember, fmt.Sprintf("%s is not a member of project %s", userID, projectID)))
}

// taskInProject loads the task and hides tasks of other projects.
func taskInProject(ctx context.Context, e engine.Engine, projectID, taskID string) (domain.Task, huma.StatusError) {
	t, err := e.GetTask(ctx, taskID)
	if err != nil {
		return t, handleError(err)
	}
	if t.ProjectID != projectID {
		return t, handleError(apperr.NotFound("task", taskID))
	}
	return t, nil
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      CreateTaskRequest
	}) (*output[domain.Task], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			ID:          input.Body.ID,
			ProjectID:   input.ProjectID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			Deadline:    input.Body.Deadline,
			ActorID:     userID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*output[[]domain.Task], error) {
		if _, err := requireMember(ctx, e, input.ProjectID); err != nil {
			return nil, err
		}
		items, err := e.ListTasks(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Task{}
		}
		return reply(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		Body      UpdateTaskRequest
	}) (*output[domain.Task], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := taskInProject(ctx, e, input.ProjectID, input.TaskID); err != nil {
			return nil, err
		}
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			ID:            input.TaskID,
			Title:         input.Body.Title,
			Description:   input.Body.Description,
			Priority:      input.Body.Priority,
			Deadline:      input.Body.Deadline,
			ClearDeadline: input.Body.ClearDeadline,
			Status:        domain.TaskStatus(input.Body.Status),
			ActorID:       userID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/tasks/{task_id}/complete",
		Summary:     "Complete task and attack the boss",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *taskPath) (*output[engine.CompleteResult], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := taskInProject(ctx, e, input.ProjectID, input.TaskID); err != nil {
			return nil, err
		}
		res, err := e.CompleteTask(ctx, input.TaskID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}/tasks/{task_id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := taskInProject(ctx, e, input.ProjectID, input.TaskID); err != nil {
			return nil, err
		}
		if err := e.DeleteTask(ctx, input.TaskID, userID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-task",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/tasks/{task_id}/assignees",
		Summary:     "Assign a member",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		Body      AssignRequest
	}) (*output[domain.Task], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := taskInProject(ctx, e, input.ProjectID, input.TaskID); err != nil {
			return nil, err
		}
		t, err := e.AssignMember(ctx, input.TaskID, input.Body.MemberID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unassign-task",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/tasks/{task_id}/assignees/{member_id}",
		Summary:     "Unassign a member",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		MemberID  string `path:"member_id"`
	}) (*output[domain.Task], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := taskInProject(ctx, e, input.ProjectID, input.TaskID); err != nil {
			return nil, err
		}
		t, err := e.UnassignMember(ctx, input.TaskID, input.MemberID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(t), nil
	})
}

func registerBoss(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "game-status",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/status",
		Summary:     "Boss and member status",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *projectPath) (*output[game.Snapshot], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		snap, err := e.Status(ctx, input.ProjectID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(snap), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "setup-boss",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/boss",
		Summary:     "Set up the first boss",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *projectPath) (*output[domain.Boss], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.SetupBoss(ctx, input.ProjectID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(b), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "setup-special-boss",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/boss/special",
		Summary:     "Summon a special boss",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *projectPath) (*output[domain.Boss], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.SetupSpecialBoss(ctx, input.ProjectID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(b), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "next-phase",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/boss/next-phase",
		Summary:     "Retry boss phase progression",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *projectPath) (*output[game.PhaseResult], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.NextPhase(ctx, input.ProjectID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})
}

func registerCombat(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "boss-attack",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/attack",
		Summary:     "Let the boss strike a task's assignees",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      BossAttackRequest
	}) (*output[game.BossAttackResult], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.BossAttack(ctx, input.ProjectID, userID, input.Body.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "heal",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/heal",
		Summary:     "Heal a member",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      HealRequest
	}) (*output[game.HealResult], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.Heal(ctx, input.ProjectID, userID, input.Body.MemberID, input.Body.HealValue)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revive",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/revive",
		Summary:     "Revive a dead member",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      *ReviveRequest
	}) (*output[domain.Member], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var memberID string
		if input.Body != nil {
			memberID = input.Body.MemberID
		}
		m, err := e.Revive(ctx, input.ProjectID, userID, memberID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(m), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "use-item",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/items/use",
		Summary:     "Use an owned item",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      UseItemRequest
	}) (*output[game.UseItemResult], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.UseItem(ctx, input.ProjectID, userID, input.Body.OwnedItemID)
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})
}

func registerReviews(api huma.API, r review.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-review",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks/{task_id}/reviews",
		Summary:       "Review the assignees of a task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		TaskID    string `path:"task_id"`
		Body      ReviewRequest
	}) (*output[review.Result], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := r.Create(ctx, review.CreateOptions{
			ProjectID:   input.ProjectID,
			TaskID:      input.TaskID,
			Description: input.Body.Description,
			ReporterID:  userID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return reply(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reviews",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks/{task_id}/reviews",
		Summary:     "List reviews of a task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*output[[]domain.Report], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := r.List(ctx, input.ProjectID, input.TaskID, userID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Report{}
		}
		return reply(items), nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/events",
		Summary:     "List recent events, newest first",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string    `path:"project_id"`
		Types     []string  `query:"type"`
		Since     time.Time `query:"since"`
		Limit     int       `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*output[EventsResponse], error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Events(ctx, engine.EventQuery{
			ProjectID: input.ProjectID,
			Types:     eventTypes(input.Types),
			Since:     input.Since,
			Limit:     input.Limit,
			ActorID:   userID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []events.Entry{}
		}
		return reply(EventsResponse{Items: items}), nil
	})
}
