package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "massupload/internal/errors"
	"massupload/internal/exporter"
	"massupload/internal/infrastructure"
	"massupload/internal/middleware"
	"massupload/internal/operations"
	"massupload/internal/services"
	"massupload/internal/store"
	"massupload/internal/upload"
)

// FileField is the multipart field carrying the workbook.
const FileField = "file"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrNoAnnotatedCopy is answered when a finished upload has no annotated
// workbook on disk.
var ErrNoAnnotatedCopy = apierrors.New(http.StatusNotFound, "NO_ANNOTATED_COPY", "No annotated copy is available for this upload")

// UploadService is the service layer the upload handler drives.
type UploadService interface {
	Types() []*upload.UploadTypeConfig
	Template(typ upload.UploadType, w io.Writer) error
	Process(ctx context.Context, sub services.Submission) (*services.Outcome, error)
	Submit(ctx context.Context, sub services.Submission) (*operations.Job, error)
	Job(id string) (*operations.Job, error)
	Status(id string) (operations.UploadSnapshot, bool)
	History(ctx context.Context, user string, limit int) ([]store.UploadLog, error)
	AnnotatedPath(ctx context.Context, id, user string) (string, error)
}

// UploadHandler handles upload related HTTP requests
type UploadHandler struct {
	service      UploadService
	validator    *middleware.Validator
	errorHandler *apierrors.ErrorHandler
	maxBytes     int64
	historyLimit int
	logger       *slog.Logger
}

// NewUploadHandler creates the handler. maxBytes bounds the request body.
func NewUploadHandler(service UploadService, v *middleware.Validator, eh *apierrors.ErrorHandler, maxBytes int64, historyLimit int, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &UploadHandler{
		service:      service,
		validator:    v,
		errorHandler: eh,
		maxBytes:     maxBytes,
		historyLimit: historyLimit,
		logger:       logger.With(slog.String("handler", "upload")),
	}
}

// TypeRoutes returns the router mounted at /api/upload-types.
func (h *UploadHandler) TypeRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListTypes)
	r.Get("/{type}/template", h.Template)
	return r
}

// Routes returns the router mounted at /api/uploads. Every route requires
// a user.
func (h *UploadHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireUser(h.validator, h.errorHandler))
	r.Get("/history", h.History)
	r.Get("/jobs/{id}", h.JobStatus)
	r.Get("/{id}/annotated", h.Annotated)
	r.Post("/{type}", h.Create)
	return r
}

type typeView struct {
	Type         upload.UploadType   `json:"type"`
	Name         string              `json:"name"`
	ActionColumn string              `json:"actionColumn"`
	FlagColumn   string              `json:"flagColumn"`
	Required     []upload.ColumnSpec `json:"required"`
	Optional     []upload.ColumnSpec `json:"optional"`
	Prefilled    []upload.ColumnSpec `json:"prefilled"`
	Template     string              `json:"template"`
}

// ListTypes handles GET /api/upload-types
func (h *UploadHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	configs := h.service.Types()
	out := make([]typeView, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, typeView{
			Type:         cfg.Type(),
			Name:         cfg.Name(),
			ActionColumn: cfg.ActionColumn(),
			FlagColumn:   cfg.FlagColumn(),
			Required:     cfg.Required(),
			Optional:     cfg.Optional(),
			Prefilled:    cfg.Prefilled(),
			Template:     "/api/upload-types/" + string(cfg.Type()) + "/template",
		})
	}
	render.JSON(w, r, map[string]any{"types": out})
}

// Template handles GET /api/upload-types/{type}/template
func (h *UploadHandler) Template(w http.ResponseWriter, r *http.Request) {
	typ := chi.URLParam(r, "type")
	var buf bytes.Buffer
	if err := h.service.Template(upload.UploadType(typ), &buf); err != nil {
		h.errorHandler.HandleError(w, r, h.translate(err, typ))
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+typ+`_template.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type createRequest struct {
	Type     string `json:"type" validate:"required,upload_type"`
	Filename string `json:"filename" validate:"required,filename"`
}

// Create handles POST /api/uploads/{type}
func (h *UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("upload-handler").Start(r.Context(), "upload_handler.create",
		trace.WithAttributes(attribute.String("request_id", middleware.GetRequestID(r.Context()))))
	defer span.End()
	r = r.WithContext(ctx)

	user, _ := middleware.UserFromContext(ctx)
	async, err := h.validator.QueryBool(r, "async")
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	sub, err := h.readSubmission(w, r)
	if err != nil {
		span.RecordError(err)
		h.errorHandler.HandleError(w, r, err)
		return
	}
	sub.User = user
	sub.TraceID = infrastructure.GetTraceID(ctx)
	span.SetAttributes(
		attribute.String("upload.type", string(sub.Type)),
		attribute.Int("upload.bytes", len(sub.Data)),
		attribute.Bool("upload.async", async),
	)

	if async {
		job, err := h.service.Submit(ctx, sub)
		if err != nil {
			span.SetStatus(codes.Error, "enqueue failed")
			h.errorHandler.HandleError(w, r, h.translate(err, string(sub.Type)))
			return
		}
		h.logger.InfoContext(ctx, "upload queued",
			slog.String("upload_id", job.ID),
			slog.String("type", job.Type),
			slog.String("user", user))
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, map[string]any{
			"uploadId": job.ID,
			"status":   job.Status,
			"message":  "Upload queued for processing",
			"pollUrl":  "/api/uploads/jobs/" + job.ID,
		})
		return
	}

	out, err := h.service.Process(ctx, sub)
	if err != nil {
		span.SetStatus(codes.Error, "upload failed")
		h.errorHandler.HandleError(w, r, h.translate(err, string(sub.Type)))
		return
	}
	span.SetAttributes(attribute.String("upload.status", out.Status))
	render.JSON(w, r, out)
}

func (h *UploadHandler) readSubmission(w http.ResponseWriter, r *http.Request) (services.Submission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.Submission{}, apierrors.ErrFileTooLarge
		}
		return services.Submission{}, apierrors.InvalidRequestWithError(err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(FileField)
	if err != nil {
		return services.Submission{}, apierrors.NewValidationErrors([]apierrors.ValidationError{
			{Field: FileField, Message: "file is required"},
		})
	}
	defer file.Close()

	req := createRequest{Type: chi.URLParam(r, "type"), Filename: header.Filename}
	if err := h.validator.ValidateStruct(req); err != nil {
		return services.Submission{}, err
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return services.Submission{}, apierrors.InvalidRequestWithError(err)
	}
	return services.Submission{
		Type:     upload.UploadType(req.Type),
		Filename: req.Filename,
		Data:     data,
	}, nil
}

// JobStatus handles GET /api/uploads/jobs/{id}
func (h *UploadHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, _ := middleware.UserFromContext(r.Context())

	job, err := h.service.Job(id)
	if err == nil && job.User != user {
		err = operations.ErrJobNotFound
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, h.translate(err, ""))
		return
	}

	resp := map[string]any{"job": job}
	if snap, ok := h.service.Status(id); ok {
		resp["progress"] = snap
	}
	render.JSON(w, r, resp)
}

// Annotated handles GET /api/uploads/{id}/annotated
func (h *UploadHandler) Annotated(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, _ := middleware.UserFromContext(r.Context())

	path, err := h.service.AnnotatedPath(r.Context(), id, user)
	if err != nil {
		h.errorHandler.HandleError(w, r, h.translate(err, ""))
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`_result.xlsx"`)
	http.ServeFile(w, r, path)
}

type historyEntry struct {
	store.UploadLog
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Annotated  string     `json:"annotated,omitempty"`
}

// History handles GET /api/uploads/history
func (h *UploadHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := h.validator.QueryInt(r, "limit", 1, 1000, h.historyLimit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	user, _ := middleware.UserFromContext(r.Context())

	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "csv" {
		h.errorHandler.HandleError(w, r, apierrors.ErrInvalidFormat)
		return
	}

	entries, err := h.service.History(r.Context(), user, limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="upload_history.csv"`)
		if err := exporter.WriteHistoryCSV(w, entries); err != nil {
			h.logger.ErrorContext(r.Context(), "history export failed", slog.String("error", err.Error()))
		}
		return
	}
	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		item := historyEntry{UploadLog: e}
		if e.FinishedAt.Valid {
			t := e.FinishedAt.Time
			item.FinishedAt = &t
		}
		if e.AnnotatedPath.Valid {
			item.Annotated = "/api/uploads/" + e.ID + "/annotated"
		}
		out = append(out, item)
	}
	render.JSON(w, r, map[string]any{"uploads": out, "count": len(out)})
}

// translate maps service errors onto API errors. Unknown errors pass
// through to the error handler's generic mapping.
func (h *UploadHandler) translate(err error, typ string) error {
	switch {
	case errors.Is(err, upload.ErrUnknownUploadType):
		return apierrors.UnknownUploadType(typ)
	case errors.Is(err, services.ErrUnreadableWorkbook):
		return apierrors.UnreadableSheet(err)
	case errors.Is(err, operations.ErrQueueFull):
		return apierrors.ErrQueueFull
	case errors.Is(err, operations.ErrJobNotFound):
		return apierrors.ErrJobNotFound
	case errors.Is(err, services.ErrUploadNotFound):
		return apierrors.ErrUploadNotFound
	case errors.Is(err, services.ErrNoAnnotatedCopy):
		return ErrNoAnnotatedCopy
	default:
		return err
	}
}
