package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"dvmap-service/internal/fileio"
	"dvmap-service/internal/metrics"
	"dvmap-service/internal/middleware"
	"dvmap-service/internal/standardize/model"
	"dvmap-service/internal/standardize/service"
	"dvmap-service/internal/store"
)

// Deps: всё, что нужно хендлерам; Store и Metrics опциональны.
type Deps struct {
	Schema  *service.Schema
	Rules   *service.RuleSet
	Options model.Options // дефолты; форма/тело запроса может их переопределить
	Store   *store.Store
	Metrics *metrics.Manager
}

type Handler struct {
	deps Deps
	log  zerolog.Logger
	now  func() time.Time
}

func New(d Deps, logger zerolog.Logger) *Handler {
	return &Handler{deps: d, log: logger, now: time.Now}
}

// Response: ответ /convert и /resolve.
type Response struct {
	RunID    string                 `json:"run_id,omitempty"`
	FileName string                 `json:"file_name,omitempty"`
	Headers  []string               `json:"renamed_headers,omitempty"`
	Report   model.ConversionReport `json:"report"`
	Metadata *model.Sidecar         `json:"metadata,omitempty"`
}

// Convert обслуживает POST /convert, multipart: file (+ header_row, threshold, margin,
// confidence_threshold, enable_fuzzy, infer, download, format).
// download=1 отдаёт переименованный файл вместо JSON.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	log := h.log.With().Str("rid", middleware.GetRequestID(r)).Logger()

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		clientFail(w, err, "bad multipart form")
		return
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file: "+err.Error())
		return
	}
	defer f.Close()

	opt, err := h.options(r.FormValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	headerRow := atoi(r.FormValue("header_row"), 1)
	if headerRow < 1 {
		writeError(w, http.StatusBadRequest, "header_row must be >= 1")
		return
	}

	table, err := fileio.ReadTable(f, fh.Filename, headerRow)
	if err != nil {
		clientFail(w, err, "failed to read file")
		return
	}
	if len(table.Headers) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "file has no header row")
		return
	}

	rep := service.Convert(table.Headers, h.deps.Schema, h.deps.Rules, opt)
	h.deps.Metrics.ObserveReport("http", rep, h.now().Sub(start))
	runID := h.archive(r.Context(), log, fh.Filename, rep)

	renamed := fileio.Table{Headers: service.RenameHeaders(table.Headers, rep), Rows: table.Rows}

	if on, _ := parseBool(r.FormValue("download")); on {
		name := outputName(fh.Filename, r.FormValue("format"))
		var buf bytes.Buffer
		if err := fileio.WriteTable(&buf, name, renamed); err != nil {
			serverFail(w, log, err, "failed to write file")
			return
		}
		if runID != "" {
			w.Header().Set("X-Run-ID", runID)
		}
		w.Header().Set("Content-Type", contentType(name))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		_, _ = w.Write(buf.Bytes())
		h.logDone(log, fh.Filename, rep, start)
		return
	}

	resp := Response{RunID: runID, FileName: fh.Filename, Headers: renamed.Headers, Report: rep}
	if opt.InferMetadata {
		sc := service.BuildSidecar(rep, h.now().UTC())
		resp.Metadata = &sc
	}
	writeJSON(w, http.StatusOK, resp)
	h.logDone(log, fh.Filename, rep, start)
}

// ResolveRequest: тело POST /resolve. Пустые поля означают значения по умолчанию.
type ResolveRequest struct {
	Columns             []string `json:"columns"`
	Threshold           *float64 `json:"threshold,omitempty"`
	Margin              *float64 `json:"margin,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	EnableFuzzy         *bool    `json:"enable_fuzzy,omitempty"`
	Infer               *bool    `json:"infer,omitempty"`
	Archive             bool     `json:"archive,omitempty"`
}

// Resolve обслуживает POST /resolve: только имена колонок, без файла.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	log := h.log.With().Str("rid", middleware.GetRequestID(r)).Logger()

	var req ResolveRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		clientFail(w, err, "bad json")
		return
	}
	if len(req.Columns) == 0 {
		writeError(w, http.StatusBadRequest, "columns must not be empty")
		return
	}

	opt := h.deps.Options
	for name, p := range map[string]*float64{"threshold": req.Threshold, "margin": req.Margin, "confidence_threshold": req.ConfidenceThreshold} {
		if p != nil && (*p < 0 || *p > 1) {
			writeError(w, http.StatusBadRequest, name+" must be in [0,1]")
			return
		}
	}
	if req.Threshold != nil {
		opt.Match.Threshold = *req.Threshold
	}
	if req.Margin != nil {
		opt.Match.Margin = *req.Margin
	}
	if req.ConfidenceThreshold != nil {
		opt.ReviewThreshold = *req.ConfidenceThreshold
	}
	if req.EnableFuzzy != nil {
		opt.Match.EnableFuzzy = *req.EnableFuzzy
	}
	if req.Infer != nil {
		opt.InferMetadata = *req.Infer
	}

	rep := service.Convert(req.Columns, h.deps.Schema, h.deps.Rules, opt)
	h.deps.Metrics.ObserveReport("http", rep, h.now().Sub(start))

	resp := Response{Report: rep}
	if req.Archive {
		resp.RunID = h.archive(r.Context(), log, "", rep)
	}
	if opt.InferMetadata {
		sc := service.BuildSidecar(rep, h.now().UTC())
		resp.Metadata = &sc
	}
	writeJSON(w, http.StatusOK, resp)
	h.logDone(log, "", rep, start)
}

// Schema отдаёт GET /schema: загруженная схема в нормальном виде.
func (h *Handler) Schema(w http.ResponseWriter, _ *http.Request) {
	sc := h.deps.Schema
	writeJSON(w, http.StatusOK, model.Schema{
		Version:  sc.Version(),
		DVs:      sc.DVs(),
		Clusters: sc.Clusters(),
	})
}

// Runs: GET /runs?limit=N.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		writeError(w, http.StatusNotFound, "run archive is disabled")
		return
	}
	runs, err := h.deps.Store.ListRuns(r.Context(), atoi(r.URL.Query().Get("limit"), 50))
	if err != nil {
		serverFail(w, h.log, err, "list runs")
		return
	}
	if runs == nil {
		runs = []store.RunInfo{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// Run отдаёт GET /runs/{id}: полный отчёт прогона.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		writeError(w, http.StatusNotFound, "run archive is disabled")
		return
	}
	rep, err := h.deps.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		serverFail(w, h.log, err, "get run")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Backlog отдаёт GET /review: частые нераспознанные имена.
func (h *Handler) Backlog(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		writeError(w, http.StatusNotFound, "run archive is disabled")
		return
	}
	items, err := h.deps.Store.UnresolvedBacklog(r.Context(), atoi(r.URL.Query().Get("limit"), 50))
	if err != nil {
		serverFail(w, h.log, err, "backlog")
		return
	}
	if items == nil {
		items = []store.BacklogItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// options: дефолты сервиса + поля формы.
func (h *Handler) options(get func(string) string) (model.Options, error) {
	opt := h.deps.Options
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"threshold", &opt.Match.Threshold},
		{"margin", &opt.Match.Margin},
		{"confidence_threshold", &opt.ReviewThreshold},
	} {
		s := get(f.key)
		if s == "" {
			continue
		}
		v, ok := parseUnit(s)
		if !ok {
			return opt, fmt.Errorf("%s must be a number in [0,1], got %q", f.key, s)
		}
		*f.dst = v
	}
	if s := get("enable_fuzzy"); s != "" {
		v, ok := parseBool(s)
		if !ok {
			return opt, fmt.Errorf("enable_fuzzy: bad bool %q", s)
		}
		opt.Match.EnableFuzzy = v
	}
	if s := get("infer"); s != "" {
		v, ok := parseBool(s)
		if !ok {
			return opt, fmt.Errorf("infer: bad bool %q", s)
		}
		opt.InferMetadata = v
	}
	return opt, nil
}

// archive сохраняет прогон; ошибка архива не валит запрос.
func (h *Handler) archive(ctx context.Context, log zerolog.Logger, fileName string, rep model.ConversionReport) string {
	if h.deps.Store == nil {
		return ""
	}
	id, err := h.deps.Store.SaveRun(ctx, store.Run{Source: "http", FileName: fileName, Report: rep})
	if err != nil {
		h.deps.Metrics.ArchiveFailed()
		log.Error().Err(err).Msg("archive run")
		return ""
	}
	return id
}

func (h *Handler) logDone(log zerolog.Logger, file string, rep model.ConversionReport, start time.Time) {
	s := rep.Summary
	log.Info().
		Str("file", file).
		Int("columns", s.TotalColumns).
		Int("resolved", s.Resolved).
		Int("unresolved", s.Unresolved).
		Int("ambiguous", s.Ambiguous).
		Int("needs_review", s.NeedsReview).
		Strs("conflicts", s.Conflicts).
		Dur("elapsed", h.now().Sub(start)).
		Msg("convert done")
}

// clientFail: ошибка во входных данных запроса.
func clientFail(w http.ResponseWriter, err error, msg string) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, fileio.ErrUnsupportedFile):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	default:
		writeError(w, http.StatusBadRequest, msg+": "+err.Error())
	}
}

// serverFail: ошибка на нашей стороне (архив, запись файла).
func serverFail(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	log.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, msg)
}

func outputName(in, format string) string {
	ext := strings.ToLower(filepath.Ext(in))
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	switch strings.ToLower(format) {
	case "xlsx":
		ext = ".xlsx"
	case "csv":
		ext = ".csv"
	default:
		if ext != ".xlsx" {
			ext = ".csv"
		}
	}
	return base + "_standardized" + ext
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".xlsx") {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return i
}
