// Package mcpserver отдаёт сопоставление колонок как MCP-инструменты
// (stdio), чтобы ассистент в IDE мог проверять заголовки без HTTP.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"dvmap-service/internal/metrics"
	"dvmap-service/internal/standardize/model"
	"dvmap-service/internal/standardize/service"
)

// Server: MCP-сервер поверх скомпилированной схемы и правил.
type Server struct {
	MCPServer *sdkmcp.Server

	schema  *service.Schema
	rules   *service.RuleSet
	options model.Options
	metrics *metrics.Manager
	log     zerolog.Logger
}

func NewServer(sc *service.Schema, rules *service.RuleSet, opt model.Options, m *metrics.Manager, logger zerolog.Logger, version string) *Server {
	s := &Server{
		MCPServer: sdkmcp.NewServer(
			&sdkmcp.Implementation{Name: "dvmap", Version: version},
			nil,
		),
		schema:  sc,
		rules:   rules,
		options: opt,
		metrics: m,
		log:     logger.With().Str("component", "mcp").Logger(),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "resolve_columns",
		Description: "Map raw dataset column headers to canonical DV ids (exact, alias, fuzzy) and infer measurement metadata.",
	}, s.handleResolveColumns)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "infer_metadata",
		Description: "Infer category, unit, scale type and direction for one column name.",
	}, s.handleInferMetadata)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_schema",
		Description: "Return the loaded DV schema: version, canonical DVs with aliases, clusters.",
	}, s.handleGetSchema)
}

// Run обслуживает одного клиента на stdin/stdout до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info().Int("dvs", s.schema.Len()).Msg("mcp server over stdio")
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

// --- входы/выходы инструментов ---

type resolveColumnsInput struct {
	Columns             []string `json:"columns" jsonschema:"column headers in dataset order"`
	Threshold           *float64 `json:"threshold,omitempty" jsonschema:"fuzzy similarity threshold 0..1 (default from config)"`
	Margin              *float64 `json:"margin,omitempty" jsonschema:"minimum lead of the best fuzzy candidate (default 0.05)"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty" jsonschema:"metadata confidence below this is flagged for review"`
	EnableFuzzy         *bool    `json:"enable_fuzzy,omitempty" jsonschema:"set false for exact and alias matches only"`
	Infer               *bool    `json:"infer,omitempty" jsonschema:"infer measurement metadata (default true)"`
}

// columnResult: плоская запись по колонке; слайсы всегда не nil.
type columnResult struct {
	Index          int               `json:"index"`
	InputName      string            `json:"input_name"`
	NormalizedName string            `json:"normalized_name"`
	ResolvedID     string            `json:"resolved_id,omitempty"`
	OutputName     string            `json:"output_name"`
	MatchTier      model.MatchTier   `json:"match_tier"`
	Similarity     float64           `json:"similarity_score"`
	Ambiguous      bool              `json:"ambiguous"`
	Candidates     []model.Candidate `json:"candidates"`
	Category       model.Category    `json:"category,omitempty"`
	PrimaryUnit    string            `json:"primary_unit,omitempty"`
	ScaleType      model.ScaleType   `json:"scale_type,omitempty"`
	Direction      model.Direction   `json:"direction,omitempty"`
	Confidence     float64           `json:"confidence,omitempty"`
	MatchedRules   []string          `json:"matched_rules"`
	NeedsReview    bool              `json:"needs_review"`
}

type resolveColumnsOutput struct {
	SchemaVersion string            `json:"schema_version"`
	Columns       []columnResult    `json:"columns"`
	Mapping       map[string]string `json:"mapping"`
	Resolved      int               `json:"resolved"`
	Unresolved    int               `json:"unresolved"`
	Ambiguous     int               `json:"ambiguous"`
	NeedsReview   int               `json:"needs_review"`
	Conflicts     []string          `json:"conflicts"`
	ChangeRate    float64           `json:"change_rate"`
}

type inferMetadataInput struct {
	Column              string   `json:"column" jsonschema:"raw column header"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty" jsonschema:"metadata confidence below this is flagged for review"`
}

type getSchemaInput struct{}

type dvEntry struct {
	ID          string                 `json:"id"`
	Label       string                 `json:"label,omitempty"`
	Cluster     string                 `json:"cluster,omitempty"`
	Aliases     []string               `json:"aliases"`
	Measurement *model.MeasurementSpec `json:"measurement,omitempty"`
}

type getSchemaOutput struct {
	Version  string          `json:"version"`
	DVs      []dvEntry       `json:"dvs"`
	Clusters []model.Cluster `json:"clusters"`
}

// --- обработчики ---

func (s *Server) handleResolveColumns(_ context.Context, _ *sdkmcp.CallToolRequest, input resolveColumnsInput) (*sdkmcp.CallToolResult, resolveColumnsOutput, error) {
	if len(input.Columns) == 0 {
		return nil, resolveColumnsOutput{}, errors.New("columns must not be empty")
	}
	opt := s.options
	for name, p := range map[string]*float64{
		"threshold":            input.Threshold,
		"margin":               input.Margin,
		"confidence_threshold": input.ConfidenceThreshold,
	} {
		if p != nil && (*p < 0 || *p > 1) {
			return nil, resolveColumnsOutput{}, fmt.Errorf("%s must be in [0,1], got %g", name, *p)
		}
	}
	if input.Threshold != nil {
		opt.Match.Threshold = *input.Threshold
	}
	if input.Margin != nil {
		opt.Match.Margin = *input.Margin
	}
	if input.ConfidenceThreshold != nil {
		opt.ReviewThreshold = *input.ConfidenceThreshold
	}
	if input.EnableFuzzy != nil {
		opt.Match.EnableFuzzy = *input.EnableFuzzy
	}
	if input.Infer != nil {
		opt.InferMetadata = *input.Infer
	}

	start := time.Now()
	rep := service.Convert(input.Columns, s.schema, s.rules, opt)
	s.metrics.ObserveReport("mcp", rep, time.Since(start))

	out := resolveColumnsOutput{
		SchemaVersion: rep.SchemaVersion,
		Columns:       make([]columnResult, 0, len(rep.Columns)),
		Mapping:       rep.Mapping.Map(),
		Resolved:      rep.Summary.Resolved,
		Unresolved:    rep.Summary.Unresolved,
		Ambiguous:     rep.Summary.Ambiguous,
		NeedsReview:   rep.Summary.NeedsReview,
		Conflicts:     append([]string{}, rep.Summary.Conflicts...),
		ChangeRate:    rep.Summary.ChangeRate,
	}
	for _, c := range rep.Columns {
		out.Columns = append(out.Columns, flatten(c))
	}
	s.log.Debug().Int("columns", len(out.Columns)).Int("resolved", out.Resolved).Msg("resolve_columns")
	return nil, out, nil
}

func (s *Server) handleInferMetadata(_ context.Context, _ *sdkmcp.CallToolRequest, input inferMetadataInput) (*sdkmcp.CallToolResult, columnResult, error) {
	if input.Column == "" {
		return nil, columnResult{}, errors.New("column must not be empty")
	}
	opt := s.options
	opt.InferMetadata = true
	if p := input.ConfidenceThreshold; p != nil {
		if *p < 0 || *p > 1 {
			return nil, columnResult{}, fmt.Errorf("confidence_threshold must be in [0,1], got %g", *p)
		}
		opt.ReviewThreshold = *p
	}
	rep := service.Convert([]string{input.Column}, s.schema, s.rules, opt)
	return nil, flatten(rep.Columns[0]), nil
}

func (s *Server) handleGetSchema(_ context.Context, _ *sdkmcp.CallToolRequest, _ getSchemaInput) (*sdkmcp.CallToolResult, getSchemaOutput, error) {
	out := getSchemaOutput{
		Version:  s.schema.Version(),
		Clusters: append([]model.Cluster{}, s.schema.Clusters()...),
	}
	for _, dv := range s.schema.DVs() {
		out.DVs = append(out.DVs, dvEntry{
			ID:          dv.ID,
			Label:       dv.Label,
			Cluster:     dv.Cluster,
			Aliases:     append([]string{}, dv.Aliases...),
			Measurement: dv.Measurement,
		})
	}
	if out.DVs == nil {
		out.DVs = []dvEntry{}
	}
	return nil, out, nil
}

func flatten(c model.ColumnReport) columnResult {
	r := c.Resolution
	out := columnResult{
		Index:          c.Index,
		InputName:      r.InputName,
		NormalizedName: r.NormalizedName,
		ResolvedID:     r.ID(),
		OutputName:     c.OutputName(),
		MatchTier:      r.MatchTier,
		Similarity:     r.Similarity,
		Ambiguous:      r.Ambiguous,
		Candidates:     append([]model.Candidate{}, r.Candidates...),
		MatchedRules:   []string{},
	}
	if inf := c.Inference; inf != nil {
		out.Category = inf.Category
		out.PrimaryUnit = inf.PrimaryUnit
		out.ScaleType = inf.ScaleType
		out.Direction = inf.Direction
		out.Confidence = inf.Confidence
		out.MatchedRules = append(out.MatchedRules, inf.MatchedRules...)
		out.NeedsReview = inf.NeedsReview
	}
	return out
}
