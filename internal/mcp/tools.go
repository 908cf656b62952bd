package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/acmg-amp-rating/internal/domain"
	"github.com/acmg-amp-rating/internal/service"
)

// Tool inputs use plain strings so clients can send criterion codes ("Pm1"), presences
// ("Present") and strengths ("STRONG") as they read them.

// CriterionParam is one criterion entry of a rating record.
type CriterionParam struct {
	Code     string `json:"code"`
	Presence string `json:"presence"`
	Strength string `json:"strength,omitempty"`
}

// JudgmentParam is one source-attributed judgment.
type JudgmentParam struct {
	Source   string `json:"source"`
	Code     string `json:"code"`
	Presence string `json:"presence"`
	Strength string `json:"strength,omitempty"`
}

// ListCriteriaParams defines parameters for list_criteria tool
type ListCriteriaParams struct{}

// ClassifyRatingParams defines parameters for classify_rating tool
type ClassifyRatingParams struct {
	Comment  string           `json:"comment,omitempty"`
	Criteria []CriterionParam `json:"criteria"`
}

// MergeJudgmentsParams defines parameters for merge_judgments tool
type MergeJudgmentsParams struct {
	Judgments []JudgmentParam `json:"judgments"`
}

// VariantParams identifies one variant.
type VariantParams struct {
	Variant string `json:"variant"`
}

// SaveRatingParams defines parameters for save_rating tool
type SaveRatingParams struct {
	Variant  string           `json:"variant"`
	Comment  string           `json:"comment,omitempty"`
	Criteria []CriterionParam `json:"criteria"`
	// Mode is "create", "update" or "upsert" (default).
	Mode string `json:"mode,omitempty"`
}

// ListRatingsParams defines parameters for list_ratings tool
type ListRatingsParams struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ExportRatingsParams defines parameters for export_ratings tool
type ExportRatingsParams struct{}

// ReviewVariantParams defines parameters for review_variant tool
type ReviewVariantParams struct {
	Variant   string           `json:"variant"`
	Judgments []CriterionParam `json:"judgments,omitempty"`
	Save      bool             `json:"save,omitempty"`
	Comment   string           `json:"comment,omitempty"`
}

// CriteriaResult is the catalog returned by list_criteria.
type CriteriaResult struct {
	Criteria []domain.Criterion         `json:"criteria"`
	Rules    []service.RuleDescription `json:"rules"`
}

// RatingResult is returned by get_rating.
type RatingResult struct {
	Variant    string               `json:"variant"`
	Record     *domain.RatingRecord `json:"record"`
	Evaluation *service.Evaluation  `json:"evaluation"`
}

// ListRatingsResult is returned by list_ratings.
type ListRatingsResult struct {
	Ratings []*domain.StoredRating `json:"ratings"`
	Total   int                    `json:"total"`
}

// ExportRatingsResult is returned by export_ratings.
type ExportRatingsResult struct {
	FilePath string `json:"file_path"`
	Count    int    `json:"count"`
}

// ReviewResult is returned by review_variant.
type ReviewResult struct {
	SessionID  string              `json:"session_id"`
	OpenedAt   time.Time           `json:"opened_at"`
	Saved      bool                `json:"saved"`
	Evaluation *service.Evaluation `json:"evaluation"`
}

func (s *LiteServer) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_criteria",
		Description: "List the 28 ACMG/AMP criteria with their default strengths and the combining rules",
	}, s.handleListCriteria)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "classify_rating",
		Description: "Classify a rating record (reviewer judgments per criterion) without storing it",
	}, s.handleClassifyRating)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "merge_judgments",
		Description: "Merge judgments from InterVar, AutoACMG, AutoPVS1 and the reviewer and classify the result",
	}, s.handleMergeJudgments)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_rating",
		Description: "Fetch the stored rating of a variant with its verdict",
	}, s.handleGetRating)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "save_rating",
		Description: "Create or update the stored rating of a variant",
	}, s.handleSaveRating)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_rating",
		Description: "Delete the stored rating of a variant",
	}, s.handleDeleteRating)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_ratings",
		Description: "List stored ratings, most recently updated first",
	}, s.handleListRatings)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_ratings",
		Description: "Export every stored rating to a JSON file in the data directory",
	}, s.handleExportRatings)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "review_variant",
		Description: "Pull automated predictions for a variant, apply reviewer judgments and optionally save",
	}, s.handleReviewVariant)

	s.logger.WithField("tool_count", 9).Info("Registered MCP tools")
}

func (s *LiteServer) handleListCriteria(ctx context.Context, req *mcp.CallToolRequest, _ ListCriteriaParams) (*mcp.CallToolResult, any, error) {
	return s.jsonResult("list_criteria", CriteriaResult{
		Criteria: domain.AllCriteria(),
		Rules:    service.CombiningRules(),
	})
}

func (s *LiteServer) handleClassifyRating(ctx context.Context, req *mcp.CallToolRequest, params ClassifyRatingParams) (*mcp.CallToolResult, any, error) {
	record, err := parseRecord(params.Comment, params.Criteria)
	if err != nil {
		return s.errorResult("classify_rating", "Invalid rating record", err), nil, nil
	}
	eval, err := s.service.ClassifyRecord(record)
	if err != nil {
		return s.errorResult("classify_rating", "Invalid rating record", err), nil, nil
	}
	return s.jsonResult("classify_rating", eval)
}

func (s *LiteServer) handleMergeJudgments(ctx context.Context, req *mcp.CallToolRequest, params MergeJudgmentsParams) (*mcp.CallToolResult, any, error) {
	judgments := make([]domain.Judgment, 0, len(params.Judgments))
	for i, p := range params.Judgments {
		j, err := parseJudgment(p)
		if err != nil {
			return s.errorResult("merge_judgments", "Invalid judgment", fmt.Errorf("judgments[%d]: %w", i, err)), nil, nil
		}
		judgments = append(judgments, j)
	}
	eval, err := s.service.MergeJudgments(judgments)
	if err != nil {
		return s.errorResult("merge_judgments", "Invalid judgment", err), nil, nil
	}
	return s.jsonResult("merge_judgments", eval)
}

func (s *LiteServer) handleGetRating(ctx context.Context, req *mcp.CallToolRequest, params VariantParams) (*mcp.CallToolResult, any, error) {
	record, err := s.service.GetRating(ctx, params.Variant)
	if err != nil {
		return s.errorResult("get_rating", "Failed to get rating", err), nil, nil
	}
	eval, err := s.service.ClassifyRecord(record)
	if err != nil {
		return s.errorResult("get_rating", "Stored rating is invalid", err), nil, nil
	}
	key, _ := domain.CanonicalVariant(params.Variant)
	eval.Variant = key
	return s.jsonResult("get_rating", RatingResult{Variant: key, Record: record, Evaluation: eval})
}

func (s *LiteServer) handleSaveRating(ctx context.Context, req *mcp.CallToolRequest, params SaveRatingParams) (*mcp.CallToolResult, any, error) {
	record, err := parseRecord(params.Comment, params.Criteria)
	if err != nil {
		return s.errorResult("save_rating", "Invalid rating record", err), nil, nil
	}

	var eval *service.Evaluation
	switch params.Mode {
	case "", "upsert":
		eval, err = s.service.PutRating(ctx, params.Variant, record)
	case "create":
		eval, err = s.service.CreateRating(ctx, params.Variant, record)
	case "update":
		eval, err = s.service.UpdateRating(ctx, params.Variant, record)
	default:
		err = domain.NewValidationError("mode", "must be create, update or upsert", params.Mode)
	}
	if err != nil {
		return s.errorResult("save_rating", "Failed to save rating", err), nil, nil
	}
	return s.jsonResult("save_rating", eval)
}

func (s *LiteServer) handleDeleteRating(ctx context.Context, req *mcp.CallToolRequest, params VariantParams) (*mcp.CallToolResult, any, error) {
	if err := s.service.DeleteRating(ctx, params.Variant); err != nil {
		return s.errorResult("delete_rating", "Failed to delete rating", err), nil, nil
	}
	return s.jsonResult("delete_rating", map[string]interface{}{"deleted": true, "variant": params.Variant})
}

func (s *LiteServer) handleListRatings(ctx context.Context, req *mcp.CallToolRequest, params ListRatingsParams) (*mcp.CallToolResult, any, error) {
	if params.Limit < 0 || params.Offset < 0 {
		return s.errorResult("list_ratings", "Invalid paging", domain.NewValidationError("limit", "limit and offset must be non-negative", params.Limit)), nil, nil
	}
	ratings, total, err := s.service.ListRatings(ctx, domain.ListOptions{Limit: params.Limit, Offset: params.Offset})
	if err != nil {
		return s.errorResult("list_ratings", "Failed to list ratings", err), nil, nil
	}
	return s.jsonResult("list_ratings", ListRatingsResult{Ratings: ratings, Total: total})
}

func (s *LiteServer) handleExportRatings(ctx context.Context, req *mcp.CallToolRequest, _ ExportRatingsParams) (*mcp.CallToolResult, any, error) {
	dir := s.config.ExportDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return s.errorResult("export_ratings", "Failed to create export directory", err), nil, nil
	}

	filePath := filepath.Join(dir, fmt.Sprintf("ratings_export_%s.json", time.Now().Format("20060102_150405")))
	file, err := os.Create(filePath)
	if err != nil {
		return s.errorResult("export_ratings", "Failed to create export file", err), nil, nil
	}
	defer file.Close()

	if err := s.store.ExportJSON(ctx, file); err != nil {
		return s.errorResult("export_ratings", "Failed to export ratings", err), nil, nil
	}
	count, _ := s.store.Count(ctx)
	return s.jsonResult("export_ratings", ExportRatingsResult{FilePath: filePath, Count: count})
}

func (s *LiteServer) handleReviewVariant(ctx context.Context, req *mcp.CallToolRequest, params ReviewVariantParams) (*mcp.CallToolResult, any, error) {
	session, err := s.service.OpenSession(ctx, params.Variant)
	if err != nil {
		return s.errorResult("review_variant", "Failed to open review", err), nil, nil
	}

	for i, p := range params.Judgments {
		rc, err := parseCriterion(p)
		if err != nil {
			return s.errorResult("review_variant", "Invalid judgment", fmt.Errorf("judgments[%d]: %w", i, err)), nil, nil
		}
		if _, _, err := session.SetJudgment(rc.Code, rc.Presence, rc.Strength); err != nil {
			return s.errorResult("review_variant", "Invalid judgment", fmt.Errorf("judgments[%d]: %w", i, err)), nil, nil
		}
	}

	result := ReviewResult{SessionID: session.ID(), OpenedAt: session.OpenedAt()}
	if params.Save {
		comment := params.Comment
		if comment == "" {
			comment = session.Comment()
		}
		eval, err := s.service.SaveSession(ctx, session, comment)
		if err != nil {
			return s.errorResult("review_variant", "Failed to save review", err), nil, nil
		}
		result.Saved, result.Evaluation = true, eval
	} else {
		result.Evaluation = session.Evaluate()
	}
	return s.jsonResult("review_variant", result)
}

func parseCriterion(p CriterionParam) (domain.RatingCriterion, error) {
	code, err := domain.ParseCriterionCode(p.Code)
	if err != nil {
		return domain.RatingCriterion{}, err
	}
	presence, err := domain.ParsePresence(p.Presence)
	if err != nil {
		return domain.RatingCriterion{}, err
	}
	strength := domain.RuleStrength(strings.ToUpper(strings.TrimSpace(p.Strength)))
	return domain.RatingCriterion{Code: code, Presence: presence, Strength: strength}, nil
}

func parseRecord(comment string, criteria []CriterionParam) (*domain.RatingRecord, error) {
	record := &domain.RatingRecord{Comment: comment, Criteria: make([]domain.RatingCriterion, 0, len(criteria))}
	for i, p := range criteria {
		rc, err := parseCriterion(p)
		if err != nil {
			return nil, fmt.Errorf("criteria[%d]: %w", i, err)
		}
		record.Criteria = append(record.Criteria, rc)
	}
	return record, nil
}

func parseJudgment(p JudgmentParam) (domain.Judgment, error) {
	source, err := domain.ParseSource(p.Source)
	if err != nil {
		return domain.Judgment{}, err
	}
	rc, err := parseCriterion(CriterionParam{Code: p.Code, Presence: p.Presence, Strength: p.Strength})
	if err != nil {
		return domain.Judgment{}, err
	}
	return domain.Judgment{Source: source, Code: rc.Code, Presence: rc.Presence, Strength: rc.Strength}, nil
}

// jsonResult renders v as the tool's text content.
func (s *LiteServer) jsonResult(tool string, v interface{}) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to encode result: %w", tool, err)
	}
	s.logger.WithField("tool", tool).Debug("Tool completed")
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// errorResult creates a standardized error result for tool calls
func (s *LiteServer) errorResult(tool, message string, err error) *mcp.CallToolResult {
	entry := s.logger.WithField("tool", tool).WithError(err)
	var persistence *domain.PersistenceError
	if domain.IsValidationError(err) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAlreadyExists) {
		entry.Debug(message)
	} else if errors.As(err, &persistence) {
		entry.Warn(message)
	} else {
		entry.Error(message)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Error: %s - %v", message, err)},
		},
		IsError: true,
	}
}
