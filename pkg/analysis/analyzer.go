package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quidome/carvtrainer-go/pkg/jsontext"
)

// ErrNoImages is returned when AnalyzeScreenshots receives nothing to look at.
var ErrNoImages = errors.New("analysis: no images")

// Plan is a generated training plan and the analysis values it was based on.
type Plan struct {
	TrainingPlan string
	SkiIQ        any
	NumRuns      any
}

// Analyzer turns screenshots into a structured analysis and analyses into training plans.
type Analyzer struct {
	model     Model
	maxTokens int
	log       *zap.Logger
}

func NewAnalyzer(model Model, maxTokens int, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Analyzer{model: model, maxTokens: maxTokens, log: log}
}

// AnalyzeScreenshots sends every image in one request and decodes the JSON object in the reply.
//
// The raw reply is returned alongside the error when it could not be decoded; such errors
// wrap jsontext.ErrUnparseable.
func (a *Analyzer) AnalyzeScreenshots(ctx context.Context, images []Image) (map[string]any, string, error) {
	if len(images) == 0 {
		return nil, "", ErrNoImages
	}

	system, err := renderPrompt("analysis_system.tmpl", nil)
	if err != nil {
		return nil, "", err
	}
	prompt, err := renderPrompt("analysis_user.tmpl", analysisPromptData{NumImages: len(images)})
	if err != nil {
		return nil, "", err
	}

	start := time.Now()
	raw, err := a.model.Generate(ctx, Request{
		System:    system,
		Prompt:    prompt,
		Images:    images,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		a.log.Error("Model call failed",
			zap.String("operation", "analyze"),
			zap.Stringer("kind", Classify(err)),
			zap.Error(err))
		return nil, "", err
	}

	a.log.Info("Screenshots analyzed",
		zap.Int("images", len(images)),
		zap.Int("response_len", len(raw)),
		zap.Duration("took", time.Since(start)))

	var result map[string]any
	if err := jsontext.Decode(raw, &result); err != nil {
		a.log.Warn("Model reply was not JSON", zap.Error(err))
		return nil, raw, err
	}
	if result == nil {
		return nil, raw, fmt.Errorf("%w: reply is null", jsontext.ErrUnparseable)
	}
	return result, raw, nil
}

// GeneratePlan asks the model for a Markdown training plan based on a prior analysis.
func (a *Analyzer) GeneratePlan(ctx context.Context, data map[string]any) (Plan, error) {
	plan := Plan{SkiIQ: SkiIQ(data), NumRuns: NumRuns(data)}

	analysisJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return Plan{}, fmt.Errorf("marshal analysis: %w", err)
	}

	system, err := renderPrompt("plan_system.tmpl", nil)
	if err != nil {
		return Plan{}, err
	}
	prompt, err := renderPrompt("plan_user.tmpl", planPromptData{
		AnalysisData: string(analysisJSON),
		SkiIQ:        plan.SkiIQ,
		NumRuns:      plan.NumRuns,
	})
	if err != nil {
		return Plan{}, err
	}

	start := time.Now()
	text, err := a.model.Generate(ctx, Request{
		System:    system,
		Prompt:    prompt,
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		a.log.Error("Model call failed",
			zap.String("operation", "generate_plan"),
			zap.Stringer("kind", Classify(err)),
			zap.Error(err))
		return Plan{}, err
	}

	a.log.Info("Training plan generated",
		zap.Any("ski_iq", plan.SkiIQ),
		zap.Int("plan_len", len(text)),
		zap.Duration("took", time.Since(start)))

	plan.TrainingPlan = text
	return plan, nil
}

// SkiIQ returns session_overview.ski_iq_range.average when it is set and non-zero,
// otherwise "Unknown".
func SkiIQ(data map[string]any) any {
	overview, _ := data["session_overview"].(map[string]any)
	iqRange, _ := overview["ski_iq_range"].(map[string]any)
	if avg, ok := iqRange["average"]; ok && truthy(avg) {
		return avg
	}
	return "Unknown"
}

// NumRuns returns num_screenshots, defaulting to 1 when absent.
func NumRuns(data map[string]any) any {
	if n, ok := data["num_screenshots"]; ok {
		return n
	}
	return 1
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
