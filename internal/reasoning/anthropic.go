package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultMaxTokens is the reply cap used when a request does not set one.
const DefaultMaxTokens int64 = 4096

// ClientConfig contains configuration for creating an AnthropicService.
type ClientConfig struct {
	// Model is the Claude model to use (e.g., anthropic.ModelClaudeSonnet4_20250514).
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// MaxTokens is the default reply cap.
	MaxTokens int64
	// UseAWSBedrock indicates whether to use AWS Bedrock instead of direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
	// Logger receives one debug line per call.
	Logger *slog.Logger
}

// AnthropicService is a Service backed by the Anthropic Messages API.
type AnthropicService struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *slog.Logger
}

// NewAnthropicService creates a new Anthropic-backed reasoning service.
func NewAnthropicService(ctx context.Context, cfg ClientConfig) (*AnthropicService, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &AnthropicService{
		inner:     anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}, nil
}

// translateModelForBedrock converts standard Anthropic model names to Bedrock
// cross-region inference profiles: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	if strings.HasPrefix(string(model), "us.anthropic.") {
		return model
	}
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaudeOpus4_5_20251101:   "us.anthropic.claude-opus-4-5-20251101-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// Model returns the configured model name.
func (s *AnthropicService) Model() anthropic.Model {
	return s.model
}

// Complete sends one message and returns the concatenated text reply.
// Transport failures are returned as *ServiceError.
func (s *AnthropicService) Complete(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	start := time.Now()
	resp, err := s.inner.Messages.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		return nil, &ServiceError{Op: "messages.new", Err: err}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	usage := UsageFor(string(s.model), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	s.logger.Debug("reasoning call",
		"task_id", req.TaskID,
		"schema", req.Schema.Name,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"stop_reason", string(resp.StopReason),
		"latency", latency,
	)

	return &Response{
		Content: text.String(),
		Usage:   usage,
		Latency: latency,
		Model:   string(s.model),
	}, nil
}
