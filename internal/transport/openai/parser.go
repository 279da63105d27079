package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/lgoty/benefitsearch/internal/domain"
	"github.com/lgoty/benefitsearch/internal/domain/beneficiary"
	"github.com/lgoty/benefitsearch/internal/domain/catalog"
	"github.com/lgoty/benefitsearch/internal/domain/query"
)

// Parser asks a chat model to turn a free-text query into intent, keywords and filters.
// The result is unvalidated: codes and regions must be sanitized by the caller.
type Parser struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	system  string
	logger  *zap.Logger
}

// ParserConfig holds the semantic parser settings.
type ParserConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewParser creates a chat-completion query parser prompted with the beneficiary vocabulary.
func NewParser(cfg *ParserConfig, vocab *beneficiary.Vocabulary) *Parser {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Parser{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		system:  systemPrompt(vocab),
		logger:  logger,
	}
}

// parserResponse is the JSON object the model is instructed to return.
type parserResponse struct {
	Intent   string   `json:"intent"`
	Keywords []string `json:"keywords"`
	Filters  struct {
		ContentType   []string          `json:"content_type"`
		TargetGroups  []string          `json:"target_groups"`
		Regions       []json.RawMessage `json:"regions"`
		CategorySlugs []string          `json:"category_slugs"`
	} `json:"filters"`
}

// Parse sends the query to the model. userRegion is passed as context only.
func (p *Parser) Parse(ctx context.Context, text, userRegion string) (query.Parsed, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	user := "Запрос: " + text
	if userRegion != "" {
		user += "\nРегион пользователя: " + userRegion
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return query.Parsed{}, parseAPIError(err, "parser", domain.ErrParserProviderError)
	}
	if len(resp.Choices) == 0 {
		return query.Parsed{}, fmt.Errorf("no choices returned: %w", domain.ErrParserProviderError)
	}

	content := stripFences(resp.Choices[0].Message.Content)

	var raw parserResponse
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		p.logger.Debug("unparseable parser response", zap.String("content", content), zap.Error(err))
		return query.Parsed{}, fmt.Errorf("decode parser response: %v: %w", err, domain.ErrParserProviderError)
	}

	return raw.toParsed(), nil
}

func (r parserResponse) toParsed() query.Parsed {
	kinds := make([]catalog.Kind, 0, len(r.Filters.ContentType))
	for _, ct := range r.Filters.ContentType {
		kinds = append(kinds, catalog.Kind(strings.ToLower(strings.TrimSpace(ct))))
	}

	regions := make([]string, 0, len(r.Filters.Regions))
	for _, reg := range r.Filters.Regions {
		if s := rawScalar(reg); s != "" {
			regions = append(regions, s)
		}
	}

	return query.Parsed{
		Intent:   query.Intent(r.Intent),
		Keywords: r.Keywords,
		Filters: query.Filters{
			ContentTypes:  kinds,
			TargetGroups:  r.Filters.TargetGroups,
			Regions:       regions,
			CategorySlugs: r.Filters.CategorySlugs,
		},
	}
}

// rawScalar renders a JSON string or number as text. Regions come back as either.
func rawScalar(msg json.RawMessage) string {
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(msg, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
	}
	return ""
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func systemPrompt(vocab *beneficiary.Vocabulary) string {
	var b strings.Builder
	b.WriteString("Ты разбираешь поисковые запросы портала льгот. ")
	b.WriteString("Верни только JSON-объект вида ")
	b.WriteString(`{"intent":"find_benefits|find_commercial|mixed","keywords":[],`)
	b.WriteString(`"filters":{"content_type":["benefit","commercial"],"target_groups":[],"regions":[],"category_slugs":[]}}.`)
	b.WriteString("\nintent: find_benefits для государственных льгот, find_commercial для скидок партнёров, иначе mixed.")
	b.WriteString("\nkeywords: до 10 значимых слов запроса в нижнем регистре.")
	b.WriteString("\ntarget_groups: только коды из списка ниже. Если упомянута инвалидность без группы, перечисли все три кода групп.")
	b.WriteString("\nregions: названия или коды регионов, только если регион явно назван в запросе. Регион пользователя добавляй, только если запрос просит искать рядом или в своём регионе.")
	b.WriteString("\nКоды категорий граждан:")
	for _, g := range vocab.Groups() {
		b.WriteString("\n- ")
		b.WriteString(g.Code)
		b.WriteString(": ")
		b.WriteString(g.Label)
	}
	return b.String()
}
