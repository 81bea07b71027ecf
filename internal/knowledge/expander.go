package knowledge

import (
	"context"
	"strings"

	"github.com/aihub/knowledge-go/internal/dashscope"
)

// maxQueryVariants 扩写产生的额外查询变体上限，限制embed调用次数
const maxQueryVariants = 2

// QueryExpander 查询扩写接口，返回原查询之外的改写变体
type QueryExpander interface {
	Expand(ctx context.Context, query string) ([]string, error)
}

// NoopQueryExpander 不扩写
type NoopQueryExpander struct{}

func (n *NoopQueryExpander) Expand(ctx context.Context, query string) ([]string, error) {
	return nil, nil
}

// LLMQueryExpander 用DashScope聊天接口生成查询改写
type LLMQueryExpander struct {
	service *dashscope.Service
	model   string
}

// NewLLMQueryExpander 创建LLM查询扩写器，服务不可用时退化为Noop
func NewLLMQueryExpander(service *dashscope.Service, model string) QueryExpander {
	if service == nil || !service.Ready() {
		return &NoopQueryExpander{}
	}
	if model == "" {
		model = "qwen-turbo"
	}
	return &LLMQueryExpander{
		service: service,
		model:   model,
	}
}

func (e *LLMQueryExpander) Expand(ctx context.Context, query string) ([]string, error) {
	maxTokens := 200
	temperature := 0.3
	resp, err := e.service.ChatCompletion(ctx, dashscope.ChatRequest{
		Model: e.model,
		Messages: []dashscope.ChatMessage{
			{
				Role: "system",
				Content: "你是检索查询改写助手。给定用户查询，生成最多2个语义等价的改写，" +
					"每行一个，不要编号，不要解释。",
			},
			{Role: "user", Content: query},
		},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}

	var variants []string
	for _, line := range strings.Split(resp.Choices[0].Message.Content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, query) {
			continue
		}
		variants = append(variants, line)
		if len(variants) == maxQueryVariants {
			break
		}
	}
	return variants, nil
}
