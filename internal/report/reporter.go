package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"hydra-core/internal/allocator"
	"hydra-core/internal/config"
	"hydra-core/internal/regime"
	"hydra-core/internal/risk"
)

// Summary 是一份治理日报。
type Summary struct {
	GeneratedAt      time.Time                                `json:"generated_at"`
	Regime           regime.Regime                            `json:"regime"`
	Allocation       allocator.Allocation                     `json:"allocation"`
	Performance      map[string]allocator.PerformanceSnapshot `json:"performance"`
	PortfolioRisk    risk.PortfolioSnapshot                   `json:"portfolio_risk"`
	DecisionsEmitted int                                      `json:"decisions_emitted"`
	AlertsRaised     int                                      `json:"alerts_raised"`
	Narrative        string                                   `json:"narrative,omitempty"`
}

// Reporter 生成治理日报，可选调用大模型生成中文摘要。
type Reporter struct {
	cfg    config.ReportConfig
	logger *zap.Logger
	sdk    *openai.Client
}

// NewReporter 创建日报生成器。未配置 api_key 时跳过大模型摘要。
func NewReporter(cfg config.ReportConfig, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	r := &Reporter{cfg: cfg, logger: logger}
	if cfg.APIKey != "" {
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout + 5*time.Second}
		r.sdk = openai.NewClientWithConfig(clientConfig)
	}
	return r
}

// Generate 汇总当日治理状态。摘要生成失败只降级，不影响日报本身。
func (r *Reporter) Generate(ctx context.Context, summary Summary) Summary {
	summary.GeneratedAt = time.Now().UTC()

	if r.sdk != nil {
		narrative, err := r.narrate(ctx, summary)
		if err != nil {
			r.logger.Warn("生成日报摘要失败，使用原始数据", zap.Error(err))
		} else {
			summary.Narrative = narrative
		}
	}
	return summary
}

// Render 把日报渲染为纯文本，用于日志或通知通道。
func Render(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "治理日报 %s\n", s.GeneratedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "市况: %s (置信度 %.2f)\n", s.Regime.Type, s.Regime.Confidence)
	fmt.Fprintf(&b, "组合杠杆 %.2f, VaR95 %.4f, 回撤 %.4f\n",
		s.PortfolioRisk.Leverage, s.PortfolioRisk.VaR95, s.PortfolioRisk.CurrentDrawdown)
	fmt.Fprintf(&b, "当日决策 %d 次, 告警 %d 条\n", s.DecisionsEmitted, s.AlertsRaised)

	ids := make([]string, 0, len(s.Allocation.Weights))
	for id := range s.Allocation.Weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(&b, "  %s: 权重 %.4f", id, s.Allocation.Weights[id])
		if perf, ok := s.Performance[id]; ok {
			fmt.Fprintf(&b, " 胜率 %.2f 夏普 %.2f 回撤 %.2f", perf.WinRate, perf.Sharpe, perf.MaxDrawdown)
		}
		b.WriteString("\n")
	}
	if s.Narrative != "" {
		b.WriteString(s.Narrative)
		b.WriteString("\n")
	}
	return b.String()
}

func (r *Reporter) narrate(ctx context.Context, summary Summary) (string, error) {
	if r.cfg.Model == "" {
		return "", errors.New("report: model 不能为空")
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"你是量化交易平台的风控助手。请基于以下治理数据，用不超过200字的中文总结当日组合状态与需要关注的风险:\n%s",
		Render(Summary{
			GeneratedAt:      summary.GeneratedAt,
			Regime:           summary.Regime,
			Allocation:       summary.Allocation,
			Performance:      summary.Performance,
			PortfolioRisk:    summary.PortfolioRisk,
			DecisionsEmitted: summary.DecisionsEmitted,
			AlertsRaised:     summary.AlertsRaised,
		}),
	)

	response, err := r.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("调用OpenAI失败: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("OpenAI 返回结果为空")
	}

	narrative := strings.TrimSpace(response.Choices[0].Message.Content)
	if narrative == "" {
		return "", errors.New("OpenAI 返回内容为空")
	}
	return narrative, nil
}
