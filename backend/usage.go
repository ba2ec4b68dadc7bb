package backend

import (
	"math"

	"github.com/yuvalraviv1/codex-proxy/openaiapi"
)

// AvgCharsPerToken 字符长度估算 token 时使用的平均字符数。
const AvgCharsPerToken = 4

// promptShare 估算/拆分时提示词占总量的比例。
const promptShare = 0.8

// EstimateUsage 计算一次请求的 token 用量。后端报告了精确值时原样使用；
// 否则按字符长度估算：总量 = round(字符数/AvgCharsPerToken)，
// 提示词占 80%，余量归补全，两者之和严格等于总量。
func EstimateUsage(promptChars, completionChars int, reported *Usage) openaiapi.OpenAIUsage {
	if reported != nil {
		return openaiapi.OpenAIUsage{
			PromptTokens:     reported.InputTokens,
			CompletionTokens: reported.OutputTokens,
			TotalTokens:      reported.Total(),
		}
	}

	total := int(math.Round(float64(promptChars+completionChars) / AvgCharsPerToken))
	prompt := int(math.Round(float64(total) * promptShare))
	if prompt > total {
		prompt = total
	}
	return openaiapi.OpenAIUsage{
		PromptTokens:     prompt,
		CompletionTokens: total - prompt,
		TotalTokens:      total,
	}
}

// SplitReportedTotal 把后端只报告总量时的 token 数按 80/20 拆分。
// codex 的标准输出不区分 input/output，只能粗略估算。
func SplitReportedTotal(total int) Usage {
	input := int(float64(total) * promptShare)
	return Usage{InputTokens: input, OutputTokens: total - input}
}
