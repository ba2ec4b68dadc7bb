package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateUsage_FromCharCounts(t *testing.T) {
	// 100 字符提示 + 25 字符补全 = 125 字符 → round(125/4) = 31
	usage := EstimateUsage(100, 25, nil)
	require.Equal(t, 31, usage.TotalTokens)
	require.Equal(t, 25, usage.PromptTokens)
	require.Equal(t, 6, usage.CompletionTokens)
	require.Equal(t, usage.TotalTokens, usage.PromptTokens+usage.CompletionTokens)
}

func TestEstimateUsage_Empty(t *testing.T) {
	usage := EstimateUsage(0, 0, nil)
	require.Equal(t, 0, usage.TotalTokens)
	require.Equal(t, 0, usage.PromptTokens)
	require.Equal(t, 0, usage.CompletionTokens)
}

func TestEstimateUsage_ReportedTakesPrecedence(t *testing.T) {
	// 后端报告了精确值时忽略字符估算
	usage := EstimateUsage(100000, 100000, &Usage{InputTokens: 12, OutputTokens: 34})
	require.Equal(t, 12, usage.PromptTokens)
	require.Equal(t, 34, usage.CompletionTokens)
	require.Equal(t, 46, usage.TotalTokens)
}

func TestEstimateUsage_SumAlwaysEqualsTotal(t *testing.T) {
	for chars := 0; chars < 64; chars++ {
		usage := EstimateUsage(chars, chars*3, nil)
		require.Equal(t, usage.TotalTokens, usage.PromptTokens+usage.CompletionTokens,
			"chars=%d", chars)
	}
}

func TestSplitReportedTotal(t *testing.T) {
	usage := SplitReportedTotal(1000)
	require.Equal(t, 800, usage.InputTokens)
	require.Equal(t, 200, usage.OutputTokens)
	require.Equal(t, 1000, usage.Total())

	usage = SplitReportedTotal(1)
	require.Equal(t, 1, usage.Total())
}
