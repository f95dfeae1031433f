package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"korean words", "세탁기 필터는 어떻게 청소하나요?", []string{"세탁기", "필터는", "어떻게", "청소하나요"}},
		{"lowercases latin", "Door LOCK", []string{"door", "lock"}},
		{"keeps short tokens with digits", "error E3 on page 7", []string{"error", "e3", "on", "page", "7"}},
		{"drops single letters", "a b cd", []string{"cd"}},
		{"punctuation splits", `model:"WM3900"-x`, []string{"model", "wm3900"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeText(tt.input))
		})
	}
}

func TestQueryTerms_DropsStopWordsAndDuplicates(t *testing.T) {
	stop := BuildStopWordMap(DefaultStopWords)

	got := QueryTerms("How do I clean the filter? Filter 청소 어떻게", stop)

	assert.Equal(t, []string{"clean", "filter", "청소"}, got)
}

func TestFTSMatchExpr_QuotesTerms(t *testing.T) {
	assert.Equal(t, `"door" OR "lock"`, FTSMatchExpr([]string{"door", "lock"}))
	assert.Equal(t, `"a""b"`, FTSMatchExpr([]string{`a"b`}))
	assert.Equal(t, "", FTSMatchExpr(nil))
}
