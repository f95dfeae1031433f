package store

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultStopWords are dropped from queries before matching. Manual
// questions are mostly Korean or English, so both are covered.
var DefaultStopWords = []string{
	"a", "an", "the", "is", "are", "do", "does", "how", "what", "why",
	"to", "of", "in", "on", "and", "or", "my", "can", "i",
	"어떻게", "무엇", "무엇인가요", "뭐", "왜", "어떤", "있나요", "하나요",
}

// TokenizeText splits text into lowercase terms on anything that is not a
// letter or digit. Terms shorter than two runes are dropped unless they
// contain a digit.
func TokenizeText(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 && !strings.ContainsFunc(f, unicode.IsDigit) {
			continue
		}
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

// QueryTerms tokenizes a query, drops stop words and duplicates, and keeps
// the first-seen order.
func QueryTerms(query string, stopWords map[string]struct{}) []string {
	tokens := FilterStopWords(TokenizeText(query), stopWords)
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

// FTSMatchExpr builds an FTS5 MATCH expression that ORs the quoted terms.
// Quoting keeps user punctuation from being parsed as FTS5 syntax.
func FTSMatchExpr(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}
