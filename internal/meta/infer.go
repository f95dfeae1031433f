// Package meta derives structured identifiers from manual file names.
//
// Inference is best effort. Callers must accept empty results, and a
// structured metadata source can replace Infer without touching ingestion.
package meta

import (
	"regexp"
	"strings"
)

var (
	separatorRe = regexp.MustCompile(`[^A-Za-z0-9\-]+`)
	modelRe     = regexp.MustCompile(`[A-Za-z]{2,}\d{2,}`)
	lettersRe   = regexp.MustCompile(`^[A-Za-z]+$`)
	dateRe      = regexp.MustCompile(`(20\d{2}-\d{2}-\d{2})`)
)

// Inferred holds what could be read from a file name stem.
type Inferred struct {
	// Models lists product model codes in first-seen order, without duplicates.
	Models []string
	// CreatedAt is a YYYY-MM-DD date in the 2000s, or empty.
	CreatedAt string
}

// Infer extracts model codes and a creation date from a file name stem.
//
// The stem is split on anything that is not a letter, digit, or hyphen.
// A token is a model code when it contains two or more letters followed by
// two or more digits. Hyphenated tokens that do not match as a whole are
// also tried as adjacent pairs with the hyphen removed, so "AC-1234X"
// yields "AC1234X".
func Infer(stem string) Inferred {
	seen := make(map[string]struct{})
	models := []string{}
	add := func(m string) {
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		models = append(models, m)
	}

	for _, tok := range separatorRe.Split(stem, -1) {
		if tok == "" {
			continue
		}
		if modelRe.MatchString(tok) {
			add(tok)
			continue
		}
		if !strings.Contains(tok, "-") {
			continue
		}
		segs := strings.Split(tok, "-")
		for i := 0; i+1 < len(segs); i++ {
			if !lettersRe.MatchString(segs[i]) {
				continue
			}
			if joined := segs[i] + segs[i+1]; modelRe.MatchString(joined) {
				add(joined)
			}
		}
	}

	var created string
	if m := dateRe.FindStringSubmatch(stem); m != nil {
		created = m[1]
	}

	return Inferred{Models: models, CreatedAt: created}
}
