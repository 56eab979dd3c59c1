package resolver

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/fraga/KnowledgeNexus/internal/models"
)

// Similarity scores two entity names in [0, 1]. It takes the better of an
// edit-distance ratio and a token overlap so that both near-misspellings
// ("Jon Smith" / "John Smith") and reorderings ("Smith, John" / "John Smith")
// score high.
func Similarity(a, b string) float64 {
	na, nb := models.NormalizeName(a), models.NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	lev := levenshteinRatio(na, nb)
	jac := tokenJaccard(na, nb)
	if jac > lev {
		return jac
	}
	return lev
}

func levenshteinRatio(a, b string) float64 {
	dist := levenshtein.ComputeDistance(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(longest)
}

func tokenJaccard(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]bool, len(ta))
	for _, tok := range ta {
		set[tok] = true
	}

	union := make(map[string]bool, len(ta)+len(tb))
	for _, tok := range ta {
		union[tok] = true
	}
	intersection := 0
	for _, tok := range tb {
		if set[tok] {
			intersection++
			// Count each shared token once.
			set[tok] = false
		}
		union[tok] = true
	}
	return float64(intersection) / float64(len(union))
}

// bestFuzzyMatch scans same-type entities and returns the one most similar to
// name, or nil when none clears the threshold. Ties break on the higher score
// first and then on the smaller entity id, so the winner is deterministic
// regardless of scan order.
func bestFuzzyMatch(name string, candidates []models.ResolvedEntity, threshold float64) *models.ResolvedEntity {
	var (
		best      *models.ResolvedEntity
		bestScore float64
	)
	for i := range candidates {
		cand := &candidates[i]
		score := similarityToEntity(name, cand)
		if score < threshold {
			continue
		}
		if best == nil || score > bestScore ||
			(score == bestScore && cand.EntityID < best.EntityID) {
			best = cand
			bestScore = score
		}
	}
	return best
}

// similarityToEntity scores name against the canonical name and every alias,
// keeping the best.
func similarityToEntity(name string, entity *models.ResolvedEntity) float64 {
	score := Similarity(name, entity.CanonicalName)
	for _, alias := range entity.Aliases {
		if s := Similarity(name, alias); s > score {
			score = s
		}
	}
	return score
}
