package region

import (
	"github.com/antzucaro/matchr"
)

// suggestChromosome finds the known chromosome name closest to chrom
// by edit distance, for use in ErrUnknownChromosome messages. Mirrors
// fusion's use of an edit-distance library for approximate gene-name
// matching, generalized to chromosome names.
func (t *Table) suggestChromosome(chrom string) string {
	best := ""
	bestDist := -1
	for _, c := range t.Chromosomes() {
		d := matchr.DamerauLevenshtein(chrom, c)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = c
		}
	}
	// Only surface the suggestion if it's plausibly a typo, not an
	// unrelated name.
	if bestDist >= 0 && bestDist <= 2 {
		return best
	}
	return ""
}
