package vectordb

import (
	"math"
	"sort"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
)

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// matchesFilter applies a SearchFilter to chunk metadata.
func matchesFilter(meta map[string]string, f *entities.SearchFilter) bool {
	if f == nil {
		return true
	}
	if len(f.DocIDs) > 0 {
		found := false
		for _, id := range f.DocIDs {
			if meta[entities.MetaDocID] == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Private != nil {
		want := "false"
		if *f.Private {
			want = "true"
		}
		if meta[entities.MetaPrivate] != want {
			return false
		}
	}
	return true
}

// rank sorts hits by descending score, drops those under the threshold and
// keeps the top k.
func rank(results []entities.QueryResult, opts entities.SearchOptions) []entities.QueryResult {
	kept := results[:0]
	for _, r := range results {
		if opts.Threshold <= 0 || r.Score >= opts.Threshold {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})
	if opts.TopK > 0 && len(kept) > opts.TopK {
		kept = kept[:opts.TopK]
	}
	return kept
}

func fileName(meta map[string]string) string {
	if n := meta[entities.MetaFileName]; n != "" {
		return n
	}
	return meta[entities.MetaSource]
}
