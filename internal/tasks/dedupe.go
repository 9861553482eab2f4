package tasks

import (
	"strings"
	"unicode"
)

// Threshold is the word-set Jaccard similarity at which two items count as duplicates.
const Threshold = 0.8

// Item is anything with a title and a longer description.
type Item interface {
	Title() string
	Detail() string
}

// Dedupe drops near-duplicate items, keeping the first occurrence and the
// original order. Two items are duplicates when their titles match after
// case folding and trimming, or when the Jaccard similarity of the word sets
// of their titles or of their details reaches Threshold.
func Dedupe[T Item](items []T) []T {
	kept := make([]T, 0, len(items))
	keptWords := make([]itemWords, 0, len(items))

	for _, item := range items {
		w := itemWords{
			title:  normalizeTitle(item.Title()),
			titleW: wordSet(item.Title()),
			detail: wordSet(item.Detail()),
		}
		dup := false
		for _, k := range keptWords {
			if isDuplicate(w, k) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, item)
		keptWords = append(keptWords, w)
	}
	return kept
}

// DedupeTasks is Dedupe specialised for a TaskList.
func DedupeTasks(tl TaskList) TaskList {
	return TaskList(Dedupe([]Task(tl)))
}

// Jaccard returns |A∩B| / |A∪B| over the word sets of a and b. Two empty
// inputs have similarity 0 so they never match.
func Jaccard(a, b string) float64 {
	return jaccard(wordSet(a), wordSet(b))
}

type itemWords struct {
	title  string
	titleW map[string]struct{}
	detail map[string]struct{}
}

func isDuplicate(a, b itemWords) bool {
	if a.title != "" && a.title == b.title {
		return true
	}
	return jaccard(a.titleW, b.titleW) >= Threshold || jaccard(a.detail, b.detail) >= Threshold
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func wordSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
