package dedup

import (
	"crypto/md5"
	"encoding/binary"
	"sort"
	"strings"

	"github.com/sentinelcore/ingestcore/pkg/models"
)

// InBatchCandidate is one article considered for in-memory, same-batch
// duplicate detection.
type InBatchCandidate struct {
	ID      string
	URL     string
	Title   string
	Content string
}

// Config holds the tunable thresholds for the in-batch cascade
// (spec.md §4.9 defaults).
type Config struct {
	TitleJaccardThreshold   float64
	ContentMinHashThreshold float64
	MinHashSketchSize       int
	ShingleSize             int
}

// DefaultConfig returns spec.md §4.9's published defaults.
func DefaultConfig() Config {
	return Config{
		TitleJaccardThreshold:   0.75,
		ContentMinHashThreshold: 0.85,
		MinHashSketchSize:       100,
		ShingleSize:             3,
	}
}

// Match runs the four-strategy cascade against one candidate pair,
// first-match-wins: URL equality, title Jaccard, content MinHash, then
// entity matching via the supplied entityMatch callback (injected so
// this package stays independent of how callers extract entities; a nil
// callback skips the entity strategy).
func Match(cfg Config, a, b InBatchCandidate, entityMatch func(a, b InBatchCandidate) (float64, bool)) (models.DedupMatch, bool) {
	if a.URL != "" && a.URL == b.URL {
		return newMatch(a.ID, b.ID, models.DedupMethodURL, 1.0), true
	}

	if score := titleJaccard(a.Title, b.Title); score >= cfg.TitleJaccardThreshold {
		return newMatch(a.ID, b.ID, models.DedupMethodTitleJaccard, score), true
	}

	if score := contentMinHashSimilarity(cfg, a.Content, b.Content); score >= cfg.ContentMinHashThreshold {
		return newMatch(a.ID, b.ID, models.DedupMethodContentMinHash, score), true
	}

	if entityMatch != nil {
		if score, ok := entityMatch(a, b); ok {
			return newMatch(a.ID, b.ID, models.DedupMethodEntity, score), true
		}
	}

	return models.DedupMatch{}, false
}

func newMatch(sourceID, targetID string, method models.DedupMatchMethod, score float64) models.DedupMatch {
	return models.DedupMatch{SourceID: sourceID, TargetID: targetID, Method: method, Score: score}
}

// titleJaccard computes word-token Jaccard similarity, retaining only
// words longer than 2 characters (spec.md §4.9).
func titleJaccard(a, b string) float64 {
	return tokenJaccard(significantWords(a), significantWords(b))
}

func significantWords(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.Trim(f, ".,!?;:\"'()[]")
		if len(trimmed) > 2 {
			out = append(out, trimmed)
		}
	}
	return out
}

// contentMinHashSimilarity estimates content Jaccard similarity via a
// bottom-k MinHash sketch over 3-word shingles, MD5 truncated to 32
// bits (spec.md §4.9).
func contentMinHashSimilarity(cfg Config, a, b string) float64 {
	sketchA := minHashSketch(a, cfg.ShingleSize, cfg.MinHashSketchSize)
	sketchB := minHashSketch(b, cfg.ShingleSize, cfg.MinHashSketchSize)
	if len(sketchA) == 0 || len(sketchB) == 0 {
		return 0
	}

	setA := make(map[uint32]bool, len(sketchA))
	for _, h := range sketchA {
		setA[h] = true
	}
	inter := 0
	for _, h := range sketchB {
		if setA[h] {
			inter++
		}
	}
	union := len(sketchA) + len(sketchB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// minHashSketch returns the sketchSize smallest 32-bit shingle hashes
// ("bottom-k"), an estimator for the Jaccard similarity of the full
// shingle sets without keeping them in memory.
func minHashSketch(text string, shingleSize, sketchSize int) []uint32 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) < shingleSize {
		if len(words) == 0 {
			return nil
		}
		shingleSize = len(words)
	}

	hashes := make([]uint32, 0, len(words))
	for i := 0; i+shingleSize <= len(words); i++ {
		shingle := strings.Join(words[i:i+shingleSize], " ")
		sum := md5.Sum([]byte(shingle))
		hashes = append(hashes, binary.BigEndian.Uint32(sum[:4]))
	}

	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	// Dedup while keeping sort order, then cap to sketchSize.
	deduped := hashes[:0]
	var prev uint32
	for i, h := range hashes {
		if i == 0 || h != prev {
			deduped = append(deduped, h)
		}
		prev = h
	}
	if len(deduped) > sketchSize {
		deduped = deduped[:sketchSize]
	}
	return deduped
}
