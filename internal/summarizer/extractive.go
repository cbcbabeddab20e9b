package summarizer

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// ExtractiveModel is the local fallback: it picks the highest scoring
// sentences by word frequency and returns them in their original order.
type ExtractiveModel struct{}

var _ Model = ExtractiveModel{}

func (ExtractiveModel) Name() string { return "extractive" }

func (ExtractiveModel) Device() Device { return DeviceCPU }

var sentenceExpr = regexp.MustCompile(`[^.!?…]+(?:[.!?…]+["'”»)\]]*|$)`)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "with": true, "this": true,
	"from": true, "are": true, "was": true, "were": true, "has": true, "have": true,
	"had": true, "but": true, "not": true, "its": true, "their": true, "they": true,
	"will": true, "would": true, "said": true, "been": true, "also": true, "into": true,
	"than": true, "more": true, "about": true, "which": true, "there": true, "after": true,
	"що": true, "для": true, "які": true, "яка": true, "його": true, "або": true,
	"про": true, "від": true, "так": true, "також": true, "був": true, "була": true,
}

type sentence struct {
	index int
	text  string
	words int
	score float64
}

func (ExtractiveModel) Summarize(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sentences := splitSentences(req.Text)
	if len(sentences) == 0 {
		return "", nil
	}

	freq := map[string]int{}
	for _, s := range sentences {
		for _, t := range terms(s.text) {
			freq[t]++
		}
	}
	for i := range sentences {
		ts := terms(sentences[i].text)
		if len(ts) == 0 {
			continue
		}
		var sum float64
		for _, t := range ts {
			sum += float64(freq[t])
		}
		sentences[i].score = sum / float64(len(ts))
		if i == 0 {
			// leads carry the news
			sentences[i].score *= 1.5
		}
	}

	ranked := make([]sentence, len(sentences))
	copy(ranked, sentences)
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	var (
		picked []sentence
		words  int
	)
	for _, s := range ranked {
		if words >= req.MinLength && words > 0 {
			break
		}
		if req.MaxLength > 0 && words+s.words > req.MaxLength {
			continue
		}
		picked = append(picked, s)
		words += s.words
	}
	if len(picked) == 0 {
		// every sentence is longer than the bound; cut the best one
		best := ranked[0]
		fields := strings.Fields(best.text)
		if req.MaxLength > 0 && len(fields) > req.MaxLength {
			fields = fields[:req.MaxLength]
		}
		return strings.Join(fields, " "), nil
	}

	sort.Slice(picked, func(a, b int) bool { return picked[a].index < picked[b].index })
	parts := make([]string, len(picked))
	for i, s := range picked {
		parts[i] = s.text
	}
	return strings.Join(parts, " "), nil
}

func splitSentences(text string) []sentence {
	var out []sentence
	for _, raw := range sentenceExpr.FindAllString(text, -1) {
		t := strings.Join(strings.Fields(raw), " ")
		n := len(strings.Fields(t))
		if n == 0 || t == Ellipsis {
			continue
		}
		out = append(out, sentence{index: len(out), text: t, words: n})
	}
	return out
}

func terms(s string) []string {
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) < 3 || stopwords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// ExtractiveLoader always succeeds.
type ExtractiveLoader struct{}

var _ Loader = ExtractiveLoader{}

func (ExtractiveLoader) Name() string { return "extractive" }

func (ExtractiveLoader) Load(context.Context) (Model, error) {
	return ExtractiveModel{}, nil
}
