package util

// TextChunk is one window of a source text. Start and End are rune offsets
// into the source, End exclusive.
type TextChunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

var boundaries = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// SplitText cuts text into windows of at most size runes. Each window ends on
// the last paragraph break, line break, sentence end or space it contains,
// falling back to a hard cut, and the next window starts exactly overlap
// runes before the previous one ended.
func SplitText(text string, size, overlap int) []TextChunk {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	out := make([]TextChunk, 0, n/(size-overlap)+1)
	start := 0
	for {
		if n-start <= size {
			out = append(out, TextChunk{Index: len(out), Text: string(runes[start:]), Start: start, End: n})
			return out
		}
		end := cutPoint(runes, start+overlap+1, start+size)
		out = append(out, TextChunk{Index: len(out), Text: string(runes[start:end]), Start: start, End: end})
		start = end - overlap
	}
}

// cutPoint returns the largest end in [minEnd, maxEnd] that falls right after
// a boundary, trying boundaries in priority order.
func cutPoint(runes []rune, minEnd, maxEnd int) int {
	for _, b := range boundaries {
		sep := []rune(b)
		for end := maxEnd; end >= minEnd; end-- {
			if hasSuffixAt(runes, end, sep) {
				return end
			}
		}
	}
	return maxEnd
}

func hasSuffixAt(runes []rune, end int, sep []rune) bool {
	i := end - len(sep)
	if i < 0 {
		return false
	}
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}

// JoinChunks rebuilds the source text of consecutive chunks produced with the
// given overlap.
func JoinChunks(chunks []TextChunk, overlap int) string {
	var out []rune
	for i, c := range chunks {
		r := []rune(c.Text)
		if i > 0 {
			r = r[min(overlap, len(r)):]
		}
		out = append(out, r...)
	}
	return string(out)
}
