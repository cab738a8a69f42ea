package pipeline

import "fmt"

// dedupThreshold is the minimum run length collapsed into a marker.
const dedupThreshold = 3

// Dedup collapses runs of dedupThreshold or more identical consecutive lines
// into a single "[REPEAT xN] <line>" marker before chunking. Disabled by
// default since it changes the byte content the chunker sees.
func Dedup(text string) string {
	lines := splitLines(text)
	if len(lines) == 0 {
		return text
	}

	var out []string
	seqStart := 0
	flush := func(end int) {
		n := end - seqStart
		if n >= dedupThreshold {
			out = append(out, fmt.Sprintf("[REPEAT x%d] %s", n, lines[seqStart]))
		} else {
			out = append(out, lines[seqStart:end]...)
		}
	}

	for i := 1; i < len(lines); i++ {
		if lines[i] != lines[seqStart] {
			flush(i)
			seqStart = i
		}
	}
	flush(len(lines))

	return joinLines(out)
}
