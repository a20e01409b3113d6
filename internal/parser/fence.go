package parser

import "regexp"

var fenceRe = regexp.MustCompile("^\\s*(```|~~~)")

// fencedLines marks the lines of every closed code fence, opener and closer
// included. A fence without a closing line marks nothing, so an unbalanced
// fence cannot hide the markers or headings that follow it. The parser and
// the managed-region writer share this mask and agree on what a marker is.
func fencedLines(lines []string) []bool {
	mask := make([]bool, len(lines))
	open := -1
	var marker string
	for i, l := range lines {
		m := fenceRe.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		if open < 0 {
			open, marker = i, m[1]
			continue
		}
		if m[1] != marker {
			continue
		}
		for j := open; j <= i; j++ {
			mask[j] = true
		}
		open = -1
	}
	return mask
}
