// CHQ Calendar - Institution Event Aggregation and Sync
// Copyright 2026 Ben Bernstein
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bbernstein/chq-calendar-sub000

package normalize

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML reduces an HTML fragment to its visible text: tags are
// dropped, entities decoded, and whitespace collapsed to single
// spaces. Malformed markup never fails; the tokenizer consumes what it
// can and the text seen so far is returned.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapseWhitespace(fragment)
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.Write(tokenizer.Text())
			b.WriteByte(' ')
		}
	}
	return collapseWhitespace(b.String())
}

// collapseWhitespace trims the string and folds internal whitespace
// runs into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
