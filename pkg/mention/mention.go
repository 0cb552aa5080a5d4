// Package mention finds, extracts and renders @username mentions.
//
// All offsets are byte offsets into the text. The identifier class is ASCII
// ([A-Za-z0-9_]), so a mention boundary never splits a multi-byte rune.
package mention

import "regexp"

var mentionRe = regexp.MustCompile(`@([A-Za-z0-9_]+)`)

// Token is an in-progress mention under the edit cursor.
// Text[Start] is always '@'; End is exclusive and may lie past the cursor.
type Token struct {
	Query string `json:"query"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Mention is a completed @username occurrence.
type Mention struct {
	Username string `json:"username"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

func isIdent(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// FindAtCursor reports the mention token the cursor sits in, if any.
// The query is the identifier text between '@' and the cursor; the token end
// is extended over identifier characters after the cursor so that replacing
// it removes the whole partially typed word.
func FindAtCursor(text string, cursor int) (Token, bool) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(text) {
		cursor = len(text)
	}

	start := cursor
	for start > 0 && isIdent(text[start-1]) {
		start--
	}
	if start == 0 || text[start-1] != '@' {
		return Token{}, false
	}
	start--

	end := cursor
	for end < len(text) && isIdent(text[end]) {
		end++
	}

	return Token{
		Query: text[start+1 : cursor],
		Start: start,
		End:   end,
	}, true
}

// Extract returns every @username run in text, in order of appearance.
// A bare '@' with no identifier characters is not a mention.
func Extract(text string) []Mention {
	if text == "" {
		return []Mention{}
	}

	matches := mentionRe.FindAllStringSubmatchIndex(text, -1)
	result := make([]Mention, 0, len(matches))
	for _, m := range matches {
		result = append(result, Mention{
			Username: text[m[2]:m[3]],
			Start:    m[0],
			End:      m[1],
		})
	}
	return result
}

// ExtractExcept returns the mentions of text minus the one overlapping the
// in-progress token.
func ExtractExcept(text string, active Token) []Mention {
	all := Extract(text)
	result := all[:0]
	for _, m := range all {
		if m.Start == active.Start {
			continue
		}
		result = append(result, m)
	}
	return result
}
