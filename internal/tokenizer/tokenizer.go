// Package tokenizer is the token model shared by the chunker and the
// context assembler. A token is either a run of letters, combining marks,
// digits and underscores, or a single other non-space rune. Whitespace is
// never a token, so joining texts with whitespace adds no tokens.
package tokenizer

import "regexp"

var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+|[^\s\p{L}\p{M}\p{N}_]`)

// Token is one token with its byte offsets in the source text.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenize splits text into tokens in order.
func Tokenize(text string) []Token {
	locs := tokenPattern.FindAllStringIndex(text, -1)
	tokens := make([]Token, len(locs))
	for i, loc := range locs {
		tokens[i] = Token{Text: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]}
	}
	return tokens
}

// Count returns the number of tokens in text.
func Count(text string) int {
	return len(tokenPattern.FindAllStringIndex(text, -1))
}

// Truncate returns the shortest prefix of text holding its first n tokens.
// Trailing whitespace after the n-th token is dropped.
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	locs := tokenPattern.FindAllStringIndex(text, n+1)
	if len(locs) <= n {
		return text
	}
	return text[:locs[n-1][1]]
}
