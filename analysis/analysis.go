//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package analysis declares the tokenizer contract the index writer calls
// for text fields, plus a few small analyzers sufficient for tests and
// embedders. Anything heavier (stemming, stop words, language handling)
// belongs to the caller, the index itself never interprets terms beyond
// byte comparison.
package analysis

import (
	"regexp"
	"strings"
)

// Token is one term occurrence produced by an analyzer. Positions count
// tokens, Start/End are byte offsets into the analyzed text.
type Token struct {
	Term     []byte
	Position uint32
	Start    uint32
	End      uint32
	Boost    float64
}

// Analyzer turns field text into a token stream. Implementations must be
// stateless per call and safe for concurrent use.
type Analyzer interface {
	Analyze(field, text string) []Token
}

// wordPattern matches runs of letters, digits and underscores, the default
// token shape.
var wordPattern = regexp.MustCompile(`\w+`)

// Simple tokenizes on word boundaries and lowercases. The zero value is
// ready to use.
type Simple struct{}

func (Simple) Analyze(_, text string) []Token {
	matches := wordPattern.FindAllStringIndex(text, -1)
	out := make([]Token, 0, len(matches))
	for i, m := range matches {
		out = append(out, Token{
			Term:     []byte(strings.ToLower(text[m[0]:m[1]])),
			Position: uint32(i),
			Start:    uint32(m[0]),
			End:      uint32(m[1]),
			Boost:    1,
		})
	}
	return out
}

// Whitespace splits on runs of whitespace without changing case.
type Whitespace struct{}

func (Whitespace) Analyze(_, text string) []Token {
	out := []Token{}
	pos := uint32(0)
	start := -1
	for i, r := range text {
		space := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if space && start >= 0 {
			out = append(out, token(text, start, i, pos))
			pos++
			start = -1
		} else if !space && start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, token(text, start, len(text), pos))
	}
	return out
}

func token(text string, start, end int, pos uint32) Token {
	return Token{
		Term:     []byte(text[start:end]),
		Position: pos,
		Start:    uint32(start),
		End:      uint32(end),
		Boost:    1,
	}
}

// Keyword emits the whole text as a single token, the analyzer of ID-like
// fields.
type Keyword struct{}

func (Keyword) Analyze(_, text string) []Token {
	if text == "" {
		return nil
	}
	return []Token{{
		Term:  []byte(text),
		End:   uint32(len(text)),
		Boost: 1,
	}}
}
