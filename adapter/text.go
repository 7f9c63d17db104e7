// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package adapter

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// minTokenLength drops short function words the stop list does not cover.
const minTokenLength = 3

// summaryNames is how many entity names a summary lists before "+N more".
const summaryNames = 5

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "unto": true, "shall": true, "he": true, "his": true,
	"they": true, "them": true, "him": true, "which": true, "were": true, "said": true,
}

// tokenize lowercases the words, trims punctuation, drops stop words and
// short tokens, and removes duplicates while keeping first-seen order.
func tokenize(words []string) []string {
	seen := make(map[string]bool, len(words))
	tokens := make([]string, 0, len(words))
	for _, raw := range words {
		for _, word := range strings.Fields(raw) {
			word = strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
			if utf8.RuneCountInString(word) < minTokenLength || stopWords[word] || seen[word] {
				continue
			}
			seen[word] = true
			tokens = append(tokens, word)
		}
	}
	return tokens
}

// summarize lists the first few names and counts the rest.
func summarize(names []string) string {
	if len(names) <= summaryNames {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:summaryNames], ", ") + " +" + strconv.Itoa(len(names)-summaryNames) + " more"
}
