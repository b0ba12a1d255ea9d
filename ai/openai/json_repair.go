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

package openai

import "unicode"

// repairJSON fixes the slips models make most often in structured replies:
// a key missing its opening quote (`, type":`) and a trailing comma before
// a closing bracket. String literals are copied untouched.
func repairJSON(s string) string {
	return dropTrailingCommas(quoteKeys(s))
}

// quoteKeys restores the opening quote of keys written as `name":`.
func quoteKeys(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+16)
	inString := false

	for i := 0; i < len(in); i++ {
		ch := in[i]
		out = append(out, ch)

		if inString {
			if ch == '\\' && i+1 < len(in) {
				i++
				out = append(out, in[i])
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{', ',':
			j := i + 1
			for j < len(in) && unicode.IsSpace(in[j]) {
				j++
			}
			k := j
			for k < len(in) && (isLetter(in[k]) || in[k] == '_') {
				k++
			}
			if k > j && k+1 < len(in) && in[k] == '"' && in[k+1] == ':' {
				out = append(out, in[i+1:j]...)
				out = append(out, '"')
				out = append(out, in[j:k]...)
				out = append(out, '"', ':')
				i = k + 1
			}
		}
	}
	return string(out)
}

// dropTrailingCommas removes a comma followed only by whitespace and a closing bracket.
func dropTrailingCommas(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in))
	inString := false

	for i := 0; i < len(in); i++ {
		ch := in[i]

		if inString {
			out = append(out, ch)
			if ch == '\\' && i+1 < len(in) {
				i++
				out = append(out, in[i])
			} else if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(in) && unicode.IsSpace(in[j]) {
				j++
			}
			if j < len(in) && (in[j] == '}' || in[j] == ']') {
				continue
			}
		}
		if ch == '"' {
			inString = true
		}
		out = append(out, ch)
	}
	return string(out)
}
