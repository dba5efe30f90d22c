// Copyright 2025 walteh LLC
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

package macro

import (
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// compileGlob turns a shell glob into an anchored regexp with fnmatch
// semantics: '*' and '?' also match '/', and the whole path must match.
func compileGlob(glob string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString(`(?s)^`)

	runes := []rune(glob)
	for i := 0; i < len(runes); i++ {
		switch c := runes[i]; c {
		case '*':
			// collapse runs of stars, they are equivalent
			for i+1 < len(runes) && runes[i+1] == '*' {
				i++
			}
			sb.WriteString(`.*`)
		case '?':
			sb.WriteString(`.`)
		case '[':
			end, class := bracketClass(runes, i)
			if end < 0 {
				sb.WriteString(`\[`)
				continue
			}
			sb.WriteString(class)
			i = end
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	sb.WriteString(`$`)
	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, errors.Errorf("compiling glob %q: %w", glob, err)
	}
	return re, nil
}

// nothing is a class that matches no character
const nothing = `[^\x00-\x{10FFFF}]`

// bracketClass parses the [...] expression starting at runes[start]. It
// returns the index of the closing bracket and the regexp class, or -1 when
// the bracket is never closed and must be treated literally. Reversed ranges
// such as z-a match nothing and are dropped.
func bracketClass(runes []rune, start int) (int, string) {
	j := start + 1
	if j < len(runes) && runes[j] == '!' {
		j++
	}
	// a ']' right after the opener is a literal member
	if j < len(runes) && runes[j] == ']' {
		j++
	}
	for j < len(runes) && runes[j] != ']' {
		j++
	}
	if j >= len(runes) {
		return -1, ""
	}

	body := runes[start+1 : j]
	negate := len(body) > 0 && body[0] == '!'
	if negate {
		body = body[1:]
	}

	var members strings.Builder
	for k := 0; k < len(body); k++ {
		if k+2 < len(body) && body[k+1] == '-' {
			lo, hi := body[k], body[k+2]
			k += 2
			if lo > hi {
				continue
			}
			members.WriteString(classMember(lo))
			members.WriteRune('-')
			members.WriteString(classMember(hi))
			continue
		}
		members.WriteString(classMember(body[k]))
	}

	switch {
	case members.Len() == 0 && negate:
		return j, "."
	case members.Len() == 0:
		return j, nothing
	case negate:
		return j, "[^" + members.String() + "]"
	default:
		return j, "[" + members.String() + "]"
	}
}

func classMember(r rune) string {
	switch r {
	case '\\', ']', '[', '^', '-':
		return `\` + string(r)
	default:
		return string(r)
	}
}

// MatchGlob reports whether path matches the fnmatch-style glob. A glob that
// does not compile matches nothing.
func MatchGlob(glob, path string) bool {
	re, err := compileGlob(glob)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}
