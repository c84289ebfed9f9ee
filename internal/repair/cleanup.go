package repair

import "regexp"

// malformed matches the token artifacts seen in corrupt metadata lines:
// apostrophe-delimited numbers after a letter, escaped single quotes, numeric
// and single-letter possessives, apostrophe-prefixed alphanumerics, and a
// letter followed by whitespace and stray double quotes.
var malformed = regexp.MustCompile(`([a-z*]\s'\d+\s)|(\\')|(\d's)|([a-z]'s\s)|('\d+[a-z])|([a-z+]\s+"+)`)

// Cleanup strips malformed tokens from text. Removal repeats until nothing
// matches, so Cleanup(Cleanup(x)) == Cleanup(x).
func Cleanup(text string) string {
	for {
		next := malformed.ReplaceAllLiteralString(text, "")
		if next == text {
			return next
		}
		text = next
	}
}
