// Package sanitize cleans caller-supplied product fields before they reach
// the store.
package sanitize

import (
	"html"
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	postPolicy  = bluemonday.UGCPolicy()

	octetRe      = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	whitespaceRe = regexp.MustCompile(`[\r\n\t ]+`)
	dashesRe     = regexp.MustCompile(`-+`)
	numberRe     = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)
	integerRe    = regexp.MustCompile(`^[+-]?\d+`)
)

// TextField strips markup, line breaks, repeated whitespace and percent
// encoded octets. Invalid UTF-8 yields an empty string.
func TextField(s string) string {
	if !utf8.ValidString(s) {
		return ""
	}
	if strings.Contains(s, "<") {
		s = StripTags(s)
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	for {
		stripped := octetRe.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	return strings.TrimSpace(s)
}

// StripTags removes every tag, dropping script and style bodies.
func StripTags(s string) string {
	return html.UnescapeString(stripPolicy.Sanitize(s))
}

// Title turns s into a lowercase, dash separated slug of ASCII letters,
// digits, dashes and underscores.
func Title(s string) string {
	s = StripTags(s)
	s = removeAccents(s)
	s = strings.ToLower(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '.', r == '/', r == '+':
			b.WriteRune('-')
		}
	}

	slug := dashesRe.ReplaceAllString(b.String(), "-")
	return strings.Trim(slug, "-")
}

func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// PostHTML keeps the markup allowed in product descriptions.
func PostHTML(s string) string {
	if !utf8.ValidString(s) {
		return ""
	}
	return postPolicy.Sanitize(s)
}

// URL returns s as an absolute http(s) URL, or "" when it cannot be one.
// Scheme-less values that start with a host name get http:// prepended.
func URL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !utf8.ValidString(s) {
		return ""
	}
	s = strings.ReplaceAll(s, " ", "%20")

	if !strings.Contains(s, "://") {
		host := strings.SplitN(s, "/", 2)[0]
		if !strings.Contains(host, ".") || strings.ContainsAny(host, ":?#") {
			return ""
		}
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

// Decimal reads the leading number of s the way loosely typed form input is
// read: "12.5 USD" is 12.5 and "abc" is zero.
func Decimal(s string) decimal.Decimal {
	prefix := numberRe.FindString(strings.TrimSpace(s))
	if prefix == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(prefix)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var (
	maxInt = decimal.NewFromInt(math.MaxInt)
	minInt = decimal.NewFromInt(math.MinInt)
)

// Int reads the leading integer of s; anything else is zero. Values outside
// the int range saturate at its bounds.
func Int(s string) int {
	prefix := integerRe.FindString(strings.TrimSpace(s))
	if prefix == "" {
		return 0
	}
	d := Decimal(prefix)
	switch {
	case d.GreaterThan(maxInt):
		return math.MaxInt
	case d.LessThan(minInt):
		return math.MinInt
	}
	return int(d.IntPart())
}
