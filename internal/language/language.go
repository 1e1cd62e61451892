package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// aliases covers inputs the tag parser does not resolve on its own: English
// names and the ISO 639-2/B codes found in older container metadata.
var aliases = map[string]string{
	"english":    "en",
	"german":     "de",
	"deutsch":    "de",
	"ger":        "de",
	"french":     "fr",
	"fre":        "fr",
	"spanish":    "es",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"dut":        "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
	"japanese":   "ja",
	"chinese":    "zh",
	"chi":        "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"korean":     "ko",
}

// ToISO2 converts a language code, BCP 47 tag or English name to the ISO
// 639-1 code alignment models are keyed by. Returns "" for unrecognized input.
func ToISO2(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	if code, ok := aliases[value]; ok {
		return code
	}
	tag, err := xlanguage.Parse(value)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return ""
	}
	code := base.String()
	if len(code) != 2 {
		return ""
	}
	return code
}

// DisplayName returns the English name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased input otherwise.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	iso := ToISO2(trimmed)
	if iso == "" {
		return strings.ToUpper(trimmed)
	}
	name := display.English.Languages().Name(xlanguage.Make(iso))
	if name == "" {
		return strings.ToUpper(iso)
	}
	return name
}
