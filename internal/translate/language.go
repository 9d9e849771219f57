package translate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var (
	namesOnce sync.Once
	byName    map[string]language.Tag // lowercased english name -> tag
)

func loadNames() {
	byName = make(map[string]language.Tag)
	tags := display.English.Tags()
	langs := display.English.Languages()
	for _, t := range display.Supported.Tags() {
		if n := tags.Name(t); n != "" {
			byName[strings.ToLower(n)] = t
		}
		base, _ := t.Base()
		if n := langs.Name(base); n != "" {
			if _, ok := byName[strings.ToLower(n)]; !ok {
				byName[strings.ToLower(n)] = language.Make(base.String())
			}
		}
	}
}

// NormalizeLanguage turns a user supplied language ("Spanish", "es",
// "es-MX", "ES") into the code used as translations key and translation
// target. Chinese keeps its script variant.
func NormalizeLanguage(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty", domain.ErrUnknownLanguage)
	}

	tag, err := language.Parse(s)
	if err != nil {
		namesOnce.Do(loadNames)
		t, ok := byName[strings.ToLower(s)]
		if !ok {
			return "", fmt.Errorf("%w: %q", domain.ErrUnknownLanguage, s)
		}
		tag = t
	}

	base, conf := tag.Base()
	if conf == language.No || base.String() == "und" {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownLanguage, s)
	}
	if base.String() == "zh" {
		script, _ := tag.Script()
		region, _ := tag.Region()
		if script.String() == "Hant" || region.String() == "TW" || region.String() == "HK" {
			return "zh-TW", nil
		}
		return "zh-CN", nil
	}
	return base.String(), nil
}

// LanguageName returns the english display name of code, or code itself
// when it cannot be parsed.
func LanguageName(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if n := display.English.Tags().Name(tag); n != "" {
		return n
	}
	return code
}
