// Package prompt builds the user-turn prompts sent to providers.
package prompt

import (
	"fmt"
	"strings"

	"translate-bridge/pkg/types"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ProbeText is the fixed prompt used for connectivity checks
const ProbeText = `Reply with exactly: "test succeeded"`

// CanonicalLanguage validates code and returns its canonical BCP 47 form
func CanonicalLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, "auto") {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidLanguage, code)
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", types.ErrInvalidLanguage, code, err)
	}
	return tag.String(), nil
}

// LanguageName returns a human-readable English name for code, or code itself
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return code
	}
	return name
}

// BuildTranslation returns the prompt asking a provider to translate req.
// Source language detection is left to the model.
func BuildTranslation(req types.TranslationRequest) string {
	b := strings.Builder{}
	b.WriteString(fmt.Sprintf("Translate the following text into %s (%s).\n", LanguageName(req.TargetLanguage), req.TargetLanguage))
	b.WriteString("Detect the source language automatically. ")
	b.WriteString("Return only the translation, without explanations, notes or quotes.\n\n")
	b.WriteString(req.Text)
	return b.String()
}
