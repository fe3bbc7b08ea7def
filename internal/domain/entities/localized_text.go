package entities

// LocalizedText maps a language code to a rendered string. Message content
// is always carried as a map, never as a bare string.
type LocalizedText map[string]string

// NewLocalizedText builds a two-language text block
func NewLocalizedText(en, ar string) LocalizedText {
	return LocalizedText{"en": en, "ar": ar}
}

// Resolve returns the text for the requested locale, falling back
// deterministically: requested, then English, then Arabic, then empty.
func (t LocalizedText) Resolve(locale string) string {
	if t == nil {
		return ""
	}
	if s, ok := t[locale]; ok && s != "" {
		return s
	}
	if s, ok := t["en"]; ok && s != "" {
		return s
	}
	if s, ok := t["ar"]; ok && s != "" {
		return s
	}
	return ""
}
