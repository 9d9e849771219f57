// Package translate resolves the text a viewer sees for a message, serving
// translations memoized on the message record and calling the translation
// service only on a miss.
package translate

import "context"

// Translation is the result of one translation service call.
type Translation struct {
	Text           string
	DetectedSource string // language code, may be empty
}

type Translator interface {
	Translate(ctx context.Context, text, target string) (Translation, error)
}

// Resolution is what gets attached to the local message. TranslatedFrom is
// set only when Text differs from the original.
type Resolution struct {
	Text           string
	TranslatedFrom string
}
