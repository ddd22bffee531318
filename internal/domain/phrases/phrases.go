// Package phrases provides practice phrases and TTS voices per language.
package phrases

import (
	"math/rand/v2"
	"sort"
)

// DefaultLanguage is used when a requested language has no phrase list.
const DefaultLanguage = "en-US"

var builtinPhrases = map[string][]string{
	"en-US": {
		"Hello world", "How are you", "What is your name", "Good morning",
		"Thank you very much", "Excuse me please", "I am sorry", "Have a nice day",
		"The sky is blue", "I love to travel",
		"The quick brown fox jumps over the lazy dog",
		"An apple a day keeps the doctor away",
		"Never underestimate the power of a good book",
		"The early bird catches the worm", "Actions speak louder than words",
		"Where there is a will, there is a way", "Technology has changed the world we live in",
		"To be or not to be, that is the question", "Every cloud has a silver lining",
		"The best way to predict the future is to create it", "Honesty is the best policy",
		"In the middle of difficulty lies opportunity",
		"The only thing we have to fear is fear itself",
		"That which does not kill us makes us stronger",
		"The journey of a thousand miles begins with a single step",
	},
	"es-ES": {
		"Hola mundo", "¿Cómo estás?", "¿Cuál es tu nombre?", "Buenos días",
		"Muchas gracias", "Perdón, por favor", "Lo siento", "Que tengas un buen día",
		"El cielo es azul", "Me encanta viajar",
	},
	"ja-JP": {
		"こんにちは世界", "お元気ですか", "お名前は何ですか", "おはようございます",
		"ありがとうございます", "すみません", "ごめんなさい", "良い一日を",
		"空は青いです", "旅行が大好きです",
	},
	"pt-BR": {
		"Olá, mundo", "Como você está?", "Qual é o seu nome?", "Bom dia",
		"Muito obrigado", "Com licença, por favor", "Me desculpe", "Tenha um bom dia",
		"O céu é azul", "Eu amo viajar",
	},
	"de-DE": {
		"Hallo Welt", "Wie geht es Ihnen?", "Wie heißen Sie?", "Guten Morgen",
		"Vielen Dank", "Entschuldigen Sie bitte", "Es tut mir leid", "Schönen Tag noch",
		"Der Himmel ist blau", "Ich liebe es zu reisen",
	},
}

var voices = map[string]string{
	"en-US": "en-US-Chirp3-HD-Charon",
	"es-ES": "es-ES-Wavenet-B",
	"ja-JP": "ja-JP-Wavenet-A",
	"pt-BR": "pt-BR-Wavenet-A",
	"de-DE": "de-DE-Wavenet-F",
}

// Voice returns the TTS voice name for a language, falling back to the
// English voice.
func Voice(language string) string {
	if v, ok := voices[language]; ok {
		return v
	}
	return voices[DefaultLanguage]
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithIntN replaces the random index source. intN must return a value in
// [0, n).
func WithIntN(intN func(n int) int) Option {
	return func(c *Catalog) {
		if intN != nil {
			c.intN = intN
		}
	}
}

// WithPhrases replaces the phrase list for one language.
func WithPhrases(language string, list []string) Option {
	return func(c *Catalog) {
		if len(list) > 0 {
			c.byLang[language] = append([]string(nil), list...)
		}
	}
}

// Catalog picks random phrases per language.
type Catalog struct {
	byLang map[string][]string
	intN   func(n int) int
}

// New creates a catalog seeded with the built-in phrase lists.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		byLang: make(map[string][]string, len(builtinPhrases)),
		intN:   rand.IntN,
	}
	for lang, list := range builtinPhrases {
		c.byLang[lang] = list
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Random returns a random phrase in language, or in English when the
// language is unknown.
func (c *Catalog) Random(language string) string {
	list, ok := c.byLang[language]
	if !ok {
		list = c.byLang[DefaultLanguage]
	}
	if len(list) == 0 {
		return ""
	}
	return list[c.intN(len(list))]
}

// Phrases returns a copy of the list used for language.
func (c *Catalog) Phrases(language string) []string {
	list, ok := c.byLang[language]
	if !ok {
		list = c.byLang[DefaultLanguage]
	}
	return append([]string(nil), list...)
}

// Languages returns the supported language codes, sorted.
func (c *Catalog) Languages() []string {
	out := make([]string, 0, len(c.byLang))
	for lang := range c.byLang {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Supported reports whether language has its own phrase list.
func (c *Catalog) Supported(language string) bool {
	_, ok := c.byLang[language]
	return ok
}
