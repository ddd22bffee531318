package phrases_test

import (
	"testing"

	"github.com/dazdaz/chirp-demo-enhanced/internal/domain/phrases"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCatalog(t *testing.T) {
	Convey("Given the built-in catalog", t, func() {
		c := phrases.New()

		Convey("Then it covers five languages", func() {
			So(c.Languages(), ShouldResemble, []string{"de-DE", "en-US", "es-ES", "ja-JP", "pt-BR"})
			So(len(c.Phrases("en-US")), ShouldEqual, 25)
			for _, lang := range []string{"es-ES", "ja-JP", "pt-BR", "de-DE"} {
				So(len(c.Phrases(lang)), ShouldEqual, 10)
			}
		})

		Convey("When picking a random phrase", func() {
			p := c.Random("de-DE")

			Convey("Then it comes from that language", func() {
				So(c.Phrases("de-DE"), ShouldContain, p)
			})
		})

		Convey("When the language is unknown", func() {
			So(c.Supported("xx-XX"), ShouldBeFalse)
			So(c.Phrases("en-US"), ShouldContain, c.Random("xx-XX"))
		})
	})

	Convey("Given a catalog with a fixed random source", t, func() {
		c := phrases.New(
			phrases.WithIntN(func(n int) int { return n - 1 }),
			phrases.WithPhrases("fr-FR", []string{"Bonjour", "Merci"}),
		)

		Convey("Then the pick is deterministic", func() {
			So(c.Random("fr-FR"), ShouldEqual, "Merci")
			So(c.Random("en-US"), ShouldEqual, "The journey of a thousand miles begins with a single step")
		})
	})
}

func TestVoice(t *testing.T) {
	Convey("Given language codes", t, func() {
		So(phrases.Voice("en-US"), ShouldEqual, "en-US-Chirp3-HD-Charon")
		So(phrases.Voice("es-ES"), ShouldEqual, "es-ES-Wavenet-B")
		So(phrases.Voice("ja-JP"), ShouldEqual, "ja-JP-Wavenet-A")
		So(phrases.Voice("pt-BR"), ShouldEqual, "pt-BR-Wavenet-A")
		So(phrases.Voice("de-DE"), ShouldEqual, "de-DE-Wavenet-F")
		So(phrases.Voice("klingon"), ShouldEqual, "en-US-Chirp3-HD-Charon")
	})
}
