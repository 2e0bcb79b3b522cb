package stages

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
	"git.home.luguber.info/inful/bookbuilder/internal/config"
	"git.home.luguber.info/inful/bookbuilder/internal/pipeline"
)

const idSelector = "section[data-type], div[data-type='part']"

// IDs gives every section without an id one derived from its heading.
// Ids are unique within the page.
func IDs(_ context.Context, _ *config.Build, in pipeline.Stream, x *pipeline.Extras) (pipeline.Stream, error) {
	return pipeline.Map(x, in, func(_ context.Context, f *book.File) error {
		doc, err := f.Document()
		if err != nil {
			return err
		}
		if assignIDs(doc) == 0 {
			return nil
		}
		return f.CommitDocument()
	}), nil
}

func assignIDs(doc *goquery.Document) int {
	used := map[string]bool{}
	doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		used[id] = true
	})

	assigned := 0
	doc.Find(idSelector).Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("id"); ok && id != "" {
			return
		}
		base := Slugify(headingText(s))
		if base == "" {
			base, _ = s.Attr("data-type")
		}
		id := base
		for n := 1; used[id]; n++ {
			id = base + "-" + strconv.Itoa(n)
		}
		used[id] = true
		s.SetAttr("id", id)
		assigned++
	})
	return assigned
}

func headingText(s *goquery.Selection) string {
	scope := s
	if header := s.ChildrenFiltered("header"); header.Length() > 0 {
		scope = header
	}
	return scope.ChildrenFiltered("h1, h2, h3, h4, h5, h6").First().Text()
}

// Slugify lower-cases s, folds diacritics and joins the remaining letters
// and digits with single dashes.
func Slugify(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}
