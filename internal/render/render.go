package render

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

/*
Render turns fetched page text into what the CLI prints.

Cached values are always the raw response text; rendering happens on the
way out and is never stored.

  - raw: the text as fetched
  - markdown: GitHub-flavoured markdown of the whole document
  - title: the <title>, falling back to the first <h1>
  - links: every a[href] and img[src], one per line, in document order
*/
type Format string

const (
	FormatRaw      Format = "raw"
	FormatMarkdown Format = "markdown"
	FormatTitle    Format = "title"
	FormatLinks    Format = "links"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatRaw, FormatMarkdown, FormatTitle, FormatLinks:
		return f, nil
	case "":
		return FormatRaw, nil
	default:
		return "", &RenderError{Message: s, Cause: ErrCauseUnknownFormat}
	}
}

func Render(format Format, text string) (string, error) {
	switch format {
	case FormatRaw, "":
		return text, nil
	case FormatMarkdown:
		return Markdown(text)
	case FormatTitle:
		return Title(text)
	case FormatLinks:
		links, err := Links(text)
		if err != nil {
			return "", err
		}
		return strings.Join(links, "\n"), nil
	default:
		return "", &RenderError{Message: string(format), Cause: ErrCauseUnknownFormat}
	}
}

func Markdown(text string) (string, error) {
	doc, err := parse(text)
	if err != nil {
		return "", err
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	markdown, err := conv.ConvertNode(doc)
	if err != nil {
		return "", &RenderError{Message: err.Error(), Cause: ErrCauseConvertFailure}
	}
	return string(markdown), nil
}

func Title(text string) (string, error) {
	doc, err := parse(text)
	if err != nil {
		return "", err
	}
	gq := goquery.NewDocumentFromNode(doc)

	if title := strings.TrimSpace(gq.Find("title").First().Text()); title != "" {
		return title, nil
	}
	if h1 := strings.TrimSpace(gq.Find("h1").First().Text()); h1 != "" {
		return h1, nil
	}
	return "", &RenderError{Cause: ErrCauseTitleNotFound}
}

func Links(text string) ([]string, error) {
	doc, err := parse(text)
	if err != nil {
		return nil, err
	}

	var links []string
	// a single selector keeps document order
	goquery.NewDocumentFromNode(doc).Find("a[href], img[src]").Each(func(i int, s *goquery.Selection) {
		attr := "href"
		if goquery.NodeName(s) == "img" {
			attr = "src"
		}
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			links = append(links, v)
		}
	})
	return links, nil
}

func parse(text string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return nil, &RenderError{Message: err.Error(), Cause: ErrCauseParseFailure}
	}
	return doc, nil
}
