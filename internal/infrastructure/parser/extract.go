package parser

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"NewsLedger/internal/domain"
	"NewsLedger/internal/fetch"
)

// Article-page selectors.
const (
	commentBadgeSelector = "button[data-cl-params*='cmtmod'], a[data-cl-params*='cmtmod']"
	commentTextSelector  = "p[data-testid='comment-text']"
)

var (
	digitsExpr       = regexp.MustCompile(`\d+`)
	embeddedDateExpr = regexp.MustCompile(`(\d{1,2}/\d{1,2})\([月火水木金土日]\)\s*(\d{1,2}:\d{2})配信`)
)

// YahooExtractor pulls text out of article and comment pages. It is the only
// place body/comment selectors live; the pagination engines never see HTML.
type YahooExtractor struct{}

var _ fetch.ArticleExtractor = YahooExtractor{}
var _ fetch.CommentExtractor = YahooExtractor{}

// BodyText joins the article paragraphs of one page, empty when the page
// carries no extractable body.
func (YahooExtractor) BodyText(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}

	content := doc.Find("article").First()
	if content.Length() == 0 {
		content = doc.Find("div.article_body").First()
	}
	if content.Length() == 0 {
		return ""
	}

	var parts []string
	content.Find("p").Each(func(i int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}

// CommentCount reads the advertised total from the comment badge, or
// domain.UnknownCommentCount when the page has none.
func (YahooExtractor) CommentCount(page []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return domain.UnknownCommentCount
	}

	badge := doc.Find(commentBadgeSelector).First()
	if badge.Length() == 0 {
		return domain.UnknownCommentCount
	}

	text := strings.ReplaceAll(badge.Text(), ",", "")
	match := digitsExpr.FindString(text)
	if match == "" {
		return domain.UnknownCommentCount
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return domain.UnknownCommentCount
	}
	return n
}

// EmbeddedDate scans the opening lines of the body text for the delivery
// timestamp and returns it as "M/D H:MM", or empty.
func (YahooExtractor) EmbeddedDate(bodyText string) string {
	lines := strings.SplitN(bodyText, "\n", 4)
	if len(lines) > 3 {
		lines = lines[:3]
	}
	match := embeddedDateExpr.FindStringSubmatch(strings.Join(lines, "\n"))
	if match == nil {
		return ""
	}
	return match[1] + " " + match[2]
}

// Comments returns the comment texts present on one comment page.
func (YahooExtractor) Comments(page []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil
	}

	var comments []string
	doc.Find(commentTextSelector).Each(func(i int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			comments = append(comments, text)
		}
	})
	return comments
}
