package eprocure

import (
	"eprocure-backend/internal/tender"
	"eprocure-backend/pkg/htmlutil"
	"regexp"
	"strings"
)

var (
	looseDateRegex = regexp.MustCompile(`\b\d{1,2}-[A-Za-z]{3}-\d{4}\b`)
	bracketRegex   = regexp.MustCompile(`\[[^\]]+\]`)
)

// result table columns: S.No | Published | Closing | Opening | Title/Ref | Organisation
const (
	colPublished = 1
	colClosing   = 2
	colOpening   = 3
	colReference = 4
	colOrg       = 5
)

// ParseReference extracts the tender reference from the title/reference
// cell, e.g. "[Title.][TN/45/2026][INT-998]" -> "[TN/45/2026][INT-998]".
func ParseReference(cellText string) string {
	parts := bracketRegex.FindAllString(cellText, -1)
	switch {
	case len(parts) >= 3:
		return strings.Join(parts[1:], "")
	case len(parts) == 2:
		return parts[1]
	}
	return cellText
}

func cellText(cells []htmlutil.Node, i int) string {
	if i >= len(cells) {
		return ""
	}
	return htmlutil.NormalizeSpace(cells[i].Text())
}

// ParseTenderList extracts the result rows of a search result page. Rows
// that do not look like data rows are skipped, it never fails.
func ParseTenderList(doc htmlutil.Node, keyword, baseUrl string) []tender.Tender {
	tenders := []tender.Tender{}
	for _, row := range doc.FindAll("#table tr.even, #table tr.odd") {
		cells := row.FindAll("td")
		if len(cells) == 0 {
			continue
		}
		anchor, ok := row.First("a[href]")
		if !ok {
			continue
		}
		href, _ := anchor.Attr("href")
		if href == "" {
			continue
		}

		publishedDate := cellText(cells, colPublished)
		if publishedDate != "" && !looseDateRegex.MatchString(publishedDate) {
			continue
		}
		detailUrl, ok := htmlutil.AbsUrl(baseUrl, href)
		if !ok {
			continue
		}

		refCell := cellText(cells, colReference)
		if refCell == "" {
			if td, ok := anchor.Closest("td"); ok {
				refCell = htmlutil.NormalizeSpace(td.Text())
			}
		}

		title := htmlutil.NormalizeSpace(anchor.Text())
		title = strings.NewReplacer("[", "", "]", "").Replace(title)

		tenders = append(tenders, tender.Tender{
			Source:        tender.SourceEprocure,
			Keyword:       keyword,
			PublishedDate: publishedDate,
			ClosingDate:   cellText(cells, colClosing),
			OpeningDate:   cellText(cells, colOpening),
			Title:         title,
			Reference:     ParseReference(refCell),
			Organisation:  cellText(cells, colOrg),
			DetailUrl:     detailUrl,
		})
	}
	return tenders
}
