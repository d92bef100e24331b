package eprocure

import (
	"eprocure-backend/internal/tender"
	"eprocure-backend/pkg/htmlutil"
	"strconv"
	"strings"
)

type labelRule struct {
	pattern string
	// exact rules match the whole label instead of a substring.
	exact bool
	field func(d *tender.Detail) *string
}

// labelRules map detail page captions to attributes. The first matching rule
// wins so more specific patterns come before the ones they contain.
var labelRules = []labelRule{
	{pattern: "organisation chain", field: func(d *tender.Detail) *string { return &d.OrganisationChain }},
	{pattern: "tender reference number", field: func(d *tender.Detail) *string { return &d.TenderReferenceNumber }},
	{pattern: "tender id", field: func(d *tender.Detail) *string { return &d.TenderId }},
	{pattern: "withdrawal allowed", field: func(d *tender.Detail) *string { return &d.WithdrawalAllowed }},
	{pattern: "tender type", field: func(d *tender.Detail) *string { return &d.TenderType }},
	{pattern: "form of contract", field: func(d *tender.Detail) *string { return &d.FormOfContract }},
	{pattern: "tender category", field: func(d *tender.Detail) *string { return &d.TenderCategory }},
	{pattern: "no. of covers", field: func(d *tender.Detail) *string { return &d.NumberOfCovers }},
	{pattern: "number of covers", field: func(d *tender.Detail) *string { return &d.NumberOfCovers }},
	{pattern: "general technical evaluation", field: func(d *tender.Detail) *string { return &d.GeneralTechnicalEvaluationAllowed }},
	{pattern: "itemwise technical evaluation", field: func(d *tender.Detail) *string { return &d.ItemWiseTechnicalEvaluationAllowed }},
	{pattern: "item wise technical evaluation", field: func(d *tender.Detail) *string { return &d.ItemWiseTechnicalEvaluationAllowed }},
	{pattern: "payment mode", field: func(d *tender.Detail) *string { return &d.PaymentMode }},
	{pattern: "multi currency allowed for boq", field: func(d *tender.Detail) *string { return &d.MultiCurrencyAllowedBoq }},
	{pattern: "multi currency allowed for fee", field: func(d *tender.Detail) *string { return &d.MultiCurrencyAllowedFee }},
	{pattern: "two stage bidding", field: func(d *tender.Detail) *string { return &d.AllowTwoStageBidding }},

	{pattern: "tender fee exemption allowed", field: func(d *tender.Detail) *string { return &d.TenderFeeExemptionAllowed }},
	{pattern: "tender fee", field: func(d *tender.Detail) *string { return &d.TenderFee }},
	{pattern: "fee payable to", field: func(d *tender.Detail) *string { return &d.FeePayableTo }},
	{pattern: "fee payable at", field: func(d *tender.Detail) *string { return &d.FeePayableAt }},
	{pattern: "emd exemption allowed", field: func(d *tender.Detail) *string { return &d.EmdExemptionAllowed }},
	{pattern: "emd fee type", field: func(d *tender.Detail) *string { return &d.EmdFeeType }},
	{pattern: "emd percentage", field: func(d *tender.Detail) *string { return &d.EmdPercentage }},
	{pattern: "emd payable to", field: func(d *tender.Detail) *string { return &d.EmdPayableTo }},
	{pattern: "emd payable at", field: func(d *tender.Detail) *string { return &d.EmdPayableAt }},
	{pattern: "emd amount", field: func(d *tender.Detail) *string { return &d.EmdAmount }},

	{pattern: "work description", field: func(d *tender.Detail) *string { return &d.WorkDescription }},
	{pattern: "title", field: func(d *tender.Detail) *string { return &d.WorkTitle }},
	{pattern: "pre qualification", field: func(d *tender.Detail) *string { return &d.NdaPreQualification }},
	{pattern: "independent external monitor", field: func(d *tender.Detail) *string { return &d.IndependentExternalMonitor }},
	{pattern: "tender value", field: func(d *tender.Detail) *string { return &d.TenderValue }},
	{pattern: "product category", field: func(d *tender.Detail) *string { return &d.ProductCategory }},
	{pattern: "sub category", field: func(d *tender.Detail) *string { return &d.SubCategory }},
	{pattern: "contract type", field: func(d *tender.Detail) *string { return &d.ContractType }},
	{pattern: "bid validity", field: func(d *tender.Detail) *string { return &d.BidValidityDays }},
	{pattern: "period of work", field: func(d *tender.Detail) *string { return &d.PeriodOfWorkDays }},
	{pattern: "location", field: func(d *tender.Detail) *string { return &d.WorkLocation }},
	{pattern: "pincode", field: func(d *tender.Detail) *string { return &d.Pincode }},
	{pattern: "pre bid meeting place", field: func(d *tender.Detail) *string { return &d.PreBidMeetingPlace }},
	{pattern: "pre bid meeting address", field: func(d *tender.Detail) *string { return &d.PreBidMeetingAddress }},
	{pattern: "pre bid meeting date", field: func(d *tender.Detail) *string { return &d.PreBidMeetingDate }},
	{pattern: "bid opening place", field: func(d *tender.Detail) *string { return &d.BidOpeningPlace }},
	{pattern: "allow nda tender", field: func(d *tender.Detail) *string { return &d.ShouldAllowNDATender }},
	{pattern: "preferential bidder", field: func(d *tender.Detail) *string { return &d.AllowPreferentialBidder }},

	{pattern: "published date", field: func(d *tender.Detail) *string { return &d.PublishedDateFull }},
	{pattern: "bid opening date", field: func(d *tender.Detail) *string { return &d.BidOpeningDateFull }},
	{pattern: "clarification start date", field: func(d *tender.Detail) *string { return &d.ClarificationStartDate }},
	{pattern: "clarification end date", field: func(d *tender.Detail) *string { return &d.ClarificationEndDate }},
	{pattern: "bid submission start date", field: func(d *tender.Detail) *string { return &d.BidSubmissionStartDate }},
	{pattern: "bid submission end date", field: func(d *tender.Detail) *string { return &d.BidSubmissionEndDate }},
	{pattern: "sale start date", field: func(d *tender.Detail) *string { return &d.DocDownloadStartDate }},
	{pattern: "download start date", field: func(d *tender.Detail) *string { return &d.DocDownloadStartDate }},
	{pattern: "sale end date", field: func(d *tender.Detail) *string { return &d.DocDownloadEndDate }},
	{pattern: "download end date", field: func(d *tender.Detail) *string { return &d.DocDownloadEndDate }},

	{pattern: "name", exact: true, field: func(d *tender.Detail) *string { return &d.InvitingAuthorityName }},
	{pattern: "address", exact: true, field: func(d *tender.Detail) *string { return &d.InvitingAuthorityAddress }},
}

func normalizeLabel(label string) string {
	label = strings.ToLower(htmlutil.NormalizeSpace(label))
	return strings.TrimSpace(strings.TrimSuffix(label, ":"))
}

func matchLabel(label string) (labelRule, bool) {
	for _, rule := range labelRules {
		if rule.exact && label == rule.pattern {
			return rule, true
		}
		if !rule.exact && strings.Contains(label, rule.pattern) {
			return rule, true
		}
	}
	return labelRule{}, false
}

func notProvided(value string) bool {
	return value == "" || strings.EqualFold(value, "na")
}

// isSessionTimeout reports whether the portal answered with its session
// timeout page instead of the requested one.
func isSessionTimeout(body []byte) bool {
	text := string(body)
	return strings.Contains(text, "Your session has timed out") ||
		strings.Contains(text, "Stale Session")
}

type labelPair struct {
	label string
	value string
}

// labelPairs walks the caption cells of the page. Pages without caption
// markup are read as alternating label/value cells.
func labelPairs(doc htmlutil.Node) []labelPair {
	pairs := []labelPair{}

	captions := doc.FindAll("td.td_caption")
	if len(captions) > 0 {
		for _, caption := range captions {
			value, ok := caption.Next()
			if !ok || value.Tag() != "td" {
				continue
			}
			pairs = append(pairs, labelPair{
				label: caption.Text(),
				value: value.Text(),
			})
		}
		return pairs
	}

	for _, row := range doc.FindAll("tr") {
		cells := row.FindAll("td")
		if len(cells) == 0 || len(cells)%2 != 0 {
			continue
		}
		for i := 0; i < len(cells); i += 2 {
			pairs = append(pairs, labelPair{
				label: cells[i].Text(),
				value: cells[i+1].Text(),
			})
		}
	}
	return pairs
}

// dataRows returns the cell texts of the rows of table whose first cell is a
// serial number, header and caption rows are dropped.
func dataRows(table htmlutil.Node) [][]htmlutil.Node {
	rows := [][]htmlutil.Node{}
	for _, row := range table.FindAll("tr") {
		cells := row.FindAll("td")
		if len(cells) < 2 {
			continue
		}
		serial := strings.TrimSuffix(htmlutil.NormalizeSpace(cells[0].Text()), ".")
		if _, err := strconv.Atoi(serial); err != nil {
			continue
		}
		rows = append(rows, cells)
	}
	return rows
}

func parsePaymentInstruments(doc htmlutil.Node) []string {
	table, ok := doc.First("#offlineInstrumentsTableView")
	if !ok {
		return nil
	}
	var instruments []string
	for _, cells := range dataRows(table) {
		name := cellText(cells, 1)
		if notProvided(name) {
			continue
		}
		instruments = append(instruments, name)
	}
	return instruments
}

func parseCovers(doc htmlutil.Node) []tender.Cover {
	table, ok := doc.First("#packetTableView")
	if !ok {
		return nil
	}
	var covers []tender.Cover
	for _, cells := range dataRows(table) {
		covers = append(covers, tender.Cover{
			CoverNo:      cellText(cells, 0),
			CoverType:    cellText(cells, 1),
			Description:  cellText(cells, 2),
			DocumentType: cellText(cells, 3),
		})
	}
	return covers
}

// documentColumns is the position of each attribute in a document table.
type documentColumns struct {
	documentType int
	name         int
	description  int
	size         int
}

var (
	nitDocumentColumns      = documentColumns{documentType: -1, name: 1, description: 2, size: 3}
	workItemDocumentColumns = documentColumns{documentType: 1, name: 2, description: 3, size: 4}
)

func parseDocuments(doc htmlutil.Node, selector string, cols documentColumns, baseUrl string) []tender.DocumentRef {
	table, ok := doc.First(selector)
	if !ok {
		return nil
	}
	var docs []tender.DocumentRef
	for _, cells := range dataRows(table) {
		if cols.name >= len(cells) {
			continue
		}
		ref := tender.DocumentRef{
			Name:        cellText(cells, cols.name),
			Description: cellText(cells, cols.description),
			SizeKB:      cellText(cells, cols.size),
		}
		if cols.documentType >= 0 {
			ref.DocumentType = cellText(cells, cols.documentType)
		}
		if anchor, ok := cells[cols.name].First("a[href]"); ok {
			href, _ := anchor.Attr("href")
			if resolved, ok := htmlutil.AbsUrl(baseUrl, href); ok {
				ref.DownloadUrl = resolved
			}
		}
		if ref.Name == "" {
			continue
		}
		docs = append(docs, ref)
	}
	return docs
}

// ParseTenderDetail extracts the attributes of a tender detail page.
// Unknown captions are ignored and missing tables leave their list nil.
func ParseTenderDetail(doc htmlutil.Node, baseUrl string) tender.Detail {
	detail := tender.Detail{}

	for _, pair := range labelPairs(doc) {
		label := normalizeLabel(pair.label)
		if label == "" {
			continue
		}
		rule, ok := matchLabel(label)
		if !ok {
			continue
		}
		value := htmlutil.NormalizeSpace(pair.value)
		if notProvided(value) {
			continue
		}
		field := rule.field(&detail)
		if *field != "" {
			continue
		}
		*field = value
	}

	detail.PaymentInstruments = parsePaymentInstruments(doc)
	detail.Covers = parseCovers(doc)
	detail.NitDocuments = parseDocuments(doc, "#tablea", nitDocumentColumns, baseUrl)
	detail.WorkItemDocuments = parseDocuments(doc, "#workItemDocumenttable", workItemDocumentColumns, baseUrl)
	return detail
}
