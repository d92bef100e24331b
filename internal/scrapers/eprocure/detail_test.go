package eprocure

import (
	"encoding/json"
	"eprocure-backend/internal/tender"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseTenderDetail(t *testing.T) {
	detail := ParseTenderDetail(parseFixture(t, "detail.html"), "https://eprocure.gov.in/eprocure/app")

	expected := tender.Detail{
		OrganisationChain:         "National Highways Authority of India||Regional Office Chennai",
		TenderReferenceNumber:     "TN/45/2026",
		TenderId:                  "2026_NHAI_998_1",
		WithdrawalAllowed:         "Yes",
		TenderType:                "Open Tender",
		FormOfContract:            "Supply",
		NumberOfCovers:            "2",
		TenderCategory:            "Goods",
		TenderFee:                 "1,180",
		TenderFeeExemptionAllowed: "No",
		EmdAmount:                 "19,133",
		EmdExemptionAllowed:       "Yes",
		WorkTitle:                 "Supply of Bitumen VG-30",
		WorkDescription:           "Supply of 500 MT bitumen to the Chennai bypass",
		WorkLocation:              "Chennai",
		Pincode:                   "600001",
		PreBidMeetingAddress:      "Conference Hall, RO Chennai",
		BidOpeningPlace:           "Chennai",
		PublishedDateFull:         "05-Feb-2026 09:00 AM",
		BidOpeningDateFull:        "27-Feb-2026 03:30 PM",
		DocDownloadStartDate:      "05-Feb-2026 09:00 AM",
		DocDownloadEndDate:        "26-Feb-2026 03:00 PM",
		BidSubmissionStartDate:    "05-Feb-2026 09:00 AM",
		BidSubmissionEndDate:      "26-Feb-2026 03:00 PM",
		InvitingAuthorityName:     "Regional Officer",
		InvitingAuthorityAddress:  "NHAI, Guindy, Chennai",

		PaymentInstruments: []string{"Demand Draft", "Bankers Cheque"},
		Covers: []tender.Cover{
			{CoverNo: "1", CoverType: "Fee/PreQual/Technical", Description: "Technical bid", DocumentType: ".pdf"},
			{CoverNo: "2", CoverType: "Finance", Description: "BOQ", DocumentType: ".xls"},
		},
		NitDocuments: []tender.DocumentRef{
			{
				Name:        "Tendernotice 1.pdf",
				Description: "NIT",
				SizeKB:      "120.55",
				DownloadUrl: "https://eprocure.gov.in/docs/Tendernotice%201.pdf",
			},
		},
		WorkItemDocuments: []tender.DocumentRef{
			{
				Name:         "BOQ_998.xls",
				DocumentType: "BOQ",
				Description:  "Price bid",
				SizeKB:       "45.10",
				DownloadUrl:  "https://eprocure.gov.in/docs/missing.xls",
			},
		},
	}
	if diff := cmp.Diff(expected, detail); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseTenderDetailWithoutTables(t *testing.T) {
	doc := parseHtml(t, `<table>
		<tr><td class="td_caption">Tender ID</td><td>2026_X_1</td></tr>
		<tr><td class="td_caption">EMD Amount in &#8377;</td><td>NA</td></tr>
	</table>`)
	detail := ParseTenderDetail(doc, "https://eprocure.gov.in/eprocure/app")
	require.Equal(t, "2026_X_1", detail.TenderId)
	require.Empty(t, detail.EmdAmount)

	encoded, err := json.Marshal(detail)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(encoded, &fields))
	for _, key := range []string{"covers", "nitDocuments", "workItemDocuments", "paymentInstruments", "emdAmount"} {
		_, present := fields[key]
		require.False(t, present, key)
	}
	require.Equal(t, map[string]any{"tenderId": "2026_X_1"}, fields)
}

func TestParseTenderDetailPlainPairs(t *testing.T) {
	doc := parseHtml(t, `<table>
		<tr><td>Tender Fee in &#8377;</td><td>500</td><td>Fee Payable At</td><td>New Delhi</td></tr>
		<tr><td>odd</td><td>row</td><td>skipped</td></tr>
		<tr><td>Bid Validity(Days)</td><td>120</td></tr>
	</table>`)
	detail := ParseTenderDetail(doc, "https://eprocure.gov.in/eprocure/app")
	require.Equal(t, tender.Detail{
		TenderFee:       "500",
		FeePayableAt:    "New Delhi",
		BidValidityDays: "120",
	}, detail)
}

func TestMatchLabel(t *testing.T) {
	cases := map[string]string{
		"tender fee exemption allowed":      "tender fee exemption allowed",
		"tender fee in ₹":                   "tender fee",
		"emd fee type":                      "emd fee type",
		"is multi currency allowed for fee": "multi currency allowed for fee",
		"pre bid meeting address":           "pre bid meeting address",
		"address":                           "address",
		"name":                              "name",
		"should allow nda tender":           "allow nda tender",
		"nda/pre qualification":             "pre qualification",
	}
	for label, pattern := range cases {
		rule, ok := matchLabel(label)
		require.True(t, ok, label)
		require.Equal(t, pattern, rule.pattern, label)
	}

	_, ok := matchLabel("authority name")
	require.False(t, ok)
	_, ok = matchLabel("some future caption")
	require.False(t, ok)
}

func TestIsSessionTimeout(t *testing.T) {
	require.True(t, isSessionTimeout(readFixture(t, "timeout.html")))
	require.True(t, isSessionTimeout([]byte("<p>Stale Session</p>")))
	require.False(t, isSessionTimeout(readFixture(t, "detail.html")))
}
