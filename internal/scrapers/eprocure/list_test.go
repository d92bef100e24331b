package eprocure

import (
	"eprocure-backend/internal/tender"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	cases := []struct {
		cell     string
		expected string
	}{
		{cell: "[Supply of X.][TN/45/2026][INT-998]", expected: "[TN/45/2026][INT-998]"},
		{cell: "[Supply of X.] [TN/45/2026] [INT-998] [2026_1]", expected: "[TN/45/2026][INT-998][2026_1]"},
		{cell: "[Road Repair] [RR/12/2026]", expected: "[RR/12/2026]"},
		{cell: "[only one]", expected: "[only one]"},
		{cell: "TN/45/2026", expected: "TN/45/2026"},
		{cell: "", expected: ""},
	}
	for _, c := range cases {
		require.Equal(t, c.expected, ParseReference(c.cell), c.cell)
	}
}

func TestParseTenderList(t *testing.T) {
	doc := parseFixture(t, "results.html")
	base := "https://eprocure.gov.in/eprocure/app"

	tenders := ParseTenderList(doc, "bitumen", base)
	expected := []tender.Tender{
		{
			Source:        tender.SourceEprocure,
			Keyword:       "bitumen",
			PublishedDate: "05-Feb-2026 09:00 AM",
			ClosingDate:   "26-Feb-2026 03:00 PM",
			OpeningDate:   "27-Feb-2026 03:30 PM",
			Title:         "Supply of Bitumen VG-30",
			Reference:     "[TN/45/2026][2026_NHAI_998_1]",
			Organisation:  "National Highways Authority of India||Regional Office Chennai",
			DetailUrl:     "https://eprocure.gov.in/eprocure/app?component=%24DirectLink&page=FrontEndViewTender&service=direct&sp=1",
		},
		{
			Source:        tender.SourceEprocure,
			Keyword:       "bitumen",
			PublishedDate: "06-Feb-2026 10:00 AM",
			ClosingDate:   "27-Feb-2026 03:00 PM",
			OpeningDate:   "28-Feb-2026 03:30 PM",
			Title:         "Road Repair Works",
			Reference:     "[RR/12/2026]",
			Organisation:  "Public Works Department",
			DetailUrl:     "https://eprocure.gov.in/eprocure/app?component=%24DirectLink&page=FrontEndViewTender&service=direct&sp=2",
		},
	}
	if diff := cmp.Diff(expected, tenders); diff != "" {
		t.Fatal(diff)
	}
}

func TestParseTenderListSkipsNoise(t *testing.T) {
	doc := parseHtml(t, `<table id="table">
		<tr class="even"></tr>
		<tr class="odd"><td>1</td><td>05-Feb-2026</td></tr>
		<tr class="even"><td>2</td><td>Page 2</td><td></td><td></td><td><a href="?next">next</a></td></tr>
		<tr class="odd"><td>3</td><td>05-Feb-2026</td><td></td><td></td><td><a href="javascript:void(0)">[t] [r]</a></td></tr>
		<tr class="even"><td>4</td><td></td><td></td><td></td><td><a href="?sp=4">[Only Title]</a></td></tr>
		<tr><td>5</td><td>05-Feb-2026</td><td></td><td></td><td><a href="?sp=5">unmarked row</a></td></tr>
	</table>
	<a href="?page=Home">Home</a>`)

	tenders := ParseTenderList(doc, "k", "https://eprocure.gov.in/eprocure/app")
	require.Len(t, tenders, 1)
	require.Equal(t, "Only Title", tenders[0].Title)
	require.Equal(t, "[Only Title]", tenders[0].Reference)
	require.Equal(t, "", tenders[0].PublishedDate)
	require.Equal(t, "https://eprocure.gov.in/eprocure/app?sp=4", tenders[0].DetailUrl)

	require.Empty(t, ParseTenderList(parseHtml(t, `<p>no results</p>`), "k", "https://eprocure.gov.in/eprocure/app"))
}
