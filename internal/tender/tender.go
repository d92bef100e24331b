// Package tender holds the flat, JSON serializable tender records shared by
// the scrapers, the keyword orchestrator and the persistence layer.
package tender

import (
	"strings"

	"dario.cat/mergo"
)

const (
	SourceEprocure = "eprocure"
	SourceT247     = "t247"
)

// Tender is one search result row, optionally enriched with the attributes
// scraped from its detail page. Detail attributes are flattened into the
// same JSON object.
type Tender struct {
	Source        string `json:"source,omitempty"`
	Keyword       string `json:"keyword"`
	PublishedDate string `json:"publishedDate"`
	ClosingDate   string `json:"closingDate"`
	OpeningDate   string `json:"openingDate"`
	Title         string `json:"title"`
	Reference     string `json:"reference"`
	Organisation  string `json:"organisation"`
	DetailUrl     string `json:"detailUrl"`

	Detail
}

// Key is the de-duplication identity "<reference>::<detailUrl>". A tender
// with neither a reference nor a detail url has no identity and yields "".
func (t Tender) Key() string {
	return Key(t.Reference, t.DetailUrl)
}

func Key(reference, detailUrl string) string {
	reference = strings.TrimSpace(reference)
	detailUrl = strings.TrimSpace(detailUrl)
	if reference == "" && detailUrl == "" {
		return ""
	}
	return reference + "::" + detailUrl
}

// Enrich assigns every attribute present in detail over the tender's own,
// attributes absent from detail leave the tender untouched.
func (t *Tender) Enrich(detail Detail) error {
	return mergo.Merge(&t.Detail, detail, mergo.WithOverride)
}

// Detail is the partially populated attribute set of a detail page. Absent
// attributes are the zero value and are omitted from JSON, lists are nil
// when their table was not on the page.
type Detail struct {
	OrganisationChain                 string `json:"organisationChain,omitempty"`
	TenderReferenceNumber             string `json:"tenderReferenceNumber,omitempty"`
	TenderId                          string `json:"tenderId,omitempty"`
	WithdrawalAllowed                 string `json:"withdrawalAllowed,omitempty"`
	TenderType                        string `json:"tenderType,omitempty"`
	FormOfContract                    string `json:"formOfContract,omitempty"`
	TenderCategory                    string `json:"tenderCategory,omitempty"`
	NumberOfCovers                    string `json:"numberOfCovers,omitempty"`
	GeneralTechnicalEvaluationAllowed string `json:"generalTechnicalEvaluationAllowed,omitempty"`
	ItemWiseTechnicalEvaluationAllowed string `json:"itemWiseTechnicalEvaluationAllowed,omitempty"`
	PaymentMode                       string `json:"paymentMode,omitempty"`
	MultiCurrencyAllowedBoq           string `json:"multiCurrencyAllowedBoq,omitempty"`
	MultiCurrencyAllowedFee           string `json:"multiCurrencyAllowedFee,omitempty"`
	AllowTwoStageBidding              string `json:"allowTwoStageBidding,omitempty"`

	TenderFee                 string `json:"tenderFee,omitempty"`
	FeePayableTo              string `json:"feePayableTo,omitempty"`
	FeePayableAt              string `json:"feePayableAt,omitempty"`
	TenderFeeExemptionAllowed string `json:"tenderFeeExemptionAllowed,omitempty"`
	EmdAmount                 string `json:"emdAmount,omitempty"`
	EmdExemptionAllowed       string `json:"emdExemptionAllowed,omitempty"`
	EmdFeeType                string `json:"emdFeeType,omitempty"`
	EmdPercentage             string `json:"emdPercentage,omitempty"`
	EmdPayableTo              string `json:"emdPayableTo,omitempty"`
	EmdPayableAt              string `json:"emdPayableAt,omitempty"`

	WorkTitle                  string `json:"workTitle,omitempty"`
	WorkDescription            string `json:"workDescription,omitempty"`
	NdaPreQualification        string `json:"ndaPreQualification,omitempty"`
	IndependentExternalMonitor string `json:"independentExternalMonitor,omitempty"`
	TenderValue                string `json:"tenderValue,omitempty"`
	ProductCategory            string `json:"productCategory,omitempty"`
	SubCategory                string `json:"subCategory,omitempty"`
	ContractType               string `json:"contractType,omitempty"`
	BidValidityDays            string `json:"bidValidityDays,omitempty"`
	PeriodOfWorkDays           string `json:"periodOfWorkDays,omitempty"`
	WorkLocation               string `json:"workLocation,omitempty"`
	Pincode                    string `json:"pincode,omitempty"`
	PreBidMeetingPlace         string `json:"preBidMeetingPlace,omitempty"`
	PreBidMeetingAddress       string `json:"preBidMeetingAddress,omitempty"`
	PreBidMeetingDate          string `json:"preBidMeetingDate,omitempty"`
	BidOpeningPlace            string `json:"bidOpeningPlace,omitempty"`
	ShouldAllowNDATender       string `json:"shouldAllowNDATender,omitempty"`
	AllowPreferentialBidder    string `json:"allowPreferentialBidder,omitempty"`

	PublishedDateFull      string `json:"publishedDateFull,omitempty"`
	BidOpeningDateFull     string `json:"bidOpeningDateFull,omitempty"`
	DocDownloadStartDate   string `json:"docDownloadStartDate,omitempty"`
	DocDownloadEndDate     string `json:"docDownloadEndDate,omitempty"`
	ClarificationStartDate string `json:"clarificationStartDate,omitempty"`
	ClarificationEndDate   string `json:"clarificationEndDate,omitempty"`
	BidSubmissionStartDate string `json:"bidSubmissionStartDate,omitempty"`
	BidSubmissionEndDate   string `json:"bidSubmissionEndDate,omitempty"`

	InvitingAuthorityName    string `json:"invitingAuthorityName,omitempty"`
	InvitingAuthorityAddress string `json:"invitingAuthorityAddress,omitempty"`

	PaymentInstruments []string      `json:"paymentInstruments,omitempty"`
	Covers             []Cover       `json:"covers,omitempty"`
	NitDocuments       []DocumentRef `json:"nitDocuments,omitempty"`
	WorkItemDocuments  []DocumentRef `json:"workItemDocuments,omitempty"`
}

type Cover struct {
	CoverNo      string `json:"coverNo"`
	CoverType    string `json:"coverType"`
	Description  string `json:"description,omitempty"`
	DocumentType string `json:"documentType,omitempty"`
}

// DocumentRef points at an attachment of a tender. LocalPath is set only
// after the attachment was downloaded, relative to the output directory.
type DocumentRef struct {
	Name         string `json:"name"`
	DocumentType string `json:"documentType,omitempty"`
	Description  string `json:"description,omitempty"`
	SizeKB       string `json:"sizeKB,omitempty"`
	DownloadUrl  string `json:"downloadUrl,omitempty"`
	LocalPath    string `json:"localPath,omitempty"`
}
