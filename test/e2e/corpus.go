// Package e2e provides end-to-end tests that upload a document corpus over
// HTTP and ask questions about it.
package e2e

import (
	"fmt"
	"strings"
)

// CorpusDocument is one uploadable document of the corpus.
type CorpusDocument struct {
	Filename string
	Title    string
	Content  string
}

// QuestionCase is a question and the file whose content must ground the answer.
type QuestionCase struct {
	Question       string
	ExpectedSource string
	Description    string
}

// Corpus holds documents and question cases for E2E tests.
type Corpus struct {
	Documents []CorpusDocument
	Questions []QuestionCase
}

var corpusTopics = []struct {
	title     string
	signature string
	intro     string
}{
	{"Refund Policy", "Refunds are issued to the original payment card within ten business days.", "Customers may return unused items."},
	{"Travel Expenses", "Economy airfare must be booked through the corporate travel portal.", "Employees travelling for work are reimbursed."},
	{"Remote Work", "Staff may work from home on Mondays and Fridays with manager approval.", "Hybrid schedules are supported."},
	{"Security Badges", "Lost badges must be reported to facilities within one hour.", "Every visitor is escorted."},
	{"Parental Leave", "Primary caregivers receive sixteen weeks of paid parental leave.", "Leave starts on the birth or adoption date."},
	{"Laptop Replacement", "Laptops are refreshed every three years by the IT service desk.", "Hardware stays company property."},
	{"Code Review", "Every pull request needs approval from two reviewers before merging.", "Reviews focus on correctness."},
	{"Incident Response", "Severity one incidents page the on-call engineer immediately.", "Incidents are tracked in a shared channel."},
	{"Data Retention", "Customer invoices are archived for seven years in cold storage.", "Personal data is minimised."},
	{"Vendor Onboarding", "New suppliers sign a confidentiality agreement before receiving purchase orders.", "Procurement vets every vendor."},
	{"Office Parking", "Electric vehicle chargers in the garage are free for employees.", "Parking spaces are first come first served."},
	{"Training Budget", "Each engineer has an annual conference allowance of two thousand euros.", "Learning is encouraged."},
	{"Password Rules", "Passwords rotate every ninety days and require sixteen characters.", "Accounts use single sign-on."},
	{"Holiday Calendar", "The office closes between Christmas Eve and New Year's Day.", "Regional holidays follow local law."},
	{"Sales Commission", "Commission is paid quarterly on recognised revenue.", "Targets are set each January."},
	{"Wellness Program", "Gym memberships are subsidised up to fifty euros per month.", "Health is a priority."},
	{"Backup Schedule", "Database snapshots run nightly at two in the morning.", "Restores are tested monthly."},
	{"Meeting Rooms", "Conference rooms are booked through the shared calendar.", "Meetings end five minutes early."},
	{"Shipping Rates", "Orders above fifty euros ship free within the European Union.", "International shipping is calculated at checkout."},
	{"Warranty Claims", "Hardware defects are covered by a two year manufacturer warranty.", "Claims need a proof of purchase."},
}

// BuildCorpus returns one document per topic and one question per document.
// Each question is the document's signature sentence.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for _, t := range corpusTopics {
		filename := strings.ToLower(strings.ReplaceAll(t.title, " ", "-")) + ".docx"
		c.Documents = append(c.Documents, CorpusDocument{
			Filename: filename,
			Title:    t.title,
			Content:  t.intro + " " + t.signature,
		})
		c.Questions = append(c.Questions, QuestionCase{
			Question:       t.signature,
			ExpectedSource: filename,
			Description:    fmt.Sprintf("question about %s cites %s", t.title, filename),
		})
	}
	return c
}
