// Package generator fabricates synthetic CRM EmailMessage records for
// migration testing. Output is a pure function of the seed, the reference
// time and the sequence of calls.
package generator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/cloudmigrate/pkg/logger"
)

// DefaultSeed matches the seed the sample files have always been built with.
const DefaultSeed uint64 = 42

// progressEvery controls how often Generate logs progress on large batches.
const progressEvery = 1000

const dateLayout = "2006-01-02 15:04:05"

var (
	emailTypes = []string{TypeCustomerInquiry, TypeSupportTicket, TypeSalesFollowUp, TypeInternal, TypeNewsletter}
	priorities = []string{"Low", "Normal", "High"}
	statuses   = []string{"Sent", "Draft", "Failed", "Bounced"}
)

const (
	TypeCustomerInquiry = "customer_inquiry"
	TypeSupportTicket   = "support_ticket"
	TypeSalesFollowUp   = "sales_follow_up"
	TypeInternal        = "internal"
	TypeNewsletter      = "newsletter"
)

// EmailMessage mirrors the CRM EmailMessage object. Empty Cc/Bcc mean "none".
type EmailMessage struct {
	ID               string
	Subject          string
	TextBody         string
	HTMLBody         string
	FromAddress      string
	ToAddress        string
	CcAddress        string
	BccAddress       string
	Status           string
	Priority         string
	MessageDate      time.Time
	CreatedDate      time.Time
	LastModifiedDate time.Time
	ActivityID       string
	ParentID         string
	MessageSize      int
	EmailType        string
	IsTracked        bool
	IsOpened         bool
	OpenCount        int
}

// Header returns the column names, in the order Row emits values.
func Header() []string {
	return []string{
		"Id", "Subject", "TextBody", "HtmlBody", "FromAddress", "ToAddress",
		"CcAddress", "BccAddress", "Status", "Priority", "MessageDate",
		"CreatedDate", "LastModifiedDate", "ActivityId", "ParentId",
		"MessageSize", "EmailType", "IsTracked", "IsOpened", "OpenCount",
	}
}

// Row renders the record as strings aligned with Header.
func (m EmailMessage) Row() []string {
	return []string{
		m.ID,
		m.Subject,
		m.TextBody,
		m.HTMLBody,
		m.FromAddress,
		m.ToAddress,
		m.CcAddress,
		m.BccAddress,
		m.Status,
		m.Priority,
		m.MessageDate.Format(dateLayout),
		m.CreatedDate.Format(dateLayout),
		m.LastModifiedDate.Format(dateLayout),
		m.ActivityID,
		m.ParentID,
		strconv.Itoa(m.MessageSize),
		m.EmailType,
		pyBool(m.IsTracked),
		pyBool(m.IsOpened),
		strconv.Itoa(m.OpenCount),
	}
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Generator owns its random source; two Generators built with the same seed
// and reference time produce the same records.
type Generator struct {
	faker *gofakeit.Faker
	now   time.Time
	log   zerolog.Logger
}

// New returns a Generator seeded with seed. Dates are drawn relative to now.
// A zero seed makes gofakeit pick a random one, so output is not reproducible.
func New(seed uint64, now time.Time) *Generator {
	return &Generator{
		faker: gofakeit.New(seed),
		now:   now.UTC().Truncate(time.Second),
		log:   logger.Component("generator"),
	}
}

// WithLogger replaces the progress logger.
func (g *Generator) WithLogger(l zerolog.Logger) *Generator {
	g.log = l
	return g
}

// Generate returns n fresh records.
func (g *Generator) Generate(n int) []EmailMessage {
	if n <= 0 {
		return []EmailMessage{}
	}

	g.log.Info().Int("count", n).Msg("generator: generating mock email records")

	emails := make([]EmailMessage, 0, n)
	for i := 0; i < n; i++ {
		emails = append(emails, g.next())

		if (i+1)%progressEvery == 0 {
			g.log.Info().Int("generated", i+1).Msg("generator: progress")
		}
	}

	g.log.Info().Int("count", len(emails)).Msg("generator: generated email records")
	return emails
}

func (g *Generator) next() EmailMessage {
	f := g.faker
	emailType := f.RandomString(emailTypes)
	subject, body := g.content(emailType)

	m := EmailMessage{
		ID:               "02s" + g.digits(15),
		Subject:          subject,
		TextBody:         body,
		HTMLBody:         fmt.Sprintf("<html><body>%s</body></html>", body),
		FromAddress:      f.Email(),
		ToAddress:        f.Email(),
		Status:           f.RandomString(statuses),
		Priority:         f.RandomString(priorities),
		MessageDate:      g.within(2),
		CreatedDate:      g.within(2),
		LastModifiedDate: g.within(1),
		ActivityID:       "00T" + g.digits(15),
		ParentID:         "001" + g.digits(15),
		MessageSize:      len(body) + len(subject),
		EmailType:        emailType,
		IsTracked:        f.Bool(),
		IsOpened:         f.Bool(),
	}
	if f.Float64() > 0.7 {
		m.CcAddress = f.Email()
	}
	if f.Float64() > 0.9 {
		m.BccAddress = f.Email()
	}
	if f.Float64() > 0.3 {
		m.OpenCount = f.Number(0, 5)
	}
	return m
}

// within returns a time in the last `years` years, to the second.
func (g *Generator) within(years int) time.Time {
	return g.faker.DateRange(g.now.AddDate(-years, 0, 0), g.now).UTC().Truncate(time.Second)
}

func (g *Generator) digits(n int) string {
	return g.faker.Numerify(strings.Repeat("#", n))
}

// sentence joins `words` random words into a capitalized sentence.
func (g *Generator) sentence(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = g.faker.Word()
	}
	return title(strings.Join(parts, " ")) + "."
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
