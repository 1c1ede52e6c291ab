package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// TableCount is the row count of one output table.
type TableCount struct {
	Name string
	Rows int
}

// RunSummary is what one finished run reports.
type RunSummary struct {
	RunID    string
	RunTS    string
	Kind     string
	Status   string
	Started  time.Time
	Finished time.Time

	SourceObject    string
	SourceInvoices  int
	FactRows        int
	DroppedInvoices int
	Tables          []TableCount

	Error string
}

// Duration is the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	if s.Finished.Before(s.Started) {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

const maxRichText = 2000

func richText(content string) []notionapi.RichText {
	if len(content) > maxRichText {
		content = content[:maxRichText]
	}
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t.UTC())
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{Start: &d},
	}
}

// SummaryToNotionProperties converts a run summary to properties of the runs
// database.
func SummaryToNotionProperties(s RunSummary) notionapi.Properties {
	props := notionapi.Properties{
		"Run": notionapi.TitleProperty{
			Title: richText(fmt.Sprintf("%s %s", s.Kind, s.RunTS)),
		},
		"Run ID": notionapi.RichTextProperty{
			RichText: richText(s.RunID),
		},
		"Kind": notionapi.SelectProperty{
			Select: notionapi.Option{Name: s.Kind},
		},
		"Status": notionapi.SelectProperty{
			Select: notionapi.Option{Name: s.Status},
		},
		"Source Invoices": notionapi.NumberProperty{
			Number: float64(s.SourceInvoices),
		},
		"Fact Rows": notionapi.NumberProperty{
			Number: float64(s.FactRows),
		},
		"Dropped Invoices": notionapi.NumberProperty{
			Number: float64(s.DroppedInvoices),
		},
		"Duration (s)": notionapi.NumberProperty{
			Number: s.Duration().Seconds(),
		},
	}

	if !s.Started.IsZero() {
		props["Started"] = dateProperty(s.Started)
	}
	if !s.Finished.IsZero() {
		props["Finished"] = dateProperty(s.Finished)
	}

	if s.SourceObject != "" {
		props["Source"] = notionapi.RichTextProperty{
			RichText: richText(s.SourceObject),
		}
	}

	if len(s.Tables) > 0 {
		lines := make([]string, 0, len(s.Tables))
		for _, t := range s.Tables {
			lines = append(lines, fmt.Sprintf("%s: %d", t.Name, t.Rows))
		}
		props["Tables"] = notionapi.RichTextProperty{
			RichText: richText(strings.Join(lines, "\n")),
		}
	}

	if s.Error != "" {
		props["Error"] = notionapi.RichTextProperty{
			RichText: richText(s.Error),
		}
	}

	return props
}
