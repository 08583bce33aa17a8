package converter

import "github.com/yuanying/epubsplit/internal/splitter"

// ChapterStatus is the outcome for one spine chapter.
type ChapterStatus string

const (
	StatusSplit   ChapterStatus = "split"
	StatusSkipped ChapterStatus = "skipped"
	StatusFailed  ChapterStatus = "failed"
)

// ChapterReport describes what happened to one spine chapter.
type ChapterReport struct {
	ID     string              `json:"id"`
	Href   string              `json:"href"`
	Linear bool                `json:"linear"`
	Status ChapterStatus       `json:"status"`
	Reason splitter.SkipReason `json:"reason,omitempty"`
	Parts  []string            `json:"parts,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// Report summarizes a conversion.
type Report struct {
	Title      string `json:"title,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Language   string `json:"language,omitempty"`

	Chapters       int             `json:"chapters"`
	Split          int             `json:"split"`
	Skipped        int             `json:"skipped"`
	Failed         int             `json:"failed"`
	PartsCreated   int             `json:"partsCreated"`
	LinksRewritten int             `json:"linksRewritten"`
	DryRun         bool            `json:"dryRun,omitempty"`
	Items          []ChapterReport `json:"items"`
}

func (r *Report) add(item ChapterReport) {
	r.Chapters++
	switch item.Status {
	case StatusSplit:
		r.Split++
		r.PartsCreated += len(item.Parts) - 1
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
	r.Items = append(r.Items, item)
}
