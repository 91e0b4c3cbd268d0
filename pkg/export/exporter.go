package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"jobradar/pkg/models"
)

// Exporter writes postings out as CSV or JSON, either to a stream (the HTTP
// export endpoint) or to a timestamped file under the output directory (the
// one-shot CLI).
type Exporter struct {
	outputDir string
}

func New(outputDir string) *Exporter {
	return &Exporter{outputDir: outputDir}
}

// WriteCSV streams the postings as CSV rows.
func (e *Exporter) WriteCSV(w io.Writer, jobs []models.Job) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	headers := []string{
		"ID",
		"Source",
		"Title",
		"Company",
		"Location",
		"Job Type",
		"Salary",
		"Remote",
		"Visa Sponsorship",
		"Visa Keywords",
		"Keywords",
		"Experience Level",
		"URL",
		"Posted At",
		"Last Seen At",
		"Is Active",
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for _, job := range jobs {
		postedAt := ""
		if job.PostedAt != nil {
			postedAt = job.PostedAt.Format("2006-01-02")
		}
		record := []string{
			job.ID,
			job.Source,
			job.Title,
			job.Company,
			job.Location,
			job.JobType,
			job.Salary,
			strconv.FormatBool(job.Remote),
			strconv.FormatBool(job.VisaSponsorship),
			strings.Join(job.VisaKeywords, "; "),
			strings.Join(job.Keywords, "; "),
			job.GetExperienceLevel(),
			job.URL,
			postedAt,
			job.LastSeenAt.Format("2006-01-02 15:04:05"),
			strconv.FormatBool(job.IsActive),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing CSV record for %s: %w", job.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteJSON streams the postings as an indented JSON array.
func (e *Exporter) WriteJSON(w io.Writer, jobs []models.Job) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jobs); err != nil {
		return fmt.Errorf("writing JSON export: %w", err)
	}
	return nil
}

// ExportFile writes the postings to a file in the output directory. When
// filename is empty a timestamped one is generated. The format is taken
// from the filename extension (.json or .csv, defaulting to CSV). The full
// path written is returned.
func (e *Exporter) ExportFile(jobs []models.Job, filename string) (string, error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	if filename == "" {
		filename = fmt.Sprintf("jobs_export_%s.csv", time.Now().Format("2006-01-02_15-04-05"))
	}

	asJSON := strings.HasSuffix(filename, ".json")
	if !asJSON && !strings.HasSuffix(filename, ".csv") {
		filename += ".csv"
	}

	path := filepath.Join(e.outputDir, filename)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	defer file.Close()

	if asJSON {
		err = e.WriteJSON(file, jobs)
	} else {
		err = e.WriteCSV(file, jobs)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}
