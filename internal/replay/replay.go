// Package replay re-runs recorded participant sessions through the trust
// estimator and writes the refit estimates next to the recorded ones.
package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/trustfit/internal/session"
)

// Column positions in a participant Data.csv.
const (
	colFeedback         = 12
	colOriginalEstimate = 13
	colPerformance      = 14
)

// Record is one site visit from a participant log.
type Record struct {
	Line             int
	Performance      int
	Feedback         int
	OriginalEstimate float64
}

// Row is one line of the estimates output.
type Row struct {
	Feedback         int
	OriginalEstimate float64
	NewEstimate      float64
}

// Ingester is the session.Manager surface a replay drives.
type Ingester interface {
	Ingest(ctx context.Context, sessionID string, performance, feedback int) (session.Update, error)
	Reset(sessionID string) error
}

// ReadParticipantCSV parses a participant log. The first line is a header.
func ReadParticipantCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var records []Record
	for line := 1; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if line == 1 {
			continue
		}
		if len(fields) <= colPerformance {
			return nil, fmt.Errorf("line %d: expected at least %d columns, got %d", line, colPerformance+1, len(fields))
		}

		feedback, err := strconv.Atoi(strings.TrimSpace(fields[colFeedback]))
		if err != nil {
			return nil, fmt.Errorf("line %d: trust feedback: %w", line, err)
		}
		original, err := strconv.ParseFloat(strings.TrimSpace(fields[colOriginalEstimate]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: original estimate: %w", line, err)
		}
		performance, err := strconv.Atoi(strings.TrimSpace(fields[colPerformance]))
		if err != nil {
			return nil, fmt.Errorf("line %d: performance: %w", line, err)
		}

		records = append(records, Record{
			Line:             line,
			Performance:      performance,
			Feedback:         feedback,
			OriginalEstimate: original,
		})
	}
	return records, nil
}

// Run feeds records one at a time through a fresh session. Each refit is
// seeded with the parameters of the previous one.
func Run(ctx context.Context, sessionID string, records []Record, sessions Ingester) ([]Row, error) {
	if err := sessions.Reset(sessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("reset session: %w", err)
	}

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		u, err := sessions.Ingest(ctx, sessionID, rec.Performance, rec.Feedback)
		if err != nil {
			return rows, fmt.Errorf("line %d: %w", rec.Line, err)
		}
		rows = append(rows, Row{
			Feedback:         rec.Feedback,
			OriginalEstimate: rec.OriginalEstimate,
			NewEstimate:      u.NewEstimate,
		})
	}
	return rows, nil
}

// WriteEstimatesCSV writes rows under a TrustFeedback,OriginalEstimate,NewEstimate header.
func WriteEstimatesCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"TrustFeedback", "OriginalEstimate", "NewEstimate"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write([]string{
			strconv.Itoa(r.Feedback),
			strconv.FormatFloat(r.OriginalEstimate, 'g', -1, 64),
			strconv.FormatFloat(r.NewEstimate, 'g', -1, 64),
		}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
