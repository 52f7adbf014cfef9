package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"neoflow/internal/domain"
)

// Record is one exported document with its extraction result, if any.
type Record struct {
	Document domain.Document
	Result   *domain.ExtractionResult
}

// Source is the read side of the document service used by Collect.
type Source interface {
	List(ctx context.Context, filter domain.ListFilter) (*domain.DocumentList, error)
	Result(ctx context.Context, documentID string) (*domain.ExtractionResult, error)
}

// Collect walks every page matching filter and loads the extraction result
// of each document that has one.
func Collect(ctx context.Context, src Source, filter domain.ListFilter) ([]Record, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	var records []Record
	for {
		page, err := src.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, doc := range page.Items {
			rec := Record{Document: doc}
			if doc.Status.HasResult() {
				res, err := src.Result(ctx, doc.ID)
				switch {
				case errors.Is(err, domain.ErrResultNotReady):
				case err != nil:
					return nil, fmt.Errorf("loading result of %s: %w", doc.ID, err)
				default:
					rec.Result = res
				}
			}
			records = append(records, rec)
		}
		if !page.HasMore || len(page.Items) == 0 {
			return records, nil
		}
		filter.Page++
	}
}

// metaColumns are always present, followed by one column per extraction
// field in sorted order.
var metaColumns = []string{
	"Document ID",
	"Document Name",
	"Status",
	"Document Type",
	"Validated",
	"OCR Confidence",
	"Error Message",
	"Processed At",
	"Created At",
}

// Columns returns the header row for records.
func Columns(records []Record) []string {
	return append(append([]string{}, metaColumns...), fieldKeys(records)...)
}

func fieldKeys(records []Record) []string {
	seen := map[string]bool{}
	var keys []string
	for _, r := range records {
		if r.Result == nil {
			continue
		}
		for k := range r.Result.ExtractionData {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// rows converts records to string rows aligned with Columns(records).
func rows(records []Record) [][]string {
	keys := fieldKeys(records)
	out := make([][]string, 0, len(records))
	for i := range records {
		out = append(out, recordToRow(&records[i], keys))
	}
	return out
}

func recordToRow(r *Record, keys []string) []string {
	doc := &r.Document
	row := make([]string, len(metaColumns)+len(keys))
	row[0] = doc.ID
	row[1] = doc.Name()
	row[2] = string(doc.Status)
	row[3] = deref(doc.DocumentType)
	row[6] = deref(doc.ErrorMessage)
	row[7] = formatTime(doc.ProcessedAt)
	row[8] = doc.CreatedAt.Format(time.RFC3339)

	if r.Result == nil {
		return row
	}
	if r.Result.DocumentType != "" {
		row[3] = r.Result.DocumentType
	}
	row[4] = formatBool(r.Result.IsValidated)
	if r.Result.OCRConfidence != nil {
		row[5] = strconv.FormatFloat(*r.Result.OCRConfidence, 'f', 2, 64)
	}
	for i, k := range keys {
		row[len(metaColumns)+i] = formatValue(r.Result.ExtractionData[k])
	}
	return row
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return formatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
