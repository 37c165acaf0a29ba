package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/target/bgsms/internal/domain/model"
)

// recipientColumns are the CSV header names understood by submit.
var recipientColumns = []string{"vendor_name", "mask", "from_json", "body", "to"}

func readRecipientsFile(path string) ([]model.RecipientTask, error) {
	if path == "-" {
		return parseRecipientsCSV(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recipients file: %w", err)
	}
	defer f.Close()
	return parseRecipientsCSV(f)
}

// parseRecipientsCSV reads one recipient per row. The header row names the
// columns in any order; vendor_name, body and to are required.
func parseRecipientsCSV(r io.Reader) ([]model.RecipientTask, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("recipients file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, required := range []string{"vendor_name", "body", "to"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("recipients header is missing column %q (known columns: %s)",
				required, strings.Join(recipientColumns, ","))
		}
	}

	field := func(row []string, name string) string {
		if i, ok := index[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	var out []model.RecipientTask
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read recipients: %w", err)
		}
		out = append(out, model.RecipientTask{
			VendorName: strings.TrimSpace(field(row, "vendor_name")),
			Mask:       strings.TrimSpace(field(row, "mask")),
			FromJSON:   field(row, "from_json"),
			Body:       field(row, "body"),
			To:         strings.TrimSpace(field(row, "to")),
		})
	}
	if len(out) == 0 {
		return nil, errors.New("recipients file has no rows")
	}
	return out, nil
}
