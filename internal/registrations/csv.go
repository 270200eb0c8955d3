package registrations

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/logger"

	"chapter/internal/models"
)

// ImportCSV registers every "name,email" row of r for eventID and returns
// how many were added. Malformed and duplicate rows are skipped; a leading
// header row is ignored.
func ImportCSV(ctx context.Context, store Store, eventID string, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	added := 0
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return added, fmt.Errorf("read csv: %w", err)
		}
		if first {
			first = false
			if len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "name") {
				continue
			}
		}

		if len(record) == 0 || len(record) > 2 {
			logger.Infof("Skipping malformed registration CSV record: %v", record)
			continue
		}
		p := models.Participant{Name: record[0]}
		if len(record) == 2 {
			p.Email = record[1]
		}

		err = store.Register(ctx, eventID, p)
		switch {
		case err == nil:
			added++
		case errors.Is(err, ErrAlreadyRegistered), errors.Is(err, ErrInvalidParticipant):
			logger.Infof("Skipping registration CSV record %v: %v", record, err)
		default:
			return added, err
		}
	}
	return added, nil
}
