package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sguter90/weatherlog/pkg/models"
)

func encodeFields(fields models.Fields) ([]byte, error) {
	if fields == nil {
		fields = models.Fields{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return b, nil
}

// decodeFields keeps numbers as json.Number so a stored payload reads back
// exactly as it was written.
func decodeFields(b []byte) (models.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var fields models.Fields
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if fields == nil {
		fields = models.Fields{}
	}
	return fields, nil
}
