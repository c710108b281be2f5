package engine

import (
	"bytes"
	"encoding/gob"

	"github.com/pymemo-dev/pymemo/pkg/depcheck"
)

func encodeRecord(rec depcheck.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(blob []byte, rec *depcheck.Record) error {
	return gob.NewDecoder(bytes.NewReader(blob)).Decode(rec)
}
