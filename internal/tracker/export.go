package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/fabulist/fabula/internal/ir"
)

// Export serializes an execution log to indented JSON. Output is
// deterministic: the firing sequence keeps append order and JSON object keys
// (snapshot timesteps, entity IDs, attributes) serialize sorted.
func Export(log ir.ExecutionLog) ([]byte, error) {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export execution log: %w", err)
	}
	return data, nil
}

// ExportCompressed serializes an execution log to zstd-compressed JSON.
// Long runs produce large snapshot tables; compressed export keeps archived
// traces small.
func ExportCompressed(log ir.ExecutionLog) ([]byte, error) {
	data, err := Export(log)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, fmt.Errorf("compress execution log: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("flush zstd writer: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadCompressed decompresses an export produced by ExportCompressed back
// into an execution log.
func ReadCompressed(data []byte) (ir.ExecutionLog, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return ir.ExecutionLog{}, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	var log ir.ExecutionLog
	if err := json.NewDecoder(dec).Decode(&log); err != nil {
		return ir.ExecutionLog{}, fmt.Errorf("decode execution log: %w", err)
	}
	return log, nil
}
