// Package journal writes the per-run trade journal: one structured log file
// per run name plus raw advisor responses for later review. Process stdout
// logging lives in internal/logger; the journal is the durable record.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"llm-futures-trader/internal/types"
)

type Journal struct {
	log     *zap.Logger
	dir     string
	runName string
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

// New opens (or creates) logs/<runName>.log and returns a journal writing
// JSON lines to it.
func New(runName string) (*Journal, error) {
	dir := logDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, runName+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.InfoLevel)

	log := zap.New(core).With(zap.String("run", runName))
	return &Journal{log: log, dir: dir, runName: runName}, nil
}

// Cycle records the outcome of one evaluation cycle.
func (j *Journal) Cycle(res *types.CycleResult) {
	if j == nil || res == nil {
		return
	}
	j.log.Info("cycle",
		zap.String("symbol", res.Symbol),
		zap.String("signal", string(res.Signal)),
		zap.String("action", string(res.Action)),
		zap.String("status", string(res.Status)),
		zap.Int("orders", len(res.Orders)),
		zap.String("reason", res.Reason),
	)
}

// Event records an arbitrary run event from alternating key/value pairs.
// Non-string keys and trailing odd values are dropped.
func (j *Journal) Event(msg string, kv ...any) {
	if j == nil {
		return
	}
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	j.log.Info(msg, fields...)
}

// SaveResponse persists a raw advisor response under
// <dir>/responses/<run>_<timestamp>.json.
func (j *Journal) SaveResponse(outlook types.Outlook) error {
	if j == nil {
		return nil
	}
	dir := filepath.Join(j.dir, "responses")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	record := struct {
		Time           string          `json:"time"`
		Signal         string          `json:"signal"`
		Interpretation string          `json:"interpretation"`
		Raw            json.RawMessage `json:"raw,omitempty"`
	}{
		Time:           time.Now().UTC().Format("2006-01-02 15:04:05"),
		Signal:         outlook.Signal,
		Interpretation: outlook.Interpretation,
	}
	if json.Valid(outlook.Raw) {
		record.Raw = outlook.Raw
	}
	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%d.json", j.runName, time.Now().UnixNano())
	return os.WriteFile(filepath.Join(dir, name), b, 0o644)
}

// Sync flushes buffered entries. Call before process exit.
func (j *Journal) Sync() {
	if j == nil {
		return
	}
	_ = j.log.Sync()
}
