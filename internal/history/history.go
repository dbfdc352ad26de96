// Package history keeps a per-user record of finished analyses.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

// CollectionName is where records live in the document database.
const CollectionName = "analysisHistory"

// ErrNoUser is returned when listing without a user id.
var ErrNoUser = errors.New("history requires a user id")

// Record is one finished analysis.
type Record struct {
	UID       string          `json:"uid"`
	JobID     string          `json:"jobId"`
	FileName  string          `json:"fileName,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store persists records.
type Store interface {
	Save(ctx context.Context, r Record) error
	// List returns the user's records, newest first. limit <= 0 means all.
	List(ctx context.Context, uid string, limit int) ([]Record, error)
	Close(ctx context.Context) error
}

// Recorder saves results for one user. Anonymous users get no history and
// failures are logged, never returned.
type Recorder struct {
	Store  Store
	UID    string
	Logger *zap.Logger
	Now    func() time.Time
}

// Record saves the result of jobID. It reports whether a record was written.
func (r *Recorder) Record(ctx context.Context, jobID, fileName string, result json.RawMessage) bool {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if r.UID == "" || r.Store == nil {
		logger.Debug("No user configured, history not saved", zap.String("job_id", jobID))
		return false
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	rec := Record{
		UID:       r.UID,
		JobID:     jobID,
		FileName:  fileName,
		Result:    result,
		CreatedAt: now().UTC(),
	}
	if err := r.Store.Save(ctx, rec); err != nil {
		logger.Warn("History save failed", zap.String("job_id", jobID), zap.Error(err))
		return false
	}
	logger.Info("History saved", zap.String("job_id", jobID), zap.String("uid", r.UID))
	return true
}
