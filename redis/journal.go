package redis

import (
	"encoding/json"
	"sync"
	"time"

	"gonuorbit/types"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// flow run logs expire after a week
const runLogTTL = 7 * 24 * time.Hour

// EventRecord is the persisted form of one flow event.
type EventRecord struct {
	Type      types.FlowEventType `json:"type"`
	RunID     string              `json:"runId"`
	Timestamp time.Time           `json:"timestamp"`
	Mode      types.FlowMode      `json:"flowMode,omitempty"`
	SessionID string              `json:"sessionId,omitempty"`
	Status    string              `json:"status,omitempty"`
	TxHash    string              `json:"txHash,omitempty"`
	Error     string              `json:"error,omitempty"`
}

func newEventRecord(evt types.FlowEvent) EventRecord {
	rec := EventRecord{
		Type:      evt.Type,
		RunID:     evt.RunID,
		Timestamp: evt.Timestamp,
		Mode:      evt.Mode,
		TxHash:    evt.TxHash,
	}
	if evt.Session != nil {
		rec.SessionID = evt.Session.SessionID
		rec.Status = string(evt.Session.Status)
		if rec.Mode == "" {
			rec.Mode = evt.Session.FlowMode
		}
	}
	if evt.Err != nil {
		rec.Error = evt.Err.Error()
	}
	return rec
}

func AppendEvent(evt types.FlowEvent) error {
	if evt.RunID == "" {
		return errors.New("flow event without run id")
	}
	recJSON, err := json.Marshal(newEventRecord(evt))
	if err != nil {
		return errors.Wrap(err, "cannot marshal flow event to JSON")
	}

	conn := pool.Get()
	defer conn.Close()

	key := runKey(evt.RunID)
	if _, err := conn.Do("RPUSH", key, recJSON); err != nil {
		log.Error().Err(err).Msg("error Redis RPUSH")
		return err
	}
	if _, err := conn.Do("EXPIRE", key, int64(runLogTTL/time.Second)); err != nil {
		log.Error().Err(err).Msg("error Redis EXPIRE")
		return err
	}
	return nil
}

// GetRunEvents returns the events of one flow run in emission order.
func GetRunEvents(runID string) ([]EventRecord, error) {
	conn := pool.Get()
	defer conn.Close()

	values, err := redis.ByteSlices(conn.Do("LRANGE", runKey(runID), 0, -1))
	if err != nil {
		return nil, err
	}
	res := make([]EventRecord, 0, len(values))
	for _, raw := range values {
		var rec EventRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, nil
}

// Journal is a flow event sink persisting every event and the latest session
// snapshot of each run. Storage failures are logged and never reach the flow.
type Journal struct {
	mu sync.Mutex
	// last stored status per session id
	stored map[string]string
}

func NewJournal() *Journal {
	return &Journal{stored: map[string]string{}}
}

func (j *Journal) Emit(evt types.FlowEvent) {
	if err := AppendEvent(evt); err != nil {
		log.Warn().Err(err).Str("runId", evt.RunID).Str("event", string(evt.Type)).Msg("Journal could not append event")
	}

	if evt.Session == nil || evt.Session.SessionID == "" {
		return
	}
	rec := &SessionRecord{
		SessionID: evt.Session.SessionID,
		RunID:     evt.RunID,
		Mode:      evt.Session.FlowMode,
		Session:   evt.Session,
		UpdatedAt: evt.Timestamp,
	}
	status := string(evt.Session.Status)

	j.mu.Lock()
	prev, known := j.stored[rec.SessionID]
	j.mu.Unlock()

	var err error
	if known && prev != status {
		err = ChangeSessionStatus(rec, prev)
	} else {
		err = UpsertSession(rec)
	}
	if err != nil {
		log.Warn().Err(err).Str("session", rec.SessionID).Str("status", status).Msg("Journal could not store session")
		return
	}

	j.mu.Lock()
	j.stored[rec.SessionID] = status
	if evt.Type.Terminal() {
		delete(j.stored, rec.SessionID)
	}
	j.mu.Unlock()
}
