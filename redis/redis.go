package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"gonuorbit/config"
	"gonuorbit/types"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var pool *redis.Pool

var ErrUnknownStatus = errors.New("redis key not found for status")

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

func Init(host string, port int) {
	redisAddr := fmt.Sprintf("%s:%d", host, port)
	pool = &redis.Pool{
		MaxIdle: 5,
		Dial:    func() (redis.Conn, error) { return redis.Dial("tcp", redisAddr, timeoutDialOptions()...) },
	}
}

func Ping() error {
	conn := pool.Get()
	defer conn.Close()
	_, err := conn.Do("PING")
	return err
}

// SessionRecord is the last known snapshot of a remote session, kept in the
// status set matching its status.
type SessionRecord struct {
	SessionID string         `json:"sessionId"`
	RunID     string         `json:"runId"`
	Mode      types.FlowMode `json:"flowMode"`
	Session   *types.Session `json:"session"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (rec *SessionRecord) status() string {
	if rec.Session == nil {
		return ""
	}
	return string(rec.Session.Status)
}

func sessionKey(status, sessionID string) string {
	return fmt.Sprintf("session:%s:%s", status, sessionID)
}

func runKey(runID string) string {
	return fmt.Sprintf("flowrun:%s", runID)
}

func validate(rec *SessionRecord) error {
	if rec == nil || rec.Session == nil {
		return errors.New("null object to store")
	}
	if rec.SessionID == "" {
		return errors.New("session record cannot have empty id")
	}
	if _, ok := config.RedisStatusSets[rec.status()]; !ok {
		return errors.Wrapf(ErrUnknownStatus, "%q", rec.status())
	}
	return nil
}

// note that multiple sets should not contain one session
func UpsertSession(rec *SessionRecord) error {
	if err := validate(rec); err != nil {
		return err
	}

	conn := pool.Get()
	defer conn.Close()

	recordKey := sessionKey(rec.status(), rec.SessionID)
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "cannot marshal session record to JSON")
	}

	if _, err = conn.Do("SET", recordKey, recJSON); err != nil {
		log.Error().Err(err).Msg("error Redis SET")
		return err
	}

	// also add the key to the corresponding SET
	if _, err = conn.Do("SADD", config.RedisStatusSets[rec.status()], recordKey); err != nil {
		log.Error().Err(err).Msg("error Redis SADD")
		return err
	}
	return nil
}

// ChangeSessionStatus moves the record from the prevStatus set to the set of
// its current status.
func ChangeSessionStatus(rec *SessionRecord, prevStatus string) error {
	if err := validate(rec); err != nil {
		return err
	}
	prevSet, ok := config.RedisStatusSets[prevStatus]
	if !ok {
		return errors.Wrapf(ErrUnknownStatus, "%q", prevStatus)
	}

	conn := pool.Get()
	defer conn.Close()

	prevRecordKey := sessionKey(prevStatus, rec.SessionID)
	recordKey := sessionKey(rec.status(), rec.SessionID)

	recJSON, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "cannot marshal session record to JSON")
	}

	if err := conn.Send("MULTI"); err != nil {
		return err
	}
	_ = conn.Send("SREM", prevSet, prevRecordKey)
	_ = conn.Send("DEL", prevRecordKey)
	_ = conn.Send("SET", recordKey, recJSON)
	_ = conn.Send("SADD", config.RedisStatusSets[rec.status()], recordKey)
	if _, err := conn.Do("EXEC"); err != nil {
		log.Error().Err(err).Str("session", rec.SessionID).Msg("error Redis status move")
		return err
	}
	return nil
}

func FindSessionsByStatus(status string) ([]*SessionRecord, error) {
	set, ok := config.RedisStatusSets[status]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownStatus, "%q", status)
	}

	conn := pool.Get()
	defer conn.Close()

	recs := make([]*SessionRecord, 0)

	// scan every session present in the set
	var cursor int64
	for {
		values, err := redis.Values(conn.Do("SSCAN", set, cursor))
		if err != nil {
			return nil, err
		}

		var keys []string
		if _, err = redis.Scan(values, &cursor, &keys); err != nil {
			return nil, err
		}

		for _, key := range keys {
			raw, err := redis.Bytes(conn.Do("GET", key))
			if errors.Is(err, redis.ErrNil) {
				// set member outlived its record
				continue
			}
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("error Redis GET")
				return nil, err
			}

			var rec SessionRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Skipping unreadable session record")
				continue
			}
			if rec.status() == status {
				recs = append(recs, &rec)
			}
		}

		if cursor == 0 {
			break
		}
	}
	return recs, nil
}

// GetSession looks the session up in every status set, nil when unknown.
func GetSession(sessionID string) (*SessionRecord, error) {
	if sessionID == "" {
		return nil, errors.New("empty session id")
	}

	conn := pool.Get()
	defer conn.Close()

	for _, status := range types.SessionStatuses {
		raw, err := redis.Bytes(conn.Do("GET", sessionKey(string(status), sessionID)))
		if errors.Is(err, redis.ErrNil) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Msg("error Redis GET")
			return nil, err
		}
		var rec SessionRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		return &rec, nil
	}
	return nil, nil
}

// CountSessionsByStatus returns the size of every status set.
func CountSessionsByStatus() (map[string]int, error) {
	conn := pool.Get()
	defer conn.Close()

	res := make(map[string]int, len(config.RedisStatusSets))
	for status, set := range config.RedisStatusSets {
		n, err := redis.Int(conn.Do("SCARD", set))
		if err != nil {
			log.Error().Err(err).Str("set", set).Msg("error Redis SCARD")
			return nil, err
		}
		res[status] = n
	}
	return res, nil
}
