package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	constant "github.com/pixbridge/bridge-scheduler/pkg/const"
	redis2 "github.com/pixbridge/bridge-scheduler/pkg/redis"
)

const (
	lastKeyPrefix    = "job:last"
	historyKeyPrefix = "job:history"

	lastTTL      = 72 * time.Hour
	historyLimit = 100
)

type Execution struct {
	Job        string            `json:"job"`
	Success    bool              `json:"success"`
	Metrics    map[string]string `json:"metrics,omitempty"`
	Error      string            `json:"error,omitempty"`
	ExecutedAt time.Time         `json:"executed_at"`
}

type Tracker struct{}

func NewTracker() *Tracker {
	return &Tracker{}
}

func lastKey(job string) string {
	return fmt.Sprintf("%v:%v", lastKeyPrefix, job)
}

func historyKey(job string) string {
	return fmt.Sprintf("%v:%v", historyKeyPrefix, job)
}

func (t *Tracker) Record(ctx context.Context, exec *Execution) error {
	cli, err := redis2.GetClient()
	if err != nil {
		return err
	}
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = time.Now()
	}

	body, err := json.Marshal(exec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, constant.RedisTimeout)
	defer cancel()

	if err := cli.Set(ctx, lastKey(exec.Job), body, lastTTL).Err(); err != nil {
		return err
	}
	if err := cli.LPush(ctx, historyKey(exec.Job), body).Err(); err != nil {
		return err
	}
	return cli.LTrim(ctx, historyKey(exec.Job), 0, historyLimit-1).Err()
}

func (t *Tracker) Last(ctx context.Context, job string) (*Execution, error) {
	cli, err := redis2.GetClient()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, constant.RedisTimeout)
	defer cancel()

	val, err := cli.Get(ctx, lastKey(job)).Result()
	if err != nil {
		if redis2.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}

	exec := &Execution{}
	if err := json.Unmarshal([]byte(val), exec); err != nil {
		return nil, err
	}
	return exec, nil
}

func (t *Tracker) History(ctx context.Context, job string, limit int64) ([]*Execution, error) {
	cli, err := redis2.GetClient()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}

	ctx, cancel := context.WithTimeout(ctx, constant.RedisTimeout)
	defer cancel()

	vals, err := cli.LRange(ctx, historyKey(job), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	execs := []*Execution{}
	for _, val := range vals {
		exec := &Execution{}
		if err := json.Unmarshal([]byte(val), exec); err != nil {
			continue
		}
		execs = append(execs, exec)
	}
	return execs, nil
}

func (t *Tracker) EverFailed(ctx context.Context, job string) (bool, error) {
	execs, err := t.History(ctx, job, historyLimit)
	if err != nil {
		return false, err
	}
	for _, exec := range execs {
		if !exec.Success {
			return true, nil
		}
	}
	return false, nil
}

// Prune re-trims every history list. LTrim on write already bounds growth;
// this is a safety net for lists written by older versions.
func (t *Tracker) Prune(ctx context.Context) error {
	cli, err := redis2.GetClient()
	if err != nil {
		return err
	}

	iter := cli.Scan(ctx, 0, historyKeyPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := cli.LTrim(ctx, iter.Val(), 0, historyLimit-1).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
