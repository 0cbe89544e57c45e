// Package journal 把每轮决策的结果写入 SQLite，供 HTTP 查询与事后复盘。
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoRuns 表示日志中还没有任何一轮记录。
var ErrNoRuns = errors.New("journal: no runs recorded")

// Run 描述一轮完整的决策周期。
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Funds      int       `json:"funds"`
	Failures   int       `json:"failures"`
	Summary    string    `json:"summary"`
}

// Entry 是单个标的在一轮中的决策记录。
type Entry struct {
	ID                 int64    `json:"id"`
	RunID              string   `json:"run_id"`
	Code               string   `json:"code"`
	Name               string   `json:"name"`
	Action             string   `json:"action"`
	BuyAmount          int64    `json:"buy_amount"`
	SellValue          float64  `json:"sell_value"`
	Price              float64  `json:"price"`
	Score              int      `json:"score"`
	Tier               string   `json:"tier"`
	Risk               string   `json:"risk"`
	AdvisoryDecision   string   `json:"advisory_decision"`
	AdvisoryAdjustment int      `json:"advisory_adjustment"`
	Valuation          string   `json:"valuation"`
	Reasons            []string `json:"reasons,omitempty"`
	Conclusion         string   `json:"conclusion,omitempty"`
	Error              string   `json:"error,omitempty"`
}

// Journal 基于 modernc sqlite 的决策日志。
type Journal struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open 打开（必要时创建）日志库。
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			funds INTEGER NOT NULL DEFAULT 0,
			failures INTEGER NOT NULL DEFAULT 0,
			summary TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			code TEXT NOT NULL,
			name TEXT,
			action TEXT NOT NULL,
			buy_amount INTEGER NOT NULL DEFAULT 0,
			sell_value REAL NOT NULL DEFAULT 0,
			price REAL NOT NULL DEFAULT 0,
			score INTEGER NOT NULL DEFAULT 0,
			tier TEXT,
			risk TEXT,
			advisory_decision TEXT,
			advisory_adjustment INTEGER NOT NULL DEFAULT 0,
			valuation TEXT,
			reasons_json TEXT,
			conclusion TEXT,
			error TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_code ON decisions(code, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
	}
	return nil
}

func (j *Journal) conn() (*sql.DB, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, fmt.Errorf("journal 未初始化")
	}
	return j.db, nil
}

// Record 在一个事务里写入 run 及其全部决策。
func (j *Journal) Record(ctx context.Context, run Run, entries []Entry) error {
	db, err := j.conn()
	if err != nil {
		return err
	}
	if run.ID == "" {
		return fmt.Errorf("journal: run id 不能为空")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, funds, failures, summary) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.Funds, run.Failures, run.Summary); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO decisions
		(run_id, code, name, action, buy_amount, sell_value, price, score, tier, risk,
		 advisory_decision, advisory_adjustment, valuation, reasons_json, conclusion, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		reasons, _ := json.Marshal(e.Reasons)
		if _, err := stmt.ExecContext(ctx, run.ID, e.Code, e.Name, e.Action, e.BuyAmount, e.SellValue, e.Price,
			e.Score, e.Tier, e.Risk, e.AdvisoryDecision, e.AdvisoryAdjustment, e.Valuation,
			string(reasons), e.Conclusion, e.Error); err != nil {
			return fmt.Errorf("insert decision %s: %w", e.Code, err)
		}
	}
	return tx.Commit()
}

// LatestRun 返回最近一轮及其决策（按写入顺序）。
func (j *Journal) LatestRun(ctx context.Context) (Run, []Entry, error) {
	db, err := j.conn()
	if err != nil {
		return Run{}, nil, err
	}
	var (
		run               Run
		started, finished int64
		summary           sql.NullString
	)
	err = db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, funds, failures, summary FROM runs ORDER BY started_at DESC LIMIT 1`).
		Scan(&run.ID, &started, &finished, &run.Funds, &run.Failures, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, nil, ErrNoRuns
	}
	if err != nil {
		return Run{}, nil, err
	}
	run.StartedAt = time.UnixMilli(started)
	run.FinishedAt = time.UnixMilli(finished)
	run.Summary = summary.String
	entries, err := j.query(ctx, `WHERE run_id = ? ORDER BY id ASC`, run.ID)
	if err != nil {
		return Run{}, nil, err
	}
	return run, entries, nil
}

// History 返回某标的最近 limit 条决策，最新在前。
func (j *Journal) History(ctx context.Context, code string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 30
	}
	return j.query(ctx, `WHERE code = ? ORDER BY id DESC LIMIT ?`, code, limit)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (j *Journal) query(ctx context.Context, tail string, args ...interface{}) ([]Entry, error) {
	db, err := j.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT id, run_id, code, name, action, buy_amount, sell_value, price,
		score, tier, risk, advisory_decision, advisory_adjustment, valuation, reasons_json, conclusion, error
		FROM decisions `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func scanEntry(scanner rowScanner) (Entry, error) {
	var (
		e                                     Entry
		name, tier, risk, advisory, valuation sql.NullString
		reasons, conclusion, errStr           sql.NullString
	)
	if err := scanner.Scan(&e.ID, &e.RunID, &e.Code, &name, &e.Action, &e.BuyAmount, &e.SellValue, &e.Price,
		&e.Score, &tier, &risk, &advisory, &e.AdvisoryAdjustment, &valuation, &reasons, &conclusion, &errStr); err != nil {
		return e, err
	}
	e.Name = name.String
	e.Tier = tier.String
	e.Risk = risk.String
	e.AdvisoryDecision = advisory.String
	e.Valuation = valuation.String
	e.Conclusion = conclusion.String
	e.Error = errStr.String
	if reasons.String != "" && reasons.String != "null" {
		_ = json.Unmarshal([]byte(reasons.String), &e.Reasons)
	}
	return e, nil
}

// Close 关闭底层 DB。
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}
