package data

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/fraudscore/pkg/model"
)

const (
	insertScore = `INSERT INTO score (
		id, scored_at, amount, high_risk_country, hour, day_of_week, is_mobile,
		transaction_type, probability, status, fraud, model, checksum, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectScores = `SELECT id, scored_at, amount, high_risk_country, hour, day_of_week,
		is_mobile, transaction_type, probability, status, fraud, model, checksum, error
		FROM score ORDER BY scored_at DESC, rowid DESC LIMIT ?`

	timeFormat = time.RFC3339Nano
)

// ScoreRecord is one scoring invocation.
type ScoreRecord struct {
	ID          string         `json:"id" yaml:"id"`
	ScoredAt    time.Time      `json:"scored_at" yaml:"scored_at"`
	Features    model.Features `json:"features" yaml:"features"`
	Probability float64        `json:"probability" yaml:"probability"`
	Status      string         `json:"status" yaml:"status"`
	Fraud       bool           `json:"fraud" yaml:"fraud"`
	Model       string         `json:"model" yaml:"model"`
	Checksum    string         `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// SaveScore inserts r, assigning an ID and timestamp when missing.
func SaveScore(db *sql.DB, r *ScoreRecord) error {
	if db == nil {
		return errDBNotInitialized
	}
	if r == nil {
		return fmt.Errorf("score record required")
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ScoredAt.IsZero() {
		r.ScoredAt = time.Now().UTC()
	}

	fv := r.Features
	_, err := db.Exec(insertScore,
		r.ID,
		r.ScoredAt.Format(timeFormat),
		fv[model.Amount],
		fv[model.HighRiskCountry],
		fv[model.Hour],
		fv[model.DayOfWeek],
		fv[model.IsMobile],
		fv[model.TransactionType],
		r.Probability,
		r.Status,
		r.Fraud,
		r.Model,
		nullable(r.Checksum),
		nullable(r.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert score %s: %w", r.ID, err)
	}

	return nil
}

// ListScores returns up to limit records, newest first.
func ListScores(db *sql.DB, limit int) ([]*ScoreRecord, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectScores, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	list := make([]*ScoreRecord, 0)
	for rows.Next() {
		var (
			r        ScoreRecord
			scoredAt string
			fv       [model.FeatureCount]sql.NullFloat64
			checksum sql.NullString
			errText  sql.NullString
		)
		if err := rows.Scan(&r.ID, &scoredAt,
			&fv[0], &fv[1], &fv[2], &fv[3], &fv[4], &fv[5],
			&r.Probability, &r.Status, &r.Fraud, &r.Model, &checksum, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}

		r.ScoredAt, err = time.Parse(timeFormat, scoredAt)
		if err != nil {
			return nil, fmt.Errorf("invalid scored_at %q: %w", scoredAt, err)
		}
		for i, v := range fv {
			r.Features[i] = v.Float64
		}
		r.Checksum = checksum.String
		r.Error = errText.String
		list = append(list, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate score rows: %w", err)
	}

	return list, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
