// Package export writes model inputs to a SQLite file for the inference engine
// and reads the learned posteriors back.
package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dotnet/mbmlbook-sub000/internal/dataset"
	"github.com/dotnet/mbmlbook-sub000/internal/features"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var (
	// ErrRunNotFound is returned when no run exists for a run ID.
	ErrRunNotFound = errors.New("run not found")
	// ErrNoPosteriors is returned when a run exists but nothing was learned for it yet.
	ErrNoPosteriors = errors.New("no posteriors stored for run")
	// ErrBucketMismatch is returned when a run's stored buckets differ from the feature set
	// parameters are read against, for example after the sender ranking changed.
	ErrBucketMismatch = errors.New("feature set buckets do not match run")
)

const (
	kindWeight          = "weight"
	kindWeightMean      = "weight_mean"
	kindWeightPrecision = "weight_precision"
	kindThreshold       = "threshold"
	kindNoise           = "noise"

	layoutPersonal = "personal"
	layoutShared   = "shared"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		user_name      TEXT NOT NULL,
		feature_set    TEXT NOT NULL,
		include_shared BOOLEAN NOT NULL,
		created_at     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS buckets (
		run_id       TEXT NOT NULL,
		position     INTEGER NOT NULL,
		feature      TEXT NOT NULL,
		bucket_index INTEGER NOT NULL,
		name         TEXT NOT NULL,
		shared       BOOLEAN NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS instances (
		run_id      TEXT NOT NULL,
		dataset     TEXT NOT NULL,
		position    INTEGER NOT NULL,
		message_id  INTEGER NOT NULL,
		label       BOOLEAN NOT NULL,
		fingerprint TEXT NOT NULL,
		PRIMARY KEY (run_id, dataset, position)
	)`,
	`CREATE TABLE IF NOT EXISTS sparse_values (
		run_id   TEXT NOT NULL,
		dataset  TEXT NOT NULL,
		instance INTEGER NOT NULL,
		layout   TEXT NOT NULL,
		bucket   INTEGER NOT NULL,
		value    REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sparse_values_run ON sparse_values(run_id, dataset, layout, instance)`,
	`CREATE TABLE IF NOT EXISTS priors (
		run_id   TEXT NOT NULL,
		kind     TEXT NOT NULL,
		bucket   INTEGER NOT NULL,
		mean     REAL NOT NULL,
		variance REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posteriors (
		run_id   TEXT NOT NULL,
		kind     TEXT NOT NULL,
		bucket   INTEGER NOT NULL,
		mean     REAL NOT NULL,
		variance REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS community_priors (
		run_id   TEXT NOT NULL,
		kind     TEXT NOT NULL,
		bucket   INTEGER NOT NULL,
		mean     REAL NOT NULL,
		variance REAL NOT NULL,
		shape    REAL NOT NULL,
		rate     REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS community_posteriors (
		run_id   TEXT NOT NULL,
		kind     TEXT NOT NULL,
		bucket   INTEGER NOT NULL,
		mean     REAL NOT NULL,
		variance REAL NOT NULL,
		shape    REAL NOT NULL,
		rate     REAL NOT NULL
	)`,
}

// RunInputs is everything exported for one run.
type RunInputs struct {
	UserName        string
	Inputs          *dataset.Inputs
	Priors          *dataset.Priors
	CommunityPriors *dataset.CommunityPriors
	IncludeShared   bool
}

// Run describes one exported set of inputs.
type Run struct {
	ID            string
	UserName      string
	FeatureSet    string
	IncludeShared bool
	CreatedAt     time.Time
}

// Store is a SQLite hand-off file.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens or creates the SQLite file at path and ensures the schema exists.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteInputs stores the three data sets with the personal and community priors under a
// new run ID. Bucket numbers in every table are positions in the feature set's bucket list.
func (s *Store) WriteInputs(ctx context.Context, run RunInputs) (string, error) {
	runID := uuid.NewString()
	in := run.Inputs
	fs := in.FeatureSet

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, user_name, feature_set, include_shared, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, runID, run.UserName, fs.Name(), run.IncludeShared, s.now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		if err := writeBuckets(ctx, tx, runID, fs); err != nil {
			return err
		}
		for _, ds := range in.DataSets() {
			if err := writeDataSet(ctx, tx, runID, ds); err != nil {
				return err
			}
		}
		if p := run.Priors; p != nil {
			if err := writeParameters(ctx, tx, "priors", runID, fs, p.Weights, p.Threshold, p.NoiseVariance); err != nil {
				return err
			}
		}
		if cp := run.CommunityPriors; cp != nil {
			if err := writeCommunityParameters(ctx, tx, "community_priors", runID, fs, cp.WeightMeans, cp.WeightPrecisions, cp.Threshold, cp.NoiseVariance); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("Exported inputs",
		zap.String("run_id", runID),
		zap.String("feature_set", fs.Name()),
		zap.Int("buckets", fs.Len()),
		zap.Int("train", in.Train.Count()),
		zap.Int("validation", in.Validation.Count()),
		zap.Int("test", in.Test.Count()),
		zap.Bool("community_priors", run.CommunityPriors != nil))
	return runID, nil
}

// GetRun returns the metadata of a run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_name, feature_set, include_shared, created_at
		FROM runs
		WHERE id = ?
	`, runID).Scan(&run.ID, &run.UserName, &run.FeatureSet, &run.IncludeShared, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &run, nil
}

// WritePosteriors stores learned parameters for a run, replacing earlier ones.
func (s *Store) WritePosteriors(ctx context.Context, runID string, fs *features.FeatureSet, post *dataset.Posteriors) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM posteriors WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("failed to clear posteriors: %w", err)
		}
		return writeParameters(ctx, tx, "posteriors", runID, fs, post.Weights, post.Threshold, post.NoiseVariance)
	})
}

// ReadPosteriors loads the posteriors of a run. fs must have the buckets the run was
// exported with, otherwise ErrBucketMismatch is returned.
func (s *Store) ReadPosteriors(ctx context.Context, runID string, fs *features.FeatureSet) (*dataset.Posteriors, error) {
	if err := s.checkBuckets(ctx, runID, fs); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, bucket, mean, variance
		FROM posteriors
		WHERE run_id = ?
		ORDER BY kind, bucket
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query posteriors: %w", err)
	}
	defer rows.Close()

	buckets := fs.Buckets()
	post := &dataset.Posteriors{Weights: make(map[features.Bucket]dataset.Gaussian)}
	found := false
	for rows.Next() {
		var kind string
		var position int
		var g dataset.Gaussian
		if err := rows.Scan(&kind, &position, &g.Mean, &g.Variance); err != nil {
			return nil, fmt.Errorf("failed to scan posterior: %w", err)
		}
		found = true

		switch kind {
		case kindWeight:
			if position < 0 || position >= len(buckets) {
				s.logger.Warn("Ignoring posterior for unknown bucket", zap.String("run_id", runID), zap.Int("bucket", position))
				continue
			}
			post.Weights[buckets[position]] = g
		case kindThreshold:
			post.Threshold = g
		case kindNoise:
			post.NoiseVariance = g.Mean
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posteriors: %w", err)
	}
	if !found {
		return nil, ErrNoPosteriors
	}
	return post, nil
}

// WriteCommunityPosteriors stores learned community parameters for a run, replacing earlier ones.
func (s *Store) WriteCommunityPosteriors(ctx context.Context, runID string, fs *features.FeatureSet, post *dataset.CommunityPosteriors) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM community_posteriors WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("failed to clear community posteriors: %w", err)
		}
		return writeCommunityParameters(ctx, tx, "community_posteriors", runID, fs, post.WeightMeans, post.WeightPrecisions, post.Threshold, post.NoiseVariance)
	})
}

// ReadCommunityPosteriors loads the community posteriors of a run, checking buckets like ReadPosteriors.
func (s *Store) ReadCommunityPosteriors(ctx context.Context, runID string, fs *features.FeatureSet) (*dataset.CommunityPosteriors, error) {
	if err := s.checkBuckets(ctx, runID, fs); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, bucket, mean, variance, shape, rate
		FROM community_posteriors
		WHERE run_id = ?
		ORDER BY kind, bucket
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query community posteriors: %w", err)
	}
	defer rows.Close()

	buckets := fs.Buckets()
	post := &dataset.CommunityPosteriors{
		WeightMeans:      make(map[features.Bucket]dataset.Gaussian),
		WeightPrecisions: make(map[features.Bucket]dataset.Gamma),
	}
	found := false
	for rows.Next() {
		var kind string
		var position int
		var g dataset.Gaussian
		var gamma dataset.Gamma
		if err := rows.Scan(&kind, &position, &g.Mean, &g.Variance, &gamma.Shape, &gamma.Rate); err != nil {
			return nil, fmt.Errorf("failed to scan community posterior: %w", err)
		}
		found = true

		switch kind {
		case kindWeightMean, kindWeightPrecision:
			if position < 0 || position >= len(buckets) {
				s.logger.Warn("Ignoring community posterior for unknown bucket", zap.String("run_id", runID), zap.Int("bucket", position))
				continue
			}
			if kind == kindWeightMean {
				post.WeightMeans[buckets[position]] = g
			} else {
				post.WeightPrecisions[buckets[position]] = gamma
			}
		case kindThreshold:
			post.Threshold = g
		case kindNoise:
			post.NoiseVariance = g.Mean
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating community posteriors: %w", err)
	}
	if !found {
		return nil, ErrNoPosteriors
	}
	return post, nil
}

// checkBuckets compares the buckets stored for a run with fs, position by position.
func (s *Store) checkBuckets(ctx context.Context, runID string, fs *features.FeatureSet) error {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT position, feature, bucket_index, name
		FROM buckets
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return fmt.Errorf("failed to query buckets: %w", err)
	}
	defer rows.Close()

	want := fs.Buckets()
	n := 0
	for rows.Next() {
		var position, index int
		var feature, name string
		if err := rows.Scan(&position, &feature, &index, &name); err != nil {
			return fmt.Errorf("failed to scan bucket: %w", err)
		}
		if position >= len(want) {
			return fmt.Errorf("%w: run %s has more than %d buckets", ErrBucketMismatch, runID, len(want))
		}
		b := want[position]
		if b.Feature.String() != feature || b.Index != index || b.Name != name {
			return fmt.Errorf("%w: bucket %d is %s[%s] in run %s, %s in feature set %s",
				ErrBucketMismatch, position, feature, name, runID, b, fs.Name())
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating buckets: %w", err)
	}
	if n != len(want) {
		return fmt.Errorf("%w: run %s has %d buckets, feature set %s has %d", ErrBucketMismatch, runID, n, fs.Name(), len(want))
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func writeBuckets(ctx context.Context, tx *sql.Tx, runID string, fs *features.FeatureSet) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO buckets (run_id, position, feature, bucket_index, name, shared)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare bucket insert: %w", err)
	}
	defer stmt.Close()

	for pos, b := range fs.Buckets() {
		shared := false
		if f, ok := fs.Feature(b.Feature); ok {
			shared = f.Shared()
		}
		if _, err := stmt.ExecContext(ctx, runID, pos, b.Feature.String(), b.Index, b.Name, shared); err != nil {
			return fmt.Errorf("failed to insert bucket %s: %w", b, err)
		}
	}
	return nil
}

func writeDataSet(ctx context.Context, tx *sql.Tx, runID string, ds *dataset.DataSet) error {
	instStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO instances (run_id, dataset, position, message_id, label, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare instance insert: %w", err)
	}
	defer instStmt.Close()

	for pos, inst := range ds.Instances {
		fp := strconv.FormatUint(inst.Fingerprint(), 16)
		if _, err := instStmt.ExecContext(ctx, runID, ds.Name, pos, int(inst.Message), inst.Label, fp); err != nil {
			return fmt.Errorf("failed to insert instance: %w", err)
		}
	}

	valStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sparse_values (run_id, dataset, instance, layout, bucket, value)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare value insert: %w", err)
	}
	defer valStmt.Close()

	layouts := []struct {
		name   string
		sparse *dataset.Sparse
	}{
		{layoutPersonal, ds.PersonalSparse()},
		{layoutShared, ds.SharedSparse()},
	}
	for _, l := range layouts {
		for i := range l.sparse.Indices {
			for j, bucket := range l.sparse.Indices[i] {
				if _, err := valStmt.ExecContext(ctx, runID, ds.Name, i, l.name, bucket, l.sparse.Values[i][j]); err != nil {
					return fmt.Errorf("failed to insert %s value: %w", l.name, err)
				}
			}
		}
	}
	return nil
}

func writeParameters(ctx context.Context, tx *sql.Tx, table, runID string, fs *features.FeatureSet, weights map[features.Bucket]dataset.Gaussian, threshold dataset.Gaussian, noise float64) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+` (run_id, kind, bucket, mean, variance) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for b, g := range weights {
		pos, ok := fs.IndexOf(b)
		if !ok {
			return fmt.Errorf("bucket %s is not part of feature set %s", b, fs.Name())
		}
		if _, err := stmt.ExecContext(ctx, runID, kindWeight, pos, g.Mean, g.Variance); err != nil {
			return fmt.Errorf("failed to insert weight: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx, runID, kindThreshold, -1, threshold.Mean, threshold.Variance); err != nil {
		return fmt.Errorf("failed to insert threshold: %w", err)
	}
	if _, err := stmt.ExecContext(ctx, runID, kindNoise, -1, noise, 0); err != nil {
		return fmt.Errorf("failed to insert noise: %w", err)
	}
	return nil
}

func writeCommunityParameters(ctx context.Context, tx *sql.Tx, table, runID string, fs *features.FeatureSet, means map[features.Bucket]dataset.Gaussian, precisions map[features.Bucket]dataset.Gamma, threshold dataset.Gaussian, noise float64) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+` (run_id, kind, bucket, mean, variance, shape, rate) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for b, g := range means {
		pos, ok := fs.IndexOf(b)
		if !ok {
			return fmt.Errorf("bucket %s is not part of feature set %s", b, fs.Name())
		}
		if _, err := stmt.ExecContext(ctx, runID, kindWeightMean, pos, g.Mean, g.Variance, 0, 0); err != nil {
			return fmt.Errorf("failed to insert weight mean: %w", err)
		}
	}
	for b, g := range precisions {
		pos, ok := fs.IndexOf(b)
		if !ok {
			return fmt.Errorf("bucket %s is not part of feature set %s", b, fs.Name())
		}
		if _, err := stmt.ExecContext(ctx, runID, kindWeightPrecision, pos, 0, 0, g.Shape, g.Rate); err != nil {
			return fmt.Errorf("failed to insert weight precision: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx, runID, kindThreshold, -1, threshold.Mean, threshold.Variance, 0, 0); err != nil {
		return fmt.Errorf("failed to insert threshold: %w", err)
	}
	if _, err := stmt.ExecContext(ctx, runID, kindNoise, -1, noise, 0, 0, 0); err != nil {
		return fmt.Errorf("failed to insert noise: %w", err)
	}
	return nil
}
