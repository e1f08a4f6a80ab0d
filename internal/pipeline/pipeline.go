// Package pipeline turns a stored mailbox into exported model inputs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dotnet/mbmlbook-sub000/internal/config"
	"github.com/dotnet/mbmlbook-sub000/internal/dataset"
	"github.com/dotnet/mbmlbook-sub000/internal/db"
	"github.com/dotnet/mbmlbook-sub000/internal/export"
	"github.com/dotnet/mbmlbook-sub000/internal/imap"
	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
	"github.com/dotnet/mbmlbook-sub000/internal/threading"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Result is what one run produced.
type Result struct {
	RunID           string
	User            *dataset.User
	Inputs          *dataset.Inputs
	Priors          *dataset.Priors
	CommunityPriors *dataset.CommunityPriors
}

// Pipeline loads a user's mailbox, builds the inputs and exports them.
type Pipeline struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func New(cfg *config.Config, logger *zap.Logger, pool *pgxpool.Pool) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger, pool: pool}
}

// Run imports from IMAP when a host is configured, then loads the mailbox from Postgres,
// prepares the inputs and writes them to the export file.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	user, err := db.GetOrCreateUser(ctx, p.pool, p.cfg.MailboxOwner, p.cfg.UserName)
	if err != nil {
		return nil, err
	}

	if p.cfg.IMAPServerHost != "" {
		if err := p.importIMAP(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	mb, err := db.LoadMailbox(ctx, p.pool, user, p.cfg.MergeConfidence)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Loaded mailbox",
		zap.String("user", p.cfg.UserName),
		zap.Int("messages", mb.MessageCount()),
		zap.Int("conversations", len(mb.Conversations())),
		zap.Int("people", len(mb.Directory().People())),
		zap.Int("folders", len(mb.Folders())))

	res, err := Prepare(mb, p.cfg, p.logger)
	if err != nil {
		return nil, err
	}

	store, err := export.Open(p.cfg.ExportPath, p.logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	res.RunID, err = store.WriteInputs(ctx, export.RunInputs{
		UserName:        p.cfg.UserName,
		Inputs:          res.Inputs,
		Priors:          res.Priors,
		CommunityPriors: res.CommunityPriors,
		IncludeShared:   p.cfg.IncludeSharedFeatures,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) importIMAP(ctx context.Context, userID string) error {
	c, err := imap.Dial(p.cfg.IMAPServerHost, p.cfg.IMAPUseTLS, p.cfg.IMAPUsername, p.cfg.IMAPPassword)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP: %w", err)
	}
	defer func() {
		if err := c.Logout(); err != nil {
			p.logger.Debug("IMAP logout failed", zap.Error(err))
		}
	}()

	_, err = imap.NewImporter(p.pool, p.logger).ImportAll(ctx, c, userID)
	return err
}

// Prepare threads the mailbox, splits it by date and builds inputs for the configured feature set.
func Prepare(mb *mailbox.Mailbox, cfg *config.Config, logger *zap.Logger) (*Result, error) {
	u := dataset.NewUser(cfg.UserName, mb, cfg.FeatureOptions())
	u.PartitionByDate(cfg.TrainEnd, cfg.ValidationEnd)

	fs, err := dataset.BuildFeatureSet(u, cfg.FeatureSet)
	if err != nil {
		return nil, fmt.Errorf("failed to build feature set: %w", err)
	}

	in := dataset.BuildInputs(u, fs, cfg.IncludeSharedFeatures)
	res := &Result{
		User:            u,
		Inputs:          in,
		Priors:          dataset.DefaultPriors(fs),
		CommunityPriors: dataset.DefaultCommunityPriors(fs),
	}

	LogThreading(logger, u)
	LogInputs(logger, in)
	return res, nil
}

// ActionCounts tallies the primary action the owner took on each received message.
func ActionCounts(u *dataset.User) map[threading.Action]int {
	counts := make(map[threading.Action]int)
	for _, id := range dataset.ReceivedMessages(u.Mailbox) {
		counts[u.Threads.PrimaryAction(id)]++
	}
	return counts
}

// LogThreading logs how the owner handled received mail and how many messages could not be threaded.
func LogThreading(logger *zap.Logger, u *dataset.User) {
	orphans := 0
	for _, conv := range u.Mailbox.Conversations() {
		if r := u.Threads.Result(conv.ID); r != nil {
			orphans += len(r.Orphans())
		}
	}

	fields := []zap.Field{zap.Int("orphans", orphans)}
	for action, n := range ActionCounts(u) {
		fields = append(fields, zap.Int(action.String(), n))
	}
	logger.Info("Threaded mailbox", fields...)
}

// LogInputs logs per data set sizes and, at debug level, bucket histograms.
func LogInputs(logger *zap.Logger, in *dataset.Inputs) {
	logger.Info("Built feature set", zap.String("feature_set", in.FeatureSet.Name()), zap.Int("buckets", in.FeatureSet.Len()))

	for _, ds := range in.DataSets() {
		logger.Info("Data set",
			zap.String("name", ds.Name),
			zap.Int("instances", ds.Count()),
			zap.Int("replied", len(ds.PositiveInstances())),
			zap.Float64("reply_rate", ds.PositiveRate()))

		if !logger.Core().Enabled(zap.DebugLevel) {
			continue
		}
		for _, h := range ds.FeatureHistograms() {
			for _, b := range h.Buckets {
				logger.Debug("Bucket",
					zap.String("data_set", ds.Name),
					zap.String("feature", h.Name),
					zap.String("bucket", b.Bucket.Name),
					zap.Int("replied", b.Positive),
					zap.Int("not_replied", b.Negative))
			}
		}
	}
}

// Score reads the posteriors the inference engine stored for runID, predicts reply
// probabilities for the test set and logs the conversations most likely to need a reply.
// A run with only community posteriors is scored with the personal priors derived from them.
// The feature set must match the one runID was exported with.
func (p *Pipeline) Score(ctx context.Context, res *Result, runID string, top int) error {
	store, err := export.Open(p.cfg.ExportPath, p.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	fs := res.Inputs.FeatureSet
	post, err := store.ReadPosteriors(ctx, runID, fs)
	if errors.Is(err, export.ErrNoPosteriors) {
		var community *dataset.CommunityPosteriors
		community, err = store.ReadCommunityPosteriors(ctx, runID, fs)
		if err == nil {
			p.logger.Info("Scoring with community posteriors", zap.String("run_id", runID))
			post = community.PersonalPriors().AsPosteriors()
		}
	}
	if err != nil {
		return fmt.Errorf("failed to read posteriors for run %s: %w", runID, err)
	}
	post.ApplyPredictions(res.User, res.Inputs.Test)

	for _, conv := range TopConversations(res.User.Mailbox, top) {
		p.logger.Info("Likely reply",
			zap.String("subject", conv.Subject(res.User.Mailbox)),
			zap.Float64("probability", conv.ReplyProbability(res.User.Mailbox)))
	}
	return nil
}

// TopConversations returns up to n conversations with the highest reply probability, highest first.
// Conversations with no prediction are left out.
func TopConversations(mb *mailbox.Mailbox, n int) []*mailbox.Conversation {
	var scored []*mailbox.Conversation
	for _, conv := range mb.Conversations() {
		if conv.ReplyProbability(mb) > 0 {
			scored = append(scored, conv)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].ReplyProbability(mb) > scored[j].ReplyProbability(mb)
	})
	if n >= 0 && len(scored) > n {
		scored = scored[:n]
	}
	return scored
}
