package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dotnet/mbmlbook-sub000/internal/config"
	"github.com/dotnet/mbmlbook-sub000/internal/dataset"
	"github.com/dotnet/mbmlbook-sub000/internal/export"
	"github.com/dotnet/mbmlbook-sub000/internal/features"
	"github.com/dotnet/mbmlbook-sub000/internal/mailbox"
	"github.com/dotnet/mbmlbook-sub000/internal/testutil"
	"github.com/dotnet/mbmlbook-sub000/internal/threading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var (
	me    = mailbox.Address{Name: "Me", Email: "me@example.com"}
	alice = mailbox.Address{Name: "Alice", Email: "alice@example.com"}
	bob   = mailbox.Address{Name: "Bob", Email: "bob@example.com"}
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 9, 0, 0, 0, time.UTC)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		MailboxOwner:          me.Email,
		UserName:              "me",
		FeatureSet:            features.WithConversation,
		SenderTopN:            5,
		MergeConfidence:       1,
		IncludeSharedFeatures: true,
		TrainEnd:              day(4),
		ValidationEnd:         day(8),
		ExportPath:            filepath.Join(t.TempDir(), "out.sqlite"),
	}
}

func testMailbox() *mailbox.Mailbox {
	mb := mailbox.New(nil)
	mb.Directory().MarkMe(mb.Directory().Resolve(me.Name, me.Email))

	for _, d := range []int{1, 5, 9} {
		key := "alice-" + day(d).Format("0102")
		mb.AddMessage(mailbox.NewMessage{ConversationKey: key, FolderName: "Inbox", Subject: "Lunch?", From: alice, To: []mailbox.Address{me}, DateSent: day(d)})
		mb.AddMessage(mailbox.NewMessage{ConversationKey: key, FolderName: "Sent Items", Subject: "RE: Lunch?", From: me, To: []mailbox.Address{alice}, DateSent: day(d).Add(time.Hour)})
	}
	addNewsletters(mb, 2, 6, 10)
	return mb
}

func addNewsletters(mb *mailbox.Mailbox, days ...int) {
	for _, d := range days {
		mb.AddMessage(mailbox.NewMessage{
			ConversationKey: "bob-" + day(d).Format("0102"), FolderName: "Deleted Items", Subject: "Newsletter", From: bob,
			To: []mailbox.Address{alice}, Cc: []mailbox.Address{me}, DateSent: day(d),
		})
	}
}

// exportRun writes res to the configured export file and returns the run ID.
func exportRun(t *testing.T, cfg *config.Config, res *Result) string {
	t.Helper()
	store, err := export.Open(cfg.ExportPath, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	runID, err := store.WriteInputs(context.Background(), export.RunInputs{
		UserName:        cfg.UserName,
		Inputs:          res.Inputs,
		Priors:          res.Priors,
		CommunityPriors: res.CommunityPriors,
		IncludeShared:   true,
	})
	require.NoError(t, err)
	return runID
}

func TestPrepare(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cfg := testConfig(t)

	res, err := Prepare(testMailbox(), cfg, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, features.WithConversation, res.Inputs.FeatureSet.Name())
	assert.Equal(t, 2, res.Inputs.Train.Count())
	assert.Equal(t, 2, res.Inputs.Validation.Count())
	assert.Equal(t, 2, res.Inputs.Test.Count())
	assert.Len(t, res.Priors.Weights, res.Inputs.FeatureSet.Len())
	assert.Len(t, res.CommunityPriors.WeightPrecisions, res.Inputs.FeatureSet.Len())

	assert.Equal(t, 3, logs.FilterMessage("Data set").Len())
	assert.NotZero(t, logs.FilterMessage("Bucket").Len())
	threaded := logs.FilterMessage("Threaded mailbox").All()
	require.Len(t, threaded, 1)
	assert.Equal(t, int64(3), threaded[0].ContextMap()["Reply"])
	assert.Equal(t, int64(3), threaded[0].ContextMap()["Delete"])
}

func TestPrepareRejectsUnknownFeatureSet(t *testing.T) {
	cfg := testConfig(t)
	cfg.FeatureSet = "Everything"

	_, err := Prepare(testMailbox(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestActionCounts(t *testing.T) {
	u := dataset.NewUser("me", testMailbox(), features.DefaultOptions)

	counts := ActionCounts(u)
	assert.Equal(t, map[threading.Action]int{
		threading.ActionReply:  3,
		threading.ActionDelete: 3,
	}, counts)
}

func TestRunImportsAndExports(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	server := testutil.NewTestIMAPServer(t)
	defer server.Close()
	server.EnsureFolder(t, "Sent")

	for _, d := range []int{1, 5, 9} {
		id := "<q" + day(d).Format("0102") + "@example.com>"
		server.AddMessage(t, "INBOX", testutil.TestMessage{
			MessageID: id, Subject: "Lunch?", From: "Alice <alice@example.com>", To: "Me <me@example.com>", SentAt: day(d),
		})
		server.AddMessage(t, "Sent", testutil.TestMessage{
			MessageID: "<r" + day(d).Format("0102") + "@example.com>", InReplyTo: id, Subject: "RE: Lunch?",
			From: "Me <me@example.com>", To: "alice@example.com", SentAt: day(d).Add(time.Hour),
		})
	}

	cfg := testConfig(t)
	cfg.IMAPServerHost = server.Address
	cfg.IMAPUsername = server.Username()
	cfg.IMAPPassword = server.Password()
	cfg.IMAPUseTLS = false

	ctx := context.Background()
	res, err := New(cfg, zaptest.NewLogger(t), pool).Run(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	assert.Len(t, res.Inputs.Train.PositiveInstances(), 1)
	assert.Len(t, res.Inputs.Validation.PositiveInstances(), 1)
	assert.Len(t, res.Inputs.Test.PositiveInstances(), 1)

	store, err := export.Open(cfg.ExportPath, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	run, err := store.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, features.WithConversation, run.FeatureSet)
}

func TestScoreAppliesStoredPosteriors(t *testing.T) {
	cfg := testConfig(t)
	res, err := Prepare(testMailbox(), cfg, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	runID := exportRun(t, cfg, res)
	store, err := export.Open(cfg.ExportPath, zap.NewNop())
	require.NoError(t, err)

	fs := res.Inputs.FeatureSet
	onTo, _ := fs.Feature(features.ToCcPosition)
	require.NoError(t, store.WritePosteriors(ctx, runID, fs, &dataset.Posteriors{
		Weights: map[features.Bucket]dataset.Gaussian{
			onTo.Buckets()[0]: {Mean: 2, Variance: 0.1},
			onTo.Buckets()[1]: {Mean: -2, Variance: 0.1},
		},
		Threshold:     dataset.Gaussian{Variance: 0.1},
		NoiseVariance: 1,
	}))
	require.NoError(t, store.Close())

	core, logs := observer.New(zap.InfoLevel)
	p := New(cfg, zap.New(core), nil)
	require.NoError(t, p.Score(ctx, res, runID, 1))

	likely := logs.FilterMessage("Likely reply").All()
	require.Len(t, likely, 1)
	assert.Equal(t, "Lunch?", likely[0].ContextMap()["subject"])

	top := TopConversations(res.User.Mailbox, -1)
	require.Len(t, top, 2, "only the test set was scored")
	assert.GreaterOrEqual(t, top[0].ReplyProbability(res.User.Mailbox), top[1].ReplyProbability(res.User.Mailbox))

	assert.Error(t, p.Score(ctx, res, "unknown-run", 1))
}

func TestScoreFallsBackToCommunityPosteriors(t *testing.T) {
	cfg := testConfig(t)
	res, err := Prepare(testMailbox(), cfg, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	runID := exportRun(t, cfg, res)

	fs := res.Inputs.FeatureSet
	onTo, _ := fs.Feature(features.ToCcPosition)
	store, err := export.Open(cfg.ExportPath, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.WriteCommunityPosteriors(ctx, runID, fs, &dataset.CommunityPosteriors{
		WeightMeans: map[features.Bucket]dataset.Gaussian{
			onTo.Buckets()[0]: {Mean: 2, Variance: 0.1},
			onTo.Buckets()[1]: {Mean: -2, Variance: 0.1},
		},
		WeightPrecisions: map[features.Bucket]dataset.Gamma{
			onTo.Buckets()[0]: {Shape: 3, Rate: 1},
			onTo.Buckets()[1]: {Shape: 3, Rate: 1},
		},
		Threshold:     dataset.Gaussian{Variance: 0.1},
		NoiseVariance: 1,
	}))
	require.NoError(t, store.Close())

	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, New(cfg, zap.New(core), nil).Score(ctx, res, runID, 1))

	assert.Equal(t, 1, logs.FilterMessage("Scoring with community posteriors").Len())
	likely := logs.FilterMessage("Likely reply").All()
	require.Len(t, likely, 1)
	assert.Equal(t, "Lunch?", likely[0].ContextMap()["subject"])
}

func TestScoreRejectsChangedSenderRanking(t *testing.T) {
	cfg := testConfig(t)
	first, err := Prepare(testMailbox(), cfg, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	runID := exportRun(t, cfg, first)

	sender, _ := first.Inputs.FeatureSet.Feature(features.Sender)
	store, err := export.Open(cfg.ExportPath, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.WritePosteriors(ctx, runID, first.Inputs.FeatureSet, &dataset.Posteriors{
		Weights:       map[features.Bucket]dataset.Gaussian{sender.Buckets()[0]: {Mean: 2, Variance: 0.1}},
		NoiseVariance: 1,
	}))
	require.NoError(t, store.Close())

	// More newsletters make bob the top sender in the next run.
	mb := testMailbox()
	addNewsletters(mb, 3, 7)
	second, err := Prepare(mb, cfg, zap.NewNop())
	require.NoError(t, err)

	err = New(cfg, zap.NewNop(), nil).Score(ctx, second, runID, 1)
	assert.ErrorIs(t, err, export.ErrBucketMismatch)
}
