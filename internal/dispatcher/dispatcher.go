package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/olegsv/twmentions/internal/database"
	"github.com/olegsv/twmentions/internal/twitter"
	"github.com/olegsv/twmentions/pkg/models"
)

// AccountSource lists the accounts eligible for mention polling
type AccountSource interface {
	GetTwitterAccounts(ctx context.Context) ([]*models.Account, error)
}

// QuotaStore answers and records per-account usage
type QuotaStore interface {
	GetQuota(ctx context.Context, accountID string) (*models.Quota, error)
	ConsumeQuota(ctx context.Context, accountID string) error
}

// CursorStore holds the per-account mention high-water mark
type CursorStore interface {
	GetCursor(ctx context.Context, accountID string) (string, error)
	SetCursor(ctx context.Context, accountID, lastTweetID string) error
}

// PlatformClient is one account's authenticated Twitter session
type PlatformClient interface {
	GetMe(ctx context.Context) (*twitter.User, error)
	GetMentions(ctx context.Context, userID, sinceID string, startTime time.Time, maxResults int) (*twitter.MentionPage, error)
	PostReply(ctx context.Context, text, inReplyToID string) error
}

// ClientFactory builds a platform session from a credential bundle
type ClientFactory func(creds models.Credentials) PlatformClient

// Engine generates reply lines for a mention
type Engine interface {
	Execute(ctx context.Context, accountID, message, threadID string) ([]string, error)
}

// Outcome classifies one account's cycle within a tick
type Outcome int

const (
	// OutcomeReplied means mentions were fetched and all replies posted
	OutcomeReplied Outcome = iota
	// OutcomeNoMentions means the cycle was a no-op: nothing fetched,
	// no cursor change, no quota consumed
	OutcomeNoMentions
	// OutcomeQuotaExhausted means the account was skipped before any
	// network or persistence work
	OutcomeQuotaExhausted
	// OutcomeFailed means the cycle aborted; Err carries the cause
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReplied:
		return "replied"
	case OutcomeNoMentions:
		return "no_mentions"
	case OutcomeQuotaExhausted:
		return "quota_exhausted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AccountResult is the typed per-account outcome of one tick
type AccountResult struct {
	AccountID string
	Outcome   Outcome
	Mentions  int
	Err       error
}

// Deps are the collaborators the dispatcher orchestrates
type Deps struct {
	Accounts  AccountSource
	Quotas    QuotaStore
	Cursors   CursorStore
	NewClient ClientFactory
	Engine    Engine
	Logger    *slog.Logger

	Lookback       time.Duration
	MaxResults     int
	DebugResponses bool
}

// Dispatcher runs the polling-quota-dedup-dispatch pipeline once per tick
type Dispatcher struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// New creates a dispatcher
func New(deps Deps) *Dispatcher {
	return &Dispatcher{
		deps:   deps,
		logger: deps.Logger.With("component", "dispatcher"),
		now:    time.Now,
	}
}

// RunTick processes all eligible accounts sequentially. An account's failure
// never aborts the tick; every account gets a result.
func (d *Dispatcher) RunTick(ctx context.Context) []AccountResult {
	accounts, err := d.deps.Accounts.GetTwitterAccounts(ctx)
	if err != nil {
		d.logger.Error("failed to list twitter accounts", "error", err)
		return nil
	}

	results := make([]AccountResult, 0, len(accounts))
	for _, account := range accounts {
		result := d.processAccount(ctx, account)
		switch result.Outcome {
		case OutcomeReplied:
			d.logger.Info("replied to mentions", "account_id", account.ID, "mentions", result.Mentions)
		case OutcomeNoMentions:
			d.logger.Info("no new mentions", "account_id", account.ID)
		case OutcomeFailed:
			d.logger.Error("failed to process mentions", "account_id", account.ID, "error", result.Err)
		}
		results = append(results, result)
	}
	return results
}

// processAccount runs one account's cycle: quota admission, client build,
// identity check, fetch, cursor advance, per-mention reply, quota consume.
// The cursor is advanced before replies are posted so a crash mid-cycle
// re-polls from the new mark instead of reprocessing the same mentions.
func (d *Dispatcher) processAccount(ctx context.Context, account *models.Account) AccountResult {
	quota, err := d.deps.Quotas.GetQuota(ctx, account.ID)
	if errors.Is(err, database.ErrNotFound) {
		// No quota record means no quota
		d.logger.Warn("account has no quota record", "account_id", account.ID)
		return AccountResult{AccountID: account.ID, Outcome: OutcomeQuotaExhausted}
	}
	if err != nil {
		return AccountResult{AccountID: account.ID, Outcome: OutcomeFailed, Err: err}
	}
	if !quota.HasTwitterQuota() {
		d.logger.Warn("account has no twitter quota",
			"account_id", account.ID,
			"daily", quota.CountDaily, "limit_daily", quota.LimitDaily,
			"total", quota.CountTotal, "limit_total", quota.LimitTotal)
		return AccountResult{AccountID: account.ID, Outcome: OutcomeQuotaExhausted}
	}

	creds := account.Credentials()
	if !creds.Valid() {
		return AccountResult{AccountID: account.ID, Outcome: OutcomeFailed, Err: &CredentialError{AccountID: account.ID}}
	}
	client := d.deps.NewClient(creds)

	me, err := client.GetMe(ctx)
	if err != nil {
		return AccountResult{AccountID: account.ID, Outcome: OutcomeFailed, Err: &CredentialError{AccountID: account.ID, Err: err}}
	}

	sinceID, err := d.deps.Cursors.GetCursor(ctx, account.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return AccountResult{AccountID: account.ID, Outcome: OutcomeFailed, Err: err}
	}

	startTime := d.now().Add(-d.deps.Lookback)
	page, err := client.GetMentions(ctx, me.ID, sinceID, startTime, d.deps.MaxResults)
	if err != nil {
		return AccountResult{AccountID: account.ID, Outcome: OutcomeFailed, Err: err}
	}

	if len(page.Mentions) == 0 {
		return AccountResult{AccountID: account.ID, Outcome: OutcomeNoMentions}
	}

	if page.NewestID == "" {
		return AccountResult{AccountID: account.ID, Outcome: OutcomeFailed, Err: &DataConsistencyError{AccountID: account.ID}}
	}
	if err := d.deps.Cursors.SetCursor(ctx, account.ID, page.NewestID); err != nil {
		return AccountResult{AccountID: account.ID, Outcome: OutcomeFailed, Err: err}
	}

	for _, mention := range page.Mentions {
		threadID := account.ID + "-twitter-" + mention.AuthorID
		lines, err := d.deps.Engine.Execute(ctx, account.ID, mention.Text, threadID)
		if err != nil {
			return AccountResult{AccountID: account.ID, Outcome: OutcomeFailed, Err: &DownstreamError{AccountID: account.ID, MentionID: mention.ID, Err: err}}
		}

		reply := strings.Join(lines, "\n")
		if d.deps.DebugResponses {
			d.logger.Debug("generated reply", "account_id", account.ID, "mention_id", mention.ID, "reply", reply)
		}
		if err := client.PostReply(ctx, reply, mention.ID); err != nil {
			return AccountResult{AccountID: account.ID, Outcome: OutcomeFailed, Err: &DownstreamError{AccountID: account.ID, MentionID: mention.ID, Err: err}}
		}
	}

	if err := d.deps.Quotas.ConsumeQuota(ctx, account.ID); err != nil {
		return AccountResult{AccountID: account.ID, Outcome: OutcomeFailed, Err: err}
	}

	return AccountResult{AccountID: account.ID, Outcome: OutcomeReplied, Mentions: len(page.Mentions)}
}
