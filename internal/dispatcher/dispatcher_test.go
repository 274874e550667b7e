package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegsv/twmentions/internal/database"
	"github.com/olegsv/twmentions/internal/twitter"
	"github.com/olegsv/twmentions/pkg/models"
)

type fakeStore struct {
	accounts     []*models.Account
	quotas       map[string]*models.Quota
	quotaErr     error
	cursors      map[string]string
	cursorWrites []string
	consumed     []string
}

func (s *fakeStore) GetTwitterAccounts(ctx context.Context) ([]*models.Account, error) {
	return s.accounts, nil
}

func (s *fakeStore) GetQuota(ctx context.Context, accountID string) (*models.Quota, error) {
	if s.quotaErr != nil {
		return nil, s.quotaErr
	}
	quota, ok := s.quotas[accountID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return quota, nil
}

func (s *fakeStore) ConsumeQuota(ctx context.Context, accountID string) error {
	quota, ok := s.quotas[accountID]
	if !ok {
		return database.ErrNotFound
	}
	quota.CountDaily++
	quota.CountTotal++
	s.consumed = append(s.consumed, accountID)
	return nil
}

func (s *fakeStore) GetCursor(ctx context.Context, accountID string) (string, error) {
	cursor, ok := s.cursors[accountID]
	if !ok {
		return "", database.ErrNotFound
	}
	return cursor, nil
}

func (s *fakeStore) SetCursor(ctx context.Context, accountID, lastTweetID string) error {
	if s.cursors == nil {
		s.cursors = make(map[string]string)
	}
	s.cursors[accountID] = lastTweetID
	s.cursorWrites = append(s.cursorWrites, accountID+"="+lastTweetID)
	return nil
}

type mentionsCall struct {
	userID     string
	sinceID    string
	startTime  time.Time
	maxResults int
}

type postedReply struct {
	text        string
	inReplyToID string
}

type fakeClient struct {
	user        *twitter.User
	meErr       error
	page        *twitter.MentionPage
	pageBySince map[string]*twitter.MentionPage
	fetchErr    error
	postErrOn   string // mention ID that fails to post
	fetches     []mentionsCall
	posts       []postedReply
}

func (c *fakeClient) GetMe(ctx context.Context) (*twitter.User, error) {
	if c.meErr != nil {
		return nil, c.meErr
	}
	if c.user == nil {
		return &twitter.User{ID: "self", Username: "bot"}, nil
	}
	return c.user, nil
}

func (c *fakeClient) GetMentions(ctx context.Context, userID, sinceID string, startTime time.Time, maxResults int) (*twitter.MentionPage, error) {
	c.fetches = append(c.fetches, mentionsCall{userID, sinceID, startTime, maxResults})
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	if c.pageBySince != nil {
		if page, ok := c.pageBySince[sinceID]; ok {
			return page, nil
		}
		return &twitter.MentionPage{}, nil
	}
	if c.page == nil {
		return &twitter.MentionPage{}, nil
	}
	return c.page, nil
}

func (c *fakeClient) PostReply(ctx context.Context, text, inReplyToID string) error {
	if c.postErrOn != "" && inReplyToID == c.postErrOn {
		return errors.New("post failed")
	}
	c.posts = append(c.posts, postedReply{text, inReplyToID})
	return nil
}

type engineCall struct {
	accountID string
	message   string
	threadID  string
}

type fakeEngine struct {
	lines []string
	errOn string // mention text that fails
	calls []engineCall
}

func (e *fakeEngine) Execute(ctx context.Context, accountID, message, threadID string) ([]string, error) {
	if e.errOn != "" && message == e.errOn {
		return nil, errors.New("engine failed")
	}
	e.calls = append(e.calls, engineCall{accountID, message, threadID})
	if e.lines == nil {
		return []string{"hello"}, nil
	}
	return e.lines, nil
}

func testAccount(id string) *models.Account {
	return &models.Account{ID: id, Name: id, TwitterEnabled: true, BearerToken: "token-" + id}
}

func testQuota(id string, daily, limitDaily, total, limitTotal int) *models.Quota {
	return &models.Quota{AccountID: id, CountDaily: daily, LimitDaily: limitDaily, CountTotal: total, LimitTotal: limitTotal}
}

func newTestDispatcher(store *fakeStore, clients map[string]*fakeClient, eng *fakeEngine) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Deps{
		Accounts: store,
		Quotas:   store,
		Cursors:  store,
		NewClient: func(creds models.Credentials) PlatformClient {
			for _, account := range store.accounts {
				if account.BearerToken == creds.BearerToken {
					return clients[account.ID]
				}
			}
			panic("no client for credentials " + creds.BearerToken)
		},
		Engine:     eng,
		Logger:     logger,
		Lookback:   24 * time.Hour,
		MaxResults: 10,
	})
}

func TestRunTickRepliesAndAdvancesCursor(t *testing.T) {
	store := &fakeStore{
		accounts: []*models.Account{testAccount("A")},
		quotas:   map[string]*models.Quota{"A": testQuota("A", 0, 5, 0, 50)},
	}
	client := &fakeClient{
		page: &twitter.MentionPage{
			Mentions: []models.Mention{
				{ID: "1000", AuthorID: "author1", Text: "hi there"},
				{ID: "1001", AuthorID: "author2", Text: "hello bot"},
			},
			NewestID: "1001",
		},
	}
	eng := &fakeEngine{lines: []string{"line one", "line two"}}
	d := newTestDispatcher(store, map[string]*fakeClient{"A": client}, eng)

	results := d.RunTick(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeReplied, results[0].Outcome)
	assert.Equal(t, 2, results[0].Mentions)

	// Cursor set to exactly the newest-id marker
	assert.Equal(t, "1001", store.cursors["A"])
	assert.Equal(t, []string{"A=1001"}, store.cursorWrites)

	// One engine call per mention with derived thread ids, in fetch order
	require.Len(t, eng.calls, 2)
	assert.Equal(t, engineCall{"A", "hi there", "A-twitter-author1"}, eng.calls[0])
	assert.Equal(t, engineCall{"A", "hello bot", "A-twitter-author2"}, eng.calls[1])

	// Reply lines joined with line breaks, posted against each mention
	require.Len(t, client.posts, 2)
	assert.Equal(t, postedReply{"line one\nline two", "1000"}, client.posts[0])
	assert.Equal(t, postedReply{"line one\nline two", "1001"}, client.posts[1])

	// Quota consumed once for the whole cycle, not per mention
	assert.Equal(t, []string{"A"}, store.consumed)
	assert.Equal(t, 1, store.quotas["A"].CountDaily)
	assert.Equal(t, 1, store.quotas["A"].CountTotal)
}

func TestRunTickSkipsAccountWithoutQuota(t *testing.T) {
	store := &fakeStore{
		accounts: []*models.Account{testAccount("B"), testAccount("C")},
		quotas: map[string]*models.Quota{
			"B": testQuota("B", 5, 5, 10, 50),
			"C": testQuota("C", 0, 5, 0, 50),
		},
	}
	clientB := &fakeClient{}
	clientC := &fakeClient{page: &twitter.MentionPage{
		Mentions: []models.Mention{{ID: "7", AuthorID: "x", Text: "ping"}},
		NewestID: "7",
	}}
	eng := &fakeEngine{}
	d := newTestDispatcher(store, map[string]*fakeClient{"B": clientB, "C": clientC}, eng)

	results := d.RunTick(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, OutcomeQuotaExhausted, results[0].Outcome)
	assert.Equal(t, OutcomeReplied, results[1].Outcome)

	// Exhausted account: no fetch, no cursor write, and the tick continues
	assert.Empty(t, clientB.fetches)
	assert.NotContains(t, store.cursors, "B")
	assert.Equal(t, "7", store.cursors["C"])
}

func TestRunTickFailsClosedWithoutQuotaRecord(t *testing.T) {
	store := &fakeStore{
		accounts: []*models.Account{testAccount("A")},
		quotas:   map[string]*models.Quota{},
	}
	client := &fakeClient{}
	d := newTestDispatcher(store, map[string]*fakeClient{"A": client}, &fakeEngine{})

	results := d.RunTick(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeQuotaExhausted, results[0].Outcome)
	assert.Empty(t, client.fetches)
}

func TestRunTickEmptyFetchIsUnbilledNoOp(t *testing.T) {
	store := &fakeStore{
		accounts: []*models.Account{testAccount("A")},
		quotas:   map[string]*models.Quota{"A": testQuota("A", 1, 5, 3, 50)},
		cursors:  map[string]string{"A": "900"},
	}
	client := &fakeClient{page: &twitter.MentionPage{}}
	d := newTestDispatcher(store, map[string]*fakeClient{"A": client}, &fakeEngine{})

	results := d.RunTick(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeNoMentions, results[0].Outcome)

	assert.Equal(t, "900", store.cursors["A"])
	assert.Empty(t, store.cursorWrites)
	assert.Empty(t, store.consumed)
	assert.Equal(t, 1, store.quotas["A"].CountDaily)
}

func TestRunTickMissingNewestIDAbortsWithoutCursorAdvance(t *testing.T) {
	store := &fakeStore{
		accounts: []*models.Account{testAccount("A")},
		quotas:   map[string]*models.Quota{"A": testQuota("A", 0, 5, 0, 50)},
		cursors:  map[string]string{"A": "900"},
	}
	client := &fakeClient{page: &twitter.MentionPage{
		Mentions: []models.Mention{{ID: "901", AuthorID: "x", Text: "hey"}},
	}}
	eng := &fakeEngine{}
	d := newTestDispatcher(store, map[string]*fakeClient{"A": client}, eng)

	results := d.RunTick(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFailed, results[0].Outcome)

	var dataErr *DataConsistencyError
	require.ErrorAs(t, results[0].Err, &dataErr)
	assert.Equal(t, "A", dataErr.AccountID)

	// Cursor stays put so the same window is retried next tick
	assert.Equal(t, "900", store.cursors["A"])
	assert.Empty(t, eng.calls)
	assert.Empty(t, store.consumed)
}

func TestRunTickCursorAdvancesBeforeProcessing(t *testing.T) {
	// A post failure mid-list must not roll the cursor back: the marker was
	// written before replies started
	store := &fakeStore{
		accounts: []*models.Account{testAccount("A")},
		quotas:   map[string]*models.Quota{"A": testQuota("A", 0, 5, 0, 50)},
	}
	client := &fakeClient{
		page: &twitter.MentionPage{
			Mentions: []models.Mention{
				{ID: "10", AuthorID: "a1", Text: "first"},
				{ID: "11", AuthorID: "a2", Text: "second"},
				{ID: "12", AuthorID: "a3", Text: "third"},
			},
			NewestID: "12",
		},
		postErrOn: "11",
	}
	eng := &fakeEngine{}
	d := newTestDispatcher(store, map[string]*fakeClient{"A": client}, eng)

	results := d.RunTick(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFailed, results[0].Outcome)

	var downstreamErr *DownstreamError
	require.ErrorAs(t, results[0].Err, &downstreamErr)
	assert.Equal(t, "11", downstreamErr.MentionID)

	// First reply went out, the rest of the list was skipped
	require.Len(t, client.posts, 1)
	assert.Equal(t, "10", client.posts[0].inReplyToID)
	assert.Len(t, eng.calls, 2)

	assert.Equal(t, "12", store.cursors["A"])

	// Quota is not consumed even though one reply was posted. That mirrors
	// the observed source behavior; see the open question in DESIGN.md.
	assert.Empty(t, store.consumed)
}

func TestRunTickEngineFailureSkipsRemainingMentions(t *testing.T) {
	store := &fakeStore{
		accounts: []*models.Account{testAccount("A")},
		quotas:   map[string]*models.Quota{"A": testQuota("A", 0, 5, 0, 50)},
	}
	client := &fakeClient{page: &twitter.MentionPage{
		Mentions: []models.Mention{
			{ID: "20", AuthorID: "a1", Text: "boom"},
			{ID: "21", AuthorID: "a2", Text: "fine"},
		},
		NewestID: "21",
	}}
	eng := &fakeEngine{errOn: "boom"}
	d := newTestDispatcher(store, map[string]*fakeClient{"A": client}, eng)

	results := d.RunTick(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFailed, results[0].Outcome)

	var downstreamErr *DownstreamError
	require.ErrorAs(t, results[0].Err, &downstreamErr)
	assert.Empty(t, client.posts)
	assert.Empty(t, store.consumed)
}

func TestRunTickIsolatesAccountFailures(t *testing.T) {
	store := &fakeStore{
		accounts: []*models.Account{testAccount("A"), testAccount("B")},
		quotas: map[string]*models.Quota{
			"A": testQuota("A", 0, 5, 0, 50),
			"B": testQuota("B", 0, 5, 0, 50),
		},
	}
	clientA := &fakeClient{meErr: errors.New("401 unauthorized")}
	clientB := &fakeClient{page: &twitter.MentionPage{
		Mentions: []models.Mention{{ID: "5", AuthorID: "y", Text: "hi"}},
		NewestID: "5",
	}}
	d := newTestDispatcher(store, map[string]*fakeClient{"A": clientA, "B": clientB}, &fakeEngine{})

	results := d.RunTick(context.Background())
	require.Len(t, results, 2)

	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	var credErr *CredentialError
	require.ErrorAs(t, results[0].Err, &credErr)
	assert.Equal(t, "A", credErr.AccountID)

	assert.Equal(t, OutcomeReplied, results[1].Outcome)
	assert.Equal(t, "5", store.cursors["B"])
	assert.Equal(t, []string{"B"}, store.consumed)
}

func TestRunTickRejectsEmptyCredentials(t *testing.T) {
	account := testAccount("A")
	account.BearerToken = ""
	store := &fakeStore{
		accounts: []*models.Account{account},
		quotas:   map[string]*models.Quota{"A": testQuota("A", 0, 5, 0, 50)},
	}
	d := newTestDispatcher(store, nil, &fakeEngine{})

	results := d.RunTick(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFailed, results[0].Outcome)

	var credErr *CredentialError
	require.ErrorAs(t, results[0].Err, &credErr)
}

func TestRunTickPassesCursorAndLookbackToFetch(t *testing.T) {
	store := &fakeStore{
		accounts: []*models.Account{testAccount("A")},
		quotas:   map[string]*models.Quota{"A": testQuota("A", 0, 5, 0, 50)},
		cursors:  map[string]string{"A": "42"},
	}
	client := &fakeClient{user: &twitter.User{ID: "self-a"}}
	d := newTestDispatcher(store, map[string]*fakeClient{"A": client}, &fakeEngine{})

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	d.RunTick(context.Background())
	require.Len(t, client.fetches, 1)
	assert.Equal(t, "self-a", client.fetches[0].userID)
	assert.Equal(t, "42", client.fetches[0].sinceID)
	assert.Equal(t, now.Add(-24*time.Hour), client.fetches[0].startTime)
	assert.Equal(t, 10, client.fetches[0].maxResults)
}

func TestRunTickWithoutPriorCursorFetchesLookbackWindowOnly(t *testing.T) {
	store := &fakeStore{
		accounts: []*models.Account{testAccount("A")},
		quotas:   map[string]*models.Quota{"A": testQuota("A", 0, 5, 0, 50)},
	}
	client := &fakeClient{}
	d := newTestDispatcher(store, map[string]*fakeClient{"A": client}, &fakeEngine{})

	d.RunTick(context.Background())
	require.Len(t, client.fetches, 1)
	assert.Empty(t, client.fetches[0].sinceID)
}

func TestRunTickIdempotentAcrossTicks(t *testing.T) {
	// With a deterministic upstream, a second tick sees the advanced cursor,
	// fetches nothing and bills nothing
	store := &fakeStore{
		accounts: []*models.Account{testAccount("A")},
		quotas:   map[string]*models.Quota{"A": testQuota("A", 0, 5, 0, 50)},
	}
	client := &fakeClient{pageBySince: map[string]*twitter.MentionPage{
		"": {
			Mentions: []models.Mention{{ID: "100", AuthorID: "z", Text: "yo"}},
			NewestID: "100",
		},
	}}
	d := newTestDispatcher(store, map[string]*fakeClient{"A": client}, &fakeEngine{})

	first := d.RunTick(context.Background())
	second := d.RunTick(context.Background())

	assert.Equal(t, OutcomeReplied, first[0].Outcome)
	assert.Equal(t, OutcomeNoMentions, second[0].Outcome)
	assert.Equal(t, []string{"A"}, store.consumed)
	assert.Equal(t, "100", store.cursors["A"])
}

func TestRunTickQuotaStoreFailureIsAccountScoped(t *testing.T) {
	store := &fakeStore{
		accounts: []*models.Account{testAccount("A")},
		quotaErr: fmt.Errorf("database locked"),
	}
	client := &fakeClient{}
	d := newTestDispatcher(store, map[string]*fakeClient{"A": client}, &fakeEngine{})

	results := d.RunTick(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.Empty(t, client.fetches)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "replied", OutcomeReplied.String())
	assert.Equal(t, "no_mentions", OutcomeNoMentions.String())
	assert.Equal(t, "quota_exhausted", OutcomeQuotaExhausted.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
