package whitelist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"waasp/internal/audit"
	"waasp/internal/contacts"
	"waasp/internal/notify"
	"waasp/internal/store"
	"waasp/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db    *store.DB
	audit *audit.Service
	svc   *Service
	pub   *recordingPublisher
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (p *recordingPublisher) PublishBlocked(_ context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:", utils.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	a := audit.NewService(db)
	pub := &recordingPublisher{}
	return fixture{db: db, audit: a, svc: NewService(db, a).WithNotifier(pub), pub: pub}
}

func ptr[T any](v T) *T { return &v }

func (f fixture) entries(t *testing.T, filter audit.Filter) []audit.Entry {
	t.Helper()
	out, err := f.audit.Query(context.Background(), filter)
	require.NoError(t, err)
	return out
}

func TestCheck_UnknownSenderFailsClosed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Check(ctx, CheckRequest{SenderID: "+449999999999"})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, contacts.TrustBlocked, res.TrustLevel)
	assert.Nil(t, res.Name)
	assert.Equal(t, "Unknown sender - not in whitelist", res.Reason)

	// any channel, still blocked
	res, err = f.svc.Check(ctx, CheckRequest{SenderID: "+449999999999", Channel: ptr("telegram")})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, contacts.TrustBlocked, res.TrustLevel)

	logs := f.entries(t, audit.Filter{SenderID: "+449999999999"})
	require.Len(t, logs, 2)
	for _, e := range logs {
		assert.Equal(t, audit.ActionBlocked, e.Action)
		assert.Nil(t, e.ContactID)
	}
	assert.Len(t, f.pub.events, 2)
}

func TestCheck_TrustedContactCorrectChannel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, AddRequest{SenderID: "+447375862225", TrustLevel: contacts.TrustTrusted, Channel: ptr("whatsapp"), Name: ptr("Test User")})
	require.NoError(t, err)

	res, err := f.svc.Check(ctx, CheckRequest{SenderID: "+447375862225", Channel: ptr("whatsapp")})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, contacts.TrustTrusted, res.TrustLevel)
	require.NotNil(t, res.Name)
	assert.Equal(t, "Test User", *res.Name)
	assert.Equal(t, "Sender is trusted", res.Reason)
	assert.Empty(t, f.pub.events)

	// a channel-only record does not apply elsewhere
	res, err = f.svc.Check(ctx, CheckRequest{SenderID: "+447375862225"})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestCheck_ChannelPrecedenceBothOrders(t *testing.T) {
	for _, globalFirst := range []bool{true, false} {
		f := setup(t)
		ctx := context.Background()
		const x = "+443333333333"

		addGlobal := func() {
			_, err := f.svc.Add(ctx, AddRequest{SenderID: x, TrustLevel: contacts.TrustBlocked})
			require.NoError(t, err)
		}
		addChannel := func() {
			_, err := f.svc.Add(ctx, AddRequest{SenderID: x, TrustLevel: contacts.TrustTrusted, Channel: ptr("telegram")})
			require.NoError(t, err)
		}
		if globalFirst {
			addGlobal()
			addChannel()
		} else {
			addChannel()
			addGlobal()
		}

		res, err := f.svc.Check(ctx, CheckRequest{SenderID: x})
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Equal(t, contacts.TrustBlocked, res.TrustLevel)
		assert.Equal(t, "Sender is explicitly blocked", res.Reason)

		res, err = f.svc.Check(ctx, CheckRequest{SenderID: x, Channel: ptr("telegram")})
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, contacts.TrustTrusted, res.TrustLevel)
	}
}

func TestCheck_LimitedVisibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, AddRequest{SenderID: "+442222222222", TrustLevel: contacts.TrustLimited})
	require.NoError(t, err)

	res, err := f.svc.Check(ctx, CheckRequest{SenderID: "+442222222222"})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, contacts.TrustLimited, res.TrustLevel)
	assert.Equal(t, "Sender has limited access", res.Reason)
	assert.False(t, res.TrustLevel.CanTriggerActions())

	logs := f.entries(t, audit.Filter{SenderID: "+442222222222", Action: audit.ActionLimited})
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].ContactID)
}

func TestCheck_AuditCompleteness(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, lvl := range contacts.TrustLevels {
		_, err := f.svc.Add(ctx, AddRequest{SenderID: "s-" + string(lvl), TrustLevel: lvl})
		require.NoError(t, err)
	}
	before, err := f.audit.Stats(ctx)
	require.NoError(t, err)

	senders := []string{"s-sovereign", "s-trusted", "s-limited", "s-blocked", "nobody"}
	for _, s := range senders {
		res, err := f.svc.Check(ctx, CheckRequest{SenderID: s})
		require.NoError(t, err)

		logs := f.entries(t, audit.Filter{SenderID: s, Limit: 1})
		require.Len(t, logs, 1)
		assert.Equal(t, res.Action(), logs[0].Action)
		assert.Equal(t, res.AuditID, logs[0].ID)
		switch {
		case res.TrustLevel == contacts.TrustLimited:
			assert.Equal(t, audit.ActionLimited, logs[0].Action)
		case res.Allowed:
			assert.Equal(t, audit.ActionAllowed, logs[0].Action)
		default:
			assert.Equal(t, audit.ActionBlocked, logs[0].Action)
		}
	}

	after, err := f.audit.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.TotalEntries+int64(len(senders)), after.TotalEntries)
}

func TestCheck_PreviewTruncated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	preview := strings.Repeat("m", 600)
	_, err := f.svc.Check(ctx, CheckRequest{SenderID: "p", MessagePreview: &preview})
	require.NoError(t, err)

	logs := f.entries(t, audit.Filter{SenderID: "p"})
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].MessagePreview)
	got := *logs[0].MessagePreview
	assert.Len(t, got, 500)
	assert.Equal(t, preview[:497], got[:497])
	assert.Equal(t, "...", got[497:])
}

func TestCheck_InvalidInputNotAudited(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, req := range []CheckRequest{
		{SenderID: "   "},
		{SenderID: strings.Repeat("1", MaxSenderIDLen+1)},
		{SenderID: "x", Channel: ptr(strings.Repeat("c", MaxChannelLen+1))},
		{SenderID: "bad\x00id"},
	} {
		_, err := f.svc.Check(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}

	st, err := f.audit.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.TotalEntries)
}

func TestCheck_NotifierFailureDoesNotChangeDecision(t *testing.T) {
	f := setup(t)
	f.pub.err = errors.New("redis down")

	res, err := f.svc.Check(context.Background(), CheckRequest{SenderID: "unknown"})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Len(t, f.pub.events, 1)
}

func TestAdd_DuplicateConflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.svc.Add(ctx, AddRequest{SenderID: "+441234567890"})
	require.NoError(t, err)
	assert.Equal(t, contacts.TrustTrusted, c.TrustLevel, "default trust level")

	_, err = f.svc.Add(ctx, AddRequest{SenderID: "  +441234567890 ", TrustLevel: contacts.TrustBlocked})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// blank channel is the global record
	_, err = f.svc.Add(ctx, AddRequest{SenderID: "+441234567890", Channel: ptr("")})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	all, err := f.svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// service still usable after a conflict
	_, err = f.svc.Add(ctx, AddRequest{SenderID: "+441234567890", Channel: ptr("sms")})
	require.NoError(t, err)

	added := f.entries(t, audit.Filter{Action: audit.ActionContactAdded})
	require.Len(t, added, 2)
	require.NotNil(t, added[1].DecisionReason)
	assert.Equal(t, "Added with trust level trusted", *added[1].DecisionReason)
}

func TestAdd_ConcurrentSamePair(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, dupes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Add(ctx, AddRequest{SenderID: "race", Channel: ptr("telegram")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadyExists):
				dupes++
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dupes)
	all, err := f.svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAdd_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, AddRequest{SenderID: ""})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.Add(ctx, AddRequest{SenderID: "x", TrustLevel: "admin"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, contacts.ErrInvalidTrustLevel)

	_, err = f.svc.Add(ctx, AddRequest{SenderID: "x", Name: ptr(strings.Repeat("n", MaxNameLen+1))})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.Add(ctx, AddRequest{SenderID: "x", Notes: ptr(strings.Repeat("n", MaxNotesLen+1))})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAdd_FreeTextStoredVerbatim(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	name := "Robert'); DROP TABLE contacts;--"
	notes := "<b>bold</b>\r\n\t\x1b[31mred"
	_, err := f.svc.Add(ctx, AddRequest{SenderID: "'; --", Name: &name, Notes: &notes, Channel: ptr("tg' OR '1'='1")})
	require.NoError(t, err)

	c, err := f.svc.Get(ctx, "'; --", ptr("tg' OR '1'='1"))
	require.NoError(t, err)
	assert.Equal(t, name, *c.Name)
	assert.Equal(t, notes, *c.Notes)

	all, err := f.svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdate_PartialAndAudit(t *testing.T) {
	f := setup(t)
	actorCtx := audit.WithActor(context.Background(), audit.Actor{Subject: "ops", Role: "admin", ClientIP: "127.0.0.1"})

	_, err := f.svc.Add(actorCtx, AddRequest{SenderID: "u", Name: ptr("Alice"), Notes: ptr("friend")})
	require.NoError(t, err)

	// details only
	c, err := f.svc.Update(actorCtx, UpdateRequest{SenderID: "u", Name: ptr("Alice B")})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", *c.Name)
	require.NotNil(t, c.Notes)
	assert.Equal(t, "friend", *c.Notes)
	assert.Equal(t, contacts.TrustTrusted, c.TrustLevel)

	// same level is not a trust change
	c, err = f.svc.Update(actorCtx, UpdateRequest{SenderID: "u", TrustLevel: ptr(contacts.TrustTrusted)})
	require.NoError(t, err)

	// explicit empty clears, level moves
	c, err = f.svc.Update(actorCtx, UpdateRequest{SenderID: "u", TrustLevel: ptr(contacts.TrustBlocked), Notes: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, c.Notes)
	assert.Equal(t, contacts.TrustBlocked, c.TrustLevel)

	updated := f.entries(t, audit.Filter{SenderID: "u", Action: audit.ActionContactUpdated})
	assert.Len(t, updated, 2)
	changed := f.entries(t, audit.Filter{SenderID: "u", Action: audit.ActionTrustChanged})
	require.Len(t, changed, 1)
	assert.Equal(t, "Trust changed from trusted to blocked", *changed[0].DecisionReason)
	assert.Equal(t, "ops", changed[0].Metadata["performed_by"])

	res, err := f.svc.Check(context.Background(), CheckRequest{SenderID: "u"})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestUpdate_NotFound(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Add(ctx, AddRequest{SenderID: "g"})
	require.NoError(t, err)

	// update is exact-pair: the global record does not satisfy a channel update
	_, err = f.svc.Update(ctx, UpdateRequest{SenderID: "g", Channel: ptr("telegram"), Name: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Update(ctx, UpdateRequest{SenderID: "g", TrustLevel: ptr(contacts.TrustLevel("root"))})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	st, err := f.audit.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalEntries, "failed updates record nothing")
}

func TestRemove_IdempotentAndSeversAudit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.svc.Add(ctx, AddRequest{SenderID: "r", Channel: ptr("sms")})
	require.NoError(t, err)
	_, err = f.svc.Check(ctx, CheckRequest{SenderID: "r", Channel: ptr("sms")})
	require.NoError(t, err)

	removed, err := f.svc.Remove(ctx, "r", ptr("sms"))
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = f.svc.Remove(ctx, "r", ptr("sms"))
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = f.svc.Get(ctx, "r", ptr("sms"))
	assert.ErrorIs(t, err, ErrNotFound)

	logs := f.entries(t, audit.Filter{SenderID: "r"})
	require.Len(t, logs, 3, "added, allowed, removed")
	for _, e := range logs {
		assert.Nil(t, e.ContactID, "audit rows survive with the contact link severed (contact %d)", c.ID)
	}
	assert.Equal(t, audit.ActionContactRemoved, logs[0].Action)
}

func TestList_ChannelFilterIncludesGlobal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, req := range []AddRequest{
		{SenderID: "a"},
		{SenderID: "b", Channel: ptr("telegram")},
		{SenderID: "c", Channel: ptr("whatsapp"), TrustLevel: contacts.TrustBlocked},
	} {
		_, err := f.svc.Add(ctx, req)
		require.NoError(t, err)
	}

	got, err := f.svc.List(ctx, ListFilter{Channel: ptr("telegram")})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].SenderID, "newest first")
	assert.Equal(t, "a", got[1].SenderID)

	blocked := contacts.TrustBlocked
	got, err = f.svc.List(ctx, ListFilter{TrustLevel: &blocked})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].SenderID)

	bad := contacts.TrustLevel("nope")
	_, err = f.svc.List(ctx, ListFilter{TrustLevel: &bad})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestService_NoStoreIsUnavailable(t *testing.T) {
	svc := NewService(nil, audit.NewService(nil))
	ctx := context.Background()

	_, err := svc.Check(ctx, CheckRequest{SenderID: "x"})
	assert.ErrorIs(t, err, store.ErrUnavailable)
	_, err = svc.Add(ctx, AddRequest{SenderID: "x"})
	assert.ErrorIs(t, err, store.ErrUnavailable)
	_, err = svc.Remove(ctx, "x", nil)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	_, err = svc.List(ctx, ListFilter{})
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestCheck_CancelledContextLeavesNoRows(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Check(ctx, CheckRequest{SenderID: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidArgument)

	st, err := f.audit.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.TotalEntries)
}
