package delivery

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/database"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/staging"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/codes"
)

// fakeQuerier keeps message rows keyed by correlation id and records the
// delivery-side writes. Embedding the interface keeps it compiling when
// unrelated queries are added.
type fakeQuerier struct {
	database.Querier

	messages map[string]*database.Message

	pendingSince []database.SetMessagePendingSinceParams
	finalized    []database.FinalizeMessageDeliveryParams
	stagingGone  []database.SetMessageStagingRemovedParams
}

// seed registers a sent message row for the given correlation id.
func (f *fakeQuerier) seed(providerMsgID string) {
	id := providerMsgID
	f.messages[providerMsgID] = &database.Message{
		ID:                int64(len(f.messages) + 1),
		Status:            codes.MsgStatusSent,
		ProviderMessageID: &id,
	}
}

func (f *fakeQuerier) GetMessageByProviderID(_ context.Context, providerMsgID string) (database.Message, error) {
	msg, ok := f.messages[providerMsgID]
	if !ok {
		return database.Message{}, pgx.ErrNoRows
	}
	return *msg, nil
}

func (f *fakeQuerier) SetMessagePendingSince(_ context.Context, arg database.SetMessagePendingSinceParams) error {
	f.pendingSince = append(f.pendingSince, arg)
	if msg, ok := f.messages[arg.ProviderMessageID]; ok && msg.PendingSince == nil {
		since := arg.PendingSince
		msg.PendingSince = &since
	}
	return nil
}

func (f *fakeQuerier) FinalizeMessageDelivery(_ context.Context, arg database.FinalizeMessageDeliveryParams) error {
	f.finalized = append(f.finalized, arg)
	if msg, ok := f.messages[arg.ProviderMessageID]; ok {
		msg.Status = arg.Status
		msg.DeliveryReport = arg.DeliveryReport
		receivedAt := arg.ResponseReceivedAt
		msg.ResponseReceivedAt = &receivedAt
	}
	return nil
}

func (f *fakeQuerier) SetMessageStagingRemoved(_ context.Context, arg database.SetMessageStagingRemovedParams) error {
	f.stagingGone = append(f.stagingGone, arg)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeQuerier, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	q := &fakeQuerier{messages: map[string]*database.Message{}}
	engine := NewEngine(q, staging.NewStore(rdb, time.Hour))
	engine.now = func() time.Time {
		return time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)
	}
	return engine, q, mr
}

func TestHandlePushPartialThenFinal(t *testing.T) {
	t.Parallel()

	engine, q, mr := newTestEngine(t)
	ctx := context.Background()
	q.seed("MSG1")

	if got := engine.HandlePush(ctx, "id:MSG1"); got != OutcomePartial {
		t.Fatalf("first push outcome = %v, want partial", got)
	}
	if !mr.Exists("pending:MSG1") {
		t.Fatal("expected partial push to be staged under pending:MSG1")
	}
	if len(q.pendingSince) != 1 || q.pendingSince[0].ProviderMessageID != "MSG1" {
		t.Fatalf("pendingSince writes = %+v, want one for MSG1", q.pendingSince)
	}

	raw := "id:MSG1 sub:001 dlvrd:001 stat:DELIVRD err:000"
	if got := engine.HandlePush(ctx, raw); got != OutcomeFinalized {
		t.Fatalf("second push outcome = %v, want finalized", got)
	}

	if len(q.finalized) != 1 {
		t.Fatalf("finalized writes = %d, want 1", len(q.finalized))
	}
	fin := q.finalized[0]
	if fin.ProviderMessageID != "MSG1" {
		t.Errorf("finalized id = %q, want MSG1", fin.ProviderMessageID)
	}
	if fin.Status != codes.MsgStatusDelivered {
		t.Errorf("finalized status = %q, want delivered", fin.Status)
	}
	var report Report
	if err := json.Unmarshal(fin.DeliveryReport, &report); err != nil {
		t.Fatalf("stored report is not valid JSON: %v", err)
	}
	if report.FinalStatus != codes.ReportStatusDelivered {
		t.Errorf("stored report status = %q, want DELIVRD", report.FinalStatus)
	}

	// Exactly one permanent record; the ephemeral copy is gone.
	if mr.Exists("pending:MSG1") {
		t.Error("expected staged entry to be removed after finalization")
	}
	if len(q.stagingGone) != 1 || q.stagingGone[0].ProviderMessageID != "MSG1" {
		t.Errorf("stagingRemoved writes = %+v, want one for MSG1", q.stagingGone)
	}
}

func TestHandlePushFinalWithoutPartial(t *testing.T) {
	t.Parallel()

	engine, q, mr := newTestEngine(t)
	ctx := context.Background()
	q.seed("MSG2")

	raw := "id:MSG2 stat:UNDELIV err:011"
	if got := engine.HandlePush(ctx, raw); got != OutcomeFinalized {
		t.Fatalf("outcome = %v, want finalized", got)
	}

	if len(q.finalized) != 1 {
		t.Fatalf("finalized writes = %d, want 1", len(q.finalized))
	}
	if q.finalized[0].Status != codes.MsgStatusFailed {
		t.Errorf("status = %q, want failed for UNDELIV", q.finalized[0].Status)
	}
	// No staged entry existed, so no removal stamp either.
	if len(q.stagingGone) != 0 {
		t.Errorf("stagingRemoved writes = %+v, want none", q.stagingGone)
	}
	if mr.Exists("pending:MSG2") {
		t.Error("final-only push must not leave a staged entry")
	}
}

func TestHandlePushFinalIsIdempotent(t *testing.T) {
	t.Parallel()

	engine, q, _ := newTestEngine(t)
	ctx := context.Background()
	q.seed("MSG3")

	raw := "id:MSG3 stat:DELIVRD"
	engine.HandlePush(ctx, raw)
	engine.HandlePush(ctx, raw)

	if len(q.finalized) != 2 {
		t.Fatalf("finalized writes = %d, want 2 identical overwrites", len(q.finalized))
	}
	if q.finalized[0].Status != q.finalized[1].Status {
		t.Error("re-delivered report must overwrite with the same status")
	}
	if len(q.stagingGone) != 0 {
		t.Errorf("stagingRemoved writes = %+v, want none without a staged entry", q.stagingGone)
	}
}

func TestHandlePushRedeliveredFinalKeepsFirstTimestamp(t *testing.T) {
	t.Parallel()

	engine, q, _ := newTestEngine(t)
	ctx := context.Background()
	q.seed("MSG7")

	first := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return first }
	engine.HandlePush(ctx, "id:MSG7 stat:DELIVRD")

	// The operator re-delivers the same report an hour later.
	engine.now = func() time.Time { return first.Add(time.Hour) }
	engine.HandlePush(ctx, "id:MSG7 stat:DELIVRD")

	if len(q.finalized) != 2 {
		t.Fatalf("finalized writes = %d, want 2", len(q.finalized))
	}
	if !q.finalized[1].ResponseReceivedAt.Equal(first) {
		t.Errorf("re-delivered report stamped %v, want the first receipt time %v",
			q.finalized[1].ResponseReceivedAt, first)
	}
}

func TestHandlePushFinalUnknownCorrelationID(t *testing.T) {
	t.Parallel()

	engine, q, mr := newTestEngine(t)

	if got := engine.HandlePush(context.Background(), "id:GHOST stat:DELIVRD"); got != OutcomeFinalized {
		t.Fatalf("outcome = %v, want finalized", got)
	}
	if len(q.finalized) != 0 {
		t.Errorf("finalized writes = %d, want none for an unknown id", len(q.finalized))
	}
	if len(q.stagingGone) != 0 {
		t.Errorf("stagingRemoved writes = %+v, want none", q.stagingGone)
	}
	if len(mr.Keys()) != 0 {
		t.Error("unknown final report must not stage anything")
	}
}

func TestHandlePushPartialUnknownStillStaged(t *testing.T) {
	t.Parallel()

	engine, _, mr := newTestEngine(t)

	// A partial can outrun the submit acknowledgment write; it is staged
	// so the raw push survives until the row exists.
	if got := engine.HandlePush(context.Background(), "id:EARLY"); got != OutcomePartial {
		t.Fatalf("outcome = %v, want partial", got)
	}
	if !mr.Exists("pending:EARLY") {
		t.Error("partial for an unknown id must still be staged")
	}
}

func TestHandlePushUnparseable(t *testing.T) {
	t.Parallel()

	engine, q, mr := newTestEngine(t)

	if got := engine.HandlePush(context.Background(), "free-form operator noise"); got != OutcomeUnparseable {
		t.Fatalf("outcome = %v, want unparseable", got)
	}
	if len(q.pendingSince) != 0 || len(q.finalized) != 0 {
		t.Error("unparseable push must not touch persisted state")
	}
	if len(mr.Keys()) != 0 {
		t.Error("unparseable push must not stage anything")
	}
}

func TestHandlePushRestagingRefreshes(t *testing.T) {
	t.Parallel()

	engine, q, mr := newTestEngine(t)
	ctx := context.Background()

	engine.HandlePush(ctx, "id:MSG4")
	engine.HandlePush(ctx, "id:MSG4 sub:001")

	// One entry, refreshed content; pending_since is stamped with a guarded
	// update each time, which the store makes a no-op after the first.
	stored, err := mr.Get("pending:MSG4")
	if err != nil {
		t.Fatalf("staged entry missing: %v", err)
	}
	var entry staging.Entry
	if err := json.Unmarshal([]byte(stored), &entry); err != nil {
		t.Fatalf("staged entry is not valid JSON: %v", err)
	}
	if entry.RawNotification != "id:MSG4 sub:001" {
		t.Errorf("staged raw = %q, want the latest push", entry.RawNotification)
	}
	if len(q.pendingSince) != 2 {
		t.Errorf("pendingSince attempts = %d, want 2", len(q.pendingSince))
	}
}
