package conflict

import (
	"testing"
	"time"

	"feltsync/internal/entity"
	"feltsync/internal/remote"
)

func contractsDescriptor() entity.Descriptor {
	return entity.Descriptor{
		Name:           "contracts",
		Collection:     "contracts",
		DependsOn:      []string{"clients"},
		ApprovalFields: []string{"approved"},
	}
}

func millis(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func TestResolveInsertsFirstSeenDocument(t *testing.T) {
	resolver := NewResolver(nil)
	doc := remote.Document{
		remote.KeyLocalID:   "contract-1",
		remote.KeyUpdatedAt: millis(time.Now()),
		"approved":          true,
	}

	res := resolver.Resolve(contractsDescriptor(), nil, false, doc)
	if res.Action != ActionInsert {
		t.Fatalf("expected insert, got %s", res.Action)
	}
	if res.Record[remote.KeyLocalID] != "contract-1" {
		t.Fatalf("record missing identity: %#v", res.Record)
	}
	if res.RequeuePush {
		t.Fatal("first-seen insert must not re-queue a push")
	}
}

func TestResolveNewerLocalRecordWins(t *testing.T) {
	resolver := NewResolver(nil)
	now := time.Now()
	local := map[string]any{
		remote.KeyLocalID:   "contract-1",
		remote.KeyUpdatedAt: millis(now),
		"value":             float64(250),
	}
	doc := remote.Document{
		remote.KeyLocalID:   "contract-1",
		remote.KeyUpdatedAt: millis(now.Add(-time.Minute)),
		"value":             float64(100),
	}

	res := resolver.Resolve(contractsDescriptor(), local, true, doc)
	if res.Action != ActionKeepLocal {
		t.Fatalf("expected keep_local, got %s", res.Action)
	}
	if res.Record != nil {
		t.Fatal("keep_local must not carry a record")
	}
}

func TestResolveEqualTimestampsFavorRemote(t *testing.T) {
	resolver := NewResolver(nil)
	now := time.Now()
	local := map[string]any{
		remote.KeyLocalID:   "contract-1",
		remote.KeyUpdatedAt: millis(now),
		"value":             float64(250),
	}
	doc := remote.Document{
		remote.KeyLocalID:   "contract-1",
		remote.KeyUpdatedAt: millis(now),
		"value":             float64(100),
	}

	res := resolver.Resolve(contractsDescriptor(), local, true, doc)
	if res.Action != ActionApplyRemote {
		t.Fatalf("expected apply_remote on tie, got %s", res.Action)
	}
	if res.Record["value"] != float64(100) {
		t.Fatalf("expected remote value to win the tie, got %v", res.Record["value"])
	}
}

func TestResolvePreservesLocalApprovalAndRequeues(t *testing.T) {
	resolver := NewResolver(nil)
	now := time.Now()
	local := map[string]any{
		remote.KeyLocalID:   "contract-1",
		remote.KeyUpdatedAt: millis(now.Add(-time.Hour)),
		"approved":          true,
		"value":             float64(250),
	}
	doc := remote.Document{
		remote.KeyLocalID:   "contract-1",
		remote.KeyUpdatedAt: millis(now),
		"approved":          false,
		"value":             float64(300),
	}

	res := resolver.Resolve(contractsDescriptor(), local, true, doc)
	if res.Action != ActionApplyRemote {
		t.Fatalf("expected apply_remote, got %s", res.Action)
	}
	if res.Record["approved"] != true {
		t.Fatal("local approval state must survive the pull")
	}
	if res.Record["value"] != float64(300) {
		t.Fatalf("non-approval fields follow last-write-wins, got %v", res.Record["value"])
	}
	if !res.RequeuePush {
		t.Fatal("preserved approval state must re-queue a push")
	}
	if len(res.PreservedFields) != 1 || res.PreservedFields[0] != "approved" {
		t.Fatalf("unexpected preserved fields: %v", res.PreservedFields)
	}
}

func TestResolveMatchingApprovalDoesNotRequeue(t *testing.T) {
	resolver := NewResolver(nil)
	now := time.Now()
	local := map[string]any{
		remote.KeyLocalID:   "contract-1",
		remote.KeyUpdatedAt: millis(now.Add(-time.Hour)),
		"approved":          true,
	}
	doc := remote.Document{
		remote.KeyLocalID:   "contract-1",
		remote.KeyUpdatedAt: millis(now),
		"approved":          true,
		"value":             float64(300),
	}

	res := resolver.Resolve(contractsDescriptor(), local, true, doc)
	if res.RequeuePush {
		t.Fatal("identical approval state must not re-queue")
	}
	if len(res.PreservedFields) != 0 {
		t.Fatalf("unexpected preserved fields: %v", res.PreservedFields)
	}
}

func TestResolveMissingLocalTimestampYieldsToRemote(t *testing.T) {
	resolver := NewResolver(nil)
	local := map[string]any{
		remote.KeyLocalID: "contract-1",
		"value":           float64(250),
	}
	doc := remote.Document{
		remote.KeyLocalID:   "contract-1",
		remote.KeyUpdatedAt: millis(time.Now()),
		"value":             float64(300),
	}

	res := resolver.Resolve(contractsDescriptor(), local, true, doc)
	if res.Action != ActionApplyRemote {
		t.Fatalf("expected apply_remote when local has no timestamp, got %s", res.Action)
	}
}

func TestValuesEqualToleratesNumericWidening(t *testing.T) {
	if !valuesEqual(int64(5), float64(5)) {
		t.Fatal("int64 and float64 of the same value should compare equal")
	}
	if valuesEqual(float64(5), "5") {
		t.Fatal("number and string must not compare equal")
	}
	if !valuesEqual("approved", "approved") {
		t.Fatal("equal strings should compare equal")
	}
}
