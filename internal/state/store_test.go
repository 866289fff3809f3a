package state

import (
	"reflect"
	"testing"

	"taxmatch/pkg/domain"
)

func request(id string, status domain.RequestStatus) domain.ServiceRequest {
	return domain.ServiceRequest{ID: id, Title: "req " + id, Status: status}
}

func requestIDs(items []domain.ServiceRequest) []string {
	ids := make([]string, 0, len(items))
	for _, r := range items {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestReplaceOverwritesCollectionInGivenOrder(t *testing.T) {
	s := New()
	s.Requests.Replace([]domain.ServiceRequest{request("a", domain.StatusOpen)})
	s.Requests.Replace([]domain.ServiceRequest{
		request("c", domain.StatusOpen),
		request("b", domain.StatusCompleted),
	})

	got := requestIDs(s.Requests.Snapshot().Items)
	if !reflect.DeepEqual(got, []string{"c", "b"}) {
		t.Fatalf("items = %v, want [c b]", got)
	}
}

func TestUpsertInsertsWhenAbsent(t *testing.T) {
	s := New()
	s.Requests.Upsert(request("a", domain.StatusOpen))
	items := s.Requests.Snapshot().Items
	if len(items) != 1 || items[0].ID != "a" {
		t.Fatalf("unexpected items: %v", items)
	}
}

func TestUpsertReplacesInPlacePreservingPosition(t *testing.T) {
	s := New()
	s.Requests.Replace([]domain.ServiceRequest{
		request("a", domain.StatusOpen),
		request("b", domain.StatusOpen),
		request("c", domain.StatusOpen),
	})

	updated := request("b", domain.StatusInProgress)
	updated.ProviderID = "p1"
	s.Requests.Upsert(updated)

	items := s.Requests.Snapshot().Items
	if got := requestIDs(items); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("order = %v, want [a b c]", got)
	}
	if items[1].Status != domain.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", items[1].Status)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := New()
	item := request("a", domain.StatusOpen)
	s.Requests.Upsert(item)
	once := s.Requests.Snapshot().Items
	s.Requests.Upsert(item)
	twice := s.Requests.Snapshot().Items
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("double upsert changed collection: %v vs %v", once, twice)
	}
}

func TestPrependPutsNewItemFirst(t *testing.T) {
	s := New()
	s.Requests.Replace([]domain.ServiceRequest{request("old", domain.StatusOpen)})
	s.Requests.Prepend(request("new", domain.StatusOpen))

	got := requestIDs(s.Requests.Snapshot().Items)
	if !reflect.DeepEqual(got, []string{"new", "old"}) {
		t.Fatalf("order = %v, want [new old]", got)
	}
}

func TestPrependOfExistingIDReplacesInPlace(t *testing.T) {
	s := New()
	s.Requests.Replace([]domain.ServiceRequest{
		request("a", domain.StatusOpen),
		request("b", domain.StatusOpen),
	})
	s.Requests.Prepend(request("b", domain.StatusCompleted))

	items := s.Requests.Snapshot().Items
	if got := requestIDs(items); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("order = %v, want [a b]", got)
	}
	if items[1].Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", items[1].Status)
	}
}

func TestRemoveDeletesAndIsNoOpWhenAbsent(t *testing.T) {
	s := New()
	s.Requests.Replace([]domain.ServiceRequest{
		request("a", domain.StatusOpen),
		request("b", domain.StatusOpen),
	})
	s.Requests.Remove("a")
	s.Requests.Remove("missing")

	got := requestIDs(s.Requests.Snapshot().Items)
	if !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("items = %v, want [b]", got)
	}
}

func TestLoadingAndErrorFlagsAreIndependent(t *testing.T) {
	s := New()
	s.Requests.SetError("boom")
	s.Requests.SetLoading(true)

	snap := s.Requests.Snapshot()
	if !snap.Loading || snap.Err != "boom" {
		t.Fatalf("snapshot = %+v, want loading with error intact", snap)
	}

	// finishing a load does not implicitly clear a stale error
	s.Requests.SetLoading(false)
	snap = s.Requests.Snapshot()
	if snap.Loading || snap.Err != "boom" {
		t.Fatalf("snapshot = %+v, want stale error after loading", snap)
	}

	s.Requests.SetError("")
	if snap := s.Requests.Snapshot(); snap.Err != "" {
		t.Fatalf("error = %q, want cleared", snap.Err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.Requests.Replace([]domain.ServiceRequest{request("a", domain.StatusOpen)})
	snap := s.Requests.Snapshot()
	snap.Items[0].Title = "mutated"
	if got, _ := s.Requests.Get("a"); got.Title == "mutated" {
		t.Fatalf("snapshot mutation leaked into store")
	}
}

func TestCurrentUserLifecycle(t *testing.T) {
	s := New()
	if _, ok := s.CurrentUser(); ok {
		t.Fatalf("expected no user on fresh store")
	}
	s.SetCurrentUser(domain.User{ID: "u1", Role: domain.RoleSeeker})
	user, ok := s.CurrentUser()
	if !ok || user.ID != "u1" {
		t.Fatalf("user = %+v ok=%v, want u1", user, ok)
	}
	s.ClearCurrentUser()
	if _, ok := s.CurrentUser(); ok {
		t.Fatalf("expected no user after clear")
	}
}
