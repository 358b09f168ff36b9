package timeline

import "testing"

func TestRecordAndForRequest(t *testing.T) {
	s := NewStore(10)
	s.Record(Event{RequestID: "r1", Stage: StageAdmitted, TenantID: "t1"})
	s.Record(Event{RequestID: "r2", Stage: StageAdmitted, TenantID: "t1"})
	s.Record(Event{RequestID: "r1", Stage: StageQueued, TenantID: "t1"})

	events := s.ForRequest("r1")
	if len(events) != 2 {
		t.Fatalf("expected 2 events for r1, got %d", len(events))
	}
	if events[0].Stage != StageAdmitted || events[1].Stage != StageQueued {
		t.Fatalf("unexpected stage order: %+v", events)
	}
}

func TestRecordEvictsOldestAtCapacity(t *testing.T) {
	s := NewStore(2)
	s.Record(Event{RequestID: "r1", Stage: StageAdmitted})
	s.Record(Event{RequestID: "r2", Stage: StageAdmitted})
	s.Record(Event{RequestID: "r3", Stage: StageAdmitted})

	all := s.Recent(10)
	if len(all) != 2 {
		t.Fatalf("expected capacity to cap at 2, got %d", len(all))
	}
	if all[0].RequestID != "r2" || all[1].RequestID != "r3" {
		t.Fatalf("expected oldest event evicted, got %+v", all)
	}
}

func TestRecentReturnsLastN(t *testing.T) {
	s := NewStore(10)
	for _, id := range []string{"r1", "r2", "r3"} {
		s.Record(Event{RequestID: id, Stage: StageAdmitted})
	}
	last := s.Recent(2)
	if len(last) != 2 || last[0].RequestID != "r2" || last[1].RequestID != "r3" {
		t.Fatalf("unexpected recent events: %+v", last)
	}
}
