package state

import (
	"testing"
	"time"
)

func createRun(t *testing.T, db *DB, id string, startedAt time.Time) *Run {
	t.Helper()
	r := &Run{ID: id, InputDir: "data/in", Executor: "threads", StartedAt: startedAt, Status: RunRunning}
	if err := db.CreateRun(r); err != nil {
		t.Fatalf("CreateRun(%s) failed: %v", id, err)
	}
	return r
}

func TestRunLifecycle(t *testing.T) {
	db := setupTestDB(t)
	createRun(t, db, "a1b2c3d4", time.Now())

	got, err := db.GetRun("a1b2c3d4")
	if err != nil || got == nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != RunRunning || got.FinishedAt != nil || got.Executor != "threads" {
		t.Errorf("unexpected run %+v", got)
	}

	if err := db.FinishRun("a1b2c3d4", RunCompleted); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	got, _ = db.GetRun("a1b2c3d4")
	if got.Status != RunCompleted || got.FinishedAt == nil {
		t.Errorf("run not finished: %+v", got)
	}

	if err := db.FinishRun("missing", RunFailed); err == nil {
		t.Error("expected error finishing unknown run")
	}
	if r, err := db.GetRun("missing"); r != nil || err != nil {
		t.Errorf("GetRun(missing) = %v, %v; want nil, nil", r, err)
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"first", "second", "third"} {
		createRun(t, db, id, base.Add(time.Duration(i)*time.Minute))
	}

	all, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "third" || all[2].ID != "first" {
		t.Errorf("ListRuns(0) order wrong: %+v", all)
	}

	limited, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "third" {
		t.Errorf("ListRuns(2) = %+v", limited)
	}
}

func TestTaskRuns(t *testing.T) {
	db := setupTestDB(t)
	createRun(t, db, "run1", time.Now())

	now := time.Now()
	records := []*TaskRun{
		{Hash: "h1", RunID: "run1", TaskID: "digest:KLF4", Kind: "digest", Entity: "KLF4", Output: "d/KLF4.peptides.txt", OutputDigest: "abc", Status: TaskRunDone, StartedAt: now, CompletedAt: &now},
		{Hash: "h2", RunID: "run1", TaskID: "count:KLF4", Kind: "count", Entity: "KLF4", Output: "d/KLF4.count.tsv", Status: TaskRunFailed, Error: "boom", StartedAt: now.Add(time.Second)},
	}
	for _, r := range records {
		if err := db.RecordTaskRun(r); err != nil {
			t.Fatalf("RecordTaskRun failed: %v", err)
		}
	}

	got, err := db.GetTaskRun("h1")
	if err != nil || got == nil {
		t.Fatalf("GetTaskRun failed: %v", err)
	}
	if got.Entity != "KLF4" || got.OutputDigest != "abc" || got.CompletedAt == nil {
		t.Errorf("unexpected task run %+v", got)
	}

	list, err := db.ListTaskRuns("run1")
	if err != nil {
		t.Fatalf("ListTaskRuns failed: %v", err)
	}
	if len(list) != 2 || list[0].TaskID != "digest:KLF4" || list[1].Error != "boom" {
		t.Errorf("ListTaskRuns = %+v", list)
	}

	// Re-recording the same hash replaces the row.
	records[1].Status = TaskRunDone
	records[1].Error = ""
	if err := db.RecordTaskRun(records[1]); err != nil {
		t.Fatalf("RecordTaskRun (replace) failed: %v", err)
	}
	got, _ = db.GetTaskRun("h2")
	if got.Status != TaskRunDone || got.Error != "" {
		t.Errorf("record not replaced: %+v", got)
	}
}

func TestRecoverInterruptedRuns(t *testing.T) {
	db := setupTestDB(t)
	createRun(t, db, "stale", time.Now().Add(-time.Minute))
	createRun(t, db, "done", time.Now())
	if err := db.FinishRun("done", RunCompleted); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	if err := db.RecordTaskRun(&TaskRun{Hash: "h", RunID: "stale", TaskID: "plot:SOX2", Kind: "plot", Output: "o", Status: TaskRunRunning, StartedAt: time.Now()}); err != nil {
		t.Fatalf("RecordTaskRun failed: %v", err)
	}

	runs, err := db.RecoverInterruptedRuns()
	if err != nil {
		t.Fatalf("RecoverInterruptedRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "stale" || runs[0].Status != RunInterrupted {
		t.Fatalf("recovered %+v", runs)
	}

	r, _ := db.GetRun("stale")
	if r.Status != RunInterrupted || r.FinishedAt == nil {
		t.Errorf("run not marked interrupted: %+v", r)
	}
	tr, _ := db.GetTaskRun("h")
	if tr.Status != TaskRunFailed || tr.Error != "interrupted" {
		t.Errorf("task run not failed: %+v", tr)
	}

	again, err := db.RecoverInterruptedRuns()
	if err != nil || len(again) != 0 {
		t.Errorf("second recovery = %v, %v; want none", again, err)
	}
}
