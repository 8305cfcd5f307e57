package db

import (
	"errors"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// --- Conversations ---

func TestSaveAndHistory(t *testing.T) {
	d := openTestDB(t)

	if err := d.SaveConversation("default", "u1", "", "hi", "hello", ""); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	if err := d.SaveConversation("default", "u1", "", "how are you", "fine", ""); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	if err := d.SaveConversation("default", "u2", "", "hey", "yo", ""); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}

	turns, err := d.ConversationHistory("default", "u1", "", 10)
	if err != nil {
		t.Fatalf("ConversationHistory: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns for u1, got %d", len(turns))
	}
	if turns[0].Message != "how are you" {
		t.Errorf("expected most recent first, got %q", turns[0].Message)
	}

	all, err := d.ConversationHistory("default", "", "", 10)
	if err != nil {
		t.Fatalf("ConversationHistory (persona-wide): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 turns persona-wide, got %d", len(all))
	}
}

func TestHistoryChannelFilter(t *testing.T) {
	d := openTestDB(t)

	d.SaveConversation("default", "", "telegram_1", "a", "b", "")
	d.SaveConversation("default", "", "discord_2", "c", "d", "")

	turns, err := d.ConversationHistory("default", "", "telegram_1", 10)
	if err != nil {
		t.Fatalf("ConversationHistory: %v", err)
	}
	if len(turns) != 1 || turns[0].Channel != "telegram_1" {
		t.Errorf("channel filter failed: %+v", turns)
	}

	// User filter takes precedence over channel.
	d.SaveConversation("default", "u1", "discord_2", "e", "f", "")
	turns, _ = d.ConversationHistory("default", "u1", "telegram_1", 10)
	if len(turns) != 1 || turns[0].Message != "e" {
		t.Errorf("user precedence failed: %+v", turns)
	}
}

func TestHistoryLimit(t *testing.T) {
	d := openTestDB(t)

	for i := 0; i < 5; i++ {
		d.SaveConversation("default", "", "", "msg", "resp", "")
	}
	turns, _ := d.ConversationHistory("default", "", "", 3)
	if len(turns) != 3 {
		t.Errorf("expected 3 turns, got %d", len(turns))
	}
}

// --- Facts ---

func TestSaveFactUpsert(t *testing.T) {
	d := openTestDB(t)

	if err := d.SaveFact("default", "u1", "favorite_color", "blue", 1.0); err != nil {
		t.Fatalf("SaveFact: %v", err)
	}
	if err := d.SaveFact("default", "u1", "favorite_color", "green", 2.0); err != nil {
		t.Fatalf("SaveFact (second): %v", err)
	}

	facts, err := d.Facts("default", "favorite_color", "u1")
	if err != nil {
		t.Fatalf("Facts: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("expected exactly 1 row, got %d", len(facts))
	}
	if facts[0].Value != "green" || facts[0].Importance != 2.0 {
		t.Errorf("upsert did not replace: %+v", facts[0])
	}
	if facts[0].AccessCount != 0 {
		t.Errorf("upsert must not bump access count, got %d", facts[0].AccessCount)
	}
}

func TestSaveFactUpsertUnscoped(t *testing.T) {
	d := openTestDB(t)

	d.SaveFact("default", "", "motto", "carpe diem", 1.0)
	d.SaveFact("default", "", "motto", "memento mori", 1.0)

	facts, _ := d.Facts("default", "motto", "")
	if len(facts) != 1 {
		t.Fatalf("expected 1 unscoped row, got %d", len(facts))
	}
	if facts[0].Value != "memento mori" {
		t.Errorf("unscoped upsert did not replace: %q", facts[0].Value)
	}
}

func TestFactsScoping(t *testing.T) {
	d := openTestDB(t)

	d.SaveFact("default", "u1", "name", "Ada", 1.0)
	d.SaveFact("default", "u2", "name", "Bob", 1.0)
	d.SaveFact("default", "", "shared", "everyone sees this", 1.0)

	facts, err := d.Facts("default", "", "u1")
	if err != nil {
		t.Fatalf("Facts: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts for u1, got %d", len(facts))
	}
	for _, f := range facts {
		if f.UserID != "" && f.UserID != "u1" {
			t.Errorf("leaked fact belonging to %q", f.UserID)
		}
	}
}

func TestFactsOrdering(t *testing.T) {
	d := openTestDB(t)

	d.SaveFact("default", "", "low", "x", 0.5)
	d.SaveFact("default", "", "high", "y", 5.0)
	d.SaveFact("default", "", "mid", "z", 2.0)

	facts, _ := d.Facts("default", "", "")
	if len(facts) != 3 {
		t.Fatalf("expected 3 facts, got %d", len(facts))
	}
	if facts[0].Key != "high" || facts[1].Key != "mid" || facts[2].Key != "low" {
		t.Errorf("importance ordering wrong: %s %s %s", facts[0].Key, facts[1].Key, facts[2].Key)
	}
}

func TestTouchFact(t *testing.T) {
	d := openTestDB(t)

	d.SaveFact("default", "", "k", "v", 1.0)
	facts, _ := d.Facts("default", "k", "")
	if err := d.TouchFact(facts[0].ID); err != nil {
		t.Fatalf("TouchFact: %v", err)
	}

	facts, _ = d.Facts("default", "k", "")
	if facts[0].AccessCount != 1 {
		t.Errorf("expected access count 1, got %d", facts[0].AccessCount)
	}
	if facts[0].LastAccessed == "" {
		t.Error("last_accessed not stamped")
	}
}

func TestContextFor(t *testing.T) {
	d := openTestDB(t)

	for i := 0; i < 5; i++ {
		d.SaveConversation("default", "u1", "", "m", "r", "")
	}
	for _, k := range []string{"a", "b", "c"} {
		d.SaveFact("default", "u1", k, "v", 1.0)
	}

	ctx, err := d.ContextFor("default", "u1", 3, 2)
	if err != nil {
		t.Fatalf("ContextFor: %v", err)
	}
	if len(ctx.Turns) != 3 || len(ctx.Facts) != 2 {
		t.Errorf("truncation wrong: %d turns, %d facts", len(ctx.Turns), len(ctx.Facts))
	}
	if ctx.TotalTurns != 5 || ctx.TotalFacts != 3 {
		t.Errorf("totals must be untruncated: %d turns, %d facts", ctx.TotalTurns, ctx.TotalFacts)
	}
}

// --- Tasks ---

func TestInsertAndListTasks(t *testing.T) {
	d := openTestDB(t)

	task, err := d.InsertTask("default", "u1", "reminder", `{"text":"buy milk"}`, "once", FormatTime(time.Now()))
	if err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	if task.Status != TaskPending {
		t.Errorf("expected pending, got %q", task.Status)
	}
	if task.NextRun == "" {
		t.Error("next_run not stored")
	}

	tasks, err := d.ListTasks("default", TaskPending, "u1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Errorf("filters failed: %+v", tasks)
	}

	none, _ := d.ListTasks("default", TaskCompleted, "")
	if len(none) != 0 {
		t.Errorf("expected no completed tasks, got %d", len(none))
	}
}

func TestInsertTaskNoRecurrence(t *testing.T) {
	d := openTestDB(t)

	task, err := d.InsertTask("default", "", "custom", `{}`, "", "")
	if err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
	if task.NextRun != "" {
		t.Errorf("expected empty next_run, got %q", task.NextRun)
	}

	due, _ := d.DueTasks(FormatTime(time.Now().Add(24 * time.Hour)))
	if len(due) != 0 {
		t.Errorf("task without cursor must never be due, got %d", len(due))
	}
}

func TestDueTasks(t *testing.T) {
	d := openTestDB(t)

	now := time.Now()
	past, _ := d.InsertTask("default", "", "reminder", `{}`, "once", FormatTime(now.Add(-time.Minute)))
	d.InsertTask("default", "", "reminder", `{}`, "daily", FormatTime(now.Add(time.Hour)))

	due, err := d.DueTasks(FormatTime(now))
	if err != nil {
		t.Fatalf("DueTasks: %v", err)
	}
	if len(due) != 1 || due[0].ID != past.ID {
		t.Errorf("expected only the past task, got %+v", due)
	}
}

func TestDueTasksSkipRunningAndCancelled(t *testing.T) {
	d := openTestDB(t)

	now := time.Now()
	running, _ := d.InsertTask("default", "", "chat", `{}`, "once", FormatTime(now.Add(-time.Minute)))
	cancelled, _ := d.InsertTask("default", "", "chat", `{}`, "once", FormatTime(now.Add(-time.Minute)))

	d.MarkTaskRunning(running.ID)
	d.CancelTask(cancelled.ID)

	due, _ := d.DueTasks(FormatTime(now))
	if len(due) != 0 {
		t.Errorf("running/cancelled tasks must not be due: %+v", due)
	}
}

func TestFinishTaskRecurring(t *testing.T) {
	d := openTestDB(t)

	now := time.Now()
	task, _ := d.InsertTask("default", "", "chat", `{}`, "hourly", FormatTime(now.Add(-time.Minute)))

	next := FormatTime(now.Add(time.Hour))
	if err := d.FinishTask(task.ID, TaskCompleted, "done", next); err != nil {
		t.Fatalf("FinishTask: %v", err)
	}

	got, _ := d.GetTask(task.ID)
	if got.Status != TaskCompleted || got.Result != "done" {
		t.Errorf("outcome not recorded: %+v", got)
	}
	if got.NextRun != next {
		t.Errorf("cursor not advanced: %q", got.NextRun)
	}
	if got.RunCount != 1 {
		t.Errorf("expected run count 1, got %d", got.RunCount)
	}

	// Re-armed: due again once the new cursor elapses.
	due, _ := d.DueTasks(FormatTime(now.Add(2 * time.Hour)))
	if len(due) != 1 {
		t.Errorf("completed recurring task should be due after cursor elapses, got %d", len(due))
	}
}

func TestFinishTaskOneShot(t *testing.T) {
	d := openTestDB(t)

	task, _ := d.InsertTask("default", "", "reminder", `{}`, "once", FormatTime(time.Now()))
	d.FinishTask(task.ID, TaskCompleted, "Reminder: buy milk", "")

	got, _ := d.GetTask(task.ID)
	if got.NextRun != "" {
		t.Errorf("one-shot cursor must clear, got %q", got.NextRun)
	}
	due, _ := d.DueTasks(FormatTime(time.Now().Add(time.Hour)))
	if len(due) != 0 {
		t.Errorf("retired task must not be due again")
	}
}

func TestCancelTask(t *testing.T) {
	d := openTestDB(t)

	task, _ := d.InsertTask("default", "", "chat", `{}`, "daily", FormatTime(time.Now()))
	if err := d.CancelTask(task.ID); err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	got, _ := d.GetTask(task.ID)
	if got.Status != TaskCancelled || got.NextRun != "" {
		t.Errorf("cancel did not retire the task: %+v", got)
	}
}

func TestCancelRunningTaskRefused(t *testing.T) {
	d := openTestDB(t)

	task, _ := d.InsertTask("default", "", "chat", `{}`, "once", FormatTime(time.Now()))
	d.MarkTaskRunning(task.ID)

	err := d.CancelTask(task.ID)
	if !errors.Is(err, ErrTaskRunning) {
		t.Errorf("expected ErrTaskRunning, got %v", err)
	}
}

func TestCancelMissingTask(t *testing.T) {
	d := openTestDB(t)

	err := d.CancelTask(999)
	if !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

// --- Bot tokens ---

func TestBotTokenUpsert(t *testing.T) {
	d := openTestDB(t)

	d.SaveBotToken("u1", "discord", "tok-1")
	d.SaveBotToken("u1", "discord", "tok-2")
	d.SaveBotToken("u1", "telegram", "tok-3")

	tokens, err := d.BotTokens("u1")
	if err != nil {
		t.Fatalf("BotTokens: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	for _, tok := range tokens {
		if tok.BotType == "discord" && tok.Token != "tok-2" {
			t.Errorf("upsert did not replace discord token: %q", tok.Token)
		}
	}
}

func TestDisableBotToken(t *testing.T) {
	d := openTestDB(t)

	d.SaveBotToken("u1", "discord", "tok")
	d.DisableBotToken("u1", "discord")

	tokens, _ := d.BotTokens("u1")
	if len(tokens) != 0 {
		t.Errorf("disabled token still listed: %+v", tokens)
	}

	// Saving again reactivates.
	d.SaveBotToken("u1", "discord", "tok")
	tokens, _ = d.BotTokens("u1")
	if len(tokens) != 1 {
		t.Errorf("reactivation failed")
	}
}
