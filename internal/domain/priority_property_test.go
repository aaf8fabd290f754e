package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"
)

func genValidPriority() *rapid.Generator[Priority] {
	return rapid.SampledFrom([]Priority{PriorityLow, PriorityMedium, PriorityHigh})
}

func genValidStatus() *rapid.Generator[Status] {
	return rapid.SampledFrom([]Status{StatusTodo, StatusInProgress, StatusDone})
}

// TestPriority_InvalidPrioritiesFail tests that anything outside the three levels is rejected
func TestPriority_InvalidPrioritiesFail(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Filter(func(s string) bool {
			return s != "low" && s != "medium" && s != "high"
		}).Draw(t, "priority")

		err := Priority(s).Validate()
		if err == nil {
			t.Fatalf("priority %q should fail validation", s)
		}
		if !strings.Contains(err.Error(), "must be low, medium, or high") {
			t.Errorf("error should mention valid values: %v", err)
		}
	})
}

// TestPriority_OrderingIsStrict tests that IsHigherThan is a strict order
func TestPriority_OrderingIsStrict(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genValidPriority().Draw(t, "a")
		b := genValidPriority().Draw(t, "b")

		if a.IsHigherThan(a) {
			t.Fatalf("%s should not be higher than itself", a)
		}
		if a.IsHigherThan(b) && b.IsHigherThan(a) {
			t.Fatalf("%s and %s are both higher than each other", a, b)
		}
		if a != b && !a.IsHigherThan(b) && !b.IsHigherThan(a) {
			t.Fatalf("%s and %s are unordered", a, b)
		}
	})
}

// TestTask_TitleLengthBoundary tests the title length rule on arbitrary titles
func TestTask_TitleLengthBoundary(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		title := rapid.StringMatching(`[a-zA-Zé ]{0,260}`).Draw(t, "title")
		task := Task{
			Title:    title,
			Status:   genValidStatus().Draw(t, "status"),
			Priority: genValidPriority().Draw(t, "priority"),
		}

		trimmed := strings.TrimSpace(title)
		want := trimmed != "" && utf8.RuneCountInString(trimmed) <= MaxTitleLength
		if got := task.Validate() == nil; got != want {
			t.Fatalf("Validate(%q) ok=%v, want %v", title, got, want)
		}
	})
}

// TestTaskPatch_ApplyIsIdempotent tests that applying a patch twice equals applying it once
func TestTaskPatch_ApplyIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		task := NewTask("user", rapid.StringMatching(`[a-z]{1,20}`).Draw(t, "title"))

		var patch TaskPatch
		if rapid.Bool().Draw(t, "set_status") {
			s := genValidStatus().Draw(t, "status")
			patch.Status = &s
		}
		if rapid.Bool().Draw(t, "set_priority") {
			p := genValidPriority().Draw(t, "priority")
			patch.Priority = &p
		}
		if rapid.Bool().Draw(t, "set_title") {
			title := rapid.StringMatching(`[a-z ]{1,20}`).Draw(t, "new_title")
			patch.Title = &title
		}

		once := patch.Apply(task)
		twice := patch.Apply(once)
		if once.Status != twice.Status || once.Priority != twice.Priority || once.Title != twice.Title {
			t.Fatalf("patch is not idempotent: %+v vs %+v", once, twice)
		}
	})
}
