package viewmodel

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ambienthealth/companion/internal/model"
)

func consultations(ids ...int64) []model.Consultation {
	out := make([]model.Consultation, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Consultation{ID: id, Status: model.StatusActive})
	}
	return out
}

func fixedSource(items []model.Consultation) Source {
	return SourceFunc(func(context.Context, string) ([]model.Consultation, error) {
		return items, nil
	})
}

func TestFirstLoad(t *testing.T) {
	vm := New(fixedSource(consultations(1, 2, 3)), "en", zerolog.Nop())
	vm.Refresh(context.Background())

	snap := vm.Snapshot()
	if len(snap.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(snap.Items))
	}
	if snap.Selected == nil || snap.Selected.ID != 1 {
		t.Errorf("expected first item selected, got %+v", snap.Selected)
	}
	if snap.ErrMessage != "" {
		t.Errorf("unexpected error message %q", snap.ErrMessage)
	}
}

func TestSelectionFallbackWhenSelectedDisappears(t *testing.T) {
	var mu sync.Mutex
	items := consultations(1, 2, 3)
	src := SourceFunc(func(context.Context, string) ([]model.Consultation, error) {
		mu.Lock()
		defer mu.Unlock()
		return items, nil
	})

	vm := New(src, "en", zerolog.Nop())
	vm.Refresh(context.Background())
	vm.Select(2)
	if snap := vm.Snapshot(); snap.Selected.ID != 2 {
		t.Fatalf("expected selection 2, got %d", snap.Selected.ID)
	}

	// Item 2 vanishes on the next refetch.
	mu.Lock()
	items = consultations(1, 3)
	mu.Unlock()
	vm.Refresh(context.Background())
	if snap := vm.Snapshot(); snap.Selected == nil || snap.Selected.ID != 1 {
		t.Errorf("expected fallback to first item, got %+v", snap.Selected)
	}

	// Everything vanishes.
	mu.Lock()
	items = nil
	mu.Unlock()
	vm.Refresh(context.Background())
	if snap := vm.Snapshot(); snap.Selected != nil {
		t.Errorf("expected no selection for empty list, got %+v", snap.Selected)
	}
}

func TestSurvivingSelectionKept(t *testing.T) {
	vm := New(fixedSource(consultations(1, 2, 3)), "en", zerolog.Nop())
	vm.Refresh(context.Background())
	vm.Select(3)
	vm.Refresh(context.Background())
	if snap := vm.Snapshot(); snap.Selected.ID != 3 {
		t.Errorf("expected selection 3 kept across refetch, got %d", snap.Selected.ID)
	}
}

func TestFirstLoadFailureShowsEmptyError(t *testing.T) {
	src := SourceFunc(func(context.Context, string) ([]model.Consultation, error) {
		return nil, errors.New("boom")
	})
	vm := New(src, "en", zerolog.Nop())
	vm.Refresh(context.Background())

	snap := vm.Snapshot()
	if len(snap.Items) != 0 {
		t.Errorf("expected empty items, got %d", len(snap.Items))
	}
	if snap.ErrMessage == "" {
		t.Error("expected an error message")
	}
}

func TestTransientFailureKeepsPriorData(t *testing.T) {
	var fail bool
	src := SourceFunc(func(context.Context, string) ([]model.Consultation, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return consultations(1, 2), nil
	})
	vm := New(src, "en", zerolog.Nop())
	vm.Refresh(context.Background())

	fail = true
	vm.Refresh(context.Background())

	snap := vm.Snapshot()
	if len(snap.Items) != 2 {
		t.Errorf("prior data destroyed on transient failure: %d items", len(snap.Items))
	}
	if snap.ErrMessage == "" {
		t.Error("expected an error message alongside prior data")
	}

	// Recovery clears the message.
	fail = false
	vm.Refresh(context.Background())
	if snap := vm.Snapshot(); snap.ErrMessage != "" {
		t.Errorf("expected error cleared after recovery, got %q", snap.ErrMessage)
	}
}

func TestLocalizedErrorMessage(t *testing.T) {
	src := SourceFunc(func(context.Context, string) ([]model.Consultation, error) {
		return nil, errors.New("boom")
	})
	vm := New(src, "ta", zerolog.Nop())
	vm.Refresh(context.Background())
	if got := vm.Snapshot().ErrMessage; got != fetchErrors["ta"] {
		t.Errorf("expected Tamil error message, got %q", got)
	}

	vm2 := New(src, "unknown-lang", zerolog.Nop())
	vm2.Refresh(context.Background())
	if got := vm2.Snapshot().ErrMessage; got != fetchErrors["en"] {
		t.Errorf("expected English fallback, got %q", got)
	}
}

// A language switch must keep prior data visible with the translating flag
// raised, and a stale response resolving after a newer one must be dropped.
func TestLanguageSwitchSupersession(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	src := SourceFunc(func(_ context.Context, language string) ([]model.Consultation, error) {
		if language == "ta" {
			close(started)
			<-release
			// Stale payload: would shrink the list if ever applied.
			return consultations(99), nil
		}
		return consultations(1, 2), nil
	})

	vm := New(src, "en", zerolog.Nop())
	vm.Refresh(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		vm.SetLanguage(context.Background(), "ta")
	}()
	<-started

	// While the ta fetch hangs, prior data is visible and marked translating.
	snap := vm.Snapshot()
	if len(snap.Items) != 2 {
		t.Errorf("view blanked during language switch: %d items", len(snap.Items))
	}
	if !snap.Translating {
		t.Error("expected translating flag during in-flight switch")
	}

	// A newer switch supersedes the hung one.
	vm.SetLanguage(context.Background(), "en")
	close(release)
	wg.Wait()

	snap = vm.Snapshot()
	if snap.Language != "en" {
		t.Errorf("expected language en, got %s", snap.Language)
	}
	if len(snap.Items) != 2 || snap.Items[0].ID != 1 {
		t.Errorf("stale response overwrote fresher state: %+v", snap.Items)
	}
	if snap.Translating {
		t.Error("translating flag stuck after settle")
	}
}

func TestLanguageRoundTripIdempotent(t *testing.T) {
	byLang := map[string][]model.Consultation{
		"en": {{ID: 1, Status: model.StatusActive, ClinicalReport: &model.ClinicalReport{Diagnosis: "flu"}}},
		"ta": {{ID: 1, Status: model.StatusActive, ClinicalReport: &model.ClinicalReport{Diagnosis: "காய்ச்சல்"}}},
	}
	src := SourceFunc(func(_ context.Context, language string) ([]model.Consultation, error) {
		return byLang[language], nil
	})

	vm := New(src, "en", zerolog.Nop())
	vm.Refresh(context.Background())
	before := vm.Snapshot().Selected.ClinicalReport.Diagnosis

	vm.SetLanguage(context.Background(), "ta")
	if got := vm.Snapshot().Selected.ClinicalReport.Diagnosis; got != "காய்ச்சல்" {
		t.Fatalf("expected Tamil diagnosis, got %q", got)
	}

	vm.SetLanguage(context.Background(), "en")
	after := vm.Snapshot().Selected.ClinicalReport.Diagnosis
	if before != after {
		t.Errorf("round trip not idempotent: %q vs %q", before, after)
	}
}

func TestCloseDropsPendingResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	src := SourceFunc(func(context.Context, string) ([]model.Consultation, error) {
		close(started)
		<-release
		return consultations(1), nil
	})

	vm := New(src, "en", zerolog.Nop())
	done := make(chan struct{})
	go func() {
		vm.Refresh(context.Background())
		close(done)
	}()
	<-started
	vm.Close()
	close(release)
	<-done

	if snap := vm.Snapshot(); len(snap.Items) != 0 {
		t.Errorf("result applied after Close: %d items", len(snap.Items))
	}
}

func TestOverallUnderstandingViaSelection(t *testing.T) {
	score := func(v int) *int { return &v }
	items := []model.Consultation{{
		ID:     7,
		Status: model.StatusActive,
		TeachBackItems: []model.TeachBackItem{
			{UnderstandingScore: score(80)},
			{UnderstandingScore: score(60)},
			{UnderstandingScore: score(100)},
		},
	}}
	vm := New(fixedSource(items), "en", zerolog.Nop())
	vm.Refresh(context.Background())

	got, ok := vm.OverallUnderstanding()
	if !ok || got != 80.0 {
		t.Errorf("expected 80.0, got %v (ok=%v)", got, ok)
	}

	// No selection means no score.
	empty := New(fixedSource(nil), "en", zerolog.Nop())
	empty.Refresh(context.Background())
	if _, ok := empty.OverallUnderstanding(); ok {
		t.Error("expected absent score with no selection")
	}
}
