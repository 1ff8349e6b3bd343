// Package viewmodel assembles consultation aggregates for display: one list,
// one selection, one display language. Language switches are re-fetches, not
// client-side translation, and responses are sequenced by a generation
// counter so a stale fetch can never overwrite fresher state.
package viewmodel

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ambienthealth/companion/internal/model"
)

// Source fetches the consultation list in a display language. Both the
// doctor list and the patient visit history satisfy it through SourceFunc.
type Source interface {
	Consultations(ctx context.Context, language string) ([]model.Consultation, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, language string) ([]model.Consultation, error)

func (f SourceFunc) Consultations(ctx context.Context, language string) ([]model.Consultation, error) {
	return f(ctx, language)
}

// Snapshot is one consistent view of the model for rendering.
type Snapshot struct {
	Language    string
	Items       []model.Consultation
	Selected    *model.Consultation
	Translating bool
	ErrMessage  string
}

// ViewModel holds the current consultation aggregate. All methods are safe
// for concurrent use; overlapping fetches resolve by supersession, never by
// last-writer-wins.
type ViewModel struct {
	src Source
	log zerolog.Logger

	mu          sync.Mutex
	gen         uint64
	closed      bool
	loaded      bool
	language    string
	translating bool
	items       []model.Consultation
	selectedID  int64
	errMsg      string
}

func New(src Source, language string, log zerolog.Logger) *ViewModel {
	return &ViewModel{src: src, language: language, log: log}
}

// Refresh re-fetches the list in the current language. Used after every
// mutating dashboard action so the model stays authoritative.
func (vm *ViewModel) Refresh(ctx context.Context) {
	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return
	}
	vm.gen++
	gen, lang := vm.gen, vm.language
	vm.mu.Unlock()

	vm.fetch(ctx, gen, lang)
}

// SetLanguage switches the display language and re-fetches. While the fetch
// is in flight previously rendered data stays visible with the Translating
// flag raised; the view must not blank out. A newer SetLanguage supersedes
// an older one still in flight.
func (vm *ViewModel) SetLanguage(ctx context.Context, language string) {
	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return
	}
	vm.language = language
	if vm.loaded {
		vm.translating = true
	}
	vm.gen++
	gen := vm.gen
	vm.mu.Unlock()

	vm.fetch(ctx, gen, language)
}

func (vm *ViewModel) fetch(ctx context.Context, gen uint64, language string) {
	items, err := vm.src.Consultations(ctx, language)
	vm.apply(gen, language, items, err)
}

func (vm *ViewModel) apply(gen uint64, language string, items []model.Consultation, err error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.closed || gen != vm.gen {
		vm.log.Debug().Uint64("gen", gen).Uint64("current", vm.gen).Msg("dropping superseded fetch result")
		return
	}
	vm.translating = false

	if err != nil {
		vm.log.Warn().Err(err).Str("language", language).Msg("consultation fetch failed")
		vm.errMsg = fetchErrorMessage(language)
		if !vm.loaded {
			// First load: nothing worth keeping.
			vm.items = nil
			vm.selectedID = 0
		}
		// Otherwise prior data stays in place.
		return
	}

	vm.errMsg = ""
	vm.loaded = true
	vm.items = items
	vm.reconcileSelection()
}

// reconcileSelection keeps the selected id if it survived the refetch,
// otherwise falls back to the first item, or none when the list is empty.
// Caller holds vm.mu.
func (vm *ViewModel) reconcileSelection() {
	if vm.selectedID != 0 {
		for _, c := range vm.items {
			if c.ID == vm.selectedID {
				return
			}
		}
	}
	if len(vm.items) > 0 {
		vm.selectedID = vm.items[0].ID
	} else {
		vm.selectedID = 0
	}
}

// Select switches the selected consultation. Selecting an id not currently
// in the list is ignored.
func (vm *ViewModel) Select(id int64) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, c := range vm.items {
		if c.ID == id {
			vm.selectedID = id
			return
		}
	}
}

// Snapshot returns a consistent copy of the current view state.
func (vm *ViewModel) Snapshot() Snapshot {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	snap := Snapshot{
		Language:    vm.language,
		Items:       append([]model.Consultation(nil), vm.items...),
		Translating: vm.translating,
		ErrMessage:  vm.errMsg,
	}
	if vm.selectedID != 0 {
		for i := range snap.Items {
			if snap.Items[i].ID == vm.selectedID {
				snap.Selected = &snap.Items[i]
				break
			}
		}
	}
	return snap
}

// OverallUnderstanding returns the selected consultation's aggregate
// teach-back score; absent when nothing is selected or nothing is scored.
func (vm *ViewModel) OverallUnderstanding() (float64, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.selectedID == 0 {
		return 0, false
	}
	for i := range vm.items {
		if vm.items[i].ID == vm.selectedID {
			return vm.items[i].OverallUnderstanding()
		}
	}
	return 0, false
}

// Close invalidates the model: results of any still-pending fetch are
// dropped and no further state is written. Used when navigating away.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	vm.closed = true
	vm.mu.Unlock()
}

// fetchErrorMessage returns a human-readable load failure message in the
// requested display language, falling back to English.
func fetchErrorMessage(language string) string {
	if msg, ok := fetchErrors[language]; ok {
		return msg
	}
	return fetchErrors["en"]
}

var fetchErrors = map[string]string{
	"en": "Could not load consultations. Please try again.",
	"ta": "ஆலோசனைகளை ஏற்ற முடியவில்லை. மீண்டும் முயற்சிக்கவும்.",
	"hi": "परामर्श लोड नहीं हो सके। कृपया पुनः प्रयास करें।",
	"es": "No se pudieron cargar las consultas. Inténtelo de nuevo.",
}
