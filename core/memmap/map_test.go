package memmap

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	coreerrors "github.com/FocuswithJustin/memmap/core/errors"
)

func TestMapCommitCreate(t *testing.T) {
	m := NewMap()
	b, err := m.Commit(Draft{Name: "Flash", Start: "0x08000000", Size: "512KB", Type: "FLASH"})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if b.ID == "" || b.Type != TypeFlash || b.Description != "Flash region" {
		t.Errorf("unexpected block %+v", b)
	}
	if got := ToHex(b.EndAddress(), true); got != "0x0807FFFF" {
		t.Errorf("end = %s", got)
	}

	got, err := m.Get(b.ID)
	if err != nil || got.Name != "Flash" {
		t.Errorf("Get() = %+v, %v", got, err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d", m.Len())
	}
}

func TestMapCommitDerivations(t *testing.T) {
	tests := []struct {
		name      string
		draft     Draft
		wantStart string
		wantSize  string
	}{
		{"start and end", Draft{Name: "A", Start: "0x0", End: "0x1000"}, "0x00000000", "4097"},
		{"end and size", Draft{Name: "B", End: "0x20000FFF", Size: "4KB"}, "0x20000000", "4096"},
		{"default type", Draft{Name: "C", Start: "0x0", Size: "0x10"}, "0x00000000", "16"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewMap().Commit(tt.draft)
			if err != nil {
				t.Fatalf("Commit failed: %v", err)
			}
			if ToHex(b.Start, true) != tt.wantStart || b.Size.String() != tt.wantSize {
				t.Errorf("got start %s size %s", ToHex(b.Start, true), b.Size)
			}
			if b.Type != TypeSRAM {
				t.Errorf("expected default type SRAM, got %s", b.Type)
			}
		})
	}
}

func TestMapCommitRejects(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		wantMsg string
	}{
		{"blank name", Draft{Name: " ", Start: "0x0", Size: "1KB"}, "validation failed for name: block name is required"},
		{"conflict", Draft{Name: "A", Start: "0x0", End: "0x3FF", Size: "1KB"}, "validation failed for address: start, end and size are all set; clear one of them"},
		{"one field", Draft{Name: "A", Start: "0x0"}, "validation failed for address: two of start, end and size are required"},
		{"unknown type", Draft{Name: "A", Start: "0x0", Size: "1KB", Type: "ROM"}, "validation failed for type: unknown region type ROM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMap()
			_, err := m.Commit(tt.draft)
			if err == nil || err.Error() != tt.wantMsg {
				t.Fatalf("Commit() error = %v, want %q", err, tt.wantMsg)
			}
			if !errors.Is(err, coreerrors.ErrInvalidInput) {
				t.Error("expected a validation error")
			}
			if m.Len() != 0 {
				t.Error("rejected draft must not change the map")
			}
		})
	}
}

func TestMapCommitUpdate(t *testing.T) {
	m := NewMap()
	a, _ := m.Commit(Draft{Name: "A", Start: "0x0", Size: "1KB"})
	b, _ := m.Commit(Draft{Name: "B", Start: "0x1000", Size: "1KB"})

	updated, err := m.Commit(Draft{ID: a.ID, Name: "A2", Start: "0x2000", Size: "2KB", Type: "Heap", Description: "moved"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.ID != a.ID || updated.Name != "A2" || updated.Type != TypeHeap {
		t.Errorf("unexpected update %+v", updated)
	}

	blocks := m.Blocks()
	if len(blocks) != 2 || blocks[0].ID != b.ID || blocks[1].ID != a.ID {
		t.Errorf("expected the map to stay sorted after update, got %+v", blocks)
	}

	_, err = m.Commit(Draft{ID: "missing", Name: "X", Start: "0x0", Size: "1"})
	if !errors.Is(err, coreerrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMapUpdateKeepsBlankDescription(t *testing.T) {
	m := NewMap()
	a, _ := m.Commit(Draft{Name: "A", Start: "0x0", Size: "1KB"})
	if a.Description != "A region" {
		t.Fatalf("expected default description on create, got %q", a.Description)
	}

	updated, err := m.Commit(Draft{ID: a.ID, Name: "A", Start: "0x0", Size: "1KB"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Description != "" {
		t.Errorf("expected update to store the blank description, got %q", updated.Description)
	}
}

func TestMapReturnsDetachedValues(t *testing.T) {
	m := NewMap()
	a, _ := m.Commit(Draft{Name: "A", Start: "0x1000", Size: "1KB"})
	a.Size.SetInt64(1)

	got, _ := m.Get(a.ID)
	got.Start.SetInt64(0)
	got.Size.SetInt64(2)

	listed := m.Blocks()
	listed[0].Size.SetInt64(3)

	in := []Block{NewBlock("B", big.NewInt(0x2000), big.NewInt(16), TypeSRAM, "")}
	m.Append(in)
	in[0].Size.SetInt64(4)

	for _, b := range m.Blocks() {
		switch b.Name {
		case "A":
			if b.Start.Int64() != 0x1000 || b.Size.Int64() != 1024 {
				t.Errorf("A changed through a returned value: start=%s size=%s", b.Start, b.Size)
			}
		case "B":
			if b.Size.Int64() != 16 {
				t.Errorf("B changed through the appended slice: size=%s", b.Size)
			}
		}
	}
}

func TestBlockClone(t *testing.T) {
	b := NewBlock("A", big.NewInt(8), big.NewInt(4), TypeFlash, "")
	c := b.Clone()
	c.Start.SetInt64(0)
	c.Size.SetInt64(0)
	if b.Start.Int64() != 8 || b.Size.Int64() != 4 {
		t.Errorf("clone shares values with the original block: %+v", b)
	}

	empty := Block{}.Clone()
	if empty.Start == nil || empty.Size == nil || empty.Start.Sign() != 0 {
		t.Errorf("expected nil fields to clone as zero, got %+v", empty)
	}
}

func TestMapRemove(t *testing.T) {
	m := NewMap()
	a, _ := m.Commit(Draft{Name: "A", Start: "0x0", Size: "1KB"})
	b, _ := m.Commit(Draft{Name: "B", Start: "0x400", Size: "1KB"})

	if err := m.Remove(a.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if blocks := m.Blocks(); len(blocks) != 1 || blocks[0].ID != b.ID {
		t.Errorf("unexpected blocks %+v", blocks)
	}
	if err := m.Remove(a.ID); err == nil || err.Error() != "block not found: "+a.ID {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := m.Get(a.ID); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMapBlocksIsACopy(t *testing.T) {
	m := NewMap()
	m.Commit(Draft{Name: "A", Start: "0x0", Size: "1KB"})
	blocks := m.Blocks()
	blocks[0].Name = "changed"
	if got := m.Blocks()[0].Name; got != "A" {
		t.Errorf("mutating the result changed the map: %s", got)
	}
}

func TestMapOverlapsAreAccepted(t *testing.T) {
	m := NewMap()
	m.Commit(Draft{Name: "A", Start: "0x0", Size: "1KB"})
	if _, err := m.Commit(Draft{Name: "B", Start: "0x200", Size: "1KB"}); err != nil {
		t.Fatalf("overlapping commit rejected: %v", err)
	}
	if pairs := FindOverlaps(m.Blocks()); len(pairs) != 1 {
		t.Errorf("expected one overlapping pair, got %d", len(pairs))
	}
}

func TestMapReplaceAndAppend(t *testing.T) {
	m := NewMap()
	m.Commit(Draft{Name: "Old", Start: "0x0", Size: "1KB"})

	m.Replace([]Block{block("Z", 0x100, 1), block("Y", 0x10, 1)})
	blocks := m.Blocks()
	if len(blocks) != 2 || blocks[0].Name != "Y" || blocks[1].Name != "Z" {
		t.Errorf("unexpected blocks after Replace %+v", blocks)
	}

	m.Append([]Block{block("X", 0, 1)})
	blocks = m.Blocks()
	if len(blocks) != 3 || blocks[0].Name != "X" {
		t.Errorf("unexpected blocks after Append %+v", blocks)
	}
}

func TestMapDrafts(t *testing.T) {
	m := NewMap()
	b, _ := m.Commit(Draft{Name: "Flash", Start: "0x08000000", Size: "1536", Type: "FLASH", Description: "boot"})

	edit, err := m.EditDraft(b.ID)
	if err != nil {
		t.Fatalf("EditDraft failed: %v", err)
	}
	want := Draft{ID: b.ID, Name: "Flash", Start: "0x08000000", Size: "1.50KB", Type: "FLASH", Description: "boot"}
	if edit != want {
		t.Errorf("EditDraft() = %+v, want %+v", edit, want)
	}

	next, err := m.NextDraft(b.ID)
	if err != nil {
		t.Fatalf("NextDraft failed: %v", err)
	}
	if next != (Draft{Start: "0x08000600", Type: "SRAM"}) {
		t.Errorf("NextDraft() = %+v", next)
	}

	if _, err := m.EditDraft("missing"); err == nil {
		t.Error("expected an error for an unknown id")
	}
	if _, err := m.NextDraft("missing"); err == nil {
		t.Error("expected an error for an unknown id")
	}
}

func TestMapFingerprint(t *testing.T) {
	m := NewMap()
	empty := m.Fingerprint()
	if len(empty) != 64 {
		t.Errorf("expected a 256-bit hex digest, got %q", empty)
	}
	if empty != Fingerprint(nil) {
		t.Error("empty map should match the fingerprint of no blocks")
	}

	b, _ := m.Commit(Draft{Name: "A", Start: "0x0", Size: "1KB"})
	withA := m.Fingerprint()
	if withA == empty {
		t.Error("fingerprint should change on create")
	}
	if m.Markdown() == RenderTable(nil) {
		t.Error("markdown should list the block")
	}

	m.Commit(Draft{ID: b.ID, Name: "A", Start: "0x0", Size: "1KB", Description: "changed"})
	if m.Fingerprint() == withA {
		t.Error("fingerprint should change when a description changes")
	}

	// Ids are not part of the export, so an identical reimport keeps the fingerprint.
	before := m.Fingerprint()
	m.Replace(ParseTable(m.Markdown()))
	if m.Fingerprint() != before {
		t.Error("reimporting the export should keep the fingerprint")
	}
}

func TestMapSubscribe(t *testing.T) {
	m := NewMap()
	var events []Event
	m.Subscribe(func(ev Event) {
		events = append(events, ev)
	})

	b, _ := m.Commit(Draft{Name: "A", Start: "0x0", Size: "1KB"})
	m.Commit(Draft{ID: b.ID, Name: "A", Start: "0x0", Size: "2KB"})
	m.Replace(nil)
	m.Append([]Block{block("B", 0, 1)})
	bs := m.Blocks()
	m.Remove(bs[0].ID)
	m.Commit(Draft{Name: ""})

	kinds := []EventKind{EventCreated, EventUpdated, EventReplaced, EventReplaced, EventRemoved}
	if len(events) != len(kinds) {
		t.Fatalf("expected %d events, got %+v", len(kinds), events)
	}
	for i, k := range kinds {
		if events[i].Kind != k {
			t.Errorf("event %d = %s, want %s", i, events[i].Kind, k)
		}
	}
	if events[0].ID != b.ID || events[2].ID != "" {
		t.Errorf("unexpected event ids %+v", events)
	}
	if events[4].Fingerprint != m.Fingerprint() {
		t.Error("event fingerprint should describe the map after the change")
	}
}

func TestMapSubscriberMayReadMap(t *testing.T) {
	m := NewMap()
	var seen int
	m.Subscribe(func(Event) {
		seen = m.Len()
	})
	m.Commit(Draft{Name: "A", Start: "0x0", Size: "1KB"})
	if seen != 1 {
		t.Errorf("subscriber saw %d blocks, want 1", seen)
	}
}

func TestMapConcurrentCommits(t *testing.T) {
	m := NewMap()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.Commit(Draft{Name: fmt.Sprintf("B%d", n), Start: fmt.Sprintf("0x%X", n*0x100), Size: "256"})
			m.Blocks()
			m.Fingerprint()
		}(i)
	}
	wg.Wait()

	blocks := m.Blocks()
	if len(blocks) != 20 {
		t.Fatalf("expected 20 blocks, got %d", len(blocks))
	}
	for i := 1; i < len(blocks); i++ {
		if blocks[i-1].Start.Cmp(blocks[i].Start) > 0 {
			t.Fatal("blocks are not sorted")
		}
	}
}
