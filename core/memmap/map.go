package memmap

import (
	"encoding/hex"
	"strings"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/memmap/core/errors"
)

// Draft is the raw text of the block editor form. An empty ID commits a new
// block; otherwise the block with that id is updated in place.
type Draft struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Size        string `json:"size"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// EventKind names a change to a Map.
type EventKind string

// Map change kinds.
const (
	EventCreated  EventKind = "created"
	EventUpdated  EventKind = "updated"
	EventRemoved  EventKind = "removed"
	EventReplaced EventKind = "replaced"
)

// Event describes one change to a Map.
type Event struct {
	Kind EventKind
	// ID is the affected block, empty for EventReplaced.
	ID string
	// Fingerprint is the map fingerprint after the change.
	Fingerprint string
}

// Map is the in-memory, ordered block collection edited through the UI and
// the API. It is safe for concurrent use. Overlapping blocks are accepted.
type Map struct {
	mu          sync.RWMutex
	blocks      []Block
	subscribers []func(Event)
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{}
}

// Subscribe registers fn to be called after every change. fn runs on the
// goroutine that made the change, outside the map lock.
func (m *Map) Subscribe(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Commit validates a draft and creates or updates the block it describes.
// A blank description becomes the default only when a block is created; an
// update stores the description as given.
func (m *Map) Commit(d Draft) (Block, error) {
	if strings.TrimSpace(d.Name) == "" {
		return Block{}, errors.NewValidation("name", "block name is required")
	}
	derivation := Derive(d.Start, d.End, d.Size)
	if derivation.Conflict {
		return Block{}, errors.NewValidation("address", "start, end and size are all set; clear one of them")
	}
	if !derivation.CanCommit(d.Name) {
		return Block{}, errors.NewValidation("address", "two of start, end and size are required")
	}
	t := DefaultType
	if d.Type != "" {
		var ok bool
		if t, ok = ParseType(d.Type); !ok {
			return Block{}, errors.NewValidation("type", "unknown region type "+d.Type)
		}
	}

	start, size := Resolve(d.Start, d.End, d.Size)
	description := d.Description
	if d.ID == "" && strings.TrimSpace(description) == "" {
		description = DefaultDescription(d.Name)
	}

	m.mu.Lock()
	var (
		block Block
		kind  EventKind
	)
	if d.ID == "" {
		block = NewBlock(d.Name, start, size, t, description)
		m.blocks = SortByStart(append(m.blocks, block.Clone()))
		kind = EventCreated
	} else {
		i := m.indexLocked(d.ID)
		if i < 0 {
			m.mu.Unlock()
			return Block{}, errors.NewNotFound("block", d.ID)
		}
		block = Block{ID: d.ID, Name: d.Name, Start: start, Size: size, Type: t, Description: description}
		m.blocks[i] = block.Clone()
		m.blocks = SortByStart(m.blocks)
		kind = EventUpdated
	}
	m.mu.Unlock()

	m.notify(kind, block.ID)
	return block, nil
}

// Get returns the block with the given id.
func (m *Map) Get(id string) (Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexLocked(id); i >= 0 {
		return m.blocks[i].Clone(), nil
	}
	return Block{}, errors.NewNotFound("block", id)
}

// Remove deletes the block with the given id.
func (m *Map) Remove(id string) error {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return errors.NewNotFound("block", id)
	}
	m.blocks = append(m.blocks[:i:i], m.blocks[i+1:]...)
	m.mu.Unlock()

	m.notify(EventRemoved, id)
	return nil
}

// Blocks returns copies of the blocks in ascending start order.
func (m *Map) Blocks() []Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneBlocks(m.blocks)
}

func cloneBlocks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}

// Len returns the number of blocks.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

// Replace swaps the whole collection for blocks.
func (m *Map) Replace(blocks []Block) {
	m.mu.Lock()
	m.blocks = SortByStart(cloneBlocks(blocks))
	m.mu.Unlock()
	m.notify(EventReplaced, "")
}

// Append adds blocks to the collection, keeping it sorted.
func (m *Map) Append(blocks []Block) {
	m.mu.Lock()
	m.blocks = SortByStart(append(m.blocks, cloneBlocks(blocks)...))
	m.mu.Unlock()
	m.notify(EventReplaced, "")
}

// EditDraft returns the form contents for editing a block: start as hex,
// size in compact form and the end left blank so it is derived.
func (m *Map) EditDraft(id string) (Draft, error) {
	b, err := m.Get(id)
	if err != nil {
		return Draft{}, err
	}
	return Draft{
		ID:          b.ID,
		Name:        b.Name,
		Start:       ToHex(b.Start, true),
		Size:        CompactSize(b.Size),
		Type:        string(b.Type),
		Description: b.Description,
	}, nil
}

// NextDraft returns an empty form whose start address is the first address
// after the given block.
func (m *Map) NextDraft(id string) (Draft, error) {
	b, err := m.Get(id)
	if err != nil {
		return Draft{}, err
	}
	return Draft{Start: ToHex(NextStart(b), true), Type: string(DefaultType)}, nil
}

// Markdown renders the collection with RenderTable.
func (m *Map) Markdown() string {
	return RenderTable(m.Blocks())
}

// Fingerprint returns the hex BLAKE3-256 digest of the Markdown export. It
// changes whenever a visible property of any block changes.
func (m *Map) Fingerprint() string {
	return Fingerprint(m.Blocks())
}

// Fingerprint returns the hex BLAKE3-256 digest of RenderTable(blocks).
func Fingerprint(blocks []Block) string {
	sum := blake3.Sum256([]byte(RenderTable(blocks)))
	return hex.EncodeToString(sum[:])
}

func (m *Map) indexLocked(id string) int {
	for i, b := range m.blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (m *Map) notify(kind EventKind, id string) {
	m.mu.RLock()
	subscribers := make([]func(Event), len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.RUnlock()
	if len(subscribers) == 0 {
		return
	}

	ev := Event{Kind: kind, ID: id, Fingerprint: m.Fingerprint()}
	for _, fn := range subscribers {
		fn(ev)
	}
}
