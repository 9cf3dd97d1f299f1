package aggregator

import (
	"sync"
	"time"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
)

// DefaultPropagationDelay is the debounce window for entity update
// batches. A burst of updates within the window produces one flush.
const DefaultPropagationDelay = 200 * time.Millisecond

// entityBatch collapses rapid per-entity updates into one batched
// delivery. Posting restarts the delay timer, so the batch flushes only
// once the stream goes quiet for a full window. Entities posted twice
// within a window are deduplicated by ref, keeping first-append order but
// carrying the latest snapshot.
//
// The flush itself is handed to a scheduler (the service's serial run
// loop) so deliveries are never concurrent with each other.
type entityBatch[T any] struct {
	window   time.Duration
	key      func(T) string
	schedule func(func())
	deliver  func([]T)

	mu      sync.Mutex
	pending []T
	index   map[string]int
	timer   *time.Timer
	stopped bool
}

func newEntityBatch[T any](window time.Duration, key func(T) string, schedule func(func()), deliver func([]T)) *entityBatch[T] {
	return &entityBatch[T]{
		window:   window,
		key:      key,
		schedule: schedule,
		deliver:  deliver,
		index:    make(map[string]int),
	}
}

// post queues an entity snapshot and restarts the delay timer.
func (b *entityBatch[T]) post(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}

	ref := b.key(item)
	if i, ok := b.index[ref]; ok {
		b.pending[i] = item
	} else {
		b.index[ref] = len(b.pending)
		b.pending = append(b.pending, item)
	}

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.window, func() {
		b.schedule(b.flush)
	})
}

// flush takes the pending batch under the lock and delivers it outside.
func (b *entityBatch[T]) flush() {
	b.mu.Lock()
	items := b.pending
	b.pending = nil
	b.index = make(map[string]int)
	b.mu.Unlock()

	if len(items) > 0 {
		b.deliver(items)
	}
}

// stop prevents any further deliveries.
func (b *entityBatch[T]) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
	b.pending = nil
	b.index = make(map[string]int)
}

// notifier owns one debounced batch per entity kind. Each kind flushes
// independently; within one kind append order is preserved.
type notifier struct {
	songs     *entityBatch[*music.Song]
	albums    *entityBatch[*music.Album]
	artists   *entityBatch[*music.Artist]
	playlists *entityBatch[*music.Playlist]
}

func newNotifier(window time.Duration, schedule func(func()), deliver localFanout) *notifier {
	return &notifier{
		songs: newEntityBatch(window,
			func(s *music.Song) string { return s.Ref }, schedule, deliver.songs),
		albums: newEntityBatch(window,
			func(a *music.Album) string { return a.Ref }, schedule, deliver.albums),
		artists: newEntityBatch(window,
			func(a *music.Artist) string { return a.Ref }, schedule, deliver.artists),
		playlists: newEntityBatch(window,
			func(p *music.Playlist) string { return p.Ref }, schedule, deliver.playlists),
	}
}

// localFanout carries the per-kind delivery callbacks.
type localFanout struct {
	songs     func([]*music.Song)
	albums    func([]*music.Album)
	artists   func([]*music.Artist)
	playlists func([]*music.Playlist)
}

func (n *notifier) stop() {
	n.songs.stop()
	n.albums.stop()
	n.artists.stop()
	n.playlists.stop()
}
