package engine

import (
	"sync"

	"github.com/anacrolix/torrent"

	"github.com/shapedtime/streamcore/internal/streaming"
)

// pieceNotifier bridges anacrolix's SubscribePieceStateChanges feed
// (github.com/anacrolix/torrent's pubsub.Subscription, as consumed via
// psc.Values in the pack's torrent clients) into streamcore's plain
// broadcast Notifier contract: one buffered channel per subscriber,
// woken with the verified piece index, never blocking the feeder.
type pieceNotifier struct {
	mu     sync.Mutex
	subs   map[int]chan int
	nextID int

	stop chan struct{}
}

var _ streaming.Notifier = (*pieceNotifier)(nil)

func newPieceNotifier(t *torrent.Torrent) *pieceNotifier {
	n := &pieceNotifier{
		subs: make(map[int]chan int),
		stop: make(chan struct{}),
	}

	sub := t.SubscribePieceStateChanges()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-n.stop:
				return
			case v, ok := <-sub.Values:
				if !ok {
					return
				}
				change, ok := v.(torrent.PieceStateChange)
				if !ok || !change.Complete {
					continue
				}
				n.broadcast(change.Index)
			}
		}
	}()

	return n
}

func (n *pieceNotifier) broadcast(piece int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- piece:
		default:
			// Subscriber hasn't drained its last wakeup yet; it will
			// re-check Have() on its next iteration regardless (spec §9
			// "plain broadcast" — delivered index is only ever a hint).
		}
	}
}

// Subscribe returns a channel woken on every piece verification and a
// cancel func that unregisters it. Safe to call concurrently.
func (n *pieceNotifier) Subscribe() (<-chan int, func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	ch := make(chan int, 1)
	n.subs[id] = ch
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
	return ch, cancel
}

func (n *pieceNotifier) close() {
	close(n.stop)
}
