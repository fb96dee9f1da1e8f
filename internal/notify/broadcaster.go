// Package notify は最新値を購読者へ配信するブロードキャスタを提供する。
package notify

import "sync"

// Broadcaster は最新の値を保持し、更新のたびに購読者へ通知する。
// 購読者のチャネルはバッファ1で、未受信の古い値は最新値で置き換えられる。
type Broadcaster[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[int]chan T
	nextID int
}

// NewBroadcaster は初期値を持つBroadcasterを生成する。
func NewBroadcaster[T any](initial T) *Broadcaster[T] {
	return &Broadcaster[T]{value: initial, subs: make(map[int]chan T)}
}

// Get は現在の値を返す。
func (b *Broadcaster[T]) Get() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Set は値を更新し、全購読者へ通知する。
func (b *Broadcaster[T]) Set(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = v
	for _, ch := range b.subs {
		offer(ch, v)
	}
}

// Update は現在値に関数を適用した結果で値を更新し、新しい値を返す。
func (b *Broadcaster[T]) Update(fn func(T) T) T {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = fn(b.value)
	for _, ch := range b.subs {
		offer(ch, b.value)
	}
	return b.value
}

// Subscribe は購読を開始する。チャネルには直ちに現在値が届く。
// 返り値のcancelを呼ぶとチャネルはクローズされる。cancelは複数回呼んでもよい。
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan T, 1)
	ch <- b.value
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// offer はバッファに残った古い値を捨ててから新しい値を入れる。
// 呼び出し元はb.muを保持していること。
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
