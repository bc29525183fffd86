package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifest/domain/orderbook"
	"manifest/infra/kafka"
	"manifest/service"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	book  *orderbook.Book
	err   error
}

func (f *fakeSource) FetchOrderBook(context.Context, service.Session) (*orderbook.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.book, f.err
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	events []kafka.BookEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e kafka.BookEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func testBook() *orderbook.Book {
	return &orderbook.Book{
		Header: orderbook.MarketHeader{BaseDecimals: 9, QuoteDecimals: 6, OrderSequence: 3},
		Slot:   55,
	}
}

func TestTickPublishes(t *testing.T) {
	market := solana.NewWallet().PublicKey()
	src := &fakeSource{book: testBook()}
	pub := &fakePublisher{}

	w := New(service.Session{Market: market}, time.Second, src, pub, nil, nil)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w.now = func() time.Time { return now }

	book, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(55), book.Slot)

	require.Len(t, pub.events, 1)
	e := pub.events[0]
	assert.Equal(t, market.String(), e.Market)
	assert.Equal(t, uint64(55), e.Slot)
	assert.Equal(t, uint64(3), e.OrderSequence)
	assert.Equal(t, now, e.Time)
}

func TestTickErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("rpc down")}
	pub := &fakePublisher{}
	w := New(service.Session{}, time.Second, src, pub, nil, nil)

	_, err := w.Tick(context.Background())
	assert.EqualError(t, err, "rpc down")
	assert.Empty(t, pub.events)

	src.err, src.book = nil, testBook()
	pub.err = errors.New("broker gone")
	book, err := w.Tick(context.Background())
	assert.EqualError(t, err, "broker gone")
	assert.NotNil(t, book)
}

func TestTickWithoutPublisher(t *testing.T) {
	w := New(service.Session{}, time.Second, &fakeSource{book: testBook()}, nil, nil, nil)
	book, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, book)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{book: testBook()}
	w := New(service.Session{}, 5*time.Millisecond, src, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return src.count() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
