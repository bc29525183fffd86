package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// ErrNoSnapshot is returned when a market has no stored snapshot.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Store keeps snapshots in pebble under snap/<market>/<slot>.
type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	return OpenWithOptions(dir, &pebble.Options{})
}

func OpenWithOptions(dir string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot store")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores snap. Writing the same market and slot twice keeps the last.
func (s *Store) Put(snap Snapshot) error {
	// value: [taken:8][data]
	val := make([]byte, 8+len(snap.Data))
	binary.BigEndian.PutUint64(val[:8], uint64(snap.Taken))
	copy(val[8:], snap.Data)
	return s.db.Set(key(snap.Market, snap.Slot), val, pebble.Sync)
}

// Get returns the snapshot taken at slot.
func (s *Store) Get(market solana.PublicKey, slot uint64) (Snapshot, error) {
	val, closer, err := s.db.Get(key(market, slot))
	if errors.Is(err, pebble.ErrNotFound) {
		return Snapshot{}, errors.Wrapf(ErrNoSnapshot, "market %s slot %d", market, slot)
	}
	if err != nil {
		return Snapshot{}, err
	}
	defer closer.Close()
	return decode(market, slot, val)
}

// Latest returns the snapshot with the highest slot.
func (s *Store) Latest(market solana.PublicKey) (Snapshot, error) {
	iter, err := s.db.NewIter(bounds(market))
	if err != nil {
		return Snapshot{}, err
	}
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return Snapshot{}, err
		}
		return Snapshot{}, errors.Wrapf(ErrNoSnapshot, "market %s", market)
	}
	slot, err := slotOf(iter.Key())
	if err != nil {
		return Snapshot{}, err
	}
	return decode(market, slot, iter.Value())
}

// Slots lists stored slots for market in ascending order.
func (s *Store) Slots(market solana.PublicKey) ([]uint64, error) {
	iter, err := s.db.NewIter(bounds(market))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []uint64
	for iter.First(); iter.Valid(); iter.Next() {
		slot, err := slotOf(iter.Key())
		if err != nil {
			return nil, err
		}
		out = append(out, slot)
	}
	return out, iter.Error()
}

// Prune deletes all but the newest keep snapshots of market.
func (s *Store) Prune(market solana.PublicKey, keep int) (int, error) {
	slots, err := s.Slots(market)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(slots) <= keep {
		return 0, nil
	}

	b := s.db.NewBatch()
	defer b.Close()
	drop := slots[:len(slots)-keep]
	for _, slot := range drop {
		if err := b.Delete(key(market, slot), nil); err != nil {
			return 0, err
		}
	}
	return len(drop), b.Commit(pebble.Sync)
}

// -------------------- keys --------------------

const slotDigits = 20

func prefix(market solana.PublicKey) string {
	return "snap/" + market.String() + "/"
}

func key(market solana.PublicKey, slot uint64) []byte {
	return []byte(fmt.Sprintf("%s%0*d", prefix(market), slotDigits, slot))
}

func bounds(market solana.PublicKey) *pebble.IterOptions {
	p := prefix(market)
	return &pebble.IterOptions{
		LowerBound: []byte(p),
		UpperBound: []byte(p + "~"),
	}
}

func slotOf(k []byte) (uint64, error) {
	if len(k) < slotDigits {
		return 0, errors.Errorf("snapshot key %q too short", k)
	}
	var slot uint64
	if _, err := fmt.Sscanf(string(k[len(k)-slotDigits:]), "%d", &slot); err != nil {
		return 0, errors.Wrapf(err, "snapshot key %q", k)
	}
	return slot, nil
}

func decode(market solana.PublicKey, slot uint64, val []byte) (Snapshot, error) {
	if len(val) < 8 {
		return Snapshot{}, errors.Errorf("snapshot %s@%d: value of %d bytes", market, slot, len(val))
	}
	data := make([]byte, len(val)-8)
	copy(data, val[8:])
	return Snapshot{
		Market: market,
		Slot:   slot,
		Taken:  int64(binary.BigEndian.Uint64(val[:8])),
		Data:   data,
	}, nil
}
