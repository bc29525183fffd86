package instruction

import (
	"math"

	"manifest/domain/wire"
)

// EncodeDeposit lays out:
//
//	[disc:1][amount:8][hint tag:1][hint:4?]
func EncodeDeposit(p DepositParams) ([]byte, error) {
	amount, err := p.WireAmount()
	if err != nil {
		return nil, err
	}

	w := wire.NewWriter("encode deposit", 1+8+wire.OptionU32Len(p.TraderIndexHint))
	w.U8(uint8(Deposit))
	w.U64(amount)
	w.OptionU32(p.TraderIndexHint)
	return w.Finish()
}

// EncodeBatchUpdate lays out:
//
//	[disc:1][hint tag:1][hint:4?]
//	[cancel count:4] { [seq:8][index hint tag:1][index hint:4?] }*
//	[order count:4]  { [base atoms:8][mantissa:4][exponent:1][is bid:1][last valid slot:4][type:1] }*
//
// The size is computed before allocation; anything above MaxInstructionData
// is rejected.
func EncodeBatchUpdate(p BatchUpdateParams) ([]byte, error) {
	const op = "encode batch update"

	var (
		cancels []CancelOrder
		orders  []PlaceOrder
	)
	for i, e := range p.Entries {
		switch v := e.(type) {
		case CancelOrder:
			cancels = append(cancels, v)
		case PlaceOrder:
			orders = append(orders, v)
		default:
			return nil, wire.Rangef(op, "entry %d has unsupported type %T", i, e)
		}
	}
	if uint64(len(cancels)) > math.MaxUint32 || uint64(len(orders)) > math.MaxUint32 {
		return nil, wire.Rangef(op, "entry count exceeds u32")
	}

	size := p.EncodedLen()
	if size > MaxInstructionData {
		return nil, wire.Rangef(op, "payload needs %d bytes, capacity is %d", size, MaxInstructionData)
	}

	w := wire.NewWriter(op, size)
	w.U8(uint8(BatchUpdate))
	w.OptionU32(p.TraderIndexHint)

	w.U32(uint32(len(cancels)))
	for _, c := range cancels {
		w.U64(c.SequenceNumber)
		w.OptionU32(c.OrderIndexHint)
	}

	w.U32(uint32(len(orders)))
	for _, o := range orders {
		mantissa, exponent, err := o.wirePrice()
		if err != nil {
			return nil, err
		}
		w.U64(o.BaseAtoms)
		w.U32(mantissa)
		w.I8(exponent)
		w.Bool(o.IsBid)
		w.U32(o.LastValidSlot)
		w.U8(uint8(o.OrderType))
	}
	return w.Finish()
}

// DecodeDeposit reverses EncodeDeposit. The returned amount is the wire
// amount with Scale set to 1.
func DecodeDeposit(data []byte) (DepositParams, error) {
	const op = "decode deposit"
	if err := expectKind(op, data, Deposit); err != nil {
		return DepositParams{}, err
	}
	r := wire.NewReader(op, data[1:])
	p := DepositParams{Scale: 1}
	p.AmountAtoms = r.U64()
	p.TraderIndexHint = r.OptionU32()
	if err := finish(op, r); err != nil {
		return DepositParams{}, err
	}
	return p, nil
}

// DecodeBatchUpdate reverses EncodeBatchUpdate. Cancels come first in the
// returned entries.
func DecodeBatchUpdate(data []byte) (BatchUpdateParams, error) {
	const op = "decode batch update"
	if err := expectKind(op, data, BatchUpdate); err != nil {
		return BatchUpdateParams{}, err
	}
	r := wire.NewReader(op, data[1:])

	var p BatchUpdateParams
	p.TraderIndexHint = r.OptionU32()

	nCancels := r.U32()
	for i := uint32(0); i < nCancels && r.Err() == nil; i++ {
		c := CancelOrder{SequenceNumber: r.U64()}
		c.OrderIndexHint = r.OptionU32()
		p.Entries = append(p.Entries, c)
	}

	nOrders := r.U32()
	for i := uint32(0); i < nOrders && r.Err() == nil; i++ {
		var o PlaceOrder
		o.BaseAtoms = r.U64()
		o.Price.Mantissa = uint64(r.U32())
		o.Price.Exponent = int64(r.I8())
		o.IsBid = r.Bool()
		o.LastValidSlot = r.U32()
		o.OrderType = OrderType(r.U8())
		p.Entries = append(p.Entries, o)
	}

	if err := finish(op, r); err != nil {
		return BatchUpdateParams{}, err
	}
	return p, nil
}

func expectKind(op string, data []byte, want Discriminator) error {
	got, err := Kind(data)
	if err != nil {
		return err
	}
	if got != want {
		return wire.Protocolf(op, "discriminator %s, want %s", got, want)
	}
	return nil
}

func finish(op string, r *wire.Reader) error {
	if err := r.Err(); err != nil {
		return err
	}
	if n := r.Remaining(); n != 0 {
		return wire.Layoutf(op, "%d trailing bytes", n)
	}
	return nil
}
