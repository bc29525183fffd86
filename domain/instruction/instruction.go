// Package instruction builds the byte-exact instruction payloads and account
// lists understood by the on-chain order-book program.
package instruction

import (
	"fmt"

	"manifest/domain/wire"
)

// Discriminator is the first byte of every instruction payload.
type Discriminator uint8

const (
	CreateMarket   Discriminator = 0
	ClaimSeat      Discriminator = 1
	Deposit        Discriminator = 2
	BatchUpdate    Discriminator = 6
	DelegateMarket Discriminator = 14
	CommitMarket   Discriminator = 15
)

// MaxInstructionData caps a single payload at one ledger packet.
const MaxInstructionData = 1232

func (d Discriminator) String() string {
	switch d {
	case CreateMarket:
		return "CreateMarket"
	case ClaimSeat:
		return "ClaimSeat"
	case Deposit:
		return "Deposit"
	case BatchUpdate:
		return "BatchUpdate"
	case DelegateMarket:
		return "DelegateMarket"
	case CommitMarket:
		return "CommitMarket"
	default:
		return fmt.Sprintf("Discriminator(%d)", uint8(d))
	}
}

// Known reports whether d names an instruction this package encodes.
func (d Discriminator) Known() bool {
	switch d {
	case CreateMarket, ClaimSeat, Deposit, BatchUpdate, DelegateMarket, CommitMarket:
		return true
	}
	return false
}

// Kind reads the discriminator of an encoded payload.
func Kind(data []byte) (Discriminator, error) {
	if len(data) == 0 {
		return 0, wire.Layoutf("instruction kind", "empty payload")
	}
	d := Discriminator(data[0])
	if !d.Known() {
		return d, wire.Protocolf("instruction kind", "unknown discriminator %d", data[0])
	}
	return d, nil
}

// OrderType selects matching behaviour for a placed order.
type OrderType uint8

const (
	Limit             OrderType = 0
	ImmediateOrCancel OrderType = 1
	PostOnly          OrderType = 2
	Global            OrderType = 3
	Reverse           OrderType = 4
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "Limit"
	case ImmediateOrCancel:
		return "ImmediateOrCancel"
	case PostOnly:
		return "PostOnly"
	case Global:
		return "Global"
	case Reverse:
		return "Reverse"
	default:
		return "Unknown"
	}
}

func (t OrderType) Valid() bool {
	return t <= Reverse
}

// ParseOrderType accepts the names used on the command line.
func ParseOrderType(s string) (OrderType, error) {
	switch s {
	case "", "limit":
		return Limit, nil
	case "ioc":
		return ImmediateOrCancel, nil
	case "postonly", "post-only":
		return PostOnly, nil
	case "global":
		return Global, nil
	case "reverse":
		return Reverse, nil
	}
	return 0, wire.Rangef("parse order type", "unknown order type %q", s)
}

// encodeEmpty is the payload of every instruction without parameters.
func encodeEmpty(d Discriminator) []byte {
	return []byte{byte(d)}
}
