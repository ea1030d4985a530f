// Package vault is a stand-in for the share-accounting vault that
// collaborates with the governance pipeline. The pipeline only touches two
// of its surfaces: a point-in-time exchange-rate read, recorded in proposal
// commitments, and a callable configuration setter that serves as the demo
// action target for executed proposals.
package vault

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// RateScale is the fixed-point scale of the exchange rate.
const RateScale = 1_000_000_000

// Calldata opcodes understood by the governance-callable setter. Calldata
// is packed: a single opcode byte followed by an 8 byte big-endian value.
const (
	OpSetLockPeriod byte = iota + 1
	OpSetFeeRate
)

var (
	ErrShortCalldata = errors.New("calldata is too short")
	ErrUnknownOp     = errors.New("unknown opcode")
)

// Vault holds the share-accounting configuration governance can adjust.
type Vault struct {
	mtx sync.Mutex

	// exchangeRate is shares-to-assets at RateScale precision
	exchangeRate uint64
	// lockPeriod is the action-lock period in seconds
	lockPeriod uint64
	// feeRate is the management fee in basis points
	feeRate uint64
}

func New(exchangeRate uint64) *Vault {
	return &Vault{exchangeRate: exchangeRate}
}

// ExchangeRate returns the current fixed-point exchange rate. Proposers
// record this value in the commitment at publication time.
func (v *Vault) ExchangeRate() uint64 {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.exchangeRate
}

func (v *Vault) LockPeriod() uint64 {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.lockPeriod
}

func (v *Vault) FeeRate() uint64 {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	return v.feeRate
}

// EncodeSetLockPeriod builds calldata for setting the action-lock period.
func EncodeSetLockPeriod(seconds uint64) []byte {
	return encodeOp(OpSetLockPeriod, seconds)
}

// EncodeSetFeeRate builds calldata for setting the management fee.
func EncodeSetFeeRate(bps uint64) []byte {
	return encodeOp(OpSetFeeRate, bps)
}

func encodeOp(op byte, value uint64) []byte {
	data := make([]byte, 9)
	data[0] = op
	binary.BigEndian.PutUint64(data[1:], value)
	return data
}

// HandleCall is the configuration setter governance dispatches to. It
// decodes packed calldata and returns the previous value of the field it
// set, big-endian encoded.
func (v *Vault) HandleCall(data []byte) ([]byte, error) {
	if len(data) < 9 {
		return nil, ErrShortCalldata
	}
	value := binary.BigEndian.Uint64(data[1:9])

	v.mtx.Lock()
	defer v.mtx.Unlock()

	var prev uint64
	switch data[0] {
	case OpSetLockPeriod:
		prev, v.lockPeriod = v.lockPeriod, value
	case OpSetFeeRate:
		prev, v.feeRate = v.feeRate, value
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOp, data[0])
	}

	ret := make([]byte, 8)
	binary.BigEndian.PutUint64(ret, prev)
	return ret, nil
}
