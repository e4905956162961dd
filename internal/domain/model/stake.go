package model

import "errors"

// MaxStakedModels bounds the per-participant staked model sequence.
const MaxStakedModels = 50

// Sentinel kinds for stake bookkeeping.
var (
	ErrStakeCapacity  = errors.New("staked model list is full")
	ErrStakeUnderflow = errors.New("withdrawal exceeds staked amount")
)

// StakeAccount is a participant's deposit bookkeeping.
//
// StakedModels only grows: withdrawing a model's stake keeps its identifier
// so the account retains a history of everything it ever staked against.
type StakeAccount struct {
	Participant  string   `json:"participant"`
	TotalStaked  uint64   `json:"total_staked"`
	StakedModels []uint64 `json:"staked_models"`
}

// Deposit adds amount for modelID. The account is left untouched on error.
func (a *StakeAccount) Deposit(amount, modelID uint64) error {
	if len(a.StakedModels) >= MaxStakedModels {
		return ErrStakeCapacity
	}
	a.TotalStaked += amount
	a.StakedModels = append(a.StakedModels, modelID)
	return nil
}

// Withdraw removes amount from the total without touching StakedModels.
func (a *StakeAccount) Withdraw(amount uint64) error {
	if amount > a.TotalStaked {
		return ErrStakeUnderflow
	}
	a.TotalStaked -= amount
	return nil
}

// Clone returns a deep copy safe to mutate independently.
func (a StakeAccount) Clone() StakeAccount {
	out := a
	out.StakedModels = append([]uint64(nil), a.StakedModels...)
	return out
}
