package evm

import "github.com/ethereum/go-ethereum/common"

// SolverAddress returns the solver's custody address on this chain. The
// address is empty when the chain was configured without a private key.
func (e *evm) SolverAddress() string {
	if e.solverAddress == (common.Address{}) {
		return ""
	}
	return e.solverAddress.Hex()
}
