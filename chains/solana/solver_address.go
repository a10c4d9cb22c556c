package solana

// SolverAddress returns the solver's custody address on this chain. The
// address is empty when the chain was configured without a private key.
func (s *solana) SolverAddress() string {
	s.signerMutex.RLock()
	defer s.signerMutex.RUnlock()
	if !s.hasSigner {
		return ""
	}
	return s.signer.PublicKey().String()
}
