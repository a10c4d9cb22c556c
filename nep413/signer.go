// Package nep413 signs solver quote commitments in the NEP-413 off-chain
// message format accepted by the intents contract.
//
// The signed digest is sha256 over the borsh serialization of the message
// prefix (2^31 + 413 as little-endian u32) followed by the borsh payload
// {message, nonce[32], recipient, Option<callback_url>}.
package nep413

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ClipFinance/intents-solver/common/types"
	bin "github.com/gagliardetto/binary"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// SignatureStandard is the NEP identifier carried in signed_data.
	SignatureStandard = "nep413"

	// messagePrefix tags the digest as an off-chain NEP-413 message so it
	// can never collide with an on-chain transaction hash.
	messagePrefix uint32 = 1<<31 + 413
)

type signPayload struct {
	Message     string
	Nonce       [32]uint8
	Recipient   string
	CallbackURL *string `bin:"optional"`
}

// Signer produces NEP-413 signed quotes for a NEAR account key.
type Signer struct {
	logger         *logrus.Logger
	accountID      string
	defuseContract string
	privateKey     ed25519.PrivateKey
	publicKey      ed25519.PublicKey

	mu         sync.Mutex
	usedNonces map[string]struct{}
}

// NewSigner parses a NEAR ed25519 private key ("ed25519:<base58>") and
// returns a signer committing quotes to the given intents contract.
func NewSigner(accountID, privateKey, defuseContract string, logger *logrus.Logger) (*Signer, error) {
	if accountID == "" || privateKey == "" {
		return nil, errors.New("NEAR account not configured for signing")
	}
	if defuseContract == "" {
		defuseContract = "intents.near"
	}

	key, err := parseNearPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}

	logger.WithField("account", accountID).Info("Initialized NEP-413 signer")

	return &Signer{
		logger:         logger,
		accountID:      accountID,
		defuseContract: defuseContract,
		privateKey:     key,
		publicKey:      key.Public().(ed25519.PublicKey),
		usedNonces:     make(map[string]struct{}),
	}, nil
}

// parseNearPrivateKey decodes a NEAR-format ed25519 key. NEAR exports the
// 64-byte seed-plus-public-key layout, which matches crypto/ed25519's
// PrivateKey directly; a bare 32-byte seed is also accepted.
func parseNearPrivateKey(key string) (ed25519.PrivateKey, error) {
	encoded := strings.TrimPrefix(key, "ed25519:")
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode NEAR private key")
	}

	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, errors.Errorf("unexpected ed25519 key length %d", len(raw))
	}
}

// PublicKeyString returns the signer's public key in NEAR presentation
// format.
func (s *Signer) PublicKeyString() string {
	return "ed25519:" + base58.Encode(s.publicKey)
}

// AccountID returns the signing account.
func (s *Signer) AccountID() string {
	return s.accountID
}

// generateNonce draws a fresh random 32-byte nonce, base64 encoded, that
// has not been issued by this signer before.
func (s *Signer) generateNonce() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return "", errors.Wrap(err, "failed to generate nonce")
		}
		nonce := base64.StdEncoding.EncodeToString(raw)
		if _, used := s.usedNonces[nonce]; used {
			continue
		}
		s.usedNonces[nonce] = struct{}{}
		return nonce, nil
	}
}

// serializeIntent produces the signed digest for a message bound to a
// recipient and nonce.
func serializeIntent(message, recipient, nonce string) ([]byte, error) {
	rawNonce, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil {
		return nil, errors.Wrap(err, "invalid nonce encoding")
	}
	if len(rawNonce) != 32 {
		return nil, errors.Errorf("nonce must be 32 bytes, got %d", len(rawNonce))
	}

	payload := signPayload{
		Message:   message,
		Recipient: recipient,
	}
	copy(payload.Nonce[:], rawNonce)

	buf := new(bytes.Buffer)
	encoder := bin.NewBorshEncoder(buf)
	if err := encoder.WriteUint32(messagePrefix, bin.LE); err != nil {
		return nil, errors.Wrap(err, "failed to encode message prefix")
	}
	if err := encoder.Encode(payload); err != nil {
		return nil, errors.Wrap(err, "failed to encode payload")
	}

	digest := sha256.Sum256(buf.Bytes())
	return digest[:], nil
}

// CreateSignedQuote builds and signs the token_diff intent message for a
// quote. calculatedAmount fills whichever leg the request left open: it
// becomes amount_out for exact-in requests and amount_in for exact-out
// requests.
func (s *Signer) CreateSignedQuote(quoteID string, req *types.QuoteRequest, calculatedAmount string) (*types.SignedQuote, error) {
	deadline := time.Now().UnixMilli() + req.MinDeadlineMs
	deadlineSeconds := deadline / 1000

	amountIn := req.ExactAmountIn
	if amountIn == "" {
		amountIn = calculatedAmount
	}
	amountOut := req.ExactAmountOut
	if amountOut == "" {
		amountOut = calculatedAmount
	}

	message, err := buildIntentMessage(s.accountID, deadlineSeconds, req.AssetIn, amountIn, req.AssetOut, amountOut)
	if err != nil {
		return nil, err
	}

	nonce, err := s.generateNonce()
	if err != nil {
		return nil, err
	}

	digest, err := serializeIntent(message, s.defuseContract, nonce)
	if err != nil {
		return nil, err
	}

	signature := ed25519.Sign(s.privateKey, digest)

	signed := &types.SignedQuote{
		QuoteID: quoteID,
		SignedData: types.SignedData{
			Standard: SignatureStandard,
			Payload: types.SignedPayload{
				Message:   message,
				Nonce:     nonce,
				Recipient: s.defuseContract,
			},
			Signature: "ed25519:" + base58.Encode(signature),
			PublicKey: s.PublicKeyString(),
		},
	}

	if req.ExactAmountIn == "" {
		signed.QuoteOutput.AmountIn = calculatedAmount
	} else {
		signed.QuoteOutput.AmountOut = calculatedAmount
	}

	s.logger.WithFields(logrus.Fields{
		"quoteID": quoteID,
		"amount":  calculatedAmount,
	}).Info("Created signed quote")

	return signed, nil
}

// intentMessage is the JSON document covered by the signature. The diff
// keys are emitted in origin-then-destination order.
type intentMessage struct {
	SignerID string         `json:"signer_id"`
	Deadline intentDeadline `json:"deadline"`
	Intents  []tokenDiff    `json:"intents"`
}

type intentDeadline struct {
	Timestamp int64 `json:"timestamp"`
}

type tokenDiff struct {
	Intent string      `json:"intent"`
	Diff   orderedDiff `json:"diff"`
}

type orderedDiff struct {
	assetIn   string
	amountIn  string
	assetOut  string
	amountOut string
}

func (d orderedDiff) MarshalJSON() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte('{')
	for i, entry := range []struct{ key, value string }{
		{d.assetIn, d.amountIn},
		{d.assetOut, "-" + d.amountOut},
	} {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry.value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func buildIntentMessage(signerID string, deadline int64, assetIn, amountIn, assetOut, amountOut string) (string, error) {
	message := intentMessage{
		SignerID: signerID,
		Deadline: intentDeadline{Timestamp: deadline},
		Intents: []tokenDiff{{
			Intent: "token_diff",
			Diff: orderedDiff{
				assetIn:   assetIn,
				amountIn:  amountIn,
				assetOut:  assetOut,
				amountOut: amountOut,
			},
		}},
	}

	raw, err := json.Marshal(message)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal intent message")
	}
	return string(raw), nil
}
