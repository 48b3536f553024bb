// Package addrbook maps Solana addresses to bookkeeping labels. The engine
// classifies transfers by the counterparty's category, so every component
// takes a Book rather than consulting a global table.
package addrbook

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Category of a known counterparty address.
type Category string

const (
	SolanaFoundation Category = "solana_foundation"
	JitoMev          Category = "jito_mev"
	Exchange         Category = "exchange"
	ValidatorSelf    Category = "validator_self"
	PersonalWallet   Category = "personal_wallet"
	SystemProgram    Category = "system_program"
	StakeProgram     Category = "stake_program"
	VoteProgram      Category = "vote_program"
	Unknown          Category = "unknown"
)

// Label describes a known address.
type Label struct {
	Category Category
	Name     string
}

// Book resolves addresses to labels.
type Book interface {
	Lookup(addr string) Label
}

// Static is a map-backed Book.
type Static struct {
	labels map[string]Label
}

var _ Book = (*Static)(nil)

// NewStatic returns a book seeded with the well-known foundation, Jito,
// exchange, and program addresses.
func NewStatic() *Static {
	s := &Static{labels: make(map[string]Label, len(knownAddresses))}
	for addr, label := range knownAddresses {
		s.labels[addr] = label
	}
	return s
}

// Add registers an address, replacing any prior label.
func (s *Static) Add(addr string, category Category, name string) {
	s.labels[addr] = Label{Category: category, Name: name}
}

// Lookup returns the label for an address. Unknown addresses get a truncated
// display name so reports stay readable.
func (s *Static) Lookup(addr string) Label {
	if label, ok := s.labels[addr]; ok {
		return label
	}
	name := addr
	if len(addr) > 12 {
		name = addr[:4] + "..." + addr[len(addr)-4:]
	}
	return Label{Category: Unknown, Name: name}
}

// ValidateAddress checks that addr is a well-formed base58 32-byte key.
func ValidateAddress(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("address %q: expected 32 bytes, got %d", addr, len(raw))
	}
	return nil
}

// ValidateWallet checks that addr is a valid on-curve ed25519 key. Wallet
// addresses configured for the validator must be on-curve; program-derived
// addresses are not, so this rejects a PDA pasted where a wallet belongs.
func ValidateWallet(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("address %q: expected 32 bytes, got %d", addr, len(raw))
	}
	if _, err := (&edwards25519.Point{}).SetBytes(raw); err != nil {
		return fmt.Errorf("address %q is not on the ed25519 curve: %w", addr, err)
	}
	return nil
}

// Well-known mainnet addresses, sourced from explorer labels and the Jito
// tip distribution docs.
var knownAddresses = map[string]Label{
	// Solana Foundation wallets used for SFDP delegations and reimbursements.
	"mpa4abUkjQoAvPzREkh5Mo75hZhPFQ2FSH6w7dWKuQ5":  {SolanaFoundation, "Solana Foundation"},
	"7K8DVxtNJGnMtUY1CQJT5jcs8sFGSZTDiG7kowvFpECh": {SolanaFoundation, "Solana Foundation Stake Authority"},
	"DRpbCBMxVnDK7maPM5tGv6MvB3v1sRMC86PZ8okm21hy": {SolanaFoundation, "SF Delegation Program"},
	"4ZJhPQAgUseCsWhKvJLTmmRRUV74fdoTpQLNfKoHtFSP": {SolanaFoundation, "Solana Foundation Operations"},
	"DtZWL3BPKa5hw7yQYvaFR29PcXThpLHVU2XAAZrcLiSe": {SolanaFoundation, "SFDP Vote Reimbursement"},

	// Jito tip payment / distribution.
	"T1pyyaTNZsKv2WcRAB8oVnk93mLJw2XzjtVYqCsaHqt":  {JitoMev, "Jito Tip Payment Program"},
	"4R3gSG8BpU4t19KYj8CfnbtRpnT8gtk4dvTHxVRwc2r7": {JitoMev, "Jito Tip Distribution Program"},
	"8F4jGUmxF36vQ6yabnsxX6AQVXdKBhs8kGSUuRKSg8Xt": {JitoMev, "Jito Merkle Root Upload Authority"},
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5": {JitoMev, "Jito Tip Account 1"},
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe": {JitoMev, "Jito Tip Account 2"},
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY": {JitoMev, "Jito Tip Account 3"},
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49": {JitoMev, "Jito Tip Account 4"},
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh": {JitoMev, "Jito Tip Account 5"},
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt": {JitoMev, "Jito Tip Account 6"},
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL": {JitoMev, "Jito Tip Account 7"},
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT": {JitoMev, "Jito Tip Account 8"},

	// Exchanges.
	"H8sMJSCQxfKiFTCfDR3DUMLPwcRbM61LGFJ8N4dK3WjS": {Exchange, "Coinbase"},
	"2AQdpHJ2JpcEgPiATUXjQxA8QmafFegfQwSLWSprPicm": {Exchange, "Binance"},
	"5tzFkiKscXHK5ZXCGbXZxdw7gTjjD1mBwuoFbhUvuAi9": {Exchange, "Kraken"},

	// Native programs.
	"11111111111111111111111111111111":             {SystemProgram, "System Program"},
	"Stake11111111111111111111111111111111111111":  {StakeProgram, "Stake Program"},
	"Vote111111111111111111111111111111111111111":  {VoteProgram, "Vote Program"},
}
