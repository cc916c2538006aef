package types

import "encoding/hex"

// Script is a raw locking script as carried on the wire. Unlike a general
// script-execution engine, the indexer only ever pattern-matches against it;
// it never interprets opcodes beyond the two patterns below.
type Script []byte

// opFalse, opReturn are the first two opcodes of an unspendable data-carrier
// output: OP_FALSE OP_RETURN.
const (
	opFalse  byte = 0x00
	opReturn byte = 0x6a
)

// IsSpendable reports whether an output's lock script is considered
// spendable. An output is unspendable iff its script begins with the
// two-byte prefix 0x00 0x6A (OP_FALSE OP_RETURN). An empty script is
// spendable.
func (s Script) IsSpendable() bool {
	if len(s) < 2 {
		return true
	}
	return !(s[0] == opFalse && s[1] == opReturn)
}

// p2pkhLen is the length of the canonical pay-to-pubkey-hash template:
// OP_DUP OP_HASH160 <push 20> <20 bytes> OP_EQUALVERIFY OP_CHECKSIG.
const p2pkhLen = 25

const (
	opDup         byte = 0x76
	opHash160     byte = 0xa9
	opPush20      byte = 0x14
	opEqualVerify byte = 0x88
	opCheckSig    byte = 0xac
)

// UnknownPubKeyHash is recorded for any script that does not match the
// classic P2PKH template.
const UnknownPubKeyHash = "unknown"

// PubKeyHash extracts the 20-byte hash from a canonical P2PKH lock script:
//
//	0x76 0xA9 0x14 <20 bytes> 0x88 0xAC
//
// and returns it hex-encoded. Any other shape yields the literal
// UnknownPubKeyHash. Both forms are stored in the utxo.pubkeyhash column.
func (s Script) PubKeyHash() string {
	if len(s) != p2pkhLen {
		return UnknownPubKeyHash
	}
	if s[0] != opDup || s[1] != opHash160 || s[2] != opPush20 {
		return UnknownPubKeyHash
	}
	if s[23] != opEqualVerify || s[24] != opCheckSig {
		return UnknownPubKeyHash
	}
	return hex.EncodeToString(s[3:23])
}

// P2PKHScript builds the canonical lock script for a 20-byte pubkey hash,
// the same pattern PubKeyHash recognises.
func P2PKHScript(pubKeyHash [20]byte) Script {
	s := make(Script, 0, p2pkhLen)
	s = append(s, opDup, opHash160, opPush20)
	s = append(s, pubKeyHash[:]...)
	s = append(s, opEqualVerify, opCheckSig)
	return s
}

// Hex returns the lowercase hex encoding of the script bytes, the form used
// for regex collection matching and for the `collection`/`tx` table payloads.
func (s Script) Hex() string {
	return hex.EncodeToString(s)
}
