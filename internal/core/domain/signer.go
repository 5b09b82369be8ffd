package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
)

// Address identifies a party: the hex-encoded Hash160 of its compressed
// secp256k1 public key. Hex encoding preserves byte order, so canonical
// peer ordering is plain string comparison.
type Address string

func AddressFromPubKey(pub *btcec.PublicKey) Address {
	return Address(hex.EncodeToString(btcutil.Hash160(pub.SerializeCompressed())))
}

// Hash is the ledger-wide digest function.
func Hash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// SignBytes produces a compact recoverable signature over Hash(msg).
func SignBytes(priv *btcec.PrivateKey, msg []byte) ([]byte, error) {
	return ecdsa.SignCompact(priv, Hash(msg), true), nil
}

// RecoverSigner returns the address that produced sig over Hash(msg).
func RecoverSigner(msg, sig []byte) (Address, error) {
	pub, _, err := ecdsa.RecoverCompact(sig, Hash(msg))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	return AddressFromPubKey(pub), nil
}

// VerifyCoSigned checks that sigs contains exactly one valid signature
// from each of the two peers, in peer order.
func VerifyCoSigned(msg []byte, sigs [2][]byte, peers [2]Address) error {
	for i := range peers {
		signer, err := RecoverSigner(msg, sigs[i])
		if err != nil {
			return err
		}
		if signer != peers[i] {
			return fmt.Errorf("%w: signer %s is not peer %s", ErrInvalidSignature, signer, peers[i])
		}
	}
	return nil
}

// VerifySingleSigned checks one signature against an expected signer.
func VerifySingleSigned(msg, sig []byte, expected Address) error {
	signer, err := RecoverSigner(msg, sig)
	if err != nil {
		return err
	}
	if signer != expected {
		return fmt.Errorf("%w: signer %s is not %s", ErrInvalidSignature, signer, expected)
	}
	return nil
}
