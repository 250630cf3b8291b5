// types.go - Wire types for the mint HTTP API and their conversion to core types.
package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"ecash/internal/ecash"
	"ecash/internal/group"
)

// HexBytes marshals as a lowercase hex JSON string.
type HexBytes []byte

// MarshalJSON implements the json.Marshaler interface.
func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected hex string: %w", err)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*h = b
	return nil
}

// BlindedMessage is an output the holder wants signed.
type BlindedMessage struct {
	Amount uint64   `json:"amount"`
	B      HexBytes `json:"B_"`
}

// DLEQ is the proof that C_ was made with the published key.
type DLEQ struct {
	E HexBytes `json:"e"`
	S HexBytes `json:"s"`
}

// BlindSignature is the mint's answer for one BlindedMessage.
type BlindSignature struct {
	Amount uint64   `json:"amount"`
	C      HexBytes `json:"C_"`
	DLEQ   *DLEQ    `json:"dleq"`
}

// Proof is a note presented for spending.
type Proof struct {
	Amount uint64   `json:"amount"`
	Secret HexBytes `json:"secret"`
	C      HexBytes `json:"C"`
}

type KeysResponse struct {
	ID    string            `json:"id"`
	Curve string            `json:"curve"`
	Keys  map[uint64]string `json:"keys"`
}

type IssueRequest struct {
	Outputs []BlindedMessage `json:"outputs"`
}

type SwapRequest struct {
	Inputs  []Proof          `json:"inputs"`
	Outputs []BlindedMessage `json:"outputs"`
}

type SignaturesResponse struct {
	Signatures []BlindSignature `json:"signatures"`
}

type RedeemRequest struct {
	Inputs []Proof `json:"inputs"`
}

type RedeemResponse struct {
	OK bool `json:"ok"`
}

type CheckRequest struct {
	Secrets []HexBytes `json:"secrets"`
}

type CheckResponse struct {
	Spent []bool `json:"spent"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

func fromOutputs(outputs []ecash.BlindedOutput) []BlindedMessage {
	out := make([]BlindedMessage, len(outputs))
	for i, o := range outputs {
		out[i] = BlindedMessage{Amount: o.Denomination, B: o.B.Bytes()}
	}
	return out
}

func toOutputs(g group.Group, msgs []BlindedMessage) ([]ecash.BlindedOutput, error) {
	out := make([]ecash.BlindedOutput, len(msgs))
	for i, m := range msgs {
		b, err := g.DecodePoint(m.B)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		out[i] = ecash.BlindedOutput{Denomination: m.Amount, B: b}
	}
	return out, nil
}

func fromNotes(notes []ecash.Note) []Proof {
	out := make([]Proof, len(notes))
	for i, n := range notes {
		out[i] = Proof{Amount: n.Denomination, Secret: n.Secret, C: n.C.Bytes()}
	}
	return out
}

// toNotes decodes presented notes. Y is left empty; the mint recomputes it.
func toNotes(g group.Group, proofs []Proof) ([]ecash.Note, error) {
	out := make([]ecash.Note, len(proofs))
	for i, p := range proofs {
		c, err := g.DecodePoint(p.C)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		out[i] = ecash.Note{Denomination: p.Amount, Secret: p.Secret, C: c}
	}
	return out, nil
}

func fromSignatures(sigs []ecash.BlindSignature) []BlindSignature {
	out := make([]BlindSignature, len(sigs))
	for i, s := range sigs {
		out[i] = BlindSignature{
			Amount: s.Denomination,
			C:      s.C.Bytes(),
			DLEQ:   &DLEQ{E: s.Proof.E.Bytes(), S: s.Proof.S.Bytes()},
		}
	}
	return out
}

func toSignatures(g group.Group, sigs []BlindSignature) ([]ecash.BlindSignature, error) {
	out := make([]ecash.BlindSignature, len(sigs))
	for i, s := range sigs {
		c, err := g.DecodePoint(s.C)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, err)
		}
		if s.DLEQ == nil {
			return nil, fmt.Errorf("signature %d: missing proof: %w", i, ecash.ErrProofInvalid)
		}
		e, err := group.DecodeScalar(g, s.DLEQ.E)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, ecash.ErrProofInvalid)
		}
		sc, err := group.DecodeScalar(g, s.DLEQ.S)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i, ecash.ErrProofInvalid)
		}
		out[i] = ecash.BlindSignature{Denomination: s.Amount, C: c, Proof: &ecash.DLEQProof{E: e, S: sc}}
	}
	return out, nil
}
