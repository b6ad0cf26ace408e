package order

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SignatureVerifier checks that a signature authorizes an order, first by
// local recovery and then against the settlement contract.
type SignatureVerifier struct {
	chain  ChainReader
	logger *zap.Logger
}

func NewSignatureVerifier(chain ChainReader, logger *zap.Logger) *SignatureVerifier {
	return &SignatureVerifier{chain: chain, logger: logger}
}

// Verify returns nil only if sig recovers to the record's maker and the
// settlement contract accepts the pair.
func (sv *SignatureVerifier) Verify(ctx context.Context, rec *Record, sig Signature) error {
	signer, err := RecoverSigner(rec, sig)
	if err != nil {
		return err
	}
	if signer != rec.Maker {
		sv.logger.Info("Signature does not match order maker",
			zap.String("maker", NormalizeAddress(rec.Maker)),
			zap.String("signer", NormalizeAddress(signer)))
		return fmt.Errorf("%w: signed by %s", ErrInvalidSignature, signer.Hex())
	}

	// revert is final; chain.Reader does not retry it
	if err := sv.chain.ValidateOrder(ctx, rec, sig); err != nil {
		return err
	}
	return nil
}
