package webhook

import (
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/x402gate/x402gate"
)

// payerFromPayload recovers the payer address from the payment payload when
// the facilitator's verify response omits it. Only SVM payloads carry enough
// structure to do this locally; for everything else the payer stays empty.
func payerFromPayload(payment x402gate.PaymentPayload, logger *slog.Logger) string {
	switch payment.Network {
	case x402gate.SolanaMainnet.NetworkID, x402gate.SolanaDevnet.NetworkID:
		payer, err := payerFromSolanaTx(payment)
		if err != nil {
			logger.Warn("failed to extract payer from solana payload", "error", err)
			return ""
		}
		return payer
	default:
		return ""
	}
}

// payerFromSolanaTx decodes the partially signed transaction in an SVM
// payload and returns the funding or owner account of its transfer
// instruction.
func payerFromSolanaTx(payment x402gate.PaymentPayload) (string, error) {
	payload, ok := payment.Payload.(map[string]any)
	if !ok {
		return "", fmt.Errorf("invalid payload type")
	}
	base64Transaction, ok := payload["transaction"].(string)
	if !ok {
		return "", fmt.Errorf("transaction not found in payload")
	}

	tx, err := solana.TransactionFromBase64(base64Transaction)
	if err != nil {
		return "", fmt.Errorf("failed to decode transaction: %w", err)
	}

	for _, inst := range tx.Message.Instructions {
		prog, err := tx.Message.ResolveProgramIDIndex(inst.ProgramIDIndex)
		if err != nil {
			continue
		}
		accountsMeta, err := inst.ResolveInstructionAccounts(&tx.Message)
		if err != nil {
			continue
		}

		switch {
		case prog.Equals(solana.SystemProgramID):
			ix, err := system.DecodeInstruction(accountsMeta, inst.Data)
			if err != nil {
				continue
			}
			if transfer, ok := ix.Impl.(*system.Transfer); ok {
				return transfer.GetFundingAccount().PublicKey.String(), nil
			}
		case prog.Equals(solana.TokenProgramID):
			ix, err := token.DecodeInstruction(accountsMeta, inst.Data)
			if err != nil {
				continue
			}
			switch transfer := ix.Impl.(type) {
			case *token.Transfer:
				return transfer.GetOwnerAccount().PublicKey.String(), nil
			case *token.TransferChecked:
				return transfer.GetOwnerAccount().PublicKey.String(), nil
			}
		}
	}
	return "", nil
}
