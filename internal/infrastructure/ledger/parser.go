package ledger

import (
	"math/big"
	"strings"

	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
)

// eventName returns the struct name of a fully qualified event type, without generics
func eventName(eventType string) string {
	name := eventType
	if i := strings.Index(name, "<"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	return strings.ToLower(name)
}

// IsDepositEventType reports whether an event type records value entering an account
func IsDepositEventType(eventType string) bool {
	return strings.Contains(eventName(eventType), "deposit")
}

// IsWithdrawalEventType reports whether an event type records value leaving an account
func IsWithdrawalEventType(eventType string) bool {
	return strings.Contains(eventName(eventType), "withdraw")
}

// ClassifyTransaction classifies a transaction relative to the queried address.
//
// The recipient is the account of the first deposit event, else the second
// positional payload argument when it is a full address, else the queried
// address for inbound transactions.
func ClassifyTransaction(tx entities.RawTransaction, address string) entities.WalletTransaction {
	direction := entities.DirectionInbound
	if entities.SameAddress(tx.Sender, address) {
		direction = entities.DirectionOutbound
	}

	recipient := transferRecipient(tx)
	if recipient == "" {
		recipient = payloadRecipient(tx.Payload)
	}
	if recipient == "" && direction == entities.DirectionInbound {
		recipient = strings.ToLower(address)
	}

	amount := transferAmount(tx)

	return entities.WalletTransaction{
		Version:      tx.Version,
		Hash:         tx.Hash,
		Timestamp:    tx.Timestamp,
		Direction:    direction,
		Sender:       strings.ToLower(tx.Sender),
		Recipient:    recipient,
		Amount:       amount,
		AmountString: amount.String(),
		Function:     tx.Payload.Function,
		Success:      tx.Success,
		GasFee:       gasFee(tx).String(),
	}
}

// gasFee is gas used times gas unit price, computed without overflow
func gasFee(tx entities.RawTransaction) *big.Int {
	used := new(big.Int).SetUint64(tx.GasUsed)
	return used.Mul(used, new(big.Int).SetUint64(tx.GasUnitPrice))
}

func transferRecipient(tx entities.RawTransaction) string {
	for _, ev := range tx.Events {
		if IsDepositEventType(ev.Type) && ev.AccountAddress != "" {
			return strings.ToLower(ev.AccountAddress)
		}
	}
	return ""
}

func payloadRecipient(payload entities.TransactionPayload) string {
	if len(payload.Arguments) < 2 {
		return ""
	}
	arg, ok := payload.Arguments[1].(string)
	if !ok || !entities.IsValidAddress(arg) {
		return ""
	}
	return strings.ToLower(arg)
}

func transferAmount(tx entities.RawTransaction) *big.Int {
	for _, want := range []func(string) bool{IsDepositEventType, IsWithdrawalEventType} {
		for _, ev := range tx.Events {
			if !want(ev.Type) {
				continue
			}
			if v, ok := entities.ParseMinorUnits(ev.Amount); ok {
				return v
			}
		}
	}
	return new(big.Int)
}

// ClassifyTransactions classifies every transaction relative to address
func ClassifyTransactions(txs []entities.RawTransaction, address string) []entities.WalletTransaction {
	out := make([]entities.WalletTransaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, ClassifyTransaction(tx, address))
	}
	return out
}
