package ledger

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/bimakw/ledger-analyzer/internal/domain/entities"
)

// apiEvent is an event as returned by the ledger API
type apiEvent struct {
	Version        string          `json:"version"`
	SequenceNumber string          `json:"sequence_number"`
	Type           string          `json:"type"`
	Timestamp      string          `json:"timestamp,omitempty"`
	GUID           apiGUID         `json:"guid"`
	Data           json.RawMessage `json:"data"`
}

type apiGUID struct {
	CreationNumber string `json:"creation_number"`
	AccountAddress string `json:"account_address"`
}

// eventData holds the fields of value-transfer event payloads we understand
type eventData struct {
	Amount  json.RawMessage `json:"amount"`
	Account string          `json:"account"`
}

type apiPayload struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// apiTransaction is a transaction as returned by the ledger API
type apiTransaction struct {
	Type           string     `json:"type"`
	Version        string     `json:"version"`
	Hash           string     `json:"hash"`
	Sender         string     `json:"sender"`
	SequenceNumber string     `json:"sequence_number"`
	Success        bool       `json:"success"`
	Timestamp      string     `json:"timestamp"`
	GasUsed        string     `json:"gas_used"`
	GasUnitPrice   string     `json:"gas_unit_price"`
	Payload        apiPayload `json:"payload"`
	Events         []apiEvent `json:"events"`
}

type apiAccount struct {
	SequenceNumber    string `json:"sequence_number"`
	AuthenticationKey string `json:"authentication_key"`
}

type apiResource struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type coinStoreData struct {
	Coin struct {
		Value string `json:"value"`
	} `json:"coin"`
}

const coinStorePrefix = "0x1::coin::CoinStore<"

func parseUint(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseMicros parses a microseconds-since-epoch decimal string
func parseMicros(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return time.Time{}, false
	}
	return time.UnixMicro(v).UTC(), true
}

// parseRawAmount accepts both quoted and bare integer JSON amounts
func parseRawAmount(raw json.RawMessage) (*big.Int, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, false
	}
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return nil, false
		}
		s = unquoted
	}
	return entities.ParseMinorUnits(s)
}

func (e apiEvent) data() eventData {
	var d eventData
	if len(e.Data) > 0 {
		_ = json.Unmarshal(e.Data, &d)
	}
	return d
}

// toLedgerEvent converts an API event, reporting false for shapes without a usable amount
func (e apiEvent) toLedgerEvent(kind entities.EventKind, tokenType string) (entities.LedgerEvent, bool) {
	amount, ok := parseRawAmount(e.data().Amount)
	if !ok {
		return entities.LedgerEvent{}, false
	}

	ts, _ := parseMicros(e.Timestamp)

	return entities.LedgerEvent{
		Kind:           kind,
		Amount:         amount,
		AmountString:   amount.String(),
		TokenType:      tokenType,
		Timestamp:      ts,
		SequenceNumber: parseUint(e.SequenceNumber),
		Version:        parseUint(e.Version),
	}, true
}

// toRawTransaction converts an API transaction, keeping only value-transfer events
func (t apiTransaction) toRawTransaction() entities.RawTransaction {
	ts, _ := parseMicros(t.Timestamp)

	events := make([]entities.TransactionEvent, 0, len(t.Events))
	for _, ev := range t.Events {
		if !IsDepositEventType(ev.Type) && !IsWithdrawalEventType(ev.Type) {
			continue
		}
		d := ev.data()
		amount, ok := parseRawAmount(d.Amount)
		if !ok {
			continue
		}
		account := ev.GUID.AccountAddress
		if account == "" || account == "0x0" {
			account = d.Account
		}
		events = append(events, entities.TransactionEvent{
			Type:           ev.Type,
			AccountAddress: account,
			Amount:         amount.String(),
		})
	}

	return entities.RawTransaction{
		Version:        parseUint(t.Version),
		Hash:           t.Hash,
		Sender:         t.Sender,
		SequenceNumber: parseUint(t.SequenceNumber),
		Success:        t.Success,
		Timestamp:      ts,
		GasUsed:        parseUint(t.GasUsed),
		GasUnitPrice:   parseUint(t.GasUnitPrice),
		Payload: entities.TransactionPayload{
			Function:      t.Payload.Function,
			TypeArguments: t.Payload.TypeArguments,
			Arguments:     t.Payload.Arguments,
		},
		Events: events,
	}
}

// coinBalance extracts the balance of a coin store resource
func (r apiResource) coinBalance() (entities.CoinBalance, bool) {
	if !strings.HasPrefix(r.Type, coinStorePrefix) {
		return entities.CoinBalance{}, false
	}

	var data coinStoreData
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return entities.CoinBalance{}, false
	}
	amount, ok := entities.ParseMinorUnits(data.Coin.Value)
	if !ok {
		return entities.CoinBalance{}, false
	}

	return entities.CoinBalance{
		TokenType:       r.Type,
		Amount:          amount,
		AmountString:    amount.String(),
		AmountFormatted: entities.FormatAmount(amount, entities.DecimalsFor(r.Type)),
	}, true
}
