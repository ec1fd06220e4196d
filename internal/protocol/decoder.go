package protocol

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"lendingScope/internal/model"
)

// Decoder turns raw lending protocol logs into typed events. The same
// Mint/Burn names exist on both token ABIs with different signatures, so
// dispatch is keyed by topic0 rather than event name.
type Decoder struct {
	aToken    abi.ABI
	debtToken abi.ABI
	pool      abi.ABI

	topicToKind map[string]model.EventKind
}

// NewDecoder builds a decoder for aToken, variable debt token and lending
// pool events.
func NewDecoder() (*Decoder, error) {
	aToken, err := ATokenABI()
	if err != nil {
		return nil, err
	}
	debtToken, err := DebtTokenABI()
	if err != nil {
		return nil, err
	}
	pool, err := LendingPoolABI()
	if err != nil {
		return nil, err
	}

	topicToKind := map[string]model.EventKind{
		topicKey(aToken.Events["Mint"].ID):                          model.SupplyMint,
		topicKey(aToken.Events["Burn"].ID):                          model.SupplyBurn,
		topicKey(aToken.Events["BalanceTransfer"].ID):               model.SupplyTransfer,
		topicKey(debtToken.Events["Mint"].ID):                       model.DebtMint,
		topicKey(debtToken.Events["Burn"].ID):                       model.DebtBurn,
		topicKey(pool.Events["ReserveUsedAsCollateralEnabled"].ID):  model.CollateralEnabled,
		topicKey(pool.Events["ReserveUsedAsCollateralDisabled"].ID): model.CollateralDisabled,
	}

	return &Decoder{
		aToken:      aToken,
		debtToken:   debtToken,
		pool:        pool,
		topicToKind: topicToKind,
	}, nil
}

// Topics returns every topic0 the decoder understands, for log filtering.
func (d *Decoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToKind))
	for topic := range d.topicToKind {
		out = append(out, common.HexToHash(topic))
	}
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToKind[strings.ToLower(topic0)]
	return ok
}

// Decode converts a RawLog into a typed Event. Logs whose topic0 is not a
// tracked protocol event return ok=false without an error so callers can
// skip them.
func (d *Decoder) Decode(log model.RawLog) (model.Event, bool, error) {
	if len(log.Topics) == 0 {
		return model.Event{}, false, nil
	}
	kind, ok := d.topicToKind[strings.ToLower(log.Topics[0])]
	if !ok {
		return model.Event{}, false, nil
	}

	if !common.IsHexAddress(log.Address) {
		return model.Event{}, false, fmt.Errorf("invalid emitter address: %s", log.Address)
	}

	ev := model.Event{
		Kind:        kind,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.LogIndex,
		Token:       common.HexToAddress(log.Address),
	}

	var err error
	switch kind {
	case model.SupplyMint:
		err = d.decodeSupplyMint(log, &ev)
	case model.SupplyBurn:
		err = d.decodeSupplyBurn(log, &ev)
	case model.SupplyTransfer:
		err = d.decodeSupplyTransfer(log, &ev)
	case model.DebtMint:
		err = d.decodeDebtMint(log, &ev)
	case model.DebtBurn:
		err = d.decodeDebtBurn(log, &ev)
	case model.CollateralEnabled, model.CollateralDisabled:
		err = d.decodeCollateralFlag(log, &ev)
	default:
		err = fmt.Errorf("unsupported event kind: %s", kind)
	}
	if err != nil {
		return model.Event{}, false, fmt.Errorf("decode %s: %w", kind, err)
	}
	return ev, true, nil
}

func (d *Decoder) decodeSupplyMint(log model.RawLog, ev *model.Event) error {
	event := d.aToken.Events["Mint"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return err
	}

	var indexed struct {
		From common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return err
	}
	if len(values) != 2 {
		return fmt.Errorf("unexpected mint values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return err
	}
	index, err := asBigInt(values[1])
	if err != nil {
		return err
	}

	ev.User = indexed.From
	ev.Amount = amount
	ev.Index = index
	return nil
}

func (d *Decoder) decodeSupplyBurn(log model.RawLog, ev *model.Event) error {
	event := d.aToken.Events["Burn"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return err
	}

	var indexed struct {
		From   common.Address
		Target common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return err
	}
	if len(values) != 2 {
		return fmt.Errorf("unexpected burn values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return err
	}
	index, err := asBigInt(values[1])
	if err != nil {
		return err
	}

	ev.User = indexed.From
	ev.To = indexed.Target
	ev.Amount = amount
	ev.Index = index
	return nil
}

func (d *Decoder) decodeSupplyTransfer(log model.RawLog, ev *model.Event) error {
	event := d.aToken.Events["BalanceTransfer"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return err
	}

	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return err
	}
	if len(values) != 2 {
		return fmt.Errorf("unexpected transfer values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return err
	}
	index, err := asBigInt(values[1])
	if err != nil {
		return err
	}

	ev.User = indexed.From
	ev.To = indexed.To
	ev.Amount = amount
	ev.Index = index
	return nil
}

func (d *Decoder) decodeDebtMint(log model.RawLog, ev *model.Event) error {
	event := d.debtToken.Events["Mint"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return err
	}

	var indexed struct {
		From       common.Address
		OnBehalfOf common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return err
	}
	if len(values) != 2 {
		return fmt.Errorf("unexpected mint values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return err
	}
	index, err := asBigInt(values[1])
	if err != nil {
		return err
	}

	// The debt is booked against onBehalfOf, not the caller.
	ev.User = indexed.OnBehalfOf
	ev.Amount = amount
	ev.Index = index
	return nil
}

func (d *Decoder) decodeDebtBurn(log model.RawLog, ev *model.Event) error {
	event := d.debtToken.Events["Burn"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return err
	}

	var indexed struct {
		User common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return err
	}
	if len(values) != 2 {
		return fmt.Errorf("unexpected burn values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return err
	}
	index, err := asBigInt(values[1])
	if err != nil {
		return err
	}

	ev.User = indexed.User
	ev.Amount = amount
	ev.Index = index
	return nil
}

func (d *Decoder) decodeCollateralFlag(log model.RawLog, ev *model.Event) error {
	name := "ReserveUsedAsCollateralEnabled"
	if ev.Kind == model.CollateralDisabled {
		name = "ReserveUsedAsCollateralDisabled"
	}
	event := d.pool.Events[name]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return err
	}

	var indexed struct {
		Reserve common.Address
		User    common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}

	ev.Reserve = indexed.Reserve
	ev.User = indexed.User
	return nil
}

func topicKey(id common.Hash) string {
	return strings.ToLower(id.Hex())
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported integer type %T", value)
	}
}
