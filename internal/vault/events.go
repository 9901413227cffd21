package vault

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"vaultFees/internal/model"
)

type eventSet struct {
	reports map[common.Hash]abi.Event
	fees    map[common.Hash]abi.Event
}

var (
	events     eventSet
	eventsOnce sync.Once
	eventsErr  error
)

func loadEvents() (eventSet, error) {
	eventsOnce.Do(func() {
		set := eventSet{
			reports: make(map[common.Hash]abi.Event),
			fees:    make(map[common.Hash]abi.Event),
		}
		for _, p := range []*parsedABI{vaultABI, legacyEventsABI, eventsABI} {
			parsed, err := p.get()
			if err != nil {
				eventsErr = fmt.Errorf("parse vault abi: %w", err)
				return
			}
			for name, ev := range parsed.Events {
				if name == "StrategyReported" {
					set.reports[ev.ID] = ev
				} else {
					set.fees[ev.ID] = ev
				}
			}
		}
		events = set
	})
	return events, eventsErr
}

// ReportTopics returns topic0 of every StrategyReported variant.
func ReportTopics() ([]common.Hash, error) {
	set, err := loadEvents()
	if err != nil {
		return nil, err
	}
	return keys(set.reports), nil
}

// FeeTopics returns topic0 of every event that changes the fee configuration.
func FeeTopics() ([]common.Hash, error) {
	set, err := loadEvents()
	if err != nil {
		return nil, err
	}
	return keys(set.fees), nil
}

func keys(m map[common.Hash]abi.Event) []common.Hash {
	out := make([]common.Hash, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// IsReport reports whether log is a StrategyReported event.
func IsReport(log types.Log) bool {
	if len(log.Topics) == 0 {
		return false
	}
	set, err := loadEvents()
	if err != nil {
		return false
	}
	_, ok := set.reports[log.Topics[0]]
	return ok
}

// DecodeReport decodes any StrategyReported variant.
func DecodeReport(log types.Log) (model.ReportEvent, error) {
	set, err := loadEvents()
	if err != nil {
		return model.ReportEvent{}, err
	}
	if len(log.Topics) < 2 {
		return model.ReportEvent{}, fmt.Errorf("report log %s:%d: missing topics", log.TxHash.Hex(), log.Index)
	}
	ev, ok := set.reports[log.Topics[0]]
	if !ok {
		return model.ReportEvent{}, fmt.Errorf("log %s:%d is not a report", log.TxHash.Hex(), log.Index)
	}

	values, err := unpack(ev, log.Data)
	if err != nil {
		return model.ReportEvent{}, err
	}

	report := model.ReportEvent{
		BlockNumber: log.BlockNumber,
		LogIndex:    uint64(log.Index),
		TxHash:      log.TxHash,
		Vault:       log.Address,
		Strategy:    common.BytesToAddress(log.Topics[1].Bytes()),
		Gain:        values["gain"],
		Loss:        values["loss"],
		DebtPaid:    values["debtPaid"],
		TotalGain:   values["totalGain"],
		TotalLoss:   values["totalLoss"],
		TotalDebt:   values["totalDebt"],
		DebtAdded:   values["debtAdded"],
		DebtRatio:   values["debtRatio"],
	}
	return report, nil
}

// DecodeFeeEvent decodes an event that changes the fee configuration.
func DecodeFeeEvent(log types.Log) (model.FeeEvent, error) {
	set, err := loadEvents()
	if err != nil {
		return model.FeeEvent{}, err
	}
	if len(log.Topics) == 0 {
		return model.FeeEvent{}, fmt.Errorf("fee log %s:%d: missing topics", log.TxHash.Hex(), log.Index)
	}
	ev, ok := set.fees[log.Topics[0]]
	if !ok {
		return model.FeeEvent{}, fmt.Errorf("log %s:%d is not a fee event", log.TxHash.Hex(), log.Index)
	}
	values, err := unpack(ev, log.Data)
	if err != nil {
		return model.FeeEvent{}, err
	}

	out := model.FeeEvent{
		BlockNumber: log.BlockNumber,
		LogIndex:    uint64(log.Index),
		Vault:       log.Address,
	}
	topic := func(i int) (common.Address, error) {
		if len(log.Topics) <= i {
			return common.Address{}, fmt.Errorf("%s log %s:%d: missing topic %d", ev.Name, log.TxHash.Hex(), log.Index, i)
		}
		return common.BytesToAddress(log.Topics[i].Bytes()), nil
	}

	switch ev.Name {
	case "UpdateManagementFee":
		out.Kind = model.FeeEventManagementFee
		out.Value, err = bps(values["managementFee"])
	case "UpdatePerformanceFee":
		out.Kind = model.FeeEventPerformanceFee
		out.Value, err = bps(values["performanceFee"])
	case "StrategyAdded", "StrategyUpdatePerformanceFee":
		out.Kind = model.FeeEventStrategyFee
		if ev.Name == "StrategyAdded" {
			out.Kind = model.FeeEventStrategyAdded
		}
		if out.Strategy, err = topic(1); err == nil {
			out.Value, err = bps(values["performanceFee"])
		}
	case "StrategyMigrated":
		out.Kind = model.FeeEventStrategyMigrated
		if out.OldStrategy, err = topic(1); err == nil {
			out.Strategy, err = topic(2)
		}
	default:
		err = fmt.Errorf("unhandled fee event %s", ev.Name)
	}
	if err != nil {
		return model.FeeEvent{}, err
	}
	return out, nil
}

func unpack(ev abi.Event, data []byte) (map[string]*big.Int, error) {
	args := ev.Inputs.NonIndexed()
	raw, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", ev.Name, err)
	}
	out := make(map[string]*big.Int, len(raw))
	for i, arg := range args {
		v, ok := raw[i].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unpack %s.%s: unexpected %T", ev.Name, arg.Name, raw[i])
		}
		out[arg.Name] = v
	}
	return out, nil
}

func bps(v *big.Int) (uint64, error) {
	if v == nil || !v.IsUint64() {
		return 0, fmt.Errorf("invalid basis points %v", v)
	}
	return v.Uint64(), nil
}
