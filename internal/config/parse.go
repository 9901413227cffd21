package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

// ParseTxHashes converts string transaction hashes into common.Hash.
func ParseTxHashes(inputs []string) ([]common.Hash, error) {
	hashes := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid tx hash: %s", input)
		}
		if len(data) != common.HashLength {
			return nil, fmt.Errorf("invalid tx hash length: %s", input)
		}
		hashes = append(hashes, common.BytesToHash(data))
	}
	return hashes, nil
}

// ParseVaultVersions converts an address=release map into typed keys.
func ParseVaultVersions(inputs map[string]string) (map[common.Address]string, error) {
	out := make(map[common.Address]string, len(inputs))
	for addr, release := range inputs {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid vault address: %s", addr)
		}
		out[common.HexToAddress(addr)] = strings.TrimPrefix(strings.TrimSpace(release), "v")
	}
	return out, nil
}
