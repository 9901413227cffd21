package vault

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// vaultABIJSON holds the view functions and fee events shared by every release.
const vaultABIJSON = `[
  {"name": "apiVersion", "type": "function", "stateMutability": "view", "inputs": [],
   "outputs": [{"name": "", "type": "string"}]},
  {"name": "decimals", "type": "function", "stateMutability": "view", "inputs": [],
   "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "lastReport", "type": "function", "stateMutability": "view", "inputs": [],
   "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "totalAssets", "type": "function", "stateMutability": "view", "inputs": [],
   "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "totalDebt", "type": "function", "stateMutability": "view", "inputs": [],
   "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "delegatedAssets", "type": "function", "stateMutability": "view", "inputs": [],
   "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "managementFee", "type": "function", "stateMutability": "view", "inputs": [],
   "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "performanceFee", "type": "function", "stateMutability": "view", "inputs": [],
   "outputs": [{"name": "", "type": "uint256"}]},
  {"name": "strategies", "type": "function", "stateMutability": "view",
   "inputs": [{"name": "arg0", "type": "address"}], "outputs": []},
  {"name": "UpdateManagementFee", "type": "event", "anonymous": false,
   "inputs": [{"indexed": false, "name": "managementFee", "type": "uint256"}]},
  {"name": "UpdatePerformanceFee", "type": "event", "anonymous": false,
   "inputs": [{"indexed": false, "name": "performanceFee", "type": "uint256"}]},
  {"name": "StrategyUpdatePerformanceFee", "type": "event", "anonymous": false,
   "inputs": [
     {"indexed": true, "name": "strategy", "type": "address"},
     {"indexed": false, "name": "performanceFee", "type": "uint256"}
   ]},
  {"name": "StrategyMigrated", "type": "event", "anonymous": false,
   "inputs": [
     {"indexed": true, "name": "oldVersion", "type": "address"},
     {"indexed": true, "name": "newVersion", "type": "address"}
   ]}
]`

// Releases before 0.3.2 had a rate limit instead of min/max debt per harvest,
// and did not report debtPaid.
const legacyEventsABIJSON = `[
  {"name": "StrategyReported", "type": "event", "anonymous": false,
   "inputs": [
     {"indexed": true, "name": "strategy", "type": "address"},
     {"indexed": false, "name": "gain", "type": "uint256"},
     {"indexed": false, "name": "loss", "type": "uint256"},
     {"indexed": false, "name": "totalGain", "type": "uint256"},
     {"indexed": false, "name": "totalLoss", "type": "uint256"},
     {"indexed": false, "name": "totalDebt", "type": "uint256"},
     {"indexed": false, "name": "debtAdded", "type": "uint256"},
     {"indexed": false, "name": "debtRatio", "type": "uint256"}
   ]},
  {"name": "StrategyAdded", "type": "event", "anonymous": false,
   "inputs": [
     {"indexed": true, "name": "strategy", "type": "address"},
     {"indexed": false, "name": "debtRatio", "type": "uint256"},
     {"indexed": false, "name": "rateLimit", "type": "uint256"},
     {"indexed": false, "name": "performanceFee", "type": "uint256"}
   ]}
]`

const eventsABIJSON = `[
  {"name": "StrategyReported", "type": "event", "anonymous": false,
   "inputs": [
     {"indexed": true, "name": "strategy", "type": "address"},
     {"indexed": false, "name": "gain", "type": "uint256"},
     {"indexed": false, "name": "loss", "type": "uint256"},
     {"indexed": false, "name": "debtPaid", "type": "uint256"},
     {"indexed": false, "name": "totalGain", "type": "uint256"},
     {"indexed": false, "name": "totalLoss", "type": "uint256"},
     {"indexed": false, "name": "totalDebt", "type": "uint256"},
     {"indexed": false, "name": "debtAdded", "type": "uint256"},
     {"indexed": false, "name": "debtRatio", "type": "uint256"}
   ]},
  {"name": "StrategyAdded", "type": "event", "anonymous": false,
   "inputs": [
     {"indexed": true, "name": "strategy", "type": "address"},
     {"indexed": false, "name": "debtRatio", "type": "uint256"},
     {"indexed": false, "name": "minDebtPerHarvest", "type": "uint256"},
     {"indexed": false, "name": "maxDebtPerHarvest", "type": "uint256"},
     {"indexed": false, "name": "performanceFee", "type": "uint256"}
   ]}
]`

// strategyABIJSON is the part of BaseStrategy read during fee assessment.
const strategyABIJSON = `[
  {"name": "delegatedAssets", "type": "function", "stateMutability": "view", "inputs": [],
   "outputs": [{"name": "", "type": "uint256"}]}
]`

type parsedABI struct {
	once sync.Once
	json string
	abi  abi.ABI
	err  error
}

func (p *parsedABI) get() (abi.ABI, error) {
	p.once.Do(func() {
		p.abi, p.err = abi.JSON(strings.NewReader(p.json))
	})
	return p.abi, p.err
}

var (
	vaultABI        = &parsedABI{json: vaultABIJSON}
	legacyEventsABI = &parsedABI{json: legacyEventsABIJSON}
	eventsABI       = &parsedABI{json: eventsABIJSON}
	strategyABI     = &parsedABI{json: strategyABIJSON}
)

// VaultABI returns the parsed vault ABI.
func VaultABI() (abi.ABI, error) {
	return vaultABI.get()
}

// StrategyABI returns the parsed strategy ABI.
func StrategyABI() (abi.ABI, error) {
	return strategyABI.get()
}
