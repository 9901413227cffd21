package indexer

import (
	"github.com/ethereum/go-ethereum/common"

	"vaultFees/internal/catalog"
	"vaultFees/internal/model"
)

// Worklist returns the transactions with at least one report missing from
// persisted, ordered by their first report.
func Worklist(cat *catalog.Catalog, persisted map[model.LogPosition]struct{}) []common.Hash {
	var out []common.Hash
	for _, tx := range cat.TxHashes() {
		for _, r := range cat.ForTx(tx) {
			if _, ok := persisted[r.Position()]; !ok {
				out = append(out, tx)
				break
			}
		}
	}
	return out
}
