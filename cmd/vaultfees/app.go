package main

import (
	"context"
	"fmt"

	"vaultFees/internal/catalog"
	"vaultFees/internal/chain"
	"vaultFees/internal/config"
	"vaultFees/internal/trace"
	"vaultFees/internal/vault"
)

// node is a chain connection with a state reader on top.
type node struct {
	client *chain.Client
	reader *vault.Reader
}

func dialNode(ctx context.Context, cfg config.Common) (*node, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCRate)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	reader, err := vault.NewReader(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &node{client: client, reader: reader}, nil
}

func (n *node) Close() {
	n.client.Close()
}

func newVersions(cfg config.Common, reader vault.APIVersionReader) (*vault.Versions, error) {
	static, err := config.ParseVaultVersions(cfg.VaultVersions)
	if err != nil {
		return nil, err
	}
	return vault.NewVersions(static, reader)
}

func loadLayouts(path string) (trace.Table, error) {
	table, err := trace.LoadTable(path)
	if err != nil {
		return nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trace layouts: %w", err)
	}
	return table, nil
}

func openCatalog(dir string) (*catalog.Catalog, error) {
	cat := catalog.Open(dir)
	if err := cat.Load(); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}
