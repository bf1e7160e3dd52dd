package rpc

import (
	"fmt"

	"go.lsp.dev/jsonrpc2"
)

// ErrInvalidParams is returned for malformed params or unknown units and
// tests. It carries the JSON-RPC invalid params code.
var ErrInvalidParams = fmt.Errorf("rpc: %w", jsonrpc2.ErrInvalidParams)
