package subgraph

import (
	bCtx "github.com/feeflow/goclient/base/ctx"
)

// Client is a thin graphql client against the protocol subgraph. The
// subgraph is consistent but lagged; callers must treat every answer as
// seconds-to-tens-of-seconds behind chain head.
type Client interface {
	Query(c bCtx.Ctx, q interface{}, variables map[string]interface{}) error
}
