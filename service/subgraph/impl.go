package subgraph

import (
	"net/http"
	"time"

	"github.com/shurcooL/graphql"

	bCtx "github.com/feeflow/goclient/base/ctx"
	"github.com/feeflow/goclient/base/log"
	"github.com/feeflow/goclient/base/metrics"
)

const queryTimeout = 30 * time.Second

type impl struct {
	client *graphql.Client
	met    metrics.Service
}

func New(url string, httpClient *http.Client) Client {
	return &impl{
		client: graphql.NewClient(url, httpClient),
		met:    metrics.New("subgraph"),
	}
}

func (im *impl) Query(c bCtx.Ctx, q interface{}, variables map[string]interface{}) error {
	defer im.met.BumpTime("query.latency").End()

	tCtx, cancel := bCtx.WithTimeout(c, queryTimeout)
	defer cancel()

	if err := im.client.Query(tCtx, q, variables); err != nil {
		im.met.BumpSum("query.err", 1)
		c.WithFields(log.Fields{
			"err": err,
		}).Error("graphql query failed")
		return err
	}
	return nil
}
